package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateVideoID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr error
	}{
		{
			name:    "valid all uppercase",
			id:      "AAAAAAAAAAA",
			wantErr: nil,
		},
		{
			name:    "valid mixed alphabet",
			id:      "dQw4w9WgXcQ",
			wantErr: nil,
		},
		{
			name:    "valid with underscore and hyphen",
			id:      "a_b-C_d-E12",
			wantErr: nil,
		},
		{
			name:    "empty",
			id:      "",
			wantErr: ErrMissingVideoID,
		},
		{
			name:    "too short",
			id:      "short",
			wantErr: ErrInvalidVideoID,
		},
		{
			name:    "too long",
			id:      "AAAAAAAAAAAA",
			wantErr: ErrInvalidVideoID,
		},
		{
			name:    "illegal character dot",
			id:      "AAAAA.AAAAA",
			wantErr: ErrInvalidVideoID,
		},
		{
			name:    "illegal character slash",
			id:      "AAAAA/AAAAA",
			wantErr: ErrInvalidVideoID,
		},
		{
			name:    "illegal whitespace",
			id:      "AAAAA AAAAA",
			wantErr: ErrInvalidVideoID,
		},
		{
			name:    "injection attempt",
			id:      "a;rm -rf /x",
			wantErr: ErrInvalidVideoID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateVideoID(tt.id)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestConfigError(t *testing.T) {
	err := NewConfigError("server.port", "must be positive")
	assert.Equal(t, "config error at server.port: must be positive", err.Error())

	wrapped := NewConfigErrorWithCause("", "load failed", ErrConfigInvalid)
	assert.Equal(t, "config error: load failed", wrapped.Error())
	assert.ErrorIs(t, wrapped, ErrConfigInvalid)
}
