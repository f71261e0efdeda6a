package apikey

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultExtractor(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		header  string
		want    string
		wantErr bool
	}{
		{
			name:   "header",
			target: "/transcript?videoId=dQw4w9WgXcQ",
			header: "from-header",
			want:   "from-header",
		},
		{
			name:   "query parameter",
			target: "/transcript?videoId=dQw4w9WgXcQ&apiKey=from-query",
			want:   "from-query",
		},
		{
			name:   "header wins over query",
			target: "/transcript?apiKey=from-query",
			header: "from-header",
			want:   "from-header",
		},
		{
			name:    "neither present",
			target:  "/transcript?videoId=dQw4w9WgXcQ",
			wantErr: true,
		},
	}

	extractor := DefaultExtractor()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				r.Header.Set("x-api-key", tt.header)
			}

			key, err := extractor.Extract(r)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, key)
		})
	}
}

func TestHeaderExtractor_TrimsWhitespace(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(DefaultHeader, "  key  ")

	key, err := NewHeaderExtractor("").Extract(r)
	require.NoError(t, err)
	assert.Equal(t, "key", key)
}

func TestCompositeExtractor_NoExtractors(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	_, err := NewCompositeExtractor().Extract(r)
	assert.ErrorIs(t, err, ErrNoAPIKeyFound)
}
