package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/transcriptgw/transcriptgw/internal/observability"
)

// Hash algorithm constants.
const (
	HashAlgSHA256    = "sha256"
	HashAlgBcrypt    = "bcrypt"
	HashAlgPlaintext = "plaintext"
)

// Common errors for API key validation.
var (
	// ErrInvalidAPIKey indicates that the presented key does not match.
	ErrInvalidAPIKey = errors.New("invalid API key")

	// ErrEmptyAPIKey indicates that no key was presented.
	ErrEmptyAPIKey = errors.New("API key is empty")

	// ErrSecretNotConfigured indicates that the server has no secret to
	// compare against. Validation fails closed in this case.
	ErrSecretNotConfigured = errors.New("API key secret not configured")
)

// Config holds the shared secret the gateway compares presented keys against.
type Config struct {
	// Secret is the expected key. When HashAlgorithm is not plaintext,
	// Secret holds the hash of the expected key instead.
	Secret string

	// HashAlgorithm selects how presented keys are compared.
	// One of plaintext, sha256, bcrypt. Defaults to plaintext.
	HashAlgorithm string
}

// GetEffectiveHashAlgorithm returns the configured algorithm or the default.
func (c *Config) GetEffectiveHashAlgorithm() string {
	if c.HashAlgorithm == "" {
		return HashAlgPlaintext
	}
	return c.HashAlgorithm
}

// Validator validates API keys.
type Validator interface {
	// Validate checks a presented key against the configured secret.
	Validate(ctx context.Context, key string) error
}

// validator implements the Validator interface.
type validator struct {
	config  *Config
	logger  observability.Logger
	metrics *observability.Metrics
}

// ValidatorOption is a functional option for the validator.
type ValidatorOption func(*validator)

// WithValidatorLogger sets the logger for the validator.
func WithValidatorLogger(logger observability.Logger) ValidatorOption {
	return func(v *validator) {
		v.logger = logger
	}
}

// WithValidatorMetrics sets the metrics for the validator.
func WithValidatorMetrics(metrics *observability.Metrics) ValidatorOption {
	return func(v *validator) {
		v.metrics = metrics
	}
}

// NewValidator creates a new API key validator.
func NewValidator(config *Config, opts ...ValidatorOption) (Validator, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	v := &validator{
		config: config,
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(v)
	}

	return v, nil
}

// Validate checks a presented key against the configured secret. The
// secret is checked before the presented key is examined, so a
// misconfigured server never reports unauthorized.
func (v *validator) Validate(ctx context.Context, key string) error {
	if v.config.Secret == "" {
		v.recordFailure("not_configured")
		return ErrSecretNotConfigured
	}

	if key == "" {
		v.recordFailure("empty_key")
		return ErrEmptyAPIKey
	}

	if err := v.compare(key); err != nil {
		v.recordFailure("invalid")
		return err
	}

	v.logger.Debug("API key validated")
	return nil
}

func (v *validator) recordFailure(reason string) {
	if v.metrics != nil {
		v.metrics.RecordAuthFailure(reason)
	}
}

// compare checks the presented key using the configured algorithm.
func (v *validator) compare(providedKey string) error {
	switch alg := v.config.GetEffectiveHashAlgorithm(); alg {
	case HashAlgSHA256:
		return v.compareSHA256(providedKey)
	case HashAlgBcrypt:
		return v.compareBcrypt(providedKey)
	case HashAlgPlaintext:
		return v.comparePlaintext(providedKey)
	default:
		return fmt.Errorf("unsupported hash algorithm: %s", alg)
	}
}

// compareSHA256 compares a SHA-256 hash of the presented key against the
// stored hash.
func (v *validator) compareSHA256(providedKey string) error {
	hash := sha256.Sum256([]byte(providedKey))
	providedHash := hex.EncodeToString(hash[:])

	if subtle.ConstantTimeCompare([]byte(providedHash), []byte(v.config.Secret)) != 1 {
		return ErrInvalidAPIKey
	}
	return nil
}

// compareBcrypt compares the presented key against a stored bcrypt hash.
func (v *validator) compareBcrypt(providedKey string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(v.config.Secret), []byte(providedKey)); err != nil {
		return ErrInvalidAPIKey
	}
	return nil
}

// comparePlaintext compares the presented key directly in constant time.
func (v *validator) comparePlaintext(providedKey string) error {
	if subtle.ConstantTimeCompare([]byte(providedKey), []byte(v.config.Secret)) != 1 {
		return ErrInvalidAPIKey
	}
	return nil
}

// HashKey hashes an API key using the given algorithm, for generating
// stored secrets.
func HashKey(key, algorithm string) (string, error) {
	switch algorithm {
	case HashAlgSHA256:
		hash := sha256.Sum256([]byte(key))
		return hex.EncodeToString(hash[:]), nil
	case HashAlgBcrypt:
		hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
		if err != nil {
			return "", err
		}
		return string(hash), nil
	case HashAlgPlaintext:
		return key, nil
	default:
		return "", fmt.Errorf("unsupported hash algorithm: %s", algorithm)
	}
}

// Ensure validator implements Validator.
var _ Validator = (*validator)(nil)
