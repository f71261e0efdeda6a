// Package apikey provides shared-secret API key authentication.
package apikey

import (
	"errors"
	"net/http"
	"strings"
)

// Default locations callers may present a key in.
const (
	// DefaultHeader is the header callers present their key in.
	DefaultHeader = "x-api-key"

	// DefaultQueryParam is the query parameter fallback.
	DefaultQueryParam = "apiKey"
)

// Common errors for API key extraction.
var (
	ErrNoAPIKeyFound       = errors.New("no API key found")
	ErrMissingAPIKeyHeader = errors.New("missing API key header")
	ErrMissingAPIKeyQuery  = errors.New("missing API key query parameter")
)

// Extractor defines the interface for extracting API keys from HTTP requests.
type Extractor interface {
	// Extract extracts an API key from the request.
	Extract(r *http.Request) (string, error)
}

// HeaderExtractor extracts API keys from HTTP headers.
type HeaderExtractor struct {
	header string
}

// NewHeaderExtractor creates a new header extractor.
// If header is empty, it defaults to DefaultHeader.
func NewHeaderExtractor(header string) *HeaderExtractor {
	if header == "" {
		header = DefaultHeader
	}
	return &HeaderExtractor{header: header}
}

// Extract extracts the API key from the header.
func (e *HeaderExtractor) Extract(r *http.Request) (string, error) {
	value := r.Header.Get(e.header)
	if value == "" {
		return "", ErrMissingAPIKeyHeader
	}
	return strings.TrimSpace(value), nil
}

// QueryExtractor extracts API keys from query parameters.
type QueryExtractor struct {
	param string
}

// NewQueryExtractor creates a new query parameter extractor.
// If param is empty, it defaults to DefaultQueryParam.
func NewQueryExtractor(param string) *QueryExtractor {
	if param == "" {
		param = DefaultQueryParam
	}
	return &QueryExtractor{param: param}
}

// Extract extracts the API key from the query parameter.
func (e *QueryExtractor) Extract(r *http.Request) (string, error) {
	key := r.URL.Query().Get(e.param)
	if key == "" {
		return "", ErrMissingAPIKeyQuery
	}
	return key, nil
}

// CompositeExtractor tries multiple extractors in order.
type CompositeExtractor struct {
	extractors []Extractor
}

// NewCompositeExtractor creates a new composite extractor.
func NewCompositeExtractor(extractors ...Extractor) *CompositeExtractor {
	return &CompositeExtractor{extractors: extractors}
}

// Extract tries each extractor in order and returns the first successful result.
func (e *CompositeExtractor) Extract(r *http.Request) (string, error) {
	var lastErr error

	for _, extractor := range e.extractors {
		key, err := extractor.Extract(r)
		if err == nil && key != "" {
			return key, nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return "", lastErr
	}
	return "", ErrNoAPIKeyFound
}

// DefaultExtractor returns an extractor that checks the x-api-key header
// first, then the apiKey query parameter.
func DefaultExtractor() Extractor {
	return NewCompositeExtractor(
		NewHeaderExtractor(DefaultHeader),
		NewQueryExtractor(DefaultQueryParam),
	)
}

// ExtractorFunc is a function type that implements Extractor.
type ExtractorFunc func(r *http.Request) (string, error)

// Extract implements Extractor.
func (f ExtractorFunc) Extract(r *http.Request) (string, error) {
	return f(r)
}
