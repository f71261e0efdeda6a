// Package transcript fetches video transcripts from the upstream
// caption service.
package transcript

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Segment is one timed piece of a transcript. Offset and Duration are
// in seconds.
type Segment struct {
	Text     string  `json:"text"`
	Offset   float64 `json:"offset"`
	Duration float64 `json:"duration"`
}

// Fetcher fetches the transcript for a video.
type Fetcher interface {
	// Fetch retrieves transcript segments for the given video,
	// preferring the first available language in languages. It makes a
	// single attempt; callers decide whether a failure is worth
	// retrying, and none of them do.
	Fetch(ctx context.Context, client *http.Client, videoID string, languages []string) ([]Segment, error)
}

// Sentinel errors for upstream outcomes.
var (
	// ErrNoTranscript indicates the video has no captions at all.
	ErrNoTranscript = errors.New("no transcript available")

	// ErrVideoUnavailable indicates the video cannot be watched.
	ErrVideoUnavailable = errors.New("video unavailable")
)

// maxCapturedBody caps how much upstream response body an UpstreamError
// carries for debugging.
const maxCapturedBody = 2048

// UpstreamError describes a failed upstream exchange with enough detail
// to debug proxy and blocking issues from the error alone.
type UpstreamError struct {
	// Name classifies the failure, e.g. "FetchError" or "ParseError".
	Name string

	// Message is a human readable description.
	Message string

	// StatusCode and Status are the upstream HTTP outcome, zero/empty
	// when the exchange never produced a response.
	StatusCode int
	Status     string

	// ResponseURL is the final URL after redirects.
	ResponseURL string

	// Body is the upstream response body, truncated to a debug-friendly
	// size.
	Body string

	// Headers are the upstream response headers, first value per name.
	Headers map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (upstream %s)", e.Name, e.Message, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

// Unwrap returns the underlying cause.
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// NewUpstreamError creates an UpstreamError without response context.
func NewUpstreamError(name, message string, err error) *UpstreamError {
	return &UpstreamError{
		Name:    name,
		Message: message,
		Err:     err,
	}
}

// NewUpstreamErrorFromResponse creates an UpstreamError capturing the
// response's status, URL, headers, and a truncated body.
func NewUpstreamErrorFromResponse(name, message string, resp *http.Response, body []byte) *UpstreamError {
	e := &UpstreamError{
		Name:       name,
		Message:    message,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
	}

	if resp.Request != nil && resp.Request.URL != nil {
		e.ResponseURL = resp.Request.URL.String()
	}

	if len(body) > maxCapturedBody {
		body = body[:maxCapturedBody]
	}
	e.Body = string(body)

	e.Headers = make(map[string]string, len(resp.Header))
	for name := range resp.Header {
		e.Headers[name] = resp.Header.Get(name)
	}

	return e
}
