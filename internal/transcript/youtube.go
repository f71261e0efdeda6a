package transcript

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/transcriptgw/transcriptgw/internal/observability"
)

// DefaultWatchBaseURL is the upstream watch page URL.
const DefaultWatchBaseURL = "https://www.youtube.com/watch"

// DefaultLanguages is the language preference order when the caller
// does not specify one.
var DefaultLanguages = []string{"en"}

// YouTubeFetcher fetches transcripts by scraping the watch page for
// caption track metadata and then downloading the timedtext document.
type YouTubeFetcher struct {
	watchBaseURL string
	logger       observability.Logger
	metrics      *observability.Metrics
}

// FetcherOption is a functional option for the fetcher.
type FetcherOption func(*YouTubeFetcher)

// WithWatchBaseURL overrides the watch page URL.
func WithWatchBaseURL(baseURL string) FetcherOption {
	return func(f *YouTubeFetcher) {
		if baseURL != "" {
			f.watchBaseURL = baseURL
		}
	}
}

// WithFetcherLogger sets the logger for the fetcher.
func WithFetcherLogger(logger observability.Logger) FetcherOption {
	return func(f *YouTubeFetcher) {
		f.logger = logger
	}
}

// WithFetcherMetrics sets the metrics for the fetcher.
func WithFetcherMetrics(metrics *observability.Metrics) FetcherOption {
	return func(f *YouTubeFetcher) {
		f.metrics = metrics
	}
}

// NewYouTubeFetcher creates a new fetcher.
func NewYouTubeFetcher(opts ...FetcherOption) *YouTubeFetcher {
	f := &YouTubeFetcher{
		watchBaseURL: DefaultWatchBaseURL,
		logger:       observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// captionTrack is the caption metadata embedded in the watch page.
type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
}

// timedText is the XML transcript document.
type timedText struct {
	XMLName xml.Name       `xml:"transcript"`
	Texts   []timedTextCue `xml:"text"`
}

type timedTextCue struct {
	Start float64 `xml:"start,attr"`
	Dur   float64 `xml:"dur,attr"`
	Body  string  `xml:",chardata"`
}

// Fetch implements Fetcher.
func (f *YouTubeFetcher) Fetch(ctx context.Context, client *http.Client, videoID string, languages []string) ([]Segment, error) {
	start := time.Now()

	segments, err := f.fetch(ctx, client, videoID, languages)

	if f.metrics != nil {
		result := "success"
		if err != nil {
			result = "error"
		}
		f.metrics.RecordUpstreamFetch(result, false, time.Since(start))
	}

	return segments, err
}

func (f *YouTubeFetcher) fetch(ctx context.Context, client *http.Client, videoID string, languages []string) ([]Segment, error) {
	if len(languages) == 0 {
		languages = DefaultLanguages
	}

	tracks, err := f.fetchCaptionTracks(ctx, client, videoID)
	if err != nil {
		return nil, err
	}

	track := selectTrack(tracks, languages)

	segments, err := f.fetchTimedText(ctx, client, track.BaseURL)
	if err != nil {
		return nil, err
	}

	f.logger.Debug("transcript fetched",
		observability.String("video_id", videoID),
		observability.String("language", track.LanguageCode),
		observability.Int("segments", len(segments)),
	)

	return segments, nil
}

// fetchCaptionTracks downloads the watch page and extracts the caption
// track list embedded in the player response.
func (f *YouTubeFetcher) fetchCaptionTracks(ctx context.Context, client *http.Client, videoID string) ([]captionTrack, error) {
	watchURL := f.watchBaseURL + "?v=" + url.QueryEscape(videoID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, watchURL, nil)
	if err != nil {
		return nil, NewUpstreamError("FetchError", "failed to build watch request", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, NewUpstreamError("FetchError", "watch page request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewUpstreamError("FetchError", "failed to read watch page", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, NewUpstreamErrorFromResponse("FetchError",
			fmt.Sprintf("watch page returned %d", resp.StatusCode), resp, body)
	}

	page := string(body)

	if strings.Contains(page, `"playabilityStatus":{"status":"ERROR"`) {
		return nil, &UpstreamError{
			Name:        "VideoUnavailable",
			Message:     fmt.Sprintf("video %s is unavailable", videoID),
			ResponseURL: watchURL,
			Err:         ErrVideoUnavailable,
		}
	}

	raw, ok := extractCaptionTracksJSON(page)
	if !ok {
		return nil, &UpstreamError{
			Name:        "NoTranscript",
			Message:     fmt.Sprintf("no captions for video %s", videoID),
			ResponseURL: watchURL,
			Err:         ErrNoTranscript,
		}
	}

	var tracks []captionTrack
	if err := json.Unmarshal([]byte(raw), &tracks); err != nil {
		return nil, NewUpstreamErrorFromResponse("ParseError",
			"failed to parse caption track metadata", resp, body)
	}

	if len(tracks) == 0 {
		return nil, &UpstreamError{
			Name:        "NoTranscript",
			Message:     fmt.Sprintf("no captions for video %s", videoID),
			ResponseURL: watchURL,
			Err:         ErrNoTranscript,
		}
	}

	return tracks, nil
}

// extractCaptionTracksJSON pulls the captionTracks array out of the
// watch page by balanced bracket scanning. The page is not valid JSON
// as a whole, so it cannot just be unmarshalled.
func extractCaptionTracksJSON(page string) (string, bool) {
	const marker = `"captionTracks":`

	idx := strings.Index(page, marker)
	if idx == -1 {
		return "", false
	}

	rest := page[idx+len(marker):]
	if len(rest) == 0 || rest[0] != '[' {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(rest); i++ {
		c := rest[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '[':
			depth++
		case c == ']':
			depth--
			if depth == 0 {
				return rest[:i+1], true
			}
		}
	}

	return "", false
}

// selectTrack picks the first track whose language matches the caller's
// preference order, falling back to the first track.
func selectTrack(tracks []captionTrack, languages []string) captionTrack {
	for _, lang := range languages {
		// Manually created tracks win over auto-generated ones.
		for _, track := range tracks {
			if track.LanguageCode == lang && track.Kind != "asr" {
				return track
			}
		}
		for _, track := range tracks {
			if track.LanguageCode == lang {
				return track
			}
		}
	}
	return tracks[0]
}

// fetchTimedText downloads and parses the timedtext XML document.
func (f *YouTubeFetcher) fetchTimedText(ctx context.Context, client *http.Client, baseURL string) ([]Segment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
	if err != nil {
		return nil, NewUpstreamError("FetchError", "failed to build timedtext request", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, NewUpstreamError("FetchError", "timedtext request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewUpstreamError("FetchError", "failed to read timedtext", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, NewUpstreamErrorFromResponse("FetchError",
			fmt.Sprintf("timedtext returned %d", resp.StatusCode), resp, body)
	}

	var doc timedText
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, NewUpstreamErrorFromResponse("ParseError",
			"failed to parse timedtext", resp, body)
	}

	segments := make([]Segment, 0, len(doc.Texts))
	for _, cue := range doc.Texts {
		text := strings.TrimSpace(html.UnescapeString(cue.Body))
		if text == "" {
			continue
		}
		segments = append(segments, Segment{
			Text:     text,
			Offset:   cue.Start,
			Duration: cue.Dur,
		})
	}

	return segments, nil
}

// Ensure YouTubeFetcher implements Fetcher.
var _ Fetcher = (*YouTubeFetcher)(nil)
