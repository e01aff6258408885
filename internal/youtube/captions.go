package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/coursewise/videokb/internal/domain"
)

const (
	defaultBaseURL     = "https://www.youtube.com"
	defaultHTTPTimeout = 15 * time.Second

	// Android client identity for the player endpoint. The web client
	// returns throttled caption URLs; the Android one does not.
	androidClientName    = "ANDROID"
	androidClientVersion = "20.10.38"
	androidSDKVersion    = 30
)

var (
	innertubeKeyPattern = regexp.MustCompile(`"INNERTUBE_API_KEY":"([^"]+)"`)
	captionCuePattern   = regexp.MustCompile(`(?s)<(?:text|p)\b[^>]*>(.*?)</(?:text|p)>`)
	captionTagPattern   = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern   = regexp.MustCompile(`\s+`)
)

// CaptionTranscript is a cleaned transcript assembled from a caption track.
type CaptionTranscript struct {
	Text     string
	Language string
	Raw      []byte // timed-text payload as fetched, kept for archival
}

// Client talks to YouTube's public watch pages and innertube player API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL overrides the YouTube origin, used by tests.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithTimeout sets the per-request deadline.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// NewClient creates a YouTube client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{},
		baseURL:    defaultBaseURL,
		timeout:    defaultHTTPTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type playerRequest struct {
	Context playerContext `json:"context"`
	VideoID string        `json:"videoId"`
}

type playerContext struct {
	Client playerClient `json:"client"`
}

type playerClient struct {
	ClientName        string `json:"clientName"`
	ClientVersion     string `json:"clientVersion"`
	AndroidSDKVersion int    `json:"androidSdkVersion"`
	HL                string `json:"hl"`
}

type playerResponse struct {
	PlayabilityStatus struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
	Captions struct {
		TracklistRenderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"` // "asr" for auto-generated
}

// FetchCaptions retrieves and cleans the caption transcript for a video.
// It returns domain errors for the known failure modes: no captions,
// private/unavailable video, age restriction, and upstream faults.
func (c *Client) FetchCaptions(ctx context.Context, videoID string) (*CaptionTranscript, error) {
	page, err := c.fetchWatchPage(ctx, videoID)
	if err != nil {
		return nil, err
	}

	apiKey, err := extractInnertubeKey(page)
	if err != nil {
		return nil, err
	}

	player, err := c.fetchPlayerResponse(ctx, videoID, apiKey)
	if err != nil {
		return nil, err
	}

	if err := checkPlayability(player.PlayabilityStatus.Status); err != nil {
		return nil, err
	}

	tracks := player.Captions.TracklistRenderer.CaptionTracks
	if len(tracks) == 0 {
		return nil, domain.ErrNoTranscriptAvailable
	}

	track := selectTrack(tracks)

	raw, err := c.fetchTimedText(ctx, track.BaseURL)
	if err != nil {
		return nil, err
	}

	text := cleanTimedText(raw)
	if text == "" {
		return nil, domain.NewDomainErrorWithCause(
			domain.ErrCodeTranscriptFetchFailed,
			"caption track contained no text",
			nil,
		)
	}

	return &CaptionTranscript{
		Text:     text,
		Language: track.LanguageCode,
		Raw:      raw,
	}, nil
}

func (c *Client) fetchWatchPage(ctx context.Context, videoID string) ([]byte, error) {
	url := fmt.Sprintf("%s/watch?v=%s", c.baseURL, videoID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build watch page request: %w", err)
	}
	req.Header.Set("Accept-Language", "en-US,en")

	body, err := c.do(req)
	if err != nil {
		return nil, wrapUpstream("watch page request failed", err)
	}
	return body, nil
}

func (c *Client) fetchPlayerResponse(ctx context.Context, videoID, apiKey string) (*playerResponse, error) {
	payload := playerRequest{
		Context: playerContext{
			Client: playerClient{
				ClientName:        androidClientName,
				ClientVersion:     androidClientVersion,
				AndroidSDKVersion: androidSDKVersion,
				HL:                "en",
			},
		},
		VideoID: videoID,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal player request: %w", err)
	}

	url := fmt.Sprintf("%s/youtubei/v1/player?key=%s", c.baseURL, apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build player request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	respBody, err := c.do(req)
	if err != nil {
		return nil, wrapUpstream("player request failed", err)
	}

	var player playerResponse
	if err := json.Unmarshal(respBody, &player); err != nil {
		return nil, domain.NewDomainErrorWithCause(
			domain.ErrCodeUpstreamError,
			"player response was not valid JSON",
			err,
		)
	}
	return &player, nil
}

func (c *Client) fetchTimedText(ctx context.Context, baseURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build timed text request: %w", err)
	}

	body, err := c.do(req)
	if err != nil {
		return nil, wrapUpstream("timed text request failed", err)
	}
	return body, nil
}

// do executes the request under the client's deadline and returns the
// response body for 2xx statuses.
func (c *Client) do(req *http.Request) ([]byte, error) {
	ctx, cancel := context.WithTimeout(req.Context(), c.timeout)
	defer cancel()

	resp, err := c.httpClient.Do(req.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

func extractInnertubeKey(page []byte) (string, error) {
	m := innertubeKeyPattern.FindSubmatch(page)
	if len(m) != 2 {
		return "", domain.NewDomainErrorWithCause(
			domain.ErrCodeTranscriptFetchFailed,
			"player API key not found on watch page",
			nil,
		)
	}
	return string(m[1]), nil
}

func checkPlayability(status string) error {
	switch status {
	case "", "OK":
		return nil
	case "LOGIN_REQUIRED":
		return domain.ErrVideoPrivateOrUnavailable
	case "AGE_CHECK_REQUIRED", "AGE_VERIFICATION_REQUIRED", "CONTENT_CHECK_REQUIRED":
		return domain.ErrVideoAgeRestricted
	case "ERROR", "UNPLAYABLE":
		return domain.ErrVideoPrivateOrUnavailable
	default:
		return domain.NewDomainErrorWithCause(
			domain.ErrCodeTranscriptFetchFailed,
			fmt.Sprintf("unexpected playability status %q", status),
			nil,
		)
	}
}

// selectTrack prefers a manually-authored English track, then any English
// track, then the first track.
func selectTrack(tracks []captionTrack) captionTrack {
	var firstEnglish *captionTrack
	for i := range tracks {
		if strings.HasPrefix(tracks[i].LanguageCode, "en") {
			if tracks[i].Kind != "asr" {
				return tracks[i]
			}
			if firstEnglish == nil {
				firstEnglish = &tracks[i]
			}
		}
	}
	if firstEnglish != nil {
		return *firstEnglish
	}
	return tracks[0]
}

// cleanTimedText flattens a timed-text XML payload into plain prose:
// cue contents are unescaped, inner markup stripped, and cues joined
// with single spaces.
func cleanTimedText(raw []byte) string {
	cues := captionCuePattern.FindAllSubmatch(raw, -1)
	parts := make([]string, 0, len(cues))
	for _, cue := range cues {
		text := html.UnescapeString(string(cue[1]))
		text = captionTagPattern.ReplaceAllString(text, " ")
		text = whitespacePattern.ReplaceAllString(text, " ")
		text = strings.TrimSpace(text)
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

func wrapUpstream(msg string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewDomainErrorWithCause(domain.ErrCodeTimeout, msg, err)
	}
	return domain.NewDomainErrorWithCause(domain.ErrCodeUpstreamError, msg, err)
}
