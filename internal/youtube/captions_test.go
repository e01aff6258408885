package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursewise/videokb/internal/domain"
)

const testVideoID = "dQw4w9WgXcQ"

// fakeYouTube serves the three endpoints the client touches: the watch
// page, the innertube player endpoint, and a timed-text URL.
type fakeYouTube struct {
	server       *httptest.Server
	watchPage    string
	playerJSON   string
	timedTextXML string

	playerCalls int
}

func newFakeYouTube(t *testing.T) *fakeYouTube {
	t.Helper()
	f := &fakeYouTube{}

	mux := http.NewServeMux()
	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, f.watchPage)
	})
	mux.HandleFunc("/youtubei/v1/player", func(w http.ResponseWriter, r *http.Request) {
		f.playerCalls++
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		fmt.Fprint(w, f.playerJSON)
	})
	mux.HandleFunc("/api/timedtext", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, f.timedTextXML)
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)

	f.watchPage = `<html><script>var cfg = {"INNERTUBE_API_KEY":"test-key"};</script></html>`
	f.playerJSON = fmt.Sprintf(`{
		"playabilityStatus": {"status": "OK"},
		"captions": {"playerCaptionsTracklistRenderer": {"captionTracks": [
			{"baseUrl": %q, "languageCode": "en", "kind": ""}
		]}}
	}`, f.server.URL+"/api/timedtext")
	f.timedTextXML = `<?xml version="1.0"?><transcript>` +
		`<text start="0" dur="2.1">Hello &amp; welcome</text>` +
		`<text start="2.1" dur="3.0">to the &lt;b&gt;show&lt;/b&gt;</text>` +
		`<text start="5.1" dur="1.0">  </text>` +
		`</transcript>`

	return f
}

func (f *fakeYouTube) client() *Client {
	return NewClient(WithBaseURL(f.server.URL), WithTimeout(5*time.Second))
}

func TestFetchCaptions(t *testing.T) {
	f := newFakeYouTube(t)

	tr, err := f.client().FetchCaptions(context.Background(), testVideoID)
	require.NoError(t, err)

	assert.Equal(t, "Hello & welcome to the show", tr.Text)
	assert.Equal(t, "en", tr.Language)
	assert.NotEmpty(t, tr.Raw)
	assert.Equal(t, 1, f.playerCalls)
}

func TestFetchCaptions_MissingAPIKey(t *testing.T) {
	f := newFakeYouTube(t)
	f.watchPage = `<html>no key here</html>`

	_, err := f.client().FetchCaptions(context.Background(), testVideoID)
	require.Error(t, err)

	var de *domain.DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, domain.ErrCodeTranscriptFetchFailed, de.Code)
	assert.Equal(t, 0, f.playerCalls)
}

func TestFetchCaptions_Playability(t *testing.T) {
	tests := []struct {
		status  string
		wantErr *domain.DomainError
	}{
		{"LOGIN_REQUIRED", domain.ErrVideoPrivateOrUnavailable},
		{"ERROR", domain.ErrVideoPrivateOrUnavailable},
		{"UNPLAYABLE", domain.ErrVideoPrivateOrUnavailable},
		{"AGE_CHECK_REQUIRED", domain.ErrVideoAgeRestricted},
		{"AGE_VERIFICATION_REQUIRED", domain.ErrVideoAgeRestricted},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			f := newFakeYouTube(t)
			f.playerJSON = fmt.Sprintf(`{"playabilityStatus": {"status": %q}}`, tt.status)

			_, err := f.client().FetchCaptions(context.Background(), testVideoID)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr))
		})
	}
}

func TestFetchCaptions_NoTracks(t *testing.T) {
	f := newFakeYouTube(t)
	f.playerJSON = `{"playabilityStatus": {"status": "OK"}, "captions": {}}`

	_, err := f.client().FetchCaptions(context.Background(), testVideoID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNoTranscriptAvailable))
}

func TestFetchCaptions_EmptyTimedText(t *testing.T) {
	f := newFakeYouTube(t)
	f.timedTextXML = `<transcript></transcript>`

	_, err := f.client().FetchCaptions(context.Background(), testVideoID)
	require.Error(t, err)

	var de *domain.DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, domain.ErrCodeTranscriptFetchFailed, de.Code)
}

func TestFetchCaptions_Timeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(slow.Close)

	c := NewClient(WithBaseURL(slow.URL), WithTimeout(50*time.Millisecond))

	_, err := c.FetchCaptions(context.Background(), testVideoID)
	require.Error(t, err)

	var de *domain.DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, domain.ErrCodeTimeout, de.Code)
}

func TestSelectTrack(t *testing.T) {
	manualEN := captionTrack{BaseURL: "manual-en", LanguageCode: "en"}
	autoEN := captionTrack{BaseURL: "auto-en", LanguageCode: "en", Kind: "asr"}
	manualDE := captionTrack{BaseURL: "manual-de", LanguageCode: "de"}
	britishEN := captionTrack{BaseURL: "manual-en-gb", LanguageCode: "en-GB"}

	tests := []struct {
		name   string
		tracks []captionTrack
		want   string
	}{
		{"manual english preferred", []captionTrack{autoEN, manualDE, manualEN}, "manual-en"},
		{"auto english over foreign", []captionTrack{manualDE, autoEN}, "auto-en"},
		{"regional english counts", []captionTrack{manualDE, britishEN}, "manual-en-gb"},
		{"first track fallback", []captionTrack{manualDE}, "manual-de"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, selectTrack(tt.tracks).BaseURL)
		})
	}
}

func TestCleanTimedText(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			"srv1 text elements",
			`<transcript><text start="0">one</text><text start="1">two</text></transcript>`,
			"one two",
		},
		{
			"srv3 p elements",
			`<timedtext><body><p t="0" d="1000">one</p><p t="1000" d="1000">two</p></body></timedtext>`,
			"one two",
		},
		{
			"entities decoded",
			`<transcript><text>Tom &amp; Jerry &#39;live&#39;</text></transcript>`,
			"Tom & Jerry 'live'",
		},
		{
			"inner markup stripped",
			`<timedtext><body><p t="0"><s>broken</s> <s>into</s> spans</p></body></timedtext>`,
			"broken into spans",
		},
		{
			"whitespace collapsed",
			"<transcript><text>line\none</text><text>  line   two </text></transcript>",
			"line one line two",
		},
		{
			"empty payload",
			`<transcript></transcript>`,
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanTimedText([]byte(tt.raw)))
		})
	}
}
