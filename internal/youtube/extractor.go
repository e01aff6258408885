package youtube

import (
	"regexp"
	"strings"

	"github.com/coursewise/videokb/internal/domain"
)

// URL shapes that carry a video ID. The ID runs to the next URL
// delimiter; no length is assumed, so truncated share links still
// resolve. Tried in order, first match wins.
var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[?&]v=([0-9A-Za-z_-]+)`),
	regexp.MustCompile(`youtu\.be/([0-9A-Za-z_-]+)`),
	regexp.MustCompile(`/(?:embed|v|shorts|live)/([0-9A-Za-z_-]+)`),
}

// Bare input is only accepted as an ID when it has the canonical
// 11-character shape; anything else is indistinguishable from garbage.
var bareVideoID = regexp.MustCompile(`^[0-9A-Za-z_-]{11}$`)

// ExtractVideoID pulls the video ID out of any supported YouTube URL
// shape, or accepts a bare 11-character ID. It never touches the
// network.
func ExtractVideoID(input string) (string, error) {
	if input == "" {
		return "", domain.ErrInvalidVideoURL
	}

	if bareVideoID.MatchString(input) {
		return input, nil
	}

	if !strings.Contains(input, "youtube.com") && !strings.Contains(input, "youtu.be") {
		return "", domain.ErrInvalidVideoURL
	}

	for _, pattern := range videoIDPatterns {
		if m := pattern.FindStringSubmatch(input); len(m) == 2 {
			return m[1], nil
		}
	}

	return "", domain.ErrInvalidVideoURL
}
