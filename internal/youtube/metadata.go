package youtube

import (
	"context"
	"encoding/json"
	"html"
	"log"
	"regexp"
)

// Fallbacks used when the watch page can't be scraped. Metadata is
// cosmetic; its absence never fails an analysis.
const (
	FallbackTitle   = "Video"
	FallbackChannel = "Channel"
)

var (
	ogTitlePattern = regexp.MustCompile(`<meta\s+property="og:title"\s+content="([^"]*)"`)
	channelPattern = regexp.MustCompile(`"ownerChannelName":"([^"]*)"`)
	authorPattern  = regexp.MustCompile(`"author":"([^"]*)"`)
)

// Metadata holds the display fields scraped from a watch page.
type Metadata struct {
	Title   string
	Channel string
}

// FetchMetadata scrapes title and channel name from the watch page.
// Every failure is absorbed into fallback values.
func (c *Client) FetchMetadata(ctx context.Context, videoID string) Metadata {
	meta := Metadata{Title: FallbackTitle, Channel: FallbackChannel}

	page, err := c.fetchWatchPage(ctx, videoID)
	if err != nil {
		log.Printf("metadata fetch failed for %s: %v", videoID, err)
		return meta
	}

	if m := ogTitlePattern.FindSubmatch(page); len(m) == 2 && len(m[1]) > 0 {
		meta.Title = html.UnescapeString(string(m[1]))
	}

	if m := channelPattern.FindSubmatch(page); len(m) == 2 && len(m[1]) > 0 {
		meta.Channel = decodeJSONString(string(m[1]))
	} else if m := authorPattern.FindSubmatch(page); len(m) == 2 && len(m[1]) > 0 {
		meta.Channel = decodeJSONString(string(m[1]))
	}

	return meta
}

// decodeJSONString undoes the escaping of a string literal captured out
// of embedded page JSON, e.g. & sequences in channel names.
func decodeJSONString(s string) string {
	var out string
	if err := json.Unmarshal([]byte(`"`+s+`"`), &out); err != nil {
		return s
	}
	return out
}
