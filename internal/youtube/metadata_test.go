package youtube

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFetchMetadata(t *testing.T) {
	f := newFakeYouTube(t)
	f.watchPage = `<html><head>` +
		`<meta property="og:title" content="Go Concurrency Patterns">` +
		`</head><script>var d = {"ownerChannelName":"Google for Developers"};</script></html>`

	meta := f.client().FetchMetadata(context.Background(), testVideoID)
	assert.Equal(t, "Go Concurrency Patterns", meta.Title)
	assert.Equal(t, "Google for Developers", meta.Channel)
}

func TestFetchMetadata_EscapedFields(t *testing.T) {
	f := newFakeYouTube(t)
	f.watchPage = `<meta property="og:title" content="Tips &amp; Tricks">` +
		`<script>{"author":"Q&A Channel"}</script>`

	meta := f.client().FetchMetadata(context.Background(), testVideoID)
	assert.Equal(t, "Tips & Tricks", meta.Title)
	assert.Equal(t, "Q&A Channel", meta.Channel)
}

func TestFetchMetadata_Fallbacks(t *testing.T) {
	t.Run("unparseable page", func(t *testing.T) {
		f := newFakeYouTube(t)
		f.watchPage = `<html>nothing useful</html>`

		meta := f.client().FetchMetadata(context.Background(), testVideoID)
		assert.Equal(t, FallbackTitle, meta.Title)
		assert.Equal(t, FallbackChannel, meta.Channel)
	})

	t.Run("unreachable server", func(t *testing.T) {
		f := newFakeYouTube(t)
		f.server.Close()

		meta := f.client().FetchMetadata(context.Background(), testVideoID)
		assert.Equal(t, FallbackTitle, meta.Title)
		assert.Equal(t, FallbackChannel, meta.Channel)
	})
}
