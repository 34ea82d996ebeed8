package webarticle

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"paper-shelf/config"
)

func TestSlugifyURL(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://www.example.org/posts/deep-learning/", "example-org-posts-deep-learning"},
		{"https://example.org/posts/deep-learning", "example-org-posts-deep-learning"},
		{"https://blog.example.org/Ein/Pfad?q=1", "blog-example-org-ein-pfad"},
		{"https://example.org", "example-org"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, SlugifyURL(c.url), c.url)
	}
}

func TestSlugifyURL_TruncatesAtWordBoundary(t *testing.T) {
	long := "https://example.org/" + strings.Repeat("segment/", 20)
	slug := SlugifyURL(long)
	assert.LessOrEqual(t, len(slug), 80)
	assert.False(t, strings.HasSuffix(slug, "-"))
	assert.True(t, strings.HasSuffix(slug, "segment"))
}

const articleHTML = `<!DOCTYPE html>
<html>
<head>
  <title>Fallback Title | Site</title>
  <meta property="og:title" content="The Real Title">
  <meta name="author" content="Jordan Writer">
  <meta property="article:published_time" content="2025-04-02T09:30:00Z">
  <meta property="og:description" content="A short teaser.">
</head>
<body>
  <nav>ignore me</nav>
  <article>
    <h1>The Real Title</h1>
    <p>First paragraph with <strong>bold</strong> text.</p>
  </article>
</body>
</html>`

func TestFetch_ExtractsMetadataAndMarkdown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, articleHTML)
	}))
	t.Cleanup(srv.Close)

	f := NewFetcher(&config.Config{}, zap.NewNop())
	article, err := f.Fetch(context.Background(), srv.URL+"/posts/real-title")
	require.NoError(t, err)

	assert.Equal(t, "The Real Title", article.Title)
	assert.Equal(t, "Jordan Writer", article.Author)
	assert.Equal(t, "A short teaser.", article.Description)
	require.NotNil(t, article.Published)
	assert.Equal(t, 2025, article.Published.Year())
	assert.Contains(t, article.Markdown, "**bold**")
	assert.NotContains(t, article.Markdown, "ignore me")
}

func TestParse_FallsBackToTitleTag(t *testing.T) {
	f := NewFetcher(&config.Config{}, zap.NewNop())
	article, err := f.Parse("https://example.org/x", []byte(`<html><head><title>Only Title</title></head><body><p>text</p></body></html>`))
	require.NoError(t, err)
	assert.Equal(t, "Only Title", article.Title)
	assert.Contains(t, article.Markdown, "text")
}
