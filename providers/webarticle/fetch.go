// Package webarticle holt Web-Artikel und macht aus ihnen Markdown
// plus Metadaten für die Bibliothek.
package webarticle

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"paper-shelf/config"
)

var httpClient = &http.Client{Timeout: 60 * time.Second}

const maxSlugLength = 80

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9]+`)

// Article ist das Ergebnis eines Artikel-Abrufs.
type Article struct {
	URL         string
	Slug        string
	Title       string
	Author      string
	Published   *time.Time
	Description string
	Markdown    string
}

// SlugifyURL macht aus einer Artikel-URL einen stabilen, lesbaren Slug:
// Host plus Pfad, ohne www und Schluss-Slash, alles außer [a-z0-9] wird
// zu Bindestrichen, gekürzt auf 80 Zeichen an einer Wortgrenze.
func SlugifyURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	path := strings.TrimSuffix(u.Path, "/")
	slug := strings.ToLower(host + path)
	slug = nonAlnumRe.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > maxSlugLength {
		cut := slug[:maxSlugLength]
		if i := strings.LastIndex(cut, "-"); i > 0 {
			cut = cut[:i]
		}
		slug = strings.Trim(cut, "-")
	}
	return slug
}

// Fetcher kapselt den Abruf und die Konvertierung von Web-Artikeln.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewFetcher erstellt einen Artikel-Fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger}
}

// Fetch lädt die Seite, liest die Meta-Tags aus und konvertiert den
// Hauptinhalt nach Markdown.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Article, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; paper-shelf/1.0)")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("artikel laden: unerwarteter status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return f.Parse(rawURL, data)
}

// Parse extrahiert Metadaten und Inhalt aus dem HTML-Dokument.
func (f *Fetcher) Parse(rawURL string, data []byte) (*Article, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("html parsen: %w", err)
	}

	article := &Article{
		URL:  rawURL,
		Slug: SlugifyURL(rawURL),
	}

	meta := collectMeta(doc)
	article.Title = firstNonEmpty(meta["og:title"], textOfFirst(doc, "title"))
	article.Author = firstNonEmpty(meta["author"], meta["article:author"])
	article.Description = meta["og:description"]
	if published := meta["article:published_time"]; published != "" {
		if t, err := time.Parse(time.RFC3339, published); err == nil {
			article.Published = &t
		} else if t, err := time.Parse("2006-01-02", published); err == nil {
			article.Published = &t
		}
	}

	content := findFirst(doc, "article")
	if content == nil {
		content = findFirst(doc, "main")
	}
	if content == nil {
		content = findFirst(doc, "body")
	}
	if content == nil {
		return nil, fmt.Errorf("kein inhalt in %s gefunden", rawURL)
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, content); err != nil {
		return nil, err
	}
	markdown, err := htmltomarkdown.ConvertString(buf.String())
	if err != nil {
		return nil, fmt.Errorf("html nach markdown: %w", err)
	}
	article.Markdown = strings.TrimSpace(markdown)

	if article.Title == "" {
		article.Title = article.Slug
	}
	f.Logger.Debug("Artikel geparst",
		zap.String("url", rawURL),
		zap.String("slug", article.Slug),
		zap.Int("markdown_len", len(article.Markdown)))
	return article, nil
}

// collectMeta sammelt die property/name → content-Paare aller Meta-Tags.
func collectMeta(doc *html.Node) map[string]string {
	meta := map[string]string{}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "meta" {
			var key, content string
			for _, attr := range n.Attr {
				switch attr.Key {
				case "property", "name":
					key = strings.ToLower(attr.Val)
				case "content":
					content = attr.Val
				}
			}
			if key != "" && content != "" {
				if _, exists := meta[key]; !exists {
					meta[key] = strings.TrimSpace(content)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return meta
}

func findFirst(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func textOfFirst(doc *html.Node, tag string) string {
	node := findFirst(doc, tag)
	if node == nil {
		return ""
	}
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(node)
	return strings.TrimSpace(b.String())
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
