package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"paper-shelf/config"
)

var httpClient = &http.Client{Timeout: 60 * time.Second}

const (
	apiBaseURL  = "https://export.arxiv.org/api/query"
	pdfBaseURL  = "https://arxiv.org/pdf"
	maxAttempts = 4
)

var (
	baseBackoff = 2 * time.Second
	maxBackoff  = 30 * time.Second
)

var (
	// urlPattern erkennt abs-/pdf-URLs auf arxiv.org.
	urlPattern = regexp.MustCompile(`arxiv\.org/(?:abs|pdf)/(\d{4}\.\d{4,5})(v\d+)?`)
	// bareIDPattern erkennt nackte IDs wie 2503.10291 oder 2503.10291v2.
	bareIDPattern = regexp.MustCompile(`^(\d{4}\.\d{4,5})(v\d+)?$`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
)

// ParseInput extrahiert die arXiv-ID aus einer ID oder URL. Die
// Versionsangabe wird abgeschnitten, der Index führt versionslose IDs.
func ParseInput(input string) (string, bool) {
	input = strings.TrimSpace(input)
	if m := bareIDPattern.FindStringSubmatch(input); m != nil {
		return m[1], true
	}
	if m := urlPattern.FindStringSubmatch(input); m != nil {
		return m[1], true
	}
	return "", false
}

// Fetcher kapselt die Zugriffe auf die arXiv-Export-API.
type Fetcher struct {
	Config  *config.Config
	Logger  *zap.Logger
	BaseURL string
	PDFURL  string
}

// NewFetcher erstellt einen arXiv-Fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger, BaseURL: apiBaseURL, PDFURL: pdfBaseURL}
}

// FetchMetadata holt die Metadaten für eine arXiv-ID. 429-Antworten
// werden mit exponentiellem Backoff wiederholt, danach gibt es einen
// RateLimitError.
func (f *Fetcher) FetchMetadata(ctx context.Context, arxivID string) (*Metadata, error) {
	log := f.Logger.With(zap.String("arxiv_id", arxivID))

	var lastRetryAfter time.Duration
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			wait := backoff(attempt)
			log.Warn("arXiv-Anfrage wird wiederholt", zap.Int("attempt", attempt), zap.Duration("wait", wait))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		meta, retryAfter, err := f.fetchOnce(ctx, arxivID)
		if err == nil {
			return meta, nil
		}
		if retryAfter < 0 {
			return nil, err
		}
		lastRetryAfter = retryAfter
	}
	return nil, &RateLimitError{Attempts: maxAttempts, RetryAfter: lastRetryAfter}
}

// fetchOnce führt genau einen API-Aufruf aus. retryAfter >= 0 heißt:
// der Fehler ist ein Rate-Limit und darf wiederholt werden.
func (f *Fetcher) fetchOnce(ctx context.Context, arxivID string) (*Metadata, time.Duration, error) {
	query := url.Values{"id_list": {arxivID}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.BaseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, -1, err
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, -1, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := time.Duration(0)
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := strconv.Atoi(v); err == nil {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return nil, retryAfter, fmt.Errorf("arxiv rate limit (status 429)")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, -1, fmt.Errorf("arxiv api: unerwarteter status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, -1, err
	}
	var feed atomFeed
	if err := xml.Unmarshal(data, &feed); err != nil {
		return nil, -1, fmt.Errorf("atom-feed parsen: %w", err)
	}
	if len(feed.Entries) == 0 {
		return nil, -1, &NotFoundError{ArxivID: arxivID}
	}

	entry := feed.Entries[0]
	// Unbekannte IDs beantwortet die API mit einem Fehler-Eintrag statt
	// mit einem leeren Feed.
	if strings.Contains(entry.ID, "api/errors") || strings.TrimSpace(entry.Title) == "Error" {
		return nil, -1, &NotFoundError{ArxivID: arxivID}
	}

	meta := &Metadata{
		ArxivID:  arxivID,
		Title:    whitespaceRe.ReplaceAllString(strings.TrimSpace(entry.Title), " "),
		Abstract: strings.TrimSpace(entry.Summary),
	}
	for _, a := range entry.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			meta.Authors = append(meta.Authors, name)
		}
	}
	if t, err := time.Parse(time.RFC3339, entry.Published); err == nil {
		meta.Published = &t
	}
	for _, l := range entry.Links {
		if l.Title == "pdf" || l.Type == "application/pdf" {
			meta.PDFLink = l.Href
		}
	}
	if meta.PDFLink == "" {
		meta.PDFLink = f.PDFURL + "/" + arxivID
	}
	return meta, -1, nil
}

// DownloadPDF lädt das PDF zu einer arXiv-ID herunter.
func (f *Fetcher) DownloadPDF(ctx context.Context, arxivID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.PDFURL+"/"+arxivID, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pdf-download: unerwarteter status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// backoff: base * 2^attempt mit Jitter 0.8–1.2, gedeckelt.
func backoff(attempt int) time.Duration {
	wait := baseBackoff << attempt
	if wait > maxBackoff {
		wait = maxBackoff
	}
	jitter := 0.8 + 0.4*rand.Float64()
	return time.Duration(float64(wait) * jitter)
}
