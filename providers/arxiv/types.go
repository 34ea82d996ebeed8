package arxiv

import (
	"encoding/xml"
	"fmt"
	"time"
)

// atomFeed bildet die Antwort der arXiv-Export-API ab.
type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string       `xml:"id"`
	Title     string       `xml:"title"`
	Summary   string       `xml:"summary"`
	Published string       `xml:"published"`
	Updated   string       `xml:"updated"`
	Authors   []atomAuthor `xml:"author"`
	Links     []atomLink   `xml:"link"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomLink struct {
	Href  string `xml:"href,attr"`
	Title string `xml:"title,attr"`
	Type  string `xml:"type,attr"`
}

// Metadata sind die geparsten Metadaten eines arXiv-Papers.
type Metadata struct {
	ArxivID   string
	Title     string
	Abstract  string
	Authors   []string
	Published *time.Time
	PDFLink   string
}

// NotFoundError: die angefragte ID existiert bei arXiv nicht.
type NotFoundError struct {
	ArxivID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("arxiv-paper %s nicht gefunden", e.ArxivID)
}

// RateLimitError: die API hat nach allen Versuchen weiter mit 429
// geantwortet. RetryAfter ist der Wert des letzten Retry-After-Headers.
type RateLimitError struct {
	Attempts   int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("arxiv rate limit nach %d versuchen (retry-after %s)", e.Attempts, e.RetryAfter)
}
