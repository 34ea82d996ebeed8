package models

import (
	"regexp"
	"strings"
	"time"
)

// ReadingStatus beschreibt den Bearbeitungsstand eines Papers.
type ReadingStatus string

const (
	StatusUnread         ReadingStatus = "unread"
	StatusReading        ReadingStatus = "reading"
	StatusSummarized     ReadingStatus = "summarized"
	StatusAudioGenerated ReadingStatus = "audio_generated"
	StatusComplete       ReadingStatus = "complete"
	StatusArchived       ReadingStatus = "archived"
)

// ValidStatuses enthält alle zulässigen Status-Werte in Anzeigereihenfolge.
var ValidStatuses = []ReadingStatus{
	StatusUnread, StatusReading, StatusSummarized,
	StatusAudioGenerated, StatusComplete, StatusArchived,
}

// ParseReadingStatus prüft und normalisiert einen Status-String.
func ParseReadingStatus(s string) (ReadingStatus, bool) {
	status := ReadingStatus(strings.ToLower(strings.TrimSpace(s)))
	for _, v := range ValidStatuses {
		if status == v {
			return v, true
		}
	}
	return "", false
}

// Quelle eines Papers: arXiv-Preprint oder Web-Artikel.
const (
	SourceArxiv = "arxiv"
	SourceWeb   = "web"
)

// Paper repräsentiert einen Eintrag der lokalen Bibliothek.
type Paper struct {
	ID         string `json:"id"`
	Source     string `json:"source"`
	ArxivID    string `json:"arxiv_id,omitempty"`
	SourceURL  string `json:"source_url,omitempty"`
	SourceSlug string `json:"source_slug,omitempty"`

	Title     string     `json:"title"`
	Authors   []string   `json:"authors,omitempty"`
	Published *time.Time `json:"published,omitempty"`
	Abstract  string     `json:"abstract,omitempty"`

	Tags          []string      `json:"tags,omitempty"`
	ReadingStatus ReadingStatus `json:"reading_status"`

	DateAdded       time.Time  `json:"date_added"`
	LocalModifiedAt time.Time  `json:"local_modified_at"`
	Archived        bool       `json:"archived"`
	ArchivedAt      *time.Time `json:"archived_at,omitempty"`

	HasSummary    bool    `json:"has_summary"`
	HasAudio      bool    `json:"has_audio"`
	HasPDF        bool    `json:"has_pdf"`
	AudioDuration float64 `json:"audio_duration,omitempty"`

	NotionPageID     string     `json:"notion_page_id,omitempty"`
	NotionLastEdited *time.Time `json:"notion_last_edited,omitempty"`
	LastSyncedAt     *time.Time `json:"last_synced_at,omitempty"`
}

// AuthorLine liefert die Autoren als kommaseparierte Zeile.
func (p *Paper) AuthorLine() string {
	return strings.Join(p.Authors, ", ")
}

var unsafeFilenameChars = regexp.MustCompile(`[^\w\s\-.]`)

// SanitizeFilename entfernt Zeichen, die in Dateinamen Probleme machen,
// und kürzt auf eine handhabbare Länge.
func SanitizeFilename(name string) string {
	clean := unsafeFilenameChars.ReplaceAllString(name, "")
	clean = strings.Join(strings.Fields(clean), " ")
	if len(clean) > 120 {
		clean = strings.TrimSpace(clean[:120])
	}
	if clean == "" {
		clean = "untitled"
	}
	return clean
}

// NormalizeTags trimmt, entfernt Leereinträge und Duplikate,
// Reihenfolge bleibt erhalten. Tags sind case-sensitiv, "NLP" und
// "nlp" sind zwei verschiedene Tags.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	var out []string
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
