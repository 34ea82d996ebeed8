// Package notion spricht die Notion-API: Schema-Erkennung, Seiten- und
// Block-Operationen sowie die Abbildung zwischen Wire-Format und dem
// Block-Modell aus dem blocks-Paket.
package notion

import (
	"fmt"
	"time"
)

// APIError beschreibt eine fehlgeschlagene Notion-Anfrage. RequestID kommt
// aus dem x-request-id-Header und gehört in jede Fehlermeldung, sonst kann
// der Notion-Support nichts nachschlagen.
type APIError struct {
	Status    int
	RequestID string
	Body      string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("notion api: status %d (request id %q): %s", e.Status, e.RequestID, e.Body)
}

// RemotePaper ist die geparste Sicht auf eine Notion-Seite der Datenbank.
type RemotePaper struct {
	PageID     string
	ArxivID    string
	SourceSlug string
	Title      string
	Authors    []string
	Tags       []string

	ReadingStatus string
	Archived      bool

	SummaryLastModified *time.Time
	LocalLastModified   *time.Time
	LastEdited          time.Time

	Summary string
}

// RemoteModifiedAt liefert den wirksamen Änderungszeitpunkt der Seite:
// die explizite summary_last_modified-Property, wenn gepflegt, sonst die
// von Notion geführte last_edited_time.
func (r *RemotePaper) RemoteModifiedAt() time.Time {
	if r.SummaryLastModified != nil {
		return *r.SummaryLastModified
	}
	return r.LastEdited
}

// --- Wire-Strukturen ---

type richText struct {
	Type        string           `json:"type,omitempty"`
	Text        *textContent     `json:"text,omitempty"`
	Equation    *equationContent `json:"equation,omitempty"`
	Annotations *annotations     `json:"annotations,omitempty"`
	PlainText   string           `json:"plain_text,omitempty"`
	Href        string           `json:"href,omitempty"`
}

type textContent struct {
	Content string   `json:"content"`
	Link    *linkRef `json:"link,omitempty"`
}

type linkRef struct {
	URL string `json:"url"`
}

type equationContent struct {
	Expression string `json:"expression"`
}

type annotations struct {
	Bold          bool   `json:"bold,omitempty"`
	Italic        bool   `json:"italic,omitempty"`
	Strikethrough bool   `json:"strikethrough,omitempty"`
	Code          bool   `json:"code,omitempty"`
	Color         string `json:"color,omitempty"`
}

type textBlockContent struct {
	RichText []richText `json:"rich_text"`
	Children []apiBlock `json:"children,omitempty"`
}

type codeBlockContent struct {
	RichText []richText `json:"rich_text"`
	Language string     `json:"language,omitempty"`
}

type tableBlockContent struct {
	TableWidth      int        `json:"table_width"`
	HasColumnHeader bool       `json:"has_column_header"`
	HasRowHeader    bool       `json:"has_row_header"`
	Children        []apiBlock `json:"children,omitempty"`
}

type tableRowContent struct {
	Cells [][]richText `json:"cells"`
}

type fileUploadRef struct {
	ID string `json:"id"`
}

type audioBlockContent struct {
	Type       string         `json:"type,omitempty"`
	FileUpload *fileUploadRef `json:"file_upload,omitempty"`
}

// apiBlock ist die Wire-Form eines Notion-Blocks, für Lesen und Schreiben.
type apiBlock struct {
	Object      string `json:"object,omitempty"`
	ID          string `json:"id,omitempty"`
	Type        string `json:"type"`
	HasChildren bool   `json:"has_children,omitempty"`
	Archived    bool   `json:"archived,omitempty"`

	Paragraph        *textBlockContent  `json:"paragraph,omitempty"`
	Heading1         *textBlockContent  `json:"heading_1,omitempty"`
	Heading2         *textBlockContent  `json:"heading_2,omitempty"`
	Heading3         *textBlockContent  `json:"heading_3,omitempty"`
	BulletedListItem *textBlockContent  `json:"bulleted_list_item,omitempty"`
	NumberedListItem *textBlockContent  `json:"numbered_list_item,omitempty"`
	Quote            *textBlockContent  `json:"quote,omitempty"`
	Code             *codeBlockContent  `json:"code,omitempty"`
	Equation         *equationContent   `json:"equation,omitempty"`
	Divider          *struct{}          `json:"divider,omitempty"`
	Table            *tableBlockContent `json:"table,omitempty"`
	TableRow         *tableRowContent   `json:"table_row,omitempty"`
	Audio            *audioBlockContent `json:"audio,omitempty"`

	// children wird beim rekursiven Nachladen gefüllt, nie serialisiert.
	children []apiBlock
}

type propertyValue struct {
	Type     string      `json:"type,omitempty"`
	ID       string      `json:"id,omitempty"`
	Title    []richText  `json:"title,omitempty"`
	RichText []richText  `json:"rich_text,omitempty"`
	Select   *selectName `json:"select,omitempty"`
	Date     *dateValue  `json:"date,omitempty"`
	Checkbox *bool       `json:"checkbox,omitempty"`

	MultiSelect []selectName `json:"multi_select,omitempty"`
}

type selectName struct {
	Name string `json:"name"`
}

type dateValue struct {
	Start string `json:"start"`
}

type apiPage struct {
	Object         string                   `json:"object"`
	ID             string                   `json:"id"`
	Archived       bool                     `json:"archived"`
	InTrash        bool                     `json:"in_trash"`
	LastEditedTime time.Time                `json:"last_edited_time"`
	Properties     map[string]propertyValue `json:"properties"`
}

type queryResponse struct {
	Results    []apiPage `json:"results"`
	HasMore    bool      `json:"has_more"`
	NextCursor string    `json:"next_cursor"`
}

type blockListResponse struct {
	Results    []apiBlock `json:"results"`
	HasMore    bool       `json:"has_more"`
	NextCursor string     `json:"next_cursor"`
}

type databaseResponse struct {
	ID         string                    `json:"id"`
	Properties map[string]propertySchema `json:"properties"`
}

type propertySchema struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// parseNotionDate akzeptiert die beiden Formate, die Notion für
// Datums-Properties liefert: reines Datum und RFC3339-Zeitstempel.
func parseNotionDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
