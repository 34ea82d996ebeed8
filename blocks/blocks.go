// Package blocks konvertiert zwischen Markdown und dem typisierten
// Block-Modell, das der Notion-Adapter auf die Wire-Form abbildet.
package blocks

import "strings"

// ChunkLimit ist die maximale Länge eines Text-Spans. Die Notion-API
// lehnt längere rich_text-Einträge ab. Gleichungs-Spans sind ausgenommen,
// weil ein zerteilter LaTeX-Ausdruck wertlos wäre.
const ChunkLimit = 1800

// BlockType benennt die unterstützten Blocktypen.
type BlockType string

const (
	TypeParagraph    BlockType = "paragraph"
	TypeHeading1     BlockType = "heading_1"
	TypeHeading2     BlockType = "heading_2"
	TypeHeading3     BlockType = "heading_3"
	TypeBulletedItem BlockType = "bulleted_list_item"
	TypeNumberedItem BlockType = "numbered_list_item"
	TypeQuote        BlockType = "quote"
	TypeCode         BlockType = "code"
	TypeEquation     BlockType = "equation"
	TypeDivider      BlockType = "divider"
	TypeTable        BlockType = "table"
)

// Span ist ein annotiertes Textstück innerhalb eines Blocks. Bei
// Equation-Spans enthält Text den LaTeX-Ausdruck.
type Span struct {
	Text          string
	Bold          bool
	Italic        bool
	Strikethrough bool
	Code          bool
	Link          string
	Equation      bool
}

// Plain meldet, ob der Span keinerlei Auszeichnung trägt.
func (s Span) Plain() bool {
	return !s.Bold && !s.Italic && !s.Strikethrough && !s.Code && !s.Equation && s.Link == ""
}

// Block ist die getaggte Vereinigung aller Blocktypen. Welche Felder
// belegt sind, hängt vom Typ ab: Spans für Text-Blöcke (bei Code die
// zerlegten Inhalts-Chunks), Expression für Gleichungen, Rows für
// Tabellen, Children für verschachtelte Listenpunkte.
type Block struct {
	Type     BlockType
	Spans    []Span
	Children []Block

	Language   string
	Expression string

	Rows            [][][]Span
	HasColumnHeader bool

	Archived bool
}

// PlainText extrahiert den reinen Text einer Span-Folge.
func PlainText(spans []Span) string {
	var b strings.Builder
	for _, s := range spans {
		b.WriteString(s.Text)
	}
	return b.String()
}

// HeadingType liefert den Blocktyp für eine auf 1–3 begrenzte Ebene.
func HeadingType(level int) BlockType {
	switch {
	case level <= 1:
		return TypeHeading1
	case level == 2:
		return TypeHeading2
	default:
		return TypeHeading3
	}
}

// HeadingLevel ist die Umkehrung von HeadingType.
func HeadingLevel(t BlockType) int {
	switch t {
	case TypeHeading1:
		return 1
	case TypeHeading2:
		return 2
	case TypeHeading3:
		return 3
	}
	return 0
}

// chunkSpans zerlegt überlange Text-Spans in Stücke von höchstens
// ChunkLimit Zeichen. Annotationen bleiben auf allen Stücken erhalten.
func chunkSpans(spans []Span) []Span {
	var out []Span
	for _, s := range spans {
		runes := []rune(s.Text)
		if s.Equation || len(runes) <= ChunkLimit {
			out = append(out, s)
			continue
		}
		for start := 0; start < len(runes); start += ChunkLimit {
			end := start + ChunkLimit
			if end > len(runes) {
				end = len(runes)
			}
			chunk := s
			chunk.Text = string(runes[start:end])
			out = append(out, chunk)
		}
	}
	return out
}
