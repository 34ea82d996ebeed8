package blocks

import (
	"fmt"
	"strings"
)

// ToMarkdown rendert Blöcke zurück nach Markdown. Archivierte Blöcke
// werden übersprungen. Die Ausgabe ist die Umkehrung von FromMarkdown
// für alle unterstützten Konstrukte.
func ToMarkdown(list []Block) string {
	var parts []string
	var prevType BlockType
	for _, b := range list {
		if b.Archived {
			continue
		}
		rendered := renderBlock(b, 0)
		if rendered == "" {
			continue
		}
		// Aufeinanderfolgende Listenpunkte desselben Typs gehören in
		// dieselbe Liste, also ohne Leerzeile dazwischen.
		if len(parts) > 0 && b.Type == prevType &&
			(b.Type == TypeBulletedItem || b.Type == TypeNumberedItem) {
			parts[len(parts)-1] += "\n" + rendered
		} else {
			parts = append(parts, rendered)
		}
		prevType = b.Type
	}
	return strings.Join(parts, "\n\n")
}

func renderBlock(b Block, level int) string {
	indent := strings.Repeat("  ", level)

	switch b.Type {
	case TypeHeading1, TypeHeading2, TypeHeading3:
		return strings.Repeat("#", HeadingLevel(b.Type)) + " " + renderSpans(b.Spans)

	case TypeParagraph:
		return indent + renderSpans(b.Spans)

	case TypeBulletedItem, TypeNumberedItem:
		marker := "- "
		if b.Type == TypeNumberedItem {
			marker = "1. "
		}
		lines := []string{indent + marker + renderSpans(b.Spans)}
		for _, child := range b.Children {
			if child.Archived {
				continue
			}
			lines = append(lines, renderBlock(child, level+1))
		}
		return strings.Join(lines, "\n")

	case TypeQuote:
		body := renderSpans(b.Spans)
		return "> " + strings.ReplaceAll(body, "\n", "\n> ")

	case TypeCode:
		lang := b.Language
		if lang == "plain text" {
			lang = ""
		}
		return fmt.Sprintf("```%s\n%s\n```", lang, PlainText(b.Spans))

	case TypeEquation:
		return "$$\n" + b.Expression + "\n$$"

	case TypeDivider:
		return "---"

	case TypeTable:
		return renderTable(b)
	}

	// Unbekannter Typ: auf den reinen Text zurückfallen, bevor Inhalt
	// verloren geht.
	if text := PlainText(b.Spans); text != "" {
		return indent + text
	}
	return ""
}

func renderTable(b Block) string {
	var lines []string
	for i, row := range b.Rows {
		cells := make([]string, len(row))
		for j, cell := range row {
			cells[j] = strings.ReplaceAll(renderSpans(cell), "\n", " ")
		}
		lines = append(lines, "| "+strings.Join(cells, " | ")+" |")
		if i == 0 && b.HasColumnHeader {
			seps := make([]string, len(row))
			for j := range seps {
				seps[j] = "---"
			}
			lines = append(lines, "| "+strings.Join(seps, " | ")+" |")
		}
	}
	return strings.Join(lines, "\n")
}

func renderSpans(spans []Span) string {
	var b strings.Builder
	for _, s := range spans {
		b.WriteString(renderSpan(s))
	}
	return b.String()
}

func renderSpan(s Span) string {
	if s.Equation {
		return "$" + s.Text + "$"
	}
	t := s.Text
	if s.Code {
		t = "`" + t + "`"
	}
	if s.Bold {
		t = "**" + t + "**"
	}
	if s.Italic {
		t = "*" + t + "*"
	}
	if s.Strikethrough {
		t = "~~" + t + "~~"
	}
	if s.Link != "" {
		t = "[" + t + "](" + s.Link + ")"
	}
	return t
}
