package notion

import (
	"paper-shelf/blocks"
)

// encodeSpans bildet Spans auf Notion-rich_text ab.
func encodeSpans(spans []blocks.Span) []richText {
	out := make([]richText, 0, len(spans))
	for _, s := range spans {
		if s.Equation {
			out = append(out, richText{
				Type:     "equation",
				Equation: &equationContent{Expression: s.Text},
			})
			continue
		}
		rt := richText{
			Type: "text",
			Text: &textContent{Content: s.Text},
		}
		if s.Link != "" {
			rt.Text.Link = &linkRef{URL: s.Link}
		}
		if s.Bold || s.Italic || s.Strikethrough || s.Code {
			rt.Annotations = &annotations{
				Bold:          s.Bold,
				Italic:        s.Italic,
				Strikethrough: s.Strikethrough,
				Code:          s.Code,
			}
		}
		out = append(out, rt)
	}
	return out
}

func decodeSpans(rts []richText) []blocks.Span {
	var out []blocks.Span
	for _, rt := range rts {
		if rt.Type == "equation" && rt.Equation != nil {
			out = append(out, blocks.Span{Text: rt.Equation.Expression, Equation: true})
			continue
		}
		s := blocks.Span{}
		switch {
		case rt.Text != nil:
			s.Text = rt.Text.Content
			if rt.Text.Link != nil {
				s.Link = rt.Text.Link.URL
			}
		default:
			// Mentions u.ä. werden auf ihren sichtbaren Text reduziert.
			s.Text = rt.PlainText
			s.Link = rt.Href
		}
		if rt.Annotations != nil {
			s.Bold = rt.Annotations.Bold
			s.Italic = rt.Annotations.Italic
			s.Strikethrough = rt.Annotations.Strikethrough
			s.Code = rt.Annotations.Code
		}
		out = append(out, s)
	}
	return out
}

// EncodeBlocks bildet das Block-Modell auf die Wire-Form ab, inklusive
// verschachtelter Listenkinder und Tabellenzeilen.
func EncodeBlocks(list []blocks.Block) []apiBlock {
	out := make([]apiBlock, 0, len(list))
	for _, b := range list {
		out = append(out, encodeBlock(b))
	}
	return out
}

func encodeBlock(b blocks.Block) apiBlock {
	switch b.Type {
	case blocks.TypeHeading1:
		return apiBlock{Type: "heading_1", Heading1: &textBlockContent{RichText: encodeSpans(b.Spans)}}
	case blocks.TypeHeading2:
		return apiBlock{Type: "heading_2", Heading2: &textBlockContent{RichText: encodeSpans(b.Spans)}}
	case blocks.TypeHeading3:
		return apiBlock{Type: "heading_3", Heading3: &textBlockContent{RichText: encodeSpans(b.Spans)}}
	case blocks.TypeBulletedItem:
		content := &textBlockContent{RichText: encodeSpans(b.Spans)}
		if len(b.Children) > 0 {
			content.Children = EncodeBlocks(b.Children)
		}
		return apiBlock{Type: "bulleted_list_item", BulletedListItem: content}
	case blocks.TypeNumberedItem:
		content := &textBlockContent{RichText: encodeSpans(b.Spans)}
		if len(b.Children) > 0 {
			content.Children = EncodeBlocks(b.Children)
		}
		return apiBlock{Type: "numbered_list_item", NumberedListItem: content}
	case blocks.TypeQuote:
		return apiBlock{Type: "quote", Quote: &textBlockContent{RichText: encodeSpans(b.Spans)}}
	case blocks.TypeCode:
		return apiBlock{Type: "code", Code: &codeBlockContent{
			RichText: encodeSpans(b.Spans),
			Language: b.Language,
		}}
	case blocks.TypeEquation:
		return apiBlock{Type: "equation", Equation: &equationContent{Expression: b.Expression}}
	case blocks.TypeDivider:
		return apiBlock{Type: "divider", Divider: &struct{}{}}
	case blocks.TypeTable:
		width := 0
		if len(b.Rows) > 0 {
			width = len(b.Rows[0])
		}
		table := &tableBlockContent{
			TableWidth:      width,
			HasColumnHeader: b.HasColumnHeader,
		}
		for _, row := range b.Rows {
			cells := make([][]richText, len(row))
			for i, cell := range row {
				cells[i] = encodeSpans(cell)
			}
			table.Children = append(table.Children, apiBlock{
				Type:     "table_row",
				TableRow: &tableRowContent{Cells: cells},
			})
		}
		return apiBlock{Type: "table", Table: table}
	}
	return apiBlock{Type: "paragraph", Paragraph: &textBlockContent{RichText: encodeSpans(b.Spans)}}
}

// DecodeBlocks übersetzt die Wire-Form zurück ins Block-Modell. Nicht
// unterstützte Blocktypen werden verworfen.
func DecodeBlocks(list []apiBlock) []blocks.Block {
	var out []blocks.Block
	for _, ab := range list {
		if b, ok := decodeBlock(ab); ok {
			out = append(out, b)
		}
	}
	return out
}

func decodeBlock(ab apiBlock) (blocks.Block, bool) {
	b := blocks.Block{Archived: ab.Archived}

	textContentFor := func(t blocks.BlockType, content *textBlockContent) (blocks.Block, bool) {
		if content == nil {
			return blocks.Block{}, false
		}
		b.Type = t
		b.Spans = decodeSpans(content.RichText)
		children := content.Children
		if len(ab.children) > 0 {
			children = ab.children
		}
		if len(children) > 0 {
			b.Children = DecodeBlocks(children)
		}
		return b, true
	}

	switch ab.Type {
	case "heading_1":
		return textContentFor(blocks.TypeHeading1, ab.Heading1)
	case "heading_2":
		return textContentFor(blocks.TypeHeading2, ab.Heading2)
	case "heading_3":
		return textContentFor(blocks.TypeHeading3, ab.Heading3)
	case "paragraph":
		return textContentFor(blocks.TypeParagraph, ab.Paragraph)
	case "bulleted_list_item":
		return textContentFor(blocks.TypeBulletedItem, ab.BulletedListItem)
	case "numbered_list_item":
		return textContentFor(blocks.TypeNumberedItem, ab.NumberedListItem)
	case "quote":
		return textContentFor(blocks.TypeQuote, ab.Quote)
	case "code":
		if ab.Code == nil {
			return blocks.Block{}, false
		}
		b.Type = blocks.TypeCode
		b.Language = ab.Code.Language
		b.Spans = decodeSpans(ab.Code.RichText)
		return b, true
	case "equation":
		if ab.Equation == nil {
			return blocks.Block{}, false
		}
		b.Type = blocks.TypeEquation
		b.Expression = ab.Equation.Expression
		return b, true
	case "divider":
		b.Type = blocks.TypeDivider
		return b, true
	case "table":
		if ab.Table == nil {
			return blocks.Block{}, false
		}
		b.Type = blocks.TypeTable
		b.HasColumnHeader = ab.Table.HasColumnHeader
		rows := ab.Table.Children
		if len(ab.children) > 0 {
			rows = ab.children
		}
		for _, row := range rows {
			if row.TableRow == nil {
				continue
			}
			cells := make([][]blocks.Span, len(row.TableRow.Cells))
			for i, cell := range row.TableRow.Cells {
				cells[i] = decodeSpans(cell)
			}
			b.Rows = append(b.Rows, cells)
		}
		return b, true
	}
	return blocks.Block{}, false
}
