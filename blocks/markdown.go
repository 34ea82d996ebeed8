package blocks

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

var mdParser = goldmark.New(
	goldmark.WithExtensions(extension.Table, extension.Strikethrough),
)

// displayMathRe findet $$...$$-Abschnitte über Zeilengrenzen hinweg.
var displayMathRe = regexp.MustCompile(`(?s)\$\$\s*(.+?)\s*\$\$`)

// equationParagraphRe erkennt einen Absatz, der nach der Normalisierung
// ausschließlich aus einem Display-Math-Abschnitt besteht.
var equationParagraphRe = regexp.MustCompile(`(?s)^\$\$\n(.+)\n\$\$$`)

// inlineMathRe findet $...$-Ausdrücke innerhalb einer Zeile.
var inlineMathRe = regexp.MustCompile(`\$([^$\n]+?)\$`)

// FromMarkdown zerlegt Markdown in die typisierten Blöcke. Leere Eingabe
// ergibt einen Platzhalter-Absatz, damit eine Seite nie ohne Inhalt bleibt.
func FromMarkdown(src string) []Block {
	if strings.TrimSpace(src) == "" {
		return []Block{{
			Type:  TypeParagraph,
			Spans: []Span{{Text: "No summary available."}},
		}}
	}

	// Display-Math auf die dreizeilige Form bringen, damit jeder
	// $$-Abschnitt als eigener Absatz geparst wird.
	normalized := displayMathRe.ReplaceAllString(src, "\n$$$$\n$1\n$$$$\n")

	source := []byte(normalized)
	doc := mdParser.Parser().Parse(text.NewReader(source))

	var out []Block
	for c := doc.FirstChild(); c != nil; c = c.NextSibling() {
		out = append(out, nodeToBlocks(c, source)...)
	}
	if len(out) == 0 {
		out = []Block{{
			Type:  TypeParagraph,
			Spans: []Span{{Text: "No summary available."}},
		}}
	}
	return out
}

// nodeToBlocks übersetzt einen Top-Level-AST-Knoten. Listen liefern einen
// Block pro Listenpunkt, alle anderen Knoten höchstens einen Block.
func nodeToBlocks(n ast.Node, source []byte) []Block {
	switch node := n.(type) {
	case *ast.Heading:
		return []Block{{
			Type:  HeadingType(node.Level),
			Spans: inlineContent(node, source),
		}}

	case *ast.Paragraph:
		spans := collectSpans(node, source, spanState{})
		if m := equationParagraphRe.FindStringSubmatch(PlainText(spans)); m != nil {
			return []Block{{Type: TypeEquation, Expression: strings.TrimSpace(m[1])}}
		}
		return []Block{{Type: TypeParagraph, Spans: finishSpans(spans)}}

	case *ast.List:
		blockType := TypeBulletedItem
		if node.IsOrdered() {
			blockType = TypeNumberedItem
		}
		var items []Block
		for item := node.FirstChild(); item != nil; item = item.NextSibling() {
			items = append(items, listItemToBlock(item, source, blockType))
		}
		return items

	case *ast.Blockquote:
		// Mehrere Absätze im Zitat werden zu einem Quote-Block
		// zusammengezogen; Notion kennt keine mehrteiligen Zitate.
		var spans []Span
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			spans = append(spans, collectSpans(c, source, spanState{})...)
		}
		return []Block{{Type: TypeQuote, Spans: finishSpans(spans)}}

	case *ast.FencedCodeBlock:
		lang := string(node.Language(source))
		if lang == "" {
			lang = "plain text"
		}
		return []Block{{
			Type:     TypeCode,
			Language: lang,
			Spans:    chunkSpans([]Span{{Text: rawLines(node, source)}}),
		}}

	case *ast.CodeBlock:
		return []Block{{
			Type:     TypeCode,
			Language: "plain text",
			Spans:    chunkSpans([]Span{{Text: rawLines(node, source)}}),
		}}

	case *ast.ThematicBreak:
		return []Block{{Type: TypeDivider}}

	case *east.Table:
		return []Block{tableToBlock(node, source)}

	case *ast.HTMLBlock:
		raw := strings.TrimSpace(rawLines(node, source))
		if raw == "" {
			return nil
		}
		return []Block{{Type: TypeParagraph, Spans: chunkSpans([]Span{{Text: raw}})}}
	}

	// Unbekannte Knoten werden auf ihren Text reduziert statt verworfen.
	spans := finishSpans(collectSpans(n, source, spanState{}))
	if PlainText(spans) == "" {
		return nil
	}
	return []Block{{Type: TypeParagraph, Spans: spans}}
}

func listItemToBlock(item ast.Node, source []byte, blockType BlockType) Block {
	block := Block{Type: blockType}
	for c := item.FirstChild(); c != nil; c = c.NextSibling() {
		switch child := c.(type) {
		case *ast.List:
			childType := TypeBulletedItem
			if child.IsOrdered() {
				childType = TypeNumberedItem
			}
			for sub := child.FirstChild(); sub != nil; sub = sub.NextSibling() {
				block.Children = append(block.Children, listItemToBlock(sub, source, childType))
			}
		default:
			block.Spans = append(block.Spans, collectSpans(c, source, spanState{})...)
		}
	}
	block.Spans = finishSpans(block.Spans)
	return block
}

func tableToBlock(table *east.Table, source []byte) Block {
	block := Block{Type: TypeTable}
	width := 0
	for row := table.FirstChild(); row != nil; row = row.NextSibling() {
		var cells [][]Span
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, finishSpans(collectSpans(cell, source, spanState{})))
		}
		if _, isHeader := row.(*east.TableHeader); isHeader {
			block.HasColumnHeader = true
		}
		if len(cells) > width {
			width = len(cells)
		}
		block.Rows = append(block.Rows, cells)
	}
	// Alle Zeilen auf die breiteste Zeile auffüllen, die API verlangt
	// rechteckige Tabellen.
	for i, row := range block.Rows {
		for len(row) < width {
			row = append(row, []Span{})
		}
		block.Rows[i] = row
	}
	return block
}

// spanState trägt die geerbten Annotationen beim Abstieg durch
// verschachtelte Inline-Knoten.
type spanState struct {
	bold, italic, strike, code bool
	link                       string
}

func collectSpans(n ast.Node, source []byte, st spanState) []Span {
	var out []Span
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch node := c.(type) {
		case *ast.Text:
			txt := string(node.Segment.Value(source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				txt += "\n"
			}
			out = append(out, makeSpan(txt, st))
		case *ast.String:
			out = append(out, makeSpan(string(node.Value), st))
		case *ast.Emphasis:
			sub := st
			if node.Level >= 2 {
				sub.bold = true
			} else {
				sub.italic = true
			}
			out = append(out, collectSpans(c, source, sub)...)
		case *east.Strikethrough:
			sub := st
			sub.strike = true
			out = append(out, collectSpans(c, source, sub)...)
		case *ast.CodeSpan:
			sub := st
			sub.code = true
			out = append(out, collectSpans(c, source, sub)...)
		case *ast.Link:
			sub := st
			sub.link = string(node.Destination)
			out = append(out, collectSpans(c, source, sub)...)
		case *ast.AutoLink:
			url := string(node.URL(source))
			sub := st
			sub.link = url
			out = append(out, makeSpan(url, sub))
		case *ast.Image:
			sub := st
			sub.link = string(node.Destination)
			out = append(out, collectSpans(c, source, sub)...)
		default:
			out = append(out, collectSpans(c, source, st)...)
		}
	}
	return out
}

func makeSpan(text string, st spanState) Span {
	return Span{
		Text:          text,
		Bold:          st.bold,
		Italic:        st.italic,
		Strikethrough: st.strike,
		Code:          st.code,
		Link:          st.link,
	}
}

// inlineContent sammelt die Spans eines Knotens ohne Inline-Math-Erkennung
// (Überschriften enthalten keine Formeln, wohl aber Dollarbeträge).
func inlineContent(n ast.Node, source []byte) []Span {
	return chunkSpans(mergeAdjacentSpans(collectSpans(n, source, spanState{})))
}

// finishSpans zieht Spans zusammen und wendet Inline-Math-Erkennung und
// Chunking an.
func finishSpans(spans []Span) []Span {
	return chunkSpans(splitInlineMath(mergeAdjacentSpans(spans)))
}

// mergeAdjacentSpans verschmilzt benachbarte Spans mit identischen
// Annotationen. Der Parser zerlegt Text an Unterstrichen in mehrere
// Text-Knoten, wodurch $x_i$ sonst über Span-Grenzen verteilt ankommt
// und die Formel-Erkennung ins Leere läuft.
func mergeAdjacentSpans(spans []Span) []Span {
	var out []Span
	for _, s := range spans {
		if len(out) > 0 {
			last := &out[len(out)-1]
			if !last.Equation && !s.Equation && sameAnnotations(*last, s) {
				last.Text += s.Text
				continue
			}
		}
		out = append(out, s)
	}
	return out
}

func sameAnnotations(a, b Span) bool {
	return a.Bold == b.Bold && a.Italic == b.Italic &&
		a.Strikethrough == b.Strikethrough && a.Code == b.Code &&
		a.Link == b.Link
}

// splitInlineMath zerlegt unausgezeichnete Spans an $...$-Grenzen in
// Text- und Gleichungs-Spans. Annotierte Spans bleiben unangetastet,
// damit `$x$` im Code-Kontext wörtlich erhalten bleibt.
func splitInlineMath(spans []Span) []Span {
	var out []Span
	for _, s := range spans {
		if !s.Plain() || !strings.Contains(s.Text, "$") {
			out = append(out, s)
			continue
		}
		matches := inlineMathRe.FindAllStringSubmatchIndex(s.Text, -1)
		if matches == nil {
			out = append(out, s)
			continue
		}
		pos := 0
		for _, m := range matches {
			if m[0] > pos {
				out = append(out, Span{Text: s.Text[pos:m[0]]})
			}
			out = append(out, Span{Text: s.Text[m[2]:m[3]], Equation: true})
			pos = m[1]
		}
		if pos < len(s.Text) {
			out = append(out, Span{Text: s.Text[pos:]})
		}
	}
	return out
}

func rawLines(n ast.Node, source []byte) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(source))
	}
	return strings.TrimRight(b.String(), "\n")
}
