package blocks

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromMarkdown_EmptyInputYieldsPlaceholder(t *testing.T) {
	for _, src := range []string{"", "   ", "\n\n"} {
		got := FromMarkdown(src)
		require.Len(t, got, 1)
		assert.Equal(t, TypeParagraph, got[0].Type)
		assert.Equal(t, "No summary available.", PlainText(got[0].Spans))
	}
}

func TestFromMarkdown_HeadingLevelsClamped(t *testing.T) {
	got := FromMarkdown("# one\n\n## two\n\n### three\n\n#### four\n\n###### six")
	require.Len(t, got, 5)
	assert.Equal(t, TypeHeading1, got[0].Type)
	assert.Equal(t, TypeHeading2, got[1].Type)
	assert.Equal(t, TypeHeading3, got[2].Type)
	assert.Equal(t, TypeHeading3, got[3].Type)
	assert.Equal(t, TypeHeading3, got[4].Type)
	assert.Equal(t, "six", PlainText(got[4].Spans))
}

func TestFromMarkdown_NestedListWithAnnotations(t *testing.T) {
	got := FromMarkdown("- **bold** parent\n  - *italic* child")
	require.Len(t, got, 1)

	parent := got[0]
	assert.Equal(t, TypeBulletedItem, parent.Type)
	require.NotEmpty(t, parent.Spans)
	assert.Equal(t, "bold", parent.Spans[0].Text)
	assert.True(t, parent.Spans[0].Bold)
	assert.Equal(t, "bold parent", PlainText(parent.Spans))

	require.Len(t, parent.Children, 1)
	child := parent.Children[0]
	assert.Equal(t, TypeBulletedItem, child.Type)
	assert.Equal(t, "italic", child.Spans[0].Text)
	assert.True(t, child.Spans[0].Italic)
	assert.Equal(t, "italic child", PlainText(child.Spans))
}

func TestFromMarkdown_OrderedList(t *testing.T) {
	got := FromMarkdown("1. first\n2. second")
	require.Len(t, got, 2)
	assert.Equal(t, TypeNumberedItem, got[0].Type)
	assert.Equal(t, "first", PlainText(got[0].Spans))
	assert.Equal(t, TypeNumberedItem, got[1].Type)
}

func TestFromMarkdown_QuoteFlattensParagraphs(t *testing.T) {
	got := FromMarkdown("> first part\n>\n> second part")
	require.Len(t, got, 1)
	assert.Equal(t, TypeQuote, got[0].Type)
	assert.Equal(t, "first partsecond part", PlainText(got[0].Spans))
}

func TestFromMarkdown_CodeBlockDefaultsLanguage(t *testing.T) {
	got := FromMarkdown("```\nx := 1\n```")
	require.Len(t, got, 1)
	assert.Equal(t, TypeCode, got[0].Type)
	assert.Equal(t, "plain text", got[0].Language)
	assert.Equal(t, "x := 1", PlainText(got[0].Spans))

	got = FromMarkdown("```go\nx := 1\n```")
	assert.Equal(t, "go", got[0].Language)
}

func TestFromMarkdown_DisplayMath(t *testing.T) {
	got := FromMarkdown("Before.\n\n$$\nE = mc^2\n$$\n\nAfter.")
	require.Len(t, got, 3)
	assert.Equal(t, TypeEquation, got[1].Type)
	assert.Equal(t, "E = mc^2", got[1].Expression)
}

func TestFromMarkdown_DisplayMathSingleLine(t *testing.T) {
	// Einzeilige $$...$$-Form wird vor dem Parsen normalisiert.
	got := FromMarkdown("$$E = mc^2$$")
	require.Len(t, got, 1)
	assert.Equal(t, TypeEquation, got[0].Type)
	assert.Equal(t, "E = mc^2", got[0].Expression)
}

func TestFromMarkdown_InlineMath(t *testing.T) {
	got := FromMarkdown("the value $x_i$ grows")
	require.Len(t, got, 1)
	spans := got[0].Spans
	require.Len(t, spans, 3)
	assert.Equal(t, "the value ", spans[0].Text)
	assert.True(t, spans[1].Equation)
	assert.Equal(t, "x_i", spans[1].Text)
	assert.Equal(t, " grows", spans[2].Text)
}

func TestFromMarkdown_InlineMathAcrossTextNodes(t *testing.T) {
	// Der Parser zerlegt Text an Unterstrichen in mehrere Knoten,
	// die Formel-Erkennung muss über diese Grenzen hinweg greifen.
	got := FromMarkdown("weights $w_i$ and $w_j$ differ")
	require.Len(t, got, 1)
	spans := got[0].Spans
	require.Len(t, spans, 5)
	assert.Equal(t, "weights ", spans[0].Text)
	assert.True(t, spans[1].Equation)
	assert.Equal(t, "w_i", spans[1].Text)
	assert.Equal(t, " and ", spans[2].Text)
	assert.True(t, spans[3].Equation)
	assert.Equal(t, "w_j", spans[3].Text)
	assert.Equal(t, " differ", spans[4].Text)
}

func TestFromMarkdown_BoldTextWithUnderscoreStaysOneSpan(t *testing.T) {
	got := FromMarkdown("see **snake_case names** here")
	require.Len(t, got, 1)
	spans := got[0].Spans
	require.Len(t, spans, 3)
	assert.Equal(t, "see ", spans[0].Text)
	assert.True(t, spans[1].Bold)
	assert.Equal(t, "snake_case names", spans[1].Text)
	assert.Equal(t, " here", spans[2].Text)
}

func TestFromMarkdown_InlineMathNotInCodeSpans(t *testing.T) {
	got := FromMarkdown("run `echo $HOME$PATH` now")
	require.Len(t, got, 1)
	for _, s := range got[0].Spans {
		assert.False(t, s.Equation)
	}
}

func TestFromMarkdown_LongSpansAreChunked(t *testing.T) {
	long := strings.Repeat("a", 2*ChunkLimit+400)
	got := FromMarkdown(long)
	require.Len(t, got, 1)
	spans := got[0].Spans
	require.Len(t, spans, 3)
	assert.Len(t, spans[0].Text, ChunkLimit)
	assert.Len(t, spans[1].Text, ChunkLimit)
	assert.Len(t, spans[2].Text, 400)
}

func TestFromMarkdown_EquationSpansNotChunked(t *testing.T) {
	expr := strings.Repeat("x+", ChunkLimit) + "x"
	got := FromMarkdown("$" + expr + "$")
	require.Len(t, got, 1)
	var eq *Span
	for i := range got[0].Spans {
		if got[0].Spans[i].Equation {
			eq = &got[0].Spans[i]
		}
	}
	require.NotNil(t, eq)
	assert.Equal(t, expr, eq.Text)
}

func TestFromMarkdown_TablePaddedToWidestRow(t *testing.T) {
	got := FromMarkdown("| a | b |\n| --- | --- |\n| 1 |")
	require.Len(t, got, 1)
	table := got[0]
	assert.Equal(t, TypeTable, table.Type)
	assert.True(t, table.HasColumnHeader)
	require.Len(t, table.Rows, 2)
	for _, row := range table.Rows {
		assert.Len(t, row, 2)
	}
	assert.Equal(t, "", PlainText(table.Rows[1][1]))
}

func TestFromMarkdown_LinksAndStrikethrough(t *testing.T) {
	got := FromMarkdown("see [the paper](https://example.org/p) and ~~old~~")
	require.Len(t, got, 1)
	var link, strike bool
	for _, s := range got[0].Spans {
		if s.Link == "https://example.org/p" && s.Text == "the paper" {
			link = true
		}
		if s.Strikethrough && s.Text == "old" {
			strike = true
		}
	}
	assert.True(t, link)
	assert.True(t, strike)
}

func TestToMarkdown_SkipsArchivedBlocks(t *testing.T) {
	md := ToMarkdown([]Block{
		{Type: TypeParagraph, Spans: []Span{{Text: "keep"}}},
		{Type: TypeParagraph, Spans: []Span{{Text: "gone"}}, Archived: true},
	})
	assert.Equal(t, "keep", md)
}

func TestToMarkdown_TableSeparatorAfterHeader(t *testing.T) {
	md := ToMarkdown([]Block{{
		Type:            TypeTable,
		HasColumnHeader: true,
		Rows: [][][]Span{
			{{{Text: "a"}}, {{Text: "b"}}},
			{{{Text: "1"}}, {{Text: "2"}}},
		},
	}})
	assert.Equal(t, "| a | b |\n| --- | --- |\n| 1 | 2 |", md)
}

func TestRoundTrip_PreservesDocument(t *testing.T) {
	src := strings.Join([]string{
		"# Title",
		"",
		"Intro with **bold** and *italic* and `code`.",
		"",
		"- first",
		"- second",
		"",
		"```go",
		"x := 1",
		"```",
		"",
		"$$",
		"E = mc^2",
		"$$",
		"",
		"---",
		"",
		"> quoted",
	}, "\n")

	assert.Equal(t, src, ToMarkdown(FromMarkdown(src)))
}

func TestRoundTrip_NestedList(t *testing.T) {
	src := "- **bold** parent\n  - *italic* child"
	assert.Equal(t, src, ToMarkdown(FromMarkdown(src)))
}

func TestRoundTrip_Idempotent(t *testing.T) {
	src := "# H\n\npara with $x$ math\n\n| a |\n| --- |\n| 1 |"
	once := ToMarkdown(FromMarkdown(src))
	twice := ToMarkdown(FromMarkdown(once))
	assert.Equal(t, once, twice)
}
