package services

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paper-shelf/models"
)

const sampleSummary = `# One-Pager Summary

The gist of the paper.

# Rapid Skim

- Point one
- Point two

# Glossary

**Term** - meaning.`

func TestParseSections(t *testing.T) {
	order, sections := ParseSections(sampleSummary)

	assert.Equal(t, []string{"One-Pager Summary", "Rapid Skim", "Glossary"}, order)
	assert.Equal(t, "The gist of the paper.", sections["One-Pager Summary"])
	assert.Equal(t, "- Point one\n- Point two", sections["Rapid Skim"])
}

func TestParseSections_NoHeadings(t *testing.T) {
	order, sections := ParseSections("just prose, no structure")
	assert.Nil(t, order)
	assert.Nil(t, sections)
}

func TestParseSections_IgnoresSubheadings(t *testing.T) {
	order, _ := ParseSections("# Top\n\n## Sub\n\ntext")
	assert.Equal(t, []string{"Top"}, order)
}

func TestFindOnePager(t *testing.T) {
	order, sections := ParseSections(sampleSummary)
	assert.Equal(t, "The gist of the paper.", FindOnePager(order, sections))

	// Ohne One-Pager zählt der erste Abschnitt.
	order, sections = ParseSections("# Intro\n\nfirst\n\n# Rest\n\nsecond")
	assert.Equal(t, "first", FindOnePager(order, sections))

	assert.Equal(t, "", FindOnePager(nil, nil))
}

func TestFormatSummaryFile_Arxiv(t *testing.T) {
	published := time.Date(2025, 3, 13, 0, 0, 0, 0, time.UTC)
	p := &models.Paper{
		ID:        "2503.10291",
		Source:    models.SourceArxiv,
		ArxivID:   "2503.10291",
		Title:     "A Study of Things",
		Authors:   []string{"Ada Lovelace", "Charles Babbage"},
		Published: &published,
	}

	out := FormatSummaryFile(p, "# One-Pager Summary\n\nBody.")

	assert.True(t, strings.HasPrefix(out, "---\n"))
	assert.Contains(t, out, "title: A Study of Things\n")
	// yaml.v3 quotet Skalare, die sonst als Zahl gelesen würden.
	assert.Contains(t, out, "arxiv_id: \"2503.10291\"\n")
	assert.Contains(t, out, "authors: Ada Lovelace, Charles Babbage\n")
	assert.Contains(t, out, "published: \"2025-03-13\"\n")
	assert.Contains(t, out, "# A Study of Things\n")
	assert.Contains(t, out, "**Authors:** Ada Lovelace, Charles Babbage\n")
	assert.NotContains(t, out, "source_url")
}

func TestFormatSummaryFile_Web(t *testing.T) {
	p := &models.Paper{
		ID:         "example-org-post",
		Source:     models.SourceWeb,
		SourceURL:  "https://example.org/post",
		SourceSlug: "example-org-post",
		Title:      "A Blog Post",
	}

	out := FormatSummaryFile(p, "Body.")

	assert.Contains(t, out, "source_url: https://example.org/post\n")
	assert.Contains(t, out, "source_slug: example-org-post\n")
	assert.NotContains(t, out, "arxiv_id")
	// Ohne Autoren kein Autorenkopf.
	assert.NotContains(t, out, "**Authors:**")
}

func TestStripSummaryWrapper_RoundTrip(t *testing.T) {
	p := &models.Paper{
		ID:      "2503.10291",
		Source:  models.SourceArxiv,
		ArxivID: "2503.10291",
		Title:   "A Study of Things",
		Authors: []string{"Ada Lovelace"},
	}
	body := "# One-Pager Summary\n\nThe gist.\n\n# Glossary\n\n**Term** - meaning."

	out := FormatSummaryFile(p, body)
	require.NotEqual(t, body, out)
	assert.Equal(t, body, StripSummaryWrapper(out))

	// Nochmal anwenden ändert nichts mehr.
	assert.Equal(t, body, StripSummaryWrapper(StripSummaryWrapper(out)))
}

func TestStripSummaryWrapper_KeepsLateRules(t *testing.T) {
	// Eine Trennlinie tief im Inhalt ist Inhalt, kein Kopfblock.
	body := "# Section\n\n" + strings.Repeat("x", wrapperRuleWindow) + "\n\n---\n\nafter the rule"
	assert.Equal(t, body, StripSummaryWrapper(body))
}

func TestStripSummaryWrapper_PlainContentUntouched(t *testing.T) {
	assert.Equal(t, "just text", StripSummaryWrapper("just text\n"))
}
