package services

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"paper-shelf/models"
)

var sectionHeadingRe = regexp.MustCompile(`(?m)^#\s+(.+)$`)

// ParseSections zerlegt eine Summary an den Top-Level-Überschriften.
// Die Reihenfolge der Schlüssel entspricht dem Dokument.
func ParseSections(markdown string) ([]string, map[string]string) {
	matches := sectionHeadingRe.FindAllStringSubmatchIndex(markdown, -1)
	if len(matches) == 0 {
		return nil, nil
	}
	var order []string
	sections := make(map[string]string, len(matches))
	for i, m := range matches {
		title := strings.TrimSpace(markdown[m[2]:m[3]])
		end := len(markdown)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		body := strings.TrimSpace(markdown[m[1]:end])
		order = append(order, title)
		sections[title] = body
	}
	return order, sections
}

// FindOnePager sucht den One-Pager-Abschnitt; gibt es keinen, zählt der
// erste Abschnitt.
func FindOnePager(order []string, sections map[string]string) string {
	for _, title := range order {
		lowered := strings.ToLower(title)
		if strings.Contains(lowered, "one") && strings.Contains(lowered, "pager") {
			return sections[title]
		}
	}
	if len(order) > 0 {
		return sections[order[0]]
	}
	return ""
}

// FormatSummaryFile verpackt eine Summary in die lokale Dateiform:
// YAML-Front-Matter, Titel-/Autorenkopf, Trennlinie, Inhalt.
func FormatSummaryFile(p *models.Paper, summary string) string {
	var front strings.Builder
	front.WriteString("---\n")
	writeYAMLField(&front, "title", p.Title)
	if p.Source == models.SourceWeb {
		writeYAMLField(&front, "source_url", p.SourceURL)
		writeYAMLField(&front, "source_slug", p.SourceSlug)
	} else {
		writeYAMLField(&front, "arxiv_id", p.ArxivID)
	}
	writeYAMLField(&front, "authors", p.AuthorLine())
	if p.Published != nil {
		writeYAMLField(&front, "published", p.Published.Format("2006-01-02"))
	}
	writeYAMLField(&front, "generated", time.Now().UTC().Format("2006-01-02"))
	front.WriteString("---\n")

	var header strings.Builder
	header.WriteString("# " + p.Title + "\n")
	if line := p.AuthorLine(); line != "" {
		header.WriteString("\n**Authors:** " + line + "\n")
	}
	header.WriteString("\n---\n")

	return front.String() + "\n" + header.String() + "\n" + strings.TrimSpace(summary) + "\n"
}

// writeYAMLField serialisiert genau ein Feld, damit die Reihenfolge im
// Front-Matter stabil bleibt (yaml.Marshal über eine Map würde sie
// würfeln).
func writeYAMLField(b *strings.Builder, key, value string) {
	if value == "" {
		return
	}
	out, err := yaml.Marshal(map[string]string{key: value})
	if err != nil {
		fmt.Fprintf(b, "%s: %q\n", key, value)
		return
	}
	b.Write(out)
}

// wrapperRuleWindow begrenzt, wie weit hinter dem Front-Matter die
// Trennlinie des Kopfblocks gesucht wird. Eine spätere Trennlinie ist
// Inhalt und bleibt stehen.
const wrapperRuleWindow = 400

// StripSummaryWrapper entfernt Front-Matter und Kopfblock einer lokalen
// Summary-Datei und lässt den reinen Inhalt übrig.
func StripSummaryWrapper(content string) string {
	body := content
	if strings.HasPrefix(body, "---\n") {
		rest := body[len("---\n"):]
		if end := strings.Index(rest, "\n---\n"); end >= 0 {
			body = rest[end+len("\n---\n"):]
		}
	}
	trimmed := strings.TrimLeft(body, "\n")
	if idx := strings.Index(trimmed, "\n---\n"); idx >= 0 && idx < wrapperRuleWindow {
		trimmed = trimmed[idx+len("\n---\n"):]
	}
	return strings.TrimSpace(trimmed)
}
