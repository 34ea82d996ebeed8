// Package pdfx extrahiert Text aus PDF-Dateien für den Summarizer.
package pdfx

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractText liest den reinen Text aller Seiten. Seiten, die sich nicht
// dekodieren lassen, werden übersprungen statt den ganzen Import zu kippen.
func ExtractText(path string) (string, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("pdf öffnen: %w", err)
	}
	defer file.Close()

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}

	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", fmt.Errorf("kein text in %s extrahierbar", path)
	}
	return out, nil
}

// PageCount liefert die Seitenzahl eines PDFs.
func PageCount(path string) (int, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("pdf öffnen: %w", err)
	}
	defer file.Close()
	return reader.NumPage(), nil
}
