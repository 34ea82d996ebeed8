package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"paper-shelf/config"
)

// maxInputRunes begrenzt den Dokumenttext pro Anfrage. Sehr lange Paper
// werden hart abgeschnitten, der Anfang trägt die Substanz.
const maxInputRunes = 350_000

// Summarizer erzeugt strukturierte Summaries über die Anthropic-API.
type Summarizer struct {
	Config *config.Config
	Logger *zap.Logger
	client anthropic.Client
}

// NewSummarizer erstellt einen Summarizer. Der Aufrufer muss vorher
// prüfen, ob ein API-Key konfiguriert ist.
func NewSummarizer(cfg *config.Config, logger *zap.Logger) *Summarizer {
	return &Summarizer{
		Config: cfg,
		Logger: logger,
		client: anthropic.NewClient(option.WithAPIKey(cfg.AnthropicAPIKey)),
	}
}

// Summarize schickt den Dokumenttext an das Modell und liefert die
// Summary als Markdown zurück.
func (s *Summarizer) Summarize(ctx context.Context, title, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("kein text zum zusammenfassen")
	}
	if runes := []rune(text); len(runes) > maxInputRunes {
		s.Logger.Warn("Dokument wird für die Summary gekürzt",
			zap.String("title", title),
			zap.Int("runes", len(runes)))
		text = string(runes[:maxInputRunes])
	}

	msg, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(s.Config.AnthropicModel),
		MaxTokens: s.Config.SummaryMaxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(fmt.Sprintf(userPromptTemplate, title, text))),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic-anfrage: %w", err)
	}

	var out strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	summary := strings.TrimSpace(out.String())
	if summary == "" {
		return "", fmt.Errorf("leere antwort vom modell")
	}

	s.Logger.Info("Summary erzeugt",
		zap.String("title", title),
		zap.Int64("input_tokens", msg.Usage.InputTokens),
		zap.Int64("output_tokens", msg.Usage.OutputTokens))
	return summary, nil
}
