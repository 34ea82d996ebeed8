package services

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"paper-shelf/config"
	"paper-shelf/models"
	"paper-shelf/pdfx"
	"paper-shelf/providers/arxiv"
	"paper-shelf/providers/webarticle"
	"paper-shelf/storage"
)

// PipelineService orchestriert das Aufnehmen neuer Papers: Metadaten
// holen, Text extrahieren, zusammenfassen, vertonen, Feed neu bauen.
// Summarizer und S3-Client dürfen nil sein, dann entfallen die Schritte.
type PipelineService struct {
	Config     *config.Config
	Store      *storage.Store
	Logger     *zap.Logger
	Arxiv      *arxiv.Fetcher
	Web        *webarticle.Fetcher
	Summarizer *Summarizer
	TTS        *TTSService
	Feed       *FeedService
	S3Client   *s3.Client
}

// NewPipelineService verdrahtet die Pipeline aus der Konfiguration.
func NewPipelineService(cfg *config.Config, store *storage.Store, s3Client *s3.Client, logger *zap.Logger) *PipelineService {
	p := &PipelineService{
		Config:   cfg,
		Store:    store,
		Logger:   logger,
		Arxiv:    arxiv.NewFetcher(cfg, logger),
		Web:      webarticle.NewFetcher(cfg, logger),
		TTS:      NewTTSService(cfg, logger),
		Feed:     NewFeedService(cfg, store, logger),
		S3Client: s3Client,
	}
	if cfg.SummarizerEnabled() {
		p.Summarizer = NewSummarizer(cfg, logger)
	}
	return p
}

// AddOptions steuern die Aufnahme eines Papers.
type AddOptions struct {
	Tags []string
	// SkipSummary übernimmt nur Metadaten und PDF, ohne Modellaufruf.
	SkipSummary bool
	// SkipAudio überspringt die Vertonung.
	SkipAudio bool
}

// AddArxiv nimmt ein arXiv-Paper auf: Metadaten, PDF, Text, Summary,
// Audio, Feed.
func (p *PipelineService) AddArxiv(ctx context.Context, input string, opts AddOptions) (*models.Paper, error) {
	arxivID, ok := arxiv.ParseInput(input)
	if !ok {
		return nil, fmt.Errorf("%q ist keine arxiv-id und keine arxiv-url", input)
	}
	log := p.Logger.With(zap.String("arxiv_id", arxivID))

	if existing, err := p.Store.Get(arxivID); err == nil {
		log.Info("Paper ist bereits im Index.")
		return existing, nil
	}

	meta, err := p.Arxiv.FetchMetadata(ctx, arxivID)
	if err != nil {
		return nil, err
	}

	paper := &models.Paper{
		ID:        arxivID,
		Source:    models.SourceArxiv,
		ArxivID:   arxivID,
		Title:     meta.Title,
		Authors:   meta.Authors,
		Published: meta.Published,
		Abstract:  meta.Abstract,
		Tags:      opts.Tags,
	}
	if err := p.Store.Add(paper); err != nil {
		return nil, err
	}

	pdfData, err := p.Arxiv.DownloadPDF(ctx, arxivID)
	if err != nil {
		// Ohne PDF bleibt das Abstract als Summarizer-Eingabe.
		log.Warn("PDF-Download fehlgeschlagen", zap.Error(err))
	} else if _, err := p.Store.SavePDF(arxivID, pdfData); err != nil {
		return nil, err
	}

	text := meta.Abstract
	if pdfData != nil {
		if extracted, err := pdfx.ExtractText(p.Store.PDFPath(arxivID)); err != nil {
			log.Warn("Textextraktion fehlgeschlagen, Abstract wird verwendet", zap.Error(err))
		} else {
			text = extracted
		}
	}

	return p.finishIngest(ctx, paper, text, opts)
}

// AddWeb nimmt einen Web-Artikel auf.
func (p *PipelineService) AddWeb(ctx context.Context, rawURL string, opts AddOptions) (*models.Paper, error) {
	article, err := p.Web.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if article.Slug == "" {
		return nil, fmt.Errorf("keine brauchbare url: %s", rawURL)
	}
	log := p.Logger.With(zap.String("slug", article.Slug))

	if existing, err := p.Store.Get(article.Slug); err == nil {
		log.Info("Artikel ist bereits im Index.")
		return existing, nil
	}

	paper := &models.Paper{
		ID:         article.Slug,
		Source:     models.SourceWeb,
		SourceURL:  article.URL,
		SourceSlug: article.Slug,
		Title:      article.Title,
		Published:  article.Published,
		Abstract:   article.Description,
		Tags:       opts.Tags,
	}
	if article.Author != "" {
		paper.Authors = []string{article.Author}
	}
	if err := p.Store.Add(paper); err != nil {
		return nil, err
	}

	return p.finishIngest(ctx, paper, article.Markdown, opts)
}

// finishIngest fährt die gemeinsame Schlussstrecke: Summary, Audio,
// Feed, optionaler S3-Spiegel. Audio und Spiegel sind best effort.
func (p *PipelineService) finishIngest(ctx context.Context, paper *models.Paper, text string, opts AddOptions) (*models.Paper, error) {
	log := p.Logger.With(zap.String("id", paper.ID))

	if opts.SkipSummary || p.Summarizer == nil {
		if p.Summarizer == nil && !opts.SkipSummary {
			log.Warn("Kein Anthropic-API-Key konfiguriert, Paper wird ohne Summary aufgenommen.")
		}
		return p.Store.Get(paper.ID)
	}

	summary, err := p.Summarizer.Summarize(ctx, paper.Title, text)
	if err != nil {
		return nil, fmt.Errorf("summary für %s: %w", paper.ID, err)
	}
	if _, err := p.Store.SaveSummary(paper.ID, FormatSummaryFile(paper, summary)); err != nil {
		return nil, err
	}

	if !opts.SkipAudio {
		if err := p.GenerateAudio(ctx, paper.ID); err != nil {
			log.Warn("Audio-Erzeugung fehlgeschlagen", zap.Error(err))
		}
	}

	if err := p.Feed.Write(); err != nil {
		log.Warn("Feed konnte nicht geschrieben werden", zap.Error(err))
	}
	return p.Store.Get(paper.ID)
}

// GenerateAudio vertont den One-Pager eines Papers und spiegelt die
// Datei optional nach S3.
func (p *PipelineService) GenerateAudio(ctx context.Context, paperID string) error {
	paper, err := p.Store.Get(paperID)
	if err != nil {
		return err
	}
	raw, err := p.Store.LoadSummary(paperID)
	if err != nil {
		return err
	}

	order, sections := ParseSections(StripSummaryWrapper(raw))
	spoken := FindOnePager(order, sections)
	if spoken == "" {
		spoken = StripSummaryWrapper(raw)
	}
	speech := PrepareSpeechText(paper, spoken)

	audio, err := p.TTS.Synthesize(ctx, speech)
	if err != nil {
		return err
	}
	if _, err := p.Store.SaveAudio(paperID, audio, EstimateDuration(audio)); err != nil {
		return err
	}

	if p.S3Client != nil && p.Config.S3Enabled() {
		link, err := storage.MirrorAudio(p.S3Client, p.Config, p.Store, paperID)
		if err != nil {
			p.Logger.Warn("S3-Spiegel fehlgeschlagen", zap.String("id", paperID), zap.Error(err))
		} else {
			p.Logger.Info("Audio nach S3 gespiegelt", zap.String("id", paperID), zap.String("link", link))
		}
	}
	return nil
}

// Regenerate erzeugt Summary und Audio für ein vorhandenes Paper neu.
func (p *PipelineService) Regenerate(ctx context.Context, paperID string) (*models.Paper, error) {
	paper, err := p.Store.Get(paperID)
	if err != nil {
		return nil, err
	}

	var text string
	switch paper.Source {
	case models.SourceArxiv:
		if paper.HasPDF {
			text, err = pdfx.ExtractText(p.Store.PDFPath(paperID))
			if err != nil {
				text = paper.Abstract
			}
		} else {
			text = paper.Abstract
		}
	case models.SourceWeb:
		article, err := p.Web.Fetch(ctx, paper.SourceURL)
		if err != nil {
			return nil, err
		}
		text = article.Markdown
	default:
		return nil, fmt.Errorf("unbekannte quelle %q", paper.Source)
	}

	start := time.Now()
	result, err := p.finishIngest(ctx, paper, text, AddOptions{})
	if err != nil {
		return nil, err
	}
	p.Logger.Info("Paper neu generiert",
		zap.String("id", paperID),
		zap.Duration("duration", time.Since(start)))
	return result, nil
}
