package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"paper-shelf/config"
	"paper-shelf/models"
)

// ErrNotFound wird gemeldet, wenn ein Paper nicht im Index steht.
var ErrNotFound = errors.New("paper nicht gefunden")

// Store verwaltet den dateibasierten Index plus die Artefakte pro Paper
// (Summary-Markdown, Audio, PDF). Der Index wird vor jeder Operation neu
// von der Platte gelesen: CLI und Server arbeiten auf demselben
// Verzeichnis, ein In-Memory-Cache würde Änderungen des jeweils anderen
// Prozesses verschlucken.
type Store struct {
	Dir    string
	Logger *zap.Logger
}

// NewStore erstellt einen Store über dem Datenverzeichnis der Konfiguration.
func NewStore(cfg *config.Config, logger *zap.Logger) *Store {
	return &Store{Dir: cfg.DataDir, Logger: logger}
}

func (s *Store) indexPath() string {
	return filepath.Join(s.Dir, "index.json")
}

func (s *Store) loadIndex() (map[string]*models.Paper, error) {
	data, err := os.ReadFile(s.indexPath())
	if errors.Is(err, os.ErrNotExist) {
		return map[string]*models.Paper{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("index lesen: %w", err)
	}
	var idx map[string]*models.Paper
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("index parsen: %w", err)
	}
	if idx == nil {
		idx = map[string]*models.Paper{}
	}
	return idx, nil
}

// saveIndex schreibt den Index atomar: erst Temp-Datei, dann Rename.
func (s *Store) saveIndex(idx map[string]*models.Paper) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.indexPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.indexPath())
}

// Add legt ein Paper an oder überschreibt den bestehenden Eintrag.
func (s *Store) Add(p *models.Paper) error {
	idx, err := s.loadIndex()
	if err != nil {
		return err
	}
	if p.DateAdded.IsZero() {
		p.DateAdded = time.Now().UTC()
	}
	if p.LocalModifiedAt.IsZero() {
		p.LocalModifiedAt = p.DateAdded
	}
	if p.ReadingStatus == "" {
		p.ReadingStatus = models.StatusUnread
	}
	p.Tags = models.NormalizeTags(p.Tags)
	idx[p.ID] = p
	return s.saveIndex(idx)
}

// Get liefert ein Paper anhand seiner ID.
func (s *Store) Get(id string) (*models.Paper, error) {
	idx, err := s.loadIndex()
	if err != nil {
		return nil, err
	}
	p, ok := idx[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return p, nil
}

// List liefert alle Papers, sortiert nach dem angegebenen Schlüssel
// (title, tag, arxiv_id, date_added; unbekannte Schlüssel fallen auf
// date_added zurück).
func (s *Store) List(sortKey string) ([]*models.Paper, error) {
	idx, err := s.loadIndex()
	if err != nil {
		return nil, err
	}
	papers := make([]*models.Paper, 0, len(idx))
	for _, p := range idx {
		papers = append(papers, p)
	}
	switch sortKey {
	case "title":
		sort.Slice(papers, func(i, j int) bool {
			return strings.ToLower(papers[i].Title) < strings.ToLower(papers[j].Title)
		})
	case "arxiv_id":
		sort.Slice(papers, func(i, j int) bool {
			return papers[i].ArxivID < papers[j].ArxivID
		})
	case "tag":
		// Papers ohne Tags kommen ans Ende.
		sort.Slice(papers, func(i, j int) bool {
			ti, tj := firstTag(papers[i]), firstTag(papers[j])
			if ti == tj {
				return papers[i].ID < papers[j].ID
			}
			if ti == "" {
				return false
			}
			if tj == "" {
				return true
			}
			return ti < tj
		})
	default:
		sort.Slice(papers, func(i, j int) bool {
			if papers[i].DateAdded.Equal(papers[j].DateAdded) {
				return papers[i].ID < papers[j].ID
			}
			return papers[i].DateAdded.Before(papers[j].DateAdded)
		})
	}
	return papers, nil
}

func firstTag(p *models.Paper) string {
	if len(p.Tags) == 0 {
		return ""
	}
	return strings.ToLower(p.Tags[0])
}

// Delete entfernt ein Paper samt aller Artefakte.
func (s *Store) Delete(id string) error {
	idx, err := s.loadIndex()
	if err != nil {
		return err
	}
	p, ok := idx[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(idx, id)
	if err := s.saveIndex(idx); err != nil {
		return err
	}
	s.removeSummaryFiles(id)
	_ = os.Remove(s.AudioPath(id))
	_ = os.Remove(s.PDFPath(id))
	s.Logger.Info("Paper gelöscht", zap.String("id", id), zap.String("title", p.Title))
	return nil
}

// AddTags ergänzt Tags und stempelt die lokale Änderung.
func (s *Store) AddTags(id string, tags []string) (*models.Paper, error) {
	return s.mutate(id, func(p *models.Paper) {
		p.Tags = models.NormalizeTags(append(p.Tags, tags...))
	})
}

// RemoveTag entfernt einen Tag. Tags sind case-sensitiv, entfernt wird
// nur der exakt angegebene.
func (s *Store) RemoveTag(id, tag string) (*models.Paper, error) {
	return s.mutate(id, func(p *models.Paper) {
		var kept []string
		for _, t := range p.Tags {
			if t != tag {
				kept = append(kept, t)
			}
		}
		p.Tags = kept
	})
}

// SetReadingStatus ändert den Status; "archived" setzt zusätzlich den
// Archivierungszeitpunkt.
func (s *Store) SetReadingStatus(id string, status models.ReadingStatus) (*models.Paper, error) {
	return s.mutate(id, func(p *models.Paper) {
		p.ReadingStatus = status
		if status == models.StatusArchived {
			now := time.Now().UTC()
			p.Archived = true
			p.ArchivedAt = &now
		}
	})
}

// SetArchived setzt oder löst das Archiv-Flag. ts ist der Zeitpunkt der
// Änderung; beim Sync kommt hier der Remote-Zeitstempel an, damit die
// Seiten danach als gleichauf gelten.
func (s *Store) SetArchived(id string, archived bool, ts time.Time) (*models.Paper, error) {
	idx, err := s.loadIndex()
	if err != nil {
		return nil, err
	}
	p, ok := idx[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	p.Archived = archived
	if archived {
		p.ReadingStatus = models.StatusArchived
		p.ArchivedAt = &ts
	} else {
		p.ReadingStatus = models.StatusUnread
		p.ArchivedAt = nil
	}
	p.LocalModifiedAt = ts
	return p, s.saveIndex(idx)
}

// SetNotionFields aktualisiert nur die Verknüpfung zur Notion-Seite.
// Bewusst ohne LocalModifiedAt-Stempel: reine Buchhaltung zählt nicht
// als inhaltliche Änderung. syncedAt ist der Zeitpunkt des Sync-Laufs
// und wird nur bei gesetztem Wert gestempelt.
func (s *Store) SetNotionFields(id, pageID string, lastEdited, syncedAt time.Time) (*models.Paper, error) {
	idx, err := s.loadIndex()
	if err != nil {
		return nil, err
	}
	p, ok := idx[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	p.NotionPageID = pageID
	p.NotionLastEdited = &lastEdited
	if !syncedAt.IsZero() {
		p.LastSyncedAt = &syncedAt
	}
	return p, s.saveIndex(idx)
}

// SaveSummary schreibt die Summary-Datei und markiert das Paper.
func (s *Store) SaveSummary(id, content string) (*models.Paper, error) {
	p, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	s.removeSummaryFiles(id)
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(s.SummaryPath(p), []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("summary schreiben: %w", err)
	}
	return s.mutate(id, func(p *models.Paper) {
		p.HasSummary = true
		if p.ReadingStatus == models.StatusUnread || p.ReadingStatus == models.StatusReading {
			p.ReadingStatus = models.StatusSummarized
		}
	})
}

// LoadSummary liest die Summary-Datei eines Papers.
func (s *Store) LoadSummary(id string) (string, error) {
	p, err := s.Get(id)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(s.SummaryPath(p))
	if err != nil {
		return "", fmt.Errorf("summary lesen: %w", err)
	}
	return string(data), nil
}

// SaveAudio legt die Audiodatei ab und markiert das Paper.
func (s *Store) SaveAudio(id string, data []byte, duration float64) (*models.Paper, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(s.AudioPath(id), data, 0o644); err != nil {
		return nil, fmt.Errorf("audio schreiben: %w", err)
	}
	return s.mutate(id, func(p *models.Paper) {
		p.HasAudio = true
		p.AudioDuration = duration
		if p.ReadingStatus == models.StatusSummarized {
			p.ReadingStatus = models.StatusAudioGenerated
		}
	})
}

// SavePDF legt das Quell-PDF ab.
func (s *Store) SavePDF(id string, data []byte) (*models.Paper, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(s.PDFPath(id), data, 0o644); err != nil {
		return nil, fmt.Errorf("pdf schreiben: %w", err)
	}
	idx, err := s.loadIndex()
	if err != nil {
		return nil, err
	}
	p, ok := idx[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	p.HasPDF = true
	return p, s.saveIndex(idx)
}

// SummaryPath liefert den Pfad der Summary-Datei für den aktuellen Titel.
func (s *Store) SummaryPath(p *models.Paper) string {
	name := fmt.Sprintf("[Paper][%s] %s.md", p.ID, models.SanitizeFilename(p.Title))
	return filepath.Join(s.Dir, name)
}

// AudioPath liefert den Pfad der Audiodatei.
func (s *Store) AudioPath(id string) string {
	return filepath.Join(s.Dir, id+".mp3")
}

// PDFPath liefert den Pfad des Quell-PDFs.
func (s *Store) PDFPath(id string) string {
	return filepath.Join(s.Dir, id+".pdf")
}

// removeSummaryFiles räumt alte Summary-Dateien weg, auch solche mit
// inzwischen geändertem Titel im Namen. Kein Glob: die eckigen Klammern
// im Dateinamen wären dort Zeichenklassen.
func (s *Store) removeSummaryFiles(id string) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return
	}
	prefix := fmt.Sprintf("[Paper][%s] ", id)
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".md") {
			_ = os.Remove(filepath.Join(s.Dir, name))
		}
	}
}

// mutate lädt den Index, wendet fn an, stempelt LocalModifiedAt und
// schreibt zurück.
func (s *Store) mutate(id string, fn func(*models.Paper)) (*models.Paper, error) {
	idx, err := s.loadIndex()
	if err != nil {
		return nil, err
	}
	p, ok := idx[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	fn(p)
	p.LocalModifiedAt = time.Now().UTC()
	return p, s.saveIndex(idx)
}
