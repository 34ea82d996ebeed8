package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"paper-shelf/blocks"
	"paper-shelf/config"
	"paper-shelf/models"
	"paper-shelf/notion"
	"paper-shelf/providers/arxiv"
	"paper-shelf/storage"
)

// RemoteStore ist die Schnittstelle zum Notion-Client. Die Indirektion
// erlaubt Fakes in Tests.
type RemoteStore interface {
	ListPapers(ctx context.Context) ([]*notion.RemotePaper, error)
	CreatePage(ctx context.Context, paper *models.Paper, body []blocks.Block) (*notion.RemotePaper, error)
	UpdatePage(ctx context.Context, pageID string, paper *models.Paper, body []blocks.Block) (*notion.RemotePaper, error)
	SetArchived(ctx context.Context, pageID string, archived bool) error
	AttachAudio(ctx context.Context, pageID, path string) error
}

// MetadataFetcher liefert arXiv-Metadaten für Importe von Remote-Seiten.
type MetadataFetcher interface {
	FetchMetadata(ctx context.Context, arxivID string) (*arxiv.Metadata, error)
}

// SyncOptions steuern einen Synchronisationslauf.
type SyncOptions struct {
	// DryRun durchläuft exakt dieselben Entscheidungen, unterdrückt aber
	// jede Schreiboperation auf beiden Seiten.
	DryRun bool
	// Paper beschränkt den Lauf auf einen Datensatz: lokale ID,
	// Notion-Seiten-ID, arXiv-ID oder Slug.
	Paper string
}

// SyncService gleicht die lokale Bibliothek mit der Notion-Datenbank ab.
// Konfliktauflösung ist last-write-wins über die Zeitstempel beider Seiten.
type SyncService struct {
	Config *config.Config
	Store  *storage.Store
	Remote RemoteStore
	Arxiv  MetadataFetcher
	Logger *zap.Logger
}

// NewSyncService erstellt den Sync-Dienst.
func NewSyncService(cfg *config.Config, store *storage.Store, remote RemoteStore, fetcher MetadataFetcher, logger *zap.Logger) *SyncService {
	return &SyncService{Config: cfg, Store: store, Remote: remote, Arxiv: fetcher, Logger: logger}
}

// Run führt einen vollständigen Abgleich aus. Fehler einzelner
// Datensätze landen im Report, nur Konfigurations- und Schemafehler
// brechen den Lauf ab.
func (s *SyncService) Run(ctx context.Context, opts SyncOptions) (*models.SyncReport, error) {
	if !s.Config.NotionEnabled() {
		return nil, fmt.Errorf("notion-sync ist nicht konfiguriert (NOTION_TOKEN und NOTION_DATABASE_ID setzen)")
	}

	report := models.NewSyncReport(opts.DryRun)

	locals, err := s.Store.List("date_added")
	if err != nil {
		return nil, fmt.Errorf("lokalen index laden: %w", err)
	}
	remotes, err := s.Remote.ListPapers(ctx)
	if err != nil {
		return nil, fmt.Errorf("notion-seiten laden: %w", err)
	}

	if opts.Paper != "" {
		locals, remotes = filterToPaper(locals, remotes, opts.Paper)
	}

	byPage, byArxiv, bySlug := indexRemotes(remotes)
	matched := make(map[string]bool)

	for _, local := range locals {
		remote := s.matchRemote(local, byPage, byArxiv, bySlug)
		if remote != nil {
			matched[remote.PageID] = true
		}
		if err := s.reconcile(ctx, local, remote, report); err != nil {
			report.AddError("sync %s: %v", local.ID, err)
		}
	}

	for _, remote := range remotes {
		if matched[remote.PageID] {
			continue
		}
		if err := s.importRemote(ctx, remote, report); err != nil {
			report.AddError("import %s: %v", remote.PageID, err)
			report.Skipped++
		}
	}

	report.Finalize()
	s.Logger.Info("Sync abgeschlossen",
		zap.Bool("dry_run", report.DryRun),
		zap.Int("notion_created", report.NotionCreated),
		zap.Int("notion_updated", report.NotionUpdated),
		zap.Int("notion_archived", report.NotionArchived),
		zap.Int("local_created", report.LocalCreated),
		zap.Int("local_updated", report.LocalUpdated),
		zap.Int("local_archived", report.LocalArchived),
		zap.Int("skipped", report.Skipped),
		zap.Int("errors", len(report.Errors)),
		zap.Int("warnings", len(report.Warnings)),
		zap.Duration("duration", report.Duration))
	return report, nil
}

// filterToPaper schränkt beide Seiten auf den angefragten Datensatz ein.
func filterToPaper(locals []*models.Paper, remotes []*notion.RemotePaper, key string) ([]*models.Paper, []*notion.RemotePaper) {
	lowered := strings.ToLower(key)
	var keptLocals []*models.Paper
	for _, p := range locals {
		if p.ID == key || p.NotionPageID == key || p.ArxivID == key || strings.ToLower(p.SourceSlug) == lowered {
			keptLocals = append(keptLocals, p)
		}
	}
	var keptRemotes []*notion.RemotePaper
	for _, r := range remotes {
		if r.PageID == key || r.ArxivID == key || strings.ToLower(r.SourceSlug) == lowered {
			keptRemotes = append(keptRemotes, r)
		}
	}
	return keptLocals, keptRemotes
}

// indexRemotes baut die Nachschlage-Indizes. Bei doppelten arXiv-IDs
// oder Slugs gewinnt die zuletzt bearbeitete Seite.
func indexRemotes(remotes []*notion.RemotePaper) (byPage, byArxiv, bySlug map[string]*notion.RemotePaper) {
	byPage = make(map[string]*notion.RemotePaper)
	byArxiv = make(map[string]*notion.RemotePaper)
	bySlug = make(map[string]*notion.RemotePaper)
	for _, r := range remotes {
		byPage[r.PageID] = r
		if r.ArxivID != "" {
			if prev, ok := byArxiv[r.ArxivID]; !ok || r.LastEdited.After(prev.LastEdited) {
				byArxiv[r.ArxivID] = r
			}
		}
		if r.SourceSlug != "" {
			key := strings.ToLower(r.SourceSlug)
			if prev, ok := bySlug[key]; !ok || r.LastEdited.After(prev.LastEdited) {
				bySlug[key] = r
			}
		}
	}
	return byPage, byArxiv, bySlug
}

// matchRemote löst die Identität in fester Priorität auf: gespeicherte
// Seiten-ID, dann arXiv-ID, dann Slug.
func (s *SyncService) matchRemote(p *models.Paper, byPage, byArxiv, bySlug map[string]*notion.RemotePaper) *notion.RemotePaper {
	if p.NotionPageID != "" {
		if r, ok := byPage[p.NotionPageID]; ok {
			return r
		}
	}
	if p.ArxivID != "" {
		if r, ok := byArxiv[p.ArxivID]; ok {
			return r
		}
	}
	if p.SourceSlug != "" {
		if r, ok := bySlug[strings.ToLower(p.SourceSlug)]; ok {
			return r
		}
	}
	return nil
}

// reconcile wendet die Zustandsmaschine auf ein lokales Paper an.
func (s *SyncService) reconcile(ctx context.Context, local *models.Paper, remote *notion.RemotePaper, report *models.SyncReport) error {
	if remote == nil {
		return s.pushPaper(ctx, local, nil, report)
	}
	if local.Archived || remote.Archived {
		return s.propagateArchive(ctx, local, remote, report)
	}

	remoteTS := remote.RemoteModifiedAt()
	localTS := local.LocalModifiedAt
	switch {
	case remoteTS.After(localTS):
		return s.pullPaper(ctx, local, remote, report)
	case localTS.After(remoteTS):
		return s.pushPaper(ctx, local, remote, report)
	default:
		// Gleichstand: nur die Verknüpfung auffrischen, zählt nicht
		// als Änderung.
		return s.refreshLink(local, remote, report)
	}
}

// pushPaper schreibt den lokalen Stand nach Notion. remote == nil legt
// eine neue Seite an, sonst wird die bestehende komplett ersetzt.
func (s *SyncService) pushPaper(ctx context.Context, local *models.Paper, remote *notion.RemotePaper, report *models.SyncReport) error {
	summary := ""
	if local.HasSummary {
		raw, err := s.Store.LoadSummary(local.ID)
		if err != nil {
			return fmt.Errorf("summary laden: %w", err)
		}
		summary = StripSummaryWrapper(raw)
	}
	body := blocks.FromMarkdown(summary)

	if remote == nil {
		report.AddAction("create notion page for %s", local.ID)
	} else {
		report.AddAction("update notion page for %s", local.ID)
	}
	if report.DryRun {
		if remote == nil {
			report.NotionCreated++
		} else {
			report.NotionUpdated++
		}
		return nil
	}

	var (
		page *notion.RemotePaper
		err  error
	)
	if remote == nil {
		page, err = s.Remote.CreatePage(ctx, local, body)
	} else {
		page, err = s.Remote.UpdatePage(ctx, remote.PageID, local, body)
	}
	if err != nil {
		return err
	}

	if _, err := s.Store.SetNotionFields(local.ID, page.PageID, page.LastEdited, report.StartedAt); err != nil {
		return err
	}
	if remote == nil {
		report.NotionCreated++
	} else {
		report.NotionUpdated++
	}

	// Audio ist best effort: ein Fehlschlag bricht weder diesen noch
	// die folgenden Datensätze ab.
	if local.HasAudio {
		if err := s.Remote.AttachAudio(ctx, page.PageID, s.Store.AudioPath(local.ID)); err != nil {
			report.AddWarning("Audio upload failed for %s: %v", local.ID, err)
		}
	}
	return nil
}

// pullPaper übernimmt den Remote-Stand lokal. Summary, Tags und Status
// werden unabhängig voneinander verglichen; irgendeine Abweichung setzt
// LocalModifiedAt auf den Remote-Zeitstempel.
func (s *SyncService) pullPaper(ctx context.Context, local *models.Paper, remote *notion.RemotePaper, report *models.SyncReport) error {
	remoteTS := remote.RemoteModifiedAt()

	localSummary := ""
	if local.HasSummary {
		raw, err := s.Store.LoadSummary(local.ID)
		if err != nil {
			return fmt.Errorf("summary laden: %w", err)
		}
		localSummary = StripSummaryWrapper(raw)
	}
	remoteSummary := strings.TrimSpace(remote.Summary)

	summaryChanged := remoteSummary != "" && remoteSummary != localSummary
	tagsChanged := !equalTagLists(local.Tags, remote.Tags)
	status, statusOK := models.ParseReadingStatus(remote.ReadingStatus)
	statusChanged := statusOK && status != local.ReadingStatus

	if !summaryChanged && !tagsChanged && !statusChanged {
		return s.refreshLink(local, remote, report)
	}

	report.AddAction("update local record %s from notion", local.ID)
	if report.DryRun {
		report.LocalUpdated++
		return nil
	}

	if summaryChanged {
		if _, err := s.Store.SaveSummary(local.ID, FormatSummaryFile(local, remoteSummary)); err != nil {
			return err
		}
	}

	fresh, err := s.Store.Get(local.ID)
	if err != nil {
		return err
	}
	if tagsChanged {
		fresh.Tags = models.NormalizeTags(remote.Tags)
	}
	if statusChanged {
		fresh.ReadingStatus = status
		// Der Status "archived" zieht die Archiv-Felder mit, sonst
		// liefe der Zeitstempel dem Status hinterher.
		if status == models.StatusArchived {
			fresh.Archived = true
			fresh.ArchivedAt = &remoteTS
		}
	}
	fresh.LocalModifiedAt = remoteTS
	if err := s.Store.Add(fresh); err != nil {
		return err
	}
	if _, err := s.Store.SetNotionFields(local.ID, remote.PageID, remote.LastEdited, report.StartedAt); err != nil {
		return err
	}
	report.LocalUpdated++
	return nil
}

// propagateArchive zieht die archivierte Seite auf der jeweils anderen
// Seite nach. Archivierung ist monoton, hier wird nie entarchiviert.
func (s *SyncService) propagateArchive(ctx context.Context, local *models.Paper, remote *notion.RemotePaper, report *models.SyncReport) error {
	remoteTS := remote.RemoteModifiedAt()

	if remote.Archived && !local.Archived {
		report.AddAction("archive local record %s", local.ID)
		if !report.DryRun {
			if _, err := s.Store.SetArchived(local.ID, true, remoteTS); err != nil {
				return err
			}
		}
		report.LocalArchived++
	}

	if local.Archived && !remote.Archived && s.Config.NotionArchiveOnDelete {
		report.AddAction("archive notion page for %s", local.ID)
		if !report.DryRun {
			if err := s.Remote.SetArchived(ctx, remote.PageID, true); err != nil {
				return err
			}
		}
		report.NotionArchived++
	}

	return s.refreshLink(local, remote, report)
}

// importRemote legt ein lokal unbekanntes Remote-Paper neu an.
func (s *SyncService) importRemote(ctx context.Context, remote *notion.RemotePaper, report *models.SyncReport) error {
	if remote.ArxivID == "" && remote.SourceSlug == "" {
		report.AddWarning("seite %s hat weder arxiv-id noch slug, wird übersprungen", remote.PageID)
		report.Skipped++
		return nil
	}

	// Verliert eine doppelte Seite den Abgleich über LastEdited, landet
	// sie hier, obwohl das Paper lokal längst existiert. Nicht anfassen.
	localID := remote.ArxivID
	if localID == "" {
		localID = remote.SourceSlug
	}
	if _, err := s.Store.Get(localID); err == nil {
		report.Skipped++
		return nil
	}

	remoteTS := remote.RemoteModifiedAt()
	var paper *models.Paper

	if remote.ArxivID != "" {
		meta, err := s.Arxiv.FetchMetadata(ctx, remote.ArxivID)
		if err != nil {
			return fmt.Errorf("arxiv-metadaten für %s: %w", remote.ArxivID, err)
		}
		paper = &models.Paper{
			ID:        remote.ArxivID,
			Source:    models.SourceArxiv,
			ArxivID:   remote.ArxivID,
			Title:     meta.Title,
			Authors:   meta.Authors,
			Published: meta.Published,
			Abstract:  meta.Abstract,
		}
	} else {
		paper = &models.Paper{
			ID:         remote.SourceSlug,
			Source:     models.SourceWeb,
			SourceSlug: remote.SourceSlug,
			Title:      remote.Title,
			Authors:    remote.Authors,
		}
	}

	paper.Tags = models.NormalizeTags(remote.Tags)
	if status, ok := models.ParseReadingStatus(remote.ReadingStatus); ok {
		paper.ReadingStatus = status
	}
	hasSummary := strings.TrimSpace(remote.Summary) != ""
	if hasSummary {
		paper.ReadingStatus = models.StatusComplete
	}

	report.AddAction("import %s from notion", paper.ID)
	if remote.Archived {
		report.AddAction("archive local record %s", paper.ID)
	}
	if report.DryRun {
		report.LocalCreated++
		if remote.Archived {
			report.LocalArchived++
		}
		return nil
	}

	if err := s.Store.Add(paper); err != nil {
		return err
	}
	if hasSummary {
		if _, err := s.Store.SaveSummary(paper.ID, FormatSummaryFile(paper, strings.TrimSpace(remote.Summary))); err != nil {
			return err
		}
		// SaveSummary stuft auf "summarized" zurück, der Import soll
		// aber "complete" melden.
		fresh, err := s.Store.Get(paper.ID)
		if err != nil {
			return err
		}
		fresh.ReadingStatus = models.StatusComplete
		fresh.LocalModifiedAt = remoteTS
		if err := s.Store.Add(fresh); err != nil {
			return err
		}
	} else {
		fresh, err := s.Store.Get(paper.ID)
		if err != nil {
			return err
		}
		fresh.LocalModifiedAt = remoteTS
		if err := s.Store.Add(fresh); err != nil {
			return err
		}
	}
	report.LocalCreated++

	if remote.Archived {
		if _, err := s.Store.SetArchived(paper.ID, true, remoteTS); err != nil {
			return err
		}
		report.LocalArchived++
	}
	if _, err := s.Store.SetNotionFields(paper.ID, remote.PageID, remote.LastEdited, report.StartedAt); err != nil {
		return err
	}

	s.Logger.Info("Remote-Paper importiert",
		zap.String("id", paper.ID),
		zap.String("page_id", remote.PageID))
	return nil
}

// refreshLink hält Seitenverknüpfung und Sync-Stempel aktuell, ohne
// Zähler zu erhöhen. Auch ein unveränderter Datensatz bekommt den
// Zeitstempel des Laufs.
func (s *SyncService) refreshLink(local *models.Paper, remote *notion.RemotePaper, report *models.SyncReport) error {
	if report.DryRun {
		return nil
	}
	_, err := s.Store.SetNotionFields(local.ID, remote.PageID, remote.LastEdited, report.StartedAt)
	return err
}

// equalTagLists vergleicht Tag-Listen exakt: case-sensitiv und in
// Reihenfolge. Ein bloßes Umsortieren in Notion gilt als Änderung.
func equalTagLists(a, b []string) bool {
	na := models.NormalizeTags(a)
	nb := models.NormalizeTags(b)
	if len(na) != len(nb) {
		return false
	}
	for i := range na {
		if na[i] != nb[i] {
			return false
		}
	}
	return true
}
