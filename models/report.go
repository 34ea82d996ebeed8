package models

import (
	"fmt"
	"time"
)

// SyncReport sammelt die Ergebnisse eines Synchronisationslaufs. StartedAt
// ist zugleich der Sync-Zeitstempel, der auf alle berührten Papers
// geschrieben wird; ein fehlendes FinishedAt kennzeichnet einen
// abgebrochenen Lauf.
type SyncReport struct {
	DryRun     bool       `json:"dry_run"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	NotionCreated  int `json:"notion_created"`
	NotionUpdated  int `json:"notion_updated"`
	NotionArchived int `json:"notion_archived"`
	LocalCreated   int `json:"local_created"`
	LocalUpdated   int `json:"local_updated"`
	LocalArchived  int `json:"local_archived"`
	Skipped        int `json:"skipped"`

	Actions  []string      `json:"actions"`
	Errors   []string      `json:"errors,omitempty"`
	Warnings []string      `json:"warnings,omitempty"`
	Duration time.Duration `json:"duration"`
}

// NewSyncReport beginnt einen Bericht mit gestempelter Startzeit.
func NewSyncReport(dryRun bool) *SyncReport {
	return &SyncReport{DryRun: dryRun, StartedAt: time.Now().UTC()}
}

// Finalize schließt den Lauf ab und setzt Endzeit und Dauer.
func (r *SyncReport) Finalize() {
	now := time.Now().UTC()
	r.FinishedAt = &now
	r.Duration = now.Sub(r.StartedAt)
}

// HasChanges meldet, ob der Lauf irgendetwas verändert hätte bzw. hat.
func (r *SyncReport) HasChanges() bool {
	return r.NotionCreated+r.NotionUpdated+r.NotionArchived+
		r.LocalCreated+r.LocalUpdated+r.LocalArchived > 0
}

// AddAction protokolliert eine (geplante) Änderung an einem Datensatz.
// Trockenläufe schreiben dieselben Einträge wie echte Läufe.
func (r *SyncReport) AddAction(format string, args ...any) {
	r.Actions = append(r.Actions, fmt.Sprintf(format, args...))
}

// AddError hängt einen Fehler für einen einzelnen Datensatz an.
func (r *SyncReport) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// AddWarning hängt eine Warnung an.
func (r *SyncReport) AddWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}
