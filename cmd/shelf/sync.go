package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"paper-shelf/models"
	"paper-shelf/services"
)

var (
	syncDryRun bool
	syncPaper  string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Lokale Bibliothek mit der Notion-Datenbank abgleichen",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		svc, err := a.syncService()
		if err != nil {
			return err
		}

		report, err := svc.Run(cmd.Context(), services.SyncOptions{
			DryRun: syncDryRun,
			Paper:  syncPaper,
		})
		if err != nil {
			return err
		}
		printReport(report)
		return nil
	},
}

func printReport(r *models.SyncReport) {
	if r.DryRun {
		fmt.Println("Probelauf, es wurde nichts geschrieben.")
	}
	fmt.Printf("Notion:  %d neu, %d aktualisiert, %d archiviert\n",
		r.NotionCreated, r.NotionUpdated, r.NotionArchived)
	fmt.Printf("Lokal:   %d neu, %d aktualisiert, %d archiviert\n",
		r.LocalCreated, r.LocalUpdated, r.LocalArchived)
	if r.Skipped > 0 {
		fmt.Printf("Übersprungen: %d\n", r.Skipped)
	}
	for _, a := range r.Actions {
		fmt.Println("  -", a)
	}
	for _, w := range r.Warnings {
		fmt.Println("Warnung:", w)
	}
	for _, e := range r.Errors {
		fmt.Println("Fehler:", e)
	}
	fmt.Printf("Dauer: %s\n", r.Duration.Round(time.Millisecond))
}

func init() {
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "Entscheidungen nur anzeigen, nichts schreiben")
	syncCmd.Flags().StringVar(&syncPaper, "paper", "", "Abgleich auf ein Paper beschränken (ID, Seiten-ID, arXiv-ID oder Slug)")
	rootCmd.AddCommand(syncCmd)
}
