package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"paper-shelf/models"
)

var listSort string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Alle Papers im Index anzeigen",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		papers, err := a.Store.List(listSort)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tTAGS\tTITEL")
		for _, p := range papers {
			title := p.Title
			if p.Archived {
				title += " [archiviert]"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.ID, p.ReadingStatus, strings.Join(p.Tags, ","), title)
		}
		return w.Flush()
	},
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Details eines Papers anzeigen",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		p, err := a.Store.Get(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("ID:         %s\n", p.ID)
		fmt.Printf("Titel:      %s\n", p.Title)
		fmt.Printf("Quelle:     %s\n", p.Source)
		if p.ArxivID != "" {
			fmt.Printf("arXiv:      %s\n", p.ArxivID)
		}
		if p.SourceURL != "" {
			fmt.Printf("URL:        %s\n", p.SourceURL)
		}
		if line := p.AuthorLine(); line != "" {
			fmt.Printf("Autoren:    %s\n", line)
		}
		fmt.Printf("Status:     %s\n", p.ReadingStatus)
		if len(p.Tags) > 0 {
			fmt.Printf("Tags:       %s\n", strings.Join(p.Tags, ", "))
		}
		fmt.Printf("Hinzugefügt: %s\n", p.DateAdded.Format("2006-01-02"))
		fmt.Printf("Geändert:   %s\n", p.LocalModifiedAt.Format(time.RFC3339))
		fmt.Printf("Summary: %v  Audio: %v  PDF: %v\n", p.HasSummary, p.HasAudio, p.HasPDF)
		if p.NotionPageID != "" {
			fmt.Printf("Notion:     %s\n", p.NotionPageID)
		}
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Paper samt Summary, Audio und PDF löschen",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.Store.Delete(args[0]); err != nil {
			return err
		}
		fmt.Printf("%s gelöscht.\n", args[0])
		return nil
	},
}

var tagCmd = &cobra.Command{
	Use:   "tag <id> <tag>...",
	Short: "Tags zu einem Paper hinzufügen",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		p, err := a.Store.AddTags(args[0], args[1:])
		if err != nil {
			return err
		}
		fmt.Printf("Tags: %s\n", strings.Join(p.Tags, ", "))
		return nil
	},
}

var untagCmd = &cobra.Command{
	Use:   "untag <id> <tag>",
	Short: "Einen Tag von einem Paper entfernen",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		p, err := a.Store.RemoveTag(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Tags: %s\n", strings.Join(p.Tags, ", "))
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <id> <status>",
	Short: "Lesestatus setzen (" + statusList() + ")",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, ok := models.ParseReadingStatus(args[1])
		if !ok {
			return fmt.Errorf("unbekannter status %q, gültig: %s", args[1], statusList())
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		p, err := a.Store.SetReadingStatus(args[0], status)
		if err != nil {
			return err
		}
		fmt.Printf("%s -> %s\n", p.ID, p.ReadingStatus)
		return nil
	},
}

var archiveUndo bool

var archiveCmd = &cobra.Command{
	Use:   "archive <id>",
	Short: "Paper archivieren (--undo hebt es wieder auf)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		p, err := a.Store.SetArchived(args[0], !archiveUndo, time.Now().UTC())
		if err != nil {
			return err
		}
		if p.Archived {
			fmt.Printf("%s archiviert.\n", p.ID)
		} else {
			fmt.Printf("%s wiederhergestellt.\n", p.ID)
		}
		return nil
	},
}

func statusList() string {
	parts := make([]string, len(models.ValidStatuses))
	for i, s := range models.ValidStatuses {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}

func init() {
	listCmd.Flags().StringVar(&listSort, "sort", "date_added", "Sortierung: date_added, title, arxiv_id")
	archiveCmd.Flags().BoolVar(&archiveUndo, "undo", false, "Archivierung aufheben")
	rootCmd.AddCommand(listCmd, showCmd, removeCmd, tagCmd, untagCmd, statusCmd, archiveCmd)
}
