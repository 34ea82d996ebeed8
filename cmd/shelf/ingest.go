package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"paper-shelf/providers/arxiv"
	"paper-shelf/services"
)

func pipelineOpts() services.AddOptions {
	return services.AddOptions{Tags: addTags, SkipSummary: addSkipSummary, SkipAudio: addSkipAudio}
}

var (
	addTags        []string
	addSkipSummary bool
	addSkipAudio   bool
)

var addCmd = &cobra.Command{
	Use:   "add <arxiv-id|url>",
	Short: "Paper oder Artikel aufnehmen: Metadaten, Summary, Audio, Feed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		pipeline, err := a.pipeline()
		if err != nil {
			return err
		}

		opts := pipelineOpts()
		input := args[0]

		if _, ok := arxiv.ParseInput(input); ok {
			p, err := pipeline.AddArxiv(cmd.Context(), input, opts)
			if err != nil {
				return err
			}
			fmt.Printf("Aufgenommen: %s (%s)\n", p.Title, p.ID)
			return nil
		}

		p, err := pipeline.AddWeb(cmd.Context(), input, opts)
		if err != nil {
			return err
		}
		fmt.Printf("Aufgenommen: %s (%s)\n", p.Title, p.ID)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <arxiv-id|url>",
	Short: "Paper nur mit Metadaten und PDF aufnehmen, ohne Summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		pipeline, err := a.pipeline()
		if err != nil {
			return err
		}

		opts := pipelineOpts()
		opts.SkipSummary = true
		input := args[0]

		if _, ok := arxiv.ParseInput(input); ok {
			p, err := pipeline.AddArxiv(cmd.Context(), input, opts)
			if err != nil {
				return err
			}
			fmt.Printf("Importiert: %s (%s)\n", p.Title, p.ID)
			return nil
		}

		p, err := pipeline.AddWeb(cmd.Context(), input, opts)
		if err != nil {
			return err
		}
		fmt.Printf("Importiert: %s (%s)\n", p.Title, p.ID)
		return nil
	},
}

var regenCmd = &cobra.Command{
	Use:   "regen <id>",
	Short: "Summary und Audio eines Papers neu erzeugen",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		pipeline, err := a.pipeline()
		if err != nil {
			return err
		}
		p, err := pipeline.Regenerate(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Neu erzeugt: %s (%s)\n", p.Title, p.ID)
		return nil
	},
}

var audioCmd = &cobra.Command{
	Use:   "audio <id>",
	Short: "Nur das Audio eines Papers neu erzeugen",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		pipeline, err := a.pipeline()
		if err != nil {
			return err
		}
		if err := pipeline.GenerateAudio(cmd.Context(), args[0]); err != nil {
			return err
		}
		if err := pipeline.Feed.Write(); err != nil {
			return err
		}
		fmt.Printf("Audio für %s erzeugt.\n", args[0])
		return nil
	},
}

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Podcast-Feed neu schreiben",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		pipeline, err := a.pipeline()
		if err != nil {
			return err
		}
		if err := pipeline.Feed.Write(); err != nil {
			return err
		}
		fmt.Printf("Feed geschrieben: %s\n", a.Config.FeedPath())
		return nil
	},
}

func init() {
	addCmd.Flags().StringSliceVar(&addTags, "tags", nil, "Tags für das neue Paper")
	addCmd.Flags().BoolVar(&addSkipSummary, "skip-summary", false, "nur Metadaten und PDF, keine Summary")
	addCmd.Flags().BoolVar(&addSkipAudio, "skip-audio", false, "Summary ohne Vertonung")
	importCmd.Flags().StringSliceVar(&addTags, "tags", nil, "Tags für das neue Paper")
	rootCmd.AddCommand(addCmd, importCmd, regenCmd, audioCmd, feedCmd)
}
