package main

import (
	"fmt"
	"os"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"paper-shelf/config"
	"paper-shelf/notion"
	"paper-shelf/providers/arxiv"
	"paper-shelf/services"
	"paper-shelf/storage"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:           "shelf",
	Short:         "Persönliche Paper-Bibliothek mit Summaries, Podcast-Feed und Notion-Sync",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "ausführliche Logausgabe")
}

// app bündelt die für alle Kommandos gemeinsame Verdrahtung.
type app struct {
	Config *config.Config
	Logger *zap.Logger
	Store  *storage.Store
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("konfiguration laden: %w", err)
	}

	logCfg := zap.NewDevelopmentConfig()
	if !verbose {
		logCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	logger, err := logCfg.Build()
	if err != nil {
		return nil, err
	}

	return &app{
		Config: cfg,
		Logger: logger,
		Store:  storage.NewStore(cfg, logger),
	}, nil
}

func (a *app) pipeline() (*services.PipelineService, error) {
	var s3Client *awss3.Client
	if a.Config.S3Enabled() {
		var err error
		s3Client, err = storage.NewS3Client(a.Config)
		if err != nil {
			return nil, fmt.Errorf("s3-client erstellen: %w", err)
		}
	}
	return services.NewPipelineService(a.Config, a.Store, s3Client, a.Logger), nil
}

func (a *app) syncService() (*services.SyncService, error) {
	if !a.Config.NotionEnabled() {
		return nil, fmt.Errorf("notion-sync ist nicht konfiguriert (NOTION_TOKEN und NOTION_DATABASE_ID setzen)")
	}
	client := notion.NewClient(a.Config, a.Logger)
	fetcher := arxiv.NewFetcher(a.Config, a.Logger)
	return services.NewSyncService(a.Config, a.Store, client, fetcher, a.Logger), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Fehler:", err)
		os.Exit(1)
	}
}
