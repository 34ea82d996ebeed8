package config

import (
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DataDir string `envconfig:"PAPER_SHELF_DATA_DIR" default:"papers"`

	HTTPPort  string `envconfig:"HTTP_PORT" default:"8321"`
	APIKey    string `envconfig:"API_KEY"`
	PublicURL string `envconfig:"PUBLIC_URL" default:"http://localhost:8321"`

	AnthropicAPIKey  string `envconfig:"ANTHROPIC_API_KEY"`
	AnthropicModel   string `envconfig:"ANTHROPIC_MODEL" default:"claude-sonnet-4-20250514"`
	SummaryMaxTokens int64  `envconfig:"SUMMARY_MAX_TOKENS" default:"8192"`

	NotionToken           string `envconfig:"NOTION_TOKEN"`
	NotionDatabaseID      string `envconfig:"NOTION_DATABASE_ID"`
	NotionVersion         string `envconfig:"NOTION_VERSION" default:"2022-06-28"`
	NotionArchiveOnDelete bool   `envconfig:"NOTION_ARCHIVE_ON_DELETE" default:"false"`
	SyncCronSchedule      string `envconfig:"SYNC_CRON_SCHEDULE"`

	TTSVoice string `envconfig:"TTS_VOICE" default:"en-US-AndrewMultilingualNeural"`
	TTSRate  string `envconfig:"TTS_RATE" default:"+10%"`

	// Optionaler S3-Spiegel für die Podcast-Audiodateien
	S3Key    string `envconfig:"SHELF_S3_KEY"`
	S3Secret string `envconfig:"SHELF_S3_SECRET"`
	S3URL    string `envconfig:"SHELF_S3_URL"`
	S3Region string `envconfig:"SHELF_S3_REGION" default:"eu-central-1"`
	S3Bucket string `envconfig:"SHELF_S3_BUCKET"`
}

// IndexPath gibt den Pfad zur Index-Datei im Datenverzeichnis zurück.
func (c *Config) IndexPath() string {
	return filepath.Join(c.DataDir, "index.json")
}

// FeedPath gibt den Pfad zur generierten Podcast-Feed-Datei zurück.
func (c *Config) FeedPath() string {
	return filepath.Join(c.DataDir, "feed.xml")
}

// NotionEnabled meldet, ob die Notion-Synchronisation konfiguriert ist.
func (c *Config) NotionEnabled() bool {
	return c.NotionToken != "" && c.NotionDatabaseID != ""
}

// SummarizerEnabled meldet, ob ein Anthropic-API-Key vorhanden ist.
func (c *Config) SummarizerEnabled() bool {
	return c.AnthropicAPIKey != ""
}

// S3Enabled meldet, ob der optionale S3-Spiegel konfiguriert ist.
func (c *Config) S3Enabled() bool {
	return c.S3Key != "" && c.S3Secret != "" && c.S3URL != "" && c.S3Bucket != ""
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
