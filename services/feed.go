package services

import (
	"encoding/xml"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"paper-shelf/config"
	"paper-shelf/storage"
)

// rssFeed bildet einen RSS-2.0-Feed mit iTunes-Erweiterung ab. Die
// Podcast-Clients erwarten die itunes:-Tags, deshalb explizite Structs
// statt eines generischen Feed-Writers.
type rssFeed struct {
	XMLName  xml.Name   `xml:"rss"`
	Version  string     `xml:"version,attr"`
	ITunesNS string     `xml:"xmlns:itunes,attr"`
	Channel  rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title          string    `xml:"title"`
	Link           string    `xml:"link"`
	Description    string    `xml:"description"`
	Language       string    `xml:"language"`
	LastBuildDate  string    `xml:"lastBuildDate"`
	ITunesAuthor   string    `xml:"itunes:author"`
	ITunesExplicit string    `xml:"itunes:explicit"`
	Items          []rssItem `xml:"item"`
}

type rssItem struct {
	Title          string       `xml:"title"`
	Description    string       `xml:"description"`
	GUID           rssGUID      `xml:"guid"`
	PubDate        string       `xml:"pubDate"`
	Enclosure      rssEnclosure `xml:"enclosure"`
	ITunesAuthor   string       `xml:"itunes:author,omitempty"`
	ITunesDuration string       `xml:"itunes:duration,omitempty"`
}

type rssGUID struct {
	IsPermaLink string `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}

// FeedService erzeugt den Podcast-Feed aus den Papers mit Audio.
type FeedService struct {
	Config *config.Config
	Store  *storage.Store
	Logger *zap.Logger
}

// NewFeedService erstellt den Feed-Dienst.
func NewFeedService(cfg *config.Config, store *storage.Store, logger *zap.Logger) *FeedService {
	return &FeedService{Config: cfg, Store: store, Logger: logger}
}

// Generate baut das Feed-XML für alle nicht archivierten Papers mit
// Audiodatei, neueste zuerst.
func (f *FeedService) Generate() ([]byte, error) {
	papers, err := f.Store.List("date_added")
	if err != nil {
		return nil, err
	}

	channel := rssChannel{
		Title:          "Paper Shelf",
		Link:           f.Config.PublicURL,
		Description:    "Audio summaries of research papers and articles.",
		Language:       "en-us",
		LastBuildDate:  time.Now().UTC().Format(time.RFC1123Z),
		ITunesAuthor:   "Paper Shelf",
		ITunesExplicit: "false",
	}

	// Neueste zuerst.
	for i := len(papers) - 1; i >= 0; i-- {
		p := papers[i]
		if !p.HasAudio || p.Archived {
			continue
		}
		size := int64(0)
		if info, err := os.Stat(f.Store.AudioPath(p.ID)); err == nil {
			size = info.Size()
		}
		desc := fmt.Sprintf("Audio summary of %q.", p.Title)
		if p.Abstract != "" {
			desc = truncateDescription(p.Abstract, 500)
		}
		channel.Items = append(channel.Items, rssItem{
			Title:       p.Title,
			Description: desc,
			GUID:        rssGUID{IsPermaLink: "false", Value: p.ID},
			PubDate:     p.DateAdded.UTC().Format(time.RFC1123Z),
			Enclosure: rssEnclosure{
				URL:    f.audioURL(p.ID),
				Length: size,
				Type:   "audio/mpeg",
			},
			ITunesAuthor:   p.AuthorLine(),
			ITunesDuration: formatDuration(p.AudioDuration),
		})
	}

	feed := rssFeed{
		Version:  "2.0",
		ITunesNS: "http://www.itunes.com/dtds/podcast-1.0.dtd",
		Channel:  channel,
	}
	data, err := xml.MarshalIndent(feed, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), data...), nil
}

// Write schreibt den Feed ins Datenverzeichnis.
func (f *FeedService) Write() error {
	data, err := f.Generate()
	if err != nil {
		return err
	}
	if err := os.WriteFile(f.Config.FeedPath(), data, 0o644); err != nil {
		return fmt.Errorf("feed schreiben: %w", err)
	}
	f.Logger.Info("Podcast-Feed geschrieben", zap.String("path", f.Config.FeedPath()))
	return nil
}

func (f *FeedService) audioURL(id string) string {
	base := strings.TrimSuffix(f.Config.PublicURL, "/")
	return base + "/audio/" + url.PathEscape(id+".mp3")
}

// truncateDescription kürzt den Abstract auf die angegebene Zeichenzahl,
// ohne UTF-8-Sequenzen zu zerschneiden.
func truncateDescription(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func formatDuration(seconds float64) string {
	if seconds <= 0 {
		return ""
	}
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}
