package services

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"paper-shelf/config"
	"paper-shelf/models"
)

// Edge-TTS: der frei nutzbare Speech-Endpunkt des Edge-Browsers.
const (
	edgeTTSEndpoint = "wss://speech.platform.bing.com/consumer/speech/synthesize/readaloud/edge/v1"
	edgeTTSToken    = "6A5AA1D4EAFF4E9FB37E23D68491D6F4"
	outputFormat    = "audio-24khz-48kbitrate-mono-mp3"
)

var (
	codeBlockRe   = regexp.MustCompile("(?s)```.*?```")
	displayMathRe = regexp.MustCompile(`(?s)\$\$.*?\$\$`)
	inlineMathRe  = regexp.MustCompile(`\$[^$\n]+\$`)
	inlineCodeRe  = regexp.MustCompile("`[^`]*`")
	linkRe        = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	headingRe     = regexp.MustCompile(`(?m)^#+\s*`)
	emphasisRe    = regexp.MustCompile(`[*_~]{1,3}`)
	tableRowRe    = regexp.MustCompile(`(?m)^\|.*\|\s*$`)
	bulletRe      = regexp.MustCompile(`(?m)^\s*[-+*]\s+`)
	multiSpaceRe  = regexp.MustCompile(`[ \t]+`)
	multiBlankRe  = regexp.MustCompile(`\n{3,}`)
)

// PrepareSpeechText macht aus einer Markdown-Summary vorlesbaren Text:
// Code, Formeln und Tabellen fliegen raus, Auszeichnung wird entfernt,
// vorneweg kommt ein gesprochener Einleitungssatz.
func PrepareSpeechText(p *models.Paper, summary string) string {
	text := StripSummaryWrapper(summary)
	text = codeBlockRe.ReplaceAllString(text, "")
	text = displayMathRe.ReplaceAllString(text, "")
	text = inlineMathRe.ReplaceAllString(text, "")
	text = inlineCodeRe.ReplaceAllString(text, "")
	text = linkRe.ReplaceAllString(text, "$1")
	text = tableRowRe.ReplaceAllString(text, "")
	text = headingRe.ReplaceAllString(text, "")
	text = bulletRe.ReplaceAllString(text, "")
	text = emphasisRe.ReplaceAllString(text, "")
	text = multiSpaceRe.ReplaceAllString(text, " ")
	text = multiBlankRe.ReplaceAllString(text, "\n\n")

	return speechIntro(p) + "\n\n" + strings.TrimSpace(text)
}

// speechIntro baut den Einleitungssatz. Mehr als drei Autoren werden
// auf die ersten drei plus "and others" gekürzt.
func speechIntro(p *models.Paper) string {
	label := "paper"
	if p.Source == models.SourceWeb {
		label = "article"
	}
	authors := p.Authors
	if len(authors) > 3 {
		authors = append(append([]string{}, authors[:3]...), "and others")
	}
	if len(authors) == 0 {
		return fmt.Sprintf("This is a summary of the %s: %s.", label, p.Title)
	}
	return fmt.Sprintf("This is a summary of the %s: %s, by %s.", label, p.Title, strings.Join(authors, ", "))
}

// TTSService synthetisiert Sprache über den Edge-TTS-Websocket.
type TTSService struct {
	Config   *config.Config
	Logger   *zap.Logger
	Endpoint string
}

// NewTTSService erstellt den TTS-Dienst.
func NewTTSService(cfg *config.Config, logger *zap.Logger) *TTSService {
	return &TTSService{Config: cfg, Logger: logger, Endpoint: edgeTTSEndpoint}
}

// Synthesize wandelt Text in MP3-Daten um.
func (t *TTSService) Synthesize(ctx context.Context, text string) ([]byte, error) {
	connID, err := randomHex(16)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s?TrustedClientToken=%s&ConnectionId=%s", t.Endpoint, edgeTTSToken, connID)

	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: map[string][]string{
			"Origin": {"chrome-extension://jdiccldimpdaibmpdkjnbmckianbfold"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("edge-tts verbinden: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	conn.SetReadLimit(1 << 22)

	timestamp := time.Now().UTC().Format("Mon Jan 02 2006 15:04:05 GMT+0000 (Coordinated Universal Time)")
	configMsg := fmt.Sprintf(
		"X-Timestamp:%s\r\nContent-Type:application/json; charset=utf-8\r\nPath:speech.config\r\n\r\n"+
			`{"context":{"synthesis":{"audio":{"metadataoptions":{"sentenceBoundaryEnabled":"false","wordBoundaryEnabled":"false"},"outputFormat":"%s"}}}}`,
		timestamp, outputFormat)
	if err := conn.Write(ctx, websocket.MessageText, []byte(configMsg)); err != nil {
		return nil, fmt.Errorf("speech.config senden: %w", err)
	}

	requestID, err := randomHex(16)
	if err != nil {
		return nil, err
	}
	ssml := fmt.Sprintf(
		`<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xml:lang='en-US'><voice name='%s'><prosody rate='%s'>%s</prosody></voice></speak>`,
		t.Config.TTSVoice, t.Config.TTSRate, escapeXML(text))
	ssmlMsg := fmt.Sprintf(
		"X-RequestId:%s\r\nX-Timestamp:%s\r\nContent-Type:application/ssml+xml\r\nPath:ssml\r\n\r\n%s",
		requestID, timestamp, ssml)
	if err := conn.Write(ctx, websocket.MessageText, []byte(ssmlMsg)); err != nil {
		return nil, fmt.Errorf("ssml senden: %w", err)
	}

	var audio []byte
	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			return nil, fmt.Errorf("edge-tts lesen: %w", err)
		}
		switch msgType {
		case websocket.MessageText:
			if strings.Contains(string(data), "Path:turn.end") {
				t.Logger.Debug("Synthese abgeschlossen", zap.Int("bytes", len(audio)))
				return audio, nil
			}
		case websocket.MessageBinary:
			// Binärframes: 2 Bytes Header-Länge, dann Header, dann Audio.
			if len(data) < 2 {
				continue
			}
			headerLen := int(binary.BigEndian.Uint16(data[:2]))
			if len(data) < 2+headerLen {
				continue
			}
			header := string(data[2 : 2+headerLen])
			if strings.Contains(header, "Path:audio") {
				audio = append(audio, data[2+headerLen:]...)
			}
		}
	}
}

// EstimateDuration schätzt die Abspieldauer einer MP3 aus der Bitrate
// des Ausgabeformats (48 kbit/s).
func EstimateDuration(audio []byte) float64 {
	const bytesPerSecond = 48_000 / 8
	return float64(len(audio)) / float64(bytesPerSecond)
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func escapeXML(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	return r.Replace(s)
}
