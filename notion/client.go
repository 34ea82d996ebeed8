package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"paper-shelf/blocks"
	"paper-shelf/config"
	"paper-shelf/models"
)

var httpClient = &http.Client{Timeout: 60 * time.Second}

const defaultBaseURL = "https://api.notion.com/v1"

// pageBatchSize ist das API-Limit für Query-Seiten und Children-Appends.
const pageBatchSize = 100

// expectedProperties beschreibt das Datenbankschema, das der Client
// voraussetzt: erwarteter Name → Property-Typ.
var expectedProperties = map[string]string{
	"arxiv_id":              "rich_text",
	"title":                 "title",
	"authors":               "rich_text",
	"tags":                  "multi_select",
	"reading_status":        "select",
	"summary_last_modified": "date",
	"local_last_modified":   "date",
	"archived":              "checkbox",
}

var optionalProperties = map[string]string{
	"source_slug": "rich_text",
}

// Client kapselt alle Zugriffe auf die Notion-API. Fehlgeschlagene
// Anfragen werden nicht wiederholt; Retries sind Sache der Aufrufer.
type Client struct {
	Config  *config.Config
	Logger  *zap.Logger
	BaseURL string

	// propNames wird bei der ersten Schema-Erkennung gefüllt:
	// erwarteter Name → tatsächlicher Property-Name der Datenbank.
	propNames map[string]string
}

// NewClient erstellt einen Notion-Client.
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{Config: cfg, Logger: logger, BaseURL: defaultBaseURL}
}

// do schickt eine Anfrage und dekodiert die Antwort. Fehlerantworten
// werden als APIError mit Status, x-request-id und den ersten 1000
// Zeichen des Bodys gemeldet.
func (c *Client) do(ctx context.Context, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("request serialisieren: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.Config.NotionToken)
	req.Header.Set("Notion-Version", c.Config.NotionVersion)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return c.apiError(resp, data)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("antwort dekodieren: %w", err)
		}
	}
	return nil
}

func (c *Client) apiError(resp *http.Response, data []byte) error {
	body := string(data)
	if len(body) > 1000 {
		body = body[:1000]
	}
	return &APIError{
		Status:    resp.StatusCode,
		RequestID: resp.Header.Get("x-request-id"),
		Body:      body,
	}
}

// EnsureSchema prüft beim ersten Aufruf, ob die Datenbank alle erwarteten
// Properties trägt, und merkt sich die tatsächlichen Namen. Der Abgleich
// ist case-insensitiv; für den Titel wird zusätzlich "Name" akzeptiert.
func (c *Client) EnsureSchema(ctx context.Context) error {
	if c.propNames != nil {
		return nil
	}

	var db databaseResponse
	if err := c.do(ctx, http.MethodGet, "/databases/"+c.Config.NotionDatabaseID, nil, &db); err != nil {
		return fmt.Errorf("datenbank-schema laden: %w", err)
	}

	byLower := make(map[string]string, len(db.Properties))
	for name := range db.Properties {
		byLower[strings.ToLower(name)] = name
	}

	resolve := func(expected, wantType string) (string, bool) {
		actual, ok := byLower[strings.ToLower(expected)]
		if !ok && expected == "title" {
			actual, ok = byLower["name"]
		}
		if !ok || db.Properties[actual].Type != wantType {
			return "", false
		}
		return actual, true
	}

	mapping := make(map[string]string, len(expectedProperties))
	var missing []string
	for expected, wantType := range expectedProperties {
		actual, ok := resolve(expected, wantType)
		if !ok {
			missing = append(missing, fmt.Sprintf("%s (%s)", expected, wantType))
			continue
		}
		mapping[expected] = actual
	}
	if len(missing) > 0 {
		available := make([]string, 0, len(db.Properties))
		for name, schema := range db.Properties {
			available = append(available, fmt.Sprintf("%s (%s)", name, schema.Type))
		}
		sort.Strings(missing)
		sort.Strings(available)
		return fmt.Errorf("notion-datenbank %s passt nicht zum erwarteten schema, fehlende properties: %s; vorhanden: %s",
			c.Config.NotionDatabaseID, strings.Join(missing, ", "), strings.Join(available, ", "))
	}
	for expected, wantType := range optionalProperties {
		if actual, ok := resolve(expected, wantType); ok {
			mapping[expected] = actual
		}
	}

	c.propNames = mapping
	c.Logger.Debug("Notion-Schema erkannt", zap.Int("properties", len(mapping)))
	return nil
}

// ListPapers holt alle Seiten der Datenbank inklusive Body als Markdown.
func (c *Client) ListPapers(ctx context.Context) ([]*RemotePaper, error) {
	if err := c.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	var pages []apiPage
	cursor := ""
	for {
		payload := map[string]any{"page_size": pageBatchSize}
		if cursor != "" {
			payload["start_cursor"] = cursor
		}
		var resp queryResponse
		err := c.do(ctx, http.MethodPost, "/databases/"+c.Config.NotionDatabaseID+"/query", payload, &resp)
		if err != nil {
			return nil, fmt.Errorf("datenbank abfragen: %w", err)
		}
		pages = append(pages, resp.Results...)
		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	papers := make([]*RemotePaper, 0, len(pages))
	for i := range pages {
		paper, err := c.materializePage(ctx, &pages[i])
		if err != nil {
			return nil, err
		}
		papers = append(papers, paper)
	}
	c.Logger.Info("Notion-Seiten geladen", zap.Int("count", len(papers)))
	return papers, nil
}

// materializePage parst Properties und lädt den Seiteninhalt nach.
func (c *Client) materializePage(ctx context.Context, page *apiPage) (*RemotePaper, error) {
	paper := c.parsePage(page)
	body, err := c.fetchBlocks(ctx, page.ID)
	if err != nil {
		return nil, fmt.Errorf("seite %s: body laden: %w", page.ID, err)
	}
	paper.Summary = blocks.ToMarkdown(DecodeBlocks(body))
	return paper, nil
}

func (c *Client) parsePage(page *apiPage) *RemotePaper {
	prop := func(expected string) (propertyValue, bool) {
		actual, ok := c.propNames[expected]
		if !ok {
			return propertyValue{}, false
		}
		v, ok := page.Properties[actual]
		return v, ok
	}
	textOf := func(rts []richText) string {
		var b strings.Builder
		for _, rt := range rts {
			if rt.PlainText != "" {
				b.WriteString(rt.PlainText)
			} else if rt.Text != nil {
				b.WriteString(rt.Text.Content)
			}
		}
		return strings.TrimSpace(b.String())
	}

	paper := &RemotePaper{
		PageID:     page.ID,
		Archived:   page.Archived || page.InTrash,
		LastEdited: page.LastEditedTime,
	}
	if v, ok := prop("title"); ok {
		paper.Title = textOf(v.Title)
	}
	if v, ok := prop("arxiv_id"); ok {
		paper.ArxivID = textOf(v.RichText)
	}
	if v, ok := prop("source_slug"); ok {
		paper.SourceSlug = textOf(v.RichText)
	}
	if v, ok := prop("authors"); ok {
		if line := textOf(v.RichText); line != "" {
			for _, a := range strings.Split(line, ",") {
				if a = strings.TrimSpace(a); a != "" {
					paper.Authors = append(paper.Authors, a)
				}
			}
		}
	}
	if v, ok := prop("tags"); ok {
		for _, opt := range v.MultiSelect {
			paper.Tags = append(paper.Tags, opt.Name)
		}
	}
	if v, ok := prop("reading_status"); ok && v.Select != nil {
		paper.ReadingStatus = v.Select.Name
	}
	if v, ok := prop("summary_last_modified"); ok && v.Date != nil {
		if t, err := parseNotionDate(v.Date.Start); err == nil {
			paper.SummaryLastModified = &t
		}
	}
	if v, ok := prop("local_last_modified"); ok && v.Date != nil {
		if t, err := parseNotionDate(v.Date.Start); err == nil {
			paper.LocalLastModified = &t
		}
	}
	if v, ok := prop("archived"); ok && v.Checkbox != nil && *v.Checkbox {
		paper.Archived = true
	}
	return paper
}

// fetchBlocks lädt die Blöcke einer Seite. Für Listenpunkte und Tabellen
// mit Kindern wird rekursiv nachgeladen, andere Container bleiben flach.
func (c *Client) fetchBlocks(ctx context.Context, blockID string) ([]apiBlock, error) {
	var all []apiBlock
	cursor := ""
	for {
		path := "/blocks/" + blockID + "/children?page_size=100"
		if cursor != "" {
			path += "&start_cursor=" + cursor
		}
		var resp blockListResponse
		if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Results...)
		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	for i := range all {
		if !all[i].HasChildren {
			continue
		}
		switch all[i].Type {
		case "bulleted_list_item", "numbered_list_item", "table":
			children, err := c.fetchBlocks(ctx, all[i].ID)
			if err != nil {
				return nil, err
			}
			all[i].children = children
		}
	}
	return all, nil
}

// buildProperties bildet ein lokales Paper auf die Notion-Properties ab.
// summaryTS ist der Zeitstempel, der als summary_last_modified gesetzt wird.
func (c *Client) buildProperties(p *models.Paper, summaryTS time.Time) map[string]any {
	ts := summaryTS.UTC().Format(time.RFC3339)
	props := map[string]any{
		c.propNames["title"]: map[string]any{
			"title": []map[string]any{{"text": map[string]any{"content": p.Title}}},
		},
		c.propNames["arxiv_id"]: richTextProp(p.ArxivID),
		c.propNames["authors"]:  richTextProp(p.AuthorLine()),
		c.propNames["tags"]: map[string]any{
			"multi_select": tagOptions(p.Tags),
		},
		c.propNames["reading_status"]: map[string]any{
			"select": map[string]any{"name": string(p.ReadingStatus)},
		},
		c.propNames["summary_last_modified"]: map[string]any{
			"date": map[string]any{"start": ts},
		},
		c.propNames["local_last_modified"]: map[string]any{
			"date": map[string]any{"start": p.LocalModifiedAt.UTC().Format(time.RFC3339)},
		},
		c.propNames["archived"]: map[string]any{"checkbox": p.Archived},
	}
	if actual, ok := c.propNames["source_slug"]; ok {
		props[actual] = richTextProp(p.SourceSlug)
	}
	return props
}

func richTextProp(value string) map[string]any {
	if value == "" {
		return map[string]any{"rich_text": []any{}}
	}
	return map[string]any{
		"rich_text": []map[string]any{{"text": map[string]any{"content": value}}},
	}
}

func tagOptions(tags []string) []map[string]any {
	out := make([]map[string]any, 0, len(tags))
	for _, t := range tags {
		out = append(out, map[string]any{"name": t})
	}
	return out
}

// CreatePage legt eine neue Seite an: Properties plus die ersten 100
// Blöcke, der Rest wird in 100er-Batches nachgereicht. Zurück kommt die
// frisch geladene Seite, damit der Aufrufer last_edited_time kennt.
func (c *Client) CreatePage(ctx context.Context, paper *models.Paper, body []blocks.Block) (*RemotePaper, error) {
	if err := c.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	wire := EncodeBlocks(body)
	first := wire
	if len(first) > pageBatchSize {
		first = first[:pageBatchSize]
	}

	payload := map[string]any{
		"parent":     map[string]any{"database_id": c.Config.NotionDatabaseID},
		"properties": c.buildProperties(paper, paper.LocalModifiedAt),
		"children":   first,
	}
	var created apiPage
	if err := c.do(ctx, http.MethodPost, "/pages", payload, &created); err != nil {
		return nil, fmt.Errorf("seite anlegen: %w", err)
	}
	if err := c.appendChildren(ctx, created.ID, wire[len(first):]); err != nil {
		return nil, err
	}
	return c.refetchPage(ctx, created.ID)
}

// UpdatePage überschreibt Properties und ersetzt den Body komplett:
// alle vorhandenen Blöcke werden archiviert, der neue Inhalt angehängt.
func (c *Client) UpdatePage(ctx context.Context, pageID string, paper *models.Paper, body []blocks.Block) (*RemotePaper, error) {
	if err := c.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	payload := map[string]any{
		"properties": c.buildProperties(paper, paper.LocalModifiedAt),
	}
	if err := c.do(ctx, http.MethodPatch, "/pages/"+pageID, payload, nil); err != nil {
		return nil, fmt.Errorf("seite %s aktualisieren: %w", pageID, err)
	}
	if err := c.replaceBody(ctx, pageID, body); err != nil {
		return nil, err
	}
	return c.refetchPage(ctx, pageID)
}

func (c *Client) replaceBody(ctx context.Context, pageID string, body []blocks.Block) error {
	existing, err := c.fetchBlocks(ctx, pageID)
	if err != nil {
		return fmt.Errorf("seite %s: alte blöcke laden: %w", pageID, err)
	}
	for _, b := range existing {
		if b.Archived {
			continue
		}
		payload := map[string]any{"archived": true}
		if err := c.do(ctx, http.MethodPatch, "/blocks/"+b.ID, payload, nil); err != nil {
			return fmt.Errorf("seite %s: block %s archivieren: %w", pageID, b.ID, err)
		}
	}
	return c.appendChildren(ctx, pageID, EncodeBlocks(body))
}

func (c *Client) appendChildren(ctx context.Context, pageID string, wire []apiBlock) error {
	for start := 0; start < len(wire); start += pageBatchSize {
		end := start + pageBatchSize
		if end > len(wire) {
			end = len(wire)
		}
		payload := map[string]any{"children": wire[start:end]}
		if err := c.do(ctx, http.MethodPatch, "/blocks/"+pageID+"/children", payload, nil); err != nil {
			return fmt.Errorf("seite %s: blöcke anhängen: %w", pageID, err)
		}
	}
	return nil
}

func (c *Client) refetchPage(ctx context.Context, pageID string) (*RemotePaper, error) {
	var page apiPage
	if err := c.do(ctx, http.MethodGet, "/pages/"+pageID, nil, &page); err != nil {
		return nil, fmt.Errorf("seite %s nachladen: %w", pageID, err)
	}
	return c.materializePage(ctx, &page)
}

// SetArchived setzt das Archiv-Flag der Seite und die Checkbox-Property
// in einem Aufruf.
func (c *Client) SetArchived(ctx context.Context, pageID string, archived bool) error {
	if err := c.EnsureSchema(ctx); err != nil {
		return err
	}
	payload := map[string]any{
		"archived": archived,
		"properties": map[string]any{
			c.propNames["archived"]: map[string]any{"checkbox": archived},
		},
	}
	if err := c.do(ctx, http.MethodPatch, "/pages/"+pageID, payload, nil); err != nil {
		return fmt.Errorf("seite %s archivieren: %w", pageID, err)
	}
	return nil
}

// AttachAudio lädt eine Audiodatei über die File-Upload-API hoch und
// hängt sie als Audio-Block an die Seite an.
func (c *Client) AttachAudio(ctx context.Context, pageID, path string) error {
	uploadID, err := c.uploadFile(ctx, path)
	if err != nil {
		return err
	}
	block := apiBlock{
		Type: "audio",
		Audio: &audioBlockContent{
			Type:       "file_upload",
			FileUpload: &fileUploadRef{ID: uploadID},
		},
	}
	return c.appendChildren(ctx, pageID, []apiBlock{block})
}

func (c *Client) uploadFile(ctx context.Context, path string) (string, error) {
	payload := map[string]any{
		"filename":     filepath.Base(path),
		"content_type": "audio/mpeg",
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/file_uploads", payload, &created); err != nil {
		return "", fmt.Errorf("file upload anlegen: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/file_uploads/"+created.ID+"/send", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.Config.NotionToken)
	req.Header.Set("Notion-Version", c.Config.NotionVersion)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", c.apiError(resp, data)
	}
	return created.ID, nil
}
