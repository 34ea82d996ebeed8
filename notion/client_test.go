package notion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"paper-shelf/blocks"
	"paper-shelf/config"
	"paper-shelf/models"
)

func samplePaper() *models.Paper {
	return &models.Paper{
		ID:              "2503.10291",
		Source:          models.SourceArxiv,
		ArxivID:         "2503.10291",
		Title:           "A Paper",
		Authors:         []string{"Ada Lovelace"},
		Tags:            []string{"ml"},
		ReadingStatus:   models.StatusSummarized,
		LocalModifiedAt: time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		NotionToken:      "secret-token",
		NotionDatabaseID: "db-1",
		NotionVersion:    "2022-06-28",
	}
	c := NewClient(cfg, zap.NewNop())
	c.BaseURL = srv.URL
	return c
}

const schemaJSON = `{
	"id": "db-1",
	"properties": {
		"Arxiv_ID":              {"type": "rich_text"},
		"Name":                  {"type": "title"},
		"Authors":               {"type": "rich_text"},
		"Tags":                  {"type": "multi_select"},
		"Reading_Status":        {"type": "select"},
		"Summary_Last_Modified": {"type": "date"},
		"Local_Last_Modified":   {"type": "date"},
		"Archived":              {"type": "checkbox"},
		"Source_Slug":           {"type": "rich_text"}
	}
}`

func TestEnsureSchema_CaseInsensitiveWithTitleFallback(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/databases/db-1", r.URL.Path)
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		assert.Equal(t, "2022-06-28", r.Header.Get("Notion-Version"))
		fmt.Fprint(w, schemaJSON)
	}))

	require.NoError(t, c.EnsureSchema(context.Background()))
	assert.Equal(t, "Name", c.propNames["title"])
	assert.Equal(t, "Arxiv_ID", c.propNames["arxiv_id"])
	assert.Equal(t, "Source_Slug", c.propNames["source_slug"])
}

func TestEnsureSchema_MismatchListsAvailableProperties(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"db-1","properties":{
			"Name": {"type": "title"},
			"Irrelevant": {"type": "url"}
		}}`)
	}))

	err := c.EnsureSchema(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "arxiv_id (rich_text)")
	assert.Contains(t, err.Error(), "Irrelevant (url)")
}

func TestDo_APIErrorCarriesStatusAndRequestID(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-request-id", "req-42")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, strings.Repeat("x", 2000))
	}))

	err := c.EnsureSchema(context.Background())
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "req-42", apiErr.RequestID)
	assert.Len(t, apiErr.Body, 1000)
}

func pageJSON(id, title, arxivID, summaryDate string, edited time.Time) map[string]any {
	props := map[string]any{
		"Name": map[string]any{
			"type":  "title",
			"title": []map[string]any{{"plain_text": title}},
		},
		"Arxiv_ID": map[string]any{
			"type":      "rich_text",
			"rich_text": []map[string]any{{"plain_text": arxivID}},
		},
		"Authors": map[string]any{
			"type":      "rich_text",
			"rich_text": []map[string]any{{"plain_text": "Ada Lovelace, Alan Turing"}},
		},
		"Tags": map[string]any{
			"type":         "multi_select",
			"multi_select": []map[string]any{{"name": "ml"}},
		},
		"Reading_Status": map[string]any{
			"type":   "select",
			"select": map[string]any{"name": "summarized"},
		},
		"Archived": map[string]any{"type": "checkbox", "checkbox": false},
	}
	if summaryDate != "" {
		props["Summary_Last_Modified"] = map[string]any{
			"type": "date",
			"date": map[string]any{"start": summaryDate},
		}
	}
	return map[string]any{
		"object":           "page",
		"id":               id,
		"archived":         false,
		"last_edited_time": edited.UTC().Format(time.RFC3339),
		"properties":       props,
	}
}

func TestListPapers_PaginatesAndParses(t *testing.T) {
	edited := time.Date(2025, 5, 2, 10, 0, 0, 0, time.UTC)
	queryCalls := 0

	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/databases/db-1":
			fmt.Fprint(w, schemaJSON)
		case r.URL.Path == "/databases/db-1/query":
			queryCalls++
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.EqualValues(t, 100, body["page_size"])
			if queryCalls == 1 {
				json.NewEncoder(w).Encode(map[string]any{
					"results":     []any{pageJSON("page-1", "First", "2503.10291", "2025-05-01", edited)},
					"has_more":    true,
					"next_cursor": "cur-2",
				})
			} else {
				assert.Equal(t, "cur-2", body["start_cursor"])
				json.NewEncoder(w).Encode(map[string]any{
					"results":  []any{pageJSON("page-2", "Second", "", "", edited)},
					"has_more": false,
				})
			}
		case strings.HasPrefix(r.URL.Path, "/blocks/"):
			json.NewEncoder(w).Encode(map[string]any{
				"results": []any{map[string]any{
					"type": "paragraph",
					"paragraph": map[string]any{
						"rich_text": []map[string]any{{"type": "text", "text": map[string]any{"content": "Body text."}}},
					},
				}},
				"has_more": false,
			})
		default:
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))

	papers, err := c.ListPapers(context.Background())
	require.NoError(t, err)
	require.Len(t, papers, 2)
	assert.Equal(t, 2, queryCalls)

	first := papers[0]
	assert.Equal(t, "page-1", first.PageID)
	assert.Equal(t, "First", first.Title)
	assert.Equal(t, "2503.10291", first.ArxivID)
	assert.Equal(t, []string{"Ada Lovelace", "Alan Turing"}, first.Authors)
	assert.Equal(t, []string{"ml"}, first.Tags)
	assert.Equal(t, "summarized", first.ReadingStatus)
	assert.Equal(t, "Body text.", first.Summary)
}

func TestRemoteModifiedAt_PrefersSummaryProperty(t *testing.T) {
	edited := time.Date(2025, 5, 2, 10, 0, 0, 0, time.UTC)
	explicit := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	withProp := &RemotePaper{LastEdited: edited, SummaryLastModified: &explicit}
	assert.Equal(t, explicit, withProp.RemoteModifiedAt())

	withoutProp := &RemotePaper{LastEdited: edited}
	assert.Equal(t, edited, withoutProp.RemoteModifiedAt())
}

func TestCreatePage_SplitsChildrenIntoBatches(t *testing.T) {
	edited := time.Date(2025, 5, 2, 10, 0, 0, 0, time.UTC)
	var createChildren int
	var appendCalls []int

	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/databases/db-1":
			fmt.Fprint(w, schemaJSON)
		case r.URL.Path == "/pages" && r.Method == http.MethodPost:
			var body struct {
				Children []json.RawMessage `json:"children"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			createChildren = len(body.Children)
			json.NewEncoder(w).Encode(map[string]any{"id": "page-new"})
		case r.URL.Path == "/blocks/page-new/children" && r.Method == http.MethodPatch:
			var body struct {
				Children []json.RawMessage `json:"children"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			appendCalls = append(appendCalls, len(body.Children))
			fmt.Fprint(w, `{}`)
		case r.URL.Path == "/pages/page-new" && r.Method == http.MethodGet:
			json.NewEncoder(w).Encode(pageJSON("page-new", "Created", "2503.10291", "2025-05-01", edited))
		case strings.HasPrefix(r.URL.Path, "/blocks/page-new/children") && r.Method == http.MethodGet:
			fmt.Fprint(w, `{"results": [], "has_more": false}`)
		default:
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))

	body := make([]blocks.Block, 230)
	for i := range body {
		body[i] = blocks.Block{Type: blocks.TypeParagraph, Spans: []blocks.Span{{Text: "p"}}}
	}

	paper := samplePaper()
	created, err := c.CreatePage(context.Background(), paper, body)
	require.NoError(t, err)
	assert.Equal(t, "page-new", created.PageID)
	assert.Equal(t, 100, createChildren)
	assert.Equal(t, []int{100, 30}, appendCalls)
}

func TestUpdatePage_ReplacesBodyWholesale(t *testing.T) {
	edited := time.Date(2025, 5, 2, 10, 0, 0, 0, time.UTC)
	var archivedBlocks []string
	var appended int

	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/databases/db-1":
			fmt.Fprint(w, schemaJSON)
		case r.URL.Path == "/pages/page-1" && r.Method == http.MethodPatch:
			fmt.Fprint(w, `{}`)
		case r.URL.Path == "/pages/page-1" && r.Method == http.MethodGet:
			json.NewEncoder(w).Encode(pageJSON("page-1", "Updated", "2503.10291", "2025-05-01", edited))
		case r.URL.Path == "/blocks/page-1/children" && r.Method == http.MethodGet:
			if len(archivedBlocks) > 0 {
				// Nachladen nach dem Ersetzen: Seite ist schon leer.
				fmt.Fprint(w, `{"results": [], "has_more": false}`)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"results": []any{
					map[string]any{"id": "old-1", "type": "paragraph", "paragraph": map[string]any{"rich_text": []any{}}},
					map[string]any{"id": "old-2", "type": "divider", "divider": map[string]any{}},
				},
				"has_more": false,
			})
		case strings.HasPrefix(r.URL.Path, "/blocks/old-") && r.Method == http.MethodPatch:
			archivedBlocks = append(archivedBlocks, strings.TrimPrefix(r.URL.Path, "/blocks/"))
			fmt.Fprint(w, `{}`)
		case r.URL.Path == "/blocks/page-1/children" && r.Method == http.MethodPatch:
			var body struct {
				Children []json.RawMessage `json:"children"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			appended += len(body.Children)
			fmt.Fprint(w, `{}`)
		default:
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))

	paper := samplePaper()
	_, err := c.UpdatePage(context.Background(), "page-1", paper, blocks.FromMarkdown("# New body"))
	require.NoError(t, err)
	assert.Equal(t, []string{"old-1", "old-2"}, archivedBlocks)
	assert.Equal(t, 1, appended)
}

func TestWire_RoundTrip(t *testing.T) {
	src := "# Heading\n\npara with **bold** and $x$\n\n- item\n  - child\n\n```go\nx := 1\n```\n\n$$\nE = mc^2\n$$"
	original := blocks.FromMarkdown(src)

	decoded := DecodeBlocks(EncodeBlocks(original))
	assert.Equal(t, blocks.ToMarkdown(original), blocks.ToMarkdown(decoded))
}
