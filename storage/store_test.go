package storage

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"paper-shelf/config"
	"paper-shelf/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := &config.Config{DataDir: t.TempDir()}
	return NewStore(cfg, zap.NewNop())
}

func addPaper(t *testing.T, s *Store, id, title string) *models.Paper {
	t.Helper()
	p := &models.Paper{
		ID:      id,
		Source:  models.SourceArxiv,
		ArxivID: id,
		Title:   title,
	}
	require.NoError(t, s.Add(p))
	return p
}

func TestStore_AddAndGet(t *testing.T) {
	s := newTestStore(t)
	addPaper(t, s, "2503.10291", "Attention Is Enough")

	got, err := s.Get("2503.10291")
	require.NoError(t, err)
	assert.Equal(t, "Attention Is Enough", got.Title)
	assert.Equal(t, models.StatusUnread, got.ReadingStatus)
	assert.False(t, got.DateAdded.IsZero())
	assert.False(t, got.LocalModifiedAt.IsZero())
}

func TestStore_GetUnknownPaper(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_RereadsIndexBetweenOperations(t *testing.T) {
	// Zwei Store-Instanzen auf demselben Verzeichnis simulieren
	// CLI und Server als getrennte Prozesse.
	cfg := &config.Config{DataDir: t.TempDir()}
	a := NewStore(cfg, zap.NewNop())
	b := NewStore(cfg, zap.NewNop())

	require.NoError(t, a.Add(&models.Paper{ID: "p1", Title: "via a"}))

	got, err := b.Get("p1")
	require.NoError(t, err)
	assert.Equal(t, "via a", got.Title)

	_, err = b.AddTags("p1", []string{"shared"})
	require.NoError(t, err)

	got, err = a.Get("p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"shared"}, got.Tags)
}

func TestStore_ListSorting(t *testing.T) {
	s := newTestStore(t)
	older := &models.Paper{ID: "b", Title: "Zeta", DateAdded: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	newer := &models.Paper{ID: "a", Title: "Alpha", DateAdded: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, s.Add(older))
	require.NoError(t, s.Add(newer))

	byDate, err := s.List("date_added")
	require.NoError(t, err)
	assert.Equal(t, "b", byDate[0].ID)

	byTitle, err := s.List("title")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", byTitle[0].Title)
}

func TestStore_TagOperationsBumpModified(t *testing.T) {
	s := newTestStore(t)
	p := addPaper(t, s, "p1", "T")
	before := p.LocalModifiedAt

	time.Sleep(5 * time.Millisecond)
	// "ml" und "ML" sind zwei verschiedene Tags, nur das exakte
	// Duplikat fällt weg.
	got, err := s.AddTags("p1", []string{"ml", "ML", " nlp ", "ml"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ml", "ML", "nlp"}, got.Tags)
	assert.True(t, got.LocalModifiedAt.After(before))

	got, err = s.RemoveTag("p1", "ML")
	require.NoError(t, err)
	assert.Equal(t, []string{"ml", "nlp"}, got.Tags)
}

func TestStore_SaveSummaryWritesFileAndStatus(t *testing.T) {
	s := newTestStore(t)
	p := addPaper(t, s, "p1", "A Title: With? Chars")

	got, err := s.SaveSummary("p1", "# One-Pager\n\ncontent")
	require.NoError(t, err)
	assert.True(t, got.HasSummary)
	assert.Equal(t, models.StatusSummarized, got.ReadingStatus)

	text, err := s.LoadSummary("p1")
	require.NoError(t, err)
	assert.Contains(t, text, "One-Pager")

	_, err = os.Stat(s.SummaryPath(p))
	assert.NoError(t, err)
}

func TestStore_SetArchivedRoundTrip(t *testing.T) {
	s := newTestStore(t)
	addPaper(t, s, "p1", "T")
	ts := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	got, err := s.SetArchived("p1", true, ts)
	require.NoError(t, err)
	assert.True(t, got.Archived)
	assert.Equal(t, models.StatusArchived, got.ReadingStatus)
	require.NotNil(t, got.ArchivedAt)
	assert.Equal(t, ts, *got.ArchivedAt)
	assert.Equal(t, ts, got.LocalModifiedAt)

	later := ts.Add(time.Hour)
	got, err = s.SetArchived("p1", false, later)
	require.NoError(t, err)
	assert.False(t, got.Archived)
	assert.Equal(t, models.StatusUnread, got.ReadingStatus)
	assert.Nil(t, got.ArchivedAt)
}

func TestStore_SetNotionFieldsDoesNotBumpModified(t *testing.T) {
	s := newTestStore(t)
	p := addPaper(t, s, "p1", "T")
	before := p.LocalModifiedAt

	edited := time.Date(2025, 5, 2, 10, 0, 0, 0, time.UTC)
	synced := time.Date(2025, 5, 2, 10, 5, 0, 0, time.UTC)
	got, err := s.SetNotionFields("p1", "page-1", edited, synced)
	require.NoError(t, err)
	assert.Equal(t, "page-1", got.NotionPageID)
	require.NotNil(t, got.NotionLastEdited)
	assert.Equal(t, edited, *got.NotionLastEdited)
	require.NotNil(t, got.LastSyncedAt)
	assert.Equal(t, synced, *got.LastSyncedAt)
	assert.Equal(t, before, got.LocalModifiedAt)

	// Ohne Sync-Zeit bleibt der vorhandene Stempel stehen.
	got, err = s.SetNotionFields("p1", "page-1", edited, time.Time{})
	require.NoError(t, err)
	require.NotNil(t, got.LastSyncedAt)
	assert.Equal(t, synced, *got.LastSyncedAt)
}

func TestStore_DeleteRemovesArtifacts(t *testing.T) {
	s := newTestStore(t)
	p := addPaper(t, s, "p1", "T")
	_, err := s.SaveSummary("p1", "text")
	require.NoError(t, err)
	_, err = s.SaveAudio("p1", []byte("mp3"), 12.5)
	require.NoError(t, err)

	require.NoError(t, s.Delete("p1"))

	_, err = s.Get("p1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = os.Stat(s.SummaryPath(p))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(s.AudioPath("p1"))
	assert.True(t, os.IsNotExist(err))
}

func TestListSortByTag(t *testing.T) {
	s := newTestStore(t)
	addPaper(t, s, "2501.00001", "First")
	_, err := s.AddTags("2501.00001", []string{"zebra"})
	require.NoError(t, err)
	addPaper(t, s, "2501.00002", "Second")
	_, err = s.AddTags("2501.00002", []string{"Alpha"})
	require.NoError(t, err)
	addPaper(t, s, "2501.00003", "Untagged")

	papers, err := s.List("tag")
	require.NoError(t, err)
	require.Len(t, papers, 3)
	assert.Equal(t, "2501.00002", papers[0].ID)
	assert.Equal(t, "2501.00001", papers[1].ID)
	// Ohne Tags ans Ende.
	assert.Equal(t, "2501.00003", papers[2].ID)
}
