package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncReport_JSONCarriesTimestampsAndActions(t *testing.T) {
	r := NewSyncReport(true)
	r.AddAction("create notion page for %s", "2503.10291")
	r.Finalize()

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var keys map[string]any
	require.NoError(t, json.Unmarshal(data, &keys))
	assert.Contains(t, keys, "started_at")
	assert.Contains(t, keys, "finished_at")
	assert.Contains(t, keys, "actions")
	assert.Equal(t, []any{"create notion page for 2503.10291"}, keys["actions"])
}

func TestSyncReport_MissingFinishedMarksAbortedRun(t *testing.T) {
	r := NewSyncReport(false)

	// Ohne Finalize fehlt finished_at im JSON, so erkennt der Leser
	// einen abgebrochenen Lauf.
	data, err := json.Marshal(r)
	require.NoError(t, err)

	var keys map[string]any
	require.NoError(t, json.Unmarshal(data, &keys))
	assert.NotContains(t, keys, "finished_at")

	r.Finalize()
	require.NotNil(t, r.FinishedAt)
	assert.False(t, r.FinishedAt.Before(r.StartedAt))
	assert.Equal(t, r.FinishedAt.Sub(r.StartedAt), r.Duration)
}
