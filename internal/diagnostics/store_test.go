package diagnostics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRecordsCalls(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	store.Record("ytjob-1", "ExtractingHooks", "test-model", 120*time.Millisecond, nil)
	store.Record("ytjob-1", "GeneratingDrafts", "test-model", 300*time.Millisecond, errors.New("endpoint down"))

	failures, err := store.RecentFailures(10)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, "GeneratingDrafts", failures[0].Stage)
	assert.Equal(t, "error", failures[0].Outcome)
	assert.Equal(t, "endpoint down", failures[0].ErrorText)
}

func TestNilStoreIsSafe(t *testing.T) {
	var store *Store
	store.Record("ytjob-1", "ExtractingHooks", "m", time.Millisecond, nil)
	assert.NoError(t, store.Close())
}

type recordingGen struct {
	lastPrompt string
}

func (g *recordingGen) Complete(ctx context.Context, model, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error) {
	g.lastPrompt = userPrompt
	return "result", nil
}

func TestInstrumentedGeneratorTagsFromContext(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	inner := &recordingGen{}
	gen := &InstrumentedGenerator{Inner: inner, Store: store}

	ctx := WithJobID(WithStage(context.Background(), "ExtractingHooks"), "ytjob-42")
	text, err := gen.Complete(ctx, "m", "sys", "user prompt", 0.2, 100)
	require.NoError(t, err)
	assert.Equal(t, "result", text)
	assert.Equal(t, "user prompt", inner.lastPrompt)

	var rows []ProviderCallLog
	require.NoError(t, store.db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, "ytjob-42", rows[0].JobID)
	assert.Equal(t, "ExtractingHooks", rows[0].Stage)
	assert.Equal(t, "ok", rows[0].Outcome)
}
