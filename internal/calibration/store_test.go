package calibration

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmaguard/pgx-server/internal/domain"
)

func createOutcomeStore(t *testing.T) *SQLiteOutcomeStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "outcomes.db")
	store, err := NewSQLiteOutcomeStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOutcomeStore_InsertAndGet(t *testing.T) {
	store := createOutcomeStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	err := store.Insert(ctx, &domain.PredictionOutcome{
		ID:                 "pred-1",
		Timestamp:          now,
		Gene:               "CYP2D6",
		DiplotypePredicted: "*1/*4",
		Confidence:         0.9,
		RiskScore:          85.0,
		RiskLevel:          domain.RiskLevelHigh,
	})
	require.NoError(t, err)

	outcome, err := store.Get(ctx, "pred-1")
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.Equal(t, "CYP2D6", outcome.Gene)
	assert.Equal(t, "*1/*4", outcome.DiplotypePredicted)
	assert.Equal(t, domain.RiskLevelHigh, outcome.RiskLevel)
	assert.Nil(t, outcome.Correct, "unresolved prediction has no correctness")
}

func TestOutcomeStore_GetMissing(t *testing.T) {
	store := createOutcomeStore(t)

	outcome, err := store.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, outcome)
}

func TestOutcomeStore_Resolve(t *testing.T) {
	store := createOutcomeStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, &domain.PredictionOutcome{
		ID:                 "pred-1",
		Gene:               "CYP2C19",
		DiplotypePredicted: "*2/*2",
		Confidence:         0.8,
		RiskLevel:          domain.RiskLevelHigh,
	}))

	require.NoError(t, store.Resolve(ctx, "pred-1", "*2/*2", true))

	outcome, err := store.Get(ctx, "pred-1")
	require.NoError(t, err)
	require.NotNil(t, outcome.Correct)
	assert.True(t, *outcome.Correct)
	assert.Equal(t, "*2/*2", outcome.DiplotypeActual)
}

func TestOutcomeStore_ResolveUnknownID(t *testing.T) {
	store := createOutcomeStore(t)

	err := store.Resolve(context.Background(), "missing", "*1/*1", true)
	assert.Error(t, err)
}

func TestOutcomeStore_ListResolvedAndCount(t *testing.T) {
	store := createOutcomeStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Insert(ctx, &domain.PredictionOutcome{
			ID:                 id,
			Timestamp:          base.Add(time.Duration(i) * time.Minute),
			Gene:               "CYP2D6",
			DiplotypePredicted: "*1/*4",
			Confidence:         0.9,
			RiskLevel:          domain.RiskLevelModerate,
		}))
	}
	require.NoError(t, store.Resolve(ctx, "a", "*1/*4", true))
	require.NoError(t, store.Resolve(ctx, "c", "*4/*4", false))

	total, resolved, err := store.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.EqualValues(t, 2, resolved)

	// Unresolved prediction b is excluded; oldest first.
	outcomes, err := store.ListResolved(ctx)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, "a", outcomes[0].ID)
	assert.Equal(t, "c", outcomes[1].ID)
}

func TestOutcomeStore_ListResolvedSince(t *testing.T) {
	store := createOutcomeStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i, id := range []string{"old", "new"} {
		require.NoError(t, store.Insert(ctx, &domain.PredictionOutcome{
			ID:                 id,
			Timestamp:          base.Add(time.Duration(i) * time.Hour),
			Gene:               "TPMT",
			DiplotypePredicted: "*1/*3A",
			Confidence:         0.7,
			RiskLevel:          domain.RiskLevelModerate,
		}))
		require.NoError(t, store.Resolve(ctx, id, "*1/*3A", true))
	}

	recent, err := store.ListResolvedSince(ctx, base.Add(30*time.Minute))
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "new", recent[0].ID)
}
