package cpic

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmaguard/pgx-server/internal/domain"
)

func TestDefaultSnapshotValid(t *testing.T) {
	snap := Default()
	require.NoError(t, snap.Validate())
	assert.Len(t, snap.Genes, 6)
	assert.NotEmpty(t, snap.Drugs)
	assert.NotEmpty(t, snap.Interactions)
}

func TestGeneLookupCaseInsensitive(t *testing.T) {
	snap := Default()

	table, ok := snap.Gene("cyp2d6")
	require.True(t, ok)
	assert.Equal(t, "CYP2D6", table.Gene)

	_, ok = snap.Gene("VKORC1")
	assert.False(t, ok)
}

func TestActivityScore(t *testing.T) {
	snap := Default()

	tests := []struct {
		gene   string
		allele string
		want   float64
		found  bool
	}{
		{"CYP2D6", "*4", 0, true},
		{"CYP2D6", "*10", 0.5, true},
		{"CYP2C19", "*17", 1.5, true},
		{"CYP2C9", "*2", 0.5, true},
		{"TPMT", "*3A", 0, true},
		{"CYP2D6", "*999", DefaultActivity, false},
	}
	for _, tt := range tests {
		got, found := snap.ActivityScore(tt.gene, tt.allele)
		assert.Equal(t, tt.want, got, "%s %s", tt.gene, tt.allele)
		assert.Equal(t, tt.found, found, "%s %s", tt.gene, tt.allele)
	}
}

func TestPhenotypeLookupNormalizesAlleleOrder(t *testing.T) {
	snap := Default()

	p, ok := snap.Phenotype("CYP2C19", "*2/*1")
	require.True(t, ok)
	assert.Equal(t, domain.IntermediateMetabolizer, p)

	p, ok = snap.Phenotype("CYP2C19", "*1/*2")
	require.True(t, ok)
	assert.Equal(t, domain.IntermediateMetabolizer, p)
}

func TestAlleleFrequencyFallsBackToDefaultPopulation(t *testing.T) {
	snap := Default()

	assert.InDelta(t, 0.20, snap.AlleleFrequency("CYP2D6", "*4", PopulationEUR), 1e-9)
	assert.InDelta(t, 0.40, snap.AlleleFrequency("CYP2D6", "*10", PopulationEAS), 1e-9)

	// Unknown population falls back to EUR.
	assert.InDelta(t, 0.20, snap.AlleleFrequency("CYP2D6", "*4", "MARS"), 1e-9)

	assert.Zero(t, snap.AlleleFrequency("CYP2D6", "*999", PopulationEUR))
	assert.Zero(t, snap.AlleleFrequency("NOPE", "*1", PopulationEUR))
}

func TestInteractionsForUnorderedPair(t *testing.T) {
	snap := Default()

	fwd := snap.InteractionsFor("clopidogrel", "omeprazole")
	rev := snap.InteractionsFor("omeprazole", "clopidogrel")
	require.Len(t, fwd, 1)
	require.Len(t, rev, 1)
	assert.Equal(t, fwd[0], rev[0])
	assert.Equal(t, domain.EnzymeInhibition, fwd[0].Type)
	assert.InDelta(t, 1.8, fwd[0].RiskMultiplier, 1e-9)

	assert.Empty(t, snap.InteractionsFor("codeine", "warfarin"))
}

func TestClopidogrelOmeprazoleCoversPoorMetabolizer(t *testing.T) {
	snap := Default()

	entries := snap.InteractionsFor("clopidogrel", "omeprazole")
	require.Len(t, entries, 1)
	assert.True(t, entries[0].AffectsPhenotype(domain.PoorMetabolizer))
}

func TestLoadFileRoundTrip(t *testing.T) {
	snap := Default()
	data, err := json.Marshal(snap)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	loaded, err := LoadFile(path, logger)
	require.NoError(t, err)
	assert.Equal(t, snap.Version, loaded.Version)
	assert.Len(t, loaded.Genes, len(snap.Genes))
	assert.Len(t, loaded.Interactions, len(snap.Interactions))
}

func TestLoadFileRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"genes":{}}`), 0o644))

	_, err := LoadFile(path, logrus.New())
	assert.Error(t, err)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"), logrus.New())
	assert.Error(t, err)
}
