package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmaguard/pgx-server/internal/domain"
)

func TestLookupCacheNormalizesKeys(t *testing.T) {
	c, err := NewLookupCache(8)
	require.NoError(t, err)

	c.Put("CYP2C19", "*1/*2", domain.IntermediateMetabolizer)

	// Reversed allele order hits the same entry.
	got, ok := c.Get("CYP2C19", "*2/*1")
	require.True(t, ok)
	assert.Equal(t, domain.IntermediateMetabolizer, got)

	_, ok = c.Get("CYP2D6", "*1/*2")
	assert.False(t, ok)
}

func TestLookupCacheEviction(t *testing.T) {
	c, err := NewLookupCache(2)
	require.NoError(t, err)

	c.Put("CYP2D6", "*1/*1", domain.NormalMetabolizer)
	c.Put("CYP2D6", "*1/*4", domain.IntermediateMetabolizer)
	c.Put("CYP2D6", "*4/*4", domain.PoorMetabolizer)

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("CYP2D6", "*1/*1")
	assert.False(t, ok, "oldest entry should have been evicted")

	c.Purge()
	assert.Zero(t, c.Len())
}
