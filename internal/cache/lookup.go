// Package cache provides the two caching layers of the server: an
// in-process LRU for hot (gene, diplotype) phenotype lookups and an
// optional Redis-backed cache for completed drug assessments.
package cache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/pharmaguard/pgx-server/internal/domain"
)

// LookupCache memoizes phenotype lookups. Safe for concurrent use.
type LookupCache struct {
	entries *lru.Cache[string, domain.Phenotype]
}

// NewLookupCache creates a cache holding up to size entries.
func NewLookupCache(size int) (*LookupCache, error) {
	entries, err := lru.New[string, domain.Phenotype](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create lookup cache: %w", err)
	}
	return &LookupCache{entries: entries}, nil
}

func lookupKey(gene, diplotype string) string {
	return gene + "|" + domain.NormalizeDiplotype(diplotype)
}

// Get returns a cached phenotype for the pair, if present.
func (c *LookupCache) Get(gene, diplotype string) (domain.Phenotype, bool) {
	return c.entries.Get(lookupKey(gene, diplotype))
}

// Put stores a phenotype for the pair.
func (c *LookupCache) Put(gene, diplotype string, phenotype domain.Phenotype) {
	c.entries.Add(lookupKey(gene, diplotype), phenotype)
}

// Len reports the number of cached entries.
func (c *LookupCache) Len() int {
	return c.entries.Len()
}

// Purge drops all entries. Used after a guideline snapshot reload.
func (c *LookupCache) Purge() {
	c.entries.Purge()
}
