package service

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pharmaguard/pgx-server/internal/cache"
	"github.com/pharmaguard/pgx-server/internal/cpic"
	"github.com/pharmaguard/pgx-server/internal/domain"
)

// Phenotype mapping methods, recorded in the resolution note.
const (
	MapMethodTable    = "table"
	MapMethodActivity = "activity_score"
	MapMethodNone     = "none"
)

// PhenotypeMapper maps a resolved diplotype to its metabolizer
// phenotype: direct table lookup first, activity-score fallback second.
type PhenotypeMapper struct {
	snapshot *cpic.Snapshot
	lookups  *cache.LookupCache
	logger   *logrus.Logger
}

// NewPhenotypeMapper creates a mapper. lookups may be nil to disable
// memoization.
func NewPhenotypeMapper(snapshot *cpic.Snapshot, lookups *cache.LookupCache, logger *logrus.Logger) *PhenotypeMapper {
	return &PhenotypeMapper{snapshot: snapshot, lookups: lookups, logger: logger}
}

// Map resolves the phenotype for (gene, diplotype) and reports which
// method produced it. Unmappable diplotypes yield Indeterminate.
func (m *PhenotypeMapper) Map(gene, diplotype string) (domain.Phenotype, string) {
	if m.lookups != nil {
		if p, ok := m.lookups.Get(gene, diplotype); ok {
			return p, MapMethodTable
		}
	}

	if p, ok := m.snapshot.Phenotype(gene, diplotype); ok {
		if m.lookups != nil {
			m.lookups.Put(gene, diplotype, p)
		}
		return p, MapMethodTable
	}

	p, ok := m.activityFallback(gene, diplotype)
	if !ok {
		return domain.IndeterminatePhenotype, MapMethodNone
	}
	if m.lookups != nil {
		m.lookups.Put(gene, diplotype, p)
	}
	m.logger.WithFields(logrus.Fields{
		"gene":      gene,
		"diplotype": diplotype,
		"phenotype": p,
	}).Debug("Phenotype mapped via activity score")
	return p, MapMethodActivity
}

// activityFallback sums per-allele activity values and maps the total
// into the monotonic phenotype bands. It fails when the gene is unknown
// or neither allele appears in the activity table.
func (m *PhenotypeMapper) activityFallback(gene, diplotype string) (domain.Phenotype, bool) {
	if _, ok := m.snapshot.Gene(gene); !ok {
		return domain.IndeterminatePhenotype, false
	}
	parts := strings.Split(diplotype, "/")
	if len(parts) != 2 {
		return domain.IndeterminatePhenotype, false
	}

	a1, known1 := m.snapshot.ActivityScore(gene, parts[0])
	a2, known2 := m.snapshot.ActivityScore(gene, parts[1])
	if !known1 && !known2 {
		return domain.IndeterminatePhenotype, false
	}

	return phenotypeFromActivity(a1 + a2), true
}

// phenotypeFromActivity maps a summed diplotype activity score into a
// phenotype band: below 1.0 poor, [1.0, 1.5) intermediate, [1.5, 2.5)
// normal, 2.5 and above ultrarapid.
func phenotypeFromActivity(total float64) domain.Phenotype {
	switch {
	case total < 1.0:
		return domain.PoorMetabolizer
	case total < 1.5:
		return domain.IntermediateMetabolizer
	case total < 2.5:
		return domain.NormalMetabolizer
	default:
		return domain.UltrarapidMetabolizer
	}
}
