package service

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/pharmaguard/pgx-server/internal/cpic"
	"github.com/pharmaguard/pgx-server/internal/domain"
)

// InteractionAnalyzer detects pairwise drug-drug-gene interactions from
// the static interaction table. A table entry fires when both drugs of
// an unordered pair appear in its definition and the patient's
// phenotype for the entry's gene is in the affected set.
type InteractionAnalyzer struct {
	snapshot *cpic.Snapshot
	logger   *logrus.Logger
}

func NewInteractionAnalyzer(snapshot *cpic.Snapshot, logger *logrus.Logger) *InteractionAnalyzer {
	return &InteractionAnalyzer{snapshot: snapshot, logger: logger}
}

// Detect scans every unordered pair of assessments. The result is
// ordered by severity descending, then multiplier descending, so the
// most actionable interaction comes first.
func (a *InteractionAnalyzer) Detect(assessments []domain.DrugAssessment) []domain.DrugDrugInteraction {
	phenotypeByGene := make(map[string]domain.Phenotype)
	for _, as := range assessments {
		if as.Gene != "" {
			phenotypeByGene[as.Gene] = as.Phenotype
		}
	}

	var detected []domain.DrugDrugInteraction
	for i := 0; i < len(assessments); i++ {
		for j := i + 1; j < len(assessments); j++ {
			drugA, drugB := assessments[i].Drug, assessments[j].Drug
			for _, entry := range a.snapshot.Interactions {
				if !entry.MatchesPair(drugA, drugB, entry.Gene) {
					continue
				}
				phenotype, ok := phenotypeByGene[entry.Gene]
				if !ok || !entry.AffectsPhenotype(phenotype) {
					continue
				}
				detected = append(detected, entry)
				a.logger.WithFields(logrus.Fields{
					"drug_a":   entry.DrugA,
					"drug_b":   entry.DrugB,
					"gene":     entry.Gene,
					"type":     entry.Type,
					"severity": entry.Severity,
				}).Info("Drug-drug-gene interaction detected")
			}
		}
	}

	sort.SliceStable(detected, func(i, j int) bool {
		if detected[i].Severity.Rank() != detected[j].Severity.Rank() {
			return detected[i].Severity.Rank() > detected[j].Severity.Rank()
		}
		return detected[i].RiskMultiplier > detected[j].RiskMultiplier
	})

	return detected
}
