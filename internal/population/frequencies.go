// Package population ranks diplotypes by population probability under
// Hardy-Weinberg equilibrium. The resolver uses it to annotate phasing
// decisions; it never overrides the conservative trans default.
package population

import (
	"sort"
	"strings"

	"github.com/pharmaguard/pgx-server/internal/cpic"
)

// Phase labels for compound heterozygote calls.
const (
	PhaseTrans = "trans"
	PhaseCis   = "cis"
)

// Analyzer computes diplotype probabilities from the snapshot's
// population allele frequencies.
type Analyzer struct {
	snapshot *cpic.Snapshot
}

func NewAnalyzer(snapshot *cpic.Snapshot) *Analyzer {
	return &Analyzer{snapshot: snapshot}
}

// DiplotypeProbability returns P(diplotype) under Hardy-Weinberg
// equilibrium: p^2 for homozygous, 2pq for heterozygous. Unknown
// alleles contribute zero frequency.
func (a *Analyzer) DiplotypeProbability(gene, diplotype, pop string) float64 {
	parts := strings.Split(diplotype, "/")
	if len(parts) != 2 {
		return 0
	}
	p := a.snapshot.AlleleFrequency(gene, parts[0], pop)
	q := a.snapshot.AlleleFrequency(gene, parts[1], pop)
	if parts[0] == parts[1] {
		return p * p
	}
	return 2 * p * q
}

// RankedDiplotype pairs a diplotype with its population probability.
type RankedDiplotype struct {
	Diplotype   string  `json:"diplotype"`
	Probability float64 `json:"probability"`
}

// RankDiplotypes orders candidate diplotypes by descending probability.
// Ties keep input order.
func (a *Analyzer) RankDiplotypes(gene string, diplotypes []string, pop string) []RankedDiplotype {
	ranked := make([]RankedDiplotype, len(diplotypes))
	for i, d := range diplotypes {
		ranked[i] = RankedDiplotype{Diplotype: d, Probability: a.DiplotypeProbability(gene, d, pop)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Probability > ranked[j].Probability
	})
	return ranked
}

// PhaseCall is the outcome of a phase-likelihood comparison.
type PhaseCall struct {
	Diplotype   string  `json:"diplotype"`
	Probability float64 `json:"probability"`
	Phase       string  `json:"phase"`
}

// MostLikelyPhase compares the trans configuration of two observed
// alleles against each homozygous alternative. Trans wins ties, matching
// the conservative clinical convention for unphased compound
// heterozygotes.
func (a *Analyzer) MostLikelyPhase(gene, allele1, allele2, pop string) PhaseCall {
	trans := allele1 + "/" + allele2
	transProb := a.DiplotypeProbability(gene, trans, pop)

	homo1 := allele1 + "/" + allele1
	homo2 := allele2 + "/" + allele2
	homo1Prob := a.DiplotypeProbability(gene, homo1, pop)
	homo2Prob := a.DiplotypeProbability(gene, homo2, pop)

	if transProb >= homo1Prob && transProb >= homo2Prob {
		return PhaseCall{Diplotype: trans, Probability: transProb, Phase: PhaseTrans}
	}
	if homo1Prob > homo2Prob {
		return PhaseCall{Diplotype: homo1, Probability: homo1Prob, Phase: PhaseCis}
	}
	return PhaseCall{Diplotype: homo2, Probability: homo2Prob, Phase: PhaseCis}
}

// CommonAlleles lists alleles at or above minFreq, most frequent first.
func (a *Analyzer) CommonAlleles(gene, pop string, minFreq float64) []string {
	table, ok := a.snapshot.Gene(gene)
	if !ok {
		return nil
	}
	type af struct {
		allele string
		freq   float64
	}
	var candidates []af
	for allele := range table.Activity {
		if f := a.snapshot.AlleleFrequency(gene, allele, pop); f >= minFreq {
			candidates = append(candidates, af{allele, f})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].freq != candidates[j].freq {
			return candidates[i].freq > candidates[j].freq
		}
		return candidates[i].allele < candidates[j].allele
	})
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.allele
	}
	return out
}

// IsRare reports whether the diplotype's population probability falls
// below threshold. Used by the confidence scorer's rare-allele penalty.
func (a *Analyzer) IsRare(gene, diplotype, pop string, threshold float64) bool {
	return a.DiplotypeProbability(gene, diplotype, pop) < threshold
}
