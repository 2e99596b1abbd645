package service

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/pharmaguard/pgx-server/internal/cpic"
	"github.com/pharmaguard/pgx-server/internal/domain"
)

// AlleleMatcher scores observed variant calls against the star-allele
// definitions of a gene. A defining position present as HET contributes
// 1, as HOM_ALT 2; the reference allele carries no defining variants
// and is implicit.
type AlleleMatcher struct {
	logger *logrus.Logger
}

func NewAlleleMatcher(logger *logrus.Logger) *AlleleMatcher {
	return &AlleleMatcher{logger: logger}
}

// alleleMatch extends the public candidate with the zygosity detail the
// resolver needs for the selection policy. Transient per call.
type alleleMatch struct {
	domain.CandidateAllele

	// Complete means every defining position of the allele was observed.
	Complete bool

	// AllHomAlt means every defining position was observed HOM_ALT, so
	// the allele is present on both chromosome copies.
	AllHomAlt bool

	// CisConsistent means the supporting calls can all sit on one
	// chromosome copy: a single call, all HOM_ALT, or phased onto the
	// same haplotype. Multi-variant alleles supported only by unphased
	// heterozygotes fail this; the trans default assigns those calls to
	// the component alleles instead.
	CisConsistent bool

	// Structural carries the symbolic marker of the definition.
	Structural string

	// MinQuality is the lowest quality among supporting variant calls.
	MinQuality float64

	// Calls are the supporting variant calls, by defining signature.
	Calls map[string]domain.VariantCall
}

// Match scores every allele definition against the genotype. Candidates
// with no supporting variant are dropped; the result is sorted by score
// descending, allele label ascending for determinism.
func (m *AlleleMatcher) Match(data domain.GenotypeData, table *cpic.GeneTable) []alleleMatch {
	byKey := make(map[string]domain.VariantCall, len(data.Variants))
	for _, v := range data.Variants {
		if v.Zygosity == domain.HomRef {
			continue
		}
		byKey[v.Key()] = v
	}

	var matches []alleleMatch
	for _, def := range table.Alleles {
		if len(def.Variants) == 0 {
			continue
		}
		match := alleleMatch{
			CandidateAllele: domain.CandidateAllele{Allele: def.Allele},
			Structural:      def.Structural,
			AllHomAlt:       true,
			MinQuality:      -1,
			Calls:           make(map[string]domain.VariantCall),
		}
		for _, sig := range def.Variants {
			call, ok := byKey[sig]
			if !ok {
				match.Missing = append(match.Missing, sig)
				match.AllHomAlt = false
				continue
			}
			switch call.Zygosity {
			case domain.Het:
				match.Score += 1
				match.AllHomAlt = false
			case domain.HomAlt:
				match.Score += 2
			}
			match.Supporting = append(match.Supporting, sig)
			match.Calls[sig] = call
			if match.MinQuality < 0 || call.Quality < match.MinQuality {
				match.MinQuality = call.Quality
			}
		}
		if len(match.Supporting) == 0 {
			continue
		}
		match.Complete = len(match.Missing) == 0
		match.CisConsistent = cisConsistent(match)
		matches = append(matches, match)
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Allele < matches[j].Allele
	})

	m.logger.WithFields(logrus.Fields{
		"gene":       data.Gene,
		"sample":     data.SampleID,
		"variants":   len(data.Variants),
		"candidates": len(matches),
	}).Debug("Allele matching completed")

	return matches
}

func cisConsistent(m alleleMatch) bool {
	if len(m.Calls) <= 1 || m.AllHomAlt {
		return true
	}
	first := true
	var phaseSet string
	var haplotype int
	for _, call := range m.Calls {
		if call.Zygosity == domain.HomAlt {
			continue
		}
		if !call.Phased || call.PhaseSet == "" {
			return false
		}
		if first {
			phaseSet, haplotype, first = call.PhaseSet, call.Haplotype, false
			continue
		}
		if call.PhaseSet != phaseSet || call.Haplotype != haplotype {
			return false
		}
	}
	return true
}

// NovelVariants returns observed variant signatures that appear in no
// allele definition of the gene.
func (m *AlleleMatcher) NovelVariants(data domain.GenotypeData, table *cpic.GeneTable) []string {
	defined := make(map[string]bool)
	for _, def := range table.Alleles {
		for _, sig := range def.Variants {
			defined[sig] = true
		}
	}
	var novel []string
	for _, v := range data.Variants {
		if v.Zygosity == domain.HomRef {
			continue
		}
		if !defined[v.Key()] {
			novel = append(novel, v.Key())
		}
	}
	return novel
}
