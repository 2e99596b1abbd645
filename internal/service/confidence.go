package service

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/pharmaguard/pgx-server/internal/config"
	"github.com/pharmaguard/pgx-server/internal/domain"
)

// ConfidenceInputs are the signals feeding one confidence computation.
type ConfidenceInputs struct {
	// UncoveredRequired counts defining positions that are required for
	// the call but absent from the covered-position set.
	UncoveredRequired int

	// UnphasedHet marks a compound heterozygote resolved under the
	// trans assumption without phasing evidence.
	UnphasedHet bool

	// IndeterminateOrPartial marks indeterminate results and partial
	// allele matches.
	IndeterminateOrPartial bool

	// RareAllele marks diplotypes below the configured population
	// frequency threshold, including unlisted alleles.
	RareAllele bool

	// InferredByAbsence marks wild-type calls made without positional
	// coverage data to confirm the reference state.
	InferredByAbsence bool

	// StructuralVariant marks calls involving gene deletion or
	// duplication alleles.
	StructuralVariant bool

	PhenotypeResolved bool
	AutomationAllowed bool
}

// ConfidenceScorer computes bounded [0,1] confidence values from
// coverage, ambiguity, and gating signals. All factors and caps come
// from configuration so they can be recalibrated without a rebuild.
type ConfidenceScorer struct {
	cfg    config.ConfidenceConfig
	logger *logrus.Logger
}

func NewConfidenceScorer(cfg config.ConfidenceConfig, logger *logrus.Logger) *ConfidenceScorer {
	return &ConfidenceScorer{cfg: cfg, logger: logger}
}

// Score applies the multiplicative model: base 1.0, one coverage factor
// per uncovered required position, then each applicable ambiguity
// factor. Hard caps follow: phenotype unresolved caps at 0.50,
// automation blocked at 0.70. The result is clamped to [0,1] and
// rounded to 4 decimal places, so no assessment can report high
// confidence alongside an unresolved phenotype or a blocked gate.
func (s *ConfidenceScorer) Score(in ConfidenceInputs) domain.ConfidenceBreakdown {
	b := domain.ConfidenceBreakdown{
		Base:            1.0,
		CoverageFactor:  1.0,
		AmbiguityFactor: 1.0,
		PhenotypeCap:    1.0,
		AutomationCap:   1.0,
	}

	for i := 0; i < in.UncoveredRequired; i++ {
		b.CoverageFactor *= s.cfg.UncoveredPositionFactor
	}
	if in.UncoveredRequired > 0 {
		b.Penalties = append(b.Penalties, "uncovered_positions")
	}

	if in.UnphasedHet {
		b.AmbiguityFactor *= s.cfg.UnphasedHetFactor
		b.Penalties = append(b.Penalties, "unphased_heterozygote")
	}
	if in.IndeterminateOrPartial {
		b.AmbiguityFactor *= s.cfg.IndeterminateFactor
		b.Penalties = append(b.Penalties, "indeterminate_or_partial")
	}
	if in.RareAllele {
		b.AmbiguityFactor *= s.cfg.RareAlleleFactor
		b.Penalties = append(b.Penalties, "rare_allele")
	}
	if in.InferredByAbsence {
		b.AmbiguityFactor *= s.cfg.InferredWildtype
		b.Penalties = append(b.Penalties, "inferred_by_absence")
	}

	confidence := b.Base * b.CoverageFactor * b.AmbiguityFactor

	if in.StructuralVariant && confidence > s.cfg.StructuralVariantCap {
		confidence = s.cfg.StructuralVariantCap
		b.Penalties = append(b.Penalties, "structural_variant")
	}

	if !in.PhenotypeResolved {
		b.PhenotypeCap = s.cfg.PhenotypeUnresolvedCap
		b.Penalties = append(b.Penalties, "phenotype_unresolved")
	}
	if !in.AutomationAllowed {
		b.AutomationCap = s.cfg.AutomationBlockedCap
		b.Penalties = append(b.Penalties, "automation_blocked")
	}

	confidence = math.Min(confidence, math.Min(b.PhenotypeCap, b.AutomationCap))
	b.Final = roundConfidence(clamp01(confidence))
	return b
}

// CapForAutomation re-applies the automation cap to an already-scored
// confidence when a downstream gate blocks after resolution.
func (s *ConfidenceScorer) CapForAutomation(confidence float64) float64 {
	return roundConfidence(clamp01(math.Min(confidence, s.cfg.AutomationBlockedCap)))
}

func roundConfidence(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clamp0100(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
