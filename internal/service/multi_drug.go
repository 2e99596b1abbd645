package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pharmaguard/pgx-server/internal/domain"
)

// Monitoring priority labels for polypharmacy assessments.
const (
	MonitoringImmediate = "immediate_action_required"
	MonitoringReview    = "review_before_prescribing"
	MonitoringEnhanced  = "enhanced_monitoring_required"
	MonitoringStandard  = "standard_monitoring"
)

// MultiDrugAggregator combines per-drug assessments and detected
// interactions into one polypharmacy result. Combined base score is
// 0.7 * max + 0.3 * mean of the individual scores; a synergistic
// interaction multiplies by the largest synergy multiplier, otherwise
// an inhibitory or competitive interaction multiplies by the largest
// such multiplier, and a purely additive case stays unmultiplied.
type MultiDrugAggregator struct {
	logger *logrus.Logger
}

func NewMultiDrugAggregator(logger *logrus.Logger) *MultiDrugAggregator {
	return &MultiDrugAggregator{logger: logger}
}

// Aggregate builds the combined assessment. assessments must be
// non-empty; interactions come pre-sorted from the analyzer.
func (g *MultiDrugAggregator) Aggregate(assessments []domain.DrugAssessment, interactions []domain.DrugDrugInteraction) domain.MultiDrugRiskAssessment {
	drugs := make([]string, len(assessments))
	maxScore, sumScore := 0.0, 0.0
	minConfidence := 1.0
	for i, a := range assessments {
		drugs[i] = a.Drug
		sumScore += a.Risk.RiskScore
		if a.Risk.RiskScore > maxScore {
			maxScore = a.Risk.RiskScore
		}
		if a.Risk.ConfidenceScore < minConfidence {
			minConfidence = a.Risk.ConfidenceScore
		}
	}
	avgScore := sumScore / float64(len(assessments))

	combined := 0.7*maxScore + 0.3*avgScore
	multiplier := interactionMultiplier(interactions)
	combined = clamp0100(combined * multiplier)

	penalty := 0.0
	highestSev := domain.InteractionSeverity("")
	for _, in := range interactions {
		penalty += in.ConfidencePenalty
		if in.Severity.Rank() > highestSev.Rank() {
			highestSev = in.Severity
		}
	}
	confidence := roundConfidence(clamp01(minConfidence - penalty))

	result := domain.MultiDrugRiskAssessment{
		Drugs:                 drugs,
		Individual:            assessments,
		CombinedRiskScore:     combined,
		CombinedRiskLevel:     domain.RiskLevelFromScore(combined),
		CombinedConfidence:    confidence,
		Interactions:          interactions,
		InteractionCount:      len(interactions),
		HighestInteractionSev: highestSev,
		Contributions:         contributions(assessments, sumScore, multiplier),
		HighestPriorityDrug:   highestPriorityDrug(assessments, interactions, highestSev),
		CriticalWarnings:      criticalWarnings(assessments, interactions),
		MonitoringPriority:    monitoringPriority(combined, highestSev),
	}
	result.Recommendation = g.recommendation(result)
	result.AlternativeSuggestions = alternativeSuggestions(assessments, interactions)

	g.logger.WithFields(logrus.Fields{
		"drugs":          drugs,
		"combined_score": combined,
		"combined_level": result.CombinedRiskLevel,
		"interactions":   len(interactions),
	}).Info("Polypharmacy risk aggregated")

	return result
}

// interactionMultiplier picks the score multiplier: synergistic
// toxicity dominates, then enzyme inhibition or competitive
// metabolism. Additive entries never multiply.
func interactionMultiplier(interactions []domain.DrugDrugInteraction) float64 {
	synergy, inhibition := 0.0, 0.0
	for _, in := range interactions {
		switch in.Type {
		case domain.SynergisticToxicity:
			if in.RiskMultiplier > synergy {
				synergy = in.RiskMultiplier
			}
		case domain.EnzymeInhibition, domain.CompetitiveMetabolism:
			if in.RiskMultiplier > inhibition {
				inhibition = in.RiskMultiplier
			}
		}
	}
	if synergy > 0 {
		return synergy
	}
	if inhibition > 0 {
		return inhibition
	}
	return 1.0
}

func contributions(assessments []domain.DrugAssessment, sumScore, multiplier float64) []domain.RiskContribution {
	ranked := make([]domain.RiskContribution, len(assessments))
	for i, a := range assessments {
		pct := 0.0
		if sumScore > 0 {
			pct = a.Risk.RiskScore / sumScore * 100
		}
		ranked[i] = domain.RiskContribution{
			Drug:            a.Drug,
			IndividualScore: a.Risk.RiskScore,
			ContributionPct: pct,
			Multiplier:      multiplier,
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].IndividualScore > ranked[j].IndividualScore
	})
	for i := range ranked {
		ranked[i].PriorityRank = i + 1
	}
	return ranked
}

// highestPriorityDrug is the drug with the greatest individual score
// among those involved in the highest-severity interaction, falling
// back to the overall highest scorer when nothing interacts.
func highestPriorityDrug(assessments []domain.DrugAssessment, interactions []domain.DrugDrugInteraction, highestSev domain.InteractionSeverity) string {
	involved := make(map[string]bool)
	for _, in := range interactions {
		if in.Severity == highestSev {
			involved[strings.ToLower(in.DrugA)] = true
			involved[strings.ToLower(in.DrugB)] = true
		}
	}

	best, bestScore := "", -1.0
	for _, a := range assessments {
		if len(involved) > 0 && !involved[a.Drug] {
			continue
		}
		if a.Risk.RiskScore > bestScore {
			best, bestScore = a.Drug, a.Risk.RiskScore
		}
	}
	if best == "" {
		for _, a := range assessments {
			if a.Risk.RiskScore > bestScore {
				best, bestScore = a.Drug, a.Risk.RiskScore
			}
		}
	}
	return best
}

func criticalWarnings(assessments []domain.DrugAssessment, interactions []domain.DrugDrugInteraction) []string {
	var warnings []string
	for _, in := range interactions {
		if in.Severity == domain.InteractionCritical {
			warnings = append(warnings, fmt.Sprintf(
				"CRITICAL interaction between %s and %s: %s", in.DrugA, in.DrugB, in.Mechanism))
		}
	}
	for _, a := range assessments {
		if a.Risk.Severity == domain.SeverityCritical {
			warnings = append(warnings, fmt.Sprintf(
				"%s carries critical pharmacogenomic risk for %s %s",
				a.Drug, a.Gene, a.Phenotype.Display()))
		}
	}
	return warnings
}

func monitoringPriority(combined float64, highestSev domain.InteractionSeverity) string {
	switch {
	case highestSev == domain.InteractionCritical || combined >= 90:
		return MonitoringImmediate
	case highestSev == domain.InteractionMajor || combined >= 70:
		return MonitoringReview
	case highestSev == domain.InteractionModerate || combined >= 40:
		return MonitoringEnhanced
	default:
		return MonitoringStandard
	}
}

func (g *MultiDrugAggregator) recommendation(r domain.MultiDrugRiskAssessment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Combined regimen risk is %s (%.1f/100).", r.CombinedRiskLevel, r.CombinedRiskScore)
	if r.InteractionCount > 0 {
		fmt.Fprintf(&b, " %d pharmacogenomic interaction(s) detected; highest severity %s.",
			r.InteractionCount, r.HighestInteractionSev)
	}
	if r.HighestPriorityDrug != "" {
		fmt.Fprintf(&b, " Review %s first.", r.HighestPriorityDrug)
	}
	switch r.MonitoringPriority {
	case MonitoringImmediate:
		b.WriteString(" Immediate clinical action required before dispensing.")
	case MonitoringReview:
		b.WriteString(" Pharmacist review recommended before prescribing.")
	case MonitoringEnhanced:
		b.WriteString(" Enhanced monitoring recommended.")
	}
	return b.String()
}

func alternativeSuggestions(assessments []domain.DrugAssessment, interactions []domain.DrugDrugInteraction) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, in := range interactions {
		add(in.Monitoring)
	}
	for _, a := range assessments {
		if a.Risk.RiskLevel == domain.RiskLevelHigh || a.Risk.RiskLevel == domain.RiskLevelCritical {
			for _, alt := range a.Recommendation.Alternatives {
				add(fmt.Sprintf("consider %s instead of %s", alt, a.Drug))
			}
		}
	}
	return out
}
