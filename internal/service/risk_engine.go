package service

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pharmaguard/pgx-server/internal/config"
	"github.com/pharmaguard/pgx-server/internal/cpic"
	"github.com/pharmaguard/pgx-server/internal/domain"
	"github.com/pharmaguard/pgx-server/internal/population"
)

// RiskEngine maps (drug, gene, phenotype, confidence) to a scored risk
// assessment and clinical recommendation using the guideline snapshot.
// The composite score is:
//
//	score = clamp(((base + phenotypeMod) * confFactor + rarityBonus) * prior, 0, 100)
//
// with confFactor = floor + span * confidence. All weights come from
// configuration so they remain open to calibration.
type RiskEngine struct {
	snapshot   *cpic.Snapshot
	analyzer   *population.Analyzer
	cfg        config.ScoringConfig
	population string

	// automationCap bounds reported confidence when the automation
	// gate blocks, mirroring the scorer's cap.
	automationCap float64

	logger *logrus.Logger
}

func NewRiskEngine(snapshot *cpic.Snapshot, analyzer *population.Analyzer, cfg config.ScoringConfig, automationCap float64, pop string, logger *logrus.Logger) *RiskEngine {
	if pop == "" {
		pop = cpic.DefaultPopulation
	}
	return &RiskEngine{
		snapshot:      snapshot,
		analyzer:      analyzer,
		cfg:           cfg,
		population:    pop,
		automationCap: automationCap,
		logger:        logger,
	}
}

// Assess evaluates one drug against a resolved diplotype. prior is the
// feedback multiplier from the learning snapshot, 1.0 when absent.
// Unsupported drugs and unmapped phenotypes degrade to a standard-dosing
// result in the none/low band rather than failing.
func (e *RiskEngine) Assess(drug string, res domain.DiplotypeResult, prior float64) domain.DrugAssessment {
	if prior <= 0 {
		prior = 1.0
	}

	guideline, ok := e.snapshot.Guideline(drug)
	if !ok {
		e.logger.WithField("drug", drug).Warn("No guideline for drug")
		return e.degraded(drug, res, prior, "No pharmacogenomic guideline available for this drug")
	}

	entry, ok := guideline.ByPhenotype[res.Phenotype]
	if !ok {
		return e.noRecommendation(drug, guideline, res, prior)
	}

	severityBase := e.severityBase(entry.Severity)
	phenotypeMod := e.phenotypeModifier(res.Phenotype)
	confFactor := e.cfg.ConfidenceFloor + e.cfg.ConfidenceSpan*res.Confidence
	rarityBonus := e.rarityBonus(res)

	score := clamp0100(((severityBase+phenotypeMod)*confFactor + rarityBonus) * prior)

	gate := e.automationGate(res, entry.Severity)
	confidence := res.Confidence
	if !gate.Allowed {
		confidence = roundConfidence(clamp01(min2(confidence, e.automationCap)))
	}

	association, annotations := ClassifyAssociation(guideline.EvidenceLevel, guideline.Evidence)

	assessment := domain.DrugAssessment{
		Drug:      strings.ToLower(drug),
		Gene:      guideline.Gene,
		Diplotype: res.Diplotype,
		Phenotype: res.Phenotype,
		Risk: domain.RiskAssessment{
			RiskLabel:       entry.Action,
			RiskScore:       score,
			RiskLevel:       domain.RiskLevelFromScore(score),
			Severity:        entry.Severity,
			ConfidenceScore: confidence,
			Association:     association,
			Annotations:     annotations,
			Components: domain.RiskComponents{
				BaseSeverity:      severityBase,
				PhenotypeModifier: phenotypeMod,
				ConfidenceFactor:  confFactor,
				RarityBonus:       rarityBonus,
				FeedbackPrior:     prior,
			},
			Automation: gate,
		},
		Recommendation: domain.ClinicalRecommendation{
			Action:       entry.Action,
			Implication:  entry.Implication,
			Alternatives: entry.Alternatives,
			Monitoring:   entry.Monitoring,
			Urgency:      entry.Urgency,
			GuidelineURL: entry.URL,
		},
	}

	e.logger.WithFields(logrus.Fields{
		"drug":       assessment.Drug,
		"gene":       assessment.Gene,
		"phenotype":  res.Phenotype,
		"risk_score": score,
		"risk_level": assessment.Risk.RiskLevel,
	}).Info("Drug risk assessed")

	return assessment
}

// automationGate decides whether downstream automated ordering may act
// on this assessment without human review.
func (e *RiskEngine) automationGate(res domain.DiplotypeResult, severity domain.Severity) domain.AutomationGate {
	var blocked []string
	if res.Indeterminate {
		blocked = append(blocked, "indeterminate_diplotype")
	}
	if !res.Phenotype.Resolved() {
		blocked = append(blocked, "unresolved_phenotype")
	}
	if severity == domain.SeverityCritical {
		blocked = append(blocked, "critical_severity_requires_review")
	}
	return domain.AutomationGate{Allowed: len(blocked) == 0, BlockedReasons: blocked}
}

// degraded builds the zero-guideline result for unsupported drugs.
func (e *RiskEngine) degraded(drug string, res domain.DiplotypeResult, prior float64, label string) domain.DrugAssessment {
	severityBase := e.cfg.SeverityBase.None
	phenotypeMod := e.phenotypeModifier(res.Phenotype)
	confFactor := e.cfg.ConfidenceFloor + e.cfg.ConfidenceSpan*res.Confidence
	score := clamp0100((severityBase + phenotypeMod) * confFactor * prior)

	gate := e.automationGate(res, domain.SeverityNone)
	confidence := res.Confidence
	if !gate.Allowed {
		confidence = roundConfidence(clamp01(min2(confidence, e.automationCap)))
	}

	return domain.DrugAssessment{
		Drug:      strings.ToLower(drug),
		Gene:      res.Gene,
		Diplotype: res.Diplotype,
		Phenotype: res.Phenotype,
		Risk: domain.RiskAssessment{
			RiskLabel:       label,
			RiskScore:       score,
			RiskLevel:       domain.RiskLevelFromScore(score),
			Severity:        domain.SeverityNone,
			ConfidenceScore: confidence,
			Association:     domain.AssociationUnconfirmed,
			Components: domain.RiskComponents{
				BaseSeverity:      severityBase,
				PhenotypeModifier: phenotypeMod,
				ConfidenceFactor:  confFactor,
				FeedbackPrior:     prior,
			},
			Automation: gate,
		},
		Recommendation: domain.ClinicalRecommendation{
			Action:      "Standard dosing",
			Implication: label,
		},
	}
}

// noRecommendation covers drugs with a guideline but no entry for the
// resolved phenotype, including indeterminate phenotypes.
func (e *RiskEngine) noRecommendation(drug string, guideline *cpic.DrugGuideline, res domain.DiplotypeResult, prior float64) domain.DrugAssessment {
	assessment := e.degraded(drug, res, prior,
		fmt.Sprintf("No recommendation for phenotype %s", res.Phenotype))
	assessment.Gene = guideline.Gene

	// Evidence still classifies even without a phenotype entry.
	association, annotations := ClassifyAssociation(guideline.EvidenceLevel, guideline.Evidence)
	assessment.Risk.Association = association
	assessment.Risk.Annotations = annotations
	return assessment
}

func (e *RiskEngine) severityBase(s domain.Severity) float64 {
	switch s {
	case domain.SeverityCritical:
		return e.cfg.SeverityBase.Critical
	case domain.SeverityHigh:
		return e.cfg.SeverityBase.High
	case domain.SeverityModerate:
		return e.cfg.SeverityBase.Moderate
	case domain.SeverityLow:
		return e.cfg.SeverityBase.Low
	default:
		return e.cfg.SeverityBase.None
	}
}

func (e *RiskEngine) phenotypeModifier(p domain.Phenotype) float64 {
	switch p {
	case domain.PoorMetabolizer:
		return e.cfg.PhenotypeModifier.PM
	case domain.UltrarapidMetabolizer:
		return e.cfg.PhenotypeModifier.UM
	case domain.IntermediateMetabolizer:
		return e.cfg.PhenotypeModifier.IM
	case domain.RapidMetabolizer:
		return e.cfg.PhenotypeModifier.RM
	case domain.NormalMetabolizer:
		return e.cfg.PhenotypeModifier.NM
	default:
		return e.cfg.PhenotypeModifier.Indeterminate
	}
}

// rarityBonus adds a small upward adjustment for rare diplotypes, where
// guideline evidence is thinner and caution is warranted.
func (e *RiskEngine) rarityBonus(res domain.DiplotypeResult) float64 {
	if res.Diplotype == "" {
		return 0
	}
	freq := e.analyzer.DiplotypeProbability(res.Gene, res.Diplotype, e.population)
	switch {
	case freq < 0.001:
		return e.cfg.RarityBonusVeryRare
	case freq < 0.01:
		return e.cfg.RarityBonusRare
	case freq < 0.05:
		return e.cfg.RarityBonusUncommon
	default:
		return 0
	}
}

func min2(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
