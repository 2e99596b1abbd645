package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Core Enums and Types

// Zygosity represents the genotype state of a variant call.
type Zygosity string

const (
	Het    Zygosity = "HET"
	HomRef Zygosity = "HOM_REF"
	HomAlt Zygosity = "HOM_ALT"
)

// Phenotype represents a metabolizer phenotype category (CPIC short codes).
type Phenotype string

const (
	PoorMetabolizer         Phenotype = "PM"
	IntermediateMetabolizer Phenotype = "IM"
	NormalMetabolizer       Phenotype = "NM"
	RapidMetabolizer        Phenotype = "RM"
	UltrarapidMetabolizer   Phenotype = "UM"
	IndeterminatePhenotype  Phenotype = "Indeterminate"
)

// Display returns the CPIC long-form phenotype name.
func (p Phenotype) Display() string {
	switch p {
	case PoorMetabolizer:
		return "Poor Metabolizer"
	case IntermediateMetabolizer:
		return "Intermediate Metabolizer"
	case NormalMetabolizer:
		return "Normal Metabolizer"
	case RapidMetabolizer:
		return "Rapid Metabolizer"
	case UltrarapidMetabolizer:
		return "Ultrarapid Metabolizer"
	default:
		return string(p)
	}
}

// Resolved reports whether the phenotype was determined.
func (p Phenotype) Resolved() bool {
	return p != "" && p != IndeterminatePhenotype
}

// IndeterminateReason explains why a diplotype could not be resolved.
type IndeterminateReason string

const (
	ReasonNone            IndeterminateReason = "none"
	ReasonNoCoverage      IndeterminateReason = "no_coverage"
	ReasonAmbiguous       IndeterminateReason = "ambiguous"
	ReasonNovelVariants   IndeterminateReason = "novel_variants"
	ReasonPartialMatch    IndeterminateReason = "partial_match"
	ReasonLowQuality      IndeterminateReason = "low_quality"
	ReasonUnsupportedGene IndeterminateReason = "unsupported_gene"
)

// Priority orders reasons when multiple apply; higher wins.
func (r IndeterminateReason) Priority() int {
	switch r {
	case ReasonUnsupportedGene:
		return 6
	case ReasonNovelVariants:
		return 5
	case ReasonNoCoverage:
		return 4
	case ReasonAmbiguous:
		return 3
	case ReasonPartialMatch:
		return 2
	case ReasonLowQuality:
		return 1
	default:
		return 0
	}
}

// Severity represents guideline severity categories.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityLow      Severity = "low"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities; higher is worse.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityModerate:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// RiskLevel is the categorical band for a 0-100 risk score.
type RiskLevel string

const (
	RiskLevelNone     RiskLevel = "none"
	RiskLevelLow      RiskLevel = "low"
	RiskLevelModerate RiskLevel = "moderate"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelCritical RiskLevel = "critical"
)

// RiskLevelFromScore maps a continuous risk score into its band.
// Bands: 90-100 critical, 70-89 high, 40-69 moderate, 20-39 low, 0-19 none.
func RiskLevelFromScore(score float64) RiskLevel {
	switch {
	case score >= 90:
		return RiskLevelCritical
	case score >= 70:
		return RiskLevelHigh
	case score >= 40:
		return RiskLevelModerate
	case score >= 20:
		return RiskLevelLow
	default:
		return RiskLevelNone
	}
}

// AssociationLevel classifies the strength of a gene-drug association.
type AssociationLevel string

const (
	AssociationUnconfirmed AssociationLevel = "unconfirmed"
	AssociationConflicting AssociationLevel = "conflicting"
	AssociationEstablished AssociationLevel = "established"
	AssociationModerate    AssociationLevel = "moderate"
	AssociationEmerging    AssociationLevel = "emerging"
	AssociationLimited     AssociationLevel = "limited"
)

// InteractionType categorizes drug-drug-gene interaction mechanisms.
type InteractionType string

const (
	SynergisticToxicity   InteractionType = "synergistic_toxicity"
	EnzymeInhibition      InteractionType = "enzyme_inhibition"
	CompetitiveMetabolism InteractionType = "competitive_metabolism"
	AdditiveRisk          InteractionType = "additive_risk"
)

// InteractionSeverity grades a drug-drug interaction.
type InteractionSeverity string

const (
	InteractionMinor    InteractionSeverity = "minor"
	InteractionModerate InteractionSeverity = "moderate"
	InteractionMajor    InteractionSeverity = "major"
	InteractionCritical InteractionSeverity = "critical"
)

// Rank orders interaction severities; higher is worse.
func (s InteractionSeverity) Rank() int {
	switch s {
	case InteractionCritical:
		return 4
	case InteractionMajor:
		return 3
	case InteractionModerate:
		return 2
	case InteractionMinor:
		return 1
	default:
		return 0
	}
}

// Genotype Models

// VariantCall represents a single variant call for a sample.
// Immutable once parsed; owned by its GenotypeData.
type VariantCall struct {
	Chrom    string   `json:"chrom"`
	Pos      int64    `json:"pos"`
	RSID     string   `json:"rsid,omitempty"`
	Ref      string   `json:"ref"`
	Alt      string   `json:"alt"`
	Zygosity Zygosity `json:"zygosity"`
	Quality  float64  `json:"quality"`
	Filter   string   `json:"filter"`

	// AlleleDepth is the (ref, alt) read depth pair when reported.
	AlleleDepth []int `json:"allele_depth,omitempty"`

	// Phasing information (PS tag and haplotype index from the VCF).
	Phased    bool   `json:"phased"`
	PhaseSet  string `json:"phase_set,omitempty"`
	Haplotype int    `json:"haplotype,omitempty"`
}

// Key returns the positional signature "POS:REF:ALT" used to match
// against allele definitions.
func (v VariantCall) Key() string {
	return fmt.Sprintf("%d:%s:%s", v.Pos, v.Ref, v.Alt)
}

// GenotypeData holds the variant calls for one gene of one sample,
// produced by the external VCF-parsing collaborator.
type GenotypeData struct {
	SampleID         string        `json:"sample_id"`
	Gene             string        `json:"gene"`
	Variants         []VariantCall `json:"variants"`
	CoverageMean     float64       `json:"coverage_mean,omitempty"`
	CoveredPositions []int64       `json:"covered_positions,omitempty"`
}

// VariantKeys returns the positional signatures of all variant calls.
func (g GenotypeData) VariantKeys() []string {
	keys := make([]string, len(g.Variants))
	for i, v := range g.Variants {
		keys[i] = v.Key()
	}
	return keys
}

// CoversPosition reports whether pos had adequate coverage.
func (g GenotypeData) CoversPosition(pos int64) bool {
	for _, p := range g.CoveredPositions {
		if p == pos {
			return true
		}
	}
	return false
}

// AlleleDefinition is a static star-allele definition: the set of
// defining variant signatures for one named haplotype.
type AlleleDefinition struct {
	Gene     string   `json:"gene"`
	Allele   string   `json:"allele"`
	Variants []string `json:"variants"` // "POS:REF:ALT" signatures

	// Structural marks symbolic alleles (gene deletion/duplication).
	Structural string `json:"structural,omitempty"`
}

// CandidateAllele is a transient allele match produced during one
// resolution call. HET defining positions contribute 1, HOM_ALT 2.
type CandidateAllele struct {
	Allele     string   `json:"allele"`
	Score      float64  `json:"score"`
	Supporting []string `json:"supporting,omitempty"`
	Missing    []string `json:"missing,omitempty"`
}

// Resolution Models

// ConfidenceBreakdown records every factor of a confidence computation.
// Final = min(Base*CoverageFactor*AmbiguityFactor, PhenotypeCap, AutomationCap),
// clamped to [0,1] and rounded to 4 decimal places.
type ConfidenceBreakdown struct {
	Base            float64  `json:"base"`
	CoverageFactor  float64  `json:"coverage_factor"`
	AmbiguityFactor float64  `json:"ambiguity_factor"`
	PhenotypeCap    float64  `json:"phenotype_cap"`
	AutomationCap   float64  `json:"automation_cap"`
	Final           float64  `json:"final"`
	Penalties       []string `json:"penalties,omitempty"`
}

// AutomationGate reports whether downstream automation is allowed for
// an assessment, with the reasons blocking it.
type AutomationGate struct {
	Allowed        bool     `json:"allowed"`
	BlockedReasons []string `json:"blocked_reasons,omitempty"`
}

// DiplotypeResult is the outcome of diplotype resolution for one gene.
// Immutable after creation.
type DiplotypeResult struct {
	Gene                string               `json:"gene"`
	Diplotype           string               `json:"diplotype"`
	Phenotype           Phenotype            `json:"phenotype"`
	Confidence          float64              `json:"confidence"`
	Indeterminate       bool                 `json:"indeterminate"`
	IndeterminateReason IndeterminateReason  `json:"indeterminate_reason"`
	Notes               string               `json:"notes,omitempty"`
	Phased              bool                 `json:"phased"`
	Breakdown           *ConfidenceBreakdown `json:"confidence_breakdown,omitempty"`
}

// PatientProfile is a sample's resolved diplotypes keyed by gene.
type PatientProfile struct {
	SampleID   string                     `json:"sample_id"`
	Diplotypes map[string]DiplotypeResult `json:"diplotypes"`
}

// Risk Models

// EvidenceAnnotation is a single nested evidence item from the
// guideline dataset. Association values are harmonized against the
// top-level classification.
type EvidenceAnnotation struct {
	Source       string `json:"source,omitempty"`
	EvidenceType string `json:"evidence_type,omitempty"`
	Association  string `json:"association"`
}

// RiskComponents is the per-factor breakdown of a composite risk score.
type RiskComponents struct {
	BaseSeverity      float64 `json:"base_severity_score"`
	PhenotypeModifier float64 `json:"phenotype_modifier"`
	ConfidenceFactor  float64 `json:"confidence_factor"`
	RarityBonus       float64 `json:"rarity_bonus"`
	FeedbackPrior     float64 `json:"feedback_prior"`
}

// RiskAssessment is the scored result for one (drug, gene, phenotype).
type RiskAssessment struct {
	RiskLabel       string               `json:"risk_label"`
	RiskScore       float64              `json:"risk_score"`
	RiskLevel       RiskLevel            `json:"risk_level"`
	Severity        Severity             `json:"severity"`
	ConfidenceScore float64              `json:"confidence_score"`
	Association     AssociationLevel     `json:"association"`
	Annotations     []EvidenceAnnotation `json:"annotations,omitempty"`
	Components      RiskComponents       `json:"components"`
	Automation      AutomationGate       `json:"automation_status"`
}

// ClinicalRecommendation carries the actionable guidance for a drug.
type ClinicalRecommendation struct {
	Action       string   `json:"action"`
	Implication  string   `json:"implication"`
	Alternatives []string `json:"alternatives,omitempty"`
	Monitoring   string   `json:"monitoring,omitempty"`
	Urgency      string   `json:"urgency,omitempty"`
	GuidelineURL string   `json:"guideline_url,omitempty"`
}

// DrugAssessment is the complete single-drug result exposed to the API layer.
type DrugAssessment struct {
	Drug           string                 `json:"drug"`
	Gene           string                 `json:"gene"`
	Diplotype      string                 `json:"diplotype"`
	Phenotype      Phenotype              `json:"phenotype"`
	Risk           RiskAssessment         `json:"risk"`
	Recommendation ClinicalRecommendation `json:"recommendation"`
}

// Interaction Models

// DrugDrugInteraction is a static interaction table entry. Immutable.
type DrugDrugInteraction struct {
	DrugA              string              `json:"drug_a"`
	DrugB              string              `json:"drug_b"`
	Gene               string              `json:"gene"`
	Type               InteractionType     `json:"type"`
	Severity           InteractionSeverity `json:"severity"`
	RiskMultiplier     float64             `json:"risk_multiplier"`
	ConfidencePenalty  float64             `json:"confidence_penalty"`
	Mechanism          string              `json:"mechanism"`
	Implication        string              `json:"implication,omitempty"`
	Monitoring         string              `json:"monitoring,omitempty"`
	AffectedPhenotypes []Phenotype         `json:"affected_phenotypes,omitempty"`
}

// MatchesPair reports whether this entry covers the unordered pair
// (a, b) for the given gene.
func (i DrugDrugInteraction) MatchesPair(a, b, gene string) bool {
	if i.Gene != gene {
		return false
	}
	la, lb := strings.ToLower(a), strings.ToLower(b)
	ia, ib := strings.ToLower(i.DrugA), strings.ToLower(i.DrugB)
	return (ia == la && ib == lb) || (ia == lb && ib == la)
}

// AffectsPhenotype reports whether the interaction applies to the
// patient's phenotype. An empty set means all phenotypes.
func (i DrugDrugInteraction) AffectsPhenotype(p Phenotype) bool {
	if len(i.AffectedPhenotypes) == 0 {
		return true
	}
	for _, ap := range i.AffectedPhenotypes {
		if ap == p {
			return true
		}
	}
	return false
}

// RiskContribution records one drug's share of a combined assessment.
type RiskContribution struct {
	Drug            string  `json:"drug"`
	IndividualScore float64 `json:"individual_risk_score"`
	ContributionPct float64 `json:"contribution_pct"`
	Multiplier      float64 `json:"interaction_multiplier"`
	PriorityRank    int     `json:"priority_rank"`
}

// MultiDrugRiskAssessment is the combined polypharmacy result. Built
// fresh per request; not persisted.
type MultiDrugRiskAssessment struct {
	Drugs                  []string              `json:"drugs"`
	Individual             []DrugAssessment      `json:"individual_risks"`
	CombinedRiskScore      float64               `json:"combined_risk_score"`
	CombinedRiskLevel      RiskLevel             `json:"combined_risk_level"`
	CombinedConfidence     float64               `json:"combined_confidence"`
	Interactions           []DrugDrugInteraction `json:"detected_interactions"`
	InteractionCount       int                   `json:"interaction_count"`
	HighestInteractionSev  InteractionSeverity   `json:"highest_interaction_severity"`
	Contributions          []RiskContribution    `json:"contributions"`
	HighestPriorityDrug    string                `json:"highest_priority_drug"`
	CriticalWarnings       []string              `json:"critical_warnings,omitempty"`
	Recommendation         string                `json:"polypharmacy_recommendation"`
	MonitoringPriority     string                `json:"monitoring_priority"`
	AlternativeSuggestions []string              `json:"alternative_suggestions,omitempty"`
}

// Learning Models

// LearningPrior is the multiplicative feedback prior for one
// (gene, diplotype) pair. Mutated only by the feedback learner.
type LearningPrior struct {
	Gene      string    `json:"gene"`
	Diplotype string    `json:"diplotype"`
	Value     float64   `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
	Events    int64     `json:"events"`
}

// FeedbackEvent is a single clinician correction submission.
type FeedbackEvent struct {
	Gene              string    `json:"gene"`
	ReportedDiplotype string    `json:"reported_diplotype"`
	CorrectDiplotype  string    `json:"correct_diplotype"`
	Quality           float64   `json:"quality"` // clinician confidence [0,1]
	Timestamp         time.Time `json:"timestamp"`
	Comments          string    `json:"comments,omitempty"`
}

// Calibration Models

// CalibrationBin tracks predicted-vs-empirical accuracy for one
// confidence range. Ten bins span [0,1].
type CalibrationBin struct {
	Label             string  `json:"label"`
	Lower             float64 `json:"lower"`
	Upper             float64 `json:"upper"`
	Samples           int64   `json:"samples"`
	Correct           int64   `json:"correct"`
	EmpiricalAccuracy float64 `json:"empirical_accuracy"`
	CalibrationError  float64 `json:"calibration_error"`
}

// Midpoint returns the predicted-confidence midpoint of the bin.
func (b CalibrationBin) Midpoint() float64 {
	return (b.Lower + b.Upper) / 2
}

// PredictionOutcome records one prediction with its later-known result.
type PredictionOutcome struct {
	ID                 string    `json:"id"`
	Timestamp          time.Time `json:"timestamp"`
	Gene               string    `json:"gene"`
	DiplotypePredicted string    `json:"diplotype_predicted"`
	DiplotypeActual    string    `json:"diplotype_actual,omitempty"`
	Confidence         float64   `json:"confidence"`
	RiskScore          float64   `json:"risk_score"`
	RiskLevel          RiskLevel `json:"risk_level"`
	Correct            *bool     `json:"correct,omitempty"`
}

// NormalizeDiplotype orders the two alleles of a diplotype string so
// lookups are insensitive to allele order (*4/*1 -> *1/*4). Numeric
// star alleles sort numerically, others lexically.
func NormalizeDiplotype(diplotype string) string {
	parts := strings.Split(diplotype, "/")
	if len(parts) != 2 {
		return diplotype
	}
	sort.Slice(parts, func(i, j int) bool {
		ni, oki := starNumber(parts[i])
		nj, okj := starNumber(parts[j])
		if oki && okj && ni != nj {
			return ni < nj
		}
		return parts[i] < parts[j]
	})
	return parts[0] + "/" + parts[1]
}

func starNumber(allele string) (int, bool) {
	s := strings.TrimPrefix(allele, "*")
	n := 0
	seen := false
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
		seen = true
	}
	return n, seen
}
