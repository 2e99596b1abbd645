package cpic

import (
	"github.com/pharmaguard/pgx-server/internal/domain"
)

// Default returns the builtin guideline snapshot covering the six core
// pharmacogenes and their index drugs. Positions are GRCh38; sources are
// the published CPIC allele definition and diplotype-phenotype tables.
func Default() *Snapshot {
	snap := &Snapshot{
		Version: "builtin-1.0",
		Genes: map[string]*GeneTable{
			"CYP2D6":  cyp2d6Table(),
			"CYP2C19": cyp2c19Table(),
			"CYP2C9":  cyp2c9Table(),
			"TPMT":    tpmtTable(),
			"SLCO1B1": slco1b1Table(),
			"DPYD":    dpydTable(),
		},
		Drugs:        builtinGuidelines(),
		Interactions: builtinInteractions(),
		Frequencies:  builtinFrequencies(),
	}
	return snap
}

func cyp2d6Table() *GeneTable {
	return &GeneTable{
		Gene: "CYP2D6",
		Alleles: []domain.AlleleDefinition{
			{Gene: "CYP2D6", Allele: "*1", Variants: nil},
			{Gene: "CYP2D6", Allele: "*3", Variants: []string{"42128242:GA:G"}},
			{Gene: "CYP2D6", Allele: "*4", Variants: []string{"42128945:C:T"}},
			{Gene: "CYP2D6", Allele: "*5", Variants: nil, Structural: "deletion"},
			{Gene: "CYP2D6", Allele: "*6", Variants: []string{"42129084:CT:C"}},
			{Gene: "CYP2D6", Allele: "*10", Variants: []string{"42130692:G:A"}},
			{Gene: "CYP2D6", Allele: "*17", Variants: []string{"42129770:G:A"}},
			{Gene: "CYP2D6", Allele: "*41", Variants: []string{"42127803:C:T"}},
			{Gene: "CYP2D6", Allele: "*1x2", Variants: nil, Structural: "duplication"},
		},
		Activity: map[string]float64{
			"*1": 1.0, "*1x2": 2.0, "*1xN": 2.0, "*2": 1.0, "*2x2": 2.0,
			"*3": 0, "*4": 0, "*5": 0, "*6": 0, "*7": 0, "*8": 0,
			"*9": 0.5, "*10": 0.5, "*14": 0, "*17": 0.5, "*29": 0.5,
			"*35": 1.0, "*36": 0, "*41": 0.5,
		},
		PhenotypeMap: map[string]domain.Phenotype{
			"*1/*1": domain.NormalMetabolizer, "*1/*2": domain.NormalMetabolizer,
			"*2/*2": domain.NormalMetabolizer,
			"*1/*3": domain.IntermediateMetabolizer, "*1/*4": domain.IntermediateMetabolizer,
			"*1/*5": domain.IntermediateMetabolizer, "*1/*6": domain.IntermediateMetabolizer,
			"*2/*3": domain.IntermediateMetabolizer, "*2/*4": domain.IntermediateMetabolizer,
			"*2/*5": domain.IntermediateMetabolizer, "*2/*6": domain.IntermediateMetabolizer,
			"*1/*10": domain.IntermediateMetabolizer, "*1/*17": domain.IntermediateMetabolizer,
			"*1/*41": domain.IntermediateMetabolizer, "*2/*41": domain.IntermediateMetabolizer,
			"*4/*10": domain.PoorMetabolizer, "*4/*41": domain.IntermediateMetabolizer,
			"*10/*10": domain.IntermediateMetabolizer, "*41/*41": domain.IntermediateMetabolizer,
			"*3/*3": domain.PoorMetabolizer, "*3/*4": domain.PoorMetabolizer,
			"*3/*5": domain.PoorMetabolizer, "*3/*6": domain.PoorMetabolizer,
			"*4/*4": domain.PoorMetabolizer, "*4/*5": domain.PoorMetabolizer,
			"*4/*6": domain.PoorMetabolizer, "*5/*5": domain.PoorMetabolizer,
			"*5/*6": domain.PoorMetabolizer, "*6/*6": domain.PoorMetabolizer,
			"*1/*1x2": domain.UltrarapidMetabolizer,
		},
		KeyPositions: []int64{42127803, 42128242, 42128945, 42129084, 42129770, 42130692},
	}
}

func cyp2c19Table() *GeneTable {
	return &GeneTable{
		Gene: "CYP2C19",
		Alleles: []domain.AlleleDefinition{
			{Gene: "CYP2C19", Allele: "*1", Variants: nil},
			{Gene: "CYP2C19", Allele: "*2", Variants: []string{"94781859:G:A"}},
			{Gene: "CYP2C19", Allele: "*3", Variants: []string{"94780653:G:A"}},
			{Gene: "CYP2C19", Allele: "*17", Variants: []string{"94761900:C:T"}},
		},
		Activity: map[string]float64{
			"*1": 1.0, "*2": 0, "*3": 0, "*4": 0, "*5": 0, "*6": 0,
			"*7": 0, "*8": 0, "*9": 0.5, "*10": 0.5, "*17": 1.5,
			"*27": 0.5, "*35": 0.5,
		},
		PhenotypeMap: map[string]domain.Phenotype{
			"*1/*1":   domain.NormalMetabolizer,
			"*1/*2":   domain.IntermediateMetabolizer,
			"*1/*3":   domain.IntermediateMetabolizer,
			"*2/*2":   domain.PoorMetabolizer,
			"*2/*3":   domain.PoorMetabolizer,
			"*3/*3":   domain.PoorMetabolizer,
			"*1/*17":  domain.RapidMetabolizer,
			"*2/*17":  domain.IntermediateMetabolizer,
			"*17/*17": domain.UltrarapidMetabolizer,
		},
		KeyPositions: []int64{94761900, 94780653, 94781859},
	}
}

func cyp2c9Table() *GeneTable {
	return &GeneTable{
		Gene: "CYP2C9",
		Alleles: []domain.AlleleDefinition{
			{Gene: "CYP2C9", Allele: "*1", Variants: nil},
			{Gene: "CYP2C9", Allele: "*2", Variants: []string{"94942290:C:T"}},
			{Gene: "CYP2C9", Allele: "*3", Variants: []string{"94981296:A:C"}},
		},
		Activity: map[string]float64{
			"*1": 1.0, "*2": 0.5, "*3": 0, "*4": 0, "*5": 0, "*6": 0,
			"*8": 0.5, "*11": 0.5, "*12": 0.5, "*13": 0, "*14": 0.5,
		},
		PhenotypeMap: map[string]domain.Phenotype{
			"*1/*1": domain.NormalMetabolizer,
			"*1/*2": domain.IntermediateMetabolizer,
			"*1/*3": domain.IntermediateMetabolizer,
			"*2/*2": domain.IntermediateMetabolizer,
			"*2/*3": domain.PoorMetabolizer,
			"*3/*3": domain.PoorMetabolizer,
		},
		KeyPositions: []int64{94942290, 94981296},
	}
}

func tpmtTable() *GeneTable {
	return &GeneTable{
		Gene: "TPMT",
		Alleles: []domain.AlleleDefinition{
			{Gene: "TPMT", Allele: "*1", Variants: nil},
			{Gene: "TPMT", Allele: "*2", Variants: []string{"18143724:C:G"}},
			{Gene: "TPMT", Allele: "*3A", Variants: []string{"18139228:C:T", "18130918:T:C"}},
			{Gene: "TPMT", Allele: "*3B", Variants: []string{"18139228:C:T"}},
			{Gene: "TPMT", Allele: "*3C", Variants: []string{"18130918:T:C"}},
		},
		Activity: map[string]float64{
			"*1": 1.0, "*2": 0, "*3A": 0, "*3B": 0, "*3C": 0, "*3D": 0,
			"*4": 0, "*5": 0, "*6": 0, "*7": 0, "*8": 0.5, "*9": 0.5,
			"*10": 0.5, "*11": 0.5, "*12": 0.5,
		},
		PhenotypeMap: map[string]domain.Phenotype{
			"*1/*1":   domain.NormalMetabolizer,
			"*1/*2":   domain.IntermediateMetabolizer,
			"*1/*3A":  domain.IntermediateMetabolizer,
			"*1/*3C":  domain.IntermediateMetabolizer,
			"*2/*2":   domain.PoorMetabolizer,
			"*2/*3A":  domain.PoorMetabolizer,
			"*2/*3C":  domain.PoorMetabolizer,
			"*3A/*3A": domain.PoorMetabolizer,
			"*3A/*3C": domain.PoorMetabolizer,
			"*3C/*3C": domain.PoorMetabolizer,
		},
		KeyPositions: []int64{18130918, 18139228, 18143724},
	}
}

func slco1b1Table() *GeneTable {
	return &GeneTable{
		Gene: "SLCO1B1",
		Alleles: []domain.AlleleDefinition{
			{Gene: "SLCO1B1", Allele: "*1", Variants: nil},
			{Gene: "SLCO1B1", Allele: "*1b", Variants: []string{"21176804:A:G"}},
			{Gene: "SLCO1B1", Allele: "*5", Variants: []string{"21178615:T:C"}},
			{Gene: "SLCO1B1", Allele: "*15", Variants: []string{"21176804:A:G", "21178615:T:C"}},
		},
		Activity: map[string]float64{
			"*1": 1.0, "*1b": 1.0, "*2": 0.5, "*3": 0.5, "*4": 0.5,
			"*5": 0, "*6": 0, "*9": 0.5, "*14": 0.5, "*15": 0, "*17": 0.5,
		},
		PhenotypeMap: map[string]domain.Phenotype{
			"*1/*1":  domain.NormalMetabolizer,
			"*1/*1b": domain.NormalMetabolizer,
			"*1/*5":  domain.IntermediateMetabolizer,
			"*1/*15": domain.IntermediateMetabolizer,
			"*5/*5":  domain.PoorMetabolizer,
			"*5/*15": domain.PoorMetabolizer,
		},
		KeyPositions: []int64{21176804, 21178615},
	}
}

func dpydTable() *GeneTable {
	return &GeneTable{
		Gene: "DPYD",
		Alleles: []domain.AlleleDefinition{
			{Gene: "DPYD", Allele: "*1", Variants: nil},
			{Gene: "DPYD", Allele: "*2A", Variants: []string{"97450058:C:T"}},
			{Gene: "DPYD", Allele: "*13", Variants: []string{"97515839:A:C"}},
		},
		Activity: map[string]float64{
			"*1": 1.0, "*2A": 0, "*3": 0.5, "*4": 0.5, "*5": 0.5,
			"*6": 0.5, "*7": 0, "*13": 0,
		},
		PhenotypeMap: map[string]domain.Phenotype{
			"*1/*1":   domain.NormalMetabolizer,
			"*1/*2A":  domain.IntermediateMetabolizer,
			"*1/*13":  domain.IntermediateMetabolizer,
			"*2A/*2A": domain.PoorMetabolizer,
			"*2A/*13": domain.PoorMetabolizer,
			"*13/*13": domain.PoorMetabolizer,
		},
		KeyPositions: []int64{97450058, 97515839},
	}
}

func builtinGuidelines() map[string]*DrugGuideline {
	guidelineEvidence := func(extra ...domain.EvidenceAnnotation) []domain.EvidenceAnnotation {
		base := []domain.EvidenceAnnotation{
			{Source: "CPIC", EvidenceType: "guideline", Association: "associated"},
			{Source: "PharmGKB", EvidenceType: "clinical", Association: "associated"},
		}
		return append(base, extra...)
	}

	return map[string]*DrugGuideline{
		"codeine": {
			Drug: "codeine", Gene: "CYP2D6", EvidenceLevel: "1A",
			Evidence: guidelineEvidence(
				domain.EvidenceAnnotation{Source: "FDA", EvidenceType: "label", Association: "associated"},
			),
			ByPhenotype: map[domain.Phenotype]GuidelineEntry{
				domain.PoorMetabolizer: {
					Action:       "Avoid codeine use",
					Severity:     domain.SeverityHigh,
					Implication:  "Reduced morphine formation, insufficient analgesia",
					Alternatives: []string{"morphine", "non-opioid analgesic"},
					Monitoring:   "Assess pain control at follow-up",
					Urgency:      "before_prescribing",
					URL:          "https://cpicpgx.org/guidelines/guideline-for-codeine-and-cyp2d6/",
				},
				domain.IntermediateMetabolizer: {
					Action:      "Use alternative analgesic or monitor closely",
					Severity:    domain.SeverityModerate,
					Implication: "Reduced morphine formation",
					Monitoring:  "Monitor analgesic response",
					URL:         "https://cpicpgx.org/guidelines/guideline-for-codeine-and-cyp2d6/",
				},
				domain.NormalMetabolizer: {
					Action:      "Standard dosing",
					Severity:    domain.SeverityNone,
					Implication: "Normal morphine formation",
					URL:         "https://cpicpgx.org/guidelines/guideline-for-codeine-and-cyp2d6/",
				},
				domain.UltrarapidMetabolizer: {
					Action:       "Avoid codeine use",
					Severity:     domain.SeverityCritical,
					Implication:  "Increased morphine formation, risk of life-threatening toxicity",
					Alternatives: []string{"morphine", "non-opioid analgesic"},
					Urgency:      "immediate",
					URL:          "https://cpicpgx.org/guidelines/guideline-for-codeine-and-cyp2d6/",
				},
			},
		},
		"warfarin": {
			Drug: "warfarin", Gene: "CYP2C9", EvidenceLevel: "1A",
			Evidence: guidelineEvidence(),
			ByPhenotype: map[domain.Phenotype]GuidelineEntry{
				domain.PoorMetabolizer: {
					Action:      "Reduce initial dose by 50-75%",
					Severity:    domain.SeverityHigh,
					Implication: "Increased bleeding risk, reduced clearance",
					Monitoring:  "INR every 2-3 days during initiation",
					Urgency:     "before_prescribing",
					URL:         "https://cpicpgx.org/guidelines/guideline-for-warfarin-and-cyp2c9-and-vkorc1/",
				},
				domain.IntermediateMetabolizer: {
					Action:      "Reduce initial dose by 25-50%",
					Severity:    domain.SeverityModerate,
					Implication: "Moderately increased bleeding risk",
					Monitoring:  "Increased INR monitoring",
					URL:         "https://cpicpgx.org/guidelines/guideline-for-warfarin-and-cyp2c9-and-vkorc1/",
				},
				domain.NormalMetabolizer: {
					Action:      "Standard dosing",
					Severity:    domain.SeverityNone,
					Implication: "Normal warfarin metabolism",
					URL:         "https://cpicpgx.org/guidelines/guideline-for-warfarin-and-cyp2c9-and-vkorc1/",
				},
			},
		},
		"clopidogrel": {
			Drug: "clopidogrel", Gene: "CYP2C19", EvidenceLevel: "1A",
			Evidence: guidelineEvidence(
				domain.EvidenceAnnotation{Source: "FDA", EvidenceType: "label", Association: "associated"},
			),
			ByPhenotype: map[domain.Phenotype]GuidelineEntry{
				domain.PoorMetabolizer: {
					Action:       "Use alternative antiplatelet",
					Severity:     domain.SeverityHigh,
					Implication:  "Reduced active drug formation, reduced platelet inhibition",
					Alternatives: []string{"prasugrel", "ticagrelor"},
					Urgency:      "before_prescribing",
					URL:          "https://cpicpgx.org/guidelines/guideline-for-clopidogrel-and-cyp2c19/",
				},
				domain.IntermediateMetabolizer: {
					Action:       "Consider alternative antiplatelet or higher dose",
					Severity:     domain.SeverityModerate,
					Implication:  "Moderately reduced platelet inhibition",
					Alternatives: []string{"prasugrel", "ticagrelor"},
					URL:          "https://cpicpgx.org/guidelines/guideline-for-clopidogrel-and-cyp2c19/",
				},
				domain.NormalMetabolizer: {
					Action:      "Standard dosing",
					Severity:    domain.SeverityNone,
					Implication: "Normal clopidogrel activation",
					URL:         "https://cpicpgx.org/guidelines/guideline-for-clopidogrel-and-cyp2c19/",
				},
				domain.RapidMetabolizer: {
					Action:      "Standard dosing",
					Severity:    domain.SeverityLow,
					Implication: "Increased platelet inhibition",
					URL:         "https://cpicpgx.org/guidelines/guideline-for-clopidogrel-and-cyp2c19/",
				},
				domain.UltrarapidMetabolizer: {
					Action:      "Standard dosing",
					Severity:    domain.SeverityLow,
					Implication: "Increased platelet inhibition (may be beneficial)",
					URL:         "https://cpicpgx.org/guidelines/guideline-for-clopidogrel-and-cyp2c19/",
				},
			},
		},
		"azathioprine": {
			Drug: "azathioprine", Gene: "TPMT", EvidenceLevel: "1A",
			Evidence: guidelineEvidence(),
			ByPhenotype: map[domain.Phenotype]GuidelineEntry{
				domain.PoorMetabolizer: {
					Action:       "Drastically reduce dose (10% of standard) or use alternative",
					Severity:     domain.SeverityCritical,
					Implication:  "Severe myelosuppression risk at standard doses",
					Alternatives: []string{"alternative immunosuppressant"},
					Monitoring:   "CBC weekly during initiation",
					Urgency:      "immediate",
					URL:          "https://cpicpgx.org/guidelines/guideline-for-thiopurines-and-tpmt/",
				},
				domain.IntermediateMetabolizer: {
					Action:      "Reduce starting dose by 30-80%",
					Severity:    domain.SeverityHigh,
					Implication: "Increased myelosuppression risk",
					Monitoring:  "CBC every 2 weeks during titration",
					URL:         "https://cpicpgx.org/guidelines/guideline-for-thiopurines-and-tpmt/",
				},
				domain.NormalMetabolizer: {
					Action:      "Standard dosing",
					Severity:    domain.SeverityNone,
					Implication: "Normal thiopurine inactivation",
					URL:         "https://cpicpgx.org/guidelines/guideline-for-thiopurines-and-tpmt/",
				},
			},
		},
		"simvastatin": {
			Drug: "simvastatin", Gene: "SLCO1B1", EvidenceLevel: "1A",
			Evidence: guidelineEvidence(),
			ByPhenotype: map[domain.Phenotype]GuidelineEntry{
				domain.PoorMetabolizer: {
					Action:       "Use alternative statin or lowest dose",
					Severity:     domain.SeverityHigh,
					Implication:  "Greatly increased myopathy risk",
					Alternatives: []string{"rosuvastatin", "pravastatin"},
					Monitoring:   "Creatine kinase if symptomatic",
					URL:          "https://cpicpgx.org/guidelines/guideline-for-simvastatin-and-slco1b1/",
				},
				domain.IntermediateMetabolizer: {
					Action:      "Limit dose to 20mg or use alternative",
					Severity:    domain.SeverityModerate,
					Implication: "Increased myopathy risk",
					URL:         "https://cpicpgx.org/guidelines/guideline-for-simvastatin-and-slco1b1/",
				},
				domain.NormalMetabolizer: {
					Action:      "Standard dosing",
					Severity:    domain.SeverityNone,
					Implication: "Normal hepatic uptake",
					URL:         "https://cpicpgx.org/guidelines/guideline-for-simvastatin-and-slco1b1/",
				},
			},
		},
		"fluorouracil": {
			Drug: "fluorouracil", Gene: "DPYD", EvidenceLevel: "1A",
			Evidence: guidelineEvidence(),
			ByPhenotype: map[domain.Phenotype]GuidelineEntry{
				domain.PoorMetabolizer: {
					Action:       "Avoid fluoropyrimidines",
					Severity:     domain.SeverityCritical,
					Implication:  "Life-threatening toxicity from drug accumulation",
					Alternatives: []string{"non-fluoropyrimidine regimen"},
					Urgency:      "immediate",
					URL:          "https://cpicpgx.org/guidelines/guideline-for-fluoropyrimidines-and-dpyd/",
				},
				domain.IntermediateMetabolizer: {
					Action:      "Reduce starting dose by 50%",
					Severity:    domain.SeverityHigh,
					Implication: "Increased severe toxicity risk",
					Monitoring:  "Toxicity review before each cycle",
					URL:         "https://cpicpgx.org/guidelines/guideline-for-fluoropyrimidines-and-dpyd/",
				},
				domain.NormalMetabolizer: {
					Action:      "Standard dosing",
					Severity:    domain.SeverityNone,
					Implication: "Normal fluoropyrimidine catabolism",
					URL:         "https://cpicpgx.org/guidelines/guideline-for-fluoropyrimidines-and-dpyd/",
				},
			},
		},
		"citalopram": {
			Drug: "citalopram", Gene: "CYP2C19", EvidenceLevel: "2A",
			Evidence: []domain.EvidenceAnnotation{
				{Source: "PharmGKB", EvidenceType: "clinical", Association: "associated"},
				{Source: "literature", EvidenceType: "case_report", Association: "ambiguous"},
			},
			ByPhenotype: map[domain.Phenotype]GuidelineEntry{
				domain.PoorMetabolizer: {
					Action:      "Consider 50% dose reduction",
					Severity:    domain.SeverityModerate,
					Implication: "Increased exposure, QT prolongation risk",
					Monitoring:  "ECG if dose above 20mg",
				},
				domain.NormalMetabolizer: {
					Action:      "Standard dosing",
					Severity:    domain.SeverityNone,
					Implication: "Normal citalopram clearance",
				},
			},
		},
		"amitriptyline": {
			Drug: "amitriptyline", Gene: "CYP2D6", EvidenceLevel: "3",
			Evidence: []domain.EvidenceAnnotation{
				{Source: "PharmGKB", EvidenceType: "clinical", Association: "associated"},
				{Source: "literature", EvidenceType: "cohort_study", Association: "associated"},
				{Source: "literature", EvidenceType: "case_report", Association: "ambiguous"},
				{Source: "literature", EvidenceType: "in_vitro", Association: "associated"},
			},
			ByPhenotype: map[domain.Phenotype]GuidelineEntry{
				domain.PoorMetabolizer: {
					Action:      "Consider 50% dose reduction",
					Severity:    domain.SeverityModerate,
					Implication: "Increased tricyclic exposure",
					Monitoring:  "Monitor for anticholinergic effects",
				},
				domain.NormalMetabolizer: {
					Action:      "Standard dosing",
					Severity:    domain.SeverityNone,
					Implication: "Normal tricyclic metabolism",
				},
			},
		},
	}
}

func builtinInteractions() []domain.DrugDrugInteraction {
	return []domain.DrugDrugInteraction{
		{
			DrugA: "codeine", DrugB: "fluoxetine", Gene: "CYP2D6",
			Type: domain.EnzymeInhibition, Severity: domain.InteractionMajor,
			RiskMultiplier: 1.5, ConfidencePenalty: 0.10,
			Mechanism:   "Fluoxetine inhibits CYP2D6, reducing codeine conversion to morphine",
			Implication: "Reduced analgesic efficacy in normal and ultrarapid metabolizers",
			Monitoring:  "Monitor pain control; may need alternative analgesic",
			AffectedPhenotypes: []domain.Phenotype{
				domain.NormalMetabolizer, domain.UltrarapidMetabolizer,
			},
		},
		{
			DrugA: "tramadol", DrugB: "paroxetine", Gene: "CYP2D6",
			Type: domain.EnzymeInhibition, Severity: domain.InteractionMajor,
			RiskMultiplier: 1.4, ConfidencePenalty: 0.10,
			Mechanism:   "Paroxetine inhibits CYP2D6, reducing tramadol activation",
			Implication: "Reduced analgesic efficacy",
			Monitoring:  "Consider alternative pain management",
			AffectedPhenotypes: []domain.Phenotype{
				domain.NormalMetabolizer, domain.RapidMetabolizer,
			},
		},
		{
			DrugA: "amitriptyline", DrugB: "bupropion", Gene: "CYP2D6",
			Type: domain.EnzymeInhibition, Severity: domain.InteractionModerate,
			RiskMultiplier: 1.3, ConfidencePenalty: 0.05,
			Mechanism:   "Bupropion inhibits CYP2D6, increasing amitriptyline levels",
			Implication: "Increased risk of tricyclic toxicity",
			Monitoring:  "Monitor for anticholinergic effects, consider dose reduction",
			AffectedPhenotypes: []domain.Phenotype{
				domain.NormalMetabolizer, domain.IntermediateMetabolizer,
			},
		},
		{
			DrugA: "clopidogrel", DrugB: "omeprazole", Gene: "CYP2C19",
			Type: domain.EnzymeInhibition, Severity: domain.InteractionMajor,
			RiskMultiplier: 1.8, ConfidencePenalty: 0.15,
			Mechanism:   "Omeprazole inhibits CYP2C19, further reducing clopidogrel activation",
			Implication: "Reduced antiplatelet efficacy, increased cardiovascular risk",
			Monitoring:  "Use alternative PPI (pantoprazole) or H2 blocker",
			AffectedPhenotypes: []domain.Phenotype{
				domain.PoorMetabolizer, domain.IntermediateMetabolizer,
				domain.NormalMetabolizer, domain.RapidMetabolizer,
				domain.UltrarapidMetabolizer,
			},
		},
		{
			DrugA: "clopidogrel", DrugB: "esomeprazole", Gene: "CYP2C19",
			Type: domain.EnzymeInhibition, Severity: domain.InteractionMajor,
			RiskMultiplier: 1.7, ConfidencePenalty: 0.15,
			Mechanism:   "Esomeprazole inhibits CYP2C19, reducing clopidogrel activation",
			Implication: "Reduced antiplatelet efficacy",
			Monitoring:  "Avoid concurrent use; use pantoprazole if PPI needed",
			AffectedPhenotypes: []domain.Phenotype{
				domain.PoorMetabolizer, domain.IntermediateMetabolizer,
				domain.NormalMetabolizer, domain.RapidMetabolizer,
				domain.UltrarapidMetabolizer,
			},
		},
		{
			DrugA: "citalopram", DrugB: "omeprazole", Gene: "CYP2C19",
			Type: domain.CompetitiveMetabolism, Severity: domain.InteractionModerate,
			RiskMultiplier: 1.3, ConfidencePenalty: 0.05,
			Mechanism:   "Both metabolized by CYP2C19; competitive inhibition possible",
			Implication: "May increase citalopram levels in poor metabolizers",
			Monitoring:  "Monitor for QT prolongation and serotonergic effects",
			AffectedPhenotypes: []domain.Phenotype{
				domain.PoorMetabolizer, domain.IntermediateMetabolizer,
			},
		},
		{
			DrugA: "warfarin", DrugB: "fluconazole", Gene: "CYP2C9",
			Type: domain.EnzymeInhibition, Severity: domain.InteractionCritical,
			RiskMultiplier: 2.5, ConfidencePenalty: 0.20,
			Mechanism:   "Fluconazole strongly inhibits CYP2C9, increasing warfarin levels",
			Implication: "Significantly increased bleeding risk",
			Monitoring:  "Reduce warfarin dose 25-50%, monitor INR every 2-3 days",
			AffectedPhenotypes: []domain.Phenotype{
				domain.NormalMetabolizer, domain.IntermediateMetabolizer,
				domain.PoorMetabolizer,
			},
		},
		{
			DrugA: "warfarin", DrugB: "amiodarone", Gene: "CYP2C9",
			Type: domain.EnzymeInhibition, Severity: domain.InteractionCritical,
			RiskMultiplier: 2.2, ConfidencePenalty: 0.20,
			Mechanism:   "Amiodarone inhibits CYP2C9, increasing warfarin exposure",
			Implication: "Severe bleeding risk",
			Monitoring:  "Reduce warfarin dose 30-50%, increase INR monitoring",
			AffectedPhenotypes: []domain.Phenotype{
				domain.NormalMetabolizer, domain.IntermediateMetabolizer,
				domain.PoorMetabolizer,
			},
		},
		{
			DrugA: "azathioprine", DrugB: "allopurinol", Gene: "TPMT",
			Type: domain.SynergisticToxicity, Severity: domain.InteractionCritical,
			RiskMultiplier: 3.0, ConfidencePenalty: 0.25,
			Mechanism:   "Allopurinol blocks the xanthine oxidase pathway, shunting metabolism to TPMT",
			Implication: "Severe myelosuppression risk, especially in TPMT poor metabolizers",
			Monitoring:  "Reduce azathioprine dose by 75%, monitor CBC weekly initially",
			AffectedPhenotypes: []domain.Phenotype{
				domain.PoorMetabolizer, domain.IntermediateMetabolizer,
			},
		},
		{
			DrugA: "mercaptopurine", DrugB: "allopurinol", Gene: "TPMT",
			Type: domain.SynergisticToxicity, Severity: domain.InteractionCritical,
			RiskMultiplier: 3.0, ConfidencePenalty: 0.25,
			Mechanism:   "Allopurinol increases 6-mercaptopurine levels three to four fold",
			Implication: "Life-threatening myelosuppression",
			Monitoring:  "Reduce mercaptopurine dose by 65-75%, monitor CBC closely",
			AffectedPhenotypes: []domain.Phenotype{
				domain.PoorMetabolizer, domain.IntermediateMetabolizer,
			},
		},
		{
			DrugA: "fluorouracil", DrugB: "sorivudine", Gene: "DPYD",
			Type: domain.EnzymeInhibition, Severity: domain.InteractionCritical,
			RiskMultiplier: 4.0, ConfidencePenalty: 0.30,
			Mechanism:   "Sorivudine irreversibly inhibits DPD, causing fluorouracil accumulation",
			Implication: "Fatal toxicity reported; contraindicated",
			Monitoring:  "Avoid combination; wait 4 weeks after sorivudine",
			AffectedPhenotypes: []domain.Phenotype{
				domain.NormalMetabolizer, domain.IntermediateMetabolizer,
				domain.PoorMetabolizer,
			},
		},
		{
			DrugA: "warfarin", DrugB: "aspirin", Gene: "CYP2C9",
			Type: domain.AdditiveRisk, Severity: domain.InteractionMajor,
			RiskMultiplier: 1.6, ConfidencePenalty: 0.10,
			Mechanism:   "Additive anticoagulant effects, pronounced in CYP2C9 poor metabolizers",
			Implication: "Increased bleeding risk",
			Monitoring:  "Monitor INR more frequently, consider lower warfarin dose",
			AffectedPhenotypes: []domain.Phenotype{
				domain.PoorMetabolizer, domain.IntermediateMetabolizer,
			},
		},
	}
}

func builtinFrequencies() map[string]map[string]map[string]float64 {
	return map[string]map[string]map[string]float64{
		"CYP2D6": {
			PopulationEUR: {
				"*1": 0.35, "*2": 0.28, "*3": 0.01, "*4": 0.20, "*5": 0.03,
				"*6": 0.01, "*9": 0.03, "*10": 0.02, "*17": 0.01, "*41": 0.08,
			},
			PopulationEAS: {
				"*1": 0.35, "*2": 0.15, "*4": 0.01, "*5": 0.06, "*10": 0.40,
				"*36": 0.02, "*41": 0.01,
			},
			PopulationAFR: {
				"*1": 0.40, "*2": 0.20, "*4": 0.03, "*5": 0.02, "*17": 0.20,
				"*29": 0.08, "*41": 0.02,
			},
		},
		"CYP2C19": {
			PopulationEUR: {"*1": 0.65, "*2": 0.15, "*3": 0.001, "*17": 0.20},
			PopulationEAS: {"*1": 0.35, "*2": 0.30, "*3": 0.05, "*17": 0.05},
			PopulationAFR: {"*1": 0.60, "*2": 0.18, "*3": 0.001, "*17": 0.20},
		},
		"CYP2C9": {
			PopulationEUR: {"*1": 0.75, "*2": 0.13, "*3": 0.08},
			PopulationEAS: {"*1": 0.95, "*2": 0.001, "*3": 0.04},
			PopulationAFR: {
				"*1": 0.85, "*2": 0.01, "*3": 0.01, "*5": 0.02, "*6": 0.02,
				"*8": 0.05, "*11": 0.03,
			},
		},
		"TPMT": {
			PopulationEUR: {"*1": 0.95, "*2": 0.002, "*3A": 0.035, "*3C": 0.005},
			PopulationEAS: {"*1": 0.98, "*3C": 0.02},
			PopulationAFR: {"*1": 0.93, "*3C": 0.05, "*8": 0.02},
		},
		"SLCO1B1": {
			PopulationEUR: {"*1": 0.55, "*1b": 0.26, "*5": 0.02, "*15": 0.15},
			PopulationEAS: {"*1": 0.40, "*1b": 0.45, "*15": 0.12},
			PopulationAFR: {"*1": 0.50, "*1b": 0.42, "*15": 0.03},
		},
		"DPYD": {
			PopulationEUR: {"*1": 0.985, "*2A": 0.01, "*13": 0.001},
			PopulationEAS: {"*1": 0.999, "*2A": 0.0005},
			PopulationAFR: {"*1": 0.995, "*2A": 0.003},
		},
	}
}
