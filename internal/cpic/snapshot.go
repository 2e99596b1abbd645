// Package cpic holds the immutable guideline snapshot the scoring path
// reads: star-allele definitions, activity scores, diplotype-phenotype
// maps, drug guidelines, the drug-drug interaction table, and population
// allele frequencies. A Snapshot is built once at process start (from the
// builtin tables or a JSON export of the guideline ETL) and is never
// mutated afterwards, so it is safe for unsynchronized concurrent reads.
package cpic

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pharmaguard/pgx-server/internal/domain"
)

// Population identifiers for the frequency tables.
const (
	PopulationEUR = "EUR"
	PopulationEAS = "EAS"
	PopulationAFR = "AFR"

	// DefaultPopulation is used when the caller does not specify one.
	DefaultPopulation = PopulationEUR
)

// DefaultActivity is assumed for alleles missing from the activity
// tables. Unknown alleles are treated as normal function, which is the
// conservative assumption for dosing (never under-reports function).
const DefaultActivity = 1.0

// GeneTable bundles everything the resolver needs for one gene.
type GeneTable struct {
	Gene         string                       `json:"gene"`
	Alleles      []domain.AlleleDefinition    `json:"alleles"`
	Activity     map[string]float64           `json:"activity"`
	PhenotypeMap map[string]domain.Phenotype  `json:"phenotype_map"`
	KeyPositions []int64                      `json:"key_positions"`
}

// GuidelineEntry is the per-phenotype recommendation for one drug.
type GuidelineEntry struct {
	Action       string          `json:"action"`
	Severity     domain.Severity `json:"severity"`
	Implication  string          `json:"implication"`
	Alternatives []string        `json:"alternatives,omitempty"`
	Monitoring   string          `json:"monitoring,omitempty"`
	Urgency      string          `json:"urgency,omitempty"`
	URL          string          `json:"url,omitempty"`
}

// DrugGuideline holds the recommendations and evidence for one drug.
type DrugGuideline struct {
	Drug          string                               `json:"drug"`
	Gene          string                               `json:"gene"`
	EvidenceLevel string                               `json:"evidence_level"`
	Evidence      []domain.EvidenceAnnotation          `json:"evidence"`
	ByPhenotype   map[domain.Phenotype]GuidelineEntry  `json:"by_phenotype"`
}

// Snapshot is the full immutable guideline dataset.
type Snapshot struct {
	Version      string                           `json:"version"`
	Genes        map[string]*GeneTable            `json:"genes"`
	Drugs        map[string]*DrugGuideline        `json:"drugs"`
	Interactions []domain.DrugDrugInteraction     `json:"interactions"`

	// Frequencies is gene -> population -> allele -> frequency.
	Frequencies map[string]map[string]map[string]float64 `json:"frequencies"`
}

// Gene returns the table for a gene symbol, case-insensitively.
func (s *Snapshot) Gene(symbol string) (*GeneTable, bool) {
	t, ok := s.Genes[strings.ToUpper(symbol)]
	return t, ok
}

// Guideline returns the guideline for a drug, case-insensitively.
func (s *Snapshot) Guideline(drug string) (*DrugGuideline, bool) {
	g, ok := s.Drugs[strings.ToLower(drug)]
	return g, ok
}

// ActivityScore returns the activity value for one allele of a gene.
// Unknown alleles report DefaultActivity with found=false.
func (s *Snapshot) ActivityScore(gene, allele string) (float64, bool) {
	t, ok := s.Gene(gene)
	if !ok {
		return DefaultActivity, false
	}
	v, ok := t.Activity[allele]
	if !ok {
		return DefaultActivity, false
	}
	return v, true
}

// Phenotype looks up the mapped phenotype for a diplotype, normalizing
// allele order first.
func (s *Snapshot) Phenotype(gene, diplotype string) (domain.Phenotype, bool) {
	t, ok := s.Gene(gene)
	if !ok {
		return domain.IndeterminatePhenotype, false
	}
	p, ok := t.PhenotypeMap[domain.NormalizeDiplotype(diplotype)]
	return p, ok
}

// AlleleFrequency returns the population frequency of an allele, zero
// when unknown. Unknown populations fall back to the default.
func (s *Snapshot) AlleleFrequency(gene, allele, population string) float64 {
	byPop, ok := s.Frequencies[strings.ToUpper(gene)]
	if !ok {
		return 0
	}
	pop, ok := byPop[strings.ToUpper(population)]
	if !ok {
		pop, ok = byPop[DefaultPopulation]
		if !ok {
			return 0
		}
	}
	return pop[allele]
}

// InteractionsFor returns the interaction entries covering the unordered
// drug pair, any gene.
func (s *Snapshot) InteractionsFor(drugA, drugB string) []domain.DrugDrugInteraction {
	var out []domain.DrugDrugInteraction
	for _, in := range s.Interactions {
		if in.MatchesPair(drugA, drugB, in.Gene) {
			out = append(out, in)
		}
	}
	return out
}

// SupportedGenes returns the gene symbols with allele definitions.
func (s *Snapshot) SupportedGenes() []string {
	out := make([]string, 0, len(s.Genes))
	for g := range s.Genes {
		out = append(out, g)
	}
	return out
}

// Validate checks structural integrity of a loaded snapshot.
func (s *Snapshot) Validate() error {
	if len(s.Genes) == 0 {
		return fmt.Errorf("snapshot has no gene tables")
	}
	for sym, t := range s.Genes {
		if t.Gene != sym {
			return fmt.Errorf("gene table key %s does not match symbol %s", sym, t.Gene)
		}
		if _, ok := t.Activity["*1"]; !ok {
			return fmt.Errorf("gene %s missing reference allele activity", sym)
		}
	}
	for name, d := range s.Drugs {
		if _, ok := s.Genes[d.Gene]; !ok {
			return fmt.Errorf("drug %s references unknown gene %s", name, d.Gene)
		}
		if len(d.ByPhenotype) == 0 {
			return fmt.Errorf("drug %s has no phenotype entries", name)
		}
	}
	for _, in := range s.Interactions {
		if in.RiskMultiplier < 1.0 {
			return fmt.Errorf("interaction %s+%s has multiplier %.2f below 1.0",
				in.DrugA, in.DrugB, in.RiskMultiplier)
		}
	}
	return nil
}

// LoadFile reads a Snapshot from a JSON export of the guideline ETL and
// validates it. Falls back to the caller for error handling; it never
// substitutes builtin data silently.
func LoadFile(path string, logger *logrus.Logger) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read guideline snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse guideline snapshot: %w", err)
	}
	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("invalid guideline snapshot: %w", err)
	}
	logger.WithFields(logrus.Fields{
		"path":         path,
		"version":      snap.Version,
		"genes":        len(snap.Genes),
		"drugs":        len(snap.Drugs),
		"interactions": len(snap.Interactions),
	}).Info("Guideline snapshot loaded")
	return &snap, nil
}
