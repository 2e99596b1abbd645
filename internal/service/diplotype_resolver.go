package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pharmaguard/pgx-server/internal/config"
	"github.com/pharmaguard/pgx-server/internal/cpic"
	"github.com/pharmaguard/pgx-server/internal/domain"
	"github.com/pharmaguard/pgx-server/internal/population"
)

// DiplotypeResolver turns matched allele candidates into a diplotype
// call, applying the phasing policy and population-frequency
// annotation, and emitting an indeterminate reason code when resolution
// fails. Resolution never returns an error: unsupported and ambiguous
// inputs degrade to well-formed low-confidence results.
type DiplotypeResolver struct {
	snapshot   *cpic.Snapshot
	matcher    *AlleleMatcher
	mapper     *PhenotypeMapper
	scorer     *ConfidenceScorer
	analyzer   *population.Analyzer
	population string
	cfg        config.ConfidenceConfig
	logger     *logrus.Logger
}

func NewDiplotypeResolver(
	snapshot *cpic.Snapshot,
	matcher *AlleleMatcher,
	mapper *PhenotypeMapper,
	scorer *ConfidenceScorer,
	analyzer *population.Analyzer,
	pop string,
	cfg config.ConfidenceConfig,
	logger *logrus.Logger,
) *DiplotypeResolver {
	if pop == "" {
		pop = cpic.DefaultPopulation
	}
	return &DiplotypeResolver{
		snapshot:   snapshot,
		matcher:    matcher,
		mapper:     mapper,
		scorer:     scorer,
		analyzer:   analyzer,
		population: pop,
		cfg:        cfg,
		logger:     logger,
	}
}

// resolution accumulates state during one Resolve call.
type resolution struct {
	allele1, allele2 string
	phased           bool
	unphasedHet      bool
	structural       bool
	reasons          []domain.IndeterminateReason
	notes            []string
	contributing     []alleleMatch
}

func (r *resolution) fail(reason domain.IndeterminateReason, note string) {
	r.reasons = append(r.reasons, reason)
	if note != "" {
		r.notes = append(r.notes, note)
	}
}

// worstReason returns the highest-priority reason recorded, or none.
func (r *resolution) worstReason() domain.IndeterminateReason {
	worst := domain.ReasonNone
	for _, reason := range r.reasons {
		if reason.Priority() > worst.Priority() {
			worst = reason
		}
	}
	return worst
}

// Resolve produces the DiplotypeResult for one gene of one sample.
func (r *DiplotypeResolver) Resolve(data domain.GenotypeData) domain.DiplotypeResult {
	table, ok := r.snapshot.Gene(data.Gene)
	if !ok {
		return domain.DiplotypeResult{
			Gene:                data.Gene,
			Phenotype:           domain.IndeterminatePhenotype,
			Confidence:          0,
			Indeterminate:       true,
			IndeterminateReason: domain.ReasonUnsupportedGene,
			Notes:               fmt.Sprintf("gene %s has no allele definitions", data.Gene),
		}
	}

	res := &resolution{}
	effective := effectiveVariants(data)

	if len(effective) == 0 {
		return r.resolveWildtype(data, table, res)
	}

	matches := r.matcher.Match(data, table)
	novel := r.matcher.NovelVariants(data, table)
	if len(novel) > 0 {
		res.fail(domain.ReasonNovelVariants,
			fmt.Sprintf("novel variants outside allele definitions: %s", strings.Join(novel, ", ")))
	}

	if len(matches) > 0 {
		r.selectAlleles(data.Gene, matches, res)
	} else if len(novel) == 0 {
		// Variants observed but nothing to match: definitions carry no
		// signatures for them.
		res.fail(domain.ReasonNovelVariants, "observed variants match no allele definition")
	}

	if res.allele1 != "" {
		for _, m := range res.contributing {
			if m.MinQuality >= 0 && m.MinQuality < r.cfg.MinVariantQuality {
				res.fail(domain.ReasonLowQuality,
					fmt.Sprintf("contributing call quality %.1f below threshold %.1f",
						m.MinQuality, r.cfg.MinVariantQuality))
			}
		}
	}

	reason := res.worstReason()
	if reason != domain.ReasonNone {
		return r.finishIndeterminate(data, reason, res)
	}

	diplotype := domain.NormalizeDiplotype(res.allele1 + "/" + res.allele2)
	if res.unphasedHet {
		r.annotatePhaseLikelihood(data.Gene, res)
	}

	phenotype, method := r.mapper.Map(data.Gene, diplotype)
	if method == MapMethodActivity {
		res.notes = append(res.notes, "phenotype derived from activity score")
	}

	rare := r.analyzer.IsRare(data.Gene, diplotype, r.population, r.cfg.RareThreshold)
	breakdown := r.scorer.Score(ConfidenceInputs{
		UncoveredRequired: r.uncoveredRequired(data, table, res),
		UnphasedHet:       res.unphasedHet,
		RareAllele:        rare,
		StructuralVariant: res.structural,
		PhenotypeResolved: phenotype.Resolved(),
		AutomationAllowed: true,
	})

	result := domain.DiplotypeResult{
		Gene:                data.Gene,
		Diplotype:           diplotype,
		Phenotype:           phenotype,
		Confidence:          breakdown.Final,
		IndeterminateReason: domain.ReasonNone,
		Notes:               strings.Join(res.notes, "; "),
		Phased:              res.phased,
		Breakdown:           &breakdown,
	}

	r.logger.WithFields(logrus.Fields{
		"gene":       data.Gene,
		"sample":     data.SampleID,
		"diplotype":  diplotype,
		"phenotype":  phenotype,
		"confidence": breakdown.Final,
	}).Info("Diplotype resolved")

	return result
}

// resolveWildtype handles genotypes with no alternate calls. With no
// coverage information at all the call is indeterminate; otherwise the
// sample is homozygous reference, with reduced confidence when the
// reference state at key positions cannot be confirmed.
func (r *DiplotypeResolver) resolveWildtype(data domain.GenotypeData, table *cpic.GeneTable, res *resolution) domain.DiplotypeResult {
	if len(data.CoveredPositions) == 0 && data.CoverageMean <= 0 {
		res.fail(domain.ReasonNoCoverage, "no variants and no coverage information")
		return r.finishIndeterminate(data, domain.ReasonNoCoverage, res)
	}

	uncovered := 0
	inferred := false
	if len(data.CoveredPositions) > 0 {
		for _, pos := range table.KeyPositions {
			if !data.CoversPosition(pos) {
				uncovered++
			}
		}
	} else {
		// Mean coverage reported without positional detail; the
		// reference state is inferred from absence of calls.
		inferred = true
	}

	diplotype := "*1/*1"
	phenotype, _ := r.mapper.Map(data.Gene, diplotype)
	breakdown := r.scorer.Score(ConfidenceInputs{
		UncoveredRequired: uncovered,
		InferredByAbsence: inferred,
		PhenotypeResolved: phenotype.Resolved(),
		AutomationAllowed: true,
	})

	notes := ""
	if inferred {
		notes = "wild type inferred from absence of variant calls"
	} else if uncovered > 0 {
		notes = fmt.Sprintf("%d key positions uncovered", uncovered)
	}

	return domain.DiplotypeResult{
		Gene:       data.Gene,
		Diplotype:  diplotype,
		Phenotype:  phenotype,
		Confidence: breakdown.Final,
		Notes:      notes,
		Breakdown:  &breakdown,
	}
}

// selectAlleles applies the selection policy over scored candidates.
func (r *DiplotypeResolver) selectAlleles(gene string, matches []alleleMatch, res *resolution) {
	var complete []alleleMatch
	partial := false
	for _, m := range matches {
		if m.Complete && m.CisConsistent {
			complete = append(complete, m)
		} else if !m.Complete {
			partial = true
		}
	}

	if len(complete) == 0 {
		if partial {
			res.fail(domain.ReasonPartialMatch, "defining positions only partially supported")
		}
		return
	}

	// Two mutually exclusive candidates equally well supported cannot
	// be told apart.
	if len(complete) >= 2 && complete[0].Score == complete[1].Score &&
		supportOverlaps(complete[0], complete[1]) {
		res.fail(domain.ReasonAmbiguous,
			fmt.Sprintf("alleles %s and %s are equally supported", complete[0].Allele, complete[1].Allele))
		return
	}

	// Drop candidates fully contained in a higher-scoring one: a
	// multi-variant allele subsumes its component alleles.
	retained := pruneSubsumed(complete)

	// Expand to chromosome copies: homozygous candidates occupy both.
	type copyAllele struct {
		match    alleleMatch
		activity float64
	}
	var copies []copyAllele
	for _, m := range retained {
		act, _ := r.snapshot.ActivityScore(gene, m.Allele)
		copies = append(copies, copyAllele{m, act})
		if m.AllHomAlt {
			copies = append(copies, copyAllele{m, act})
		}
	}

	if len(copies) > 2 {
		// More candidate copies than chromosomes: keep the two lowest
		// function alleles, the conservative worst case.
		sort.SliceStable(copies, func(i, j int) bool {
			if copies[i].activity != copies[j].activity {
				return copies[i].activity < copies[j].activity
			}
			return copies[i].match.Allele < copies[j].match.Allele
		})
		res.notes = append(res.notes,
			"multiple candidate alleles observed; lowest function pair retained")
		copies = copies[:2]
	}

	switch len(copies) {
	case 1:
		res.allele1 = copies[0].match.Allele
		res.allele2 = "*1"
		res.contributing = []alleleMatch{copies[0].match}
		res.structural = copies[0].match.Structural != ""
	case 2:
		a, b := copies[0].match, copies[1].match
		res.contributing = []alleleMatch{a, b}
		res.structural = a.Structural != "" || b.Structural != ""
		if a.Allele == b.Allele {
			res.allele1, res.allele2 = a.Allele, b.Allele
			return
		}
		r.phaseCompoundHet(gene, a, b, res)
	}
}

// phaseCompoundHet resolves two distinct heterozygous alleles. Trans is
// the default assumption; equal phase sets with matching haplotype
// indices override to cis.
func (r *DiplotypeResolver) phaseCompoundHet(gene string, a, b alleleMatch, res *resolution) {
	phaseKnown, sameHaplotype := comparePhase(a, b)
	if phaseKnown {
		res.phased = true
		if sameHaplotype {
			// Cis: both variant alleles sit on one chromosome copy.
			// Only a defined combined allele can represent that.
			if combined, ok := r.combinedAllele(gene, a, b); ok {
				res.allele1, res.allele2 = combined, "*1"
				res.notes = append(res.notes,
					fmt.Sprintf("phased cis configuration resolved as %s", combined))
				return
			}
			res.fail(domain.ReasonAmbiguous,
				fmt.Sprintf("cis configuration of %s and %s matches no defined allele", a.Allele, b.Allele))
			return
		}
		res.allele1, res.allele2 = a.Allele, b.Allele
		res.notes = append(res.notes, "phase confirmed trans from haplotype data")
		return
	}

	res.allele1, res.allele2 = a.Allele, b.Allele
	res.unphasedHet = true
	res.notes = append(res.notes, "unphased compound heterozygote, trans assumed")
}

// annotatePhaseLikelihood adds a note when population data favors a cis
// interpretation. The conservative trans call is always retained.
func (r *DiplotypeResolver) annotatePhaseLikelihood(gene string, res *resolution) {
	call := r.analyzer.MostLikelyPhase(gene, res.allele1, res.allele2, r.population)
	if call.Phase == population.PhaseCis {
		res.notes = append(res.notes, fmt.Sprintf(
			"population data favors %s (p=%.4f); conservative trans call retained",
			call.Diplotype, call.Probability))
	}
}

// combinedAllele finds a defined allele of the gene whose signature set
// equals both candidates' supporting variants together, e.g. TPMT *3A
// for cis *3B plus *3C.
func (r *DiplotypeResolver) combinedAllele(gene string, a, b alleleMatch) (string, bool) {
	want := make(map[string]bool)
	for _, sig := range a.Supporting {
		want[sig] = true
	}
	for _, sig := range b.Supporting {
		want[sig] = true
	}
	table, ok := r.snapshot.Gene(gene)
	if !ok {
		return "", false
	}
	for _, def := range table.Alleles {
		if len(def.Variants) != len(want) {
			continue
		}
		all := true
		for _, sig := range def.Variants {
			if !want[sig] {
				all = false
				break
			}
		}
		if all {
			return def.Allele, true
		}
	}
	return "", false
}

// uncoveredRequired counts defining positions of the called alleles not
// confirmed by a supporting call or the covered-position set.
func (r *DiplotypeResolver) uncoveredRequired(data domain.GenotypeData, table *cpic.GeneTable, res *resolution) int {
	if len(data.CoveredPositions) == 0 {
		return 0
	}
	supported := make(map[string]bool)
	required := make(map[string]bool)
	for _, m := range res.contributing {
		for _, sig := range m.Supporting {
			supported[sig] = true
		}
		for _, def := range table.Alleles {
			if def.Allele != m.Allele {
				continue
			}
			for _, sig := range def.Variants {
				required[sig] = true
			}
		}
	}
	uncovered := 0
	for sig := range required {
		if supported[sig] {
			continue
		}
		if pos, ok := positionOf(sig); ok && !data.CoversPosition(pos) {
			uncovered++
		}
	}
	return uncovered
}

func (r *DiplotypeResolver) finishIndeterminate(data domain.GenotypeData, reason domain.IndeterminateReason, res *resolution) domain.DiplotypeResult {
	breakdown := r.scorer.Score(ConfidenceInputs{
		IndeterminateOrPartial: true,
		PhenotypeResolved:      false,
		AutomationAllowed:      true,
	})

	r.logger.WithFields(logrus.Fields{
		"gene":   data.Gene,
		"sample": data.SampleID,
		"reason": reason,
	}).Warn("Diplotype indeterminate")

	return domain.DiplotypeResult{
		Gene:                data.Gene,
		Phenotype:           domain.IndeterminatePhenotype,
		Confidence:          breakdown.Final,
		Indeterminate:       true,
		IndeterminateReason: reason,
		Notes:               strings.Join(res.notes, "; "),
		Breakdown:           &breakdown,
	}
}

// Helpers

func effectiveVariants(data domain.GenotypeData) []domain.VariantCall {
	var out []domain.VariantCall
	for _, v := range data.Variants {
		if v.Zygosity == domain.HomRef {
			continue
		}
		out = append(out, v)
	}
	return out
}

func supportOverlaps(a, b alleleMatch) bool {
	seen := make(map[string]bool, len(a.Supporting))
	for _, sig := range a.Supporting {
		seen[sig] = true
	}
	for _, sig := range b.Supporting {
		if seen[sig] {
			return true
		}
	}
	return false
}

// pruneSubsumed removes candidates whose supporting set is a strict
// subset of another candidate's.
func pruneSubsumed(matches []alleleMatch) []alleleMatch {
	var out []alleleMatch
	for i, m := range matches {
		subsumed := false
		for j, other := range matches {
			if i == j || len(other.Supporting) <= len(m.Supporting) {
				continue
			}
			if containsAll(other.Supporting, m.Supporting) {
				subsumed = true
				break
			}
		}
		if !subsumed {
			out = append(out, m)
		}
	}
	return out
}

func containsAll(superset, subset []string) bool {
	seen := make(map[string]bool, len(superset))
	for _, sig := range superset {
		seen[sig] = true
	}
	for _, sig := range subset {
		if !seen[sig] {
			return false
		}
	}
	return true
}

// comparePhase reports whether both candidates carry usable phase data
// in a shared phase set, and whether their haplotype indices match.
func comparePhase(a, b alleleMatch) (known, same bool) {
	aSet, aHap, aOK := phaseOf(a)
	bSet, bHap, bOK := phaseOf(b)
	if !aOK || !bOK || aSet != bSet {
		return false, false
	}
	return true, aHap == bHap
}

func phaseOf(m alleleMatch) (phaseSet string, haplotype int, ok bool) {
	first := true
	for _, call := range m.Calls {
		if !call.Phased || call.PhaseSet == "" {
			return "", 0, false
		}
		if first {
			phaseSet, haplotype, first = call.PhaseSet, call.Haplotype, false
			continue
		}
		if call.PhaseSet != phaseSet || call.Haplotype != haplotype {
			// Defining variants of one allele on different haplotypes
			// contradict the definition; treat phase as unknown.
			return "", 0, false
		}
	}
	return phaseSet, haplotype, !first
}

func positionOf(signature string) (int64, bool) {
	idx := strings.IndexByte(signature, ':')
	if idx <= 0 {
		return 0, false
	}
	var pos int64
	for _, r := range signature[:idx] {
		if r < '0' || r > '9' {
			return 0, false
		}
		pos = pos*10 + int64(r-'0')
	}
	return pos, true
}

