package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pharmaguard/pgx-server/internal/cache"
	"github.com/pharmaguard/pgx-server/internal/domain"
)

// PriorSource supplies a point-in-time immutable snapshot of learning
// priors keyed by PriorKey. Implemented by the feedback store.
type PriorSource interface {
	PriorSnapshot(ctx context.Context) (map[string]float64, error)
}

// PredictionRecorder receives completed predictions for calibration
// tracking. Implemented by the calibration monitor.
type PredictionRecorder interface {
	RecordPrediction(ctx context.Context, outcome domain.PredictionOutcome) error
}

// PriorKey builds the learning-prior lookup key for a diplotype call.
func PriorKey(gene, diplotype string) string {
	return gene + "|" + domain.NormalizeDiplotype(diplotype)
}

// AssessmentRequest is one patient's scoring request.
type AssessmentRequest struct {
	SampleID  string                `json:"sample_id"`
	Genotypes []domain.GenotypeData `json:"genotypes"`
	Drugs     []string              `json:"drugs"`
}

// AssessmentResponse carries the per-drug assessments and, for more
// than one drug, the combined polypharmacy assessment.
type AssessmentResponse struct {
	RequestID   string                          `json:"request_id"`
	SampleID    string                          `json:"sample_id"`
	Profile     domain.PatientProfile           `json:"profile"`
	Assessments []domain.DrugAssessment         `json:"assessments"`
	MultiDrug   *domain.MultiDrugRiskAssessment `json:"multi_drug,omitempty"`
}

// Pipeline runs the full scoring flow: resolve diplotypes per gene,
// snapshot the learning priors once, fan out the requested drugs over
// a bounded worker pool, and fan in at the aggregator. Each drug
// evaluation touches only immutable shared state, so workers need no
// synchronization beyond the result slice indices they own.
type Pipeline struct {
	resolver   *DiplotypeResolver
	engine     *RiskEngine
	analyzer   *InteractionAnalyzer
	aggregator *MultiDrugAggregator
	priors     PriorSource
	recorder   PredictionRecorder
	cache      *cache.AssessmentCache
	workers    int
	logger     *logrus.Logger
}

// NewPipeline wires the scoring components. priors, recorder, and
// assessmentCache may be nil.
func NewPipeline(
	resolver *DiplotypeResolver,
	engine *RiskEngine,
	analyzer *InteractionAnalyzer,
	aggregator *MultiDrugAggregator,
	priors PriorSource,
	recorder PredictionRecorder,
	assessmentCache *cache.AssessmentCache,
	workers int,
	logger *logrus.Logger,
) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		resolver:   resolver,
		engine:     engine,
		analyzer:   analyzer,
		aggregator: aggregator,
		priors:     priors,
		recorder:   recorder,
		cache:      assessmentCache,
		workers:    workers,
		logger:     logger,
	}
}

// Assess evaluates every requested drug for the sample. The only error
// condition is an invalid request; scoring itself always degrades to
// low-confidence results instead of failing.
func (p *Pipeline) Assess(ctx context.Context, req AssessmentRequest) (*AssessmentResponse, error) {
	if len(req.Drugs) == 0 {
		return nil, fmt.Errorf("at least one drug is required")
	}

	profile := domain.PatientProfile{
		SampleID:   req.SampleID,
		Diplotypes: make(map[string]domain.DiplotypeResult, len(req.Genotypes)),
	}
	for _, g := range req.Genotypes {
		profile.Diplotypes[g.Gene] = p.resolver.Resolve(g)
	}

	priors := p.priorSnapshot(ctx)

	assessments := make([]domain.DrugAssessment, len(req.Drugs))
	jobs := make(chan int)
	var wg sync.WaitGroup
	workers := p.workers
	if workers > len(req.Drugs) {
		workers = len(req.Drugs)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				assessments[i] = p.assessDrug(ctx, req.SampleID, req.Drugs[i], profile, priors)
			}
		}()
	}
	for i := range req.Drugs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	resp := &AssessmentResponse{
		RequestID:   uuid.New().String(),
		SampleID:    req.SampleID,
		Profile:     profile,
		Assessments: assessments,
	}
	if len(assessments) > 1 {
		interactions := p.analyzer.Detect(assessments)
		combined := p.aggregator.Aggregate(assessments, interactions)
		resp.MultiDrug = &combined
	}

	p.recordPredictions(ctx, resp)
	return resp, nil
}

// assessDrug scores one drug, consulting the assessment cache when
// available.
func (p *Pipeline) assessDrug(ctx context.Context, sampleID, drug string, profile domain.PatientProfile, priors map[string]float64) domain.DrugAssessment {
	res := p.resultForDrug(drug, profile)

	if p.cache != nil && res.Diplotype != "" {
		if cached, ok := p.cache.Get(ctx, sampleID, drug, res.Diplotype); ok {
			return *cached
		}
	}

	prior := 1.0
	if priors != nil && res.Diplotype != "" {
		if v, ok := priors[PriorKey(res.Gene, res.Diplotype)]; ok {
			prior = v
		}
	}

	assessment := p.engine.Assess(drug, res, prior)

	if p.cache != nil && res.Diplotype != "" {
		p.cache.Put(ctx, sampleID, assessment)
	}
	return assessment
}

// resultForDrug finds the resolved diplotype for the drug's gene,
// degrading to an indeterminate placeholder when the gene was never
// genotyped.
func (p *Pipeline) resultForDrug(drug string, profile domain.PatientProfile) domain.DiplotypeResult {
	gene := ""
	if guideline, ok := p.engine.snapshot.Guideline(drug); ok {
		gene = guideline.Gene
	}
	if gene != "" {
		if res, ok := profile.Diplotypes[gene]; ok {
			return res
		}
	}
	return domain.DiplotypeResult{
		Gene:                gene,
		Phenotype:           domain.IndeterminatePhenotype,
		Confidence:          0,
		Indeterminate:       true,
		IndeterminateReason: domain.ReasonNoCoverage,
		Notes:               "gene not genotyped in this sample",
	}
}

func (p *Pipeline) priorSnapshot(ctx context.Context) map[string]float64 {
	if p.priors == nil {
		return nil
	}
	snapshot, err := p.priors.PriorSnapshot(ctx)
	if err != nil {
		p.logger.WithError(err).Warn("Prior snapshot unavailable, using neutral priors")
		return nil
	}
	return snapshot
}

func (p *Pipeline) recordPredictions(ctx context.Context, resp *AssessmentResponse) {
	if p.recorder == nil {
		return
	}
	for _, a := range resp.Assessments {
		outcome := domain.PredictionOutcome{
			ID:                 uuid.New().String(),
			Timestamp:          time.Now().UTC(),
			Gene:               a.Gene,
			DiplotypePredicted: a.Diplotype,
			Confidence:         a.Risk.ConfidenceScore,
			RiskScore:          a.Risk.RiskScore,
			RiskLevel:          a.Risk.RiskLevel,
		}
		if err := p.recorder.RecordPrediction(ctx, outcome); err != nil {
			p.logger.WithError(err).Warn("Failed to record prediction for calibration")
		}
	}
}
