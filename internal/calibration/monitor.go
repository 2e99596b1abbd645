package calibration

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pharmaguard/pgx-server/internal/config"
	"github.com/pharmaguard/pgx-server/internal/domain"
)

// Report summarizes predicted confidence against observed accuracy.
type Report struct {
	GeneratedAt          time.Time                    `json:"generated_at"`
	TotalPredictions     int64                        `json:"total_predictions"`
	ResolvedPredictions  int64                        `json:"resolved_predictions"`
	Bins                 []domain.CalibrationBin      `json:"bins"`
	SkippedBins          []string                     `json:"skipped_bins,omitempty"`
	DriftedBins          []string                     `json:"drifted_bins,omitempty"`
	Drifted              bool                         `json:"drifted"`
	OverallAccuracy      float64                      `json:"overall_accuracy"`
	MeanConfidence       float64                      `json:"mean_confidence"`
	MeanCalibrationError float64                      `json:"mean_calibration_error"`
	CorrectionFactor     float64                      `json:"correction_factor"`
	SeverityPrecision    map[domain.RiskLevel]float64 `json:"severity_precision"`
	FalsePositiveRate    float64                      `json:"false_positive_rate"`
	FalseNegativeRate    float64                      `json:"false_negative_rate"`
}

// Monitor accumulates prediction outcomes and reports on calibration.
//
// Each served assessment is recorded with its confidence score. When the
// true diplotype later becomes known the outcome is resolved, and the
// monitor bins resolved predictions by confidence to compare predicted
// confidence against empirical accuracy. A bin whose accuracy sits more
// than the configured z-threshold from the baseline is flagged as
// drifted; bins below the minimum sample count are skipped rather than
// judged.
type Monitor struct {
	store  OutcomeStore
	cfg    config.CalibrationConfig
	logger *logrus.Logger
}

func NewMonitor(store OutcomeStore, cfg config.CalibrationConfig, logger *logrus.Logger) *Monitor {
	return &Monitor{store: store, cfg: cfg, logger: logger}
}

// RecordPrediction persists a served prediction for later resolution.
// Satisfies the pipeline's recorder hook.
func (m *Monitor) RecordPrediction(ctx context.Context, outcome domain.PredictionOutcome) error {
	if outcome.ID == "" {
		outcome.ID = uuid.New().String()
	}
	return m.store.Insert(ctx, &outcome)
}

// ResolveOutcome marks a recorded prediction correct or incorrect given
// the confirmed diplotype. Returns whether the original call was correct.
func (m *Monitor) ResolveOutcome(ctx context.Context, id, actualDiplotype string) (bool, error) {
	outcome, err := m.store.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if outcome == nil {
		return false, fmt.Errorf("prediction %s not found", id)
	}

	correct := strings.EqualFold(
		domain.NormalizeDiplotype(outcome.DiplotypePredicted),
		domain.NormalizeDiplotype(actualDiplotype),
	)
	if err := m.store.Resolve(ctx, id, actualDiplotype, correct); err != nil {
		return false, err
	}

	m.logger.WithFields(logrus.Fields{
		"prediction_id": id,
		"gene":          outcome.Gene,
		"predicted":     outcome.DiplotypePredicted,
		"actual":        actualDiplotype,
		"correct":       correct,
	}).Info("Prediction outcome resolved")

	return correct, nil
}

// Report computes the calibration report over all resolved predictions.
func (m *Monitor) Report(ctx context.Context) (*Report, error) {
	total, resolved, err := m.store.Count(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{
		GeneratedAt:         time.Now().UTC(),
		TotalPredictions:    total,
		ResolvedPredictions: resolved,
		Bins:                m.emptyBins(),
		CorrectionFactor:    1.0,
		SeverityPrecision:   make(map[domain.RiskLevel]float64),
	}
	if resolved == 0 {
		return report, nil
	}

	outcomes, err := m.store.ListResolved(ctx)
	if err != nil {
		return nil, err
	}

	var confidenceSum float64
	var correctTotal int64
	severitySamples := make(map[domain.RiskLevel]int64)
	severityCorrect := make(map[domain.RiskLevel]int64)
	var positives, falsePositives, negatives, falseNegatives int64

	for _, o := range outcomes {
		idx := m.binIndex(o.Confidence)
		bin := &report.Bins[idx]
		bin.Samples++
		correct := o.Correct != nil && *o.Correct
		if correct {
			bin.Correct++
			correctTotal++
		}
		confidenceSum += o.Confidence

		severitySamples[o.RiskLevel]++
		if correct {
			severityCorrect[o.RiskLevel]++
		}
		// High and critical calls are the actionable flags. A wrong call
		// in a flagged assessment is a false positive; a wrong call in an
		// unflagged one hides real risk.
		if o.RiskLevel == domain.RiskLevelHigh || o.RiskLevel == domain.RiskLevelCritical {
			positives++
			if !correct {
				falsePositives++
			}
		} else {
			negatives++
			if !correct {
				falseNegatives++
			}
		}
	}

	report.OverallAccuracy = float64(correctTotal) / float64(len(outcomes))
	report.MeanConfidence = confidenceSum / float64(len(outcomes))

	var errorWeighted float64
	var qualifiedSamples int64
	for i := range report.Bins {
		bin := &report.Bins[i]
		if bin.Samples == 0 {
			continue
		}
		bin.EmpiricalAccuracy = float64(bin.Correct) / float64(bin.Samples)
		bin.CalibrationError = math.Abs(bin.EmpiricalAccuracy - bin.Midpoint())

		if bin.Samples < m.cfg.MinSamplesPerBin {
			insufficient := &domain.CalibrationDataInsufficientError{
				Bin:     bin.Label,
				Samples: bin.Samples,
				Minimum: m.cfg.MinSamplesPerBin,
			}
			m.logger.WithField("bin", bin.Label).Debug(insufficient.Error())
			report.SkippedBins = append(report.SkippedBins, bin.Label)
			continue
		}

		errorWeighted += bin.CalibrationError * float64(bin.Samples)
		qualifiedSamples += bin.Samples

		z := math.Abs(bin.EmpiricalAccuracy-m.cfg.BaselineAccuracy) / m.cfg.BaselineStdDev
		if z > m.cfg.DriftZThreshold {
			report.DriftedBins = append(report.DriftedBins, bin.Label)
			m.logger.WithFields(logrus.Fields{
				"bin":      bin.Label,
				"accuracy": bin.EmpiricalAccuracy,
				"z":        z,
			}).Warn("Calibration drift detected")
		}
	}
	report.Drifted = len(report.DriftedBins) > 0
	if qualifiedSamples > 0 {
		report.MeanCalibrationError = errorWeighted / float64(qualifiedSamples)
	}

	if report.MeanConfidence > 0 {
		factor := report.OverallAccuracy / report.MeanConfidence
		if factor < m.cfg.CorrectionFloor {
			factor = m.cfg.CorrectionFloor
		}
		if factor > m.cfg.CorrectionCeiling {
			factor = m.cfg.CorrectionCeiling
		}
		report.CorrectionFactor = factor
	}

	for level, samples := range severitySamples {
		report.SeverityPrecision[level] = float64(severityCorrect[level]) / float64(samples)
	}
	if positives > 0 {
		report.FalsePositiveRate = float64(falsePositives) / float64(positives)
	}
	if negatives > 0 {
		report.FalseNegativeRate = float64(falseNegatives) / float64(negatives)
	}

	return report, nil
}

// DistributionShift measures how far the confidence distribution of
// predictions recorded since the cutoff has moved from the all-time
// distribution, as a KL divergence. Zero means no shift.
func (m *Monitor) DistributionShift(ctx context.Context, cutoff time.Time) (float64, error) {
	all, err := m.store.ListResolved(ctx)
	if err != nil {
		return 0, err
	}
	recent, err := m.store.ListResolvedSince(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if len(all) == 0 || len(recent) == 0 {
		return 0, nil
	}

	reference := m.confidenceHistogram(all)
	current := m.confidenceHistogram(recent)
	return klDivergence(current, reference), nil
}

func (m *Monitor) confidenceHistogram(outcomes []*domain.PredictionOutcome) []float64 {
	counts := make([]float64, m.binCount())
	for _, o := range outcomes {
		counts[m.binIndex(o.Confidence)]++
	}
	// Laplace smoothing keeps empty bins out of the log.
	total := 0.0
	for i := range counts {
		counts[i]++
		total += counts[i]
	}
	for i := range counts {
		counts[i] /= total
	}
	return counts
}

// klDivergence computes KL(p || q) over two discrete distributions of
// equal length with strictly positive mass.
func klDivergence(p, q []float64) float64 {
	var sum float64
	for i := range p {
		sum += p[i] * math.Log(p[i]/q[i])
	}
	return sum
}

func (m *Monitor) binCount() int {
	if m.cfg.Bins <= 0 {
		return 10
	}
	return m.cfg.Bins
}

func (m *Monitor) binIndex(confidence float64) int {
	n := m.binCount()
	idx := int(confidence * float64(n))
	if idx >= n {
		idx = n - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}

func (m *Monitor) emptyBins() []domain.CalibrationBin {
	n := m.binCount()
	bins := make([]domain.CalibrationBin, n)
	width := 1.0 / float64(n)
	for i := range bins {
		lower := float64(i) * width
		upper := lower + width
		bins[i] = domain.CalibrationBin{
			Label: fmt.Sprintf("%.1f-%.1f", lower, upper),
			Lower: lower,
			Upper: upper,
		}
	}
	return bins
}
