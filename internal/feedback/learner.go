package feedback

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pharmaguard/pgx-server/internal/config"
	"github.com/pharmaguard/pgx-server/internal/domain"
)

// hoursPerMonth converts elapsed wall time into decay periods.
const hoursPerMonth = 24 * 30

// UpdateResult reports one prior transition.
type UpdateResult struct {
	Gene      string  `json:"gene"`
	Diplotype string  `json:"diplotype"`
	OldValue  float64 `json:"old_value"`
	NewValue  float64 `json:"new_value"`
	Events    int64   `json:"events"`
}

// Learner maintains the learning priors from clinician feedback.
//
// Each update blends a feedback signal into the stored prior with
// exponential smoothing, after decaying the stored value toward the
// neutral 1.0 for the months elapsed since its last update:
//
//	signal  = 1 +/- quality * maxDelta   (+ for corrections, - for confirmations)
//	decayed = 1 + (old - 1) * decay^months
//	new     = alpha*signal + (1-alpha)*decayed
//
// A single update moves the prior at most maxDelta, and the result is
// clamped to the configured bounds. Updates to the same (gene,
// diplotype) key are serialized; distinct keys update concurrently.
type Learner struct {
	store  Store
	cfg    config.LearningConfig
	logger *logrus.Logger

	mu   sync.Mutex
	keys map[string]*sync.Mutex

	// now is swapped in tests to control decay arithmetic.
	now func() time.Time
}

func NewLearner(store Store, cfg config.LearningConfig, logger *logrus.Logger) *Learner {
	return &Learner{
		store:  store,
		cfg:    cfg,
		logger: logger,
		keys:   make(map[string]*sync.Mutex),
		now:    time.Now,
	}
}

func (l *Learner) keyLock(key string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.keys[key]
	if !ok {
		lock = &sync.Mutex{}
		l.keys[key] = lock
	}
	return lock
}

// Update records one feedback event and applies it to the prior of the
// reported (gene, diplotype) pair. The read-modify-write is atomic per
// key.
func (l *Learner) Update(ctx context.Context, event domain.FeedbackEvent) (*UpdateResult, error) {
	if event.Gene == "" || event.ReportedDiplotype == "" {
		return nil, fmt.Errorf("feedback event requires gene and reported diplotype")
	}
	if event.Quality < 0 || event.Quality > 1 {
		return nil, fmt.Errorf("feedback quality must be in [0,1]: %.2f", event.Quality)
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now()
	}

	key := PriorKey(event.Gene, event.ReportedDiplotype)
	lock := l.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	if err := l.store.AppendEvent(ctx, &event); err != nil {
		return nil, fmt.Errorf("failed to persist feedback event: %w", err)
	}

	prior, err := l.store.GetPrior(ctx, event.Gene, event.ReportedDiplotype)
	if err != nil {
		return nil, err
	}
	oldValue := 1.0
	var events int64
	updatedAt := event.Timestamp
	if prior != nil {
		oldValue = prior.Value
		events = prior.Events
		updatedAt = prior.UpdatedAt
	}

	newValue := l.apply(oldValue, updatedAt, event)

	updated := &domain.LearningPrior{
		Gene:      event.Gene,
		Diplotype: domain.NormalizeDiplotype(event.ReportedDiplotype),
		Value:     newValue,
		Events:    events + 1,
		UpdatedAt: event.Timestamp,
	}
	if err := l.store.UpsertPrior(ctx, updated); err != nil {
		return nil, err
	}

	l.logger.WithFields(logrus.Fields{
		"gene":      updated.Gene,
		"diplotype": updated.Diplotype,
		"old":       oldValue,
		"new":       newValue,
	}).Info("Learning prior updated")

	return &UpdateResult{
		Gene:      updated.Gene,
		Diplotype: updated.Diplotype,
		OldValue:  oldValue,
		NewValue:  newValue,
		Events:    updated.Events,
	}, nil
}

// apply computes the post-event prior value.
func (l *Learner) apply(oldValue float64, updatedAt time.Time, event domain.FeedbackEvent) float64 {
	// Confirmations relax the prior toward the floor, corrections raise
	// caution.
	direction := -1.0
	if !strings.EqualFold(
		domain.NormalizeDiplotype(event.ReportedDiplotype),
		domain.NormalizeDiplotype(event.CorrectDiplotype),
	) {
		direction = 1.0
	}
	signal := 1 + direction*event.Quality*l.cfg.MaxDelta

	months := 0.0
	if !updatedAt.IsZero() {
		if elapsed := event.Timestamp.Sub(updatedAt); elapsed > 0 {
			months = elapsed.Hours() / hoursPerMonth
		}
	}
	decayed := 1 + (oldValue-1)*math.Pow(l.cfg.Decay, months)

	newValue := l.cfg.Alpha*signal + (1-l.cfg.Alpha)*decayed

	// One event moves the prior at most MaxDelta.
	if newValue > oldValue+l.cfg.MaxDelta {
		newValue = oldValue + l.cfg.MaxDelta
	}
	if newValue < oldValue-l.cfg.MaxDelta {
		newValue = oldValue - l.cfg.MaxDelta
	}

	return clampPrior(newValue, l.cfg.LowerBound, l.cfg.UpperBound)
}

// SetPrior overrides a prior directly. Unlike Update it validates the
// value against the configured bounds instead of clamping.
func (l *Learner) SetPrior(ctx context.Context, gene, diplotype string, value float64) error {
	if value < l.cfg.LowerBound || value > l.cfg.UpperBound {
		return &domain.PriorOutOfBoundsError{
			Gene:      gene,
			Diplotype: diplotype,
			Value:     value,
			Lower:     l.cfg.LowerBound,
			Upper:     l.cfg.UpperBound,
		}
	}

	key := PriorKey(gene, diplotype)
	lock := l.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	prior, err := l.store.GetPrior(ctx, gene, diplotype)
	if err != nil {
		return err
	}
	var events int64
	if prior != nil {
		events = prior.Events
	}
	return l.store.UpsertPrior(ctx, &domain.LearningPrior{
		Gene:      gene,
		Diplotype: domain.NormalizeDiplotype(diplotype),
		Value:     value,
		Events:    events,
		UpdatedAt: l.now(),
	})
}

// Recalibrate rebuilds every prior by replaying the stored event history
// oldest first from a neutral 1.0 start. Used after learning parameters
// change.
func (l *Learner) Recalibrate(ctx context.Context) (int, error) {
	events, err := l.store.ListEvents(ctx, "", maxExportLimit, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to load event history: %w", err)
	}

	type state struct {
		gene      string
		diplotype string
		value     float64
		events    int64
		updatedAt time.Time
	}
	states := make(map[string]*state)

	for _, event := range events {
		key := PriorKey(event.Gene, event.ReportedDiplotype)
		st, ok := states[key]
		if !ok {
			st = &state{
				gene:      event.Gene,
				diplotype: domain.NormalizeDiplotype(event.ReportedDiplotype),
				value:     1.0,
			}
			states[key] = st
		}
		st.value = l.apply(st.value, st.updatedAt, *event)
		st.events++
		st.updatedAt = event.Timestamp
	}

	for _, st := range states {
		err := l.store.UpsertPrior(ctx, &domain.LearningPrior{
			Gene:      st.gene,
			Diplotype: st.diplotype,
			Value:     st.value,
			Events:    st.events,
			UpdatedAt: st.updatedAt,
		})
		if err != nil {
			return 0, err
		}
	}

	l.logger.WithFields(logrus.Fields{
		"events": len(events),
		"priors": len(states),
	}).Info("Learning priors recalibrated from event history")

	return len(states), nil
}

func clampPrior(v, lower, upper float64) float64 {
	if v < lower {
		return lower
	}
	if v > upper {
		return upper
	}
	return v
}
