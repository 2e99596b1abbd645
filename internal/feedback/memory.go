package feedback

import (
	"context"
	"encoding/json"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/pharmaguard/pgx-server/internal/domain"
)

// MemoryStore is an in-memory Store implementation used in tests and as
// a fallback when no persistent store is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	priors map[string]*domain.LearningPrior
	events []*domain.FeedbackEvent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{priors: make(map[string]*domain.LearningPrior)}
}

func (s *MemoryStore) GetPrior(ctx context.Context, gene, diplotype string) (*domain.LearningPrior, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prior, ok := s.priors[PriorKey(gene, diplotype)]
	if !ok {
		return nil, nil
	}
	clone := *prior
	return &clone, nil
}

func (s *MemoryStore) UpsertPrior(ctx context.Context, prior *domain.LearningPrior) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *prior
	clone.Diplotype = domain.NormalizeDiplotype(prior.Diplotype)
	s.priors[PriorKey(prior.Gene, prior.Diplotype)] = &clone
	return nil
}

func (s *MemoryStore) ListPriors(ctx context.Context) ([]*domain.LearningPrior, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*domain.LearningPrior, 0, len(s.priors))
	for _, p := range s.priors {
		clone := *p
		result = append(result, &clone)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Gene != result[j].Gene {
			return result[i].Gene < result[j].Gene
		}
		return result[i].Diplotype < result[j].Diplotype
	})
	return result, nil
}

func (s *MemoryStore) PriorSnapshot(ctx context.Context) (map[string]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := make(map[string]float64, len(s.priors))
	for key, p := range s.priors {
		snapshot[key] = p.Value
	}
	return snapshot, nil
}

func (s *MemoryStore) AppendEvent(ctx context.Context, event *domain.FeedbackEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *event
	if clone.Timestamp.IsZero() {
		clone.Timestamp = time.Now()
	}
	s.events = append(s.events, &clone)
	return nil
}

func (s *MemoryStore) ListEvents(ctx context.Context, gene string, limit, offset int) ([]*domain.FeedbackEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var filtered []*domain.FeedbackEvent
	for _, e := range s.events {
		if gene != "" && e.Gene != gene {
			continue
		}
		clone := *e
		filtered = append(filtered, &clone)
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Timestamp.Before(filtered[j].Timestamp)
	})
	if offset >= len(filtered) {
		return nil, nil
	}
	filtered = filtered[offset:]
	if limit < len(filtered) {
		filtered = filtered[:limit]
	}
	return filtered, nil
}

func (s *MemoryStore) CountEvents(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.events)), nil
}

func (s *MemoryStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	priors, _ := s.ListPriors(ctx)
	events, _ := s.ListEvents(ctx, "", maxExportLimit, 0)
	export := &StoreExport{
		Version:    "1.0",
		ExportedAt: time.Now(),
		Priors:     priors,
		Events:     events,
	}
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

func (s *MemoryStore) Close() error {
	return nil
}
