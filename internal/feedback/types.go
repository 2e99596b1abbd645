// Package feedback stores clinician feedback on diplotype calls and
// maintains the multiplicative learning priors derived from it. Priors
// scale risk scores per (gene, diplotype); feedback events are the
// append-only audit trail behind them.
package feedback

import (
	"context"
	"io"
	"time"

	"github.com/pharmaguard/pgx-server/internal/domain"
)

// PriorKey builds the snapshot lookup key for a prior. The format
// matches the scoring pipeline's lookup: gene, a pipe, and the
// order-normalized diplotype.
func PriorKey(gene, diplotype string) string {
	return gene + "|" + domain.NormalizeDiplotype(diplotype)
}

// Store defines the interface for prior and feedback-event storage.
type Store interface {
	// GetPrior retrieves the prior for a (gene, diplotype) pair.
	// Returns nil without error when no prior exists yet.
	GetPrior(ctx context.Context, gene, diplotype string) (*domain.LearningPrior, error)

	// UpsertPrior stores or replaces a prior.
	UpsertPrior(ctx context.Context, prior *domain.LearningPrior) error

	// ListPriors returns all stored priors.
	ListPriors(ctx context.Context) ([]*domain.LearningPrior, error)

	// PriorSnapshot returns an immutable point-in-time view of all prior
	// values keyed by PriorKey. The scoring pipeline reads this once per
	// request.
	PriorSnapshot(ctx context.Context) (map[string]float64, error)

	// AppendEvent records one feedback event in the audit trail.
	AppendEvent(ctx context.Context, event *domain.FeedbackEvent) error

	// ListEvents returns events for a gene, oldest first, with pagination.
	// An empty gene returns events for all genes.
	ListEvents(ctx context.Context, gene string, limit, offset int) ([]*domain.FeedbackEvent, error)

	// CountEvents returns the total number of stored events.
	CountEvents(ctx context.Context) (int64, error)

	// ExportJSON exports all priors and events to a JSON writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// Close closes the store and releases resources.
	Close() error
}

// StoreExport is the JSON export format.
type StoreExport struct {
	Version    string                  `json:"version"`
	ExportedAt time.Time               `json:"exported_at"`
	Priors     []*domain.LearningPrior `json:"priors"`
	Events     []*domain.FeedbackEvent `json:"events"`
}
