package feedback

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"time"

	_ "github.com/lib/pq"

	"github.com/pharmaguard/pgx-server/internal/domain"
)

// PostgresStore implements the Store interface using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL feedback store.
// It expects the schema to already exist (created via migrations).
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL feedback store from a
// connection URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// GetPrior retrieves the prior for a (gene, diplotype) pair.
func (s *PostgresStore) GetPrior(ctx context.Context, gene, diplotype string) (*domain.LearningPrior, error) {
	query := `
		SELECT gene, diplotype, value, events, updated_at
		FROM learning_priors
		WHERE gene = $1 AND diplotype = $2
	`

	prior := &domain.LearningPrior{}
	err := s.db.QueryRowContext(ctx, query, gene, domain.NormalizeDiplotype(diplotype)).Scan(
		&prior.Gene, &prior.Diplotype, &prior.Value, &prior.Events, &prior.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prior: %w", err)
	}
	return prior, nil
}

// UpsertPrior stores or replaces a prior.
func (s *PostgresStore) UpsertPrior(ctx context.Context, prior *domain.LearningPrior) error {
	query := `
		INSERT INTO learning_priors (gene, diplotype, value, events, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (gene, diplotype) DO UPDATE SET
			value = EXCLUDED.value,
			events = EXCLUDED.events,
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		prior.Gene,
		domain.NormalizeDiplotype(prior.Diplotype),
		prior.Value,
		prior.Events,
		prior.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert prior: %w", err)
	}
	return nil
}

// ListPriors returns all stored priors.
func (s *PostgresStore) ListPriors(ctx context.Context) ([]*domain.LearningPrior, error) {
	query := `
		SELECT gene, diplotype, value, events, updated_at
		FROM learning_priors
		ORDER BY gene, diplotype
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list priors: %w", err)
	}
	defer rows.Close()

	var result []*domain.LearningPrior
	for rows.Next() {
		prior := &domain.LearningPrior{}
		if err := rows.Scan(&prior.Gene, &prior.Diplotype, &prior.Value, &prior.Events, &prior.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan prior: %w", err)
		}
		result = append(result, prior)
	}
	return result, rows.Err()
}

// PriorSnapshot returns all prior values keyed by PriorKey.
func (s *PostgresStore) PriorSnapshot(ctx context.Context) (map[string]float64, error) {
	priors, err := s.ListPriors(ctx)
	if err != nil {
		return nil, err
	}
	snapshot := make(map[string]float64, len(priors))
	for _, p := range priors {
		snapshot[PriorKey(p.Gene, p.Diplotype)] = p.Value
	}
	return snapshot, nil
}

// AppendEvent records one feedback event.
func (s *PostgresStore) AppendEvent(ctx context.Context, event *domain.FeedbackEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	query := `
		INSERT INTO feedback_events (
			gene, reported_diplotype, correct_diplotype, quality, comments, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.db.ExecContext(ctx, query,
		event.Gene,
		event.ReportedDiplotype,
		event.CorrectDiplotype,
		event.Quality,
		event.Comments,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// ListEvents returns events oldest first, optionally filtered by gene.
func (s *PostgresStore) ListEvents(ctx context.Context, gene string, limit, offset int) ([]*domain.FeedbackEvent, error) {
	query := `
		SELECT gene, reported_diplotype, correct_diplotype, quality, comments, created_at
		FROM feedback_events
	`
	args := []interface{}{}
	if gene != "" {
		query += " WHERE gene = $1 ORDER BY created_at ASC, id ASC LIMIT $2 OFFSET $3"
		args = append(args, gene, limit, offset)
	} else {
		query += " ORDER BY created_at ASC, id ASC LIMIT $1 OFFSET $2"
		args = append(args, limit, offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var result []*domain.FeedbackEvent
	for rows.Next() {
		event := &domain.FeedbackEvent{}
		err := rows.Scan(
			&event.Gene, &event.ReportedDiplotype, &event.CorrectDiplotype,
			&event.Quality, &event.Comments, &event.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		result = append(result, event)
	}
	return result, rows.Err()
}

// CountEvents returns the total number of stored events.
func (s *PostgresStore) CountEvents(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM feedback_events").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}

// pgMaxExportLimit is the maximum number of entries to export at once.
const pgMaxExportLimit = 1000000

// ExportJSON exports all priors and events to a JSON writer.
func (s *PostgresStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	priors, err := s.ListPriors(ctx)
	if err != nil {
		return fmt.Errorf("failed to list priors: %w", err)
	}
	events, err := s.ListEvents(ctx, "", pgMaxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list events: %w", err)
	}

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

// Close closes the store and releases resources.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
