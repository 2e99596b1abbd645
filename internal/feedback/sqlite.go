package feedback

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pharmaguard/pgx-server/internal/domain"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite feedback store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// createSchema creates the database tables and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS learning_priors (
		gene TEXT NOT NULL,
		diplotype TEXT NOT NULL,
		value REAL NOT NULL,
		events INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (gene, diplotype)
	);

	CREATE TABLE IF NOT EXISTS feedback_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		gene TEXT NOT NULL,
		reported_diplotype TEXT NOT NULL,
		correct_diplotype TEXT NOT NULL,
		quality REAL NOT NULL,
		comments TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_events_gene ON feedback_events(gene);
	CREATE INDEX IF NOT EXISTS idx_events_created_at ON feedback_events(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// GetPrior retrieves the prior for a (gene, diplotype) pair.
func (s *SQLiteStore) GetPrior(ctx context.Context, gene, diplotype string) (*domain.LearningPrior, error) {
	prior := &domain.LearningPrior{}
	err := s.db.QueryRowContext(ctx, `
		SELECT gene, diplotype, value, events, updated_at
		FROM learning_priors
		WHERE gene = ? AND diplotype = ?
	`, gene, domain.NormalizeDiplotype(diplotype)).Scan(
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
func (s *SQLiteStore) UpsertPrior(ctx context.Context, prior *domain.LearningPrior) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO learning_priors (gene, diplotype, value, events, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (gene, diplotype) DO UPDATE SET
			value = excluded.value,
			events = excluded.events,
			updated_at = excluded.updated_at
	`,
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
func (s *SQLiteStore) ListPriors(ctx context.Context) ([]*domain.LearningPrior, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT gene, diplotype, value, events, updated_at
		FROM learning_priors
		ORDER BY gene, diplotype
	`)
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
func (s *SQLiteStore) PriorSnapshot(ctx context.Context) (map[string]float64, error) {
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
func (s *SQLiteStore) AppendEvent(ctx context.Context, event *domain.FeedbackEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback_events (
			gene, reported_diplotype, correct_diplotype, quality, comments, created_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`,
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
func (s *SQLiteStore) ListEvents(ctx context.Context, gene string, limit, offset int) ([]*domain.FeedbackEvent, error) {
	query := `
		SELECT gene, reported_diplotype, correct_diplotype, quality, comments, created_at
		FROM feedback_events
	`
	args := []interface{}{}
	if gene != "" {
		query += " WHERE gene = ?"
		args = append(args, gene)
	}
	query += " ORDER BY created_at ASC, id ASC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

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
func (s *SQLiteStore) CountEvents(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM feedback_events").Scan(&count)
	return count, err
}

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000

// ExportJSON exports all priors and events to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	priors, err := s.ListPriors(ctx)
	if err != nil {
		return fmt.Errorf("failed to list priors: %w", err)
	}
	events, err := s.ListEvents(ctx, "", maxExportLimit, 0)
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
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
