// Package calibration tracks predicted confidence against empirically
// observed accuracy. Predictions are recorded as they are served;
// outcomes arrive later when a call is confirmed or corrected, and the
// monitor bins the resolved pairs to detect confidence drift.
package calibration

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pharmaguard/pgx-server/internal/domain"
)

// OutcomeStore persists prediction outcomes.
type OutcomeStore interface {
	// Insert records a fresh prediction with no outcome yet.
	Insert(ctx context.Context, outcome *domain.PredictionOutcome) error

	// Get returns one prediction by ID, or nil when absent.
	Get(ctx context.Context, id string) (*domain.PredictionOutcome, error)

	// Resolve attaches the actual diplotype and correctness to a
	// recorded prediction.
	Resolve(ctx context.Context, id, actualDiplotype string, correct bool) error

	// ListResolved returns all predictions with a known outcome, oldest
	// first.
	ListResolved(ctx context.Context) ([]*domain.PredictionOutcome, error)

	// ListResolvedSince returns resolved predictions recorded at or
	// after the cutoff.
	ListResolvedSince(ctx context.Context, cutoff time.Time) ([]*domain.PredictionOutcome, error)

	// Count returns total and resolved prediction counts.
	Count(ctx context.Context) (total, resolved int64, err error)

	// Close releases store resources.
	Close() error
}

// SQLiteOutcomeStore implements OutcomeStore using SQLite.
type SQLiteOutcomeStore struct {
	db *sql.DB
}

// NewSQLiteOutcomeStore opens (creating if needed) the outcome database.
func NewSQLiteOutcomeStore(dbPath string) (*SQLiteOutcomeStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS prediction_outcomes (
		id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL,
		gene TEXT NOT NULL,
		diplotype_predicted TEXT NOT NULL,
		diplotype_actual TEXT DEFAULT '',
		confidence REAL NOT NULL,
		risk_score REAL NOT NULL,
		risk_level TEXT NOT NULL,
		correct INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_outcomes_created_at ON prediction_outcomes(created_at);
	CREATE INDEX IF NOT EXISTS idx_outcomes_correct ON prediction_outcomes(correct);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteOutcomeStore{db: db}, nil
}

// Insert records a fresh prediction.
func (s *SQLiteOutcomeStore) Insert(ctx context.Context, outcome *domain.PredictionOutcome) error {
	if outcome.Timestamp.IsZero() {
		outcome.Timestamp = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO prediction_outcomes (
			id, created_at, gene, diplotype_predicted, diplotype_actual,
			confidence, risk_score, risk_level, correct
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL)
	`,
		outcome.ID,
		outcome.Timestamp,
		outcome.Gene,
		outcome.DiplotypePredicted,
		outcome.DiplotypeActual,
		outcome.Confidence,
		outcome.RiskScore,
		string(outcome.RiskLevel),
	)
	if err != nil {
		return fmt.Errorf("failed to insert outcome: %w", err)
	}
	return nil
}

// Get returns one prediction by ID, or nil when absent.
func (s *SQLiteOutcomeStore) Get(ctx context.Context, id string) (*domain.PredictionOutcome, error) {
	outcome := &domain.PredictionOutcome{}
	var riskLevel string
	var correct sql.NullBool
	err := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, gene, diplotype_predicted, diplotype_actual,
			confidence, risk_score, risk_level, correct
		FROM prediction_outcomes WHERE id = ?
	`, id).Scan(
		&outcome.ID, &outcome.Timestamp, &outcome.Gene,
		&outcome.DiplotypePredicted, &outcome.DiplotypeActual,
		&outcome.Confidence, &outcome.RiskScore, &riskLevel, &correct,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get outcome: %w", err)
	}
	outcome.RiskLevel = domain.RiskLevel(riskLevel)
	if correct.Valid {
		outcome.Correct = &correct.Bool
	}
	return outcome, nil
}

// Resolve attaches the ground truth to a prediction.
func (s *SQLiteOutcomeStore) Resolve(ctx context.Context, id, actualDiplotype string, correct bool) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE prediction_outcomes
		SET diplotype_actual = ?, correct = ?
		WHERE id = ?
	`, actualDiplotype, correct, id)
	if err != nil {
		return fmt.Errorf("failed to resolve outcome: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("prediction %s not found", id)
	}
	return nil
}

func (s *SQLiteOutcomeStore) listResolved(ctx context.Context, where string, args ...interface{}) ([]*domain.PredictionOutcome, error) {
	query := `
		SELECT id, created_at, gene, diplotype_predicted, diplotype_actual,
			confidence, risk_score, risk_level, correct
		FROM prediction_outcomes
		WHERE correct IS NOT NULL` + where + `
		ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list outcomes: %w", err)
	}
	defer rows.Close()

	var result []*domain.PredictionOutcome
	for rows.Next() {
		outcome := &domain.PredictionOutcome{}
		var riskLevel string
		var correct bool
		err := rows.Scan(
			&outcome.ID, &outcome.Timestamp, &outcome.Gene,
			&outcome.DiplotypePredicted, &outcome.DiplotypeActual,
			&outcome.Confidence, &outcome.RiskScore, &riskLevel, &correct,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		outcome.RiskLevel = domain.RiskLevel(riskLevel)
		outcome.Correct = &correct
		result = append(result, outcome)
	}
	return result, rows.Err()
}

// ListResolved returns all resolved predictions, oldest first.
func (s *SQLiteOutcomeStore) ListResolved(ctx context.Context) ([]*domain.PredictionOutcome, error) {
	return s.listResolved(ctx, "")
}

// ListResolvedSince returns resolved predictions from the cutoff onward.
func (s *SQLiteOutcomeStore) ListResolvedSince(ctx context.Context, cutoff time.Time) ([]*domain.PredictionOutcome, error) {
	return s.listResolved(ctx, " AND created_at >= ?", cutoff)
}

// Count returns total and resolved prediction counts.
func (s *SQLiteOutcomeStore) Count(ctx context.Context) (total, resolved int64, err error) {
	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COUNT(correct) FROM prediction_outcomes").Scan(&total, &resolved)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count outcomes: %w", err)
	}
	return total, resolved, nil
}

// Close closes the store.
func (s *SQLiteOutcomeStore) Close() error {
	return s.db.Close()
}
