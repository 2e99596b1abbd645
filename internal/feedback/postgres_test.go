package feedback

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmaguard/pgx-server/internal/domain"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	mock.ExpectPing()

	store, err := NewPostgresStore(db)
	require.NoError(t, err)
	return store, mock
}

func TestPostgresStore_RequiresConnection(t *testing.T) {
	_, err := NewPostgresStore(nil)
	assert.Error(t, err)
}

func TestPostgresStore_GetPrior(t *testing.T) {
	store, mock := newMockStore(t)
	defer store.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"gene", "diplotype", "value", "events", "updated_at"}).
		AddRow("CYP2D6", "*1/*4", 1.05, int64(3), now)
	mock.ExpectQuery("SELECT gene, diplotype, value, events, updated_at FROM learning_priors").
		WithArgs("CYP2D6", "*1/*4").
		WillReturnRows(rows)

	prior, err := store.GetPrior(context.Background(), "CYP2D6", "*4/*1")
	require.NoError(t, err)
	require.NotNil(t, prior)
	assert.Equal(t, "CYP2D6", prior.Gene)
	assert.InDelta(t, 1.05, prior.Value, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetPriorMissing(t *testing.T) {
	store, mock := newMockStore(t)
	defer store.Close()

	mock.ExpectQuery("SELECT gene, diplotype, value, events, updated_at FROM learning_priors").
		WithArgs("CYP2D6", "*1/*4").
		WillReturnRows(sqlmock.NewRows([]string{"gene", "diplotype", "value", "events", "updated_at"}))

	prior, err := store.GetPrior(context.Background(), "CYP2D6", "*1/*4")
	require.NoError(t, err)
	assert.Nil(t, prior)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertPrior(t *testing.T) {
	store, mock := newMockStore(t)
	defer store.Close()

	now := time.Now()
	mock.ExpectExec("INSERT INTO learning_priors").
		WithArgs("CYP2D6", "*1/*4", 1.1, int64(4), now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.UpsertPrior(context.Background(), &domain.LearningPrior{
		Gene:      "CYP2D6",
		Diplotype: "*4/*1", // normalized before the write
		Value:     1.1,
		Events:    4,
		UpdatedAt: now,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendEvent(t *testing.T) {
	store, mock := newMockStore(t)
	defer store.Close()

	now := time.Now()
	mock.ExpectExec("INSERT INTO feedback_events").
		WithArgs("TPMT", "*1/*3A", "*3A/*3A", 0.9, "assay confirmed", now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.AppendEvent(context.Background(), &domain.FeedbackEvent{
		Gene:              "TPMT",
		ReportedDiplotype: "*1/*3A",
		CorrectDiplotype:  "*3A/*3A",
		Quality:           0.9,
		Comments:          "assay confirmed",
		Timestamp:         now,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PriorSnapshot(t *testing.T) {
	store, mock := newMockStore(t)
	defer store.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"gene", "diplotype", "value", "events", "updated_at"}).
		AddRow("CYP2C19", "*2/*2", 0.95, int64(2), now).
		AddRow("CYP2D6", "*1/*4", 1.1, int64(5), now)
	mock.ExpectQuery("SELECT gene, diplotype, value, events, updated_at FROM learning_priors").
		WillReturnRows(rows)

	snapshot, err := store.PriorSnapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, snapshot, 2)
	assert.InDelta(t, 1.1, snapshot[PriorKey("CYP2D6", "*1/*4")], 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListEventsForGene(t *testing.T) {
	store, mock := newMockStore(t)
	defer store.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"gene", "reported_diplotype", "correct_diplotype", "quality", "comments", "created_at",
	}).AddRow("CYP2D6", "*1/*4", "*4/*4", 0.8, "", now)
	mock.ExpectQuery("SELECT gene, reported_diplotype, correct_diplotype, quality, comments, created_at FROM feedback_events").
		WithArgs("CYP2D6", 10, 0).
		WillReturnRows(rows)

	events, err := store.ListEvents(context.Background(), "CYP2D6", 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "*4/*4", events[0].CorrectDiplotype)
	assert.NoError(t, mock.ExpectationsWereMet())
}
