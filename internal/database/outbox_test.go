package database

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/catalog-crawler/internal/events"
	"github.com/maltedev/catalog-crawler/internal/models"
)

func TestRetryPlan(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		retries  int
		status   string
		expected time.Duration
	}{
		{1, OutboxStatusFailed, 2 * time.Second},
		{3, OutboxStatusFailed, 8 * time.Second},
		{4, OutboxStatusFailed, 16 * time.Second},
		{5, OutboxStatusDeadLetter, 32 * time.Second},
		{9, OutboxStatusDeadLetter, 300 * time.Second},
		{40, OutboxStatusDeadLetter, 300 * time.Second},
	}

	for _, tt := range tests {
		status, next := retryPlan(tt.retries, now)
		assert.Equal(t, tt.status, status, "retries=%d", tt.retries)
		assert.Equal(t, tt.expected, next.Sub(now), "retries=%d", tt.retries)
	}
}

func TestPrepareOutboxEventDefaults(t *testing.T) {
	now := time.Now()
	e := &OutboxEvent{EventType: events.TypeProductScraped}
	prepareOutboxEvent(e, now)

	assert.NotEqual(t, uuid.Nil, e.ID)
	assert.Equal(t, OutboxStatusPending, e.Status)
	assert.Equal(t, events.DefaultStream, e.TargetStream)
	assert.Equal(t, now, e.CreatedAt)
	require.NotNil(t, e.NextRetryAt)
	assert.Equal(t, now, *e.NextRetryAt)
}

func TestOutboxEventRoundTrip(t *testing.T) {
	e, err := events.NewProductEvent("run-1", models.Product{Name: "Wireless Mouse", Site: "amazon"})
	require.NoError(t, err)
	e.Stream = "stream:custom"

	back := OutboxEventFrom(e).Event()
	assert.Equal(t, e.ID, back.ID)
	assert.Equal(t, e.Type, back.Type)
	assert.Equal(t, e.AggregateID, back.AggregateID)
	assert.Equal(t, "stream:custom", back.Stream)
	assert.JSONEq(t, string(e.Payload), string(back.Payload))
}

// setupTestDB connects to CRAWLER_TEST_DATABASE_URL and applies the schema.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("CRAWLER_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("CRAWLER_TEST_DATABASE_URL not set")
	}

	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	db := &DB{pool: pool}
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func TestOutboxRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	defer db.Close()

	repo := NewOutboxRepository(db)
	event := &OutboxEvent{
		AggregateType: events.AggregateProduct,
		AggregateID:   "test|" + uuid.NewString(),
		EventType:     events.TypeProductScraped,
		Payload:       json.RawMessage(`{"run_id":"r1"}`),
	}

	require.NoError(t, db.Transaction(ctx, func(tx pgx.Tx) error {
		return repo.InsertWithTx(ctx, tx, event)
	}))

	pending, err := repo.GetPending(ctx, 1000)
	require.NoError(t, err)
	assert.True(t, containsEvent(pending, event.ID))

	require.NoError(t, repo.MarkFailed(ctx, event.ID, errors.New("redis down")))
	pending, err = repo.GetPending(ctx, 1000)
	require.NoError(t, err)
	assert.False(t, containsEvent(pending, event.ID), "retry is scheduled in the future")

	require.NoError(t, repo.MarkProcessed(ctx, event.ID))
	assert.Error(t, repo.MarkProcessed(ctx, uuid.New()))
}

func TestOutboxInsertRollsBack(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	defer db.Close()

	repo := NewOutboxRepository(db)
	event := &OutboxEvent{
		AggregateType: events.AggregateProduct,
		AggregateID:   "rollback|" + uuid.NewString(),
		EventType:     events.TypeProductScraped,
		Payload:       json.RawMessage(`{}`),
	}

	err := db.Transaction(ctx, func(tx pgx.Tx) error {
		if err := repo.InsertWithTx(ctx, tx, event); err != nil {
			return err
		}
		return pgx.ErrTxClosed
	})
	require.Error(t, err)

	pending, err := repo.GetPending(ctx, 1000)
	require.NoError(t, err)
	assert.False(t, containsEvent(pending, event.ID))
}

func containsEvent(list []*OutboxEvent, id uuid.UUID) bool {
	for _, e := range list {
		if e.ID == id {
			return true
		}
	}
	return false
}
