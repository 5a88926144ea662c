package database

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/catalog-crawler/internal/events"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, e events.Event) (string, error) {
	args := m.Called(ctx, e)
	return args.String(0), args.Error(1)
}

type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) GetPending(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*OutboxEvent), args.Error(1)
}

func (m *MockOutboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, err error) error {
	return m.Called(ctx, id, err).Error(0)
}

func productOutboxEvent(aggregateID string) *OutboxEvent {
	return &OutboxEvent{
		ID:            uuid.New(),
		AggregateType: events.AggregateProduct,
		AggregateID:   aggregateID,
		EventType:     events.TypeProductScraped,
		Payload:       json.RawMessage(`{"run_id":"r1","product":{"name":"` + aggregateID + `"}}`),
		TargetStream:  events.DefaultStream,
		CreatedAt:     time.Now(),
	}
}

func TestRelay_RunOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("publishes and marks every event", func(t *testing.T) {
		pub := new(MockPublisher)
		outbox := new(MockOutboxRepository)
		relay := NewRelay(outbox, pub, nil, RelayConfig{BatchSize: 10})

		pending := []*OutboxEvent{productOutboxEvent("amazon|Mouse"), productOutboxEvent("amazon|Keyboard")}
		outbox.On("GetPending", ctx, 10).Return(pending, nil)
		for _, e := range pending {
			id := e.ID
			pub.On("Publish", ctx, mock.MatchedBy(func(ev events.Event) bool { return ev.ID == id })).Return("1-0", nil)
			outbox.On("MarkProcessed", ctx, id).Return(nil)
		}

		n, err := relay.RunOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		pub.AssertExpectations(t)
		outbox.AssertExpectations(t)
	})

	t.Run("marks failed and continues", func(t *testing.T) {
		pub := new(MockPublisher)
		outbox := new(MockOutboxRepository)
		relay := NewRelay(outbox, pub, nil, RelayConfig{BatchSize: 10})

		first, second := productOutboxEvent("a"), productOutboxEvent("b")
		outbox.On("GetPending", ctx, 10).Return([]*OutboxEvent{first, second}, nil)

		pubErr := errors.New("redis connection failed")
		pub.On("Publish", ctx, mock.MatchedBy(func(ev events.Event) bool { return ev.AggregateID == "a" })).Return("", pubErr)
		outbox.On("MarkFailed", ctx, first.ID, pubErr).Return(nil)
		pub.On("Publish", ctx, mock.MatchedBy(func(ev events.Event) bool { return ev.AggregateID == "b" })).Return("2-0", nil)
		outbox.On("MarkProcessed", ctx, second.ID).Return(nil)

		n, err := relay.RunOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		outbox.AssertExpectations(t)
	})

	t.Run("empty batch", func(t *testing.T) {
		pub := new(MockPublisher)
		outbox := new(MockOutboxRepository)
		relay := NewRelay(outbox, pub, nil, RelayConfig{BatchSize: 10})

		outbox.On("GetPending", ctx, 10).Return([]*OutboxEvent{}, nil)

		n, err := relay.RunOnce(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
		pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	})

	t.Run("outbox read failure", func(t *testing.T) {
		outbox := new(MockOutboxRepository)
		relay := NewRelay(outbox, new(MockPublisher), nil, RelayConfig{BatchSize: 10})
		outbox.On("GetPending", ctx, 10).Return(nil, errors.New("db down"))

		_, err := relay.RunOnce(ctx)
		assert.ErrorContains(t, err, "failed to get pending events")
	})
}

func TestRelay_ForwardsToRedisStream(t *testing.T) {
	ctx := context.Background()
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	outbox := new(MockOutboxRepository)
	e := productOutboxEvent("shopee|Phone Case")
	outbox.On("GetPending", ctx, 100).Return([]*OutboxEvent{e}, nil)
	outbox.On("MarkProcessed", ctx, e.ID).Return(nil)

	relay := NewRelay(outbox, events.NewPublisher(rdb, "", nil), nil, RelayConfig{})
	n, err := relay.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	entries, err := rdb.XRange(ctx, events.DefaultStream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "shopee|Phone Case", entries[0].Values["aggregate_id"])
	assert.Equal(t, e.ID.String(), entries[0].Values["original_id"])
}

func TestRelay_StartStopsOnCancel(t *testing.T) {
	outbox := new(MockOutboxRepository)
	outbox.On("GetPending", mock.Anything, 100).Return([]*OutboxEvent{}, nil)

	relay := NewRelay(outbox, new(MockPublisher), nil, RelayConfig{PollInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := relay.Start(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	outbox.AssertCalled(t, "GetPending", mock.Anything, 100)
}
