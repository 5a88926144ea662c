package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/maltedev/catalog-crawler/internal/events"
)

// StreamPublisher forwards one event to its stream.
type StreamPublisher interface {
	Publish(ctx context.Context, e events.Event) (string, error)
}

// OutboxRepo is the outbox access the relay needs.
type OutboxRepo interface {
	GetPending(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, err error) error
}

// Relay moves outbox events written by PostgresWriter to redis streams.
type Relay struct {
	publisher StreamPublisher
	outbox    OutboxRepo
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

type RelayConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

func NewRelay(outbox OutboxRepo, publisher StreamPublisher, logger *slog.Logger, config RelayConfig) *Relay {
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Relay{
		publisher: publisher,
		outbox:    outbox,
		logger:    logger.With("component", "relay"),
		interval:  config.PollInterval,
		batchSize: config.BatchSize,
	}
}

// Start drains the outbox every poll interval until ctx ends.
func (r *Relay) Start(ctx context.Context) error {
	r.logger.Info("starting relay",
		"interval", r.interval,
		"batch_size", r.batchSize)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	if _, err := r.RunOnce(ctx); err != nil {
		r.logger.Error("failed to process events on startup", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("relay stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				r.logger.Error("failed to process events", "error", err)
			}
		}
	}
}

// RunOnce forwards one batch and returns how many events were published.
// Individual publish failures are recorded on the event, not returned.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	pending, err := r.outbox.GetPending(ctx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending events: %w", err)
	}

	published := 0
	for _, event := range pending {
		if err := r.forward(ctx, event); err != nil {
			r.logger.Error("failed to forward event",
				"event_id", event.ID,
				"aggregate_id", event.AggregateID,
				"error", err)
			continue
		}
		published++
	}

	if len(pending) > 0 {
		r.logger.Debug("outbox batch processed", "fetched", len(pending), "published", published)
	}
	return published, nil
}

func (r *Relay) forward(ctx context.Context, event *OutboxEvent) error {
	if _, err := r.publisher.Publish(ctx, event.Event()); err != nil {
		if markErr := r.outbox.MarkFailed(ctx, event.ID, err); markErr != nil {
			r.logger.Error("failed to mark event as failed",
				"event_id", event.ID,
				"error", markErr)
		}
		return err
	}

	if err := r.outbox.MarkProcessed(ctx, event.ID); err != nil {
		return err
	}

	r.logger.Debug("event forwarded",
		"event_id", event.ID,
		"event_type", event.EventType,
		"target_stream", event.TargetStream)
	return nil
}
