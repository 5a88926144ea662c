// Package events publishes extracted records to a redis stream and keeps the
// cross-run detail URL dedup set.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/maltedev/catalog-crawler/internal/models"
)

const (
	DefaultStream = "stream:catalog_records"

	TypeProductScraped     = "PRODUCT_SCRAPED"
	TypeCategoryDiscovered = "CATEGORY_DISCOVERED"
	AggregateProduct       = "product"
	AggregateCategory      = "category"
	source                 = "catalog-crawler"
)

// RedisClient is the part of the redis client the publisher needs.
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
}

// Event is one record change. The postgres outbox stores the same shape.
type Event struct {
	ID            uuid.UUID
	Type          string
	AggregateType string
	AggregateID   string
	Stream        string
	Payload       json.RawMessage
	RetryCount    int
	CreatedAt     time.Time
}

type productPayload struct {
	RunID   string         `json:"run_id"`
	Product models.Product `json:"product"`
}

type categoryPayload struct {
	RunID    string          `json:"run_id"`
	Site     string          `json:"site"`
	Category models.Category `json:"category"`
}

// ProductAggregateID identifies a product across runs by its upsert key.
func ProductAggregateID(p models.Product) string {
	if p.DetailURL != "" {
		return p.Site + "|" + p.DetailURL + "|" + p.Name
	}
	return p.Site + "|" + p.Name
}

func NewProductEvent(runID string, p models.Product) (Event, error) {
	data, err := json.Marshal(productPayload{RunID: runID, Product: p})
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal product event: %w", err)
	}
	return Event{
		ID:            uuid.New(),
		Type:          TypeProductScraped,
		AggregateType: AggregateProduct,
		AggregateID:   ProductAggregateID(p),
		Payload:       data,
		CreatedAt:     time.Now(),
	}, nil
}

func NewCategoryEvent(runID, site string, c models.Category) (Event, error) {
	data, err := json.Marshal(categoryPayload{RunID: runID, Site: site, Category: c})
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal category event: %w", err)
	}
	return Event{
		ID:            uuid.New(),
		Type:          TypeCategoryDiscovered,
		AggregateType: AggregateCategory,
		AggregateID:   site + "|" + c.Name,
		Payload:       data,
		CreatedAt:     time.Now(),
	}, nil
}

// OutputEvents turns a run output into one event per product and category.
func OutputEvents(out *models.Output) ([]Event, error) {
	evts := make([]Event, 0, len(out.Products)+len(out.Categories))
	for _, p := range out.Products {
		e, err := NewProductEvent(out.RunID, p)
		if err != nil {
			return nil, err
		}
		evts = append(evts, e)
	}
	for _, c := range out.Categories {
		e, err := NewCategoryEvent(out.RunID, out.Site, c)
		if err != nil {
			return nil, err
		}
		evts = append(evts, e)
	}
	return evts, nil
}

// Publisher appends events to a redis stream.
type Publisher struct {
	client RedisClient
	stream string
	logger *slog.Logger
}

func NewPublisher(client RedisClient, stream string, logger *slog.Logger) *Publisher {
	if stream == "" {
		stream = DefaultStream
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		client: client,
		stream: stream,
		logger: logger.With("component", "event_publisher"),
	}
}

// Publish writes e to its own stream, or the publisher's default stream, and
// returns the stream entry id.
func (p *Publisher) Publish(ctx context.Context, e Event) (string, error) {
	stream := e.Stream
	if stream == "" {
		stream = p.stream
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return "", fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	envelope := map[string]interface{}{
		"id":             e.ID.String(),
		"type":           e.Type,
		"aggregate_type": e.AggregateType,
		"aggregate_id":   e.AggregateID,
		"timestamp":      e.CreatedAt.Format(time.RFC3339),
		"payload":        payload,
		"metadata": map[string]interface{}{
			"source":        source,
			"retry_count":   e.RetryCount,
			"target_stream": stream,
		},
	}

	dataJSON, err := json.Marshal(envelope)
	if err != nil {
		return "", fmt.Errorf("failed to marshal stream data: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			"data":           string(dataJSON),
			"type":           e.Type,
			"timestamp":      fmt.Sprintf("%d", e.CreatedAt.UnixNano()),
			"original_id":    e.ID.String(),
			"aggregate_id":   e.AggregateID,
			"aggregate_type": e.AggregateType,
		},
	}

	id, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("failed to publish to redis: %w", err)
	}
	return id, nil
}

// PublishOutput publishes every record of out and returns how many made it.
// It stops at the first failure.
func (p *Publisher) PublishOutput(ctx context.Context, out *models.Output) (int, error) {
	evts, err := OutputEvents(out)
	if err != nil {
		return 0, err
	}
	for i, e := range evts {
		if _, err := p.Publish(ctx, e); err != nil {
			return i, err
		}
	}
	p.logger.Info("records published", "site", out.Site, "run_id", out.RunID, "count", len(evts), "stream", p.stream)
	return len(evts), nil
}
