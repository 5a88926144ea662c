package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/maltedev/catalog-crawler/internal/models"
)

// MongoWriter upserts products keyed on (product_url, name) and categories keyed on name.
type MongoWriter struct {
	client     *mongo.Client
	products   *mongo.Collection
	categories *mongo.Collection
	logger     *slog.Logger
}

func NewMongoWriter(ctx context.Context, uri, database string, logger *slog.Logger) (*MongoWriter, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("can't ping MongoDB: %w", err)
	}

	w := newMongoWriter(client.Database(database), logger)
	w.client = client

	if err := w.EnsureIndexes(connectCtx); err != nil {
		w.logger.Warn("failed to create indexes", "error", err)
	}
	return w, nil
}

func newMongoWriter(db *mongo.Database, logger *slog.Logger) *MongoWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &MongoWriter{
		products:   db.Collection("products"),
		categories: db.Collection("categories"),
		logger:     logger.With("component", "mongo_writer"),
	}
}

func (w *MongoWriter) EnsureIndexes(ctx context.Context) error {
	_, err := w.products.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "product_url", Value: 1}, {Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("products index: %w", err)
	}

	_, err = w.categories.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("categories index: %w", err)
	}
	return nil
}

func productDocument(runID string, p models.Product) (bson.M, error) {
	data, err := bson.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal product: %w", err)
	}
	var doc bson.M
	if err := bson.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal product: %w", err)
	}
	doc["product_url"] = p.DetailURL
	doc["run_id"] = runID
	doc["updated_at"] = time.Now()
	return doc, nil
}

func (w *MongoWriter) Write(ctx context.Context, out *models.Output) error {
	opts := options.Update().SetUpsert(true)
	products := models.Filter(out.Products)

	for _, p := range products {
		doc, err := productDocument(out.RunID, p)
		if err != nil {
			return err
		}
		filter := bson.M{"product_url": p.DetailURL, "name": p.Name}
		update := bson.M{
			"$set":         doc,
			"$setOnInsert": bson.M{"created_at": time.Now()},
		}
		if _, err := w.products.UpdateOne(ctx, filter, update, opts); err != nil {
			return fmt.Errorf("failed to upsert product %q: %w", p.Name, err)
		}
	}

	for _, c := range out.Categories {
		update := bson.M{
			"$set": bson.M{
				"name":       c.Name,
				"source_url": c.URL,
				"site":       out.Site,
				"run_id":     out.RunID,
				"updated_at": time.Now(),
			},
			"$setOnInsert": bson.M{"created_at": time.Now()},
		}
		if _, err := w.categories.UpdateOne(ctx, bson.M{"name": c.Name}, update, opts); err != nil {
			return fmt.Errorf("failed to upsert category %q: %w", c.Name, err)
		}
	}

	w.logger.Info("records upserted",
		"site", out.Site,
		"run_id", out.RunID,
		"products", len(products),
		"categories", len(out.Categories))
	return nil
}

func (w *MongoWriter) Close(ctx context.Context) error {
	if w.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return w.client.Disconnect(ctx)
}
