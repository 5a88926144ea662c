package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/maltedev/catalog-crawler/internal/events"
	"github.com/maltedev/catalog-crawler/internal/models"
)

// Writer persists one run output.
type Writer interface {
	Write(ctx context.Context, out *models.Output) error
	Close(ctx context.Context) error
}

// Details holds the list and map fields stored in the products.details column.
type Details struct {
	Images        []string             `json:"images,omitempty"`
	ColorOptions  []models.ColorOption `json:"color_options,omitempty"`
	SizeOptions   []string             `json:"size_options,omitempty"`
	Attributes    map[string]string    `json:"product_details,omitempty"`
	AboutThisItem []string             `json:"about_this_item,omitempty"`
	Reviews       []models.Review      `json:"reviews,omitempty"`
}

const upsertProductSQL = `
	INSERT INTO products (
		product_url, name, site, price, price_numeric, currency, rating,
		review_count, review_count_numeric, image_url, category_path, description,
		shop_name, sold_count, search_term, source, details, run_id, scraped_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19
	)
	ON CONFLICT (product_url, name) DO UPDATE SET
		site = EXCLUDED.site,
		price = COALESCE(NULLIF(EXCLUDED.price, ''), products.price),
		price_numeric = COALESCE(EXCLUDED.price_numeric, products.price_numeric),
		currency = COALESCE(NULLIF(EXCLUDED.currency, ''), products.currency),
		rating = COALESCE(EXCLUDED.rating, products.rating),
		review_count = COALESCE(NULLIF(EXCLUDED.review_count, ''), products.review_count),
		review_count_numeric = COALESCE(EXCLUDED.review_count_numeric, products.review_count_numeric),
		image_url = COALESCE(NULLIF(EXCLUDED.image_url, ''), products.image_url),
		category_path = COALESCE(NULLIF(EXCLUDED.category_path, ''), products.category_path),
		description = COALESCE(NULLIF(EXCLUDED.description, ''), products.description),
		shop_name = COALESCE(NULLIF(EXCLUDED.shop_name, ''), products.shop_name),
		sold_count = COALESCE(NULLIF(EXCLUDED.sold_count, ''), products.sold_count),
		search_term = EXCLUDED.search_term,
		source = EXCLUDED.source,
		details = products.details || EXCLUDED.details,
		run_id = EXCLUDED.run_id,
		scraped_at = EXCLUDED.scraped_at,
		updated_at = CURRENT_TIMESTAMP`

const upsertCategorySQL = `
	INSERT INTO categories (name, source_url, site, run_id)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (name) DO UPDATE SET
		source_url = COALESCE(NULLIF(EXCLUDED.source_url, ''), categories.source_url),
		site = EXCLUDED.site,
		run_id = EXCLUDED.run_id,
		updated_at = CURRENT_TIMESTAMP`

func productArgs(runID string, p models.Product) ([]interface{}, error) {
	details, err := json.Marshal(Details{
		Images:        p.Images,
		ColorOptions:  p.ColorOptions,
		SizeOptions:   p.SizeOptions,
		Attributes:    p.Attributes,
		AboutThisItem: p.AboutThisItem,
		Reviews:       p.Reviews,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal details: %w", err)
	}

	return []interface{}{
		p.DetailURL, p.Name, p.Site, p.Price, p.PriceNumeric, p.Currency, p.Rating,
		p.ReviewCount, p.ReviewCountNumeric, p.ImageURL, p.CategoryPath, p.Description,
		p.ShopName, p.SoldCount, p.SearchTerm, p.Source, details, runID, p.ScrapedAt,
	}, nil
}

// PostgresWriter upserts products on (product_url, name) and categories on name.
// With an outbox stream set, one event per record is written in the same
// transaction for the relay to forward.
type PostgresWriter struct {
	db     *DB
	outbox *OutboxRepository
	stream string
	logger *slog.Logger
}

func NewPostgresWriter(db *DB, stream string, logger *slog.Logger) *PostgresWriter {
	if logger == nil {
		logger = slog.Default()
	}
	w := &PostgresWriter{
		db:     db,
		stream: stream,
		logger: logger.With("component", "postgres_writer"),
	}
	if stream != "" {
		w.outbox = NewOutboxRepository(db)
	}
	return w
}

func (w *PostgresWriter) Write(ctx context.Context, out *models.Output) error {
	products := models.Filter(out.Products)

	var evts []events.Event
	if w.outbox != nil {
		var err error
		evts, err = events.OutputEvents(&models.Output{
			RunID:      out.RunID,
			Site:       out.Site,
			Products:   products,
			Categories: out.Categories,
		})
		if err != nil {
			return err
		}
	}

	err := w.db.Transaction(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, p := range products {
			args, err := productArgs(out.RunID, p)
			if err != nil {
				return err
			}
			batch.Queue(upsertProductSQL, args...)
		}
		for _, c := range out.Categories {
			batch.Queue(upsertCategorySQL, c.Name, c.URL, out.Site, out.RunID)
		}

		if batch.Len() > 0 {
			if err := tx.SendBatch(ctx, batch).Close(); err != nil {
				return fmt.Errorf("failed to upsert records: %w", err)
			}
		}

		for _, e := range evts {
			e.Stream = w.stream
			if err := w.outbox.InsertWithTx(ctx, tx, OutboxEventFrom(e)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	w.logger.Info("records upserted",
		"site", out.Site,
		"run_id", out.RunID,
		"products", len(products),
		"categories", len(out.Categories),
		"outbox_events", len(evts))
	return nil
}

func (w *PostgresWriter) Close(context.Context) error {
	w.db.Close()
	return nil
}
