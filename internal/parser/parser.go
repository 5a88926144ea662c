// Package parser turns fetched catalog pages into product, category and review records.
package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maltedev/catalog-crawler/internal/models"
)

// ErrNoRecords is returned when every strategy came back empty.
var ErrNoRecords = errors.New("no records extracted")

// Input is one stabilized page handed to the pipeline.
type Input struct {
	URL        string
	Content    string
	SearchTerm string
}

// Strategy extracts records from a page. An empty result lets the pipeline fall
// through to the next strategy.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, in Input) ([]models.Product, error)
}

type Output struct {
	Products []models.Product
	Strategy string
}

// Pipeline runs strategies in order and stops at the first one producing records.
type Pipeline struct {
	strategies []Strategy
	logger     *slog.Logger
}

func NewPipeline(logger *slog.Logger, strategies ...Strategy) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		strategies: strategies,
		logger:     logger.With("component", "pipeline"),
	}
}

func (p *Pipeline) Strategies() []string {
	names := make([]string, 0, len(p.strategies))
	for _, s := range p.strategies {
		names = append(names, s.Name())
	}
	return names
}

func (p *Pipeline) Run(ctx context.Context, in Input) (Output, error) {
	for _, s := range p.strategies {
		if err := ctx.Err(); err != nil {
			return Output{}, err
		}
		records, err := s.Extract(ctx, in)
		if err != nil {
			p.logger.Warn("strategy failed", "strategy", s.Name(), "url", in.URL, "error", err)
			continue
		}
		records = models.Filter(records)
		if len(records) == 0 {
			p.logger.Debug("strategy returned nothing", "strategy", s.Name(), "url", in.URL)
			continue
		}
		for i := range records {
			if records[i].SearchTerm == "" {
				records[i].SearchTerm = in.SearchTerm
			}
			records[i].Source = s.Name()
		}
		p.logger.Info("records extracted", "strategy", s.Name(), "count", len(records), "url", in.URL)
		return Output{Products: records, Strategy: s.Name()}, nil
	}
	return Output{}, fmt.Errorf("%w from %s after %d strategies", ErrNoRecords, in.URL, len(p.strategies))
}
