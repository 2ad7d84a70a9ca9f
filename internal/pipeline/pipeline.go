// Package pipeline composes scraping, ingestion and dispatch into one run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/caparkapa-educatedear/hepsiburada-bot/internal/dispatch"
	"github.com/caparkapa-educatedear/hepsiburada-bot/internal/model"
	"github.com/caparkapa-educatedear/hepsiburada-bot/internal/storage"
)

// ErrRunInProgress is returned when a run is triggered while another one
// still holds the run lock.
var ErrRunInProgress = errors.New("pipeline run already in progress")

// Extractor produces candidate products from the target page.
type Extractor interface {
	Extract(ctx context.Context) ([]model.ScrapedProduct, error)
}

// Dispatcher delivers pending products and reports what happened.
type Dispatcher interface {
	Dispatch(ctx context.Context) (dispatch.Summary, error)
}

// RunSummary reports one full pipeline run.
type RunSummary struct {
	Scraped  int
	New      int
	Dispatch dispatch.Summary
}

// Ingestor persists candidates that have not been seen before.
type Ingestor struct {
	store storage.Storage
	log   *slog.Logger
}

// NewIngestor creates an Ingestor backed by the given store.
func NewIngestor(store storage.Storage, log *slog.Logger) *Ingestor {
	return &Ingestor{store: store, log: log}
}

// Ingest stores each candidate whose external ID is not yet known and
// returns the number of newly created products. Candidates seen before are
// skipped without touching the stored row, so first-seen data wins and the
// operation is idempotent over repeated or overlapping candidate sets.
func (in *Ingestor) Ingest(ctx context.Context, candidates []model.ScrapedProduct) (int, error) {
	created := 0
	for _, c := range candidates {
		p := model.Product{
			ExternalID:    c.ExternalID,
			Name:          c.Name,
			Price:         c.Price,
			OriginalPrice: c.OriginalPrice,
			DiscountRate:  c.DiscountRate,
			URL:           c.URL,
			ImageURL:      c.ImageURL,
		}
		isNew, err := in.store.InsertProduct(ctx, &p)
		if err != nil {
			return created, fmt.Errorf("ingest %s: %w", c.ExternalID, err)
		}
		if isNew {
			created++
			in.log.Debug("ingested product", "external_id", c.ExternalID, "name", c.Name)
		}
	}
	return created, nil
}

// Runner executes one pipeline run: extract, ingest, dispatch. At most one
// run is in flight at a time; overlapping triggers get ErrRunInProgress
// instead of racing on the same pending products.
type Runner struct {
	extractor  Extractor
	ingestor   *Ingestor
	dispatcher Dispatcher
	log        *slog.Logger

	mu sync.Mutex
}

// NewRunner wires the pipeline stages together.
func NewRunner(extractor Extractor, ingestor *Ingestor, dispatcher Dispatcher, log *slog.Logger) *Runner {
	return &Runner{
		extractor:  extractor,
		ingestor:   ingestor,
		dispatcher: dispatcher,
		log:        log,
	}
}

// RunOnce performs a single sequential run. Extraction failure aborts the
// run before anything is written. Dispatch always runs, even when nothing
// new was ingested, because older pending products may still await
// delivery.
func (r *Runner) RunOnce(ctx context.Context) (RunSummary, error) {
	if !r.mu.TryLock() {
		return RunSummary{}, ErrRunInProgress
	}
	defer r.mu.Unlock()

	var sum RunSummary

	candidates, err := r.extractor.Extract(ctx)
	if err != nil {
		r.log.Error("scrape failed", "error", err)
		return sum, fmt.Errorf("scrape: %w", err)
	}
	sum.Scraped = len(candidates)

	sum.New, err = r.ingestor.Ingest(ctx, candidates)
	if err != nil {
		r.log.Error("ingest failed", "error", err)
		return sum, fmt.Errorf("ingest: %w", err)
	}
	r.log.Info("database updated", "scraped", sum.Scraped, "new", sum.New)

	sum.Dispatch, err = r.dispatcher.Dispatch(ctx)
	if err != nil {
		r.log.Error("dispatch failed", "error", err)
		return sum, fmt.Errorf("dispatch: %w", err)
	}

	return sum, nil
}
