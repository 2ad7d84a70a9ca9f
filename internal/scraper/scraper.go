// Package scraper extracts deal listings from the rendered target page.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/caparkapa-educatedear/hepsiburada-bot/internal/model"
)

// PageSource produces the fully rendered HTML of the target page. It is a
// seam between pipeline logic and browser automation, so the page contract
// can be swapped or faked without touching extraction.
type PageSource interface {
	FetchHTML(ctx context.Context) (string, error)
}

// Scraper turns the rendered deals page into candidate products.
type Scraper struct {
	source PageSource
	base   *url.URL
	log    *slog.Logger
}

// New creates a Scraper reading from source. pageURL is used to resolve
// relative listing links.
func New(source PageSource, pageURL string, log *slog.Logger) (*Scraper, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	return &Scraper{source: source, base: base, log: log}, nil
}

// Extract fetches the rendered page and parses its listing cards. Fetch and
// document-level parse failures are fatal; individual card failures are
// counted and skipped so one broken listing cannot poison the rest.
func (s *Scraper) Extract(ctx context.Context) ([]model.ScrapedProduct, error) {
	s.log.Info("starting scrape", "url", s.base.String())

	htmlSrc, err := s.source.FetchHTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch deals page: %w", err)
	}

	products, skipped, err := ParseProducts(htmlSrc, s.base)
	if err != nil {
		return nil, fmt.Errorf("parse deals page: %w", err)
	}
	if skipped > 0 {
		s.log.Warn("skipped listing cards", "count", skipped)
	}
	s.log.Info("scrape finished", "products", len(products))
	return products, nil
}
