// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/caparkapa-educatedear/hepsiburada-bot/internal/model"
)

// ErrNotFound is returned when a requested row does not exist, or when a
// conditional update matched no row.
var ErrNotFound = errors.New("not found")

// Storage is the interface for all persistence operations.
type Storage interface {
	// InsertProduct stores a product unless one with the same external ID
	// already exists. It reports whether a new row was created.
	InsertProduct(ctx context.Context, p *model.Product) (bool, error)
	GetProductByExternalID(ctx context.Context, externalID string) (*model.Product, error)
	// ListPendingProducts returns up to limit unsent products, newest first.
	ListPendingProducts(ctx context.Context, limit int) ([]model.Product, error)
	// MarkProductSent sets sent_at on a product that has not been sent yet.
	// Returns ErrNotFound if the product is missing or already sent.
	MarkProductSent(ctx context.Context, id string, at time.Time) error

	CreateTemplate(ctx context.Context, t *model.Template) error
	ListTemplates(ctx context.Context) ([]model.Template, error)
	GetActiveTemplate(ctx context.Context) (*model.Template, error)
	// ActivateTemplate makes the given template the only active one.
	ActivateTemplate(ctx context.Context, id string) error
	DeactivateTemplate(ctx context.Context, id string) error
	DeleteTemplate(ctx context.Context, id string) error

	GetSettings(ctx context.Context) (*model.Settings, error)
	SaveSettings(ctx context.Context, s *model.Settings) error

	InsertLog(ctx context.Context, level, message string) error

	Close() error
}
