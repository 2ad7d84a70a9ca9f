// Package logging provides a slog handler that keeps error records in the
// database so delivery failures stay inspectable after the fact.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// LogStore is the subset of the storage layer the handler needs.
type LogStore interface {
	InsertLog(ctx context.Context, level, message string) error
}

// StoreHandler wraps another slog handler and additionally persists records
// at or above Error level. Store failures are ignored: logging must never
// take the pipeline down.
type StoreHandler struct {
	inner slog.Handler
	store LogStore
}

// NewStoreHandler wraps inner with database persistence for error records.
func NewStoreHandler(inner slog.Handler, store LogStore) *StoreHandler {
	return &StoreHandler{inner: inner, store: store}
}

// Enabled implements slog.Handler.
func (h *StoreHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *StoreHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		_ = h.store.InsertLog(ctx, r.Level.String(), formatRecord(r))
	}
	return h.inner.Handle(ctx, r)
}

// WithAttrs implements slog.Handler.
func (h *StoreHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &StoreHandler{inner: h.inner.WithAttrs(attrs), store: h.store}
}

// WithGroup implements slog.Handler.
func (h *StoreHandler) WithGroup(name string) slog.Handler {
	return &StoreHandler{inner: h.inner.WithGroup(name), store: h.store}
}

func formatRecord(r slog.Record) string {
	var b strings.Builder
	b.WriteString(r.Message)
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
		return true
	})
	return b.String()
}
