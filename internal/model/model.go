// Package model defines the domain types used across the application.
package model

import "time"

// Product represents one discovered deal listing tracked through its
// pending/sent lifecycle. Price fields are kept as display strings; the
// source formatting is locale-specific and only ever shown to users.
type Product struct {
	ID            string
	ExternalID    string
	Name          string
	Price         string
	OriginalPrice string // empty when the listing shows no discount
	DiscountRate  string // empty when the listing shows no discount
	URL           string
	ImageURL      string // empty when the listing has no usable image
	SentAt        *time.Time
	CreatedAt     time.Time
}

// ScrapedProduct is a candidate produced by extraction, not yet checked
// against the store for novelty.
type ScrapedProduct struct {
	ExternalID    string
	Name          string
	Price         string
	OriginalPrice string
	DiscountRate  string
	URL           string
	ImageURL      string
}

// Template is an externally authored message format. Content may contain
// the placeholder tokens {name}, {price}, {originalPrice}, {discountRate}
// and {url}.
type Template struct {
	ID        string
	Name      string
	Content   string
	IsActive  bool
	CreatedAt time.Time
}

// Settings is the singleton bot configuration row.
type Settings struct {
	ID              int64
	BotToken        string
	ChannelUsername string
	IsActive        bool
	CronSecret      string
}

// Configured reports whether the settings allow dispatching: the global
// switch is on and both channel credential and destination are present.
func (s *Settings) Configured() bool {
	return s.IsActive && s.BotToken != "" && s.ChannelUsername != ""
}
