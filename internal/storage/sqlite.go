package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver registration.

	"github.com/caparkapa-educatedear/hepsiburada-bot/internal/model"
	"github.com/caparkapa-educatedear/hepsiburada-bot/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// InsertProduct stores a product unless its external ID is already known.
// The product's ID and CreatedAt are populated when missing.
func (s *SQLite) InsertProduct(ctx context.Context, p *model.Product) (bool, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO products
		   (id, external_id, name, price, original_price, discount_rate, url, image_url, sent_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL, ?)`,
		p.ID, p.ExternalID, p.Name, p.Price, p.OriginalPrice, p.DiscountRate,
		p.URL, p.ImageURL, p.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return false, fmt.Errorf("insert product: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// GetProductByExternalID returns the product with the given external ID.
func (s *SQLite) GetProductByExternalID(ctx context.Context, externalID string) (*model.Product, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, external_id, name, price, original_price, discount_rate, url, image_url, sent_at, created_at
		 FROM products WHERE external_id = ?`, externalID,
	)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// ListPendingProducts returns up to limit products awaiting delivery,
// most recently created first.
func (s *SQLite) ListPendingProducts(ctx context.Context, limit int) ([]model.Product, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, external_id, name, price, original_price, discount_rate, url, image_url, sent_at, created_at
		 FROM products
		 WHERE sent_at IS NULL
		 ORDER BY created_at DESC, id
		 LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query pending products: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var products []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

// MarkProductSent records the delivery timestamp for a product. The update
// only applies to unsent products, so a sent product can never transition
// back or be stamped twice.
func (s *SQLite) MarkProductSent(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE products SET sent_at = ? WHERE id = ? AND sent_at IS NULL`,
		at.UTC().Format(timeLayout), id,
	)
	if err != nil {
		return fmt.Errorf("mark product sent: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateTemplate inserts a new template and populates its ID and CreatedAt.
func (s *SQLite) CreateTemplate(ctx context.Context, t *model.Template) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO templates (id, name, content, is_active, created_at) VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Content, boolToInt(t.IsActive), now,
	)
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	t.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// ListTemplates returns all templates, most recently created first.
func (s *SQLite) ListTemplates(ctx context.Context) ([]model.Template, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, content, is_active, created_at FROM templates ORDER BY created_at DESC, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var templates []model.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, *t)
	}
	return templates, rows.Err()
}

// GetActiveTemplate returns the currently active template, or ErrNotFound
// if no template is active.
func (s *SQLite) GetActiveTemplate(ctx context.Context) (*model.Template, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, content, is_active, created_at FROM templates WHERE is_active = 1 LIMIT 1`,
	)
	t, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// ActivateTemplate activates the given template and deactivates every other
// one in the same transaction, so at most one template is ever active.
func (s *SQLite) ActivateTemplate(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `UPDATE templates SET is_active = 0 WHERE is_active = 1`); err != nil {
		return fmt.Errorf("deactivate templates: %w", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE templates SET is_active = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("activate template: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// DeactivateTemplate clears the active flag on the given template.
func (s *SQLite) DeactivateTemplate(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE templates SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deactivate template: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTemplate removes a template by its ID.
func (s *SQLite) DeleteTemplate(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM templates WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	return nil
}

// GetSettings returns the singleton settings row.
func (s *SQLite) GetSettings(ctx context.Context) (*model.Settings, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, bot_token, channel_username, is_active, cron_secret FROM bot_settings WHERE id = 1`,
	)
	var st model.Settings
	var isActive int
	err := row.Scan(&st.ID, &st.BotToken, &st.ChannelUsername, &isActive, &st.CronSecret)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan settings: %w", err)
	}
	st.IsActive = isActive == 1
	return &st, nil
}

// SaveSettings writes the singleton settings row, creating it if needed.
func (s *SQLite) SaveSettings(ctx context.Context, st *model.Settings) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bot_settings (id, bot_token, channel_username, is_active, cron_secret)
		 VALUES (1, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   bot_token = excluded.bot_token,
		   channel_username = excluded.channel_username,
		   is_active = excluded.is_active,
		   cron_secret = excluded.cron_secret`,
		st.BotToken, st.ChannelUsername, boolToInt(st.IsActive), st.CronSecret,
	)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	st.ID = 1
	return nil
}

// InsertLog appends a diagnostic record to the logs table.
func (s *SQLite) InsertLog(ctx context.Context, level, message string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO logs (level, message, created_at) VALUES (?, ?, ?)`,
		level, message, time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert log: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type scannable interface {
	Scan(dest ...any) error
}

func scanProduct(row scannable) (*model.Product, error) {
	var p model.Product
	var sentAt, created sql.NullString
	err := row.Scan(&p.ID, &p.ExternalID, &p.Name, &p.Price, &p.OriginalPrice,
		&p.DiscountRate, &p.URL, &p.ImageURL, &sentAt, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan product: %w", err)
	}
	if sentAt.Valid {
		t, _ := time.Parse(timeLayout, sentAt.String)
		p.SentAt = &t
	}
	if created.Valid {
		p.CreatedAt, _ = time.Parse(timeLayout, created.String)
	}
	return &p, nil
}

func scanTemplate(row scannable) (*model.Template, error) {
	var t model.Template
	var isActive int
	var created string
	err := row.Scan(&t.ID, &t.Name, &t.Content, &isActive, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan template: %w", err)
	}
	t.IsActive = isActive == 1
	t.CreatedAt, _ = time.Parse(timeLayout, created)
	return &t, nil
}
