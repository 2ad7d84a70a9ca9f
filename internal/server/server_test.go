package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/caparkapa-educatedear/hepsiburada-bot/internal/config"
	"github.com/caparkapa-educatedear/hepsiburada-bot/internal/dispatch"
	"github.com/caparkapa-educatedear/hepsiburada-bot/internal/model"
	"github.com/caparkapa-educatedear/hepsiburada-bot/internal/pipeline"
	"github.com/caparkapa-educatedear/hepsiburada-bot/internal/storage"
)

type fakeRunner struct {
	summary pipeline.RunSummary
	err     error
	calls   int
}

func (f *fakeRunner) RunOnce(_ context.Context) (pipeline.RunSummary, error) {
	f.calls++
	return f.summary, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, runner Runner, cfg *config.Config) (*Server, *storage.SQLite) {
	t.Helper()
	s, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if cfg == nil {
		cfg = &config.Config{CronSecret: "changeme"}
	}
	return New(s, runner, cfg, discardLogger()), s
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func TestScrapeRejectsBadSecret(t *testing.T) {
	runner := &fakeRunner{}
	srv, _ := newTestServer(t, runner, nil)

	tests := []struct {
		name string
		url  string
	}{
		{name: "wrong key", url: "/api/cron/scrape?key=wrong"},
		{name: "missing key", url: "/api/cron/scrape"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := srv.app.Test(httptest.NewRequest(http.MethodGet, tt.url, nil))
			if err != nil {
				t.Fatalf("request: %v", err)
			}
			if resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", resp.StatusCode)
			}
		})
	}

	// The pipeline must never start on an unauthorized request.
	if runner.calls != 0 {
		t.Fatalf("runner calls = %d, want 0", runner.calls)
	}
}

func TestScrapeRunsPipeline(t *testing.T) {
	runner := &fakeRunner{summary: pipeline.RunSummary{
		Scraped:  3,
		New:      2,
		Dispatch: dispatch.Summary{Attempted: 2, Sent: 2},
	}}
	srv, _ := newTestServer(t, runner, nil)

	// The seeded settings row carries the default secret.
	resp, err := srv.app.Test(httptest.NewRequest(http.MethodGet, "/api/cron/scrape?key=changeme", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body scrapeResponse
	decodeBody(t, resp, &body)
	if !body.Success || body.Scraped != 3 || body.New != 2 || body.Dispatch.Sent != 2 {
		t.Fatalf("body = %+v", body)
	}
	if runner.calls != 1 {
		t.Fatalf("runner calls = %d, want 1", runner.calls)
	}
}

func TestScrapeSecretFromSettingsWins(t *testing.T) {
	runner := &fakeRunner{}
	srv, store := newTestServer(t, runner, nil)

	err := store.SaveSettings(context.Background(), &model.Settings{
		IsActive:   true,
		CronSecret: "db-secret",
	})
	if err != nil {
		t.Fatalf("save settings: %v", err)
	}

	resp, err := srv.app.Test(httptest.NewRequest(http.MethodGet, "/api/cron/scrape?key=changeme", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("config fallback accepted despite settings secret, status = %d", resp.StatusCode)
	}

	resp, err = srv.app.Test(httptest.NewRequest(http.MethodGet, "/api/cron/scrape?key=db-secret", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestScrapeReportsFailures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "overlapping run", err: pipeline.ErrRunInProgress, wantStatus: http.StatusConflict},
		{name: "extraction failure", err: errors.New("scrape: render page: timeout"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, &fakeRunner{err: tt.err}, nil)
			resp, err := srv.app.Test(httptest.NewRequest(http.MethodGet, "/api/cron/scrape?key=changeme", nil))
			if err != nil {
				t.Fatalf("request: %v", err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			var body map[string]any
			decodeBody(t, resp, &body)
			if body["success"] != false {
				t.Fatalf("success = %v, want false", body["success"])
			}
		})
	}
}

func adminConfig() *config.Config {
	return &config.Config{CronSecret: "changeme", AdminToken: "admin-token"}
}

func adminReq(method, url string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Authorization", "Bearer admin-token")
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestAdminAuth(t *testing.T) {
	t.Run("disabled without configured token", func(t *testing.T) {
		srv, _ := newTestServer(t, &fakeRunner{}, nil)
		resp, err := srv.app.Test(httptest.NewRequest(http.MethodGet, "/api/admin/templates", nil))
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", resp.StatusCode)
		}
	})

	t.Run("wrong bearer token", func(t *testing.T) {
		srv, _ := newTestServer(t, &fakeRunner{}, adminConfig())
		req := httptest.NewRequest(http.MethodGet, "/api/admin/templates", nil)
		req.Header.Set("Authorization", "Bearer nope")
		resp, err := srv.app.Test(req)
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", resp.StatusCode)
		}
	})
}

func TestAdminTemplateLifecycle(t *testing.T) {
	srv, store := newTestServer(t, &fakeRunner{}, adminConfig())

	// Create a second template next to the seeded default.
	resp, err := srv.app.Test(adminReq(http.MethodPost, "/api/admin/templates", map[string]string{
		"name":    "Black Friday",
		"content": "🔥 {name} sadece {price}! {url}",
	}))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}
	var created templateResponse
	decodeBody(t, resp, &created)
	if created.ID == "" || created.IsActive {
		t.Fatalf("created = %+v, want inactive template with id", created)
	}

	// Activating it must deactivate the seeded default.
	resp, err = srv.app.Test(adminReq(http.MethodPost, "/api/admin/templates/"+created.ID+"/activate", nil))
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("activate status = %d, want 204", resp.StatusCode)
	}
	active, err := store.GetActiveTemplate(context.Background())
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if active.ID != created.ID {
		t.Fatalf("active = %s, want %s", active.ID, created.ID)
	}

	resp, err = srv.app.Test(adminReq(http.MethodPost, "/api/admin/templates/no-such-id/activate", nil))
	if err != nil {
		t.Fatalf("activate missing: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("activate missing status = %d, want 404", resp.StatusCode)
	}

	resp, err = srv.app.Test(adminReq(http.MethodDelete, "/api/admin/templates/"+created.ID, nil))
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", resp.StatusCode)
	}
}

func TestAdminCreateTemplateValidation(t *testing.T) {
	srv, _ := newTestServer(t, &fakeRunner{}, adminConfig())

	resp, err := srv.app.Test(adminReq(http.MethodPost, "/api/admin/templates", map[string]string{
		"name": "no content",
	}))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestAdminSettingsRoundTrip(t *testing.T) {
	srv, store := newTestServer(t, &fakeRunner{}, adminConfig())

	resp, err := srv.app.Test(adminReq(http.MethodPut, "/api/admin/settings", settingsPayload{
		BotToken:        "123:abc",
		ChannelUsername: "@deals",
		IsActive:        true,
		CronSecret:      "s3cret",
	}))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d, want 200", resp.StatusCode)
	}

	saved, err := store.GetSettings(context.Background())
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if saved.BotToken != "123:abc" || saved.ChannelUsername != "@deals" || saved.CronSecret != "s3cret" {
		t.Fatalf("saved = %+v", saved)
	}

	resp, err = srv.app.Test(adminReq(http.MethodGet, "/api/admin/settings", nil))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var body settingsPayload
	decodeBody(t, resp, &body)
	if body.ChannelUsername != "@deals" || !body.IsActive {
		t.Fatalf("body = %+v", body)
	}
}
