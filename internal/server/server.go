// Package server exposes the HTTP surface: the cron scrape trigger and the
// admin API used by the management frontend.
package server

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/caparkapa-educatedear/hepsiburada-bot/internal/config"
	"github.com/caparkapa-educatedear/hepsiburada-bot/internal/model"
	"github.com/caparkapa-educatedear/hepsiburada-bot/internal/pipeline"
	"github.com/caparkapa-educatedear/hepsiburada-bot/internal/storage"
)

// Runner is the interface for executing one pipeline run.
type Runner interface {
	RunOnce(ctx context.Context) (pipeline.RunSummary, error)
}

// Server is the HTTP front of the application.
type Server struct {
	app    *fiber.App
	store  storage.Storage
	runner Runner
	cfg    *config.Config
	log    *slog.Logger
}

// New builds the fiber application and its routes.
func New(store storage.Storage, runner Runner, cfg *config.Config, log *slog.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(requestid.New())
	app.Use(logger.New())

	s := &Server{app: app, store: store, runner: runner, cfg: cfg, log: log}

	app.Get("/api/cron/scrape", s.handleScrape)

	admin := app.Group("/api/admin", s.requireAdmin)
	admin.Get("/templates", s.handleListTemplates)
	admin.Post("/templates", s.handleCreateTemplate)
	admin.Post("/templates/:id/activate", s.handleActivateTemplate)
	admin.Post("/templates/:id/deactivate", s.handleDeactivateTemplate)
	admin.Delete("/templates/:id", s.handleDeleteTemplate)
	admin.Get("/settings", s.handleGetSettings)
	admin.Put("/settings", s.handleUpdateSettings)

	return s
}

// Listen serves HTTP on addr, blocking until Shutdown.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

type scrapeResponse struct {
	Success  bool             `json:"success"`
	Scraped  int              `json:"scraped"`
	New      int              `json:"new"`
	Dispatch dispatchResponse `json:"dispatch"`
}

type dispatchResponse struct {
	Attempted int `json:"attempted"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
}

// handleScrape triggers one pipeline run. The request must carry the cron
// secret; nothing runs on a mismatch. The secret stored in settings wins
// over the configured fallback.
func (s *Server) handleScrape(c *fiber.Ctx) error {
	if c.Query("key") != s.cronSecret(c.Context()) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	sum, err := s.runner.RunOnce(c.Context())
	if errors.Is(err, pipeline.ErrRunInProgress) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	return c.JSON(scrapeResponse{
		Success: true,
		Scraped: sum.Scraped,
		New:     sum.New,
		Dispatch: dispatchResponse{
			Attempted: sum.Dispatch.Attempted,
			Sent:      sum.Dispatch.Sent,
			Failed:    sum.Dispatch.Failed,
		},
	})
}

func (s *Server) cronSecret(ctx context.Context) string {
	settings, err := s.store.GetSettings(ctx)
	if err == nil && settings.CronSecret != "" {
		return settings.CronSecret
	}
	return s.cfg.CronSecret
}

// requireAdmin guards the admin API with a bearer token. When no token is
// configured the whole admin surface is disabled.
func (s *Server) requireAdmin(c *fiber.Ctx) error {
	if s.cfg.AdminToken == "" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "admin api disabled"})
	}
	auth := c.Get(fiber.HeaderAuthorization)
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || token != s.cfg.AdminToken {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	return c.Next()
}

type templateResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

func toTemplateResponse(t model.Template) templateResponse {
	return templateResponse{
		ID:        t.ID,
		Name:      t.Name,
		Content:   t.Content,
		IsActive:  t.IsActive,
		CreatedAt: t.CreatedAt,
	}
}

func (s *Server) handleListTemplates(c *fiber.Ctx) error {
	templates, err := s.store.ListTemplates(c.Context())
	if err != nil {
		s.log.Error("list templates", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "storage failure"})
	}
	out := make([]templateResponse, 0, len(templates))
	for _, t := range templates {
		out = append(out, toTemplateResponse(t))
	}
	return c.JSON(out)
}

type createTemplateRequest struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

func (s *Server) handleCreateTemplate(c *fiber.Ctx) error {
	var req createTemplateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Content) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name and content are required"})
	}

	tpl := model.Template{Name: req.Name, Content: req.Content}
	if err := s.store.CreateTemplate(c.Context(), &tpl); err != nil {
		s.log.Error("create template", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "storage failure"})
	}
	return c.Status(fiber.StatusCreated).JSON(toTemplateResponse(tpl))
}

func (s *Server) handleActivateTemplate(c *fiber.Ctx) error {
	err := s.store.ActivateTemplate(c.Context(), c.Params("id"))
	if errors.Is(err, storage.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "template not found"})
	}
	if err != nil {
		s.log.Error("activate template", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "storage failure"})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleDeactivateTemplate(c *fiber.Ctx) error {
	err := s.store.DeactivateTemplate(c.Context(), c.Params("id"))
	if errors.Is(err, storage.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "template not found"})
	}
	if err != nil {
		s.log.Error("deactivate template", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "storage failure"})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleDeleteTemplate(c *fiber.Ctx) error {
	if err := s.store.DeleteTemplate(c.Context(), c.Params("id")); err != nil {
		s.log.Error("delete template", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "storage failure"})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type settingsPayload struct {
	BotToken        string `json:"botToken"`
	ChannelUsername string `json:"channelUsername"`
	IsActive        bool   `json:"isActive"`
	CronSecret      string `json:"cronSecret"`
}

func (s *Server) handleGetSettings(c *fiber.Ctx) error {
	settings, err := s.store.GetSettings(c.Context())
	if errors.Is(err, storage.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "settings not found"})
	}
	if err != nil {
		s.log.Error("get settings", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "storage failure"})
	}
	return c.JSON(settingsPayload{
		BotToken:        settings.BotToken,
		ChannelUsername: settings.ChannelUsername,
		IsActive:        settings.IsActive,
		CronSecret:      settings.CronSecret,
	})
}

func (s *Server) handleUpdateSettings(c *fiber.Ctx) error {
	var req settingsPayload
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	settings := model.Settings{
		BotToken:        req.BotToken,
		ChannelUsername: req.ChannelUsername,
		IsActive:        req.IsActive,
		CronSecret:      req.CronSecret,
	}
	if err := s.store.SaveSettings(c.Context(), &settings); err != nil {
		s.log.Error("save settings", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "storage failure"})
	}
	return c.JSON(req)
}
