package api

import (
	"time"

	"github.com/gmsas95/recovery-tracker/internal/config"
	"github.com/gmsas95/recovery-tracker/internal/metrics"
	"github.com/gmsas95/recovery-tracker/internal/recovery"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Server struct {
	app     *fiber.App
	config  *config.Config
	tracker *recovery.Tracker
	catalog recovery.Catalog
	metrics *metrics.Metrics
	limiter *subjectLimiter
	logger  *zap.Logger
	version string
}

func New(cfg *config.Config, tracker *recovery.Tracker, catalog recovery.Catalog, m *metrics.Metrics, logger *zap.Logger) *Server {
	if m == nil {
		m = metrics.Default()
	}

	s := &Server{
		config:  cfg,
		tracker: tracker,
		catalog: catalog,
		metrics: m,
		limiter: newSubjectLimiter(cfg.Security.RateLimitRPS, cfg.Security.RateLimitBurst),
		logger:  logger,
		version: "dev",
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "recovery-tracker",
		ReadTimeout:           time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:          time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:           120 * time.Second,
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})

	s.setupRoutes()
	return s
}

// WithVersion sets the version reported by the health endpoint
func (s *Server) WithVersion(v string) *Server {
	if v != "" {
		s.version = v
	}
	return s
}

// App exposes the fiber app, mainly for app.Test in tests
func (s *Server) App() *fiber.App {
	return s.app
}

// Request and response bodies

type enrollRequest struct {
	SurgeryType string `json:"surgery_type"`
	StartDate   string `json:"start_date"`
}

type updateEnrollmentRequest struct {
	SurgeryType *string `json:"surgery_type"`
	StartDate   *string `json:"start_date"`
}

type completionRequest struct {
	IsCompleted *bool   `json:"is_completed"`
	Notes       *string `json:"notes"`
}

type taskView struct {
	ID                       string            `json:"id"`
	DayNumber                int               `json:"day_number"`
	Sequence                 int               `json:"sequence"`
	TemplateKey              string            `json:"template_key"`
	Title                    string            `json:"title"`
	Description              string            `json:"description,omitempty"`
	Category                 recovery.Category `json:"category"`
	EstimatedDurationMinutes int               `json:"estimated_duration_minutes"`
	DifficultyLevel          int               `json:"difficulty_level"`
	IsCompleted              bool              `json:"is_completed"`
	Notes                    *string           `json:"notes,omitempty"`
	CompletedAt              *time.Time        `json:"completed_at,omitempty"`
}

type dailyTasksResponse struct {
	Tasks []taskView               `json:"tasks"`
	Stats recovery.CompletionStats `json:"stats"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func newTaskView(t recovery.DailyTask) taskView {
	v := taskView{
		ID:                       t.Task.ID,
		DayNumber:                t.Task.DayNumber,
		Sequence:                 t.Task.Sequence,
		TemplateKey:              t.Task.TemplateKey,
		Title:                    t.Task.Title,
		Description:              t.Task.Description,
		Category:                 t.Task.Category,
		EstimatedDurationMinutes: t.Task.EstimatedDurationMinutes,
		DifficultyLevel:          t.Task.DifficultyLevel,
	}
	if t.Completion != nil {
		v.IsCompleted = t.Completion.IsCompleted
		v.Notes = t.Completion.Notes
		v.CompletedAt = t.Completion.CompletedAt
	}
	return v
}
