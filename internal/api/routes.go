package api

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func (s *Server) setupRoutes() {
	s.app.Use(recover.New())
	if s.config.Log.Development {
		s.app.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
		}))
	}
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(s.config.Security.AllowOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, PATCH, OPTIONS",
	}))
	s.app.Use(s.metricsMiddleware())

	s.app.Get("/api/health", s.handleHealth)
	s.app.Get("/metrics", adaptor.HTTPHandler(s.metrics.Handler()))

	api := s.app.Group("/api")

	api.Get("/catalog/:surgeryType/days/:day", s.handleCatalogDay)

	protected := api.Group("/recovery", s.authMiddleware(), s.rateLimitMiddleware())

	protected.Post("/enrollment", s.handleEnroll)
	protected.Patch("/enrollment", s.handleUpdateEnrollment)
	protected.Get("/enrollment", s.handleOverview)

	protected.Get("/tasks", s.handleDailyTasks)
	protected.Put("/tasks/:id/completion", s.handleCompleteTask)

	protected.Get("/stats/today", s.handleTodayStats)
}

// Listen serves on an existing listener
func (s *Server) Listen(ln net.Listener) error {
	return s.app.Listener(ln)
}

func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.app.ShutdownWithContext(ctx)
}
