package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/plastinin/docconverter/internal/adapter/http/handler"
	httpmiddleware "github.com/plastinin/docconverter/internal/adapter/http/middleware"
	"go.uber.org/zap"
)

// NewRouter создаёт и настраивает HTTP роутер
func NewRouter(
	taskHandler *handler.TaskHandler,
	queueHandler *handler.QueueHandler,
	eventsHandler *handler.EventsHandler,
	healthHandler *handler.HealthHandler,
	logger *zap.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httpmiddleware.NewLoggingMiddleware(logger))
	r.Use(middleware.Recoverer)

	// Health check (вне версионирования API)
	r.Get("/health", healthHandler.Check)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Поток событий без сжатия
		r.Get("/events", eventsHandler.Stream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Compress(5))

			// Локальная очередь
			r.Route("/tasks", func(r chi.Router) {
				r.Post("/", taskHandler.Create)
				r.Get("/", queueHandler.List)
				r.Delete("/", queueHandler.Clear)
				r.Post("/run", queueHandler.RunAll)
				r.Get("/{id}", taskHandler.GetByID)
				r.Delete("/{id}", queueHandler.Delete)
				r.Post("/{id}/run", queueHandler.Run)
				r.Post("/{id}/rearm", queueHandler.Rearm)
			})

			// Удалённая очередь воркера
			r.Post("/jobs", taskHandler.Submit)
			r.Get("/jobs/{id}", taskHandler.GetByID)

			r.Get("/history", taskHandler.History)
		})
	})

	return r
}
