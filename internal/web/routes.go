package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	recognitionHandler := handlers.NewRecognitionHandler(s.service)
	sessionsHandler := handlers.NewSessionsHandler(s.ledger, s.service)
	studentsHandler := handlers.NewStudentsHandler(s.service)

	// Health check
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		// Recognition
		r.Post("/recognize", recognitionHandler.Recognize)
		r.Post("/descriptors/reload", recognitionHandler.ReloadDescriptors)

		// Attendance sessions
		r.Post("/sessions", sessionsHandler.Start)
		r.Get("/sessions/{id}", sessionsHandler.Get)
		r.Post("/sessions/{id}/end", sessionsHandler.End)
		r.Post("/sessions/{id}/attendance", sessionsHandler.Mark)

		// Students
		r.Post("/students", studentsHandler.Register)
		r.Post("/students/{id}/descriptors", studentsHandler.EnrollDescriptor)
	})
}
