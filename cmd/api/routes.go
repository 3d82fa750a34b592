package main

import (
	"net/http"

	"classroom/internal/data"
	"classroom/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// routes assembles the HTTP surface. The websocket gateway is mounted
// outside the bearer-token group: it authenticates at upgrade time itself
// because browsers cannot set headers on websocket dials.
func (s *Server) routes(gateway http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	r.Route("/auth", func(r chi.Router) {
		// Code issuance is the abuse magnet; it gets the per-IP limit.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(s.limiter))
			r.Post("/access-code", s.handleCreateAccessCode)
			r.Post("/access-code/email", s.handleEmailAccessCode)
		})
		r.Post("/validate", s.handleValidateAccessCode)
		r.Post("/login", s.handleLogin)
		r.Post("/setup", s.handleSetupAccount)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Route("/instructor", func(r chi.Router) {
			r.Use(s.requireRole(data.RoleInstructor))
			r.Post("/students", s.handleAddStudent)
			r.Get("/students", s.handleListStudents)
			r.Get("/students/{id}", s.handleGetStudent)
			r.Put("/students/{id}", s.handleEditStudent)
			r.Delete("/students/{id}", s.handleDeleteStudent)
			r.Post("/lessons", s.handleAssignLesson)
			r.Get("/lessons", s.handleListLessons)
			r.Get("/chats", s.handleListChats)
		})

		r.Route("/student", func(r chi.Router) {
			r.Use(s.requireRole(data.RoleStudent))
			r.Get("/lessons", s.handleMyLessons)
			r.Put("/lessons/{id}", s.handleMarkLessonDone)
			r.Put("/profile", s.handleEditProfile)
			r.Get("/chats", s.handleMyChats)
		})

		r.Get("/chat/messages", s.handleGetMessages)
	})

	r.Get("/ws", gateway.ServeHTTP)

	return r
}
