package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// handleMyLessons returns the authenticated student's assigned lessons joined
// with their completion status.
func (s *Server) handleMyLessons(w http.ResponseWriter, r *http.Request) {
	claims, _ := getClaimsFromContext(r.Context())

	lessons, err := s.lessons.ListForStudent(r.Context(), claims.UserID)
	if err != nil {
		storeError(w, err, "lessons not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": lessons})
}

// handleMarkLessonDone flips the student's status for one lesson to done.
func (s *Server) handleMarkLessonDone(w http.ResponseWriter, r *http.Request) {
	claims, _ := getClaimsFromContext(r.Context())

	lessonID, err := bson.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid lesson id")
		return
	}

	if err := s.lessons.MarkDone(r.Context(), lessonID, claims.UserID); err != nil {
		storeError(w, err, "lesson not assigned to this student")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Lesson marked as done."})
}

// handleEditProfile lets the authenticated student edit their own name and
// email.
func (s *Server) handleEditProfile(w http.ResponseWriter, r *http.Request) {
	claims, _ := getClaimsFromContext(r.Context())

	var req struct {
		Name  string `json:"name"`
		Email string `json:"email" validate:"omitempty,email"`
	}
	if err := readJSON(r, &req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}

	oid, err := bson.ObjectIDFromHex(claims.UserID)
	if err != nil {
		errorJSON(w, http.StatusUnauthorized, "invalid user id in token")
		return
	}

	updated, err := s.users.UpdateProfile(r.Context(), oid, req.Name, req.Email)
	if err != nil {
		storeError(w, err, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": updated})
}
