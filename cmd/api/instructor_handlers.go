package main

import (
	"errors"
	"log"
	"net/http"

	"classroom/internal/data"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// handleAddStudent enrolls a new student: creates the user record, adds it to
// the instructor's default classroom, creates the (instructor, student)
// conversation the messaging path will rely on, and emails an invitation
// code.
func (s *Server) handleAddStudent(w http.ResponseWriter, r *http.Request) {
	claims, ok := getClaimsFromContext(r.Context())
	if !ok {
		errorJSON(w, http.StatusUnauthorized, "missing auth claims")
		return
	}

	var req struct {
		Name  string `json:"name" validate:"required"`
		Phone string `json:"phone" validate:"required"`
		Email string `json:"email" validate:"required,email"`
	}
	if err := readJSON(r, &req); err != nil {
		errorJSON(w, http.StatusBadRequest, "phone number, name and email are required")
		return
	}

	student, err := s.users.CreateStudent(r.Context(), req.Name, req.Phone, req.Email)
	if err != nil {
		if errors.Is(err, data.ErrAlreadyExists) {
			errorJSON(w, http.StatusConflict, "user already exists with this phone or email")
			return
		}
		storeError(w, err, "user not found")
		return
	}

	if _, err := s.classrooms.AddStudent(r.Context(), claims.UserID, student.ID.Hex()); err != nil {
		storeError(w, err, "classroom not found")
		return
	}

	// The messaging path never auto-creates conversations; the pair's unique
	// conversation is born here, at enrollment.
	if _, err := s.convs.CreateConversation(r.Context(), claims.UserID, student.ID.Hex()); err != nil {
		storeError(w, err, "conversation not found")
		return
	}

	// Invitation code so the student can complete account setup. A failed
	// email does not undo the enrollment; the code can be re-requested.
	code, err := generateAccessCode()
	if err == nil {
		if _, err := s.users.SetAccessCodeByEmail(r.Context(), student.Email, code); err == nil {
			err = s.email.SendEmail(r.Context(), student.Email,
				"You have been invited to a classroom",
				"Your access code is: "+code)
		}
	}
	if err != nil {
		log.Printf("send invitation to %s: %v", student.Email, err)
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Student added successfully.",
		"student": student,
	})
}

// handleListStudents returns the members of the instructor's classroom.
func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	claims, _ := getClaimsFromContext(r.Context())

	room, err := s.classrooms.GetByOwner(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			// No classroom yet means no students yet.
			writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": []*data.User{}})
			return
		}
		storeError(w, err, "classroom not found")
		return
	}

	students, err := s.users.ListByIDs(r.Context(), room.Students)
	if err != nil {
		storeError(w, err, "students not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": students})
}

// handleGetStudent returns one student record by id.
func (s *Server) handleGetStudent(w http.ResponseWriter, r *http.Request) {
	student, ok := s.studentFromPath(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": student})
}

// handleEditStudent updates a student's name and/or email.
func (s *Server) handleEditStudent(w http.ResponseWriter, r *http.Request) {
	student, ok := s.studentFromPath(w, r)
	if !ok {
		return
	}

	var req struct {
		Name  string `json:"name"`
		Email string `json:"email" validate:"omitempty,email"`
	}
	if err := readJSON(r, &req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := s.users.UpdateProfile(r.Context(), student.ID, req.Name, req.Email)
	if err != nil {
		storeError(w, err, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": updated})
}

// handleDeleteStudent removes a student record and its classroom memberships.
func (s *Server) handleDeleteStudent(w http.ResponseWriter, r *http.Request) {
	student, ok := s.studentFromPath(w, r)
	if !ok {
		return
	}

	if err := s.users.Delete(r.Context(), student.ID); err != nil {
		storeError(w, err, "user not found")
		return
	}
	if err := s.classrooms.RemoveStudent(r.Context(), student.ID.Hex()); err != nil {
		log.Printf("remove student %s from classrooms: %v", student.ID.Hex(), err)
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Student deleted successfully."})
}

// handleAssignLesson creates a lesson and assigns it to students.
func (s *Server) handleAssignLesson(w http.ResponseWriter, r *http.Request) {
	claims, _ := getClaimsFromContext(r.Context())

	var req struct {
		Title       string   `json:"title" validate:"required"`
		Description string   `json:"description"`
		StudentIDs  []string `json:"studentIds" validate:"required,min=1"`
	}
	if err := readJSON(r, &req); err != nil {
		errorJSON(w, http.StatusBadRequest, "title and at least one student are required")
		return
	}

	lesson, err := s.lessons.CreateLesson(r.Context(), claims.UserID, req.Title, req.Description, req.StudentIDs)
	if err != nil {
		storeError(w, err, "lesson not found")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"status": "success", "data": lesson})
}

// handleListLessons returns the instructor's lessons, newest first.
func (s *Server) handleListLessons(w http.ResponseWriter, r *http.Request) {
	claims, _ := getClaimsFromContext(r.Context())

	lessons, err := s.lessons.ListByOwner(r.Context(), claims.UserID)
	if err != nil {
		storeError(w, err, "lessons not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": lessons})
}

// handleListChats returns the instructor's conversations, most recently
// active first.
func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	claims, _ := getClaimsFromContext(r.Context())

	convs, err := s.convs.ListByOwner(r.Context(), claims.UserID)
	if err != nil {
		storeError(w, err, "conversations not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": convs})
}

// studentFromPath resolves the {id} path parameter to an existing student
// record, writing the error response itself on failure.
func (s *Server) studentFromPath(w http.ResponseWriter, r *http.Request) (*data.User, bool) {
	oid, err := bson.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid student id")
		return nil, false
	}

	user, err := s.users.GetByID(r.Context(), oid)
	if err != nil {
		storeError(w, err, "student not found")
		return nil, false
	}
	if user.Role != data.RoleStudent {
		errorJSON(w, http.StatusNotFound, "student not found")
		return nil, false
	}
	return user, true
}
