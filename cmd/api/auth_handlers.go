package main

import (
	"errors"
	"log"
	"net/http"
	"time"

	"classroom/internal/auth"
	"classroom/internal/data"
	"classroom/internal/normalize"
)

// handleCreateAccessCode issues a one-time code for a phone number and texts
// it out. Unknown numbers get a fresh instructor record; known numbers just
// get a new code.
func (s *Server) handleCreateAccessCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone string `json:"phone" validate:"required"`
	}
	if err := readJSON(r, &req); err != nil {
		errorJSON(w, http.StatusBadRequest, "phone number is required")
		return
	}
	phone := normalize.Phone(req.Phone)

	// Account-scoped limit on top of the per-IP middleware limit.
	if !s.limiter.Allow("phone:" + phone) {
		errorJSON(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	code, err := generateAccessCode()
	if err != nil {
		log.Printf("generate access code: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}

	if _, err := s.users.UpsertAccessCodeByPhone(r.Context(), phone, code); err != nil {
		storeError(w, err, "user not found")
		return
	}

	if err := s.sms.SendSMS(r.Context(), phone, "Your access code is: "+code); err != nil {
		log.Printf("send access code sms to %s: %v", phone, err)
		errorJSON(w, http.StatusInternalServerError, "failed to send access code")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Access code sent successfully."})
}

// handleEmailAccessCode issues a one-time code for an enrolled student's
// email address. Never creates a record.
func (s *Server) handleEmailAccessCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email" validate:"required,email"`
	}
	if err := readJSON(r, &req); err != nil {
		errorJSON(w, http.StatusBadRequest, "a valid email is required")
		return
	}
	email := normalize.Email(req.Email)

	if !s.limiter.Allow("email:" + email) {
		errorJSON(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	code, err := generateAccessCode()
	if err != nil {
		log.Printf("generate access code: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}

	if _, err := s.users.SetAccessCodeByEmail(r.Context(), email, code); err != nil {
		storeError(w, err, "user not found")
		return
	}

	if err := s.email.SendEmail(r.Context(), email, "Your access code", "Your access code is: "+code); err != nil {
		log.Printf("send access code email to %s: %v", email, err)
		errorJSON(w, http.StatusInternalServerError, "failed to send access code")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Access code sent successfully."})
}

// handleValidateAccessCode consumes a one-time code and issues a session
// token. The account may be identified by phone or email.
func (s *Server) handleValidateAccessCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone      string `json:"phone"`
		Email      string `json:"email"`
		AccessCode string `json:"accessCode" validate:"required"`
	}
	if err := readJSON(r, &req); err != nil || (req.Phone == "" && req.Email == "") {
		errorJSON(w, http.StatusBadRequest, "phone or email and access code are required")
		return
	}

	var (
		user *data.User
		err  error
	)
	if req.Phone != "" {
		user, err = s.users.GetByPhone(r.Context(), req.Phone)
	} else {
		user, err = s.users.GetByEmail(r.Context(), req.Email)
	}
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			errorJSON(w, http.StatusNotFound, "user not found")
			return
		}
		storeError(w, err, "user not found")
		return
	}

	if user.AccessCode == "" || user.AccessCode != req.AccessCode {
		errorJSON(w, http.StatusUnauthorized, "invalid access code")
		return
	}
	if time.Since(user.CodeIssuedAt) > accessCodeTTL {
		errorJSON(w, http.StatusUnauthorized, "access code expired")
		return
	}

	// One-time: the code is gone after a successful validation.
	if err := s.users.ClearAccessCode(r.Context(), user.ID); err != nil {
		storeError(w, err, "user not found")
		return
	}

	s.issueToken(w, user, "Access code validated successfully")
}

// handleLogin authenticates a student by email and password. Only students
// who completed account setup have a password hash.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}
	if err := readJSON(r, &req); err != nil {
		errorJSON(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := s.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			errorJSON(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		storeError(w, err, "user not found")
		return
	}

	if user.PasswordHash == "" || auth.CheckPassword(user.PasswordHash, req.Password) != nil {
		errorJSON(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	s.issueToken(w, user, "Logged in successfully")
}

// handleSetupAccount finishes a student's onboarding: the emailed invitation
// code unlocks setting a display name and a password.
func (s *Server) handleSetupAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email      string `json:"email" validate:"required,email"`
		AccessCode string `json:"accessCode" validate:"required"`
		Name       string `json:"name" validate:"required"`
		Password   string `json:"password" validate:"required,min=8"`
	}
	if err := readJSON(r, &req); err != nil {
		errorJSON(w, http.StatusBadRequest, "email, access code, name and password are required")
		return
	}

	user, err := s.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		storeError(w, err, "user not found")
		return
	}
	if user.Role != data.RoleStudent {
		errorJSON(w, http.StatusForbidden, "account setup is for students")
		return
	}
	if user.AccessCode == "" || user.AccessCode != req.AccessCode {
		errorJSON(w, http.StatusUnauthorized, "invalid access code")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Printf("hash password: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := s.users.SetPassword(r.Context(), user.ID, hash); err != nil {
		storeError(w, err, "user not found")
		return
	}
	if _, err := s.users.UpdateProfile(r.Context(), user.ID, req.Name, ""); err != nil {
		storeError(w, err, "user not found")
		return
	}
	if err := s.users.ClearAccessCode(r.Context(), user.ID); err != nil {
		storeError(w, err, "user not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Account setup completed."})
}

// issueToken signs a session token for the user and writes the login
// response.
func (s *Server) issueToken(w http.ResponseWriter, user *data.User, message string) {
	token, expiresAt, err := s.auth.GenerateToken(user.ID.Hex(), user.Phone, user.Role)
	if err != nil {
		log.Printf("generate token: %v", err)
		errorJSON(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":   message,
		"token":     token,
		"userId":    user.ID.Hex(),
		"role":      user.Role,
		"expiresAt": expiresAt,
	})
}
