package main

import (
	"net/http"
)

// handleGetMessages returns a conversation's full history, oldest first. The
// requester must be one of the conversation's two participants.
func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	claims, _ := getClaimsFromContext(r.Context())

	chatID := r.URL.Query().Get("conversationId")
	if chatID == "" {
		errorJSON(w, http.StatusBadRequest, "conversation ID is required")
		return
	}

	conv, err := s.convs.GetConversation(r.Context(), chatID)
	if err != nil {
		storeError(w, err, "conversation not found")
		return
	}
	if claims.UserID != conv.Owner && claims.UserID != conv.Student {
		errorJSON(w, http.StatusForbidden, "not a participant of this conversation")
		return
	}

	messages, err := s.convs.ListMessages(r.Context(), conv.ID)
	if err != nil {
		storeError(w, err, "conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": messages})
}

// handleMyChats returns the authenticated student's conversations, most
// recently active first.
func (s *Server) handleMyChats(w http.ResponseWriter, r *http.Request) {
	claims, _ := getClaimsFromContext(r.Context())

	convs, err := s.convs.ListForStudent(r.Context(), claims.UserID)
	if err != nil {
		storeError(w, err, "conversations not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": convs})
}
