package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/omanox-dev/plantgate/pkg/analyzer"
)

type chatRequest struct {
	Prompt    string `json:"prompt"`
	SessionID string `json:"session_id"`
}

// handleChat answers a follow-up question against the session's current
// analysis. Upstream degradation surfaces as a single coherent message, never
// a raw upstream error payload.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	if id := r.Header.Get("X-Session-ID"); id != "" {
		req.SessionID = id
	}

	sess := s.sessions.getOrCreate(req.SessionID)
	reply, err := s.assistant.Ask(r.Context(), sess, req.Prompt)
	if err != nil {
		if analyzer.IsRateLimited(err) || analyzer.IsUnavailable(err) {
			writeError(w, http.StatusServiceUnavailable, "the assistant is temporarily unavailable, please try again later")
		} else {
			writeError(w, http.StatusInternalServerError, "chat failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"sessionId": sess.ID(),
		"response":  reply,
	})
}
