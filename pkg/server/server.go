// Package server exposes the diagnosis service over HTTP: image analysis,
// follow-up chat, label vocabularies, and the internal usage statistics page.
package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/omanox-dev/plantgate/pkg/arbiter"
	"github.com/omanox-dev/plantgate/pkg/chat"
	"github.com/omanox-dev/plantgate/pkg/ledger"
)

// Server is the main HTTP server for the plantgate API.
type Server struct {
	arb       *arbiter.Arbiter
	assistant *chat.Assistant
	ledger    *ledger.Ledger

	species      []string
	diseases     []string
	analyzerName string

	sessions sessionRegistry
	mux      *http.ServeMux
}

// New creates a new Server with all routes registered. analyzerName is empty
// when no takeover backend is configured.
func New(arb *arbiter.Arbiter, assistant *chat.Assistant, l *ledger.Ledger, species, diseases []string, analyzerName string) *Server {
	s := &Server{
		arb:          arb,
		assistant:    assistant,
		ledger:       l,
		species:      species,
		diseases:     diseases,
		analyzerName: analyzerName,
		sessions:     sessionRegistry{m: make(map[string]*chat.Session)},
		mux:          http.NewServeMux(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// routes registers all HTTP routes on the server mux.
func (s *Server) routes() {
	s.mux.HandleFunc("GET /", s.handleRoot)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /labels", s.handleLabels)

	s.mux.HandleFunc("POST /predict", s.handlePredict)
	s.mux.HandleFunc("POST /chat", s.handleChat)

	// Internal analytics, not linked from anywhere.
	s.mux.HandleFunc("GET /internal/stats", s.handleStats)
	s.mux.HandleFunc("GET /internal/stats/dashboard", s.handleStatsDashboard)
}

// handleRoot returns service information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"service":            "Plant Disease Detection API",
		"status":             "running",
		"species_labels":     len(s.species),
		"disease_labels":     len(s.diseases),
		"takeover_available": s.analyzerName != "",
		"analyzer":           s.analyzerName,
		"threshold":          s.arb.Threshold(),
	})
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":             "healthy",
		"species_labels":     len(s.species),
		"disease_labels":     len(s.diseases),
		"takeover_available": s.analyzerName != "",
	})
}

// handleLabels returns the classifier's label vocabularies.
func (s *Server) handleLabels(w http.ResponseWriter, r *http.Request) {
	species := s.species
	if species == nil {
		species = []string{}
	}
	diseases := s.diseases
	if diseases == nil {
		diseases = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{
		"species":  species,
		"diseases": diseases,
	})
}

// sessionRegistry hands out per-session conversation contexts.
type sessionRegistry struct {
	mu sync.Mutex
	m  map[string]*chat.Session
}

// getOrCreate returns the session for id, creating it (and an id) as needed.
func (r *sessionRegistry) getOrCreate(id string) *chat.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id == "" {
		id = uuid.NewString()
	}
	sess, ok := r.m[id]
	if !ok {
		sess = chat.NewSession(id)
		r.m[id] = sess
	}
	return sess
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func uptime(since time.Time) string {
	return time.Since(since).Round(time.Second).String()
}
