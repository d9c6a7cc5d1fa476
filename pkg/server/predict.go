package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/omanox-dev/plantgate/pkg/arbiter"
)

// maxUploadBytes bounds the accepted image payload.
const maxUploadBytes = 10 << 20

// handlePredict accepts a multipart image upload, runs the arbitration, and
// installs the outcome as the session's current analysis.
func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "expected multipart form with an image file")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	img, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read upload")
		return
	}

	outcome, err := s.arb.Analyze(r.Context(), img)
	if err != nil {
		switch {
		case errors.Is(err, arbiter.ErrInvalidImage):
			writeError(w, http.StatusBadRequest, "invalid image: payload could not be decoded")
		case errors.Is(err, arbiter.ErrAnalysisUnavailable):
			writeError(w, http.StatusServiceUnavailable, "analysis is temporarily unavailable, please try again later")
		default:
			writeError(w, http.StatusInternalServerError, "analysis failed")
		}
		return
	}

	sess := s.sessions.getOrCreate(sessionID(r))
	sess.SetAnalysis(outcome)

	writeJSON(w, http.StatusOK, map[string]any{
		"sessionId": sess.ID(),
		"source":    outcome.Source,
		"analysis":  outcome.Report,
	})
}

// sessionID extracts the caller's session identifier, if any.
func sessionID(r *http.Request) string {
	if id := r.Header.Get("X-Session-ID"); id != "" {
		return id
	}
	return r.FormValue("session_id")
}
