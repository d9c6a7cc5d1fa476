package server

import (
	"fmt"
	"net/http"

	"github.com/omanox-dev/plantgate/pkg/ledger"
)

type statsView struct {
	ledger.Counts
	FallbackRate float64 `json:"fallback_rate"`
}

// handleStats exposes the ledger snapshot plus derived ratios.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap := s.ledger.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"session": statsView{
			Counts:       snap.Session,
			FallbackRate: snap.Session.FallbackRate(),
		},
		"all_time": statsView{
			Counts:       snap.AllTime,
			FallbackRate: snap.AllTime.FallbackRate(),
		},
		"session_started_at":  snap.SessionStartedAt,
		"all_time_started_at": snap.AllTimeStartedAt,
		"uptime":              uptime(snap.SessionStartedAt),
	})
}

// handleStatsDashboard renders the snapshot as a small self-refreshing HTML
// page for the internal analytics view.
func (s *Server) handleStatsDashboard(w http.ResponseWriter, r *http.Request) {
	snap := s.ledger.Snapshot()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, `<!DOCTYPE html><html><head><title>Plantgate Stats</title><meta http-equiv="refresh" content="5"><style>body{font-family:sans-serif;margin:2em}table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:6px 12px;text-align:right}th:first-child,td:first-child{text-align:left}</style></head><body>`)
	fmt.Fprintf(w, "<h1>Usage statistics</h1><p>Uptime: %s</p>", uptime(snap.SessionStartedAt))
	fmt.Fprint(w, "<table><tr><th></th><th>Session</th><th>All time</th></tr>")

	rows := []struct {
		name    string
		session int
		allTime int
	}{
		{"Scans", snap.Session.Scans, snap.AllTime.Scans},
		{"Primary accepted", snap.Session.Primary, snap.AllTime.Primary},
		{"AI takeovers", snap.Session.Takeovers, snap.AllTime.Takeovers},
		{"Chat messages", snap.Session.ChatMessages, snap.AllTime.ChatMessages},
		{"Total requests", snap.Session.TotalRequests, snap.AllTime.TotalRequests},
		{"Errors", snap.Session.Errors, snap.AllTime.Errors},
		{"Tokens in", snap.Session.TokensInput, snap.AllTime.TokensInput},
		{"Tokens out", snap.Session.TokensOutput, snap.AllTime.TokensOutput},
		{"Tokens total", snap.Session.TokensTotal, snap.AllTime.TokensTotal},
	}
	for _, row := range rows {
		fmt.Fprintf(w, "<tr><td>%s</td><td>%d</td><td>%d</td></tr>", row.name, row.session, row.allTime)
	}
	fmt.Fprint(w, "</table>")
	fmt.Fprintf(w, "<p>Fallback rate: %.1f%% session, %.1f%% all time</p>",
		snap.Session.FallbackRate()*100, snap.AllTime.FallbackRate()*100)
	fmt.Fprint(w, "</body></html>")
}
