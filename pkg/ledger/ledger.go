// Package ledger maintains the durable usage counters behind the internal
// analytics page: scan/chat/error counts and token consumption, kept both for
// the current process (session) and cumulatively across restarts (all-time).
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/omanox-dev/plantgate/pkg/diagnosis"
)

// Counts is one view of the aggregate counters. The JSON keys match the
// original usage_stats.json document.
type Counts struct {
	Scans         int `json:"predictions"`
	Primary       int `json:"ml_predictions"`
	Takeovers     int `json:"ai_takeovers"`
	ChatMessages  int `json:"chat_messages"`
	TotalRequests int `json:"total_requests"`
	Errors        int `json:"errors"`
	TokensInput   int `json:"tokens_input"`
	TokensOutput  int `json:"tokens_output"`
	TokensTotal   int `json:"tokens_used"`
}

// FallbackRate returns the share of scans that were taken over, in [0,1].
func (c Counts) FallbackRate() float64 {
	if c.Scans == 0 {
		return 0
	}
	return float64(c.Takeovers) / float64(c.Scans)
}

// State is the whole persisted document: session view plus all-time view.
// Only the all-time view survives a restart; the session view resets at
// process start.
type State struct {
	Session          Counts    `json:"session"`
	AllTime          Counts    `json:"total_lifetime"`
	SessionStartedAt time.Time `json:"session_started_at"`
	AllTimeStartedAt time.Time `json:"all_time_started_at"`
}

// Ledger serializes counter mutations and flushes the state to disk after
// every mutation. A failed flush is retried once; after that the in-memory
// state stays authoritative and the failure is only logged, so usage tracking
// never fails a user-facing request.
type Ledger struct {
	mu    sync.Mutex
	path  string
	state State
}

// Open loads the ledger from path. A missing or corrupt file yields a
// zero-initialized all-time view; corruption is logged, not fatal.
func Open(path string) (*Ledger, error) {
	if path == "" {
		return nil, fmt.Errorf("ledger path is required")
	}

	l := &Ledger{path: path}
	now := time.Now().UTC()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// first run
	case err != nil:
		log.Printf("ledger: could not read %s, starting fresh: %v", path, err)
	default:
		var saved State
		if jerr := json.Unmarshal(data, &saved); jerr != nil {
			log.Printf("ledger: %s is corrupt, starting fresh: %v", path, jerr)
		} else {
			l.state.AllTime = saved.AllTime
			l.state.AllTimeStartedAt = saved.AllTimeStartedAt
		}
	}

	l.state.SessionStartedAt = now
	if l.state.AllTimeStartedAt.IsZero() {
		l.state.AllTimeStartedAt = now
	}
	return l, nil
}

// RecordScan counts one completed analysis against the chosen source and adds
// any token usage the fallback reported.
func (l *Ledger) RecordScan(source diagnosis.Source, usage diagnosis.Usage) {
	l.mu.Lock()
	defer l.mu.Unlock()

	usage = usage.Normalize()
	for _, c := range l.views() {
		c.TotalRequests++
		c.Scans++
		if source == diagnosis.SourceFallback {
			c.Takeovers++
		} else {
			c.Primary++
		}
		c.addTokens(usage)
	}
	l.flushLocked()
}

// RecordChatMessage counts one completed chat exchange.
func (l *Ledger) RecordChatMessage(usage diagnosis.Usage) {
	l.mu.Lock()
	defer l.mu.Unlock()

	usage = usage.Normalize()
	for _, c := range l.views() {
		c.TotalRequests++
		c.ChatMessages++
		c.addTokens(usage)
	}
	l.flushLocked()
}

// RecordError counts one terminal failure.
func (l *Ledger) RecordError() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, c := range l.views() {
		c.Errors++
	}
	l.flushLocked()
}

// Snapshot returns a copy of the latest committed state.
func (l *Ledger) Snapshot() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Close performs a final flush.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writeLocked()
}

func (l *Ledger) views() [2]*Counts {
	return [2]*Counts{&l.state.Session, &l.state.AllTime}
}

func (c *Counts) addTokens(u diagnosis.Usage) {
	c.TokensInput += u.InputTokens
	c.TokensOutput += u.OutputTokens
	c.TokensTotal += u.TotalTokens
}

// flushLocked writes the state, retrying once. Callers hold l.mu.
func (l *Ledger) flushLocked() {
	if err := l.writeLocked(); err != nil {
		if err = l.writeLocked(); err != nil {
			log.Printf("ledger: flush to %s failed, in-memory state remains authoritative: %v", l.path, err)
		}
	}
}

// writeLocked persists the whole document atomically: write to a temp file in
// the same directory, then rename over the target so a crash mid-write never
// leaves a partial file.
func (l *Ledger) writeLocked() error {
	data, err := json.MarshalIndent(l.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ledger state: %w", err)
	}

	dir := filepath.Dir(l.path)
	tmp, err := os.CreateTemp(dir, ".usage_stats-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp ledger file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write ledger state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp ledger file: %w", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace ledger file: %w", err)
	}
	return nil
}
