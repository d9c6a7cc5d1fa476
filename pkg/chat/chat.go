// Package chat answers follow-up questions grounded in the most recent
// analysis. Each session owns exactly one "current analysis"; a new analysis
// evicts the old one outright.
package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/omanox-dev/plantgate/pkg/analyzer"
	"github.com/omanox-dev/plantgate/pkg/diagnosis"
	"github.com/omanox-dev/plantgate/pkg/ledger"
)

// Session holds the conversation context for one user session. The current
// analysis reference is last-write-wins; readers never observe a torn value.
type Session struct {
	id string

	mu      sync.Mutex
	current *diagnosis.Outcome
}

// NewSession creates an empty session.
func NewSession(id string) *Session {
	return &Session{id: id}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// SetAnalysis installs a new current analysis, replacing any prior one.
func (s *Session) SetAnalysis(o *diagnosis.Outcome) {
	s.mu.Lock()
	s.current = o
	s.mu.Unlock()
}

// Current returns the session's current analysis, or nil.
func (s *Session) Current() *diagnosis.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Assistant builds prompts from the session's current analysis and delegates
// to the analyzer's chat mode.
type Assistant struct {
	analyzer analyzer.Analyzer
	ledger   *ledger.Ledger
}

// NewAssistant creates an Assistant.
func NewAssistant(a analyzer.Analyzer, l *ledger.Ledger) *Assistant {
	return &Assistant{analyzer: a, ledger: l}
}

// Ask answers a question relative to the session's current analysis, if any.
// The chat message is recorded in the ledger only on success; upstream
// degradation is returned to the caller to surface as a user-visible message.
func (a *Assistant) Ask(ctx context.Context, sess *Session, question string) (string, error) {
	if a.analyzer == nil {
		return "", &analyzer.UpstreamError{Err: fmt.Errorf("no analyzer configured")}
	}

	prompt := BuildPrompt(sess.Current(), question)
	reply, usage, err := a.analyzer.Chat(ctx, prompt)
	if err != nil {
		return "", err
	}

	a.ledger.RecordChatMessage(usage)
	return reply, nil
}

// BuildPrompt embeds the current analysis's structured fields when present,
// else falls back to the generic plant-care framing. Only the one current
// analysis ever appears; prior analyses are never blended in.
func BuildPrompt(current *diagnosis.Outcome, question string) string {
	var sb strings.Builder
	sb.WriteString(analyzer.ChatSystemPrompt)
	sb.WriteString("\n\n")

	if current != nil && current.Report != nil {
		rep := current.Report
		sb.WriteString("The user's plant was just analyzed. Current analysis:\n")
		fmt.Fprintf(&sb, "- Plant: %s\n", rep.PlantName)
		if rep.DiseaseDetected {
			fmt.Fprintf(&sb, "- Disease detected: %s\n", rep.DiseaseName)
			fmt.Fprintf(&sb, "- Severity: %s\n", rep.Severity)
		} else {
			sb.WriteString("- Disease detected: none, plant appears healthy\n")
		}
		fmt.Fprintf(&sb, "- Health score: %d/100\n", rep.HealthScore)
		if len(rep.Symptoms) > 0 {
			fmt.Fprintf(&sb, "- Symptoms: %s\n", strings.Join(rep.Symptoms, "; "))
		}
		if len(rep.Recommendations) > 0 {
			fmt.Fprintf(&sb, "- Recommendations so far: %s\n", strings.Join(rep.Recommendations, "; "))
		}
		sb.WriteString("\nAnswer the user's question in the context of this analysis.\n\n")
	}

	sb.WriteString("User question: ")
	sb.WriteString(question)
	return sb.String()
}
