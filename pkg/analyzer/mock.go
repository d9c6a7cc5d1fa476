package analyzer

import (
	"context"
	"sync"

	"github.com/omanox-dev/plantgate/pkg/diagnosis"
)

// Mock returns deterministic responses for local runs and tests. Safe for
// concurrent use.
type Mock struct {
	Report *diagnosis.Report
	Reply  string
	Usage  diagnosis.Usage

	AnalyzeErr error
	ChatErr    error

	mu           sync.Mutex
	analyzeCalls int
	chatCalls    int
	lastHint     Hint
	lastPrompt   string
}

// NewMock creates a mock analyzer with a healthy default report.
func NewMock() *Mock {
	return &Mock{
		Report: &diagnosis.Report{
			PlantName:       "Mock Plant",
			Confidence:      90,
			Severity:        diagnosis.SeverityLow,
			Symptoms:        []string{},
			Recommendations: []string{"Plant appears healthy"},
			HealthScore:     90,
		},
		Reply: "mock reply",
	}
}

// Name returns the analyzer identifier.
func (m *Mock) Name() string {
	return "mock"
}

// Analyze returns the configured report and usage.
func (m *Mock) Analyze(_ context.Context, _ []byte, _ string, hint Hint) (*diagnosis.Report, diagnosis.Usage, error) {
	m.mu.Lock()
	m.analyzeCalls++
	m.lastHint = hint
	m.mu.Unlock()
	if m.AnalyzeErr != nil {
		return nil, diagnosis.Usage{}, m.AnalyzeErr
	}
	return m.Report, m.Usage.Normalize(), nil
}

// Chat returns the configured reply and usage.
func (m *Mock) Chat(_ context.Context, prompt string) (string, diagnosis.Usage, error) {
	m.mu.Lock()
	m.chatCalls++
	m.lastPrompt = prompt
	m.mu.Unlock()
	if m.ChatErr != nil {
		return "", diagnosis.Usage{}, m.ChatErr
	}
	return m.Reply, m.Usage.Normalize(), nil
}

// AnalyzeCalls reports how many times Analyze has run.
func (m *Mock) AnalyzeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.analyzeCalls
}

// ChatCalls reports how many times Chat has run.
func (m *Mock) ChatCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chatCalls
}

// LastHint returns the hint passed to the most recent Analyze call.
func (m *Mock) LastHint() Hint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastHint
}

// LastPrompt returns the prompt passed to the most recent Chat call.
func (m *Mock) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPrompt
}

var _ Analyzer = (*Mock)(nil)
