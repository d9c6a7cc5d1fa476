// Package analyzer wraps the cloud vision/LLM services that take over a
// diagnosis when the local classifier is not confident, and that answer
// follow-up chat questions.
package analyzer

import (
	"context"

	"github.com/omanox-dev/plantgate/pkg/diagnosis"
)

// Hint carries the classifier's discarded prediction into the takeover prompt
// so the upstream knows what the local model thought.
type Hint struct {
	Label         string
	ConfidencePct float64
}

// Analyzer defines the interface for cloud analyzer backends.
//
// Analyze produces a full structured diagnosis for an image. Token usage is
// always taken from the upstream response's own accounting fields, never
// estimated. An unparseable reply is absorbed into a best-effort report with
// the raw text in Notes rather than returned as an error; only transport-level
// failures surface.
//
// Chat answers a free-text prompt and reports its token usage the same way.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, img []byte, mimeType string, hint Hint) (*diagnosis.Report, diagnosis.Usage, error)
	Chat(ctx context.Context, prompt string) (string, diagnosis.Usage, error)
}
