// Package classifier wraps the locally-served image classification model.
// The model itself is a black box reached over HTTP; this package owns the
// label vocabularies, confidence normalization, and input validation.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

var (
	// ErrUnavailable means the underlying model could not be invoked.
	ErrUnavailable = errors.New("classifier unavailable")
	// ErrInvalidImage means the payload could not be decoded as an image.
	ErrInvalidImage = errors.New("invalid image")
)

// Prediction is one head's decoded output.
type Prediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"` // in [0,1]
}

// Result is the classifier's dual-head prediction. The single model is scored
// against both the species and disease vocabularies; Confidence is the mean of
// the two head confidences and is the value the arbitration gate compares.
type Result struct {
	Species    Prediction `json:"species"`
	Disease    Prediction `json:"disease"`
	Label      string     `json:"label"`
	Confidence float64    `json:"confidence"`
}

// Classifier produces a label and confidence for an image.
type Classifier interface {
	Classify(ctx context.Context, img []byte) (*Result, error)
}

// SniffImage validates that data decodes as a supported image and returns its
// MIME type. Validation happens before any model is invoked.
func SniffImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty payload", ErrInvalidImage)
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return "image/" + format, nil
}

// LoadLabels reads a label vocabulary from a JSON array file.
func LoadLabels(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read labels from %s: %w", path, err)
	}
	var labels []string
	if err := json.Unmarshal(data, &labels); err != nil {
		return nil, fmt.Errorf("failed to parse labels from %s: %w", path, err)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("labels file %s is empty", path)
	}
	return labels, nil
}

// newResult assembles a dual-head result from decoded predictions.
func newResult(species, disease Prediction) *Result {
	return &Result{
		Species:    species,
		Disease:    disease,
		Label:      species.Label + " - " + disease.Label,
		Confidence: (species.Confidence + disease.Confidence) / 2,
	}
}

// normalizeConfidence maps percent-scale confidences onto [0,1] and clamps.
func normalizeConfidence(v float64) float64 {
	if v > 1 {
		v = v / 100
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// decodeHead resolves a score vector against a vocabulary: argmax, index
// bounds check, percent normalization.
func decodeHead(scores []float64, vocab []string) (Prediction, error) {
	if len(scores) == 0 {
		return Prediction{}, fmt.Errorf("empty score vector")
	}
	idx := 0
	for i, s := range scores {
		if s > scores[idx] {
			idx = i
		}
	}
	if idx >= len(vocab) {
		return Prediction{}, fmt.Errorf("label index %d out of range for vocabulary of %d", idx, len(vocab))
	}
	return Prediction{
		Label:      vocab[idx],
		Confidence: normalizeConfidence(scores[idx]),
	}, nil
}

// Mock is a deterministic classifier for tests. Safe for concurrent use.
type Mock struct {
	Result *Result
	Err    error

	mu    sync.Mutex
	calls int
}

// Classify returns the configured result or error.
func (m *Mock) Classify(_ context.Context, _ []byte) (*Result, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Result, nil
}

// Calls reports how many times Classify has run.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

var _ Classifier = (*Mock)(nil)
