// Package arbiter implements the confidence-gated decision between the local
// classifier's prediction and a cloud analyzer takeover.
package arbiter

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/omanox-dev/plantgate/pkg/analyzer"
	"github.com/omanox-dev/plantgate/pkg/classifier"
	"github.com/omanox-dev/plantgate/pkg/diagnosis"
	"github.com/omanox-dev/plantgate/pkg/ledger"
)

// DefaultThreshold is the confidence gate used when none is configured.
const DefaultThreshold = 0.50

// ErrAnalysisUnavailable means neither the classifier nor the analyzer could
// produce a result. It is the only terminal, user-visible analysis failure.
var ErrAnalysisUnavailable = errors.New("analysis unavailable")

// ErrInvalidImage re-exports the classifier's payload validation failure.
var ErrInvalidImage = classifier.ErrInvalidImage

// Arbiter runs the per-request decision. It is stateless across requests; the
// ledger is the only shared resource it touches.
//
// A nil classifier means local inference is disabled; a nil analyzer means
// takeover is disabled and low-confidence predictions are returned as-is.
type Arbiter struct {
	classifier classifier.Classifier
	analyzer   analyzer.Analyzer
	ledger     *ledger.Ledger
	threshold  float64
}

// New creates an Arbiter. A non-positive threshold falls back to
// DefaultThreshold.
func New(c classifier.Classifier, a analyzer.Analyzer, l *ledger.Ledger, threshold float64) *Arbiter {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Arbiter{classifier: c, analyzer: a, ledger: l, threshold: threshold}
}

// Threshold returns the configured confidence gate.
func (b *Arbiter) Threshold() float64 {
	return b.threshold
}

// Analyze decides one request:
//
//  1. validate the payload,
//  2. run the classifier (unavailability routes to the fallback, it is not a
//     user-facing error),
//  3. accept the prediction when confidence >= threshold — the boundary is a
//     policy contract, exactly-at-threshold accepts the primary,
//  4. otherwise have the analyzer take over; its result fully replaces the
//     prediction, never a blend,
//  5. record the scan against the chosen source,
//  6. return the outcome.
//
// When both paths fail the request fails with ErrAnalysisUnavailable and only
// the error counter moves.
func (b *Arbiter) Analyze(ctx context.Context, img []byte) (*diagnosis.Outcome, error) {
	mimeType, err := classifier.SniffImage(img)
	if err != nil {
		return nil, err
	}

	var res *classifier.Result
	cerr := error(nil)
	if b.classifier == nil {
		cerr = fmt.Errorf("%w: local inference disabled", classifier.ErrUnavailable)
	} else {
		res, cerr = b.classifier.Classify(ctx, img)
	}
	if cerr != nil {
		if errors.Is(cerr, classifier.ErrInvalidImage) {
			return nil, cerr
		}
		log.Printf("arbiter: classifier unavailable, taking fallback path: %v", cerr)
		res = nil
	}

	// Accept the primary when it clears the gate, or when no takeover path
	// is configured at all.
	if res != nil && (res.Confidence >= b.threshold || b.analyzer == nil) {
		outcome := b.primaryOutcome(res, res.Report())
		b.ledger.RecordScan(diagnosis.SourcePrimary, diagnosis.Usage{})
		return outcome, nil
	}

	if b.analyzer == nil {
		b.ledger.RecordError()
		return nil, fmt.Errorf("%w: classifier failed and no analyzer is configured", ErrAnalysisUnavailable)
	}

	var hint analyzer.Hint
	if res != nil {
		hint = analyzer.Hint{Label: res.Label, ConfidencePct: res.Confidence * 100}
		log.Printf("arbiter: low confidence %.2f < %.2f, analyzer taking over", res.Confidence, b.threshold)
	}

	rep, usage, ferr := b.analyzer.Analyze(ctx, img, mimeType, hint)
	if ferr != nil {
		if res != nil {
			// Takeover failed but the classifier did produce a prediction:
			// degrade to it instead of failing the request.
			log.Printf("arbiter: takeover failed, degrading to classifier result: %v", ferr)
			degraded := res.Report()
			degraded.Notes = "AI analysis unavailable - using ML prediction"
			outcome := b.primaryOutcome(res, degraded)
			b.ledger.RecordScan(diagnosis.SourcePrimary, diagnosis.Usage{})
			return outcome, nil
		}
		b.ledger.RecordError()
		return nil, fmt.Errorf("%w: %v", ErrAnalysisUnavailable, ferr)
	}

	outcome := &diagnosis.Outcome{
		Source:    diagnosis.SourceFallback,
		Report:    rep,
		Usage:     usage.Normalize(),
		Timestamp: time.Now().UTC(),
	}
	if res != nil {
		outcome.Label = res.Label
		outcome.Confidence = res.Confidence
	}
	b.ledger.RecordScan(diagnosis.SourceFallback, outcome.Usage)
	return outcome, nil
}

func (b *Arbiter) primaryOutcome(res *classifier.Result, rep *diagnosis.Report) *diagnosis.Outcome {
	return &diagnosis.Outcome{
		Source:     diagnosis.SourcePrimary,
		Report:     rep,
		Label:      res.Label,
		Confidence: res.Confidence,
		Timestamp:  time.Now().UTC(),
	}
}
