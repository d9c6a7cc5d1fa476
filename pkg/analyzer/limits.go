package analyzer

import (
	"context"
	"errors"
	"time"

	"github.com/omanox-dev/plantgate/pkg/diagnosis"
	"golang.org/x/time/rate"
)

// Limited wraps an Analyzer with a client-side rate limiter and a bounded
// per-call timeout. A timed-out call surfaces as upstream-unavailable; retry
// policy stays out of this layer so token usage is never double-billed.
type Limited struct {
	inner   Analyzer
	limiter *rate.Limiter
	timeout time.Duration
}

// WithLimits wraps an analyzer. rps <= 0 disables throttling; timeout <= 0
// disables the deadline.
func WithLimits(a Analyzer, rps float64, burst int, timeout time.Duration) *Limited {
	var limiter *rate.Limiter
	if rps > 0 {
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return &Limited{inner: a, limiter: limiter, timeout: timeout}
}

// Name returns the wrapped analyzer's identifier.
func (l *Limited) Name() string {
	return l.inner.Name()
}

// Analyze applies the limiter and deadline, then delegates.
func (l *Limited) Analyze(ctx context.Context, img []byte, mimeType string, hint Hint) (*diagnosis.Report, diagnosis.Usage, error) {
	ctx, cancel := l.bound(ctx)
	defer cancel()

	if err := l.wait(ctx); err != nil {
		return nil, diagnosis.Usage{}, err
	}
	rep, usage, err := l.inner.Analyze(ctx, img, mimeType, hint)
	return rep, usage, mapDeadline(err)
}

// Chat applies the limiter and deadline, then delegates.
func (l *Limited) Chat(ctx context.Context, prompt string) (string, diagnosis.Usage, error) {
	ctx, cancel := l.bound(ctx)
	defer cancel()

	if err := l.wait(ctx); err != nil {
		return "", diagnosis.Usage{}, err
	}
	reply, usage, err := l.inner.Chat(ctx, prompt)
	return reply, usage, mapDeadline(err)
}

func (l *Limited) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, l.timeout)
}

func (l *Limited) wait(ctx context.Context) error {
	if l.limiter == nil {
		return nil
	}
	if err := l.limiter.Wait(ctx); err != nil {
		return mapDeadline(err)
	}
	return nil
}

func mapDeadline(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		var upstreamErr *UpstreamError
		if !errors.As(err, &upstreamErr) {
			return &UpstreamError{Err: err}
		}
	}
	return err
}

var _ Analyzer = (*Limited)(nil)
