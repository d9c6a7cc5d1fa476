package analyzer

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/omanox-dev/plantgate/pkg/diagnosis"
)

// blockingAnalyzer never answers; it only honors context cancellation.
type blockingAnalyzer struct{}

func (blockingAnalyzer) Name() string { return "blocking" }

func (blockingAnalyzer) Analyze(ctx context.Context, _ []byte, _ string, _ Hint) (*diagnosis.Report, diagnosis.Usage, error) {
	<-ctx.Done()
	return nil, diagnosis.Usage{}, ctx.Err()
}

func (blockingAnalyzer) Chat(ctx context.Context, _ string) (string, diagnosis.Usage, error) {
	<-ctx.Done()
	return "", diagnosis.Usage{}, ctx.Err()
}

func TestLimitedTimeoutIsUnavailable(t *testing.T) {
	limited := WithLimits(blockingAnalyzer{}, 0, 0, 20*time.Millisecond)

	_, _, err := limited.Analyze(context.Background(), []byte("img"), "image/png", Hint{})
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	if !IsUnavailable(err) {
		t.Fatalf("a deadline must classify as unavailable, got %v", err)
	}
	if IsRateLimited(err) {
		t.Fatalf("a deadline is not a rate limit: %v", err)
	}
}

func TestLimitedChatTimeout(t *testing.T) {
	limited := WithLimits(blockingAnalyzer{}, 0, 0, 20*time.Millisecond)

	_, _, err := limited.Chat(context.Background(), "hello")
	if !IsUnavailable(err) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestLimitedPassthrough(t *testing.T) {
	mock := NewMock()
	limited := WithLimits(mock, 0, 0, 0)

	rep, _, err := limited.Analyze(context.Background(), []byte("img"), "image/png", Hint{Label: "x"})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if rep != mock.Report {
		t.Fatalf("report not passed through")
	}
	if limited.Name() != "mock" {
		t.Fatalf("name not delegated, got %q", limited.Name())
	}
}

func TestLimitedThrottles(t *testing.T) {
	mock := NewMock()
	limited := WithLimits(mock, 20, 1, 0)

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, _, err := limited.Chat(context.Background(), "q"); err != nil {
			t.Fatalf("chat %d: %v", i, err)
		}
	}
	// burst 1 at 20 rps: the second and third calls each wait ~50ms.
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Fatalf("limiter did not throttle, 3 calls took %s", elapsed)
	}
}

func TestErrorClassification(t *testing.T) {
	rateLimited := upstreamError(http.StatusTooManyRequests, errors.New("slow down"))
	if !IsRateLimited(rateLimited) {
		t.Fatalf("429 must classify as rate limited")
	}
	if IsUnavailable(rateLimited) {
		t.Fatalf("rate limited is not unavailable")
	}

	serverErr := upstreamError(http.StatusServiceUnavailable, errors.New("overloaded"))
	if !IsUnavailable(serverErr) {
		t.Fatalf("503 must classify as unavailable")
	}
	if IsRateLimited(serverErr) {
		t.Fatalf("503 is not rate limited")
	}

	if IsUnavailable(nil) || IsRateLimited(nil) {
		t.Fatalf("nil error must not classify")
	}
	if IsUnavailable(errors.New("unrelated")) {
		t.Fatalf("arbitrary errors must not classify as unavailable")
	}
}
