package ledger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/omanox-dev/plantgate/pkg/diagnosis"
)

func newTestLedger(t *testing.T) (*Ledger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "usage_stats.json")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return l, path
}

func TestRoundTrip(t *testing.T) {
	l, path := newTestLedger(t)

	l.RecordScan(diagnosis.SourcePrimary, diagnosis.Usage{})
	l.RecordScan(diagnosis.SourceFallback, diagnosis.Usage{InputTokens: 512, OutputTokens: 128})
	l.RecordChatMessage(diagnosis.Usage{InputTokens: 20, OutputTokens: 30})
	l.RecordError()

	before := l.Snapshot()
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	after := reopened.Snapshot()

	if after.AllTime != before.AllTime {
		t.Fatalf("all-time counters not preserved: got %+v want %+v", after.AllTime, before.AllTime)
	}
	if after.Session != (Counts{}) {
		t.Fatalf("session view should reset on open, got %+v", after.Session)
	}
	if !after.AllTimeStartedAt.Equal(before.AllTimeStartedAt) {
		t.Fatalf("all-time start timestamp not preserved")
	}
}

func TestCountersAndTokens(t *testing.T) {
	l, _ := newTestLedger(t)

	l.RecordScan(diagnosis.SourcePrimary, diagnosis.Usage{})
	l.RecordScan(diagnosis.SourceFallback, diagnosis.Usage{InputTokens: 512, OutputTokens: 128})

	snap := l.Snapshot()
	if snap.Session.Scans != 2 || snap.Session.Primary != 1 || snap.Session.Takeovers != 1 {
		t.Fatalf("unexpected scan split: %+v", snap.Session)
	}
	if snap.Session.Scans != snap.Session.Primary+snap.Session.Takeovers {
		t.Fatalf("scan invariant violated: %+v", snap.Session)
	}
	if snap.Session.TokensInput != 512 || snap.Session.TokensOutput != 128 || snap.Session.TokensTotal != 640 {
		t.Fatalf("unexpected token totals: %+v", snap.Session)
	}
	if snap.Session.TotalRequests != 2 {
		t.Fatalf("expected 2 total requests, got %d", snap.Session.TotalRequests)
	}
}

func TestCorruptFileStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage_stats.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	l, err := Open(path)
	if err != nil {
		t.Fatalf("open over corrupt file should not fail: %v", err)
	}
	snap := l.Snapshot()
	if snap.AllTime != (Counts{}) {
		t.Fatalf("expected zero state after corruption, got %+v", snap.AllTime)
	}
}

func TestMissingFileStartsFresh(t *testing.T) {
	l, _ := newTestLedger(t)
	snap := l.Snapshot()
	if snap.AllTime != (Counts{}) || snap.Session != (Counts{}) {
		t.Fatalf("expected zero state, got %+v", snap)
	}
	if snap.SessionStartedAt.IsZero() || snap.AllTimeStartedAt.IsZero() {
		t.Fatalf("start timestamps should be set")
	}
}

func TestFlushAfterEveryMutation(t *testing.T) {
	l, path := newTestLedger(t)

	l.RecordScan(diagnosis.SourceFallback, diagnosis.Usage{InputTokens: 10, OutputTokens: 5})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ledger file should exist after mutation: %v", err)
	}
	var onDisk State
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("ledger file should be valid JSON: %v", err)
	}
	if onDisk.AllTime.Takeovers != 1 || onDisk.AllTime.TokensTotal != 15 {
		t.Fatalf("on-disk state stale: %+v", onDisk.AllTime)
	}
}

func TestConcurrentScansNoLostUpdates(t *testing.T) {
	l, _ := newTestLedger(t)

	const n = 100
	var wg sync.WaitGroup
	wg.Add(2 * n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			l.RecordScan(diagnosis.SourcePrimary, diagnosis.Usage{})
		}()
		go func() {
			defer wg.Done()
			l.RecordScan(diagnosis.SourceFallback, diagnosis.Usage{InputTokens: 2, OutputTokens: 1})
		}()
	}
	wg.Wait()

	snap := l.Snapshot()
	if snap.Session.Scans != 2*n {
		t.Fatalf("expected %d scans, got %d", 2*n, snap.Session.Scans)
	}
	if snap.Session.Primary != n || snap.Session.Takeovers != n {
		t.Fatalf("unexpected split under concurrency: %+v", snap.Session)
	}
	if snap.Session.Scans != snap.Session.Primary+snap.Session.Takeovers {
		t.Fatalf("scan invariant violated under concurrency: %+v", snap.Session)
	}
	if snap.Session.TokensInput != 2*n || snap.Session.TokensOutput != n {
		t.Fatalf("token totals lost updates: %+v", snap.Session)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	l, _ := newTestLedger(t)

	snap := l.Snapshot()
	l.RecordScan(diagnosis.SourcePrimary, diagnosis.Usage{})

	if snap.Session.Scans != 0 {
		t.Fatalf("snapshot should not observe later mutations")
	}
}

func TestFallbackRate(t *testing.T) {
	c := Counts{Scans: 4, Takeovers: 1, Primary: 3}
	if got := c.FallbackRate(); got != 0.25 {
		t.Fatalf("expected fallback rate 0.25, got %v", got)
	}
	if got := (Counts{}).FallbackRate(); got != 0 {
		t.Fatalf("empty counts should have zero rate, got %v", got)
	}
}
