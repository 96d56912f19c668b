package probe

import (
	"context"
	"testing"
	"time"

	"github.com/hamed0406/sitewatch/internal/domain"
)

// fake checker you can control
type fakeChecker struct {
	results []domain.CheckResult
	i       int
}

func (f *fakeChecker) Check(ctx context.Context, target string) domain.CheckResult {
	if f.i >= len(f.results) {
		return domain.CheckResult{Status: domain.StatusDown, Error: "no more"}
	}
	r := f.results[f.i]
	f.i++
	return r
}

func TestRetryChecker_SucceedsAfterRetry(t *testing.T) {
	f := &fakeChecker{
		results: []domain.CheckResult{
			{Status: domain.StatusDown, Error: "timeout"},
			{Status: domain.StatusUp, HTTPStatus: 200},
		},
	}
	rc := &RetryChecker{Inner: f, Attempts: 3, Backoff: 10 * time.Millisecond}
	out := rc.Check(context.Background(), "https://example.com")
	if !out.Up() {
		t.Fatalf("expected UP after retry, got %+v", out)
	}
	if f.i != 2 {
		t.Fatalf("expected 2 attempts, got %d", f.i)
	}
}

func TestRetryChecker_AllFailReturnsLastReason(t *testing.T) {
	f := &fakeChecker{
		results: []domain.CheckResult{
			{Status: domain.StatusDown, Error: "timeout"},
			{Status: domain.StatusDown, Error: "HTTP 502"},
		},
	}
	rc := &RetryChecker{Inner: f, Attempts: 2}
	out := rc.Check(context.Background(), "https://example.com")
	if out.Up() {
		t.Fatalf("expected DOWN, got UP")
	}
	if out.Error != "HTTP 502" {
		t.Fatalf("expected last reason, got %q", out.Error)
	}
}

func TestRetryChecker_StopsOnCancel(t *testing.T) {
	f := &fakeChecker{
		results: []domain.CheckResult{
			{Status: domain.StatusDown, Error: "timeout"},
			{Status: domain.StatusUp},
		},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rc := &RetryChecker{Inner: f, Attempts: 5, Backoff: time.Hour}
	out := rc.Check(ctx, "https://example.com")
	if out.Up() || f.i != 1 {
		t.Fatalf("expected single DOWN attempt, got %+v after %d", out, f.i)
	}
}
