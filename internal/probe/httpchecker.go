package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hamed0406/sitewatch/internal/domain"
)

type HTTPChecker struct {
	Client  *http.Client
	Timeout time.Duration
}

func NewHTTPChecker(timeout time.Duration) *HTTPChecker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPChecker{
		Client:  &http.Client{Timeout: timeout},
		Timeout: timeout,
	}
}

// Check issues a GET to target. Status codes below 400 count as UP.
func (h *HTTPChecker) Check(ctx context.Context, target string) (out domain.CheckResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out = down(ReasonProbePanic, 0, start)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, h.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return down(ReasonBadRequest, 0, start)
	}
	req.Header.Set("User-Agent", "sitewatch/1.0")

	resp, err := h.Client.Do(req)
	if err != nil {
		return down(Classify(err), 0, start)
	}
	defer resp.Body.Close()
	// drain a little so keep-alive connections can be reused
	_, _ = io.CopyN(io.Discard, resp.Body, 64<<10)

	if resp.StatusCode >= 400 {
		return down(fmt.Sprintf("HTTP %d", resp.StatusCode), resp.StatusCode, start)
	}
	return domain.CheckResult{
		Status:     domain.StatusUp,
		HTTPStatus: resp.StatusCode,
		LatencyMS:  sinceMS(start),
		CheckedAt:  time.Now().UTC(),
	}
}

func down(reason string, code int, start time.Time) domain.CheckResult {
	return domain.CheckResult{
		Status:     domain.StatusDown,
		Error:      reason,
		HTTPStatus: code,
		LatencyMS:  sinceMS(start),
		CheckedAt:  time.Now().UTC(),
	}
}

func sinceMS(start time.Time) float64 {
	return time.Since(start).Seconds() * 1000
}
