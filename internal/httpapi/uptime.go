package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/status"
)

const (
	uptimeDefaultPeriod = 24 * time.Hour
	uptimeMaxPeriod     = 365 * 24 * time.Hour
)

// handleUptime reports uptime for one target over a trailing period.
// period accepts Go durations ("90m", "24h"), days ("7d") or plain seconds.
func (s *Server) handleUptime(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	u, err := domain.NormalizeURL(q.Get("url"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	period, err := parsePeriod(q.Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	t, err := s.Registry.Lookup(r.Context(), u)
	if err != nil {
		s.Logger.Error("uptime_lookup_error", zap.String("url", u), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "lookup error")
		return
	}
	if t == nil {
		writeError(w, http.StatusNotFound, "unknown target")
		return
	}

	now := s.Now().UTC()
	since := now.Add(-period)
	var (
		prev   *domain.StatusEvent
		events []domain.StatusEvent
	)
	if s.History != nil {
		prev, events, err = s.History.StatusSince(r.Context(), u, since)
		if err != nil {
			s.Logger.Error("uptime_history_error", zap.String("url", u), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "history error")
			return
		}
	}
	writeJSON(w, http.StatusOK, status.Uptime(u, prev, events, since, now))
}

func parsePeriod(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uptimeDefaultPeriod, nil
	}
	errBad := errors.New("period must look like 24h, 7d or a number of seconds")

	var d time.Duration
	if n, err := strconv.Atoi(raw); err == nil {
		d = time.Duration(n) * time.Second
	} else if days, ok := strings.CutSuffix(raw, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, errBad
		}
		d = time.Duration(n) * 24 * time.Hour
	} else {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return 0, errBad
		}
		d = parsed
	}
	if d <= 0 || d > uptimeMaxPeriod {
		return 0, errors.New("period must be positive and at most 365d")
	}
	return d, nil
}
