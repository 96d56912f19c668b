package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/domain"
)

const (
	noDowntime = "Downtime not detected"

	downtimeLogDefault = 30
	downtimeLogMax     = 200
)

type statusTarget struct {
	Name         string        `json:"name"`
	URL          string        `json:"url"`
	Status       domain.Status `json:"status"`
	LastDowntime string        `json:"last_downtime"`
	Error        *string       `json:"error"`
	LastError    *string       `json:"last_error"`
	LastChecked  string        `json:"last_checked"`
}

type statusResponse struct {
	CheckedEveryMinutes int            `json:"checked_every_minutes"`
	Timezone            string         `json:"timezone"`
	Now                 string         `json:"now"`
	Targets             []statusTarget `json:"targets"`
}

// handleStatus reports every target that has finished at least one check, in
// registry order. error is the current failure reason and is null while UP.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ts, err := s.Registry.List(r.Context())
	if err != nil {
		s.Logger.Error("status_list_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	meta := s.Status.Meta()
	loc := meta.Location

	out := statusResponse{
		CheckedEveryMinutes: meta.CheckedEveryMinutes,
		Timezone:            meta.Timezone,
		Now:                 s.Now().In(loc).Format(time.RFC3339),
		Targets:             make([]statusTarget, 0, len(ts)),
	}
	for _, t := range ts {
		st, ok := s.Status.Get(t.URL)
		if !ok || st.Status == domain.StatusUnknown {
			continue
		}
		item := statusTarget{
			Name:         t.Name,
			URL:          t.URL,
			Status:       st.Status,
			LastDowntime: noDowntime,
			LastError:    optional(st.LastError),
			LastChecked:  st.LastChecked.In(loc).Format(time.RFC3339),
		}
		if st.LastDowntime != nil {
			item.LastDowntime = st.LastDowntime.In(loc).Format(time.RFC3339)
		}
		if st.Status == domain.StatusDown {
			item.Error = optional(st.Error)
		}
		out.Targets = append(out.Targets, item)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDowntimeLog(w http.ResponseWriter, r *http.Request) {
	limit := downtimeLogDefault
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, downtimeLogMax)
	}
	if s.Downtime == nil {
		writeJSON(w, http.StatusOK, []domain.DowntimeEntry{})
		return
	}
	entries, err := s.Downtime.Recent(r.Context(), limit)
	if err != nil {
		s.Logger.Error("downtime_log_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "downtime log error")
		return
	}
	loc := s.Status.Meta().Location
	for i := range entries {
		entries[i].At = entries[i].At.In(loc)
	}
	if entries == nil {
		entries = []domain.DowntimeEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
