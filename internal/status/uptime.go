package status

import (
	"math"
	"time"

	"github.com/hamed0406/sitewatch/internal/domain"
)

// Uptime walks the status timeline of url over [since, now]. prev is the
// last event recorded before since and is carried forward to since; events
// must be oldest first. A target with no history counts as fully up.
//
// Each run of DOWN segments is one incident.
func Uptime(url string, prev *domain.StatusEvent, events []domain.StatusEvent, since, now time.Time) domain.UptimeStats {
	period := now.Sub(since)
	out := domain.UptimeStats{
		URL:           url,
		PeriodSeconds: int64(period / time.Second),
		UptimePercent: 100,
	}
	if period <= 0 {
		return out
	}

	timeline := make([]domain.StatusEvent, 0, len(events)+1)
	if prev != nil {
		timeline = append(timeline, domain.StatusEvent{URL: url, Status: prev.Status, At: since})
	}
	for _, e := range events {
		if e.At.Before(since) || e.At.After(now) {
			continue
		}
		timeline = append(timeline, e)
	}
	if len(timeline) == 0 {
		return out
	}

	var down time.Duration
	for i, e := range timeline {
		if e.Status != domain.StatusDown {
			continue
		}
		end := now
		if i+1 < len(timeline) {
			end = timeline[i+1].At
		}
		down += end.Sub(e.At)
		if i == 0 || timeline[i-1].Status != domain.StatusDown {
			out.Incidents++
		}
	}
	down = min(down, period)

	out.DowntimeSeconds = int64(down / time.Second)
	ratio := float64(period-down) / float64(period)
	out.UptimePercent = math.Round(ratio*100*1000) / 1000
	return out
}
