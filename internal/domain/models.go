package domain

import "time"

type Status string

const (
	StatusUnknown Status = "UNKNOWN"
	StatusUp      Status = "UP"
	StatusDown    Status = "DOWN"
)

// Target is a monitored URL. URL is the unique key.
type Target struct {
	URL       string    `json:"url"`
	Name      string    `json:"name"`
	ChatID    string    `json:"chat_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CheckResult is the outcome of one probe. Error is set only when Status is DOWN.
type CheckResult struct {
	Status     Status    `json:"status"`
	Error      string    `json:"error,omitempty"`
	HTTPStatus int       `json:"http_status,omitempty"`
	LatencyMS  float64   `json:"latency_ms"`
	CheckedAt  time.Time `json:"checked_at"`
}

func (r CheckResult) Up() bool { return r.Status == StatusUp }

// TargetState is the latest known state of a target.
type TargetState struct {
	URL          string     `json:"url"`
	Status       Status     `json:"status"`
	LastDowntime *time.Time `json:"last_downtime,omitempty"`
	// Error is the reason of the current outage, empty while UP.
	Error string `json:"error,omitempty"`
	// LastError is the most recent DOWN reason and survives recovery.
	LastError   string    `json:"last_error,omitempty"`
	LastChecked time.Time `json:"last_checked"`
}

// Transition is emitted when a target flips between UP and DOWN.
type Transition struct {
	Target    Target
	From      Status
	To        Status
	Error     string
	At        time.Time
	DownSince *time.Time
}

type DowntimeEntry struct {
	URL   string    `json:"url"`
	Error string    `json:"error"`
	At    time.Time `json:"timestamp"`
}

// StatusEvent is one point of a target's status timeline. One is written on
// the first check and on every transition after it.
type StatusEvent struct {
	URL    string    `json:"url"`
	Status Status    `json:"status"`
	At     time.Time `json:"timestamp"`
}

// UptimeStats summarises a status timeline over a trailing period.
type UptimeStats struct {
	URL             string  `json:"url"`
	PeriodSeconds   int64   `json:"period_seconds"`
	UptimePercent   float64 `json:"uptime_percent"`
	DowntimeSeconds int64   `json:"downtime_seconds"`
	Incidents       int     `json:"incidents"`
}
