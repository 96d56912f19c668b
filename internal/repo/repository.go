package repo

import (
	"context"
	"time"

	"github.com/hamed0406/sitewatch/internal/domain"
)

// Ports (interfaces) implemented by memory, sqlite and postgres adapters.
type TargetStore interface {
	// List returns targets in creation order.
	List(ctx context.Context) ([]domain.Target, error)
	// Get returns nil, nil when the url is unknown.
	Get(ctx context.Context, url string) (*domain.Target, error)
	// Upsert creates the target or replaces its chat id. The write is
	// durable when Upsert returns nil.
	Upsert(ctx context.Context, url, chatID string) (domain.Target, error)
	// Ensure inserts a target if absent and refreshes its name. A stored
	// chat id is never replaced; t.ChatID only fills an empty one.
	Ensure(ctx context.Context, t domain.Target) error
}

type DowntimeLog interface {
	Append(ctx context.Context, e domain.DowntimeEntry) error
	// Recent returns at most limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]domain.DowntimeEntry, error)
}

// StateStore persists the latest state of each target so it survives a
// restart.
type StateStore interface {
	// GetState returns nil, nil if there's no record yet.
	GetState(ctx context.Context, url string) (*domain.TargetState, error)
	// SetState upserts the record. A nil LastDowntime keeps the stored one.
	SetState(ctx context.Context, st domain.TargetState) error
	ListStates(ctx context.Context) ([]domain.TargetState, error)
}

// StatusHistory is the per-target status timeline used for uptime figures.
type StatusHistory interface {
	AppendStatus(ctx context.Context, e domain.StatusEvent) error
	// StatusSince returns the last event before since (nil if none) and the
	// events at or after since, oldest first.
	StatusSince(ctx context.Context, url string, since time.Time) (*domain.StatusEvent, []domain.StatusEvent, error)
}
