package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/domain"
)

const timeLayout = "2006-01-02 15:04:05 MST"

// Lookup resolves the current routing for a url. It returns nil, nil for an
// unknown url.
type Lookup interface {
	Lookup(ctx context.Context, url string) (*domain.Target, error)
}

type DispatcherConfig struct {
	// Attempts is the total number of delivery tries per message.
	Attempts int
	// Backoff is the wait before the first retry.
	Backoff  time.Duration
	Location *time.Location
}

// Dispatcher turns status transitions into chat messages.
type Dispatcher struct {
	log    *zap.Logger
	lookup Lookup
	sender Sender
	cfg    DispatcherConfig
}

func NewDispatcher(logger *zap.Logger, lookup Lookup, sender Sender, cfg DispatcherConfig) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Attempts < 1 {
		cfg.Attempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Dispatcher{log: logger, lookup: lookup, sender: sender, cfg: cfg}
}

// Run handles events until the channel is closed or ctx is done.
func (d *Dispatcher) Run(ctx context.Context, events <-chan domain.Transition) {
	for {
		select {
		case <-ctx.Done():
			d.log.Info("notify_stopped", zap.Error(ctx.Err()))
			return
		case ev, ok := <-events:
			if !ok {
				d.log.Info("notify_stopped")
				return
			}
			d.Notify(ctx, ev)
		}
	}
}

// Notify delivers one transition. It reports whether a message was sent.
// A target without a chat id is skipped silently.
func (d *Dispatcher) Notify(ctx context.Context, ev domain.Transition) bool {
	t := ev.Target
	if d.lookup != nil {
		cur, err := d.lookup.Lookup(ctx, t.URL)
		if err != nil {
			d.log.Warn("notify_lookup_error", zap.String("url", t.URL), zap.Error(err))
		} else if cur != nil {
			t = *cur
		}
	}
	if t.ChatID == "" {
		d.log.Debug("notify_skipped", zap.String("url", t.URL), zap.String("reason", "no chat id"))
		return false
	}
	if d.sender == nil {
		d.log.Warn("notify_skipped", zap.String("url", t.URL), zap.String("reason", "no sender configured"))
		return false
	}

	text := d.Message(t, ev)
	op := func() error {
		err := d.sender.Send(ctx, t.ChatID, text)
		var de *DeliveryError
		if errors.As(err, &de) && !de.Temporary() {
			return backoff.Permanent(err)
		}
		if errors.Is(err, ErrDisabled) {
			return backoff.Permanent(err)
		}
		return err
	}
	b := backoff.WithContext(newAttemptBackoff(d.log, t.ChatID, d.cfg.Attempts, d.cfg.Backoff), ctx)
	if err := backoff.Retry(op, b); err != nil {
		d.log.Error("notify_dropped",
			zap.String("url", t.URL),
			zap.String("chat_id", t.ChatID),
			zap.String("to", string(ev.To)),
			zap.Error(err),
		)
		return false
	}
	d.log.Info("notify_sent",
		zap.String("url", t.URL),
		zap.String("chat_id", t.ChatID),
		zap.String("to", string(ev.To)),
	)
	return true
}

// Message renders the text for ev.
func (d *Dispatcher) Message(t domain.Target, ev domain.Transition) string {
	name := t.Name
	if name == "" {
		name = domain.HostOf(t.URL)
	}
	if ev.To == domain.StatusUp {
		return fmt.Sprintf("%s UP again", name)
	}
	since := ev.At
	if ev.DownSince != nil {
		since = *ev.DownSince
	}
	reason := ev.Error
	if reason == "" {
		reason = "unknown error"
	}
	return fmt.Sprintf("%s DOWN since %s: %s", name, since.In(d.cfg.Location).Format(timeLayout), reason)
}
