package notify

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const backoffMax = 10 * time.Second

// attemptBackoff stops after maxAttempts tries in total and logs each retry.
type attemptBackoff struct {
	maxAttempts int
	attempt     int
	underlying  backoff.BackOff
	log         *zap.Logger
	chatID      string
}

func newAttemptBackoff(log *zap.Logger, chatID string, maxAttempts int, initial time.Duration) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = backoffMax
	b.MaxElapsedTime = 0
	b.Reset()

	return &attemptBackoff{
		maxAttempts: maxAttempts,
		attempt:     1,
		underlying:  b,
		log:         log,
		chatID:      chatID,
	}
}

func (b *attemptBackoff) NextBackOff() time.Duration {
	if b.attempt >= b.maxAttempts {
		return backoff.Stop
	}
	b.attempt++
	b.log.Debug("notify_retry",
		zap.String("chat_id", b.chatID),
		zap.Int("attempt", b.attempt),
		zap.Int("max_attempts", b.maxAttempts),
	)
	return b.underlying.NextBackOff()
}

func (b *attemptBackoff) Reset() {
	b.attempt = 1
	b.underlying.Reset()
}
