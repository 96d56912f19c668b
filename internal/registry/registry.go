// Package registry holds the monitored targets, their chat routing and the
// shared admin secret.
package registry

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/repo"
)

const maxChatIDLen = 64

type Registry struct {
	store repo.TargetStore

	secretSum  [sha256.Size]byte
	hasSecret  bool
	bcryptHash []byte
}

type Options struct {
	// Secret is the plain shared phrase. Ignored when SecretBcrypt is set.
	Secret string
	// SecretBcrypt is a bcrypt hash of the phrase.
	SecretBcrypt string
}

func New(store repo.TargetStore, opts Options) *Registry {
	r := &Registry{store: store}
	switch {
	case opts.SecretBcrypt != "":
		r.bcryptHash = []byte(opts.SecretBcrypt)
	case opts.Secret != "":
		r.secretSum = sha256.Sum256([]byte(opts.Secret))
		r.hasSecret = true
	}
	return r
}

// Authenticate reports whether given matches the configured secret. Both
// sides are hashed to a fixed length before a constant-time compare, so
// neither the mismatch position nor the secret length leaks through timing.
// With no secret configured every attempt fails.
func (r *Registry) Authenticate(given string) bool {
	if given == "" {
		return false
	}
	if r.bcryptHash != nil {
		return bcrypt.CompareHashAndPassword(r.bcryptHash, []byte(given)) == nil
	}
	if !r.hasSecret {
		return false
	}
	sum := sha256.Sum256([]byte(given))
	return subtle.ConstantTimeCompare(sum[:], r.secretSum[:]) == 1
}

func (r *Registry) List(ctx context.Context) ([]domain.Target, error) {
	return r.store.List(ctx)
}

// Lookup returns nil, nil for an unknown url.
func (r *Registry) Lookup(ctx context.Context, url string) (*domain.Target, error) {
	return r.store.Get(ctx, url)
}

// Upsert validates url and chatID and persists the mapping. Submitting a
// known url replaces its chat id.
func (r *Registry) Upsert(ctx context.Context, rawURL, chatID string) (domain.Target, error) {
	url, err := domain.NormalizeURL(rawURL)
	if err != nil {
		return domain.Target{}, err
	}
	chatID = strings.TrimSpace(chatID)
	if err := validateChatID(chatID); err != nil {
		return domain.Target{}, err
	}
	t, err := r.store.Upsert(ctx, url, chatID)
	if err != nil {
		return domain.Target{}, fmt.Errorf("persist target %s: %w", url, err)
	}
	return t, nil
}

// Seed makes sure every configured target exists in the store.
func (r *Registry) Seed(ctx context.Context, targets []domain.Target) error {
	for _, t := range targets {
		if err := r.store.Ensure(ctx, t); err != nil {
			return fmt.Errorf("seed %s: %w", t.URL, err)
		}
	}
	return nil
}

func validateChatID(id string) error {
	if id == "" {
		return domain.NewValidationError("chat_id", "must not be empty")
	}
	if len(id) > maxChatIDLen {
		return domain.NewValidationError("chat_id", "too long")
	}
	for _, c := range id {
		if unicode.IsSpace(c) || unicode.IsControl(c) {
			return domain.NewValidationError("chat_id", "must not contain whitespace")
		}
	}
	return nil
}
