package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/repo"
)

var _ repo.TargetStore = (*Store)(nil)
var _ repo.DowntimeLog = (*Store)(nil)
var _ repo.StateStore = (*Store)(nil)
var _ repo.StatusHistory = (*Store)(nil)

const SchemaSQL = `
CREATE TABLE IF NOT EXISTS targets (
  url        TEXT PRIMARY KEY,
  name       TEXT NOT NULL,
  chat_id    TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS downtime_log (
  id         BIGSERIAL PRIMARY KEY,
  url        TEXT NOT NULL,
  error      TEXT NOT NULL,
  checked_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_downtime_log_checked_at ON downtime_log (checked_at DESC);

CREATE TABLE IF NOT EXISTS target_state (
  url           TEXT PRIMARY KEY,
  status        TEXT NOT NULL,
  last_downtime TIMESTAMPTZ,
  error         TEXT NOT NULL DEFAULT '',
  last_error    TEXT NOT NULL DEFAULT '',
  last_checked  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS status_history (
  id         BIGSERIAL PRIMARY KEY,
  url        TEXT NOT NULL,
  status     TEXT NOT NULL,
  checked_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_status_history_url_checked_at ON status_history (url, checked_at);
`

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(ctx, SchemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	log.Info("postgres_ready")
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// ---- TargetStore ----

func (s *Store) List(ctx context.Context) ([]domain.Target, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT url, name, chat_id, created_at
		   FROM targets
		  ORDER BY created_at ASC, url ASC`)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	defer rows.Close()

	var out []domain.Target
	for rows.Next() {
		var t domain.Target
		if err := rows.Scan(&t.URL, &t.Name, &t.ChatID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) Get(ctx context.Context, url string) (*domain.Target, error) {
	var t domain.Target
	err := s.pool.QueryRow(ctx,
		`SELECT url, name, chat_id, created_at FROM targets WHERE url = $1`, url).
		Scan(&t.URL, &t.Name, &t.ChatID, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get target: %w", err)
	}
	return &t, nil
}

func (s *Store) Upsert(ctx context.Context, url, chatID string) (domain.Target, error) {
	var t domain.Target
	err := s.pool.QueryRow(ctx,
		`INSERT INTO targets (url, name, chat_id, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (url) DO UPDATE SET chat_id = EXCLUDED.chat_id
		 RETURNING url, name, chat_id, created_at`,
		url, domain.HostOf(url), chatID, time.Now().UTC()).
		Scan(&t.URL, &t.Name, &t.ChatID, &t.CreatedAt)
	if err != nil {
		return domain.Target{}, fmt.Errorf("upsert target: %w", err)
	}
	return t, nil
}

func (s *Store) Ensure(ctx context.Context, t domain.Target) error {
	name := t.Name
	if name == "" {
		name = domain.HostOf(t.URL)
	}
	created := t.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO targets (url, name, chat_id, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (url) DO UPDATE SET
		   name = EXCLUDED.name,
		   chat_id = CASE WHEN targets.chat_id = '' THEN EXCLUDED.chat_id ELSE targets.chat_id END`,
		t.URL, name, t.ChatID, created)
	if err != nil {
		return fmt.Errorf("ensure target: %w", err)
	}
	return nil
}

// ---- DowntimeLog ----

func (s *Store) Append(ctx context.Context, e domain.DowntimeEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO downtime_log (url, error, checked_at) VALUES ($1, $2, $3)`,
		e.URL, e.Error, e.At)
	if err != nil {
		return fmt.Errorf("insert downtime: %w", err)
	}
	return nil
}

func (s *Store) Recent(ctx context.Context, limit int) ([]domain.DowntimeEntry, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := s.pool.Query(ctx,
		`SELECT url, error, checked_at
		   FROM downtime_log
		  ORDER BY id DESC
		  LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent downtime: %w", err)
	}
	defer rows.Close()

	var out []domain.DowntimeEntry
	for rows.Next() {
		var e domain.DowntimeEntry
		if err := rows.Scan(&e.URL, &e.Error, &e.At); err != nil {
			return nil, fmt.Errorf("scan downtime: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ---- StateStore ----

func (s *Store) GetState(ctx context.Context, url string) (*domain.TargetState, error) {
	const q = `SELECT url, status, last_downtime, error, last_error, last_checked
	             FROM target_state WHERE url = $1`
	st, err := scanState(s.pool.QueryRow(ctx, q, url))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get state: %w", err)
	}
	return &st, nil
}

func (s *Store) SetState(ctx context.Context, st domain.TargetState) error {
	const q = `
		INSERT INTO target_state (url, status, last_downtime, error, last_error, last_checked)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (url) DO UPDATE SET
		  status = EXCLUDED.status,
		  last_downtime = COALESCE(EXCLUDED.last_downtime, target_state.last_downtime),
		  error = EXCLUDED.error,
		  last_error = EXCLUDED.last_error,
		  last_checked = EXCLUDED.last_checked
	`
	_, err := s.pool.Exec(ctx, q, st.URL, string(st.Status), st.LastDowntime, st.Error, st.LastError, st.LastChecked)
	if err != nil {
		return fmt.Errorf("set state: %w", err)
	}
	return nil
}

func (s *Store) ListStates(ctx context.Context) ([]domain.TargetState, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT url, status, last_downtime, error, last_error, last_checked FROM target_state`)
	if err != nil {
		return nil, fmt.Errorf("list states: %w", err)
	}
	defer rows.Close()

	var out []domain.TargetState
	for rows.Next() {
		st, err := scanState(rows)
		if err != nil {
			return nil, fmt.Errorf("scan state: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func scanState(row pgx.Row) (domain.TargetState, error) {
	var (
		st     domain.TargetState
		status string
	)
	err := row.Scan(&st.URL, &status, &st.LastDowntime, &st.Error, &st.LastError, &st.LastChecked)
	st.Status = domain.Status(status)
	return st, err
}

// ---- StatusHistory ----

func (s *Store) AppendStatus(ctx context.Context, e domain.StatusEvent) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO status_history (url, status, checked_at) VALUES ($1, $2, $3)`,
		e.URL, string(e.Status), e.At)
	if err != nil {
		return fmt.Errorf("insert status event: %w", err)
	}
	return nil
}

func (s *Store) StatusSince(ctx context.Context, url string, since time.Time) (*domain.StatusEvent, []domain.StatusEvent, error) {
	var (
		prev   *domain.StatusEvent
		status string
		at     time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT status, checked_at FROM status_history
		  WHERE url = $1 AND checked_at < $2
		  ORDER BY checked_at DESC, id DESC LIMIT 1`, url, since).
		Scan(&status, &at)
	switch {
	case err == nil:
		prev = &domain.StatusEvent{URL: url, Status: domain.Status(status), At: at}
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, nil, fmt.Errorf("status before: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT status, checked_at FROM status_history
		  WHERE url = $1 AND checked_at >= $2
		  ORDER BY checked_at ASC, id ASC`, url, since)
	if err != nil {
		return nil, nil, fmt.Errorf("status since: %w", err)
	}
	defer rows.Close()

	var out []domain.StatusEvent
	for rows.Next() {
		if err := rows.Scan(&status, &at); err != nil {
			return nil, nil, fmt.Errorf("scan status event: %w", err)
		}
		out = append(out, domain.StatusEvent{URL: url, Status: domain.Status(status), At: at})
	}
	return prev, out, rows.Err()
}
