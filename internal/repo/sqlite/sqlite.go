package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/repo"
)

var _ repo.TargetStore = (*Store)(nil)
var _ repo.DowntimeLog = (*Store)(nil)
var _ repo.StateStore = (*Store)(nil)
var _ repo.StatusHistory = (*Store)(nil)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS targets (
	url        TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	chat_id    TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS downtime_log (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	url       TEXT NOT NULL,
	error     TEXT NOT NULL,
	timestamp DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_downtime_log_ts ON downtime_log(timestamp DESC);
CREATE TABLE IF NOT EXISTS target_state (
	url           TEXT PRIMARY KEY,
	status        TEXT NOT NULL,
	last_downtime DATETIME,
	error         TEXT NOT NULL DEFAULT '',
	last_error    TEXT NOT NULL DEFAULT '',
	last_checked  DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS status_history (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	url          TEXT NOT NULL,
	status       TEXT NOT NULL,
	timestamp_ns INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_status_history_url_ts ON status_history(url, timestamp_ns);
`

type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
// WAL journaling with synchronous=FULL makes each committed write durable.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=FULL&_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// sqlite allows one writer; a single connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// ---- TargetStore ----

func (s *Store) List(ctx context.Context) ([]domain.Target, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT url, name, chat_id, created_at FROM targets ORDER BY created_at ASC, rowid ASC`)
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
	err := s.db.QueryRowContext(ctx,
		`SELECT url, name, chat_id, created_at FROM targets WHERE url = ?`, url).
		Scan(&t.URL, &t.Name, &t.ChatID, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get target: %w", err)
	}
	return &t, nil
}

func (s *Store) Upsert(ctx context.Context, url, chatID string) (domain.Target, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Target{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO targets (url, name, chat_id, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(url) DO UPDATE SET chat_id = excluded.chat_id`,
		url, domain.HostOf(url), chatID, time.Now().UTC())
	if err != nil {
		return domain.Target{}, fmt.Errorf("upsert target: %w", err)
	}

	var t domain.Target
	err = tx.QueryRowContext(ctx,
		`SELECT url, name, chat_id, created_at FROM targets WHERE url = ?`, url).
		Scan(&t.URL, &t.Name, &t.ChatID, &t.CreatedAt)
	if err != nil {
		return domain.Target{}, fmt.Errorf("reload target: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Target{}, fmt.Errorf("commit: %w", err)
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
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO targets (url, name, chat_id, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(url) DO UPDATE SET
		   name = excluded.name,
		   chat_id = CASE WHEN targets.chat_id = '' THEN excluded.chat_id ELSE targets.chat_id END`,
		t.URL, name, t.ChatID, created)
	if err != nil {
		return fmt.Errorf("ensure target: %w", err)
	}
	return nil
}

// ---- DowntimeLog ----

func (s *Store) Append(ctx context.Context, e domain.DowntimeEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO downtime_log (url, error, timestamp) VALUES (?, ?, ?)`,
		e.URL, e.Error, e.At.UTC())
	if err != nil {
		return fmt.Errorf("insert downtime: %w", err)
	}
	return nil
}

func (s *Store) Recent(ctx context.Context, limit int) ([]domain.DowntimeEntry, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT url, error, timestamp FROM downtime_log ORDER BY id DESC LIMIT ?`, limit)
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

const stateColumns = `url, status, last_downtime, error, last_error, last_checked`

func (s *Store) GetState(ctx context.Context, url string) (*domain.TargetState, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+stateColumns+` FROM target_state WHERE url = ?`, url)
	st, err := scanState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get state: %w", err)
	}
	return &st, nil
}

func (s *Store) SetState(ctx context.Context, st domain.TargetState) error {
	var down sql.NullTime
	if st.LastDowntime != nil {
		down = sql.NullTime{Time: st.LastDowntime.UTC(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO target_state (`+stateColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(url) DO UPDATE SET
		   status = excluded.status,
		   last_downtime = COALESCE(excluded.last_downtime, target_state.last_downtime),
		   error = excluded.error,
		   last_error = excluded.last_error,
		   last_checked = excluded.last_checked`,
		st.URL, string(st.Status), down, st.Error, st.LastError, st.LastChecked.UTC())
	if err != nil {
		return fmt.Errorf("set state: %w", err)
	}
	return nil
}

func (s *Store) ListStates(ctx context.Context) ([]domain.TargetState, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+stateColumns+` FROM target_state`)
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

type scanner interface {
	Scan(dest ...any) error
}

func scanState(r scanner) (domain.TargetState, error) {
	var (
		st     domain.TargetState
		status string
		down   sql.NullTime
	)
	if err := r.Scan(&st.URL, &status, &down, &st.Error, &st.LastError, &st.LastChecked); err != nil {
		return domain.TargetState{}, err
	}
	st.Status = domain.Status(status)
	if down.Valid {
		t := down.Time
		st.LastDowntime = &t
	}
	return st, nil
}

// ---- StatusHistory ----

func (s *Store) AppendStatus(ctx context.Context, e domain.StatusEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO status_history (url, status, timestamp_ns) VALUES (?, ?, ?)`,
		e.URL, string(e.Status), e.At.UnixNano())
	if err != nil {
		return fmt.Errorf("insert status event: %w", err)
	}
	return nil
}

func (s *Store) StatusSince(ctx context.Context, url string, since time.Time) (*domain.StatusEvent, []domain.StatusEvent, error) {
	var (
		prev   *domain.StatusEvent
		status string
		ns     int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT status, timestamp_ns FROM status_history
		  WHERE url = ? AND timestamp_ns < ?
		  ORDER BY timestamp_ns DESC, id DESC LIMIT 1`, url, since.UnixNano()).
		Scan(&status, &ns)
	switch {
	case err == nil:
		prev = &domain.StatusEvent{URL: url, Status: domain.Status(status), At: time.Unix(0, ns).UTC()}
	case !errors.Is(err, sql.ErrNoRows):
		return nil, nil, fmt.Errorf("status before: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT status, timestamp_ns FROM status_history
		  WHERE url = ? AND timestamp_ns >= ?
		  ORDER BY timestamp_ns ASC, id ASC`, url, since.UnixNano())
	if err != nil {
		return nil, nil, fmt.Errorf("status since: %w", err)
	}
	defer rows.Close()

	var out []domain.StatusEvent
	for rows.Next() {
		if err := rows.Scan(&status, &ns); err != nil {
			return nil, nil, fmt.Errorf("scan status event: %w", err)
		}
		out = append(out, domain.StatusEvent{URL: url, Status: domain.Status(status), At: time.Unix(0, ns).UTC()})
	}
	return prev, out, rows.Err()
}
