package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"clipper/internal/formats"
)

// SQLiteStore persists sessions so a restart does not lose half-finished conversations.
type SQLiteStore struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

const sessionColumns = "chat_id, state, resource, title, range_start, range_end, quality, fallback, options_json, mode, generation, run_id, updated_at"

// OpenSQLite opens or creates the session database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure state directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &SQLiteStore{db: db, path: path, now: time.Now}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) Get(ctx context.Context, chatID int64) (Session, bool, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+sessionColumns+" FROM sessions WHERE chat_id = ?", chatID)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, fmt.Errorf("get session %d: %w", chatID, err)
	}
	return sess, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, sess Session) error {
	if err := sess.Validate(); err != nil {
		return err
	}
	optionsJSON, err := json.Marshal(sess.Options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}
	err = s.execWithRetry(ctx, `INSERT INTO sessions (`+sessionColumns+`)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(chat_id) DO UPDATE SET
            state = excluded.state,
            resource = excluded.resource,
            title = excluded.title,
            range_start = excluded.range_start,
            range_end = excluded.range_end,
            quality = excluded.quality,
            fallback = excluded.fallback,
            options_json = excluded.options_json,
            mode = excluded.mode,
            generation = excluded.generation,
            run_id = excluded.run_id,
            updated_at = excluded.updated_at`,
		sess.ChatID,
		string(sess.State),
		nullableString(sess.Resource),
		nullableString(sess.Title),
		sess.RangeStart,
		sess.RangeEnd,
		sess.Quality,
		boolToInt(sess.Fallback),
		string(optionsJSON),
		string(sess.Mode),
		int64(sess.Generation),
		nullableString(sess.RunID),
		s.timestamp(),
	)
	if err != nil {
		return fmt.Errorf("put session %d: %w", sess.ChatID, err)
	}
	return nil
}

func (s *SQLiteStore) Reset(ctx context.Context, chatID int64) error {
	err := s.execWithRetry(ctx, `UPDATE sessions SET
            state = ?, resource = NULL, title = NULL, range_start = 0, range_end = 0,
            quality = 0, fallback = 0, options_json = NULL, mode = ?, run_id = NULL, updated_at = ?
        WHERE chat_id = ?`,
		string(StateAwaitingResource), string(ModeVideo), s.timestamp(), chatID)
	if err != nil {
		return fmt.Errorf("reset session %d: %w", chatID, err)
	}
	return nil
}

// List returns every stored session ordered by chat.
func (s *SQLiteStore) List(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+sessionColumns+" FROM sessions ORDER BY chat_id")
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// ResetInterrupted resets every session left running by a previous process.
// No run survives a restart, so such sessions would otherwise stay busy forever.
func (s *SQLiteStore) ResetInterrupted(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT chat_id FROM sessions WHERE state = ?", string(StateRunning))
	if err != nil {
		return nil, fmt.Errorf("find interrupted sessions: %w", err)
	}
	var chats []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan interrupted session: %w", err)
		}
		chats = append(chats, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, id := range chats {
		if err := s.Reset(ctx, id); err != nil {
			return nil, err
		}
	}
	return chats, nil
}

func scanSession(scanner interface{ Scan(dest ...any) error }) (Session, error) {
	var (
		sess        Session
		state       string
		resource    sql.NullString
		title       sql.NullString
		fallback    int
		optionsJSON sql.NullString
		mode        string
		generation  int64
		runID       sql.NullString
		updatedRaw  string
	)
	if err := scanner.Scan(
		&sess.ChatID,
		&state,
		&resource,
		&title,
		&sess.RangeStart,
		&sess.RangeEnd,
		&sess.Quality,
		&fallback,
		&optionsJSON,
		&mode,
		&generation,
		&runID,
		&updatedRaw,
	); err != nil {
		return Session{}, err
	}
	sess.State = State(state)
	sess.Resource = resource.String
	sess.Title = title.String
	sess.Fallback = fallback != 0
	sess.Mode = Mode(mode)
	sess.Generation = uint64(generation)
	sess.RunID = runID.String
	if optionsJSON.Valid && strings.TrimSpace(optionsJSON.String) != "" && optionsJSON.String != "null" {
		var opts []formats.Option
		if err := json.Unmarshal([]byte(optionsJSON.String), &opts); err != nil {
			return Session{}, fmt.Errorf("decode options: %w", err)
		}
		sess.Options = opts
	}
	if ts, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
		sess.UpdatedAt = ts
	}
	return sess, nil
}

func (s *SQLiteStore) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func (s *SQLiteStore) execWithRetry(ctx context.Context, query string, args ...any) error {
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil || !isSQLiteBusy(lastErr) {
			return lastErr
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay = min(delay*2, busyRetryMaxBackoff)
	}
	return lastErr
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
