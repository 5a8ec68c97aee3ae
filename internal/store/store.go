// Package store keeps a local sqlite ledger of generated runs so later
// runs can pick up where earlier ones stopped.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"gridgen/internal/model"
)

const driverName = "sqlite"

// BatchSize is the number of events written per INSERT statement.
const BatchSize = 500

// ErrNotFound is returned when a run or event does not exist.
var ErrNotFound = errors.New("not found")

// Run is one recorded generation.
type Run struct {
	ID         string    `json:"id"`
	Pattern    string    `json:"pattern"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	CreatedAt  time.Time `json:"created_at"`
	EventCount int       `json:"event_count"`
}

// Store is the sqlite-backed ledger.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the ledger at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	return open(path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", 0)
}

// OpenInMemory opens a private in-memory ledger. It is held on a single
// connection; the database disappears when that connection closes.
func OpenInMemory() (*Store, error) {
	return open(fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString()), 1)
}

func open(dsn string, maxConns int) (*Store, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
		db.SetConnMaxIdleTime(0)
	}
	s := &Store{db: db, now: time.Now}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			pattern TEXT NOT NULL,
			start_date TEXT NOT NULL,
			end_date TEXT NOT NULL,
			created_at TEXT NOT NULL,
			event_count INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			at TEXT NOT NULL,
			at_unix INTEGER NOT NULL,
			day TEXT NOT NULL,
			label TEXT NOT NULL,
			PRIMARY KEY(run_id, seq),
			FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_day ON events(day);`,
		`CREATE INDEX IF NOT EXISTS idx_events_at ON events(at_unix);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// RecordRun stores a run and its events in one transaction. Events are
// inserted BatchSize rows at a time.
func (s *Store) RecordRun(ctx context.Context, pattern string, start, end time.Time, events []model.ActivityEvent) (run Run, err error) {
	run = Run{
		ID:         uuid.NewString(),
		Pattern:    pattern,
		Start:      dateOnly(start),
		End:        dateOnly(end),
		CreatedAt:  s.now().UTC(),
		EventCount: len(events),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs(id, pattern, start_date, end_date, created_at, event_count) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Pattern, run.Start.Format(time.DateOnly), run.End.Format(time.DateOnly), ts(run.CreatedAt), run.EventCount,
	)
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}

	for lo := 0; lo < len(events); lo += BatchSize {
		hi := min(lo+BatchSize, len(events))
		if err = insertEvents(ctx, tx, run.ID, lo, events[lo:hi]); err != nil {
			return Run{}, fmt.Errorf("insert events %d-%d: %w", lo, hi, err)
		}
	}

	err = tx.Commit()
	return run, err
}

func insertEvents(ctx context.Context, tx *sql.Tx, runID string, offset int, batch []model.ActivityEvent) error {
	var b strings.Builder
	b.WriteString(`INSERT INTO events(run_id, seq, at, at_unix, day, label) VALUES `)
	args := make([]any, 0, len(batch)*6)
	for i, ev := range batch {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString("(?, ?, ?, ?, ?, ?)")
		args = append(args, runID, offset+i, ev.At.Format(time.RFC3339), ev.At.Unix(), ev.At.Format(time.DateOnly), ev.Label)
	}
	_, err := tx.ExecContext(ctx, b.String(), args...)
	return err
}

// CountInYear returns how many recorded events fall in the given calendar
// year, read in each event's own zone.
func (s *Store) CountInYear(ctx context.Context, year int) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events WHERE substr(day, 1, 4) = ?`, strconv.Itoa(year),
	).Scan(&n)
	return n, err
}

// LatestEvent returns the most recent recorded event.
func (s *Store) LatestEvent(ctx context.Context) (model.ActivityEvent, error) {
	var at, label string
	err := s.db.QueryRowContext(ctx,
		`SELECT at, label FROM events ORDER BY at_unix DESC, seq DESC LIMIT 1`,
	).Scan(&at, &label)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ActivityEvent{}, ErrNotFound
	}
	if err != nil {
		return model.ActivityEvent{}, err
	}
	return model.ActivityEvent{At: parseTS(at), Label: label}, nil
}

// ListRuns returns runs newest first. limit <= 0 means all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, pattern, start_date, end_date, created_at, event_count FROM runs ORDER BY rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Run, 0)
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRun loads one run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, pattern, start_date, end_date, created_at, event_count FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	return r, err
}

// RunEvents returns a run's events in insertion order.
func (s *Store) RunEvents(ctx context.Context, id string) ([]model.ActivityEvent, error) {
	if _, err := s.GetRun(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT at, label FROM events WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.ActivityEvent, 0)
	for rows.Next() {
		var at, label string
		if err := rows.Scan(&at, &label); err != nil {
			return nil, err
		}
		out = append(out, model.ActivityEvent{At: parseTS(at), Label: label})
	}
	return out, rows.Err()
}

// DeleteRun removes a run and its events.
func (s *Store) DeleteRun(ctx context.Context, id string) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM events WHERE run_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err = translateNoRows(res); err != nil {
		return err
	}
	err = tx.Commit()
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		r                   Run
		start, end, created string
	)
	if err := s.Scan(&r.ID, &r.Pattern, &start, &end, &created, &r.EventCount); err != nil {
		return Run{}, err
	}
	r.Start, _ = time.Parse(time.DateOnly, start)
	r.End, _ = time.Parse(time.DateOnly, end)
	r.CreatedAt = parseTS(created)
	return r, nil
}

func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTS keeps the stored offset so the event's local day survives.
func parseTS(v string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}
