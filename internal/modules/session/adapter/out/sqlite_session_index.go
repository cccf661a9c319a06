package out

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"mccall/internal/modules/session/domain"
	sessionout "mccall/internal/modules/session/port/out"
	"mccall/internal/platform/tx"

	_ "modernc.org/sqlite"
)

const timeLayout = "2006-01-02T15:04:05Z07:00"

type SQLiteSessionIndex struct {
	db *sql.DB
}

func OpenSQLite(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return db, nil
}

func NewSQLiteSessionIndex(db *sql.DB) (sessionout.SessionIndex, error) {
	index := &SQLiteSessionIndex{db: db}
	if err := index.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return index, nil
}

func (s *SQLiteSessionIndex) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS sessions (
  id TEXT PRIMARY KEY,
  routine_id TEXT NOT NULL,
  routine_name TEXT NOT NULL,
  started_at TEXT NOT NULL,
  ended_at TEXT NOT NULL,
  total_seconds INTEGER NOT NULL,
  work_seconds INTEGER NOT NULL,
  break_seconds INTEGER NOT NULL,
  cycles INTEGER NOT NULL,
  check_in_done INTEGER NOT NULL,
  check_in_skip INTEGER NOT NULL,
  muted INTEGER NOT NULL,
  recovered INTEGER NOT NULL,
  note_path TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS sessions_started_at ON sessions (started_at);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create sessions table: %w", err)
	}
	return nil
}

func (s *SQLiteSessionIndex) Reset(ctx context.Context) error {
	if _, err := tx.From(ctx, s.db).ExecContext(ctx, `DELETE FROM sessions`); err != nil {
		return fmt.Errorf("reset sessions: %w", err)
	}
	return nil
}

func (s *SQLiteSessionIndex) Upsert(ctx context.Context, session domain.Session, path string) error {
	const stmt = `
INSERT INTO sessions (id, routine_id, routine_name, started_at, ended_at, total_seconds, work_seconds, break_seconds, cycles, check_in_done, check_in_skip, muted, recovered, note_path)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  routine_id=excluded.routine_id,
  routine_name=excluded.routine_name,
  started_at=excluded.started_at,
  ended_at=excluded.ended_at,
  total_seconds=excluded.total_seconds,
  work_seconds=excluded.work_seconds,
  break_seconds=excluded.break_seconds,
  cycles=excluded.cycles,
  check_in_done=excluded.check_in_done,
  check_in_skip=excluded.check_in_skip,
  muted=excluded.muted,
  recovered=excluded.recovered,
  note_path=excluded.note_path;
`
	_, err := tx.From(ctx, s.db).ExecContext(ctx, stmt,
		session.ID,
		session.RoutineID,
		session.RoutineName,
		session.StartedAt.UTC().Format(timeLayout),
		session.EndedAt.UTC().Format(timeLayout),
		session.Totals.TotalSeconds,
		session.Totals.WorkSeconds,
		session.Totals.BreakSeconds,
		session.Totals.Cycles,
		session.Totals.CheckInDone,
		session.Totals.CheckInSkip,
		boolInt(session.MutedDuringSession),
		boolInt(session.Recovered),
		path,
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// Range returns index rows only; step runs stay in the notes.
func (s *SQLiteSessionIndex) Range(ctx context.Context, from, to time.Time) ([]domain.Session, error) {
	const query = `
SELECT id, routine_id, routine_name, started_at, ended_at, total_seconds, work_seconds, break_seconds, cycles, check_in_done, check_in_skip, muted, recovered
FROM sessions
WHERE started_at >= ? AND started_at <= ?
ORDER BY started_at;
`
	rows, err := tx.From(ctx, s.db).QueryContext(ctx, query, from.UTC().Format(timeLayout), to.UTC().Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []domain.Session{}
	for rows.Next() {
		var (
			session            domain.Session
			startedAt, endedAt string
			muted, recovered   int
		)
		err := rows.Scan(
			&session.ID,
			&session.RoutineID,
			&session.RoutineName,
			&startedAt,
			&endedAt,
			&session.Totals.TotalSeconds,
			&session.Totals.WorkSeconds,
			&session.Totals.BreakSeconds,
			&session.Totals.Cycles,
			&session.Totals.CheckInDone,
			&session.Totals.CheckInSkip,
			&muted,
			&recovered,
		)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if session.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if session.EndedAt, err = time.Parse(timeLayout, endedAt); err != nil {
			return nil, fmt.Errorf("parse ended_at: %w", err)
		}
		session.MutedDuringSession = muted != 0
		session.Recovered = recovered != 0
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
