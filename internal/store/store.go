package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/session-reasoner/internal/audit"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS audit_log (
	seq              INTEGER PRIMARY KEY AUTOINCREMENT,
	record_hash      TEXT NOT NULL UNIQUE,
	prev_hash        TEXT,
	session_id       TEXT NOT NULL,
	subject_id       TEXT NOT NULL,
	turn             TEXT NOT NULL,
	escalation_level TEXT NOT NULL,
	record_json      TEXT NOT NULL,
	created_at       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS audit_log_session ON audit_log(session_id, seq);

CREATE TABLE IF NOT EXISTS session_index (
	session_id          TEXT PRIMARY KEY,
	subject_id          TEXT NOT NULL,
	created_at          TEXT NOT NULL,
	turns               INTEGER NOT NULL DEFAULT 0,
	needs_more_context  INTEGER NOT NULL DEFAULT 0,
	last_audit_ref      TEXT,
	updated_at          TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS session_index_subject ON session_index(subject_id, created_at);
`

// #endregion schema

// #region session-entry
// SessionEntry is one row of the session index.
type SessionEntry struct {
	SessionID        string
	SubjectID        string
	CreatedAt        time.Time
	Turns            int
	NeedsMoreContext bool
	LastAuditRef     string
	UpdatedAt        time.Time
}

// #endregion session-entry

// #region store-struct
// Store holds the audit log and session index in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// single writer; concurrent turns queue on the pool
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion constructor

// #region record-turn
// RecordTurn appends the audit record and updates the session index in one
// transaction.
func (s *Store) RecordTurn(ctx context.Context, rec audit.Record, entry SessionEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := audit.Append(ctx, tx, rec); err != nil {
		return err
	}
	if err := upsertSession(ctx, tx, entry); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func upsertSession(ctx context.Context, x audit.Execer, e SessionEntry) error {
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now().UTC()
	}
	_, err := x.ExecContext(ctx,
		`INSERT INTO session_index (session_id, subject_id, created_at, turns, needs_more_context, last_audit_ref, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
			turns = excluded.turns,
			needs_more_context = excluded.needs_more_context,
			last_audit_ref = excluded.last_audit_ref,
			updated_at = excluded.updated_at`,
		e.SessionID,
		e.SubjectID,
		e.CreatedAt.UTC().Format(time.RFC3339),
		e.Turns,
		boolToInt(e.NeedsMoreContext),
		e.LastAuditRef,
		e.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert session %s: %w", e.SessionID, err)
	}
	return nil
}

// UpsertSession writes a session index row outside of a turn.
func (s *Store) UpsertSession(ctx context.Context, e SessionEntry) error {
	return upsertSession(ctx, s.db, e)
}

// #endregion record-turn

// #region queries
// PriorSessions lists the indexed sessions of a subject other than exclude,
// oldest first.
func (s *Store) PriorSessions(ctx context.Context, subjectID, exclude string) ([]SessionEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, subject_id, created_at, turns, needs_more_context, COALESCE(last_audit_ref, ''), updated_at
		 FROM session_index WHERE subject_id = ? AND session_id != ?
		 ORDER BY created_at ASC, session_id ASC`,
		subjectID, exclude,
	)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionEntry
	for rows.Next() {
		e, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Session returns the index row for one session.
func (s *Store) Session(ctx context.Context, sessionID string) (SessionEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, subject_id, created_at, turns, needs_more_context, COALESCE(last_audit_ref, ''), updated_at
		 FROM session_index WHERE session_id = ?`, sessionID)
	e, err := scanSession(row)
	if err == sql.ErrNoRows {
		return SessionEntry{}, fmt.Errorf("session %s not indexed", sessionID)
	}
	return e, err
}

// Records returns a session's audit records in append order.
func (s *Store) Records(ctx context.Context, sessionID string) ([]audit.Record, error) {
	return audit.List(ctx, s.db, sessionID)
}

// SubjectRecords returns the audit records of every session of a subject in
// append order.
func (s *Store) SubjectRecords(ctx context.Context, subjectID string) ([]audit.Record, error) {
	return audit.ListSubject(ctx, s.db, subjectID)
}

// VerifyChain re-verifies every record of a session and its prev_hash links.
// Returns the number of records checked.
func (s *Store) VerifyChain(ctx context.Context, sessionID string) (int, error) {
	recs, err := s.Records(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	if err := audit.VerifyChain(sessionID, recs); err != nil {
		return len(recs), err
	}
	return len(recs), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(r scanner) (SessionEntry, error) {
	var (
		e                SessionEntry
		created, updated string
		needsMoreContext int
	)
	if err := r.Scan(&e.SessionID, &e.SubjectID, &created, &e.Turns, &needsMoreContext, &e.LastAuditRef, &updated); err != nil {
		if err == sql.ErrNoRows {
			return SessionEntry{}, err
		}
		return SessionEntry{}, fmt.Errorf("scan session: %w", err)
	}
	var err error
	if e.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
		return SessionEntry{}, fmt.Errorf("parse created_at: %w", err)
	}
	if e.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return SessionEntry{}, fmt.Errorf("parse updated_at: %w", err)
	}
	e.NeedsMoreContext = needsMoreContext != 0
	return e, nil
}

// #endregion queries

// #region helpers
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// #endregion helpers
