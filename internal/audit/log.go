package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// #region append
// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Append writes a record to the audit_log table. Records are keyed by hash;
// appending the same record twice is a no-op, and there is no update path.
func Append(ctx context.Context, db Execer, rec Record) error {
	if rec.RecordHash == "" {
		return fmt.Errorf("append audit record: missing record hash")
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}
	entry := Entry{
		RecordHash: rec.RecordHash,
		PrevHash:   rec.PrevHash,
		SessionID:  rec.SessionID,
		SubjectID:  rec.SubjectID,
		Turn:       rec.Turn,
		Escalation: rec.Escalation.Level,
		RecordJSON: string(raw),
		CreatedAt:  time.Now().UTC(),
	}

	_, err = db.ExecContext(ctx,
		`INSERT OR IGNORE INTO audit_log (record_hash, prev_hash, session_id, subject_id, turn, escalation_level, record_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RecordHash,
		nullIfEmpty(entry.PrevHash),
		entry.SessionID,
		entry.SubjectID,
		entry.Turn,
		string(entry.Escalation),
		entry.RecordJSON,
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}
	return nil
}

// #endregion append

// #region list
// List returns a session's records in append order.
func List(ctx context.Context, db *sql.DB, sessionID string) ([]Record, error) {
	return list(ctx, db, `SELECT record_json FROM audit_log WHERE session_id = ? ORDER BY seq ASC`, sessionID)
}

// ListSubject returns every record of a subject across sessions, in append
// order.
func ListSubject(ctx context.Context, db *sql.DB, subjectID string) ([]Record, error) {
	return list(ctx, db, `SELECT record_json FROM audit_log WHERE subject_id = ? ORDER BY seq ASC`, subjectID)
}

func list(ctx context.Context, db *sql.DB, query string, arg string) ([]Record, error) {
	rows, err := db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("list audit records: %w", err)
		}
		rec, err := Decode([]byte(raw))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// #endregion list

// #region chain
// VerifyChain checks every record's hash and that each prev_hash links to
// the record before it.
func VerifyChain(sessionID string, recs []Record) error {
	prev := ""
	for _, rec := range recs {
		if err := VerifyErr(rec); err != nil {
			return &ChainError{SessionID: sessionID, Turn: rec.Turn, Reason: err.Error()}
		}
		if rec.PrevHash != prev {
			return &ChainError{SessionID: sessionID, Turn: rec.Turn, Reason: fmt.Sprintf("prev_hash %q does not link to %q", rec.PrevHash, prev)}
		}
		prev = rec.RecordHash
	}
	return nil
}

// #endregion chain

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
