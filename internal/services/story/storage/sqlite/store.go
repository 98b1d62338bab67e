package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/louisbranch/chronicle/internal/platform/errors"
	sqlitemigrate "github.com/louisbranch/chronicle/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/chronicle/internal/services/story/domain/decision"
	"github.com/louisbranch/chronicle/internal/services/story/domain/session"
	"github.com/louisbranch/chronicle/internal/services/story/storage"
	"github.com/louisbranch/chronicle/internal/services/story/storage/filter"
	"github.com/louisbranch/chronicle/internal/services/story/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists story sessions in SQLite.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite story store and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(ctx, sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// GetSession returns the stored story fragment for sessionID.
func (s *Store) GetSession(ctx context.Context, sessionID string) (session.State, error) {
	if err := ctx.Err(); err != nil {
		return session.State{}, err
	}
	if s == nil || s.sqlDB == nil {
		return session.State{}, fmt.Errorf("storage is not configured")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return session.State{}, fmt.Errorf("session id is required")
	}

	var stateJSON string
	err := s.sqlDB.QueryRowContext(ctx, `SELECT state_json FROM sessions WHERE id = ?`, sessionID).Scan(&stateJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return session.State{}, storage.ErrNotFound
		}
		return session.State{}, fmt.Errorf("get session: %w", err)
	}

	state := session.New()
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		return session.State{}, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return state.Clone(), nil
}

// PutSession saves state for sessionID and reindexes its decision history.
func (s *Store) PutSession(ctx context.Context, sessionID string, state session.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sessionID, err)
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin put session: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (id, state_json, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET state_json = excluded.state_json, updated_at = excluded.updated_at`,
		sessionID, string(stateJSON), toMillis(s.now()),
	); err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	indexed, err := indexedRecords(ctx, tx, sessionID)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM decision_records WHERE session_id = ? AND seq >= ?`,
		sessionID, len(state.History),
	); err != nil {
		return fmt.Errorf("trim decision records: %w", err)
	}
	for seq, record := range state.History {
		recordJSON, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("encode decision record %d: %w", seq, err)
		}
		existing, ok := indexed[seq]
		if ok && existing == string(recordJSON) {
			continue
		}
		if ok {
			if _, err := tx.ExecContext(ctx,
				`UPDATE decision_records
				 SET decision_id = ?, option_id = ?, importance = ?, selected_at = ?, record_json = ?
				 WHERE session_id = ? AND seq = ?`,
				record.DecisionID, record.SelectedOptionID, string(record.Importance),
				toMillis(record.Timestamp), string(recordJSON), sessionID, seq,
			); err != nil {
				return fmt.Errorf("reindex decision record %d: %w", seq, err)
			}
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO decision_records (
			   session_id, seq, decision_id, option_id, importance, selected_at, record_json
			 ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			sessionID, seq, record.DecisionID, record.SelectedOptionID,
			string(record.Importance), toMillis(record.Timestamp), string(recordJSON),
		); err != nil {
			if isDecisionRecordUniqueViolation(err) {
				return fmt.Errorf("decision record %d already indexed: %w", seq, err)
			}
			return fmt.Errorf("index decision record %d: %w", seq, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit put session: %w", err)
	}
	return nil
}

// indexedRecords maps seq to the stored record JSON for a session.
func indexedRecords(ctx context.Context, tx *sql.Tx, sessionID string) (map[int]string, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT seq, record_json FROM decision_records WHERE session_id = ?`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("read decision records: %w", err)
	}
	defer rows.Close()

	indexed := map[int]string{}
	for rows.Next() {
		var (
			seq        int
			recordJSON string
		)
		if err := rows.Scan(&seq, &recordJSON); err != nil {
			return nil, fmt.Errorf("scan decision record: %w", err)
		}
		indexed[seq] = recordJSON
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read decision records: %w", err)
	}
	return indexed, nil
}

// ListDecisionRecords returns one page of a session's decision history.
func (s *Store) ListDecisionRecords(ctx context.Context, sessionID, filterStr string, pageSize int, pageToken string) (storage.DecisionRecordPage, error) {
	if err := ctx.Err(); err != nil {
		return storage.DecisionRecordPage{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.DecisionRecordPage{}, fmt.Errorf("storage is not configured")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return storage.DecisionRecordPage{}, fmt.Errorf("session id is required")
	}
	if pageSize <= 0 {
		return storage.DecisionRecordPage{}, fmt.Errorf("page size must be greater than zero")
	}

	cond, err := filter.ParseRecordFilter(filterStr)
	if err != nil {
		return storage.DecisionRecordPage{}, apperrors.Wrap(apperrors.CodeInvalidFilter, fmt.Sprintf("invalid filter %q", filterStr), err)
	}

	query := `SELECT seq, record_json FROM decision_records WHERE session_id = ?`
	args := []any{sessionID}
	if pageToken = strings.TrimSpace(pageToken); pageToken != "" {
		after, err := strconv.Atoi(pageToken)
		if err != nil || after < 0 {
			return storage.DecisionRecordPage{}, fmt.Errorf("invalid page token %q", pageToken)
		}
		query += ` AND seq > ?`
		args = append(args, after)
	}
	if cond.Clause != "" {
		query += ` AND ` + cond.Clause
		args = append(args, cond.Params...)
	}
	query += ` ORDER BY seq ASC LIMIT ?`
	args = append(args, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return storage.DecisionRecordPage{}, fmt.Errorf("list decision records: %w", err)
	}
	defer rows.Close()

	page := storage.DecisionRecordPage{Records: make([]storage.IndexedRecord, 0, pageSize)}
	for rows.Next() {
		var seq int
		var recordJSON string
		if err := rows.Scan(&seq, &recordJSON); err != nil {
			return storage.DecisionRecordPage{}, fmt.Errorf("list decision records: %w", err)
		}
		var record decision.Record
		if err := json.Unmarshal([]byte(recordJSON), &record); err != nil {
			return storage.DecisionRecordPage{}, fmt.Errorf("decode decision record %d: %w", seq, err)
		}
		page.Records = append(page.Records, storage.IndexedRecord{SessionID: sessionID, Seq: seq, Record: record})
	}
	if err := rows.Err(); err != nil {
		return storage.DecisionRecordPage{}, fmt.Errorf("list decision records: %w", err)
	}
	if len(page.Records) > pageSize {
		page.NextPageToken = strconv.Itoa(page.Records[pageSize-1].Seq)
		page.Records = page.Records[:pageSize]
	}
	return page, nil
}

func isDecisionRecordUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint failed") &&
		strings.Contains(message, "decision_records")
}

var _ storage.SessionStore = (*Store)(nil)
