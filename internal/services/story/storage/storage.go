package storage

import (
	"context"
	"errors"

	"github.com/louisbranch/chronicle/internal/services/story/domain/decision"
	"github.com/louisbranch/chronicle/internal/services/story/domain/session"
)

// ErrNotFound indicates a requested session is missing.
var ErrNotFound = errors.New("record not found")

// IndexedRecord is one decision record with its position in session history.
type IndexedRecord struct {
	SessionID string
	// Seq is the zero-based index of the record in the session history.
	Seq    int
	Record decision.Record
}

// DecisionRecordPage stores one page of decision records.
type DecisionRecordPage struct {
	Records       []IndexedRecord
	NextPageToken string
}

// SessionStore persists story session fragments.
type SessionStore interface {
	GetSession(ctx context.Context, sessionID string) (session.State, error)
	PutSession(ctx context.Context, sessionID string, state session.State) error
	// ListDecisionRecords returns one page of a session's history in
	// selection order. filter is an AIP-160 expression over decision_id,
	// option_id, importance, and selected_at.
	ListDecisionRecords(ctx context.Context, sessionID, filter string, pageSize int, pageToken string) (DecisionRecordPage, error)
}
