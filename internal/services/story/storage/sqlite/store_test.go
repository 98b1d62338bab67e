package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"testing"
	"time"

	apperrors "github.com/louisbranch/chronicle/internal/platform/errors"
	"github.com/louisbranch/chronicle/internal/services/story/domain/decision"
	"github.com/louisbranch/chronicle/internal/services/story/domain/impact"
	"github.com/louisbranch/chronicle/internal/services/story/domain/session"
	"github.com/louisbranch/chronicle/internal/services/story/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "story.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	})
	return store
}

func historyState(n int) session.State {
	base := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	importances := []decision.Importance{decision.ImportanceMinor, decision.ImportanceCritical}
	state := session.New()
	for i := range n {
		d := decision.Decision{
			ID:         fmt.Sprintf("d%d", i),
			Prompt:     fmt.Sprintf("Prompt %d", i),
			Importance: importances[i%len(importances)],
			Options:    []decision.Option{{ID: "o1", Text: "Go"}},
		}
		state.History = append(state.History, decision.NewRecord(d, d.Options[0], "", base.Add(time.Duration(i)*time.Hour)))
	}
	return state
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(context.Background(), " "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestGetSessionNotFound(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.GetSession(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestPutGetSession(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	state := session.Present(historyState(2), decision.Decision{ID: "current", Prompt: "Now what?"})
	state.Impacts = state.Impacts.Apply(impact.Impact{Target: impact.StoryArc{Arc: "main"}, Value: 30})
	state.PlayerName = "Aria"

	if err := store.PutSession(ctx, "s1", state); err != nil {
		t.Fatalf("PutSession: %v", err)
	}
	got, err := store.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Current == nil || got.Current.ID != "current" || got.PlayerName != "Aria" {
		t.Fatalf("got = %#v", got)
	}
	if len(got.History) != 2 || got.History[1].DecisionID != "d1" {
		t.Fatalf("history = %#v", got.History)
	}
	if value, _ := got.Impacts.Value(impact.StoryArc{Arc: "main"}); value != 30 {
		t.Fatalf("story arc = %v, want 30", value)
	}

	state.History = state.History[:1]
	if err := store.PutSession(ctx, "s1", state); err != nil {
		t.Fatalf("PutSession overwrite: %v", err)
	}
	page, err := store.ListDecisionRecords(ctx, "s1", "", 10, "")
	if err != nil {
		t.Fatalf("ListDecisionRecords: %v", err)
	}
	if len(page.Records) != 1 {
		t.Fatalf("records after overwrite = %d, want 1", len(page.Records))
	}
}

func TestPutSessionReindexesChangedRecords(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	full := historyState(4)
	seed := session.New()
	seed.History = full.History[:3]
	if err := store.PutSession(ctx, "s1", seed); err != nil {
		t.Fatalf("PutSession: %v", err)
	}
	// Rows still marked after a put were not rewritten.
	if _, err := store.sqlDB.ExecContext(ctx, `UPDATE decision_records SET importance = 'marked'`); err != nil {
		t.Fatalf("mark rows: %v", err)
	}

	edited := slices.Clone(full.History[:3])
	edited[1].Narrative = "The road forks."

	tests := []struct {
		name       string
		history    []decision.Record
		wantSeqs   []int
		wantMarked []int
	}{
		{name: "unchanged", history: full.History[:3], wantSeqs: []int{0, 1, 2}, wantMarked: []int{0, 1, 2}},
		{name: "edited record", history: edited, wantSeqs: []int{0, 1, 2}, wantMarked: []int{0, 2}},
		{name: "shorter history", history: edited[:2], wantSeqs: []int{0, 1}, wantMarked: []int{0}},
		{name: "appended record", history: append(slices.Clone(edited[:2]), full.History[2:]...), wantSeqs: []int{0, 1, 2, 3}, wantMarked: []int{0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := session.New()
			state.History = tt.history
			if err := store.PutSession(ctx, "s1", state); err != nil {
				t.Fatalf("PutSession: %v", err)
			}
			seqs, marked := indexedSeqs(t, store, "s1")
			if !slices.Equal(seqs, tt.wantSeqs) {
				t.Fatalf("seqs = %v, want %v", seqs, tt.wantSeqs)
			}
			if !slices.Equal(marked, tt.wantMarked) {
				t.Fatalf("untouched = %v, want %v", marked, tt.wantMarked)
			}
		})
	}
}

func indexedSeqs(t *testing.T, store *Store, sessionID string) (seqs, marked []int) {
	t.Helper()
	rows, err := store.sqlDB.Query(
		`SELECT seq, importance FROM decision_records WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		t.Fatalf("query records: %v", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			seq        int
			importance string
		)
		if err := rows.Scan(&seq, &importance); err != nil {
			t.Fatalf("scan record: %v", err)
		}
		seqs = append(seqs, seq)
		if importance == "marked" {
			marked = append(marked, seq)
		}
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("read records: %v", err)
	}
	return seqs, marked
}

func TestListDecisionRecordsPaging(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.PutSession(ctx, "s1", historyState(5)); err != nil {
		t.Fatalf("PutSession: %v", err)
	}

	var ids []string
	token := ""
	for range 3 {
		page, err := store.ListDecisionRecords(ctx, "s1", "", 2, token)
		if err != nil {
			t.Fatalf("ListDecisionRecords: %v", err)
		}
		for _, item := range page.Records {
			ids = append(ids, item.Record.DecisionID)
		}
		token = page.NextPageToken
		if token == "" {
			break
		}
	}
	want := []string{"d0", "d1", "d2", "d3", "d4"}
	if fmt.Sprint(ids) != fmt.Sprint(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
}

func TestListDecisionRecordsFilter(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.PutSession(ctx, "s1", historyState(5)); err != nil {
		t.Fatalf("PutSession: %v", err)
	}

	page, err := store.ListDecisionRecords(ctx, "s1", `importance = "critical"`, 10, "")
	if err != nil {
		t.Fatalf("ListDecisionRecords: %v", err)
	}
	if len(page.Records) != 2 || page.Records[0].Record.DecisionID != "d1" || page.Records[1].Record.DecisionID != "d3" {
		t.Fatalf("records = %#v", page.Records)
	}

	page, err = store.ListDecisionRecords(ctx, "s1", `selected_at >= timestamp("2026-03-04T15:00:00Z")`, 10, "")
	if err != nil {
		t.Fatalf("ListDecisionRecords timestamp: %v", err)
	}
	if len(page.Records) != 2 || page.Records[0].Seq != 3 {
		t.Fatalf("records = %#v", page.Records)
	}

	_, err = store.ListDecisionRecords(ctx, "s1", `bogus = "x"`, 10, "")
	if apperrors.CodeOf(err) != apperrors.CodeInvalidFilter {
		t.Fatalf("code = %q, want %q", apperrors.CodeOf(err), apperrors.CodeInvalidFilter)
	}
}

func TestListDecisionRecordsValidation(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if _, err := store.ListDecisionRecords(ctx, "s1", "", 0, ""); err == nil {
		t.Fatal("expected error for zero page size")
	}
	if _, err := store.ListDecisionRecords(ctx, "s1", "", 5, "abc"); err == nil {
		t.Fatal("expected error for bad page token")
	}
}
