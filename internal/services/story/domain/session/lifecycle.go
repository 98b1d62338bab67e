package session

import (
	"fmt"
	"time"

	apperrors "github.com/louisbranch/chronicle/internal/platform/errors"
	"github.com/louisbranch/chronicle/internal/services/story/domain/decision"
)

var (
	// ErrDecisionNotCurrent matches selections for a decision that is not presented.
	ErrDecisionNotCurrent = apperrors.New(apperrors.CodeDecisionNotCurrent, "decision is not current")
	// ErrOptionNotFound matches selections of an option the decision does not offer.
	ErrOptionNotFound = apperrors.New(apperrors.CodeDecisionOptionNotFound, "decision option not found")
	// ErrNotPending matches completions of a selection that was cleared or replaced.
	ErrNotPending = apperrors.New(apperrors.CodeDecisionNotPending, "selection is not pending")
)

// Present makes d the current decision. Any previous decision is replaced;
// there is no queue of pending decisions.
func Present(state State, d decision.Decision) State {
	out := state.Clone()
	current := d.Clone()
	out.Current = &current
	out.Phase = PhasePresented
	return out
}

// BeginSelect validates a choice against the current decision and moves to
// the recording phase. On error the state is returned unchanged.
func BeginSelect(state State, decisionID, optionID string) (State, Selection, error) {
	if state.Current == nil || state.Current.ID != decisionID {
		return state, Selection{}, apperrors.WithMetadata(apperrors.CodeDecisionNotCurrent,
			fmt.Sprintf("decision %q is not current", decisionID),
			map[string]string{"DecisionID": decisionID})
	}
	if state.Phase == PhaseRecording && state.Pending != nil && state.Pending.Decision.ID == decisionID {
		return state, Selection{}, apperrors.WithMetadata(apperrors.CodeDecisionNotCurrent,
			fmt.Sprintf("decision %q is already being recorded", decisionID),
			map[string]string{"DecisionID": decisionID})
	}
	option, ok := state.Current.Option(optionID)
	if !ok {
		return state, Selection{}, apperrors.WithMetadata(apperrors.CodeDecisionOptionNotFound,
			fmt.Sprintf("option %q not found on decision %q", optionID, decisionID),
			map[string]string{"DecisionID": decisionID, "OptionID": optionID})
	}

	selection := Selection{Decision: state.Current.Clone(), Option: option}
	out := state.Clone()
	pending := selection
	out.Pending = &pending
	out.Phase = PhaseRecording
	return out, selection, nil
}

// CompleteSelect records the pending selection with the narrative that
// followed it. The current slot is cleared only while it still holds the
// selected decision, so a decision presented in the meantime survives.
func CompleteSelect(state State, selection Selection, narrative string, now time.Time) (State, decision.Record, error) {
	if state.Pending == nil ||
		state.Pending.Decision.ID != selection.Decision.ID ||
		state.Pending.Option.ID != selection.Option.ID {
		return state, decision.Record{}, apperrors.WithMetadata(apperrors.CodeDecisionNotPending,
			fmt.Sprintf("selection of %q on %q is not pending", selection.Option.ID, selection.Decision.ID),
			map[string]string{"DecisionID": selection.Decision.ID, "OptionID": selection.Option.ID})
	}

	record := decision.NewRecord(state.Pending.Decision, state.Pending.Option, narrative, now)
	out := state.Clone()
	out.Pending = nil
	out.History = append(out.History, record)
	if out.Current != nil && out.Current.ID == selection.Decision.ID {
		out.Current = nil
	}
	if out.Current == nil {
		out.Phase = PhaseNone
	} else {
		out.Phase = PhasePresented
	}
	return out, record, nil
}

// Select validates and records a choice in one step.
func Select(state State, decisionID, optionID, narrative string, now time.Time) (State, decision.Record, error) {
	next, selection, err := BeginSelect(state, decisionID, optionID)
	if err != nil {
		return state, decision.Record{}, err
	}
	return CompleteSelect(next, selection, narrative, now)
}

// Clear abandons the current decision without recording it.
func Clear(state State) State {
	out := state.Clone()
	out.Current = nil
	out.Pending = nil
	out.Phase = PhaseNone
	return EndGeneration(out)
}

// BeginGeneration takes the generating soft lock at now.
func BeginGeneration(state State, now time.Time) State {
	out := state.Clone()
	out.Generating = true
	out.GeneratingSince = now.UTC()
	return out
}

// EndGeneration releases the generating soft lock.
func EndGeneration(state State) State {
	if !state.Generating && state.GeneratingSince.IsZero() {
		return state
	}
	out := state.Clone()
	out.Generating = false
	out.GeneratingSince = time.Time{}
	return out
}

// ReleaseStaleGeneration releases a generating lock held for at least ttl.
// A lock without a start time counts as stale. It reports whether the lock
// was released.
func ReleaseStaleGeneration(state State, now time.Time, ttl time.Duration) (State, bool) {
	if !state.Generating {
		return state, false
	}
	if !state.GeneratingSince.IsZero() && now.Sub(state.GeneratingSince) < ttl {
		return state, false
	}
	return EndGeneration(state), true
}

// ConsumeSkipNarrative reads and resets the skip-narrative flag.
func ConsumeSkipNarrative(state State) (State, bool) {
	if !state.SkipNarrative {
		return state, false
	}
	out := state.Clone()
	out.SkipNarrative = false
	return out, true
}
