package trigger

import (
	"context"

	"github.com/louisbranch/chronicle/internal/services/story/domain/decision"
	"github.com/louisbranch/chronicle/internal/services/story/domain/session"
)

// DefaultThreshold is how many player actions pass before a decision is
// triggered automatically.
const DefaultThreshold = 3

// Reason explains why a decision was requested.
type Reason string

const (
	ReasonNone   Reason = ""
	ReasonAuto   Reason = "auto"
	ReasonMarker Reason = "marker"
)

// Trigger watches narrative traffic and asks the pipeline for decisions.
type Trigger struct {
	Pipeline Pipeline
	// Threshold defaults to DefaultThreshold when not positive.
	Threshold int
}

// Evaluate folds text into the session and reports whether a decision should
// be requested.
//
// While a decision is current or one is being generated the state is
// returned untouched. Otherwise the text joins the narrative tail, a
// self-introduced player name is remembered, and player actions advance the
// action counter. Marker phrasing wins over the counter.
func (t Trigger) Evaluate(state session.State, text string) (session.State, Reason) {
	if state.Current != nil || state.Generating {
		return state, ReasonNone
	}
	next := session.AppendNarrative(state, text)
	if name, ok := DetectPlayerName(text); ok {
		next.PlayerName = name
	}
	if IsPlayerAction(text) {
		next.ActionsSinceDecision++
	}
	if HasDecisionMarker(text) {
		return next, ReasonMarker
	}
	if next.ActionsSinceDecision >= t.threshold() {
		return next, ReasonAuto
	}
	return next, ReasonNone
}

// Apply presents the outcome's decision, resets the action counter, asks the
// narrative layer to skip its next response, and releases the generating
// flag. A non-empty importance overrides the decision's own.
func (t Trigger) Apply(state session.State, outcome Outcome, importance decision.Importance) session.State {
	d := outcome.Decision
	if parsed, ok := decision.ParseImportance(string(importance)); ok {
		d.Importance = parsed
	}
	next := session.Present(state, d)
	next.ActionsSinceDecision = 0
	next.SkipNarrative = true
	return session.EndGeneration(next)
}

// CheckForDecisionTriggers evaluates text and, when a decision is due,
// resolves and presents it synchronously.
func (t Trigger) CheckForDecisionTriggers(ctx context.Context, state session.State, text string) (session.State, Reason) {
	next, reason := t.Evaluate(state, text)
	if reason == ReasonNone {
		return next, reason
	}
	outcome := t.Pipeline.Resolve(ctx, Request{
		Session: next,
		Context: text,
		Force:   reason == ReasonMarker,
	})
	return t.Apply(next, outcome, ""), reason
}

// TriggerAIDecision requests a decision on demand. Extra context is added to
// the narrative tail first; importance, when set, is stamped on the result.
func (t Trigger) TriggerAIDecision(ctx context.Context, state session.State, extraContext string, importance decision.Importance) (session.State, Outcome) {
	next := session.AppendNarrative(state, extraContext)
	outcome := t.Pipeline.Resolve(ctx, Request{
		Session:    next,
		Context:    extraContext,
		Force:      true,
		Importance: importance,
	})
	return t.Apply(next, outcome, importance), outcome
}

func (t Trigger) threshold() int {
	if t.Threshold <= 0 {
		return DefaultThreshold
	}
	return t.Threshold
}
