package app

import (
	"context"

	"github.com/louisbranch/chronicle/internal/services/story/domain/decision"
)

// NarrativeRequest is what the narrator is told about a choice.
type NarrativeRequest struct {
	OptionText      string
	Prompt          string
	RecentNarrative []string
	Inventory       []string
}

// NarrativeResponse is the narrator's continuation after a choice.
type NarrativeResponse struct {
	Narrative     string
	AcquiredItems []string
	RemovedItems  []string
}

// Narrator continues the story after the player chooses an option.
type Narrator interface {
	RespondToChoice(ctx context.Context, req NarrativeRequest) (NarrativeResponse, error)
}

// Notifier pushes out-of-band signals to whatever UI is watching a session.
type Notifier interface {
	DecisionReady(ctx context.Context, sessionID string, d decision.Decision)
	DecisionCleared(ctx context.Context, sessionID string)
	ForceUpdate(ctx context.Context, sessionID string)
}

type noopNotifier struct{}

func (noopNotifier) DecisionReady(context.Context, string, decision.Decision) {}
func (noopNotifier) DecisionCleared(context.Context, string)                 {}
func (noopNotifier) ForceUpdate(context.Context, string)                     {}
