package domain

import (
	"context"

	"github.com/louisbranch/chronicle/internal/services/story/app"
	"github.com/louisbranch/chronicle/internal/services/story/domain/decision"
	"github.com/louisbranch/chronicle/internal/services/story/domain/impact"
	"github.com/louisbranch/chronicle/internal/services/story/domain/session"
	"github.com/louisbranch/chronicle/internal/services/story/domain/trigger"
	"github.com/louisbranch/chronicle/internal/services/story/storage"
)

// StoryService is the story surface the MCP handlers drive.
type StoryService interface {
	Observe(ctx context.Context, sessionID, text string) (app.ObserveResult, error)
	TriggerDecision(ctx context.Context, sessionID, extraContext string, importance decision.Importance) (decision.Decision, trigger.Source, error)
	PresentAuthored(ctx context.Context, sessionID, key string) (decision.Decision, error)
	Select(ctx context.Context, sessionID, decisionID, optionID string, inventory []string) (app.SelectResult, error)
	Clear(ctx context.Context, sessionID string) error
	ConsumeSkipNarrative(ctx context.Context, sessionID string) (bool, error)
	SetScene(ctx context.Context, sessionID string, scene app.Scene) error
	Evolve(ctx context.Context, sessionID string) (impact.State, error)
	State(ctx context.Context, sessionID string) (session.State, error)
	History(ctx context.Context, sessionID string, limit int) (string, error)
	ListRecords(ctx context.Context, sessionID, filter string, pageSize int, pageToken string) (storage.DecisionRecordPage, error)
}

var _ StoryService = (*app.Service)(nil)
