package domain

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ImpactStateInput represents the MCP tool input for reading impacts.
type ImpactStateInput struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"story session identifier (defaults to context)"`
}

// ImpactStateResult represents the MCP tool output for impact reads and
// evolution.
type ImpactStateResult struct {
	SessionID string             `json:"session_id" jsonschema:"story session identifier"`
	Impacts   ImpactStatePayload `json:"impacts" jsonschema:"aggregate impact state"`
}

// ImpactStateTool defines the MCP tool schema for reading impacts.
func ImpactStateTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "impact_state",
		Description: "Returns the session's reputation, relationship, world-state, and story-arc values.",
	}
}

// ImpactStateHandler executes an impact state read.
func ImpactStateHandler(svc StoryService, getContext func() Context) mcp.ToolHandlerFor[ImpactStateInput, ImpactStateResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ImpactStateInput) (*mcp.CallToolResult, ImpactStateResult, error) {
		sessionID, err := resolveSessionID(input.SessionID, getContext)
		if err != nil {
			return nil, ImpactStateResult{}, err
		}
		state, err := svc.State(ctx, sessionID)
		if err != nil {
			return nil, ImpactStateResult{}, toolError("impact state", err)
		}
		return nil, ImpactStateResult{SessionID: sessionID, Impacts: impactStatePayload(state.Impacts)}, nil
	}
}

// ImpactEvolveTool defines the MCP tool schema for decaying impacts.
func ImpactEvolveTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "impact_evolve",
		Description: "Halves each temporary impact whose duration has elapsed, once, and returns the resulting impact state.",
	}
}

// ImpactEvolveHandler executes an impact evolution request.
func ImpactEvolveHandler(svc StoryService, getContext func() Context) mcp.ToolHandlerFor[ImpactStateInput, ImpactStateResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ImpactStateInput) (*mcp.CallToolResult, ImpactStateResult, error) {
		sessionID, err := resolveSessionID(input.SessionID, getContext)
		if err != nil {
			return nil, ImpactStateResult{}, err
		}
		state, err := svc.Evolve(ctx, sessionID)
		if err != nil {
			return nil, ImpactStateResult{}, toolError("impact evolve", err)
		}
		return nil, ImpactStateResult{SessionID: sessionID, Impacts: impactStatePayload(state)}, nil
	}
}
