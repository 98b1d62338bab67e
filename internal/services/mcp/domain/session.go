package domain

import (
	"context"
	"fmt"
	"strings"

	"github.com/louisbranch/chronicle/internal/services/story/app"
	"github.com/louisbranch/chronicle/internal/services/story/domain/decision"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// StoryObserveInput represents the MCP tool input for observing narrative.
type StoryObserveInput struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"story session identifier (defaults to context)"`
	Text      string `json:"text" jsonschema:"narrative or player text; player actions start with '>' or 'I '"`
}

// StoryObserveResult represents the MCP tool output for observing narrative.
type StoryObserveResult struct {
	SessionID string           `json:"session_id" jsonschema:"story session identifier"`
	Triggered bool             `json:"triggered" jsonschema:"true when the text produced a decision"`
	Reason    string           `json:"reason,omitempty" jsonschema:"auto or marker when triggered"`
	Source    string           `json:"source,omitempty" jsonschema:"remote or fallback when triggered"`
	Decision  *DecisionPayload `json:"decision,omitempty" jsonschema:"the presented decision"`
}

// StoryObserveTool defines the MCP tool schema for observing narrative.
func StoryObserveTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "story_observe",
		Description: "Feeds narrative or player text into a story session. Presents a decision when the text calls for one or enough player actions have passed.",
	}
}

// StoryObserveHandler executes a story observe request.
func StoryObserveHandler(svc StoryService, getContext func() Context) mcp.ToolHandlerFor[StoryObserveInput, StoryObserveResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input StoryObserveInput) (*mcp.CallToolResult, StoryObserveResult, error) {
		sessionID, err := resolveSessionID(input.SessionID, getContext)
		if err != nil {
			return nil, StoryObserveResult{}, err
		}
		if strings.TrimSpace(input.Text) == "" {
			return nil, StoryObserveResult{}, fmt.Errorf("text is required")
		}
		observed, err := svc.Observe(ctx, sessionID, input.Text)
		if err != nil {
			return nil, StoryObserveResult{}, toolError("story observe", err)
		}
		result := StoryObserveResult{SessionID: sessionID}
		if observed.Decision != nil {
			payload := decisionPayload(*observed.Decision)
			result.Triggered = true
			result.Reason = string(observed.Reason)
			result.Source = string(observed.Source)
			result.Decision = &payload
		}
		return nil, result, nil
	}
}

// SceneSetInput represents the MCP tool input for setting the scene.
type SceneSetInput struct {
	SessionID    string   `json:"session_id,omitempty" jsonschema:"story session identifier (defaults to context)"`
	LocationType string   `json:"location_type,omitempty" jsonschema:"town, landmark, wilderness, dungeon, or road"`
	LocationName string   `json:"location_name,omitempty" jsonschema:"place name"`
	Characters   []string `json:"characters,omitempty" jsonschema:"characters present"`
	Themes       []string `json:"themes,omitempty" jsonschema:"active themes"`
}

// SceneSetResult represents the MCP tool output for setting the scene.
type SceneSetResult struct {
	SessionID  string           `json:"session_id" jsonschema:"story session identifier"`
	Location   *LocationPayload `json:"location,omitempty" jsonschema:"current location"`
	Characters []string         `json:"characters,omitempty" jsonschema:"characters present"`
	Themes     []string         `json:"themes,omitempty" jsonschema:"active themes"`
}

// SceneSetTool defines the MCP tool schema for setting the scene.
func SceneSetTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "scene_set",
		Description: "Replaces the session's location, characters, and themes used to pick relevant history and shape decisions.",
	}
}

// SceneSetHandler executes a scene set request.
func SceneSetHandler(svc StoryService, getContext func() Context, notify ResourceUpdateNotifier) mcp.ToolHandlerFor[SceneSetInput, SceneSetResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SceneSetInput) (*mcp.CallToolResult, SceneSetResult, error) {
		sessionID, err := resolveSessionID(input.SessionID, getContext)
		if err != nil {
			return nil, SceneSetResult{}, err
		}
		location, err := parseLocation(input.LocationType, input.LocationName)
		if err != nil {
			return nil, SceneSetResult{}, err
		}
		if err := svc.SetScene(ctx, sessionID, app.Scene{
			Location:   location,
			Characters: input.Characters,
			Themes:     input.Themes,
		}); err != nil {
			return nil, SceneSetResult{}, toolError("scene set", err)
		}
		state, err := svc.State(ctx, sessionID)
		if err != nil {
			return nil, SceneSetResult{}, fmt.Errorf("read session: %w", err)
		}
		NotifyResourceUpdates(ctx, notify, SessionResourceURI(sessionID))
		return nil, SceneSetResult{
			SessionID:  sessionID,
			Location:   locationPayload(state.Location),
			Characters: state.Characters,
			Themes:     state.Themes,
		}, nil
	}
}

func parseLocation(locationType, name string) (*decision.Location, error) {
	kind := decision.LocationType(strings.ToLower(strings.TrimSpace(locationType)))
	name = strings.TrimSpace(name)
	switch kind {
	case "":
		if name != "" {
			return nil, fmt.Errorf("location_type is required with location_name")
		}
		return nil, nil
	case decision.LocationTown, decision.LocationLandmark, decision.LocationWilderness, decision.LocationDungeon, decision.LocationRoad:
		return &decision.Location{Type: kind, Name: name}, nil
	default:
		return nil, fmt.Errorf("location_type %q is invalid", locationType)
	}
}

// NarrativeSkipConsumeInput represents the MCP tool input for the skip flag.
type NarrativeSkipConsumeInput struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"story session identifier (defaults to context)"`
}

// NarrativeSkipConsumeResult represents the MCP tool output for the skip flag.
type NarrativeSkipConsumeResult struct {
	Skip bool `json:"skip" jsonschema:"true when the narrator should not respond this turn"`
}

// NarrativeSkipConsumeTool defines the MCP tool schema for the skip flag.
func NarrativeSkipConsumeTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "narrative_skip_consume",
		Description: "Reads and clears the one-shot flag asking the narrator to stay silent after a decision was presented.",
	}
}

// NarrativeSkipConsumeHandler executes a skip flag read.
func NarrativeSkipConsumeHandler(svc StoryService, getContext func() Context) mcp.ToolHandlerFor[NarrativeSkipConsumeInput, NarrativeSkipConsumeResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input NarrativeSkipConsumeInput) (*mcp.CallToolResult, NarrativeSkipConsumeResult, error) {
		sessionID, err := resolveSessionID(input.SessionID, getContext)
		if err != nil {
			return nil, NarrativeSkipConsumeResult{}, err
		}
		skip, err := svc.ConsumeSkipNarrative(ctx, sessionID)
		if err != nil {
			return nil, NarrativeSkipConsumeResult{}, toolError("consume skip flag", err)
		}
		return nil, NarrativeSkipConsumeResult{Skip: skip}, nil
	}
}

// SessionResourceTemplate defines the MCP resource template for session state.
func SessionResourceTemplate() *mcp.ResourceTemplate {
	return &mcp.ResourceTemplate{
		Name:        "story_session",
		Title:       "Story Session",
		Description: "Readable story state of a session. URI format: story://sessions/{session_id}",
		MIMEType:    "application/json",
		URITemplate: "story://sessions/{session_id}",
	}
}

// SessionResourceHandler returns a readable session state resource.
func SessionResourceHandler(svc StoryService) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if svc == nil {
			return nil, fmt.Errorf("story service is not configured")
		}
		if req == nil || req.Params == nil || req.Params.URI == "" {
			return nil, fmt.Errorf("session ID is required; use URI format story://sessions/{session_id}")
		}
		uri := req.Params.URI
		sessionID, err := parseSessionURI(uri, "")
		if err != nil {
			return nil, err
		}
		state, err := svc.State(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("read session: %w", err)
		}
		return jsonResource(uri, sessionPayload(sessionID, state))
	}
}
