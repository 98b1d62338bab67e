package domain

import (
	"context"
	"fmt"
	"strings"

	"github.com/louisbranch/chronicle/internal/services/story/domain/decision"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// DecisionTriggerInput represents the MCP tool input for requesting a decision.
type DecisionTriggerInput struct {
	SessionID  string `json:"session_id,omitempty" jsonschema:"story session identifier (defaults to context)"`
	Context    string `json:"context,omitempty" jsonschema:"extra narrative added before the decision is generated"`
	Importance string `json:"importance,omitempty" jsonschema:"optional importance: minor, moderate, significant, or critical"`
}

// DecisionResult represents a presented decision.
type DecisionResult struct {
	SessionID string          `json:"session_id" jsonschema:"story session identifier"`
	Source    string          `json:"source,omitempty" jsonschema:"remote, fallback, or authored"`
	Decision  DecisionPayload `json:"decision" jsonschema:"the presented decision"`
}

// DecisionTriggerTool defines the MCP tool schema for requesting a decision.
func DecisionTriggerTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "decision_trigger",
		Description: "Generates and presents a decision now. Falls back to a locally built decision when generation fails. Fails while another decision is being generated.",
	}
}

// DecisionTriggerHandler executes a decision trigger request.
func DecisionTriggerHandler(svc StoryService, getContext func() Context) mcp.ToolHandlerFor[DecisionTriggerInput, DecisionResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input DecisionTriggerInput) (*mcp.CallToolResult, DecisionResult, error) {
		sessionID, err := resolveSessionID(input.SessionID, getContext)
		if err != nil {
			return nil, DecisionResult{}, err
		}
		var importance decision.Importance
		if strings.TrimSpace(input.Importance) != "" {
			parsed, ok := decision.ParseImportance(input.Importance)
			if !ok {
				return nil, DecisionResult{}, fmt.Errorf("importance %q is invalid", input.Importance)
			}
			importance = parsed
		}
		d, source, err := svc.TriggerDecision(ctx, sessionID, input.Context, importance)
		if err != nil {
			return nil, DecisionResult{}, toolError("decision trigger", err)
		}
		return nil, DecisionResult{SessionID: sessionID, Source: string(source), Decision: decisionPayload(d)}, nil
	}
}

// DecisionPresentAuthoredInput represents the MCP tool input for presenting
// a catalog decision.
type DecisionPresentAuthoredInput struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"story session identifier (defaults to context)"`
	Key       string `json:"key" jsonschema:"catalog entry key"`
}

// DecisionPresentAuthoredTool defines the MCP tool schema for presenting a
// catalog decision.
func DecisionPresentAuthoredTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "decision_present_authored",
		Description: "Presents a hand-written decision from the catalog, replacing any current decision.",
	}
}

// DecisionPresentAuthoredHandler executes a catalog presentation request.
func DecisionPresentAuthoredHandler(svc StoryService, getContext func() Context) mcp.ToolHandlerFor[DecisionPresentAuthoredInput, DecisionResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input DecisionPresentAuthoredInput) (*mcp.CallToolResult, DecisionResult, error) {
		sessionID, err := resolveSessionID(input.SessionID, getContext)
		if err != nil {
			return nil, DecisionResult{}, err
		}
		key := strings.TrimSpace(input.Key)
		if key == "" {
			return nil, DecisionResult{}, fmt.Errorf("key is required")
		}
		d, err := svc.PresentAuthored(ctx, sessionID, key)
		if err != nil {
			return nil, DecisionResult{}, toolError("present authored decision", err)
		}
		return nil, DecisionResult{SessionID: sessionID, Source: "authored", Decision: decisionPayload(d)}, nil
	}
}

// DecisionSelectInput represents the MCP tool input for choosing an option.
type DecisionSelectInput struct {
	SessionID  string   `json:"session_id,omitempty" jsonschema:"story session identifier (defaults to context)"`
	DecisionID string   `json:"decision_id" jsonschema:"current decision identifier"`
	OptionID   string   `json:"option_id" jsonschema:"chosen option identifier"`
	Inventory  []string `json:"inventory,omitempty" jsonschema:"player inventory passed to the narrator"`
}

// DecisionSelectResult represents the MCP tool output for choosing an option.
type DecisionSelectResult struct {
	SessionID         string        `json:"session_id" jsonschema:"story session identifier"`
	Narrative         string        `json:"narrative" jsonschema:"narrative that follows the choice"`
	FallbackNarrative bool          `json:"fallback_narrative" jsonschema:"true when the narrator failed and a template was used"`
	AcquiredItems     []string      `json:"acquired_items,omitempty" jsonschema:"items the narrator says were gained"`
	RemovedItems      []string      `json:"removed_items,omitempty" jsonschema:"items the narrator says were lost"`
	Record            RecordPayload `json:"record" jsonschema:"the recorded decision"`
}

// DecisionSelectTool defines the MCP tool schema for choosing an option.
func DecisionSelectTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "decision_select",
		Description: "Chooses an option of the current decision, records it, applies its impacts, and returns the narrative that follows.",
	}
}

// DecisionSelectHandler executes a decision select request.
func DecisionSelectHandler(svc StoryService, getContext func() Context) mcp.ToolHandlerFor[DecisionSelectInput, DecisionSelectResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input DecisionSelectInput) (*mcp.CallToolResult, DecisionSelectResult, error) {
		sessionID, err := resolveSessionID(input.SessionID, getContext)
		if err != nil {
			return nil, DecisionSelectResult{}, err
		}
		if strings.TrimSpace(input.DecisionID) == "" || strings.TrimSpace(input.OptionID) == "" {
			return nil, DecisionSelectResult{}, fmt.Errorf("decision_id and option_id are required")
		}
		selected, err := svc.Select(ctx, sessionID, input.DecisionID, input.OptionID, input.Inventory)
		if err != nil {
			return nil, DecisionSelectResult{}, toolError("decision select", err)
		}
		state, err := svc.State(ctx, sessionID)
		if err != nil {
			return nil, DecisionSelectResult{}, fmt.Errorf("read session: %w", err)
		}
		return nil, DecisionSelectResult{
			SessionID:         sessionID,
			Narrative:         selected.Narrative,
			FallbackNarrative: selected.FallbackNarrative,
			AcquiredItems:     selected.AcquiredItems,
			RemovedItems:      selected.RemovedItems,
			Record:            recordPayload(len(state.History)-1, selected.Record),
		}, nil
	}
}

// DecisionClearInput represents the MCP tool input for clearing a decision.
type DecisionClearInput struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"story session identifier (defaults to context)"`
}

// DecisionClearResult represents the MCP tool output for clearing a decision.
type DecisionClearResult struct {
	SessionID string `json:"session_id" jsonschema:"story session identifier"`
	Cleared   bool   `json:"cleared" jsonschema:"always true on success"`
}

// DecisionClearTool defines the MCP tool schema for clearing a decision.
func DecisionClearTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "decision_clear",
		Description: "Abandons the current decision without recording a choice.",
	}
}

// DecisionClearHandler executes a decision clear request.
func DecisionClearHandler(svc StoryService, getContext func() Context) mcp.ToolHandlerFor[DecisionClearInput, DecisionClearResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input DecisionClearInput) (*mcp.CallToolResult, DecisionClearResult, error) {
		sessionID, err := resolveSessionID(input.SessionID, getContext)
		if err != nil {
			return nil, DecisionClearResult{}, err
		}
		if err := svc.Clear(ctx, sessionID); err != nil {
			return nil, DecisionClearResult{}, toolError("decision clear", err)
		}
		return nil, DecisionClearResult{SessionID: sessionID, Cleared: true}, nil
	}
}

// DecisionHistoryInput represents the MCP tool input for the history digest.
type DecisionHistoryInput struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"story session identifier (defaults to context)"`
	Limit     int    `json:"limit,omitempty" jsonschema:"maximum decisions in the digest (default 5)"`
}

// DecisionHistoryResult represents the MCP tool output for the history digest.
type DecisionHistoryResult struct {
	SessionID string `json:"session_id" jsonschema:"story session identifier"`
	Digest    string `json:"digest" jsonschema:"most relevant past decisions formatted for a model prompt; empty when none apply"`
}

// DecisionHistoryTool defines the MCP tool schema for the history digest.
func DecisionHistoryTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "decision_history",
		Description: "Returns the past decisions most relevant to the current scene, formatted for a model prompt.",
	}
}

// DecisionHistoryHandler executes a history digest request.
func DecisionHistoryHandler(svc StoryService, getContext func() Context) mcp.ToolHandlerFor[DecisionHistoryInput, DecisionHistoryResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input DecisionHistoryInput) (*mcp.CallToolResult, DecisionHistoryResult, error) {
		sessionID, err := resolveSessionID(input.SessionID, getContext)
		if err != nil {
			return nil, DecisionHistoryResult{}, err
		}
		if input.Limit < 0 {
			return nil, DecisionHistoryResult{}, fmt.Errorf("limit must not be negative")
		}
		digest, err := svc.History(ctx, sessionID, input.Limit)
		if err != nil {
			return nil, DecisionHistoryResult{}, toolError("decision history", err)
		}
		return nil, DecisionHistoryResult{SessionID: sessionID, Digest: digest}, nil
	}
}

// DecisionRecordsListInput represents the MCP tool input for listing records.
type DecisionRecordsListInput struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"story session identifier (defaults to context)"`
	Filter    string `json:"filter,omitempty" jsonschema:"AIP-160 filter over decision_id, option_id, importance, selected_at"`
	PageSize  int    `json:"page_size,omitempty" jsonschema:"maximum records per page"`
	PageToken string `json:"page_token,omitempty" jsonschema:"token from a previous page"`
}

// DecisionRecordsListResult represents the MCP tool output for listing records.
type DecisionRecordsListResult struct {
	Records       []RecordPayload `json:"records" jsonschema:"decision records in selection order"`
	NextPageToken string          `json:"next_page_token,omitempty" jsonschema:"token for the next page"`
}

// DecisionRecordsListTool defines the MCP tool schema for listing records.
func DecisionRecordsListTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "decision_records_list",
		Description: `Lists recorded decisions with optional filtering, e.g. importance = "critical" AND selected_at > "2026-01-01T00:00:00Z".`,
	}
}

// DecisionRecordsListHandler executes a record listing request.
func DecisionRecordsListHandler(svc StoryService, getContext func() Context) mcp.ToolHandlerFor[DecisionRecordsListInput, DecisionRecordsListResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input DecisionRecordsListInput) (*mcp.CallToolResult, DecisionRecordsListResult, error) {
		sessionID, err := resolveSessionID(input.SessionID, getContext)
		if err != nil {
			return nil, DecisionRecordsListResult{}, err
		}
		page, err := svc.ListRecords(ctx, sessionID, input.Filter, input.PageSize, input.PageToken)
		if err != nil {
			return nil, DecisionRecordsListResult{}, toolError("decision records list", err)
		}
		return nil, DecisionRecordsListResult{
			Records:       indexedRecordPayloads(page.Records),
			NextPageToken: page.NextPageToken,
		}, nil
	}
}

// DecisionResourceTemplate defines the MCP resource template for the current
// decision of a session.
func DecisionResourceTemplate() *mcp.ResourceTemplate {
	return &mcp.ResourceTemplate{
		Name:        "story_decision",
		Title:       "Current Decision",
		Description: "Readable current decision of a session, or null. URI format: story://sessions/{session_id}/decision",
		MIMEType:    "application/json",
		URITemplate: "story://sessions/{session_id}/decision",
	}
}

// DecisionResourceHandler returns a readable current decision resource.
func DecisionResourceHandler(svc StoryService) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if svc == nil {
			return nil, fmt.Errorf("story service is not configured")
		}
		if req == nil || req.Params == nil || req.Params.URI == "" {
			return nil, fmt.Errorf("session ID is required; use URI format story://sessions/{session_id}/decision")
		}
		uri := req.Params.URI
		sessionID, err := parseSessionURI(uri, "/decision")
		if err != nil {
			return nil, err
		}
		state, err := svc.State(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("read session: %w", err)
		}
		payload := struct {
			Decision *DecisionPayload `json:"decision"`
			Phase    string           `json:"phase"`
		}{Phase: string(state.Phase)}
		if state.Current != nil {
			current := decisionPayload(*state.Current)
			payload.Decision = &current
		}
		return jsonResource(uri, payload)
	}
}
