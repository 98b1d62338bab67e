package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Context is the MCP connection's current defaults.
type Context struct {
	SessionID string
}

// SetContextInput represents the MCP tool input for setting context.
type SetContextInput struct {
	SessionID string `json:"session_id" jsonschema:"story session identifier used when a tool omits session_id"`
}

// SetContextResult represents the MCP tool output for setting context.
type SetContextResult struct {
	Context ContextPayload `json:"context" jsonschema:"current context"`
}

// ContextPayload is the readable form of Context.
type ContextPayload struct {
	SessionID *string `json:"session_id"`
}

// SetContextTool defines the MCP tool schema for setting context.
func SetContextTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "set_context",
		Description: "Sets the current story session for subsequent tool calls",
	}
}

// SetContextHandler executes a context set request.
func SetContextHandler(setContext func(Context), getContext func() Context, notify ResourceUpdateNotifier) mcp.ToolHandlerFor[SetContextInput, SetContextResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SetContextInput) (*mcp.CallToolResult, SetContextResult, error) {
		sessionID := strings.TrimSpace(input.SessionID)
		if sessionID == "" {
			return nil, SetContextResult{}, fmt.Errorf("session_id is required")
		}
		setContext(Context{SessionID: sessionID})
		NotifyResourceUpdates(ctx, notify, ContextResource().URI)
		return nil, SetContextResult{Context: contextPayload(getContext())}, nil
	}
}

// ContextResource defines the MCP resource for the current context.
func ContextResource() *mcp.Resource {
	return &mcp.Resource{
		Name:        "context_current",
		Title:       "Current Context",
		Description: "Readable current MCP context (session_id)",
		MIMEType:    "application/json",
		URI:         "context://current",
	}
}

// ContextResourceHandler returns a readable current context resource.
func ContextResourceHandler(getContext func() Context) mcp.ResourceHandler {
	return func(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if getContext == nil {
			return nil, fmt.Errorf("context getter function is not configured")
		}
		uri := ContextResource().URI
		if req != nil && req.Params != nil && req.Params.URI != "" && req.Params.URI != uri {
			return nil, fmt.Errorf("invalid URI: expected %s, got %q", uri, req.Params.URI)
		}
		return jsonResource(uri, struct {
			Context ContextPayload `json:"context"`
		}{Context: contextPayload(getContext())})
	}
}

func contextPayload(current Context) ContextPayload {
	payload := ContextPayload{}
	if current.SessionID != "" {
		sessionID := current.SessionID
		payload.SessionID = &sessionID
	}
	return payload
}

// resolveSessionID prefers the explicit id and falls back to the context.
func resolveSessionID(sessionID string, getContext func() Context) (string, error) {
	if id := strings.TrimSpace(sessionID); id != "" {
		return id, nil
	}
	if getContext != nil {
		if id := strings.TrimSpace(getContext().SessionID); id != "" {
			return id, nil
		}
	}
	return "", fmt.Errorf("session_id is required; pass it or call set_context first")
}

func jsonResource(uri string, payload any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal resource %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: "application/json",
				Text:     string(data),
			},
		},
	}, nil
}
