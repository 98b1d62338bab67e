package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/louisbranch/chronicle/internal/platform/branding"
	"github.com/louisbranch/chronicle/internal/services/mcp/domain"
	"github.com/louisbranch/chronicle/internal/services/story/app"
	"github.com/louisbranch/chronicle/internal/services/story/domain/decision"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// serverVersion identifies the MCP server version.
const serverVersion = "0.1.0"

// serverName identifies this MCP server to clients.
var serverName = branding.AppName + " MCP"

// TransportKind identifies the MCP transport implementation.
type TransportKind string

const (
	// TransportStdio uses standard input/output for MCP.
	TransportStdio TransportKind = "stdio"
	// TransportHTTP runs MCP over streamable HTTP for remote clients.
	TransportHTTP TransportKind = "http"
)

// Config configures how the MCP server is exposed.
type Config struct {
	Transport TransportKind
	// HTTPAddr is the listen address for TransportHTTP. Defaults to
	// localhost:8081.
	HTTPAddr string
}

// Server hosts the MCP surface of the story service.
type Server struct {
	mcpServer *mcp.Server
	story     domain.StoryService
	ctx       domain.Context
	ctxMu     sync.RWMutex
}

var _ app.Notifier = (*Server)(nil)

// New creates an MCP server whose tools and resources drive story.
func New(story domain.StoryService) (*Server, error) {
	if story == nil {
		return nil, errors.New("story service is required")
	}
	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, &mcp.ServerOptions{
		CompletionHandler:  completionHandler,
		SubscribeHandler:   resourceSubscribeHandler,
		UnsubscribeHandler: resourceUnsubscribeHandler,
	})
	server := &Server{mcpServer: mcpServer, story: story}

	for _, module := range newMCPRegistrationModules(server, story, server.notifyResource) {
		if err := module.register(mcpServerRegistrationAdapter{server: mcpServer}); err != nil {
			return nil, fmt.Errorf("register MCP module %q: %w", module.name, err)
		}
	}
	return server, nil
}

// DecisionReady notifies subscribers that a decision was presented.
func (s *Server) DecisionReady(ctx context.Context, sessionID string, _ decision.Decision) {
	domain.NotifyResourceUpdates(ctx, s.notifyResource, domain.DecisionResourceURI(sessionID), domain.SessionResourceURI(sessionID))
}

// DecisionCleared notifies subscribers that the current decision is gone.
func (s *Server) DecisionCleared(ctx context.Context, sessionID string) {
	domain.NotifyResourceUpdates(ctx, s.notifyResource, domain.DecisionResourceURI(sessionID), domain.SessionResourceURI(sessionID))
}

// ForceUpdate notifies subscribers that session state changed.
func (s *Server) ForceUpdate(ctx context.Context, sessionID string) {
	domain.NotifyResourceUpdates(ctx, s.notifyResource, domain.SessionResourceURI(sessionID))
}

func (s *Server) notifyResource(ctx context.Context, uri string) {
	if s == nil || s.mcpServer == nil || strings.TrimSpace(uri) == "" {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.mcpServer.ResourceUpdated(ctx, &mcp.ResourceUpdatedNotificationParams{URI: uri}); err != nil {
		log.Printf("mcp resource updated notify failed: uri=%s err=%v", uri, err)
	}
}

// setContext updates the server's context state.
func (s *Server) setContext(ctx domain.Context) {
	s.ctxMu.Lock()
	defer s.ctxMu.Unlock()
	s.ctx = ctx
}

// getContext returns the server's current context state.
func (s *Server) getContext() domain.Context {
	if s == nil {
		return domain.Context{}
	}
	s.ctxMu.RLock()
	defer s.ctxMu.RUnlock()
	return s.ctx
}

// completionHandler answers completion requests with no suggestions.
func completionHandler(context.Context, *mcp.CompleteRequest) (*mcp.CompleteResult, error) {
	return &mcp.CompleteResult{
		Completion: mcp.CompletionResultDetails{
			Values: []string{},
		},
	}, nil
}

// resourceSubscribeHandler accepts resource subscriptions with a valid URI.
func resourceSubscribeHandler(_ context.Context, req *mcp.SubscribeRequest) error {
	if req == nil || req.Params == nil || strings.TrimSpace(req.Params.URI) == "" {
		return fmt.Errorf("resource uri is required")
	}
	return nil
}

// resourceUnsubscribeHandler accepts resource unsubscriptions with a valid URI.
func resourceUnsubscribeHandler(_ context.Context, req *mcp.UnsubscribeRequest) error {
	if req == nil || req.Params == nil || strings.TrimSpace(req.Params.URI) == "" {
		return fmt.Errorf("resource uri is required")
	}
	return nil
}
