package service

import (
	"fmt"

	"github.com/louisbranch/chronicle/internal/services/mcp/domain"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type mcpRegistrationTarget interface {
	AddTool(*mcp.Tool, any) error
	AddResourceTemplate(*mcp.ResourceTemplate, mcp.ResourceHandler)
	AddResource(*mcp.Resource, mcp.ResourceHandler)
}

type toolRegistration struct {
	tool    *mcp.Tool
	handler any
}

func registerStoryTools(registrar mcpRegistrationTarget, story domain.StoryService, getContext func() domain.Context, notify domain.ResourceUpdateNotifier) error {
	return registerTools(registrar, []toolRegistration{
		{tool: domain.StoryObserveTool(), handler: domain.StoryObserveHandler(story, getContext)},
		{tool: domain.SceneSetTool(), handler: domain.SceneSetHandler(story, getContext, notify)},
		{tool: domain.NarrativeSkipConsumeTool(), handler: domain.NarrativeSkipConsumeHandler(story, getContext)},
	})
}

func registerDecisionTools(registrar mcpRegistrationTarget, story domain.StoryService, getContext func() domain.Context) error {
	return registerTools(registrar, []toolRegistration{
		{tool: domain.DecisionTriggerTool(), handler: domain.DecisionTriggerHandler(story, getContext)},
		{tool: domain.DecisionPresentAuthoredTool(), handler: domain.DecisionPresentAuthoredHandler(story, getContext)},
		{tool: domain.DecisionSelectTool(), handler: domain.DecisionSelectHandler(story, getContext)},
		{tool: domain.DecisionClearTool(), handler: domain.DecisionClearHandler(story, getContext)},
		{tool: domain.DecisionHistoryTool(), handler: domain.DecisionHistoryHandler(story, getContext)},
		{tool: domain.DecisionRecordsListTool(), handler: domain.DecisionRecordsListHandler(story, getContext)},
	})
}

func registerImpactTools(registrar mcpRegistrationTarget, story domain.StoryService, getContext func() domain.Context) error {
	return registerTools(registrar, []toolRegistration{
		{tool: domain.ImpactStateTool(), handler: domain.ImpactStateHandler(story, getContext)},
		{tool: domain.ImpactEvolveTool(), handler: domain.ImpactEvolveHandler(story, getContext)},
	})
}

// registerContextTools registers context management tools.
func registerContextTools(registrar mcpRegistrationTarget, server *Server, notify domain.ResourceUpdateNotifier) error {
	return registerTool(registrar, domain.SetContextTool(), domain.SetContextHandler(server.setContext, server.getContext, notify))
}

func registerTools(registrar mcpRegistrationTarget, registrations []toolRegistration) error {
	for _, registration := range registrations {
		if err := registerTool(registrar, registration.tool, registration.handler); err != nil {
			return err
		}
	}
	return nil
}

func registerTool(registrar mcpRegistrationTarget, tool *mcp.Tool, handler any) error {
	if tool == nil {
		return fmt.Errorf("tool is nil")
	}
	return registrar.AddTool(tool, handler)
}

// registerSessionResources registers readable story session MCP resources.
func registerSessionResources(registrar mcpRegistrationTarget, story domain.StoryService) {
	registrar.AddResourceTemplate(domain.SessionResourceTemplate(), domain.SessionResourceHandler(story))
	registrar.AddResourceTemplate(domain.DecisionResourceTemplate(), domain.DecisionResourceHandler(story))
}

// registerContextResources registers readable context MCP resources.
func registerContextResources(registrar mcpRegistrationTarget, server *Server) {
	registrar.AddResource(domain.ContextResource(), domain.ContextResourceHandler(server.getContext))
}
