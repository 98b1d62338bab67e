package service

import (
	"fmt"

	"github.com/louisbranch/chronicle/internal/services/mcp/domain"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type mcpRegistrationKind int

const (
	mcpRegistrationKindTools mcpRegistrationKind = iota
	mcpRegistrationKindResources
)

type mcpRegistrationModule struct {
	name     string
	kind     mcpRegistrationKind
	register func(mcpRegistrationTarget) error
}

const (
	mcpStoryToolsModuleName      = "story-tools"
	mcpDecisionToolsModuleName   = "decision-tools"
	mcpImpactToolsModuleName     = "impact-tools"
	mcpContextToolsModuleName    = "context-tools"
	mcpSessionResourceModuleName = "session-resources"
	mcpContextResourceModuleName = "context-resources"
)

type mcpServerRegistrationAdapter struct {
	server *mcp.Server
}

func (r mcpServerRegistrationAdapter) AddTool(tool *mcp.Tool, handler any) error {
	return addMCPTool(r.server, tool, handler)
}

func (r mcpServerRegistrationAdapter) AddResourceTemplate(resourceTemplate *mcp.ResourceTemplate, handler mcp.ResourceHandler) {
	r.server.AddResourceTemplate(resourceTemplate, handler)
}

func (r mcpServerRegistrationAdapter) AddResource(resource *mcp.Resource, handler mcp.ResourceHandler) {
	r.server.AddResource(resource, handler)
}

type mcpToolRegistrar struct {
	matches func(any) bool
	add     func(*mcp.Server, *mcp.Tool, any)
}

func newMCPToolRegistrar[I any, O any]() mcpToolRegistrar {
	return mcpToolRegistrar{
		matches: func(handler any) bool {
			_, ok := handler.(mcp.ToolHandlerFor[I, O])
			return ok
		},
		add: func(server *mcp.Server, tool *mcp.Tool, handler any) {
			mcp.AddTool(server, tool, handler.(mcp.ToolHandlerFor[I, O]))
		},
	}
}

var mcpToolRegistrars = []mcpToolRegistrar{
	newMCPToolRegistrar[domain.StoryObserveInput, domain.StoryObserveResult](),
	newMCPToolRegistrar[domain.SceneSetInput, domain.SceneSetResult](),
	newMCPToolRegistrar[domain.NarrativeSkipConsumeInput, domain.NarrativeSkipConsumeResult](),
	newMCPToolRegistrar[domain.DecisionTriggerInput, domain.DecisionResult](),
	newMCPToolRegistrar[domain.DecisionPresentAuthoredInput, domain.DecisionResult](),
	newMCPToolRegistrar[domain.DecisionSelectInput, domain.DecisionSelectResult](),
	newMCPToolRegistrar[domain.DecisionClearInput, domain.DecisionClearResult](),
	newMCPToolRegistrar[domain.DecisionHistoryInput, domain.DecisionHistoryResult](),
	newMCPToolRegistrar[domain.DecisionRecordsListInput, domain.DecisionRecordsListResult](),
	newMCPToolRegistrar[domain.ImpactStateInput, domain.ImpactStateResult](),
	newMCPToolRegistrar[domain.SetContextInput, domain.SetContextResult](),
}

func addMCPTool(server *mcp.Server, tool *mcp.Tool, handler any) error {
	for _, registrar := range mcpToolRegistrars {
		if registrar.matches(handler) {
			registrar.add(server, tool, handler)
			return nil
		}
	}
	toolName := "<nil>"
	if tool != nil {
		toolName = tool.Name
	}
	return fmt.Errorf("mcp registration adapter does not support handler type %T for tool %q", handler, toolName)
}

func newMCPRegistrationModules(server *Server, story domain.StoryService, notify domain.ResourceUpdateNotifier) []mcpRegistrationModule {
	return []mcpRegistrationModule{
		{
			name: mcpStoryToolsModuleName,
			kind: mcpRegistrationKindTools,
			register: func(registrar mcpRegistrationTarget) error {
				return registerStoryTools(registrar, story, server.getContext, notify)
			},
		},
		{
			name: mcpDecisionToolsModuleName,
			kind: mcpRegistrationKindTools,
			register: func(registrar mcpRegistrationTarget) error {
				return registerDecisionTools(registrar, story, server.getContext)
			},
		},
		{
			name: mcpImpactToolsModuleName,
			kind: mcpRegistrationKindTools,
			register: func(registrar mcpRegistrationTarget) error {
				return registerImpactTools(registrar, story, server.getContext)
			},
		},
		{
			name: mcpContextToolsModuleName,
			kind: mcpRegistrationKindTools,
			register: func(registrar mcpRegistrationTarget) error {
				return registerContextTools(registrar, server, notify)
			},
		},
		{
			name: mcpSessionResourceModuleName,
			kind: mcpRegistrationKindResources,
			register: func(registrar mcpRegistrationTarget) error {
				registerSessionResources(registrar, story)
				return nil
			},
		},
		{
			name: mcpContextResourceModuleName,
			kind: mcpRegistrationKindResources,
			register: func(registrar mcpRegistrationTarget) error {
				registerContextResources(registrar, server)
				return nil
			},
		},
	}
}
