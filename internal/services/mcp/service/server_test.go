package service

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/chronicle/internal/services/story/app"
	"github.com/louisbranch/chronicle/internal/services/story/catalog"
	"github.com/louisbranch/chronicle/internal/services/story/domain/decision"
	"github.com/louisbranch/chronicle/internal/services/story/domain/trigger"
	storysqlite "github.com/louisbranch/chronicle/internal/services/story/storage/sqlite"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func newStoryService(t *testing.T) *app.Service {
	t.Helper()
	store, err := storysqlite.Open(context.Background(), filepath.Join(t.TempDir(), "story.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	svc, err := app.NewService(app.ServiceConfig{
		Store:   store,
		Trigger: trigger.Trigger{Pipeline: trigger.Pipeline{Factory: decision.NewFactory(nil, nil)}},
		Catalog: cat,
		Logf:    func(string, ...any) {},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

// connect wires a client to a fresh MCP server over in-memory transports.
func connect(t *testing.T, opts *mcp.ClientOptions) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	svc := newStoryService(t)
	server, err := New(svc)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	svc.SetNotifier(server)

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.mcpServer.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	t.Cleanup(func() { _ = serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, opts)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func callTool(t *testing.T, session *mcp.ClientSession, name string, args map[string]any, out any) *mcp.CallToolResult {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("call %s: %v", name, err)
	}
	if out != nil && !result.IsError {
		data, err := json.Marshal(result.StructuredContent)
		if err != nil {
			t.Fatalf("marshal %s output: %v", name, err)
		}
		if err := json.Unmarshal(data, out); err != nil {
			t.Fatalf("decode %s output: %v", name, err)
		}
	}
	return result
}

func TestNewRequiresStory(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("expected error without story service")
	}
}

func TestServerListsStoryTools(t *testing.T) {
	session := connect(t, nil)
	tools, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	want := []string{
		"decision_clear", "decision_history", "decision_present_authored", "decision_records_list",
		"decision_select", "decision_trigger", "impact_evolve", "impact_state",
		"narrative_skip_consume", "scene_set", "set_context", "story_observe",
	}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("tools = %v\nwant %v", names, want)
	}
}

func TestDecisionRoundTripOverMCP(t *testing.T) {
	updates := make(chan string, 16)
	session := connect(t, &mcp.ClientOptions{
		ResourceUpdatedHandler: func(_ context.Context, req *mcp.ResourceUpdatedNotificationRequest) {
			updates <- req.Params.URI
		},
	})
	ctx := context.Background()
	if err := session.Subscribe(ctx, &mcp.SubscribeParams{URI: "story://sessions/s1/decision"}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	var presented struct {
		Decision struct {
			ID      string `json:"id"`
			Options []struct {
				ID   string `json:"id"`
				Text string `json:"text"`
			} `json:"options"`
		} `json:"decision"`
	}
	result := callTool(t, session, "decision_present_authored", map[string]any{"session_id": "s1", "key": "sheriff_bargain"}, &presented)
	if result.IsError || presented.Decision.ID == "" || len(presented.Decision.Options) != 2 {
		t.Fatalf("present result = %+v", presented)
	}

	select {
	case uri := <-updates:
		if uri != "story://sessions/s1/decision" {
			t.Fatalf("update uri = %q", uri)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no resource update received")
	}

	read, err := session.ReadResource(ctx, &mcp.ReadResourceParams{URI: "story://sessions/s1/decision"})
	if err != nil {
		t.Fatalf("read decision: %v", err)
	}
	if !strings.Contains(read.Contents[0].Text, presented.Decision.ID) {
		t.Fatalf("decision resource = %s", read.Contents[0].Text)
	}

	var selected struct {
		Narrative         string `json:"narrative"`
		FallbackNarrative bool   `json:"fallback_narrative"`
		Record            struct {
			DecisionID string `json:"decision_id"`
			Processed  bool   `json:"processed_for_impact"`
		} `json:"record"`
	}
	result = callTool(t, session, "decision_select", map[string]any{
		"session_id":  "s1",
		"decision_id": presented.Decision.ID,
		"option_id":   presented.Decision.Options[0].ID,
	}, &selected)
	if result.IsError {
		t.Fatalf("select failed: %+v", result.Content)
	}
	if !selected.FallbackNarrative || !strings.HasPrefix(selected.Narrative, "You chose to hand over the outlaw.") {
		t.Fatalf("select = %+v", selected)
	}
	if selected.Record.DecisionID != presented.Decision.ID || !selected.Record.Processed {
		t.Fatalf("record = %+v", selected.Record)
	}

	var impacts struct {
		Impacts struct {
			Reputation map[string]float64 `json:"reputation"`
		} `json:"impacts"`
	}
	callTool(t, session, "impact_state", map[string]any{"session_id": "s1"}, &impacts)
	if impacts.Impacts.Reputation["sheriff"] != 6 {
		t.Fatalf("reputation = %v", impacts.Impacts.Reputation)
	}

	var listed struct {
		Records []struct {
			DecisionID string `json:"decision_id"`
		} `json:"records"`
	}
	callTool(t, session, "decision_records_list", map[string]any{"session_id": "s1", "filter": `importance = "significant"`}, &listed)
	if len(listed.Records) != 1 || listed.Records[0].DecisionID != presented.Decision.ID {
		t.Fatalf("records = %+v", listed.Records)
	}

	// A second select of the same decision is a tool error, not a protocol error.
	result = callTool(t, session, "decision_select", map[string]any{
		"session_id":  "s1",
		"decision_id": presented.Decision.ID,
		"option_id":   presented.Decision.Options[0].ID,
	}, nil)
	if !result.IsError {
		t.Fatal("expected tool error for stale decision")
	}
}

func TestContextDefaultsSession(t *testing.T) {
	session := connect(t, nil)
	callTool(t, session, "set_context", map[string]any{"session_id": "ctx-session"}, nil)

	var observed struct {
		SessionID string `json:"session_id"`
		Triggered bool   `json:"triggered"`
		Source    string `json:"source"`
	}
	callTool(t, session, "story_observe", map[string]any{"text": "The door creaks. What will you do?"}, &observed)
	if observed.SessionID != "ctx-session" || !observed.Triggered || observed.Source != "fallback" {
		t.Fatalf("observe = %+v", observed)
	}

	read, err := session.ReadResource(context.Background(), &mcp.ReadResourceParams{URI: "context://current"})
	if err != nil {
		t.Fatalf("read context: %v", err)
	}
	if !strings.Contains(read.Contents[0].Text, "ctx-session") {
		t.Fatalf("context = %s", read.Contents[0].Text)
	}
}

func TestServeHTTPHealthAndShutdown(t *testing.T) {
	server, err := New(newStoryService(t))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.ServeHTTP(ctx, listener) }()

	resp, err := http.Get("http://" + listener.Addr().String() + "/mcp/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestRunRejectsUnknownTransport(t *testing.T) {
	server, err := New(newStoryService(t))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if err := server.Run(context.Background(), Config{Transport: "carrier-pigeon"}); err == nil {
		t.Fatal("expected error for unknown transport")
	}
}
