package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/chronicle/internal/services/story/app"
	"github.com/louisbranch/chronicle/internal/services/story/domain/decision"
	"github.com/louisbranch/chronicle/internal/services/story/domain/impact"
	"github.com/louisbranch/chronicle/internal/services/story/domain/session"
	"github.com/louisbranch/chronicle/internal/services/story/domain/trigger"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

// chatServer answers chat completions with content and records requests.
func chatServer(t *testing.T, status int, content string) (*httptest.Server, *[]chatRequest) {
	t.Helper()
	var requests []chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		var req chatRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		requests = append(requests, req)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = io.WriteString(w, `{"error":{"message":"boom","type":"server_error"}}`)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   req.Model,
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := New(Config{
		APIKey:  "test-key",
		BaseURL: baseURL,
		Model:   "test-model",
		Now:     func() time.Time { return time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestGenerateDecision(t *testing.T) {
	reply := "```json\n" + `{
		"prompt": "The ferryman demands double fare.",
		"importance": "significant",
		"options": [
			{"text": "Pay him", "impact": "Lighter purse", "tags": ["theme:trade"],
			 "impacts": [{"type": "relationship", "target": "ferryman", "value": 2, "severity": "minor"}]},
			{"text": "Swim across", "impacts": [{"type": "weather", "target": "x", "value": 1}]},
			{"text": "  "}
		]
	}` + "\n```"
	srv, requests := chatServer(t, http.StatusOK, reply)
	client := newTestClient(t, srv.URL)

	state := session.New()
	state.PlayerName = "Mira"
	state.Location = &decision.Location{Type: decision.LocationRoad}
	state = session.AppendNarrative(state, "The river is swollen.", "> I approach the ferry")

	d, err := client.GenerateDecision(context.Background(), trigger.Request{Session: state, Force: true})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if d.Prompt != "The ferryman demands double fare." || d.Importance != decision.ImportanceSignificant {
		t.Fatalf("decision = %+v", d)
	}
	if len(d.Options) != 2 {
		t.Fatalf("options = %+v, want 2", d.Options)
	}
	if got := d.Options[0].Impacts; len(got) != 1 || got[0].Target != (impact.Relationship{Actor: "player", Recipient: "ferryman"}) {
		t.Fatalf("impacts = %+v", got)
	}
	if len(d.Options[1].Impacts) != 0 {
		t.Fatalf("invalid impact kept: %+v", d.Options[1].Impacts)
	}
	if d.Location == nil || d.Location.Type != decision.LocationRoad {
		t.Fatalf("location = %+v", d.Location)
	}

	if len(*requests) != 1 {
		t.Fatalf("requests = %d", len(*requests))
	}
	sent := (*requests)[0]
	if sent.Model != "test-model" || len(sent.Messages) != 2 {
		t.Fatalf("request = %+v", sent)
	}
	user := sent.Messages[1].Content
	for _, want := range []string{"Player: Mira", "The river is swollen.", "decision point"} {
		if !strings.Contains(user, want) {
			t.Errorf("user prompt missing %q:\n%s", want, user)
		}
	}
}

func TestGenerateDecisionLogsDroppedImpactsByDefault(t *testing.T) {
	var logs bytes.Buffer
	prev := log.Writer()
	log.SetOutput(&logs)
	t.Cleanup(func() { log.SetOutput(prev) })

	reply := `{"prompt": "A toll bridge.", "options": [
		{"text": "Pay", "impacts": [{"type": "weather", "target": "x", "value": 1}]},
		{"text": "Wade"}
	]}`
	srv, _ := chatServer(t, http.StatusOK, reply)
	client, err := New(Config{APIKey: "test-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	d, err := client.GenerateDecision(context.Background(), trigger.Request{Session: session.New()})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(d.Options) != 2 || len(d.Options[0].Impacts) != 0 {
		t.Fatalf("decision = %+v", d)
	}
	if !strings.Contains(logs.String(), "dropped generated impact") || !strings.Contains(logs.String(), "weather") {
		t.Fatalf("log output = %q, want dropped impact reported", logs.String())
	}
}

func TestGenerateDecisionErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		content string
	}{
		{name: "server error", status: http.StatusInternalServerError},
		{name: "not json", status: http.StatusOK, content: "I cannot help with that."},
		{name: "empty", status: http.StatusOK, content: "  "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := chatServer(t, tt.status, tt.content)
			client := newTestClient(t, srv.URL)
			if _, err := client.GenerateDecision(context.Background(), trigger.Request{Session: session.New()}); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestRespondToChoice(t *testing.T) {
	srv, requests := chatServer(t, http.StatusOK, `{"narrative": "The ferry lurches away.", "acquired_items": ["ticket"]}`)
	client := newTestClient(t, srv.URL)

	resp, err := client.RespondToChoice(context.Background(), app.NarrativeRequest{
		OptionText: "Pay him",
		Prompt:     "The ferryman demands double fare.",
		Inventory:  []string{"coin purse"},
	})
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if resp.Narrative != "The ferry lurches away." || len(resp.AcquiredItems) != 1 || resp.AcquiredItems[0] != "ticket" {
		t.Fatalf("response = %+v", resp)
	}
	if user := (*requests)[0].Messages[1].Content; !strings.Contains(user, "Choice: Pay him") || !strings.Contains(user, "coin purse") {
		t.Fatalf("user prompt = %q", user)
	}
}

func TestRespondToChoicePlainText(t *testing.T) {
	srv, _ := chatServer(t, http.StatusOK, "The ferry lurches away.")
	client := newTestClient(t, srv.URL)

	resp, err := client.RespondToChoice(context.Background(), app.NarrativeRequest{OptionText: "Pay him"})
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if resp.Narrative != "The ferry lurches away." {
		t.Fatalf("narrative = %q", resp.Narrative)
	}
}
