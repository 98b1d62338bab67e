package generation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/chronicle/internal/services/story/app"
	"github.com/louisbranch/chronicle/internal/services/story/domain/decision"
	"github.com/louisbranch/chronicle/internal/services/story/domain/impact"
)

type decisionReply struct {
	Prompt           string        `json:"prompt"`
	NarrativeContext string        `json:"narrative_context"`
	Importance       string        `json:"importance"`
	Characters       []string      `json:"characters"`
	Options          []optionReply `json:"options"`
}

type optionReply struct {
	Text    string        `json:"text"`
	Impact  string        `json:"impact"`
	Tags    []string      `json:"tags"`
	Impacts []impactReply `json:"impacts"`
}

type impactReply struct {
	Type       string  `json:"type"`
	Target     string  `json:"target"`
	Value      float64 `json:"value"`
	Severity   string  `json:"severity"`
	DurationMS int64   `json:"duration_ms"`
}

type narrativeReply struct {
	Narrative     string   `json:"narrative"`
	AcquiredItems []string `json:"acquired_items"`
	RemovedItems  []string `json:"removed_items"`
}

// parseDecisionReply decodes a model decision. Impacts that fail validation
// are dropped and reported; ids and timestamps are left for the pipeline.
func parseDecisionReply(content string) (decision.Decision, []error, error) {
	var reply decisionReply
	if err := json.Unmarshal([]byte(extractJSON(content)), &reply); err != nil {
		return decision.Decision{}, nil, err
	}

	var dropped []error
	options := make([]decision.Option, 0, len(reply.Options))
	for _, item := range reply.Options {
		text := strings.TrimSpace(item.Text)
		if text == "" {
			continue
		}
		option := decision.Option{
			Text:   text,
			Impact: strings.TrimSpace(item.Impact),
			Tags:   item.Tags,
		}
		for _, wire := range item.Impacts {
			parsed, err := impact.FromWire(wire.Type, wire.Target, wire.Value, wire.Severity, wire.DurationMS)
			if err != nil {
				dropped = append(dropped, fmt.Errorf("option %q: %w", text, err))
				continue
			}
			option.Impacts = append(option.Impacts, parsed)
		}
		options = append(options, option)
	}

	d := decision.Decision{
		Prompt:           strings.TrimSpace(reply.Prompt),
		NarrativeContext: strings.TrimSpace(reply.NarrativeContext),
		Options:          options,
		Characters:       reply.Characters,
	}
	if importance, ok := decision.ParseImportance(reply.Importance); ok {
		d.Importance = importance
	}
	return d, dropped, nil
}

// parseNarrativeReply decodes a narrative reply. A reply that is not JSON is
// taken as plain narrative text.
func parseNarrativeReply(content string) (app.NarrativeResponse, error) {
	var reply narrativeReply
	if err := json.Unmarshal([]byte(extractJSON(content)), &reply); err != nil {
		text := strings.TrimSpace(stripFence(content))
		if text == "" || strings.HasPrefix(text, "{") {
			return app.NarrativeResponse{}, err
		}
		return app.NarrativeResponse{Narrative: text}, nil
	}
	narrative := strings.TrimSpace(reply.Narrative)
	if narrative == "" {
		return app.NarrativeResponse{}, errors.New("narrative is empty")
	}
	return app.NarrativeResponse{
		Narrative:     narrative,
		AcquiredItems: reply.AcquiredItems,
		RemovedItems:  reply.RemovedItems,
	}, nil
}

// extractJSON returns the outermost object in content, ignoring code fences
// and surrounding prose.
func extractJSON(content string) string {
	content = stripFence(content)
	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start < 0 || end < start {
		return content
	}
	return content[start : end+1]
}

func stripFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```")
	if newline := strings.IndexByte(content, '\n'); newline >= 0 {
		content = content[newline+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(content), "```"))
}
