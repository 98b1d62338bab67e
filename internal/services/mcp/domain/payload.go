package domain

import (
	"time"

	"github.com/louisbranch/chronicle/internal/services/story/domain/decision"
	"github.com/louisbranch/chronicle/internal/services/story/domain/impact"
	"github.com/louisbranch/chronicle/internal/services/story/domain/session"
	"github.com/louisbranch/chronicle/internal/services/story/storage"
)

// ImpactPayload is the flat readable form of an impact.
type ImpactPayload struct {
	Type               string   `json:"type" jsonschema:"reputation, relationship, world-state, or story-arc"`
	Target             string   `json:"target" jsonschema:"impact target; relationships use actor:recipient"`
	Value              float64  `json:"value" jsonschema:"signed impact value"`
	Severity           string   `json:"severity" jsonschema:"minor, moderate, or major"`
	DurationMS         int64    `json:"duration_ms,omitempty" jsonschema:"decay window in milliseconds; absent for lasting impacts"`
	RelatedDecisionIDs []string `json:"related_decision_ids,omitempty" jsonschema:"decisions blended into this impact"`
	Decayed            bool     `json:"decayed,omitempty" jsonschema:"true once the impact has decayed"`
}

// OptionPayload is the readable form of a decision option.
type OptionPayload struct {
	ID      string          `json:"id" jsonschema:"option identifier"`
	Text    string          `json:"text" jsonschema:"option text shown to the player"`
	Impact  string          `json:"impact,omitempty" jsonschema:"prose consequence"`
	Tags    []string        `json:"tags,omitempty" jsonschema:"option tags"`
	Impacts []ImpactPayload `json:"impacts,omitempty" jsonschema:"typed effects applied on selection"`
}

// LocationPayload is the readable form of a location.
type LocationPayload struct {
	Type string `json:"type" jsonschema:"town, landmark, wilderness, dungeon, or road"`
	Name string `json:"name,omitempty" jsonschema:"place name"`
}

// DecisionPayload is the readable form of a decision.
type DecisionPayload struct {
	ID               string           `json:"id" jsonschema:"decision identifier"`
	Prompt           string           `json:"prompt" jsonschema:"decision prompt"`
	CreatedAt        string           `json:"created_at" jsonschema:"RFC3339 creation timestamp"`
	Importance       string           `json:"importance" jsonschema:"minor, moderate, significant, or critical"`
	NarrativeContext string           `json:"narrative_context,omitempty" jsonschema:"scene framing"`
	Location         *LocationPayload `json:"location,omitempty" jsonschema:"where the decision happens"`
	Characters       []string         `json:"characters,omitempty" jsonschema:"characters involved"`
	Generated        bool             `json:"generated" jsonschema:"true for model or locally synthesized decisions"`
	Options          []OptionPayload  `json:"options" jsonschema:"selectable options"`
}

// RecordPayload is the readable form of a decision record.
type RecordPayload struct {
	Seq              int             `json:"seq,omitempty" jsonschema:"position in session history"`
	DecisionID       string          `json:"decision_id" jsonschema:"decision identifier"`
	SelectedOptionID string          `json:"selected_option_id" jsonschema:"chosen option identifier"`
	Prompt           string          `json:"prompt,omitempty" jsonschema:"decision prompt"`
	Choice           string          `json:"choice,omitempty" jsonschema:"chosen option text"`
	Impact           string          `json:"impact,omitempty" jsonschema:"prose consequence"`
	Narrative        string          `json:"narrative,omitempty" jsonschema:"narrative that followed the choice"`
	Importance       string          `json:"importance" jsonschema:"decision importance"`
	Timestamp        string          `json:"timestamp" jsonschema:"RFC3339 selection timestamp"`
	ExpiresAt        string          `json:"expires_at,omitempty" jsonschema:"RFC3339 expiry for minor decisions"`
	RelevanceScore   float64         `json:"relevance_score" jsonschema:"stored base relevance"`
	Tags             []string        `json:"tags,omitempty" jsonschema:"relevance tags"`
	Processed        bool            `json:"processed_for_impact" jsonschema:"true once impacts were applied"`
	Impacts          []ImpactPayload `json:"impacts,omitempty" jsonschema:"typed effects"`
}

// ImpactStatePayload is the readable form of the aggregate impact state.
type ImpactStatePayload struct {
	Reputation    map[string]float64            `json:"reputation" jsonschema:"reputation by subject"`
	Relationships map[string]map[string]float64 `json:"relationships" jsonschema:"relationship values by actor then recipient"`
	WorldState    map[string]float64            `json:"world_state" jsonschema:"world flags and counters"`
	StoryArcs     map[string]float64            `json:"story_arcs" jsonschema:"story arc progress"`
	LastUpdated   string                        `json:"last_updated,omitempty" jsonschema:"RFC3339 timestamp of the last change"`
}

// SessionPayload is the readable story state of a session.
type SessionPayload struct {
	SessionID            string             `json:"session_id"`
	Phase                string             `json:"phase"`
	Current              *DecisionPayload   `json:"current,omitempty"`
	Generating           bool               `json:"generating"`
	SkipNarrative        bool               `json:"skip_narrative"`
	ActionsSinceDecision int                `json:"actions_since_decision"`
	PlayerName           string             `json:"player_name,omitempty"`
	Location             *LocationPayload   `json:"location,omitempty"`
	Characters           []string           `json:"characters,omitempty"`
	Themes               []string           `json:"themes,omitempty"`
	RecentNarrative      []string           `json:"recent_narrative,omitempty"`
	History              []RecordPayload    `json:"history"`
	Impacts              ImpactStatePayload `json:"impacts"`
}

func formatTimestamp(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}

func impactPayloads(impacts []impact.Impact) []ImpactPayload {
	if len(impacts) == 0 {
		return nil
	}
	out := make([]ImpactPayload, 0, len(impacts))
	for _, item := range impacts {
		if item.Target == nil {
			continue
		}
		out = append(out, ImpactPayload{
			Type:               string(item.Target.Kind()),
			Target:             item.Target.Key(),
			Value:              item.Value,
			Severity:           string(item.Severity),
			DurationMS:         item.Duration.Milliseconds(),
			RelatedDecisionIDs: item.RelatedDecisionIDs,
			Decayed:            item.Decayed,
		})
	}
	return out
}

func locationPayload(location *decision.Location) *LocationPayload {
	if location == nil {
		return nil
	}
	return &LocationPayload{Type: string(location.Type), Name: location.Name}
}

func decisionPayload(d decision.Decision) DecisionPayload {
	options := make([]OptionPayload, 0, len(d.Options))
	for _, option := range d.Options {
		options = append(options, OptionPayload{
			ID:      option.ID,
			Text:    option.Text,
			Impact:  option.Impact,
			Tags:    option.Tags,
			Impacts: impactPayloads(option.Impacts),
		})
	}
	return DecisionPayload{
		ID:               d.ID,
		Prompt:           d.Prompt,
		CreatedAt:        formatTimestamp(d.CreatedAt),
		Importance:       string(d.Importance),
		NarrativeContext: d.NarrativeContext,
		Location:         locationPayload(d.Location),
		Characters:       d.Characters,
		Generated:        d.Generated,
		Options:          options,
	}
}

func recordPayload(seq int, record decision.Record) RecordPayload {
	payload := RecordPayload{
		Seq:              seq,
		DecisionID:       record.DecisionID,
		SelectedOptionID: record.SelectedOptionID,
		Prompt:           record.Prompt,
		Choice:           record.Choice,
		Impact:           record.Impact,
		Narrative:        record.Narrative,
		Importance:       string(record.Importance),
		Timestamp:        formatTimestamp(record.Timestamp),
		RelevanceScore:   record.RelevanceScore,
		Tags:             record.Tags,
		Processed:        record.ProcessedForImpact,
		Impacts:          impactPayloads(record.Impacts),
	}
	if record.ExpiresAt != nil {
		payload.ExpiresAt = formatTimestamp(*record.ExpiresAt)
	}
	return payload
}

func indexedRecordPayloads(records []storage.IndexedRecord) []RecordPayload {
	out := make([]RecordPayload, 0, len(records))
	for _, item := range records {
		out = append(out, recordPayload(item.Seq, item.Record))
	}
	return out
}

func impactStatePayload(state impact.State) ImpactStatePayload {
	state = state.Clone()
	return ImpactStatePayload{
		Reputation:    state.Reputation,
		Relationships: state.Relationships,
		WorldState:    state.WorldState,
		StoryArcs:     state.StoryArcs,
		LastUpdated:   formatTimestamp(state.LastUpdated),
	}
}

func sessionPayload(sessionID string, state session.State) SessionPayload {
	payload := SessionPayload{
		SessionID:            sessionID,
		Phase:                string(state.Phase),
		Generating:           state.Generating,
		SkipNarrative:        state.SkipNarrative,
		ActionsSinceDecision: state.ActionsSinceDecision,
		PlayerName:           state.PlayerName,
		Location:             locationPayload(state.Location),
		Characters:           state.Characters,
		Themes:               state.Themes,
		RecentNarrative:      state.RecentNarrative,
		History:              make([]RecordPayload, 0, len(state.History)),
		Impacts:              impactStatePayload(state.Impacts),
	}
	if state.Current != nil {
		current := decisionPayload(*state.Current)
		payload.Current = &current
	}
	for i, record := range state.History {
		payload.History = append(payload.History, recordPayload(i, record))
	}
	return payload
}
