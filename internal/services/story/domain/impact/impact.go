package impact

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/louisbranch/chronicle/internal/platform/errors"
)

// Kind identifies which impact map an impact writes to.
type Kind string

const (
	KindReputation   Kind = "reputation"
	KindRelationship Kind = "relationship"
	KindWorldState   Kind = "world-state"
	KindStoryArc     Kind = "story-arc"
)

// DefaultActor is the relationship actor assumed when a target key has no
// "actor:" prefix.
const DefaultActor = "player"

// Severity orders simultaneous impacts during reconciliation.
type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeverityMajor    Severity = "major"
)

// Rank returns the ordering weight of a severity; unknown values rank lowest.
func (s Severity) Rank() int {
	switch s {
	case SeverityMajor:
		return 3
	case SeverityModerate:
		return 2
	case SeverityMinor:
		return 1
	default:
		return 0
	}
}

// ParseSeverity normalizes a severity label.
func ParseSeverity(value string) (Severity, error) {
	severity := Severity(strings.ToLower(strings.TrimSpace(value)))
	if severity.Rank() == 0 {
		return "", apperrors.WithMetadata(apperrors.CodeImpactInvalidSeverity,
			fmt.Sprintf("impact severity %q is invalid", value),
			map[string]string{"Severity": value})
	}
	return severity, nil
}

// Target is the closed set of things an impact can address.
type Target interface {
	// Kind reports the impact map the target lives in.
	Kind() Kind
	// Key renders the target in its flat wire form.
	Key() string

	isTarget()
}

// Reputation targets standing with a faction, person, or group.
type Reputation struct {
	Subject string
}

// Relationship targets how Actor feels about Recipient.
type Relationship struct {
	Actor     string
	Recipient string
}

// WorldState targets a named world flag or counter.
type WorldState struct {
	Name string
}

// StoryArc targets progress through a named arc.
type StoryArc struct {
	Arc string
}

func (Reputation) Kind() Kind   { return KindReputation }
func (Relationship) Kind() Kind { return KindRelationship }
func (WorldState) Kind() Kind   { return KindWorldState }
func (StoryArc) Kind() Kind     { return KindStoryArc }

func (t Reputation) Key() string   { return t.Subject }
func (t Relationship) Key() string { return t.Actor + ":" + t.Recipient }
func (t WorldState) Key() string   { return t.Name }
func (t StoryArc) Key() string     { return t.Arc }

func (Reputation) isTarget()   {}
func (Relationship) isTarget() {}
func (WorldState) isTarget()   {}
func (StoryArc) isTarget()     {}

// ParseKind normalizes an impact type label. Underscored spellings are
// accepted for model-generated payloads.
func ParseKind(value string) (Kind, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(value)), "_", "-")
	switch Kind(normalized) {
	case KindReputation, KindRelationship, KindWorldState, KindStoryArc:
		return Kind(normalized), nil
	case "worldstate":
		return KindWorldState, nil
	case "storyarc":
		return KindStoryArc, nil
	}
	return "", apperrors.WithMetadata(apperrors.CodeImpactInvalidType,
		fmt.Sprintf("impact type %q is invalid", value),
		map[string]string{"Type": value})
}

// ParseTarget builds the typed target for kind from its flat key. A
// relationship key is split on its first ':'; without one the actor is
// DefaultActor.
func ParseTarget(kind Kind, key string) (Target, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, apperrors.WithMetadata(apperrors.CodeImpactInvalidTarget,
			"impact target is required",
			map[string]string{"Type": string(kind)})
	}
	switch kind {
	case KindReputation:
		return Reputation{Subject: key}, nil
	case KindRelationship:
		actor, recipient, found := strings.Cut(key, ":")
		if !found {
			return Relationship{Actor: DefaultActor, Recipient: key}, nil
		}
		actor = strings.TrimSpace(actor)
		recipient = strings.TrimSpace(recipient)
		if actor == "" {
			actor = DefaultActor
		}
		if recipient == "" {
			return nil, apperrors.WithMetadata(apperrors.CodeImpactInvalidTarget,
				fmt.Sprintf("relationship target %q has no recipient", key),
				map[string]string{"Target": key})
		}
		return Relationship{Actor: actor, Recipient: recipient}, nil
	case KindWorldState:
		return WorldState{Name: key}, nil
	case KindStoryArc:
		return StoryArc{Arc: key}, nil
	default:
		return nil, apperrors.WithMetadata(apperrors.CodeImpactInvalidType,
			fmt.Sprintf("impact type %q is invalid", kind),
			map[string]string{"Type": string(kind)})
	}
}

// Impact is one signed effect declared by a resolved decision.
type Impact struct {
	Target   Target
	Value    float64
	Severity Severity
	// Duration bounds a temporary impact; zero means permanent.
	Duration           time.Duration
	RelatedDecisionIDs []string
	// Decayed is set once the impact's one-shot decay has been applied.
	Decayed bool
}

// Temporary reports whether the impact decays after its duration.
func (i Impact) Temporary() bool {
	return i.Duration > 0
}

type wireImpact struct {
	Type               Kind     `json:"type"`
	Target             string   `json:"target"`
	Value              float64  `json:"value"`
	Severity           Severity `json:"severity"`
	DurationMillis     int64    `json:"duration_ms,omitempty"`
	RelatedDecisionIDs []string `json:"related_decision_ids,omitempty"`
	Decayed            bool     `json:"decayed,omitempty"`
}

// MarshalJSON renders the flat wire form.
func (i Impact) MarshalJSON() ([]byte, error) {
	if i.Target == nil {
		return nil, fmt.Errorf("marshal impact: target is required")
	}
	return json.Marshal(wireImpact{
		Type:               i.Target.Kind(),
		Target:             i.Target.Key(),
		Value:              i.Value,
		Severity:           i.Severity,
		DurationMillis:     i.Duration.Milliseconds(),
		RelatedDecisionIDs: i.RelatedDecisionIDs,
		Decayed:            i.Decayed,
	})
}

// UnmarshalJSON parses the flat wire form into a typed target.
func (i *Impact) UnmarshalJSON(data []byte) error {
	var wire wireImpact
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	decoded, err := FromWire(string(wire.Type), wire.Target, wire.Value, string(wire.Severity), wire.DurationMillis)
	if err != nil {
		return err
	}
	decoded.RelatedDecisionIDs = wire.RelatedDecisionIDs
	decoded.Decayed = wire.Decayed
	*i = decoded
	return nil
}

// FromWire validates flat impact fields, as found in JSON payloads, YAML
// catalogs, and model output. An empty severity defaults to moderate.
func FromWire(kind, target string, value float64, severity string, durationMillis int64) (Impact, error) {
	parsedKind, err := ParseKind(kind)
	if err != nil {
		return Impact{}, err
	}
	parsedTarget, err := ParseTarget(parsedKind, target)
	if err != nil {
		return Impact{}, err
	}
	parsedSeverity := SeverityModerate
	if strings.TrimSpace(severity) != "" {
		parsedSeverity, err = ParseSeverity(severity)
		if err != nil {
			return Impact{}, err
		}
	}
	if durationMillis < 0 {
		durationMillis = 0
	}
	return Impact{
		Target:   parsedTarget,
		Value:    value,
		Severity: parsedSeverity,
		Duration: time.Duration(durationMillis) * time.Millisecond,
	}, nil
}
