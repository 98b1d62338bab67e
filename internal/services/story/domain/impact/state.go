package impact

import (
	"math"
	"time"
)

const (
	ReputationMin   = -10.0
	ReputationMax   = 10.0
	RelationshipMin = -10.0
	RelationshipMax = 10.0
	StoryArcMin     = 0.0
	StoryArcMax     = 100.0
)

// State is the aggregate of every processed impact.
//
// Values never leave their clamp ranges. State is treated as a value: every
// method that changes it returns a modified copy and leaves the receiver
// untouched.
type State struct {
	Reputation    map[string]float64            `json:"reputation"`
	Relationships map[string]map[string]float64 `json:"relationships"`
	WorldState    map[string]float64            `json:"world_state"`
	StoryArcs     map[string]float64            `json:"story_arcs"`
	LastUpdated   time.Time                     `json:"last_updated"`
}

// NewState returns an empty state with allocated maps.
func NewState() State {
	return State{
		Reputation:    map[string]float64{},
		Relationships: map[string]map[string]float64{},
		WorldState:    map[string]float64{},
		StoryArcs:     map[string]float64{},
	}
}

// Clone deep-copies the state.
func (s State) Clone() State {
	out := NewState()
	for key, value := range s.Reputation {
		out.Reputation[key] = value
	}
	for actor, recipients := range s.Relationships {
		inner := make(map[string]float64, len(recipients))
		for recipient, value := range recipients {
			inner[recipient] = value
		}
		out.Relationships[actor] = inner
	}
	for key, value := range s.WorldState {
		out.WorldState[key] = value
	}
	for key, value := range s.StoryArcs {
		out.StoryArcs[key] = value
	}
	out.LastUpdated = s.LastUpdated
	return out
}

// Value returns the stored value for target.
func (s State) Value(target Target) (float64, bool) {
	switch t := target.(type) {
	case Reputation:
		value, ok := s.Reputation[t.Subject]
		return value, ok
	case Relationship:
		value, ok := s.Relationships[t.Actor][t.Recipient]
		return value, ok
	case WorldState:
		value, ok := s.WorldState[t.Name]
		return value, ok
	case StoryArc:
		value, ok := s.StoryArcs[t.Arc]
		return value, ok
	}
	return 0, false
}

// Apply merges impacts in order and returns the resulting state. Reputation,
// relationship and story-arc impacts add to the stored value and clamp;
// world-state impacts overwrite it.
func (s State) Apply(impacts ...Impact) State {
	out := s.Clone()
	for _, impact := range impacts {
		switch t := impact.Target.(type) {
		case Reputation:
			out.Reputation[t.Subject] = Clamp(out.Reputation[t.Subject]+impact.Value, ReputationMin, ReputationMax)
		case Relationship:
			inner, ok := out.Relationships[t.Actor]
			if !ok {
				inner = map[string]float64{}
				out.Relationships[t.Actor] = inner
			}
			inner[t.Recipient] = Clamp(inner[t.Recipient]+impact.Value, RelationshipMin, RelationshipMax)
		case WorldState:
			out.WorldState[t.Name] = impact.Value
		case StoryArc:
			out.StoryArcs[t.Arc] = Clamp(out.StoryArcs[t.Arc]+impact.Value, StoryArcMin, StoryArcMax)
		}
	}
	return out
}

// Halve returns a state whose stored value at target is halved. Missing
// targets are left absent. Halving keeps every clamped map inside its range.
func (s State) Halve(target Target) State {
	if _, ok := s.Value(target); !ok {
		return s
	}
	out := s.Clone()
	switch t := target.(type) {
	case Reputation:
		out.Reputation[t.Subject] /= 2
	case Relationship:
		out.Relationships[t.Actor][t.Recipient] /= 2
	case WorldState:
		out.WorldState[t.Name] /= 2
	case StoryArc:
		out.StoryArcs[t.Arc] /= 2
	}
	return out
}

// Clamp bounds value to [minValue, maxValue]. NaN clamps to minValue.
func Clamp(value, minValue, maxValue float64) float64 {
	if math.IsNaN(value) {
		return minValue
	}
	return math.Max(minValue, math.Min(maxValue, value))
}
