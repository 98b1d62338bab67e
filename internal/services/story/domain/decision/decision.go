package decision

import (
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/chronicle/internal/platform/id"
	"github.com/louisbranch/chronicle/internal/services/story/domain/impact"
)

// Importance weighs how long a decision stays relevant to the story.
type Importance string

const (
	ImportanceMinor       Importance = "minor"
	ImportanceModerate    Importance = "moderate"
	ImportanceSignificant Importance = "significant"
	ImportanceCritical    Importance = "critical"
)

// BaseRelevance returns the relevance weight recorded for a resolved decision
// of this importance. Unknown values weigh as moderate.
func (i Importance) BaseRelevance() float64 {
	switch i {
	case ImportanceCritical:
		return 10
	case ImportanceSignificant:
		return 8
	case ImportanceMinor:
		return 2
	default:
		return 5
	}
}

// ParseImportance normalizes an importance label and reports whether it is known.
func ParseImportance(value string) (Importance, bool) {
	importance := Importance(strings.ToLower(strings.TrimSpace(value)))
	switch importance {
	case ImportanceMinor, ImportanceModerate, ImportanceSignificant, ImportanceCritical:
		return importance, true
	}
	return "", false
}

// LocationType classifies where a decision takes place.
type LocationType string

const (
	LocationTown       LocationType = "town"
	LocationLandmark   LocationType = "landmark"
	LocationWilderness LocationType = "wilderness"
	LocationDungeon    LocationType = "dungeon"
	LocationRoad       LocationType = "road"
)

// Location is the place a decision is anchored to.
type Location struct {
	Type LocationType `json:"type"`
	Name string       `json:"name,omitempty"`
}

// Named reports whether the location is a named town or landmark, the only
// places that contribute location tags.
func (l Location) Named() bool {
	if strings.TrimSpace(l.Name) == "" {
		return false
	}
	return l.Type == LocationTown || l.Type == LocationLandmark
}

// Option is one selectable branch of a decision.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	// Impact describes the consequence in prose.
	Impact string   `json:"impact"`
	Tags   []string `json:"tags,omitempty"`
	// Impacts are the typed effects copied into the record on selection.
	Impacts []impact.Impact `json:"impacts,omitempty"`
}

// Decision is a branching choice point offered to the player.
type Decision struct {
	ID               string     `json:"id"`
	Prompt           string     `json:"prompt"`
	CreatedAt        time.Time  `json:"created_at"`
	Options          []Option   `json:"options"`
	NarrativeContext string     `json:"narrative_context,omitempty"`
	Importance       Importance `json:"importance"`
	Location         *Location  `json:"location,omitempty"`
	Characters       []string   `json:"characters,omitempty"`
	// Generated is true for model-authored decisions and false for authored ones.
	Generated bool `json:"generated"`
}

// Option returns a copy of the option with the given id.
func (d Decision) Option(optionID string) (Option, bool) {
	for _, option := range d.Options {
		if option.ID == optionID {
			return cloneOption(option), true
		}
	}
	return Option{}, false
}

// Clone returns a deep copy of the decision.
func (d Decision) Clone() Decision {
	out := d
	if d.Options != nil {
		out.Options = make([]Option, len(d.Options))
		for i, option := range d.Options {
			out.Options[i] = cloneOption(option)
		}
	}
	if d.Location != nil {
		location := *d.Location
		out.Location = &location
	}
	out.Characters = cloneStrings(d.Characters)
	return out
}

func cloneOption(option Option) Option {
	out := option
	out.Tags = cloneStrings(option.Tags)
	if option.Impacts != nil {
		out.Impacts = make([]impact.Impact, len(option.Impacts))
		for i, item := range option.Impacts {
			item.RelatedDecisionIDs = cloneStrings(item.RelatedDecisionIDs)
			out.Impacts[i] = item
		}
	}
	return out
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}

// CreateDecisionInput carries the caller-chosen parts of a new decision.
type CreateDecisionInput struct {
	Prompt           string
	Options          []Option
	NarrativeContext string
	// Importance defaults to moderate when empty or unknown.
	Importance Importance
	Location   *Location
	Characters []string
	Generated  bool
}

// Factory builds decisions and options with fresh ids and timestamps.
type Factory struct {
	now         func() time.Time
	idGenerator func() (string, error)
}

// NewFactory returns a factory; nil collaborators default to time.Now and
// id.NewID.
func NewFactory(now func() time.Time, idGenerator func() (string, error)) Factory {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	return Factory{now: now, idGenerator: idGenerator}
}

// CreateDecision stamps a new decision. An empty option list is accepted.
func (f Factory) CreateDecision(input CreateDecisionInput) (Decision, error) {
	f = f.withDefaults()
	decisionID, err := f.idGenerator()
	if err != nil {
		return Decision{}, fmt.Errorf("generate decision id: %w", err)
	}
	importance, ok := ParseImportance(string(input.Importance))
	if !ok {
		importance = ImportanceModerate
	}
	draft := Decision{
		ID:               decisionID,
		Prompt:           input.Prompt,
		CreatedAt:        f.now().UTC(),
		Options:          input.Options,
		NarrativeContext: input.NarrativeContext,
		Importance:       importance,
		Location:         input.Location,
		Characters:       input.Characters,
		Generated:        input.Generated,
	}
	return draft.Clone(), nil
}

// CreateOption builds an option with a fresh id.
func (f Factory) CreateOption(text, impactDescription string, tags ...string) (Option, error) {
	f = f.withDefaults()
	optionID, err := f.idGenerator()
	if err != nil {
		return Option{}, fmt.Errorf("generate option id: %w", err)
	}
	return Option{
		ID:     optionID,
		Text:   text,
		Impact: impactDescription,
		Tags:   cloneStrings(tags),
	}, nil
}

// Now reports the factory clock.
func (f Factory) Now() time.Time {
	return f.withDefaults().now()
}

// withDefaults lets the zero Factory behave like NewFactory(nil, nil).
func (f Factory) withDefaults() Factory {
	if f.now == nil || f.idGenerator == nil {
		return NewFactory(f.now, f.idGenerator)
	}
	return f
}
