package session

import (
	"slices"
	"strings"
	"time"

	"github.com/louisbranch/chronicle/internal/services/story/domain/decision"
	"github.com/louisbranch/chronicle/internal/services/story/domain/impact"
)

// MaxRecentNarrative bounds the narrative tail kept for decision context.
const MaxRecentNarrative = 20

// Phase is the lifecycle position of the current decision slot.
type Phase string

const (
	PhaseNone      Phase = "none"
	PhasePresented Phase = "presented"
	PhaseRecording Phase = "recording"
)

// Selection is a validated choice waiting for its narrative response.
type Selection struct {
	Decision decision.Decision `json:"decision"`
	Option   decision.Option   `json:"option"`
}

// State is the JSON-serializable story fragment saved with a session.
type State struct {
	// Current is the single presented decision, if any.
	Current *decision.Decision `json:"current,omitempty"`
	Phase   Phase              `json:"phase"`
	// Pending is the selection being recorded while Phase is recording. A
	// superseding Present keeps it so the in-flight record still lands.
	Pending *Selection `json:"pending,omitempty"`

	History []decision.Record `json:"history"`
	Impacts impact.State      `json:"impacts"`

	// Generating is the soft lock held while a decision is being generated.
	Generating bool `json:"generating"`
	// GeneratingSince is when the soft lock was taken.
	GeneratingSince time.Time `json:"generating_since,omitzero"`
	// SkipNarrative asks the narrative layer to skip its own response once.
	SkipNarrative        bool   `json:"skip_narrative"`
	ActionsSinceDecision int    `json:"actions_since_decision"`
	PlayerName           string `json:"player_name,omitempty"`
	// RecentNarrative is the newest narrative lines, oldest first.
	RecentNarrative []string `json:"recent_narrative,omitempty"`

	Location   *decision.Location `json:"location,omitempty"`
	Characters []string           `json:"characters,omitempty"`
	Themes     []string           `json:"themes,omitempty"`
}

// New returns an empty story fragment.
func New() State {
	return State{Phase: PhaseNone, Impacts: impact.NewState()}
}

// Clone copies the state so transitions never alias the caller's slices.
func (s State) Clone() State {
	out := s
	if s.Current != nil {
		current := s.Current.Clone()
		out.Current = &current
	}
	if s.Pending != nil {
		pending := *s.Pending
		pending.Decision = s.Pending.Decision.Clone()
		out.Pending = &pending
	}
	out.History = slices.Clone(s.History)
	out.Impacts = s.Impacts.Clone()
	out.RecentNarrative = slices.Clone(s.RecentNarrative)
	if s.Location != nil {
		location := *s.Location
		out.Location = &location
	}
	out.Characters = slices.Clone(s.Characters)
	out.Themes = slices.Clone(s.Themes)
	if out.Phase == "" {
		out.Phase = PhaseNone
	}
	return out
}

// AppendNarrative adds non-empty lines to the narrative tail, keeping the
// newest MaxRecentNarrative.
func AppendNarrative(state State, lines ...string) State {
	out := state.Clone()
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out.RecentNarrative = append(out.RecentNarrative, line)
	}
	if extra := len(out.RecentNarrative) - MaxRecentNarrative; extra > 0 {
		out.RecentNarrative = slices.Clone(out.RecentNarrative[extra:])
	}
	return out
}

// LastNarrative returns up to n of the newest narrative lines, oldest first.
func (s State) LastNarrative(n int) []string {
	if n <= 0 || len(s.RecentNarrative) == 0 {
		return nil
	}
	start := max(len(s.RecentNarrative)-n, 0)
	return slices.Clone(s.RecentNarrative[start:])
}
