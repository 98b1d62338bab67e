package decision

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/louisbranch/chronicle/internal/services/story/domain/impact"
)

func fixedClock() func() time.Time {
	return func() time.Time { return time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC) }
}

func sequenceIDs(prefix string) func() (string, error) {
	n := 0
	return func() (string, error) {
		n++
		return fmt.Sprintf("%s%d", prefix, n), nil
	}
}

func TestCreateDecisionDefaults(t *testing.T) {
	factory := NewFactory(fixedClock(), sequenceIDs("id-"))
	d, err := factory.CreateDecision(CreateDecisionInput{Prompt: "Cross the river?"})
	if err != nil {
		t.Fatalf("CreateDecision: %v", err)
	}
	if d.ID != "id-1" {
		t.Fatalf("ID = %q, want id-1", d.ID)
	}
	if d.Importance != ImportanceModerate {
		t.Fatalf("Importance = %q, want moderate", d.Importance)
	}
	if !d.CreatedAt.Equal(fixedClock()()) {
		t.Fatalf("CreatedAt = %v", d.CreatedAt)
	}
	if len(d.Options) != 0 {
		t.Fatalf("Options = %v, want empty", d.Options)
	}
	if d.Generated {
		t.Fatal("Generated = true, want false")
	}
}

func TestCreateDecisionCopiesInput(t *testing.T) {
	factory := NewFactory(fixedClock(), sequenceIDs("id-"))
	option, err := factory.CreateOption("Help", "The miller is grateful", "kindness")
	if err != nil {
		t.Fatalf("CreateOption: %v", err)
	}
	options := []Option{option}
	characters := []string{"Mara"}
	d, err := factory.CreateDecision(CreateDecisionInput{
		Prompt:     "The miller asks for help.",
		Options:    options,
		Importance: "Critical",
		Characters: characters,
		Generated:  true,
	})
	if err != nil {
		t.Fatalf("CreateDecision: %v", err)
	}
	options[0].Text = "changed"
	characters[0] = "changed"

	if d.Options[0].Text != "Help" || d.Characters[0] != "Mara" {
		t.Fatalf("decision shares caller slices: %#v", d)
	}
	if d.Importance != ImportanceCritical || !d.Generated {
		t.Fatalf("decision = %#v", d)
	}
}

func TestCreateDecisionIDFailure(t *testing.T) {
	boom := errors.New("boom")
	factory := NewFactory(fixedClock(), func() (string, error) { return "", boom })
	if _, err := factory.CreateDecision(CreateDecisionInput{}); !errors.Is(err, boom) {
		t.Fatalf("CreateDecision error = %v, want wrapped boom", err)
	}
	if _, err := factory.CreateOption("x", "y"); !errors.Is(err, boom) {
		t.Fatalf("CreateOption error = %v, want wrapped boom", err)
	}
}

func TestZeroFactoryUsesDefaults(t *testing.T) {
	var factory Factory
	d, err := factory.CreateDecision(CreateDecisionInput{Prompt: "p"})
	if err != nil {
		t.Fatalf("CreateDecision: %v", err)
	}
	if d.ID == "" || d.CreatedAt.IsZero() {
		t.Fatalf("decision = %#v, want id and timestamp", d)
	}
}

func TestDecisionOptionReturnsCopy(t *testing.T) {
	d := Decision{Options: []Option{{ID: "o1", Tags: []string{"a"}}}}
	option, ok := d.Option("o1")
	if !ok {
		t.Fatal("Option(o1) missing")
	}
	option.Tags[0] = "mutated"
	if d.Options[0].Tags[0] != "a" {
		t.Fatal("Option returned shared tags")
	}
	if _, ok := d.Option("missing"); ok {
		t.Fatal("Option(missing) found")
	}
}

func TestParseImportance(t *testing.T) {
	tests := []struct {
		input string
		want  Importance
		ok    bool
	}{
		{input: "minor", want: ImportanceMinor, ok: true},
		{input: " SIGNIFICANT ", want: ImportanceSignificant, ok: true},
		{input: "epic", ok: false},
	}
	for _, tc := range tests {
		got, ok := ParseImportance(tc.input)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParseImportance(%q) = %q, %v; want %q, %v", tc.input, got, ok, tc.want, tc.ok)
		}
	}
}

func TestBaseRelevance(t *testing.T) {
	tests := map[Importance]float64{
		ImportanceCritical:    10,
		ImportanceSignificant: 8,
		ImportanceModerate:    5,
		ImportanceMinor:       2,
	}
	for importance, want := range tests {
		if got := importance.BaseRelevance(); got != want {
			t.Fatalf("%s.BaseRelevance() = %v, want %v", importance, got, want)
		}
	}
}

func TestLocationNamed(t *testing.T) {
	tests := []struct {
		location Location
		want     bool
	}{
		{location: Location{Type: LocationTown, Name: "Ashford"}, want: true},
		{location: Location{Type: LocationLandmark, Name: "Old Tower"}, want: true},
		{location: Location{Type: LocationTown}, want: false},
		{location: Location{Type: LocationWilderness, Name: "Fens"}, want: false},
	}
	for _, tc := range tests {
		if got := tc.location.Named(); got != tc.want {
			t.Fatalf("%#v.Named() = %v, want %v", tc.location, got, tc.want)
		}
	}
}

func TestOptionImpactsCloned(t *testing.T) {
	d := Decision{Options: []Option{{
		ID:      "o1",
		Impacts: []impact.Impact{{Target: impact.Reputation{Subject: "guild"}, Value: 1, RelatedDecisionIDs: []string{"d0"}}},
	}}}
	clone := d.Clone()
	clone.Options[0].Impacts[0].RelatedDecisionIDs[0] = "changed"
	if d.Options[0].Impacts[0].RelatedDecisionIDs[0] != "d0" {
		t.Fatal("Clone shared impact related ids")
	}
}
