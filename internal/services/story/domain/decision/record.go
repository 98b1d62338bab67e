package decision

import (
	"strings"
	"time"

	"github.com/louisbranch/chronicle/internal/services/story/domain/impact"
)

// MinorRetention is how long a minor decision stays eligible for history.
const MinorRetention = 7 * 24 * time.Hour

// Record is the durable record of a resolved decision and the option chosen.
type Record struct {
	DecisionID       string    `json:"decision_id"`
	SelectedOptionID string    `json:"selected_option_id"`
	Timestamp        time.Time `json:"timestamp"`
	Narrative        string    `json:"narrative"`
	// Impact is the chosen option's consequence description.
	Impact string   `json:"impact"`
	Tags   []string `json:"tags"`
	// RelevanceScore is fixed at creation; scoring never writes it back.
	RelevanceScore float64    `json:"relevance_score"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`

	Impacts            []impact.Impact `json:"impacts,omitempty"`
	ProcessedForImpact bool            `json:"processed_for_impact"`
	LastImpactUpdate   time.Time       `json:"last_impact_update"`

	Prompt     string     `json:"prompt,omitempty"`
	Choice     string     `json:"choice,omitempty"`
	Importance Importance `json:"importance,omitempty"`
}

// NewRecord resolves decision with option at now. The option must belong to
// the decision; callers validate that before recording.
func NewRecord(d Decision, option Option, narrative string, now time.Time) Record {
	now = now.UTC()
	importance, ok := ParseImportance(string(d.Importance))
	if !ok {
		importance = ImportanceModerate
	}

	record := Record{
		DecisionID:       d.ID,
		SelectedOptionID: option.ID,
		Timestamp:        now,
		Narrative:        narrative,
		Impact:           option.Impact,
		Tags:             BuildRecordTags(d, option),
		RelevanceScore:   importance.BaseRelevance(),
		Impacts:          cloneOption(option).Impacts,
		LastImpactUpdate: now,
		Prompt:           d.Prompt,
		Choice:           option.Text,
		Importance:       importance,
	}
	if importance == ImportanceMinor {
		expiresAt := now.Add(MinorRetention)
		record.ExpiresAt = &expiresAt
	}
	return record
}

// BuildRecordTags returns the option tags followed by character, importance,
// and location tags, without duplicates.
func BuildRecordTags(d Decision, option Option) []string {
	importance, ok := ParseImportance(string(d.Importance))
	if !ok {
		importance = ImportanceModerate
	}

	tags := make([]string, 0, len(option.Tags)+len(d.Characters)+3)
	seen := make(map[string]struct{}, cap(tags))
	add := func(tag string) {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			return
		}
		if _, ok := seen[tag]; ok {
			return
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}

	for _, tag := range option.Tags {
		add(tag)
	}
	for _, name := range d.Characters {
		if strings.TrimSpace(name) != "" {
			add(CharacterTag(name))
		}
	}
	add("importance:" + string(importance))
	if d.Location != nil && d.Location.Named() {
		add(LocationTag(d.Location.Type))
		add(PlaceTag(d.Location.Name))
	}
	return tags
}

// CharacterTag renders the tag for a named character.
func CharacterTag(name string) string {
	return "character:" + strings.TrimSpace(name)
}

// LocationTag renders the tag for a location type.
func LocationTag(locationType LocationType) string {
	return "location:" + string(locationType)
}

// PlaceTag renders the tag for a named place.
func PlaceTag(name string) string {
	return "place:" + strings.TrimSpace(name)
}

// ThemeTag renders the tag for a story theme.
func ThemeTag(name string) string {
	return "theme:" + strings.TrimSpace(name)
}

// HasExpired reports whether the record carries an expiry strictly before now.
func (r Record) HasExpired(now time.Time) bool {
	return r.ExpiresAt != nil && r.ExpiresAt.Before(now)
}
