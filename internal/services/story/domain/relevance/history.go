package relevance

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/louisbranch/chronicle/internal/services/story/domain/decision"
)

const (
	// DefaultHistoryLimit is used when a caller passes a non-positive limit.
	DefaultHistoryLimit = 5
	// ExcerptRunes bounds the narrative excerpt per record.
	ExcerptRunes = 100

	historyHeader = "Relevant past decisions:"
)

// GenerateContextTags renders the scene as tags comparable with record tags.
func GenerateContextTags(location *decision.Location, characters, themes []string) []string {
	tags := make([]string, 0, len(characters)+len(themes)+2)
	if location != nil && location.Named() {
		tags = append(tags, decision.LocationTag(location.Type), decision.PlaceTag(location.Name))
	}
	for _, name := range characters {
		if strings.TrimSpace(name) != "" {
			tags = append(tags, decision.CharacterTag(name))
		}
	}
	for _, theme := range themes {
		if strings.TrimSpace(theme) != "" {
			tags = append(tags, decision.ThemeTag(theme))
		}
	}
	return tags
}

type scored struct {
	record decision.Record
	score  float64
}

// FilterMostRelevantDecisions returns up to limit records ordered by score,
// newest first on ties. Expired records are dropped.
func FilterMostRelevantDecisions(records []decision.Record, contextTags []string, limit int, now time.Time) []decision.Record {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	candidates := make([]scored, 0, len(records))
	for _, record := range records {
		score := CalculateRelevanceScore(record, contextTags, now)
		if score <= 0 {
			continue
		}
		candidates = append(candidates, scored{record: record, score: score})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].record.Timestamp.After(candidates[j].record.Timestamp)
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]decision.Record, len(candidates))
	for i, candidate := range candidates {
		out[i] = candidate.record
	}
	return out
}

// FormatDecisionsForAIContext renders records as a numbered digest. It
// returns an empty string for no records.
func FormatDecisionsForAIContext(records []decision.Record) string {
	if len(records) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(historyHeader)
	for i, record := range records {
		prompt := strings.TrimSpace(record.Prompt)
		if prompt == "" {
			prompt = "Decision " + record.DecisionID
		}
		fmt.Fprintf(&b, "\n%d. %s", i+1, prompt)
		if choice := strings.TrimSpace(record.Choice); choice != "" {
			fmt.Fprintf(&b, "\n   Choice: %s", choice)
		}
		if consequence := strings.TrimSpace(record.Impact); consequence != "" {
			fmt.Fprintf(&b, "\n   Impact: %s", consequence)
		}
		if excerpt := Excerpt(record.Narrative, ExcerptRunes); excerpt != "" {
			fmt.Fprintf(&b, "\n   Outcome: %s", excerpt)
		}
	}
	return b.String()
}

// HistoryQuery describes the scene a digest is built for.
type HistoryQuery struct {
	Location   *decision.Location
	Characters []string
	Themes     []string
	Limit      int
}

// CreateDecisionHistoryContext selects and formats the records most relevant
// to the scene in query.
func CreateDecisionHistoryContext(records []decision.Record, query HistoryQuery, now time.Time) string {
	tags := GenerateContextTags(query.Location, query.Characters, query.Themes)
	return FormatDecisionsForAIContext(FilterMostRelevantDecisions(records, tags, query.Limit, now))
}

// Excerpt collapses whitespace and truncates text to limit runes, adding an
// ellipsis when anything was cut.
func Excerpt(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text
	}
	return strings.TrimRight(string(runes[:limit]), " ") + "..."
}
