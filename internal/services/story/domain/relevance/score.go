package relevance

import (
	"math"
	"time"

	"github.com/louisbranch/chronicle/internal/services/story/domain/decision"
)

const (
	// HalfLife is the age at which a record's stored relevance counts half.
	HalfLife = 72 * time.Hour
	// TagMatchBonus is added per context tag the record carries.
	TagMatchBonus = 1.0
	// MaxTagMatches caps how many matching tags earn a bonus.
	MaxTagMatches = 3
)

// CalculateRelevanceScore scores record against the current context.
//
// Expired records score zero. Otherwise the stored relevance decays by half
// every HalfLife of age, and each distinct context tag the record carries adds
// TagMatchBonus, up to MaxTagMatches. Records stamped in the future are
// treated as brand new.
func CalculateRelevanceScore(record decision.Record, contextTags []string, now time.Time) float64 {
	if record.HasExpired(now) {
		return 0
	}
	age := max(now.Sub(record.Timestamp), 0)
	recency := math.Pow(0.5, float64(age)/float64(HalfLife))
	return record.RelevanceScore*recency + float64(countMatches(record.Tags, contextTags))*TagMatchBonus
}

func countMatches(recordTags, contextTags []string) int {
	if len(recordTags) == 0 || len(contextTags) == 0 {
		return 0
	}
	have := make(map[string]struct{}, len(recordTags))
	for _, tag := range recordTags {
		have[tag] = struct{}{}
	}
	counted := make(map[string]struct{}, len(contextTags))
	matches := 0
	for _, tag := range contextTags {
		if _, ok := have[tag]; !ok {
			continue
		}
		if _, dup := counted[tag]; dup {
			continue
		}
		counted[tag] = struct{}{}
		matches++
		if matches == MaxTagMatches {
			break
		}
	}
	return matches
}
