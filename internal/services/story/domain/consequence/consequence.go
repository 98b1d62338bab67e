package consequence

import (
	"slices"
	"time"

	"github.com/louisbranch/chronicle/internal/services/story/domain/decision"
	"github.com/louisbranch/chronicle/internal/services/story/domain/impact"
)

// ProcessDecisionImpacts applies the record's impacts to state.
//
// An already-processed record is a no-op that returns both inputs unchanged.
// Otherwise the impacts are reconciled per target, applied in order, and the
// returned record is marked processed at now. Inputs are never mutated.
func ProcessDecisionImpacts(state impact.State, record decision.Record, now time.Time) (impact.State, decision.Record) {
	if record.ProcessedForImpact {
		return state, record
	}
	now = now.UTC()

	next := state.Apply(impact.ReconcileConflictingImpacts(record.Impacts)...)
	next.LastUpdated = now

	processed := record
	processed.Impacts = slices.Clone(record.Impacts)
	processed.Tags = slices.Clone(record.Tags)
	processed.ProcessedForImpact = true
	processed.LastImpactUpdate = now
	return next, processed
}

// EvolveImpactsOverTime halves the stored value behind every temporary impact
// whose duration has elapsed since its record was processed.
//
// Decay happens once per impact: the impact is marked Decayed and skipped on
// later calls. Unprocessed records, permanent impacts, and impacts still
// within their duration are left alone. When nothing decays the input state
// and records are returned as is.
func EvolveImpactsOverTime(state impact.State, records []decision.Record, now time.Time) (impact.State, []decision.Record) {
	next := state
	var out []decision.Record
	changed := false

	for i, record := range records {
		if !record.ProcessedForImpact {
			continue
		}
		elapsed := now.Sub(record.LastImpactUpdate)
		for j, item := range record.Impacts {
			if item.Decayed || !item.Temporary() || item.Target == nil || elapsed < item.Duration {
				continue
			}
			if !changed {
				out = slices.Clone(records)
				changed = true
			}
			if sameBacking(out[i].Impacts, records[i].Impacts) {
				out[i].Impacts = slices.Clone(records[i].Impacts)
			}
			next = next.Halve(item.Target)
			out[i].Impacts[j].Decayed = true
		}
	}

	if !changed {
		return state, records
	}
	next.LastUpdated = now.UTC()
	return next, out
}

func sameBacking(a, b []impact.Impact) bool {
	return len(a) > 0 && len(b) > 0 && &a[0] == &b[0]
}
