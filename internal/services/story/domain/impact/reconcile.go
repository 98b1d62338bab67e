package impact

import "sort"

const (
	reconcileMin = -10.0
	reconcileMax = 10.0
	// followerWeight scales the i-th follower of a group by followerWeight/i.
	followerWeight = 0.5
)

type groupKey struct {
	kind Kind
	key  string
}

// ReconcileConflictingImpacts blends impacts that address the same target.
//
// Groups keep the order in which their target first appears. A group of one
// passes through unchanged. Larger groups are ordered by severity (stable for
// equal severities); the most severe impact is the base and each follower at
// position i adds value*0.5/i. The blended value is clamped to [-10, 10] for
// every kind, before any per-kind clamping applied later by State.Apply.
func ReconcileConflictingImpacts(impacts []Impact) []Impact {
	if len(impacts) == 0 {
		return nil
	}

	order := make([]groupKey, 0, len(impacts))
	groups := make(map[groupKey][]Impact, len(impacts))
	for _, impact := range impacts {
		if impact.Target == nil {
			continue
		}
		key := groupKey{kind: impact.Target.Kind(), key: impact.Target.Key()}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], impact)
	}

	out := make([]Impact, 0, len(order))
	for _, key := range order {
		group := groups[key]
		if len(group) == 1 {
			out = append(out, group[0])
			continue
		}
		out = append(out, blend(group))
	}
	return out
}

func blend(group []Impact) Impact {
	sorted := make([]Impact, len(group))
	copy(sorted, group)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Severity.Rank() > sorted[j].Severity.Rank()
	})

	base := sorted[0]
	value := base.Value
	for i := 1; i < len(sorted); i++ {
		value += sorted[i].Value * (followerWeight / float64(i))
	}

	related := make([]string, 0)
	seen := make(map[string]struct{})
	for _, impact := range sorted {
		for _, id := range impact.RelatedDecisionIDs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			related = append(related, id)
		}
	}
	if len(related) == 0 {
		related = nil
	}

	return Impact{
		Target:             base.Target,
		Value:              Clamp(value, reconcileMin, reconcileMax),
		Severity:           base.Severity,
		Duration:           base.Duration,
		RelatedDecisionIDs: related,
		Decayed:            base.Decayed,
	}
}
