// Package consequence moves resolved decisions into the impact state and ages
// temporary impacts.
//
// ProcessDecisionImpacts is the only writer of impact.State. A record's
// ProcessedForImpact flag makes processing idempotent, so retried callers
// never double-apply an impact.
package consequence
