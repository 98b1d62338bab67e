// Package trigger decides when the story should stop for a decision and
// produces that decision.
//
// Production is a two-stage Pipeline: a remote Generator is asked first, and
// any failure, empty reply, or rejected reply falls through to Synthesize, a
// deterministic local builder. Resolve always returns a usable decision; the
// remote failure, if any, travels alongside it as Outcome.Cause.
package trigger
