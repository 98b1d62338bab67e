// Package impact models the typed, targeted effects a resolved decision
// declares, and the clamped aggregate those effects accumulate into.
//
// Targets are a closed sum type: each impact kind carries the key shape it
// naturally addresses (a subject, an actor/recipient pair, a world flag, a
// story arc). The flat "type"+"target" string form only exists at the JSON
// boundary so the state stays a plain serializable fragment.
//
// Clamp ranges:
//   - reputation: [-10, 10], additive
//   - relationship: [-10, 10], additive, keyed by actor then recipient
//   - world state: unclamped, last write wins
//   - story arc: [0, 100], additive
package impact
