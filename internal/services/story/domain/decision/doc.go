// Package decision models branching choice points and their durable records.
//
// A Decision is built once by a Factory and never mutated afterwards; callers
// that need a different decision create a new one. A Record is the resolved
// form of a decision: the option the player picked, the narrative that
// followed, and the tags and relevance weight used later when the story looks
// back on past choices.
//
// The package holds:
//   - the Decision, Option, and Location value objects,
//   - the Factory that stamps ids and creation times,
//   - and Record construction with its tag and expiry rules.
package decision
