// Package relevance ranks past decision records for inclusion in narrative
// prompts and renders the selected records as a short text digest.
//
// Scoring is a read-side projection: it never writes back into a record.
package relevance
