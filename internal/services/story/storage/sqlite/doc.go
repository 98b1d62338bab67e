// Package sqlite provides the SQLite-backed story session store.
//
// Sessions are kept as one JSON document per row. Each save also rewrites the
// session's rows in decision_records, which back filtered history listing.
package sqlite
