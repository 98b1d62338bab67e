package migrations

import "embed"

// FS contains embedded SQLite migrations for story storage.
//
//go:embed *.sql
var FS embed.FS
