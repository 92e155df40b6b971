// Package migrations embeds the PostgreSQL schema migrations applied by
// cmd/migrate and, when configured, at server start.
package migrations

import "embed"

// FS holds every *.up.sql and *.down.sql file in this directory
//
//go:embed *.sql
var FS embed.FS
