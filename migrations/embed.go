// Package migrations embeds the SQL migration files so the goose provider can
// apply them from the binary in tests, the CLI and server bootstrap.
package migrations

import "embed"

// FS holds all *.sql migration files embedded at compile time.
//
//go:embed *.sql
var FS embed.FS
