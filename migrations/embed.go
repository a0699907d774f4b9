// Package migrations embeds the moment store schema.
package migrations

import "embed"

// FS holds the numbered golang-migrate files at its root.
//
//go:embed *.sql
var FS embed.FS
