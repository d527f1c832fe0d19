// Package migrations embeds the tracker schema and applies it at startup.
//
// The runners take small exec interfaces rather than store types, so the
// store packages can apply the same files in their integration tests.
package migrations

import "embed"

//go:embed postgres/*.sql
var postgresFS embed.FS

//go:embed clickhouse/*.sql
var clickhouseFS embed.FS
