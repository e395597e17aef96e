// Package migrations embeds the engine's SQL migrations so the store can
// migrate itself without SQL files on the host filesystem.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
