// Package db carries the engine's schema migrations for embedding into
// binaries built with the embed_migrations tag.
package db

import "embed"

//go:embed migrations
var Migrations embed.FS
