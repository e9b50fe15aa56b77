// Package main implements recmapctl, the admin CLI for the recmap
// record-mapping engine.
//
// recmap maps schemaless records onto relational tables: entity types
// declare their fields, relations and transforms at registration time,
// and the engine drives any store that implements the executor
// contract. This CLI manages the pieces around the engine itself.
//
// # Architecture
//
// The engine is organized into several packages:
//
//   - pkg/entity: entity types, instances, relations and lifecycle
//   - pkg/executor: the query executor contract the engine drives
//   - pkg/executor/gorm: Postgres-backed executor (pgcrypto encryption)
//   - pkg/executor/memory: in-memory executor for tests and tooling
//   - pkg/search: term index maintained alongside saved entities
//   - pkg/crypt: AES-256-GCM cipher for encrypted fields
//   - pkg/registry: named executor registry
//   - pkg/config: configuration management
//
// # Quick Start
//
//	# Generate a data encryption key
//	export RECMAP_ENCRYPTION_KEY="$(recmapctl data-key generate)"
//
//	# Run database migrations
//	recmapctl db migrate
//
//	# Wait until the database accepts connections
//	recmapctl db wait
//
// # Environment Variables
//
//   - RECMAP_DATABASE_URL: PostgreSQL connection string
//   - RECMAP_ENCRYPTION_KEY: Base64-encoded 256-bit key for encrypted fields
//   - RECMAP_CONFIG_PATH: directory holding recmap.yml
//   - RECMAP_LOG_LEVEL: SQL log level (silent, info, debug)
package main
