// Package config provides configuration management for the mapping
// engine and its tooling.
//
// This package handles loading and validating named database
// connections, the field encryption key and SQL log verbosity from a
// YAML file and environment variables.
//
// # Configuration Sources
//
// Configuration is loaded from:
//
//   - recmap.yml in RECMAP_CONFIG_PATH (default /etc/recmap/config)
//   - Environment variables (override file values)
//
// # Key Configuration Options
//
//   - RECMAP_DATABASE_URL: URL for the default connection
//   - RECMAP_DEFAULT_CONNECTION: Connection used when none is named
//   - RECMAP_ENCRYPTION_KEY: Base64 data key for encrypted fields
//   - RECMAP_LOG_LEVEL: SQL logging verbosity (silent, info, debug)
//
// Watch re-reads the file when it changes on disk.
package config
