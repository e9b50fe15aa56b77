// Package executor defines the query contract the mapping engine
// consumes.
//
// The engine never speaks SQL. It accumulates conditions on an
// Executor, then issues one terminal call per logical operation. Two
// implementations ship with the module:
//
//   - executor/gorm: Postgres via GORM, encryption through pgcrypto
//   - executor/memory: in-process tables, encryption through pkg/crypt
//
// # Query state
//
// Executors are stateful by contract. Conditions accumulate until a
// terminal call consumes them, and every terminal call clears them on
// the way out, error or not. Callers reset again before composing a
// new logical operation.
//
// # Encryption
//
// A value wrapped in Encrypted is sealed by the executor before the
// write. Reading it back requires the DECRYPT(column) projection in
// the columns expression; the executor returns the decrypted value
// under the bare column name. The engine holds no key material.
package executor
