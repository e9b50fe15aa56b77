// Package memory provides an in-process executor.Executor.
//
// It backs the test suite and the behavior features: no database is
// required, yet the contract is honored in full, including encryption.
// Values marked executor.Encrypted are sealed with a real AES-256-GCM
// cipher, so a raw read observes ciphertext and only the DECRYPT
// projection recovers the plaintext, exactly as with pgcrypto.
package memory
