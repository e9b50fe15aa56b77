// Package crypt implements the symmetric encryption used for
// encrypted-at-rest entity fields.
//
// Values are sealed with AES-256-GCM under a 256-bit data key held by
// the executor, never by the mapping core. The column identity of a
// value travels as additional authenticated data, so a ciphertext
// lifted from one column fails to decrypt in another.
//
//	key, err := crypt.ParseKey(os.Getenv("RECMAP_ENCRYPTION_KEY"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cipher, err := crypt.New(key)
//
// Generate a key with `recmapctl data-key generate`.
package crypt
