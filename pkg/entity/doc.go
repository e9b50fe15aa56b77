// Package entity maps dynamic records onto stored rows. A Type
// declares a table's shape once; entities of that type carry their
// fields as a mapping and track which of them changed, so updates
// write only the difference.
//
//	var User = entity.Define(&entity.Type{
//	    Name:      "User",
//	    Defaults:  []string{"login"},
//	    Encrypted: []string{"api_key"},
//	})
//
//	u := User.New(reg)
//	u.Set("login", "alice")
//	u.Set("api_key", "s3cret")
//	ok, err := u.Save()
//
// Field access runs through one ordered chain: persisted fields,
// computed fields, relations, extra fields, then nil. Relations come
// in four kinds (DirectReference, SingleOwned, MultiOwned,
// IndirectThrough) and resolve lazily. Lifecycle hooks may veto writes;
// a veto is silent, not an error.
//
// All storage goes through the executor contract, so the same types
// run against Postgres in production and the in-memory executor in
// tests.
package entity
