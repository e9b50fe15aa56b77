// Package gorm provides the Postgres implementation of
// executor.Executor, built on GORM.
//
// SQL is rendered by hand and executed through Raw and Exec with
// parameterized arguments; result rows are scanned into maps so any
// table shape works without model structs. Field encryption uses
// pgcrypto: executor.Encrypted values become PGP_SYM_ENCRYPT calls and
// the DECRYPT projection becomes PGP_SYM_DECRYPT, both keyed by the
// session key given at construction. The pgcrypto extension must be
// installed; `recmapctl db migrate` takes care of it.
package gorm
