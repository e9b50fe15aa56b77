package executor

import (
	"errors"
	"reflect"
	"strings"
)

// ErrConflict is returned by Insert when a uniqueness constraint fires.
// InsertIgnore reports the same condition as a false first return
// instead of an error.
var ErrConflict = errors.New("insert conflicts with an existing row")

// Row is one result row, keyed by column name. Executors return
// whatever scalar types their driver produces; callers must not assume
// exact numeric widths.
type Row map[string]any

// Encrypted marks a field value for encryption at the persistence
// boundary. Executors translate the marker into their encryption
// primitive; the plaintext never reaches the store unwrapped.
type Encrypted struct {
	Plaintext string
}

// Comparison operators accepted by Where.
const (
	OpEq = "="
	OpNe = "!="
	OpLt = "<"
	OpLe = "<="
	OpGt = ">"
	OpGe = ">="
	OpIn = "IN"
)

// Conjunctions accepted by Where.
const (
	ConjAnd = "AND"
	ConjOr  = "OR"
)

// Executor is the narrow query contract the mapping engine consumes.
//
// An Executor is stateful: Where calls accumulate conditions that the
// next terminal call (FetchOne, FetchMany, Insert, InsertIgnore,
// Update, Delete, Scalar) consumes. Terminal calls reset the
// accumulated state on every path, success or failure, so a logical
// operation never inherits conditions from the previous one. Callers
// beginning a new logical operation still call Reset first; the
// double reset is the documented discipline, not a bug.
//
// Executors are not safe for concurrent logical operations on one
// value.
type Executor interface {
	// Where adds one condition. op is a comparison operator constant,
	// conj joins this condition to the previous one (the first
	// condition's conjunction is ignored). Returns the receiver for
	// chaining.
	Where(field string, value any, op, conj string) Executor

	// FetchOne returns the first row matching the accumulated
	// conditions, or (nil, nil) when no row matches. Absence is never
	// an error.
	FetchOne(table, columns string) (Row, error)

	// FetchMany returns all matching rows, ordered by orderBy when
	// non-empty. No match yields an empty slice.
	FetchMany(table, orderBy, columns string) ([]Row, error)

	// Insert writes one row and returns the store-assigned value of
	// idColumn, or nil when idColumn is empty. Conflicting rows yield
	// ErrConflict.
	Insert(table string, fields Row, idColumn string) (any, error)

	// InsertIgnore writes one row unless it conflicts with an existing
	// one. Returns false when the insert was suppressed. Suppression
	// is not an error.
	InsertIgnore(table string, fields Row) (bool, error)

	// Update assigns fields on all rows matching the accumulated
	// conditions. Returns true when at least one row changed.
	Update(table string, fields Row) (bool, error)

	// Delete removes all rows matching the accumulated conditions.
	// Returns true when at least one row was removed.
	Delete(table string) (bool, error)

	// Scalar returns the single value of column from the first
	// matching row, or nil when no row matches. column may be an
	// aggregate expression.
	Scalar(table, column string) (any, error)

	// Reset discards accumulated conditions. Diagnostics survive.
	Reset()

	// LastError returns the text of the most recent store error, or
	// the empty string.
	LastError() string

	// LastQuery returns a rendering of the most recent query issued.
	LastQuery() string
}

// Decrypt renders the decrypt projection for a column. In a columns
// expression the projection instructs the executor to return the
// column decrypted under its own key, keyed in the row by the bare
// column name.
func Decrypt(column string) string {
	return "DECRYPT(" + column + ")"
}

// LooseEqual compares two values under the contract's equality
// policy: numeric kinds compare by value regardless of width, string
// and []byte compare byte-wise, strings never coerce to numbers, and
// everything else falls back to deep equality. Drivers legitimately
// widen numeric types on round-trips, so exact-type equality would
// report every reloaded value as changed.
func LooseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, aok := asFloat(a); aok {
		bf, bok := asFloat(b)
		return bok && af == bf
	}
	if as, aok := asString(a); aok {
		bs, bok := asString(b)
		return bok && as == bs
	}
	return reflect.DeepEqual(a, b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func asString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	}
	return "", false
}

// Column is one parsed item of a columns expression.
type Column struct {
	Name    string
	Decrypt bool
	Star    bool
}

// ParseColumns splits a columns expression into its items. The
// grammar is deliberately small: comma-separated items, each `*`, a
// bare column name, or `DECRYPT(name)`. Anything else is treated as a
// bare name and left to the store to reject.
func ParseColumns(expr string) []Column {
	var cols []Column
	for _, item := range strings.Split(expr, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		switch {
		case item == "*":
			cols = append(cols, Column{Star: true})
		case strings.HasPrefix(item, "DECRYPT(") && strings.HasSuffix(item, ")"):
			name := strings.TrimSpace(item[len("DECRYPT(") : len(item)-1])
			cols = append(cols, Column{Name: name, Decrypt: true})
		default:
			cols = append(cols, Column{Name: item})
		}
	}
	return cols
}
