package memory

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/cadogan/recmap/pkg/crypt"
	"github.com/cadogan/recmap/pkg/executor"
)

// Ensure Executor implements executor.Executor
var _ executor.Executor = (*Executor)(nil)

type cond struct {
	field string
	value any
	op    string
	conj  string
}

type table struct {
	rows   []executor.Row
	nextID int64
	unique [][]string
}

// Executor keeps tables in process memory. Rows are stored the way an
// executor would persist them: encryption markers are sealed with the
// configured cipher, so a raw read returns ciphertext and only the
// DECRYPT projection returns plaintext.
type Executor struct {
	cipher    crypt.Cipher
	tables    map[string]*table
	conds     []cond
	lastErr   string
	lastQuery string
}

// New returns an empty in-memory executor. cipher may be nil when no
// encrypted fields are in play; writing or projecting an encrypted
// value without one is an error.
func New(cipher crypt.Cipher) *Executor {
	return &Executor{
		cipher: cipher,
		tables: map[string]*table{},
	}
}

// DeclareUnique registers a uniqueness constraint consulted by Insert
// and InsertIgnore. Constraints with a nil candidate value never
// conflict, matching SQL null semantics.
func (e *Executor) DeclareUnique(tableName string, columns ...string) {
	t := e.table(tableName)
	t.unique = append(t.unique, columns)
}

// Rows returns copies of a table's rows in insertion order, values
// exactly as stored. Encrypted columns come back as ciphertext.
func (e *Executor) Rows(tableName string) []executor.Row {
	t := e.table(tableName)
	out := make([]executor.Row, 0, len(t.rows))
	for _, row := range t.rows {
		out = append(out, copyRow(row))
	}
	return out
}

func (e *Executor) table(name string) *table {
	t, ok := e.tables[name]
	if !ok {
		t = &table{}
		e.tables[name] = t
	}
	return t
}

func (e *Executor) Where(field string, value any, op, conj string) executor.Executor {
	e.conds = append(e.conds, cond{field: field, value: value, op: op, conj: conj})
	return e
}

func (e *Executor) FetchOne(tableName, columns string) (executor.Row, error) {
	defer e.Reset()
	e.record("SELECT " + columns + " FROM " + tableName + e.renderConds())

	for _, row := range e.table(tableName).rows {
		if e.match(row) {
			projected, err := e.project(tableName, row, columns)
			if err != nil {
				return nil, e.fail(err)
			}
			return projected, nil
		}
	}
	return nil, nil
}

func (e *Executor) FetchMany(tableName, orderBy, columns string) ([]executor.Row, error) {
	defer e.Reset()
	e.record("SELECT " + columns + " FROM " + tableName + e.renderConds())

	matched := []executor.Row{}
	for _, row := range e.table(tableName).rows {
		if e.match(row) {
			matched = append(matched, row)
		}
	}
	if orderBy != "" {
		orderRows(matched, orderBy)
	}

	out := make([]executor.Row, 0, len(matched))
	for _, row := range matched {
		projected, err := e.project(tableName, row, columns)
		if err != nil {
			return nil, e.fail(err)
		}
		out = append(out, projected)
	}
	return out, nil
}

func (e *Executor) Insert(tableName string, fields executor.Row, idColumn string) (any, error) {
	defer e.Reset()
	e.record("INSERT INTO " + tableName)
	t := e.table(tableName)

	stored, err := e.seal(tableName, fields)
	if err != nil {
		return nil, e.fail(err)
	}

	if t.conflicting(stored) != nil {
		return nil, e.fail(fmt.Errorf("%w: %s", executor.ErrConflict, tableName))
	}

	var id any
	if idColumn != "" {
		if v, ok := stored[idColumn]; ok && v != nil {
			id = v
		} else {
			t.nextID++
			id = t.nextID
			stored[idColumn] = id
		}
	}

	t.rows = append(t.rows, stored)
	return id, nil
}

func (e *Executor) InsertIgnore(tableName string, fields executor.Row) (bool, error) {
	defer e.Reset()
	e.record("INSERT INTO " + tableName + " ON CONFLICT DO NOTHING")
	t := e.table(tableName)

	stored, err := e.seal(tableName, fields)
	if err != nil {
		return false, e.fail(err)
	}

	if t.conflicting(stored) != nil {
		return false, nil
	}

	t.rows = append(t.rows, stored)
	return true, nil
}

func (e *Executor) Update(tableName string, fields executor.Row) (bool, error) {
	defer e.Reset()
	e.record("UPDATE " + tableName + e.renderConds())

	stored, err := e.seal(tableName, fields)
	if err != nil {
		return false, e.fail(err)
	}

	updated := false
	for _, row := range e.table(tableName).rows {
		if e.match(row) {
			for k, v := range stored {
				row[k] = v
			}
			updated = true
		}
	}
	return updated, nil
}

func (e *Executor) Delete(tableName string) (bool, error) {
	defer e.Reset()
	e.record("DELETE FROM " + tableName + e.renderConds())
	t := e.table(tableName)

	kept := t.rows[:0]
	deleted := false
	for _, row := range t.rows {
		if e.match(row) {
			deleted = true
			continue
		}
		kept = append(kept, row)
	}
	t.rows = kept
	return deleted, nil
}

func (e *Executor) Scalar(tableName, column string) (any, error) {
	defer e.Reset()
	e.record("SELECT " + column + " FROM " + tableName + e.renderConds())

	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(column)), "COUNT(") {
		var n int64
		for _, row := range e.table(tableName).rows {
			if e.match(row) {
				n++
			}
		}
		return n, nil
	}

	for _, row := range e.table(tableName).rows {
		if e.match(row) {
			return row[column], nil
		}
	}
	return nil, nil
}

func (e *Executor) Reset() {
	e.conds = nil
}

func (e *Executor) LastError() string {
	return e.lastErr
}

func (e *Executor) LastQuery() string {
	return e.lastQuery
}

func (e *Executor) fail(err error) error {
	e.lastErr = err.Error()
	return err
}

func (e *Executor) record(query string) {
	e.lastQuery = query
}

func (e *Executor) renderConds() string {
	if len(e.conds) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(" WHERE ")
	for i, c := range e.conds {
		if i > 0 {
			b.WriteString(" " + strings.ToUpper(c.conj) + " ")
		}
		fmt.Fprintf(&b, "%s %s %v", c.field, c.op, c.value)
	}
	return b.String()
}

// seal translates encryption markers into stored ciphertext.
func (e *Executor) seal(tableName string, fields executor.Row) (executor.Row, error) {
	stored := make(executor.Row, len(fields))
	for k, v := range fields {
		enc, ok := v.(executor.Encrypted)
		if !ok {
			stored[k] = v
			continue
		}
		if e.cipher == nil {
			return nil, fmt.Errorf("field %q is encrypted but no cipher is configured", k)
		}
		sealed, err := e.cipher.Encrypt(aad(tableName, k), []byte(enc.Plaintext))
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt %q: %w", k, err)
		}
		stored[k] = sealed
	}
	return stored, nil
}

func (e *Executor) project(tableName string, row executor.Row, columns string) (executor.Row, error) {
	out := executor.Row{}
	for _, col := range executor.ParseColumns(columns) {
		switch {
		case col.Star:
			for k, v := range row {
				out[k] = v
			}
		case col.Decrypt:
			v, ok := row[col.Name]
			if !ok || v == nil {
				out[col.Name] = nil
				continue
			}
			packed, ok := v.([]byte)
			if !ok {
				return nil, fmt.Errorf("column %q holds no ciphertext", col.Name)
			}
			if e.cipher == nil {
				return nil, fmt.Errorf("column %q is encrypted but no cipher is configured", col.Name)
			}
			plain, err := e.cipher.Decrypt(aad(tableName, col.Name), packed)
			if err != nil {
				return nil, fmt.Errorf("failed to decrypt %q: %w", col.Name, err)
			}
			out[col.Name] = string(plain)
		default:
			out[col.Name] = row[col.Name]
		}
	}
	return out, nil
}

func (e *Executor) match(row executor.Row) bool {
	if len(e.conds) == 0 {
		return true
	}
	result := evalCond(row, e.conds[0])
	for _, c := range e.conds[1:] {
		v := evalCond(row, c)
		if strings.EqualFold(c.conj, executor.ConjOr) {
			result = result || v
		} else {
			result = result && v
		}
	}
	return result
}

func evalCond(row executor.Row, c cond) bool {
	actual := row[c.field]
	op := strings.ToUpper(c.op)
	switch op {
	case executor.OpIn:
		rv := reflect.ValueOf(c.value)
		if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
			return false
		}
		for i := 0; i < rv.Len(); i++ {
			if executor.LooseEqual(actual, rv.Index(i).Interface()) {
				return true
			}
		}
		return false
	case executor.OpEq, "":
		return executor.LooseEqual(actual, c.value)
	case executor.OpNe:
		return !executor.LooseEqual(actual, c.value)
	case executor.OpLt, executor.OpLe, executor.OpGt, executor.OpGe:
		cmp, ok := compare(actual, c.value)
		if !ok {
			return false
		}
		switch op {
		case executor.OpLt:
			return cmp < 0
		case executor.OpLe:
			return cmp <= 0
		case executor.OpGt:
			return cmp > 0
		default:
			return cmp >= 0
		}
	default:
		return false
	}
}

func (t *table) conflicting(candidate executor.Row) executor.Row {
	for _, cols := range t.unique {
		applies := true
		for _, col := range cols {
			if candidate[col] == nil {
				applies = false
				break
			}
		}
		if !applies {
			continue
		}
		for _, row := range t.rows {
			same := true
			for _, col := range cols {
				if !executor.LooseEqual(row[col], candidate[col]) {
					same = false
					break
				}
			}
			if same {
				return row
			}
		}
	}
	return nil
}

func orderRows(rows []executor.Row, orderBy string) {
	type term struct {
		column string
		desc   bool
	}
	var terms []term
	for _, part := range strings.Split(orderBy, ",") {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		t := term{column: fields[0]}
		if len(fields) > 1 && strings.EqualFold(fields[1], "DESC") {
			t.desc = true
		}
		terms = append(terms, t)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		for _, t := range terms {
			vi, vj := rows[i][t.column], rows[j][t.column]
			cmp, ok := compare(vi, vj)
			if !ok {
				switch {
				case vi == nil && vj != nil:
					cmp = -1
				case vi != nil && vj == nil:
					cmp = 1
				default:
					continue
				}
			}
			if cmp == 0 {
				continue
			}
			if t.desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

func compare(a, b any) (int, bool) {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			switch {
			case af < bf:
				return -1, true
			case af > bf:
				return 1, true
			}
			return 0, true
		}
	}
	if as, aok := toStr(a); aok {
		if bs, bok := toStr(b); bok {
			return strings.Compare(as, bs), true
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
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

func toStr(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	}
	return "", false
}

func aad(tableName, column string) []byte {
	return []byte(tableName + "." + column)
}

func copyRow(row executor.Row) executor.Row {
	out := make(executor.Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}
