package gorm

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgconn"
	"gorm.io/gorm"

	"github.com/cadogan/recmap/pkg/executor"
)

// Ensure Executor implements executor.Executor
var _ executor.Executor = (*Executor)(nil)

const uniqueViolationCode = "23505"

type cond struct {
	field string
	value any
	op    string
	conj  string
}

// Executor implements executor.Executor over Postgres through GORM.
// Queries are rendered as parameterized SQL and scanned into maps.
// Encryption markers become PGP_SYM_ENCRYPT calls and the DECRYPT
// projection becomes PGP_SYM_DECRYPT, both keyed by the session key.
type Executor struct {
	db        *gorm.DB
	key       string
	conds     []cond
	lastErr   string
	lastQuery string
}

// New wraps an established GORM handle. key is the pgcrypto passphrase
// used for encrypted fields; it may be empty when no type declares any.
func New(db *gorm.DB, key string) *Executor {
	return &Executor{db: db, key: key}
}

func (e *Executor) Where(field string, value any, op, conj string) executor.Executor {
	e.conds = append(e.conds, cond{field: field, value: value, op: op, conj: conj})
	return e
}

func (e *Executor) FetchOne(table, columns string) (executor.Row, error) {
	defer e.Reset()

	sel, selArgs := e.buildSelect(columns)
	where, whereArgs := e.buildWhere()
	query := "SELECT " + sel + " FROM " + quoteIdent(table) + where + " LIMIT 1"
	e.lastQuery = query

	var row map[string]any
	tx := e.db.Raw(query, append(selArgs, whereArgs...)...).Scan(&row)
	if tx.Error != nil {
		return nil, e.fail("select from", table, tx.Error)
	}
	if tx.RowsAffected == 0 {
		return nil, nil
	}
	return executor.Row(row), nil
}

func (e *Executor) FetchMany(table, orderBy, columns string) ([]executor.Row, error) {
	defer e.Reset()

	sel, selArgs := e.buildSelect(columns)
	where, whereArgs := e.buildWhere()
	query := "SELECT " + sel + " FROM " + quoteIdent(table) + where
	if orderBy != "" {
		query += " ORDER BY " + orderBy
	}
	e.lastQuery = query

	var raw []map[string]any
	tx := e.db.Raw(query, append(selArgs, whereArgs...)...).Scan(&raw)
	if tx.Error != nil {
		return nil, e.fail("select from", table, tx.Error)
	}

	rows := make([]executor.Row, 0, len(raw))
	for _, r := range raw {
		rows = append(rows, executor.Row(r))
	}
	return rows, nil
}

func (e *Executor) Insert(table string, fields executor.Row, idColumn string) (any, error) {
	defer e.Reset()

	cols, exprs, args := e.buildValues(fields)
	query := "INSERT INTO " + quoteIdent(table) +
		" (" + strings.Join(cols, ", ") + ") VALUES (" + strings.Join(exprs, ", ") + ")"

	if idColumn == "" {
		e.lastQuery = query
		if tx := e.db.Exec(query, args...); tx.Error != nil {
			return nil, e.fail("insert into", table, conflictOr(tx.Error, table))
		}
		return nil, nil
	}

	query += " RETURNING " + quoteIdent(idColumn)
	e.lastQuery = query

	var row map[string]any
	tx := e.db.Raw(query, args...).Scan(&row)
	if tx.Error != nil {
		return nil, e.fail("insert into", table, conflictOr(tx.Error, table))
	}
	return row[idColumn], nil
}

func (e *Executor) InsertIgnore(table string, fields executor.Row) (bool, error) {
	defer e.Reset()

	cols, exprs, args := e.buildValues(fields)
	query := "INSERT INTO " + quoteIdent(table) +
		" (" + strings.Join(cols, ", ") + ") VALUES (" + strings.Join(exprs, ", ") + ")" +
		" ON CONFLICT DO NOTHING"
	e.lastQuery = query

	tx := e.db.Exec(query, args...)
	if tx.Error != nil {
		return false, e.fail("insert into", table, tx.Error)
	}
	return tx.RowsAffected > 0, nil
}

func (e *Executor) Update(table string, fields executor.Row) (bool, error) {
	defer e.Reset()

	cols, exprs, setArgs := e.buildValues(fields)
	sets := make([]string, 0, len(cols))
	for i, col := range cols {
		sets = append(sets, col+" = "+exprs[i])
	}
	where, whereArgs := e.buildWhere()
	query := "UPDATE " + quoteIdent(table) + " SET " + strings.Join(sets, ", ") + where
	e.lastQuery = query

	tx := e.db.Exec(query, append(setArgs, whereArgs...)...)
	if tx.Error != nil {
		return false, e.fail("update", table, tx.Error)
	}
	return tx.RowsAffected > 0, nil
}

func (e *Executor) Delete(table string) (bool, error) {
	defer e.Reset()

	where, whereArgs := e.buildWhere()
	query := "DELETE FROM " + quoteIdent(table) + where
	e.lastQuery = query

	tx := e.db.Exec(query, whereArgs...)
	if tx.Error != nil {
		return false, e.fail("delete from", table, tx.Error)
	}
	return tx.RowsAffected > 0, nil
}

func (e *Executor) Scalar(table, column string) (any, error) {
	defer e.Reset()

	expr := column
	if !strings.Contains(column, "(") {
		expr = quoteIdent(column)
	}
	where, whereArgs := e.buildWhere()
	query := "SELECT " + expr + " AS " + quoteIdent("value") + " FROM " + quoteIdent(table) + where + " LIMIT 1"
	e.lastQuery = query

	var row map[string]any
	tx := e.db.Raw(query, whereArgs...).Scan(&row)
	if tx.Error != nil {
		return nil, e.fail("select from", table, tx.Error)
	}
	if tx.RowsAffected == 0 {
		return nil, nil
	}
	return row["value"], nil
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

func (e *Executor) fail(op, table string, err error) error {
	e.lastErr = err.Error()
	return fmt.Errorf("failed to %s %s: %w", op, table, err)
}

// buildSelect renders a columns expression, substituting pgcrypto
// decryption for DECRYPT projections. The decrypted value is aliased
// back to the bare column name; paired with `*` the alias wins during
// map scanning because it arrives last.
func (e *Executor) buildSelect(columns string) (string, []any) {
	cols := executor.ParseColumns(columns)
	if len(cols) == 0 {
		return "*", nil
	}

	var parts []string
	var args []any
	for _, col := range cols {
		switch {
		case col.Star:
			parts = append(parts, "*")
		case col.Decrypt:
			parts = append(parts, "PGP_SYM_DECRYPT("+quoteIdent(col.Name)+"::bytea, ?) AS "+quoteIdent(col.Name))
			args = append(args, e.key)
		default:
			parts = append(parts, quoteIdent(col.Name))
		}
	}
	return strings.Join(parts, ", "), args
}

// buildValues renders fields into column and value-expression lists.
// Columns are sorted so the generated SQL is deterministic.
func (e *Executor) buildValues(fields executor.Row) (cols, exprs []string, args []any) {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cols = append(cols, quoteIdent(name))
		if enc, ok := fields[name].(executor.Encrypted); ok {
			exprs = append(exprs, "PGP_SYM_ENCRYPT(?, ?)")
			args = append(args, enc.Plaintext, e.key)
			continue
		}
		exprs = append(exprs, "?")
		args = append(args, fields[name])
	}
	return cols, exprs, args
}

// buildWhere folds conditions left-associatively; parens preserve the
// accumulation order against SQL operator precedence.
func (e *Executor) buildWhere() (string, []any) {
	if len(e.conds) == 0 {
		return "", nil
	}

	var args []any
	expr, condArgs := renderCond(e.conds[0])
	args = append(args, condArgs...)

	for _, c := range e.conds[1:] {
		next, nextArgs := renderCond(c)
		conj := executor.ConjAnd
		if strings.EqualFold(c.conj, executor.ConjOr) {
			conj = executor.ConjOr
		}
		expr = "(" + expr + " " + conj + " " + next + ")"
		args = append(args, nextArgs...)
	}
	return " WHERE " + expr, args
}

func renderCond(c cond) (string, []any) {
	op := strings.ToUpper(c.op)
	if op == executor.OpIn {
		return quoteIdent(c.field) + " IN ?", []any{c.value}
	}

	switch op {
	case executor.OpEq, executor.OpNe, executor.OpLt, executor.OpLe, executor.OpGt, executor.OpGe:
	default:
		op = executor.OpEq
	}

	if c.value == nil {
		if op == executor.OpNe {
			return quoteIdent(c.field) + " IS NOT NULL", nil
		}
		return quoteIdent(c.field) + " IS NULL", nil
	}
	return quoteIdent(c.field) + " " + op + " ?", []any{c.value}
}

func conflictOr(err error, table string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return fmt.Errorf("%w: %s", executor.ErrConflict, table)
	}
	return err
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
