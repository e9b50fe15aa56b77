package entity

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/cadogan/recmap/pkg/executor"
)

// buildSelect extends a column selection with decrypt projections for
// the encrypted fields it does not already project. With the default
// "*" selection an encrypted api_key field seals to
// "*, DECRYPT(api_key)", so loaded rows carry the plaintext keyed by
// the bare column name.
func buildSelect(selectExpr string, encrypted []string) string {
	if len(encrypted) == 0 {
		return selectExpr
	}
	projected := make(map[string]bool)
	for _, col := range executor.ParseColumns(selectExpr) {
		if col.Decrypt {
			projected[col.Name] = true
		}
	}
	expr := selectExpr
	for _, name := range encrypted {
		if projected[name] {
			continue
		}
		expr += ", " + executor.Decrypt(name)
	}
	return expr
}

// writeMap renders the persisted fields into the form handed to the
// executor: encoded fields marshaled to text, encrypted fields wrapped
// in the encryption marker, encoded-and-encrypted fields both, in that
// order. names selects the fields to include; sorted so the rendered
// query is deterministic.
func (e *Entity) writeMap(names []string) (executor.Row, error) {
	write := make(executor.Row, len(names))
	sort.Strings(names)
	for _, name := range names {
		value, err := e.transformForWrite(name, e.fields[name])
		if err != nil {
			return nil, err
		}
		write[name] = value
	}
	return write, nil
}

func (e *Entity) transformForWrite(name string, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	if e.typ.isEncoded(name) {
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, usageErr("Save", e.typ.Name, "field %s cannot be encoded: %v", name, err)
		}
		value = string(encoded)
	}
	if e.typ.isEncrypted(name) {
		return executor.Encrypted{Plaintext: plaintext(value)}, nil
	}
	return value, nil
}

func plaintext(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	}
	return fmt.Sprint(value)
}

// decodeInPlace turns an encoded field's stored text back into its
// structured value and caches the result, keeping the synced snapshot
// aligned so decoding never reads as a pending change. Text that does
// not parse is left as-is.
func (e *Entity) decodeInPlace(name string) {
	text, ok := encodedText(e.fields[name])
	if !ok || text == "" {
		return
	}
	var decoded any
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		return
	}
	e.fields[name] = decoded
	if !e.changes[name] {
		if _, ok := e.synced[name]; ok {
			e.synced[name] = decoded
		}
	}
}

func encodedText(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	}
	return "", false
}

// lazyDecrypt fetches the plaintext of one encrypted column for a
// loaded entity whose selection did not project it, and caches it as
// the field's value.
func (e *Entity) lazyDecrypt(name string) (any, error) {
	exec, err := e.typ.exec(e.reg)
	if err != nil {
		return nil, err
	}
	exec.Reset()
	row, err := exec.
		Where(e.typ.IDField, e.syncedID(), executor.OpEq, executor.ConjAnd).
		FetchOne(e.typ.Table, executor.Decrypt(name))
	if err != nil {
		return nil, persistErr("fetch", e.typ.Table, err)
	}
	if row == nil {
		return nil, nil
	}
	value := row[name]
	e.fields[name] = value
	if _, ok := e.synced[e.typ.IDField]; ok {
		e.synced[name] = value
	}
	return value, nil
}
