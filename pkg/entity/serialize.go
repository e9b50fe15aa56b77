package entity

import (
	"strings"

	"github.com/cadogan/recmap/pkg/executor"
)

// Map renders the entity as a plain mapping: every persisted field as
// held in memory, the extra fields when includeExtra, and the
// relations eagerly loaded through With. Related entities render
// recursively without their extra fields.
func (e *Entity) Map(includeExtra bool) map[string]any {
	out := make(map[string]any, len(e.fields)+len(e.extra)+len(e.includes))
	for name, value := range e.fields {
		out[name] = value
	}
	if includeExtra {
		for name, value := range e.extra {
			out[name] = value
		}
	}
	for name, include := range e.includes {
		out[name] = serializeInclude(include)
	}
	return out
}

// Only renders just the named fields, read from the persisted and
// extra buckets. Unknown names are skipped rather than rendered nil.
func (e *Entity) Only(names ...string) map[string]any {
	out := make(map[string]any, len(names))
	for _, name := range names {
		if value, ok := e.fields[name]; ok {
			out[name] = value
			continue
		}
		if value, ok := e.extra[name]; ok {
			out[name] = value
		}
	}
	return out
}

// With eagerly loads relations into the entity's rendered form. Each
// include is a relation name, optionally followed by a colon and a
// comma-separated column list to fetch narrow rows instead of full
// entities:
//
//	e.With("author", "tags:id,label")
//
// Column-limited fetches always include the target's identifier.
// Unknown relation names are UsageErrors.
func (e *Entity) With(includes ...string) error {
	for _, inc := range includes {
		name, cols, _ := strings.Cut(inc, ":")
		name = strings.TrimSpace(name)
		rel, ok := e.typ.Relations[name]
		if !ok {
			return usageErr("With", e.typ.Name, "unknown relation %s", name)
		}
		if strings.TrimSpace(cols) == "" {
			resolved, err := e.Resolve(name)
			if err != nil {
				return err
			}
			e.includes[name] = resolved
			continue
		}
		include, err := e.fetchInclude(rel, columnList(cols, rel.Target.IDField))
		if err != nil {
			return err
		}
		e.includes[name] = include
	}
	return nil
}

// fetchInclude fetches the rows behind a column-limited include. The
// single kinds yield one row or nil, the collection kinds a row slice.
func (e *Entity) fetchInclude(rel Relation, columns string) (any, error) {
	exec, err := e.typ.exec(e.reg)
	if err != nil {
		return nil, err
	}

	switch rel.Kind {
	case DirectReference:
		key := e.fields[rel.ForeignKey]
		if key == nil {
			return nil, nil
		}
		exec.Reset()
		row, err := exec.
			Where(rel.Target.IDField, key, executor.OpEq, executor.ConjAnd).
			FetchOne(rel.Target.Table, columns)
		if err != nil {
			return nil, persistErr("fetch", rel.Target.Table, err)
		}
		if row == nil {
			return nil, nil
		}
		return row, nil

	case SingleOwned:
		if e.ID() == nil {
			return nil, nil
		}
		exec.Reset()
		row, err := exec.
			Where(rel.ForeignKey, e.ID(), executor.OpEq, executor.ConjAnd).
			FetchOne(rel.Target.Table, columns)
		if err != nil {
			return nil, persistErr("fetch", rel.Target.Table, err)
		}
		if row == nil {
			return nil, nil
		}
		return row, nil

	case MultiOwned:
		if e.ID() == nil {
			return []executor.Row{}, nil
		}
		exec.Reset()
		rows, err := exec.
			Where(rel.ForeignKey, e.ID(), executor.OpEq, executor.ConjAnd).
			FetchMany(rel.Target.Table, rel.Target.Order, columns)
		if err != nil {
			return nil, persistErr("fetch", rel.Target.Table, err)
		}
		return rows, nil

	case IndirectThrough:
		keys, err := e.throughKeys(rel)
		if err != nil {
			return nil, err
		}
		if len(keys) == 0 {
			return []executor.Row{}, nil
		}
		exec.Reset()
		rows, err := exec.
			Where(rel.Target.IDField, keys, executor.OpIn, executor.ConjAnd).
			FetchMany(rel.Target.Table, rel.Target.Order, columns)
		if err != nil {
			return nil, persistErr("fetch", rel.Target.Table, err)
		}
		return rows, nil
	}
	return nil, nil
}

// columnList normalizes a user column list, forcing the identifier in
// so narrow rows stay addressable.
func columnList(cols, idField string) string {
	var names []string
	hasID := false
	for _, col := range strings.Split(cols, ",") {
		col = strings.TrimSpace(col)
		if col == "" {
			continue
		}
		if col == idField {
			hasID = true
		}
		names = append(names, col)
	}
	if !hasID {
		names = append([]string{idField}, names...)
	}
	return strings.Join(names, ", ")
}

func serializeInclude(include any) any {
	switch v := include.(type) {
	case nil:
		return nil
	case *Entity:
		if v == nil {
			return nil
		}
		return v.Map(false)
	case []*Entity:
		rows := make([]map[string]any, 0, len(v))
		for _, related := range v {
			rows = append(rows, related.Map(false))
		}
		return rows
	case executor.Row:
		return map[string]any(v)
	case []executor.Row:
		rows := make([]map[string]any, 0, len(v))
		for _, row := range v {
			rows = append(rows, row)
		}
		return rows
	}
	return include
}
