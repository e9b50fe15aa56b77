package entity

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/cadogan/recmap/pkg/executor"
	"github.com/cadogan/recmap/pkg/registry"
)

// finder is one entry of the table built at Define time: the relation
// a fromX finder traverses.
type finder struct {
	relation string
	rel      Relation
}

// buildFinders derives the finder table from the declared relations.
// Each relation r yields a finder named fromR; lookups against the
// table replace any name-driven dispatch, so an unknown finder is a
// UsageError instead of a silent miss.
func (t *Type) buildFinders() {
	t.finders = make(map[string]finder, len(t.Relations))
	for name, rel := range t.Relations {
		t.finders[finderName(name)] = finder{relation: name, rel: rel}
	}
}

func finderName(relation string) string {
	var b strings.Builder
	b.WriteString("from")
	for _, part := range strings.Split(relation, "_") {
		if part == "" {
			continue
		}
		runes := []rune(part)
		b.WriteRune(unicode.ToUpper(runes[0]))
		b.WriteString(string(runes[1:]))
	}
	return b.String()
}

// Finders returns the names in the finder table, sorted. Handy for
// diagnostics and for surfacing the table in API listings.
func (t *Type) Finders() []string {
	names := make([]string, 0, len(t.finders))
	for name := range t.finders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FindFrom runs a finder from the table built at Define time: for a
// relation named author the finder fromAuthor returns the entities of
// this type related to the given one. The single argument is a
// *Entity of the relation's target type or a raw target key. Unknown
// names and wrong argument counts are UsageErrors.
func (t *Type) FindFrom(reg *registry.Registry, name string, args ...any) ([]*Entity, error) {
	f, ok := t.finders[name]
	if !ok {
		return nil, usageErr(name, t.Name, "unknown finder")
	}
	if len(args) != 1 {
		return nil, usageErr(name, t.Name, "expected 1 argument, got %d", len(args))
	}
	arg := args[0]

	switch f.rel.Kind {
	case DirectReference:
		key, err := t.argKey(name, f.rel, arg)
		if err != nil {
			return nil, err
		}
		return t.FindAll(reg, map[string]any{f.rel.ForeignKey: key}, "")

	case SingleOwned, MultiOwned:
		ownerKey, err := t.ownerKeyOf(reg, name, f.rel, arg)
		if err != nil {
			return nil, err
		}
		if ownerKey == nil {
			return []*Entity{}, nil
		}
		return t.FindAll(reg, map[string]any{t.IDField: ownerKey}, "")

	case IndirectThrough:
		key, err := t.argKey(name, f.rel, arg)
		if err != nil {
			return nil, err
		}
		exec, err := t.exec(reg)
		if err != nil {
			return nil, err
		}
		exec.Reset()
		rows, err := exec.
			Where(f.rel.ForeignKey, key, executor.OpEq, executor.ConjAnd).
			FetchMany(f.rel.JoinTable, "", f.rel.OwnerKey)
		if err != nil {
			return nil, persistErr("fetch", f.rel.JoinTable, err)
		}
		keys := make([]any, 0, len(rows))
		for _, row := range rows {
			if key := row[f.rel.OwnerKey]; key != nil {
				keys = append(keys, key)
			}
		}
		if len(keys) == 0 {
			return []*Entity{}, nil
		}
		return t.FindAll(reg, map[string]any{t.IDField: keys}, "")
	}
	panic(fmt.Sprintf("entity: unhandled relation kind %v", f.rel.Kind))
}

// argKey extracts the target key from a finder argument, checking
// entity arguments against the relation's target type.
func (t *Type) argKey(method string, rel Relation, arg any) (any, error) {
	related, ok := arg.(*Entity)
	if !ok {
		return arg, nil
	}
	if related == nil || related.ID() == nil {
		return nil, usageErr(method, t.Name, "related entity has no identifier")
	}
	if related.typ != rel.Target {
		return nil, usageErr(method, t.Name, "expected a %s, got a %s", rel.Target.Name, related.typ.Name)
	}
	return related.ID(), nil
}

// ownerKeyOf resolves the reverse of an owned relation: the owner's
// identifier held by the target. An entity argument carries it
// already; a raw key costs one column-limited fetch of the target row.
func (t *Type) ownerKeyOf(reg *registry.Registry, method string, rel Relation, arg any) (any, error) {
	if related, ok := arg.(*Entity); ok {
		if related == nil {
			return nil, usageErr(method, t.Name, "related entity has no identifier")
		}
		if related.typ != rel.Target {
			return nil, usageErr(method, t.Name, "expected a %s, got a %s", rel.Target.Name, related.typ.Name)
		}
		return related.Get(rel.ForeignKey)
	}
	exec, err := t.exec(reg)
	if err != nil {
		return nil, err
	}
	exec.Reset()
	row, err := exec.
		Where(rel.Target.IDField, arg, executor.OpEq, executor.ConjAnd).
		FetchOne(rel.Target.Table, rel.ForeignKey)
	if err != nil {
		return nil, persistErr("fetch", rel.Target.Table, err)
	}
	if row == nil {
		return nil, nil
	}
	return row[rel.ForeignKey], nil
}

// Load fetches the entity identified by id, or (nil, nil) when no row
// matches. Absence is never an error.
func (t *Type) Load(reg *registry.Registry, id any) (*Entity, error) {
	if id == nil {
		return nil, nil
	}
	exec, err := t.exec(reg)
	if err != nil {
		return nil, err
	}
	exec.Reset()
	row, err := exec.
		Where(t.IDField, id, executor.OpEq, executor.ConjAnd).
		FetchOne(t.Table, t.SelectExpr())
	if err != nil {
		return nil, persistErr("fetch", t.Table, err)
	}
	if row == nil {
		return nil, nil
	}
	return t.wrap(reg, row), nil
}

// FindOne fetches the first entity matching conds, or (nil, nil).
// Condition values compare with =, slice values with IN; conditions
// AND together in sorted key order so the rendered query is stable.
func (t *Type) FindOne(reg *registry.Registry, conds map[string]any) (*Entity, error) {
	exec, err := t.exec(reg)
	if err != nil {
		return nil, err
	}
	exec.Reset()
	applyConds(exec, conds)
	row, err := exec.FetchOne(t.Table, t.SelectExpr())
	if err != nil {
		return nil, persistErr("fetch", t.Table, err)
	}
	if row == nil {
		return nil, nil
	}
	return t.wrap(reg, row), nil
}

// FindAll fetches every entity matching conds. An empty order falls
// back to the type's default ordering.
func (t *Type) FindAll(reg *registry.Registry, conds map[string]any, order string) ([]*Entity, error) {
	exec, err := t.exec(reg)
	if err != nil {
		return nil, err
	}
	if order == "" {
		order = t.Order
	}
	exec.Reset()
	applyConds(exec, conds)
	rows, err := exec.FetchMany(t.Table, order, t.SelectExpr())
	if err != nil {
		return nil, persistErr("fetch", t.Table, err)
	}
	return t.wrapAll(reg, rows), nil
}

// CountWhere counts the rows matching conds.
func (t *Type) CountWhere(reg *registry.Registry, conds map[string]any) (int64, error) {
	exec, err := t.exec(reg)
	if err != nil {
		return 0, err
	}
	exec.Reset()
	applyConds(exec, conds)
	n, err := exec.Scalar(t.Table, "COUNT(*)")
	if err != nil {
		return 0, persistErr("count", t.Table, err)
	}
	return countValue(n), nil
}

// Exists reports whether a row with the given identifier is stored.
func (t *Type) Exists(reg *registry.Registry, id any) (bool, error) {
	if id == nil {
		return false, nil
	}
	exec, err := t.exec(reg)
	if err != nil {
		return false, err
	}
	exec.Reset()
	found, err := exec.
		Where(t.IDField, id, executor.OpEq, executor.ConjAnd).
		Scalar(t.Table, t.IDField)
	if err != nil {
		return false, persistErr("fetch", t.Table, err)
	}
	return found != nil, nil
}

// AssureUnique checks that no stored row other than excludeID already
// carries value in field. It returns the conflicting row's identifier,
// or nil when the value is free to use.
func (t *Type) AssureUnique(reg *registry.Registry, field string, value any, excludeID ...any) (any, error) {
	exec, err := t.exec(reg)
	if err != nil {
		return nil, err
	}
	exec.Reset()
	exec.Where(field, value, executor.OpEq, executor.ConjAnd)
	if len(excludeID) > 0 && excludeID[0] != nil {
		exec.Where(t.IDField, excludeID[0], executor.OpNe, executor.ConjAnd)
	}
	taken, err := exec.Scalar(t.Table, t.IDField)
	if err != nil {
		return nil, persistErr("fetch", t.Table, err)
	}
	return taken, nil
}

func applyConds(exec executor.Executor, conds map[string]any) {
	names := make([]string, 0, len(conds))
	for name := range conds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		value := conds[name]
		op := executor.OpEq
		if isKeyList(value) {
			op = executor.OpIn
		}
		exec.Where(name, value, op, executor.ConjAnd)
	}
}
