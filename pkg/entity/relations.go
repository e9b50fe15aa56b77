package entity

import (
	"fmt"
	"reflect"

	"github.com/cadogan/recmap/pkg/executor"
	"github.com/cadogan/recmap/pkg/registry"
)

// Resolve loads the related record(s) behind name. DirectReference
// and SingleOwned resolve to a *Entity or nil; MultiOwned and
// IndirectThrough resolve to a []*Entity, empty when nothing is
// attached. Results are memoized until the relation is reassigned.
func (e *Entity) Resolve(name string) (any, error) {
	if cached, ok := e.relCache[name]; ok {
		return cached, nil
	}
	rel, ok := e.typ.Relations[name]
	if !ok {
		return nil, usageErr("Resolve", e.typ.Name, "unknown relation %s", name)
	}
	resolved, err := e.resolveRelation(rel)
	if err != nil {
		return nil, err
	}
	e.relCache[name] = resolved
	return resolved, nil
}

func (e *Entity) resolveRelation(rel Relation) (any, error) {
	switch rel.Kind {
	case DirectReference:
		key := e.fields[rel.ForeignKey]
		if key == nil {
			return nil, nil
		}
		related, err := rel.Target.Load(e.reg, key)
		if err != nil {
			return nil, err
		}
		if related == nil {
			return nil, nil
		}
		return related, nil

	case SingleOwned:
		if e.ID() == nil {
			return nil, nil
		}
		exec, err := e.typ.exec(e.reg)
		if err != nil {
			return nil, err
		}
		exec.Reset()
		row, err := exec.
			Where(rel.ForeignKey, e.ID(), executor.OpEq, executor.ConjAnd).
			FetchOne(rel.Target.Table, rel.Target.SelectExpr())
		if err != nil {
			return nil, persistErr("fetch", rel.Target.Table, err)
		}
		if row == nil {
			return nil, nil
		}
		return rel.Target.wrap(e.reg, row), nil

	case MultiOwned:
		if e.ID() == nil {
			return []*Entity{}, nil
		}
		exec, err := e.typ.exec(e.reg)
		if err != nil {
			return nil, err
		}
		exec.Reset()
		rows, err := exec.
			Where(rel.ForeignKey, e.ID(), executor.OpEq, executor.ConjAnd).
			FetchMany(rel.Target.Table, rel.Target.Order, rel.Target.SelectExpr())
		if err != nil {
			return nil, persistErr("fetch", rel.Target.Table, err)
		}
		return rel.Target.wrapAll(e.reg, rows), nil

	case IndirectThrough:
		keys, err := e.throughKeys(rel)
		if err != nil {
			return nil, err
		}
		if len(keys) == 0 {
			return []*Entity{}, nil
		}
		exec, err := e.typ.exec(e.reg)
		if err != nil {
			return nil, err
		}
		exec.Reset()
		rows, err := exec.
			Where(rel.Target.IDField, keys, executor.OpIn, executor.ConjAnd).
			FetchMany(rel.Target.Table, rel.Target.Order, rel.Target.SelectExpr())
		if err != nil {
			return nil, persistErr("fetch", rel.Target.Table, err)
		}
		return rel.Target.wrapAll(e.reg, rows), nil
	}
	panic(fmt.Sprintf("entity: unhandled relation kind %v", rel.Kind))
}

// throughKeys reads the join table side of an IndirectThrough
// relation: the target identifiers attached to this entity.
func (e *Entity) throughKeys(rel Relation) ([]any, error) {
	if e.ID() == nil {
		return nil, nil
	}
	exec, err := e.typ.exec(e.reg)
	if err != nil {
		return nil, err
	}
	exec.Reset()
	rows, err := exec.
		Where(rel.OwnerKey, e.ID(), executor.OpEq, executor.ConjAnd).
		FetchMany(rel.JoinTable, "", rel.ForeignKey)
	if err != nil {
		return nil, persistErr("fetch", rel.JoinTable, err)
	}
	keys := make([]any, 0, len(rows))
	for _, row := range rows {
		if key := row[rel.ForeignKey]; key != nil {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// ResolveIDs returns the identifiers behind name without hydrating
// the related records. For IndirectThrough this reads only the join
// table.
func (e *Entity) ResolveIDs(name string) ([]any, error) {
	rel, ok := e.typ.Relations[name]
	if !ok {
		return nil, usageErr("ResolveIDs", e.typ.Name, "unknown relation %s", name)
	}
	switch rel.Kind {
	case DirectReference:
		key := e.fields[rel.ForeignKey]
		if key == nil {
			return nil, nil
		}
		return []any{key}, nil

	case SingleOwned, MultiOwned:
		if e.ID() == nil {
			return nil, nil
		}
		exec, err := e.typ.exec(e.reg)
		if err != nil {
			return nil, err
		}
		exec.Reset()
		rows, err := exec.
			Where(rel.ForeignKey, e.ID(), executor.OpEq, executor.ConjAnd).
			FetchMany(rel.Target.Table, "", rel.Target.IDField)
		if err != nil {
			return nil, persistErr("fetch", rel.Target.Table, err)
		}
		keys := make([]any, 0, len(rows))
		for _, row := range rows {
			if key := row[rel.Target.IDField]; key != nil {
				keys = append(keys, key)
			}
		}
		return keys, nil

	case IndirectThrough:
		return e.throughKeys(rel)
	}
	panic(fmt.Sprintf("entity: unhandled relation kind %v", rel.Kind))
}

// CountRelated returns the number of records behind name.
// DirectReference counts without a query; the owned kinds aggregate on
// the target table and IndirectThrough on the join table.
func (e *Entity) CountRelated(name string) (int64, error) {
	rel, ok := e.typ.Relations[name]
	if !ok {
		return 0, usageErr("CountRelated", e.typ.Name, "unknown relation %s", name)
	}
	switch rel.Kind {
	case DirectReference:
		if e.fields[rel.ForeignKey] == nil {
			return 0, nil
		}
		return 1, nil

	case SingleOwned, MultiOwned:
		if e.ID() == nil {
			return 0, nil
		}
		exec, err := e.typ.exec(e.reg)
		if err != nil {
			return 0, err
		}
		exec.Reset()
		n, err := exec.
			Where(rel.ForeignKey, e.ID(), executor.OpEq, executor.ConjAnd).
			Scalar(rel.Target.Table, "COUNT(*)")
		if err != nil {
			return 0, persistErr("count", rel.Target.Table, err)
		}
		return countValue(n), nil

	case IndirectThrough:
		if e.ID() == nil {
			return 0, nil
		}
		exec, err := e.typ.exec(e.reg)
		if err != nil {
			return 0, err
		}
		exec.Reset()
		n, err := exec.
			Where(rel.OwnerKey, e.ID(), executor.OpEq, executor.ConjAnd).
			Scalar(rel.JoinTable, "COUNT(*)")
		if err != nil {
			return 0, persistErr("count", rel.JoinTable, err)
		}
		return countValue(n), nil
	}
	panic(fmt.Sprintf("entity: unhandled relation kind %v", rel.Kind))
}

// AssignRelated rewires name. The accepted value depends on the kind:
//
//   - DirectReference: a *Entity, a raw key, or nil to detach. Only
//     the local foreign key changes; persisting it is up to Save.
//   - SingleOwned: a *Entity, a raw key, or nil to release the current
//     holder. Takes effect against the store immediately.
//   - MultiOwned: a list to replace the membership (nil or empty
//     releases every member), or a single *Entity or key to adopt one
//     more member. Immediate.
//   - IndirectThrough: a list to replace the membership via join-row
//     diffing (nil or empty detaches all), or a single *Entity or key
//     to attach one more. Immediate.
//
// A transient *Entity on the owned kinds inserts through its own save
// path, hooks included; loaded targets and raw keys re-point through
// the executor directly.
func (e *Entity) AssignRelated(name string, value any) error {
	rel, ok := e.typ.Relations[name]
	if !ok {
		return usageErr("AssignRelated", e.typ.Name, "unknown relation %s", name)
	}
	defer e.invalidateRelation(name)

	switch rel.Kind {
	case DirectReference:
		return e.assignDirect(rel, value)
	case SingleOwned:
		return e.assignSingleOwned(name, rel, value)
	case MultiOwned:
		return e.assignMultiOwned(name, rel, value)
	case IndirectThrough:
		return e.assignThrough(name, rel, value)
	}
	panic(fmt.Sprintf("entity: unhandled relation kind %v", rel.Kind))
}

func (e *Entity) assignDirect(rel Relation, value any) error {
	if value == nil {
		return e.Set(rel.ForeignKey, nil)
	}
	key, err := e.relatedKey("AssignRelated", value)
	if err != nil {
		return err
	}
	return e.Set(rel.ForeignKey, key)
}

func (e *Entity) assignSingleOwned(name string, rel Relation, value any) error {
	if e.ID() == nil {
		return usageErr("AssignRelated", e.typ.Name, "cannot attach %s to an unsaved entity", name)
	}
	if value == nil {
		return e.releaseOwned(rel, nil)
	}
	// Release any other holder first; the exclusion keeps an already
	// attached holder untouched so a stale re-assign cannot orphan it.
	if related, ok := value.(*Entity); ok {
		if err := e.releaseOwned(rel, related.ID()); err != nil {
			return err
		}
		return e.adoptOwnedEntity(rel, related)
	}
	key, err := e.relatedKey("AssignRelated", value)
	if err != nil {
		return err
	}
	if err := e.releaseOwned(rel, key); err != nil {
		return err
	}
	return e.adoptOwned(rel, []any{key})
}

func (e *Entity) assignMultiOwned(name string, rel Relation, value any) error {
	if e.ID() == nil {
		return usageErr("AssignRelated", e.typ.Name, "cannot attach %s to an unsaved entity", name)
	}
	if value == nil {
		return e.releaseOwned(rel, nil)
	}
	if !isKeyList(value) {
		if related, ok := value.(*Entity); ok {
			return e.adoptOwnedEntity(rel, related)
		}
		return e.adoptOwned(rel, []any{value})
	}
	keys, err := e.relatedKeys("AssignRelated", value)
	if err != nil {
		return err
	}
	if err := e.releaseOwned(rel, nil); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return e.adoptOwned(rel, keys)
}

// releaseOwned clears the owning foreign key on every target row
// pointing at this entity, except the one identified by keep.
func (e *Entity) releaseOwned(rel Relation, keep any) error {
	exec, err := e.typ.exec(e.reg)
	if err != nil {
		return err
	}
	exec.Reset()
	exec.Where(rel.ForeignKey, e.ID(), executor.OpEq, executor.ConjAnd)
	if keep != nil {
		exec.Where(rel.Target.IDField, keep, executor.OpNe, executor.ConjAnd)
	}
	if _, err := exec.Update(rel.Target.Table, executor.Row{rel.ForeignKey: nil}); err != nil {
		return persistErr("update", rel.Target.Table, err)
	}
	return nil
}

// adoptOwnedEntity points one target entity at this one. A transient
// target inserts through its own save path with the owning key in
// place; a loaded one re-points through the store directly, so a stale
// in-memory snapshot cannot swallow the write, and its snapshot is
// realigned afterwards.
func (e *Entity) adoptOwnedEntity(rel Relation, related *Entity) error {
	if related == nil {
		return usageErr("AssignRelated", e.typ.Name, "related entity is nil")
	}
	if !related.IsLoaded() {
		_, err := related.Update(map[string]any{rel.ForeignKey: e.ID()})
		return err
	}
	if err := e.adoptOwned(rel, []any{related.ID()}); err != nil {
		return err
	}
	related.fields[rel.ForeignKey] = e.ID()
	related.synced[rel.ForeignKey] = e.ID()
	delete(related.changes, rel.ForeignKey)
	return nil
}

// adoptOwned points the owning foreign key of the identified target
// rows at this entity.
func (e *Entity) adoptOwned(rel Relation, keys []any) error {
	exec, err := e.typ.exec(e.reg)
	if err != nil {
		return err
	}
	exec.Reset()
	if _, err := exec.
		Where(rel.Target.IDField, keys, executor.OpIn, executor.ConjAnd).
		Update(rel.Target.Table, executor.Row{rel.ForeignKey: e.ID()}); err != nil {
		return persistErr("update", rel.Target.Table, err)
	}
	return nil
}

func (e *Entity) assignThrough(name string, rel Relation, value any) error {
	if e.ID() == nil {
		return usageErr("AssignRelated", e.typ.Name, "cannot attach %s to an unsaved entity", name)
	}
	if value == nil {
		return e.detachThrough(rel, nil)
	}
	if !isKeyList(value) {
		key, err := e.relatedKey("AssignRelated", value)
		if err != nil {
			return err
		}
		return e.attachThrough(rel, key)
	}

	keys, err := e.relatedKeys("AssignRelated", value)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return e.detachThrough(rel, nil)
	}

	current, err := e.throughKeys(rel)
	if err != nil {
		return err
	}
	wanted := make(map[string]bool, len(keys))
	for _, key := range keys {
		wanted[fmt.Sprint(key)] = true
	}
	have := make(map[string]bool, len(current))
	var removed []any
	for _, key := range current {
		have[fmt.Sprint(key)] = true
		if !wanted[fmt.Sprint(key)] {
			removed = append(removed, key)
		}
	}
	if len(removed) > 0 {
		if err := e.detachThrough(rel, removed); err != nil {
			return err
		}
	}
	for _, key := range keys {
		if have[fmt.Sprint(key)] {
			continue
		}
		if err := e.attachThrough(rel, key); err != nil {
			return err
		}
	}
	return nil
}

// attachThrough records one membership row. InsertIgnore keeps the
// attach idempotent when the row is already present.
func (e *Entity) attachThrough(rel Relation, key any) error {
	exec, err := e.typ.exec(e.reg)
	if err != nil {
		return err
	}
	exec.Reset()
	row := executor.Row{rel.OwnerKey: e.ID(), rel.ForeignKey: key}
	if _, err := exec.InsertIgnore(rel.JoinTable, row); err != nil {
		return persistErr("insert", rel.JoinTable, err)
	}
	return nil
}

// detachThrough removes membership rows: the listed target keys, or
// every one when keys is nil.
func (e *Entity) detachThrough(rel Relation, keys []any) error {
	exec, err := e.typ.exec(e.reg)
	if err != nil {
		return err
	}
	exec.Reset()
	exec.Where(rel.OwnerKey, e.ID(), executor.OpEq, executor.ConjAnd)
	if keys != nil {
		exec.Where(rel.ForeignKey, keys, executor.OpIn, executor.ConjAnd)
	}
	if _, err := exec.Delete(rel.JoinTable); err != nil {
		return persistErr("delete", rel.JoinTable, err)
	}
	return nil
}

func (e *Entity) invalidateRelation(name string) {
	delete(e.relCache, name)
	delete(e.includes, name)
}

// relatedKey extracts the store key from a related value: an
// entity's identifier, or the value itself as a raw key.
func (e *Entity) relatedKey(method string, value any) (any, error) {
	if related, ok := value.(*Entity); ok {
		if related == nil || related.ID() == nil {
			return nil, usageErr(method, e.typ.Name, "related entity has no identifier")
		}
		return related.ID(), nil
	}
	return value, nil
}

func (e *Entity) relatedKeys(method string, value any) ([]any, error) {
	switch v := value.(type) {
	case []*Entity:
		keys := make([]any, 0, len(v))
		for _, related := range v {
			key, err := e.relatedKey(method, related)
			if err != nil {
				return nil, err
			}
			keys = append(keys, key)
		}
		return keys, nil
	case []any:
		keys := make([]any, 0, len(v))
		for _, item := range v {
			key, err := e.relatedKey(method, item)
			if err != nil {
				return nil, err
			}
			keys = append(keys, key)
		}
		return keys, nil
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice {
		return nil, usageErr(method, e.typ.Name, "expected a related entity, key or list, got %T", value)
	}
	keys := make([]any, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		key, err := e.relatedKey(method, rv.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// isKeyList reports whether value is a membership list rather than a
// single key. []byte stays a scalar: binary keys are keys.
func isKeyList(value any) bool {
	switch value.(type) {
	case nil, *Entity, string, []byte:
		return false
	}
	return reflect.ValueOf(value).Kind() == reflect.Slice
}

func countValue(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case uint64:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

// wrapAll hydrates fetched rows into loaded entities.
func (t *Type) wrapAll(reg *registry.Registry, rows []executor.Row) []*Entity {
	related := make([]*Entity, 0, len(rows))
	for _, row := range rows {
		related = append(related, t.wrap(reg, row))
	}
	return related
}
