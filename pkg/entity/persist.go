package entity

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/cadogan/recmap/pkg/executor"
	"github.com/cadogan/recmap/pkg/search"
)

// Save persists the entity: transient entities insert, loaded ones
// update. A false return with a nil error means a Before hook vetoed
// the operation; in-memory state is left as the hook saw it. A loaded
// entity with no pending changes saves trivially.
func (e *Entity) Save() (bool, error) {
	if e.loaded {
		return e.update()
	}
	return e.insert()
}

func (e *Entity) insert() (bool, error) {
	exec, err := e.typ.exec(e.reg)
	if err != nil {
		return false, err
	}
	if !e.typ.Hooks.BeforeCreate(e) {
		return false, nil
	}
	e.synthesizeKey()

	names := make([]string, 0, len(e.fields))
	for name := range e.fields {
		names = append(names, name)
	}
	if len(names) == 0 {
		return false, ErrEmptyPayload
	}
	write, err := e.writeMap(names)
	if err != nil {
		return false, err
	}

	exec.Reset()
	if e.ignoreConflict {
		inserted, err := exec.InsertIgnore(e.typ.Table, write)
		if err != nil {
			return false, persistErr("insert", e.typ.Table, err)
		}
		if !inserted {
			// Suppressed by an existing row: a successful no-op. The
			// entity stays transient since nothing of it was stored.
			return true, nil
		}
	} else {
		id, err := exec.Insert(e.typ.Table, write, e.typ.IDField)
		if err != nil {
			return false, persistErr("insert", e.typ.Table, err)
		}
		if id != nil {
			e.fields[e.typ.IDField] = id
		}
	}

	e.loaded = e.ID() != nil
	e.sync()
	if err := e.refreshSearch(); err != nil {
		return false, err
	}
	e.typ.Hooks.AfterCreate(e)
	return true, nil
}

func (e *Entity) update() (bool, error) {
	if len(e.changes) == 0 {
		return true, nil
	}
	exec, err := e.typ.exec(e.reg)
	if err != nil {
		return false, err
	}
	if !e.typ.Hooks.BeforeUpdate(e) {
		return false, nil
	}

	write, err := e.writeMap(e.Changes())
	if err != nil {
		return false, err
	}

	exec.Reset()
	changed, err := exec.
		Where(e.typ.IDField, e.syncedID(), executor.OpEq, executor.ConjAnd).
		Update(e.typ.Table, write)
	if err != nil {
		return false, persistErr("update", e.typ.Table, err)
	}

	e.sync()
	if err := e.refreshSearch(); err != nil {
		return false, err
	}
	e.typ.Hooks.AfterUpdate(e)
	return changed, nil
}

// Delete removes the stored row. Deleting a transient entity is a
// no-op false. After a delete the entity keeps its fields but drops
// its identifier and loaded state, so saving it again inserts a fresh
// row.
func (e *Entity) Delete() (bool, error) {
	if !e.loaded {
		return false, nil
	}
	exec, err := e.typ.exec(e.reg)
	if err != nil {
		return false, err
	}
	if !e.typ.Hooks.BeforeDelete(e) {
		return false, nil
	}

	exec.Reset()
	removed, err := exec.
		Where(e.typ.IDField, e.syncedID(), executor.OpEq, executor.ConjAnd).
		Delete(e.typ.Table)
	if err != nil {
		return false, persistErr("delete", e.typ.Table, err)
	}

	if err := e.removeSearch(); err != nil {
		return false, err
	}
	e.typ.Hooks.AfterDelete(e)

	e.loaded = false
	delete(e.fields, e.typ.IDField)
	e.synced = make(executor.Row)
	e.changes = make(map[string]bool)
	e.relCache = make(map[string]any)
	e.includes = make(map[string]any)
	return removed, nil
}

// Update assigns values and saves in one call. Relation names take
// effect immediately through AssignRelated; field assignments join the
// change set and persist through Save. Keys apply in sorted order.
func (e *Entity) Update(values map[string]any) (bool, error) {
	if len(values) == 0 {
		return true, nil
	}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := e.Set(name, values[name]); err != nil {
			return false, err
		}
	}
	return e.Save()
}

// synthesizeKey fills a token-style identifier before insert. Types
// keyed by a generated opaque value name the column accordingly;
// numeric serials stay with the store.
func (e *Entity) synthesizeKey() {
	field := strings.ToLower(e.typ.IDField)
	if !strings.Contains(field, "token") && !strings.Contains(field, "uuid") && !strings.Contains(field, "guid") {
		return
	}
	if id := e.ID(); id != nil && id != "" {
		return
	}
	e.fields[e.typ.IDField] = uuid.NewString()
}

func (e *Entity) refreshSearch() error {
	if len(e.typ.SearchFields) == 0 || e.ID() == nil {
		return nil
	}
	exec, err := e.typ.exec(e.reg)
	if err != nil {
		return err
	}
	parts := make([]string, 0, len(e.typ.SearchFields))
	for _, name := range e.typ.SearchFields {
		value, err := e.Get(name)
		if err != nil {
			return err
		}
		if value == nil {
			continue
		}
		parts = append(parts, plaintext(value))
	}
	return search.New(exec, nil).Refresh(e.typ.Table, e.ID(), strings.Join(parts, " "))
}

func (e *Entity) removeSearch() error {
	if len(e.typ.SearchFields) == 0 || e.ID() == nil {
		return nil
	}
	exec, err := e.typ.exec(e.reg)
	if err != nil {
		return err
	}
	return search.New(exec, nil).Remove(e.typ.Table, e.ID())
}
