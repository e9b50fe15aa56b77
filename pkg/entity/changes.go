package entity

import (
	"sort"

	"github.com/cadogan/recmap/pkg/executor"
)

// markChange records name as dirty, or clears its dirty flag when the
// new value matches the synced snapshot again. Comparison is the
// executor's loose equality: a reloaded int64 does not dirty a field
// set from an int.
func (e *Entity) markChange(name string, value any) {
	if original, ok := e.synced[name]; ok && executor.LooseEqual(original, value) {
		delete(e.changes, name)
		return
	}
	e.changes[name] = true
}

// sync snapshots the persisted fields as the store's current view and
// clears the change set. Called after every successful load, insert
// and update.
func (e *Entity) sync() {
	e.synced = make(executor.Row, len(e.fields))
	for name, value := range e.fields {
		e.synced[name] = value
	}
	e.changes = make(map[string]bool)
}

// Changed reports whether name has been modified since the last sync
// with the store.
func (e *Entity) Changed(name string) bool {
	return e.changes[name]
}

// Changes returns the names of all modified fields, sorted.
func (e *Entity) Changes() []string {
	if len(e.changes) == 0 {
		return nil
	}
	names := make([]string, 0, len(e.changes))
	for name := range e.changes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// syncedID returns the identifier the store knows the entity by. A
// pending identifier change must not redirect the update's match.
func (e *Entity) syncedID() any {
	if id, ok := e.synced[e.typ.IDField]; ok {
		return id
	}
	return e.ID()
}
