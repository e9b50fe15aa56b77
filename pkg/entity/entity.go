package entity

import (
	"github.com/cadogan/recmap/pkg/executor"
	"github.com/cadogan/recmap/pkg/registry"
)

// Entity is one record of a Type: a mapping of field names to values
// plus the bookkeeping that ties it to the store. Entities are not
// safe for concurrent use.
type Entity struct {
	typ *Type
	reg *registry.Registry

	fields executor.Row
	extra  executor.Row

	synced  executor.Row
	changes map[string]bool

	relCache map[string]any
	includes map[string]any

	loaded         bool
	ignoreConflict bool
}

// New returns an empty transient entity resolving its executor
// through reg.
func (t *Type) New(reg *registry.Registry) *Entity {
	return &Entity{
		typ:      t,
		reg:      reg,
		fields:   make(executor.Row),
		extra:    make(executor.Row),
		synced:   make(executor.Row),
		changes:  make(map[string]bool),
		relCache: make(map[string]any),
		includes: make(map[string]any),
	}
}

// FromMap builds an entity from a raw mapping, classifying each key as
// persisted or extra and zero-filling declared defaults. A mapping
// carrying a non-nil identifier produces a loaded entity, the way a
// fetched row does; anything else is transient. An empty mapping is
// ErrEmptyPayload.
func (t *Type) FromMap(reg *registry.Registry, raw map[string]any) (*Entity, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyPayload
	}
	e := t.New(reg)
	e.classify(raw)
	if e.ID() != nil {
		e.loaded = true
		e.sync()
	}
	return e, nil
}

// wrap builds a loaded entity around a row fetched from the store.
func (t *Type) wrap(reg *registry.Registry, row executor.Row) *Entity {
	e := t.New(reg)
	e.classify(row)
	e.loaded = true
	e.sync()
	return e
}

// Type returns the entity's type description.
func (e *Entity) Type() *Type {
	return e.typ
}

// ID returns the identifier field's value, nil when unset.
func (e *Entity) ID() any {
	return e.fields[e.typ.IDField]
}

// IsLoaded reports whether the entity mirrors a stored row. Loaded
// entities update on Save; transient ones insert.
func (e *Entity) IsLoaded() bool {
	return e.loaded
}

// OnConflictIgnore makes inserts of this entity tolerate uniqueness
// conflicts: a suppressed insert is a successful no-op that leaves the
// entity transient, instead of an error. Returns the receiver for
// chaining.
func (e *Entity) OnConflictIgnore() *Entity {
	e.ignoreConflict = true
	return e
}

// Get resolves name through the accessor chain: persisted field,
// computed field, relation, extra field, then nil. Encoded fields
// decode on first read; encrypted fields missing from the loaded
// selection decrypt through the store on demand. Relations resolve
// lazily and memoize.
func (e *Entity) Get(name string) (any, error) {
	if _, ok := e.fields[name]; ok {
		if e.typ.isEncoded(name) {
			e.decodeInPlace(name)
		}
		return e.fields[name], nil
	}
	if e.typ.isEncrypted(name) && e.loaded {
		if _, err := e.lazyDecrypt(name); err != nil {
			return nil, err
		}
		if _, ok := e.fields[name]; ok {
			if e.typ.isEncoded(name) {
				e.decodeInPlace(name)
			}
			return e.fields[name], nil
		}
		return nil, nil
	}
	if fn, ok := e.typ.Computed[name]; ok {
		return fn(e), nil
	}
	if e.typ.HasRelation(name) {
		return e.Resolve(name)
	}
	if value, ok := e.extra[name]; ok {
		return value, nil
	}
	return nil, nil
}

// Set assigns name. Relation names route to AssignRelated, extra
// fields stay in memory, and persisted fields join the change set
// unless the value matches the synced snapshot.
func (e *Entity) Set(name string, value any) error {
	if e.typ.HasRelation(name) {
		return e.AssignRelated(name, value)
	}
	if e.typ.isExtra(name) {
		e.extra[name] = value
		return nil
	}
	e.fields[name] = value
	e.markChange(name, value)
	return nil
}
