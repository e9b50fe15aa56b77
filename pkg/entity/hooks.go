package entity

// Hooks intercepts the persistence lifecycle of one entity type. The
// Before methods may veto the operation by returning false; a veto is
// silent, never an error, and aborts before anything reaches the
// store. In-memory mutations made prior to the veto are kept.
type Hooks interface {
	BeforeCreate(e *Entity) bool
	AfterCreate(e *Entity)
	BeforeUpdate(e *Entity) bool
	AfterUpdate(e *Entity)
	BeforeDelete(e *Entity) bool
	AfterDelete(e *Entity)
}

// NopHooks allows every operation and does nothing after. Embed it to
// implement only the hooks a type cares about:
//
//	type auditHooks struct{ entity.NopHooks }
//
//	func (auditHooks) AfterCreate(e *entity.Entity) { ... }
type NopHooks struct{}

func (NopHooks) BeforeCreate(*Entity) bool { return true }
func (NopHooks) AfterCreate(*Entity)       {}
func (NopHooks) BeforeUpdate(*Entity) bool { return true }
func (NopHooks) AfterUpdate(*Entity)       {}
func (NopHooks) BeforeDelete(*Entity) bool { return true }
func (NopHooks) AfterDelete(*Entity)       {}
