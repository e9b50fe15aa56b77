package entity

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cadogan/recmap/pkg/executor"
	"github.com/cadogan/recmap/pkg/registry"
)

// ComputedFunc derives a virtual field value from an entity.
type ComputedFunc func(e *Entity) any

// Type is the static description of one modeled table. A Type is
// declared once, passed through Define, and shared by every entity of
// that type:
//
//	var User = entity.Define(&entity.Type{
//	    Name:      "User",
//	    Encrypted: []string{"api_key"},
//	    Relations: map[string]entity.Relation{
//	        "posts": entity.OwnedMany(Post, "author_id"),
//	    },
//	})
type Type struct {
	// Name is the logical type name. Required.
	Name string

	// Table is the backing table. Defaults to the snake-cased Name.
	Table string

	// IDField is the identifier column. Defaults to "id".
	IDField string

	// Select is the default column selection. Defaults to "*". Define
	// extends it with decrypt projections for Encrypted fields.
	Select string

	// Defaults lists fields zero-filled when absent from input.
	Defaults []string

	// Extra lists fields carried in memory but never persisted.
	Extra []string

	// Encrypted lists fields stored encrypted at rest.
	Encrypted []string

	// Encoded lists fields stored as structured-encoded strings.
	Encoded []string

	// Relations maps relation names to their descriptors.
	Relations map[string]Relation

	// SearchFields lists fields feeding the search index. Empty means
	// the type is not indexed.
	SearchFields []string

	// Order is the default sort for collection fetches.
	Order string

	// Connection names the executor handle. Empty means the default.
	Connection string

	// Hooks intercepts the persistence lifecycle. Defaults to NopHooks.
	Hooks Hooks

	// Computed maps virtual field names to derivation functions.
	Computed map[string]ComputedFunc

	selectExpr string
	extraSet   map[string]bool
	encryptSet map[string]bool
	encodeSet  map[string]bool
	finders    map[string]finder
}

// Define normalizes and seals a type declaration. It panics on
// malformed declarations (missing name, incomplete relation
// descriptors), the way pattern registration does: a bad Type is a
// programming error, not a runtime condition.
func Define(t *Type) *Type {
	if t.Name == "" {
		panic("entity: type name is required")
	}
	if t.Table == "" {
		t.Table = snakeCase(t.Name)
	}
	if t.IDField == "" {
		t.IDField = "id"
	}
	if t.Select == "" {
		t.Select = "*"
	}
	if t.Hooks == nil {
		t.Hooks = NopHooks{}
	}

	t.extraSet = stringSet(t.Extra)
	t.encryptSet = stringSet(t.Encrypted)
	t.encodeSet = stringSet(t.Encoded)

	for name, rel := range t.Relations {
		validateRelation(t.Name, name, rel)
	}

	t.selectExpr = buildSelect(t.Select, t.Encrypted)
	t.buildFinders()

	return t
}

func validateRelation(typeName, name string, rel Relation) {
	if !rel.Kind.IsARelationKind() {
		panic(fmt.Sprintf("entity: relation %s.%s has unknown kind %d", typeName, name, rel.Kind))
	}
	if rel.Target == nil {
		panic(fmt.Sprintf("entity: relation %s.%s has no target type", typeName, name))
	}

	switch rel.Kind {
	case DirectReference, SingleOwned, MultiOwned:
		if rel.ForeignKey == "" {
			panic(fmt.Sprintf("entity: relation %s.%s (%s) requires a foreign key", typeName, name, rel.Kind))
		}
	case IndirectThrough:
		if rel.JoinTable == "" || rel.OwnerKey == "" || rel.ForeignKey == "" {
			panic(fmt.Sprintf("entity: relation %s.%s (%s) requires a join table, owner key and foreign key", typeName, name, rel.Kind))
		}
	}
}

// HasRelation reports whether name is a declared relation.
func (t *Type) HasRelation(name string) bool {
	_, ok := t.Relations[name]
	return ok
}

// HasComputed reports whether name is a computed field.
func (t *Type) HasComputed(name string) bool {
	_, ok := t.Computed[name]
	return ok
}

// SelectExpr returns the sealed column selection, decrypt projections
// included.
func (t *Type) SelectExpr() string {
	return t.selectExpr
}

func (t *Type) isExtra(name string) bool     { return t.extraSet[name] }
func (t *Type) isEncrypted(name string) bool { return t.encryptSet[name] }
func (t *Type) isEncoded(name string) bool   { return t.encodeSet[name] }

func (t *Type) exec(reg *registry.Registry) (executor.Executor, error) {
	return reg.Get(t.Connection)
}

func stringSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, name := range names {
		set[name] = true
	}
	return set
}

func snakeCase(name string) string {
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (!unicode.IsUpper(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
