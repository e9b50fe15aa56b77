package entity

//go:generate go run github.com/dmarkham/enumer -type RelationKind -transform snake -output relationkind.gen.go

// RelationKind discriminates the four association variants. Every
// switch over a RelationKind handles all four; there is no default
// fallthrough behavior.
type RelationKind int

const (
	// DirectReference holds the target's key in a local field.
	DirectReference RelationKind = iota
	// SingleOwned is one target row holding this entity's key.
	SingleOwned
	// MultiOwned is many target rows holding this entity's key.
	MultiOwned
	// IndirectThrough links to targets via rows of a join table.
	IndirectThrough
)

// Relation describes one named association of an entity type. Kind
// selects the variant; the remaining fields are interpreted per kind:
//
//   - DirectReference: ForeignKey is the local field holding the
//     target's identifier.
//   - SingleOwned, MultiOwned: ForeignKey is the target's field
//     holding this entity's identifier.
//   - IndirectThrough: JoinTable names the join table, OwnerKey its
//     column holding this entity's identifier and ForeignKey its
//     column holding the target's identifier.
type Relation struct {
	Kind       RelationKind
	Target     *Type
	ForeignKey string
	JoinTable  string
	OwnerKey   string
}

// Direct declares a reference held in the local field foreignKey.
func Direct(target *Type, foreignKey string) Relation {
	return Relation{Kind: DirectReference, Target: target, ForeignKey: foreignKey}
}

// OwnedOne declares a single owned row; foreignKey is the target's
// field holding the owner's identifier.
func OwnedOne(target *Type, foreignKey string) Relation {
	return Relation{Kind: SingleOwned, Target: target, ForeignKey: foreignKey}
}

// OwnedMany declares a collection of owned rows; foreignKey is the
// target's field holding the owner's identifier.
func OwnedMany(target *Type, foreignKey string) Relation {
	return Relation{Kind: MultiOwned, Target: target, ForeignKey: foreignKey}
}

// Through declares an indirect association via a join table. ownerKey
// and foreignKey are the join table's columns holding the owner's and
// the target's identifiers.
func Through(target *Type, joinTable, ownerKey, foreignKey string) Relation {
	return Relation{Kind: IndirectThrough, Target: target, JoinTable: joinTable, OwnerKey: ownerKey, ForeignKey: foreignKey}
}
