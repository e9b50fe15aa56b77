package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefineNormalizes(t *testing.T) {
	typ := Define(&Type{Name: "AuditEvent"})

	assert.Equal(t, "audit_event", typ.Table)
	assert.Equal(t, "id", typ.IDField)
	assert.Equal(t, "*", typ.Select)
	assert.Equal(t, "*", typ.SelectExpr())
	assert.NotNil(t, typ.Hooks)
}

func TestDefineSealsDecryptProjections(t *testing.T) {
	typ := Define(&Type{Name: "Secret", Encrypted: []string{"value", "salt"}})
	assert.Equal(t, "*, DECRYPT(value), DECRYPT(salt)", typ.SelectExpr())

	// An explicit projection is not doubled up.
	explicit := Define(&Type{
		Name:      "SignedNote",
		Select:    "id, DECRYPT(body)",
		Encrypted: []string{"body"},
	})
	assert.Equal(t, "id, DECRYPT(body)", explicit.SelectExpr())
}

func TestDefinePanicsOnMalformedTypes(t *testing.T) {
	testCases := []struct {
		description string
		typ         *Type
	}{
		{
			description: "missing name",
			typ:         &Type{},
		},
		{
			description: "relation without target",
			typ: &Type{Name: "Broken", Relations: map[string]Relation{
				"r": {Kind: DirectReference, ForeignKey: "r_id"},
			}},
		},
		{
			description: "direct reference without foreign key",
			typ: &Type{Name: "Broken", Relations: map[string]Relation{
				"r": {Kind: DirectReference, Target: testUser},
			}},
		},
		{
			description: "owned without foreign key",
			typ: &Type{Name: "Broken", Relations: map[string]Relation{
				"r": {Kind: MultiOwned, Target: testUser},
			}},
		},
		{
			description: "through without join table",
			typ: &Type{Name: "Broken", Relations: map[string]Relation{
				"r": {Kind: IndirectThrough, Target: testUser, OwnerKey: "a", ForeignKey: "b"},
			}},
		},
		{
			description: "unknown relation kind",
			typ: &Type{Name: "Broken", Relations: map[string]Relation{
				"r": {Kind: RelationKind(9), Target: testUser, ForeignKey: "r_id"},
			}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			assert.Panics(t, func() { Define(tc.typ) })
		})
	}
}

func TestSnakeCase(t *testing.T) {
	testCases := map[string]string{
		"User":       "user",
		"Tag":        "tag",
		"AuditEvent": "audit_event",
		"APIKey":     "api_key",
		"HTTPRoute":  "http_route",
		"already":    "already",
	}
	for name, want := range testCases {
		assert.Equal(t, want, snakeCase(name), name)
	}
}

func TestRelationKindStrings(t *testing.T) {
	assert.Equal(t, "direct_reference", DirectReference.String())
	assert.Equal(t, "single_owned", SingleOwned.String())
	assert.Equal(t, "multi_owned", MultiOwned.String())
	assert.Equal(t, "indirect_through", IndirectThrough.String())

	kind, err := RelationKindString("multi_owned")
	require.NoError(t, err)
	assert.Equal(t, MultiOwned, kind)

	assert.False(t, RelationKind(42).IsARelationKind())
}
