package entity

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cadogan/recmap/pkg/crypt"
	"github.com/cadogan/recmap/pkg/executor/memory"
	"github.com/cadogan/recmap/pkg/registry"
)

// The fixture types model a small blog: users own a profile and
// posts, posts reference their author and carry tags through a join
// table. Credential exercises the token key, encryption and encoding
// paths; Gadget carries the spy hooks.
var (
	testUser       *Type
	testProfile    *Type
	testPost       *Type
	testTag        *Type
	testCredential *Type
	testGadget     *Type

	gadgetHooks = &spyHooks{}
)

type spyHooks struct {
	NopHooks
	vetoCreate bool
	vetoUpdate bool
	vetoDelete bool
	created    int
	updated    int
	deleted    int
}

func (h *spyHooks) reset() { *h = spyHooks{} }

func (h *spyHooks) BeforeCreate(*Entity) bool { return !h.vetoCreate }
func (h *spyHooks) AfterCreate(*Entity)       { h.created++ }
func (h *spyHooks) BeforeUpdate(*Entity) bool { return !h.vetoUpdate }
func (h *spyHooks) AfterUpdate(*Entity)       { h.updated++ }
func (h *spyHooks) BeforeDelete(*Entity) bool { return !h.vetoDelete }
func (h *spyHooks) AfterDelete(*Entity)       { h.deleted++ }

func init() {
	testUser = &Type{
		Name:      "User",
		Table:     "users",
		Defaults:  []string{"login"},
		Extra:     []string{"password"},
		Encrypted: []string{"api_key"},
		Computed: map[string]ComputedFunc{
			"display": func(e *Entity) any {
				login, _ := e.Get("login")
				return fmt.Sprintf("user:%v", login)
			},
		},
	}
	testProfile = &Type{Name: "Profile", Table: "profiles"}
	testPost = &Type{
		Name:         "Post",
		Table:        "posts",
		Order:        "id",
		SearchFields: []string{"title", "body"},
	}
	testTag = &Type{Name: "Tag", Table: "tags"}

	// Relations wire up after construction so the cycle between users
	// and posts can close before Define seals either type.
	testUser.Relations = map[string]Relation{
		"profile": OwnedOne(testProfile, "user_id"),
		"posts":   OwnedMany(testPost, "author_id"),
	}
	testPost.Relations = map[string]Relation{
		"author": Direct(testUser, "author_id"),
		"tags":   Through(testTag, "post_tags", "post_id", "tag_id"),
	}

	Define(testUser)
	Define(testProfile)
	Define(testPost)
	Define(testTag)

	testCredential = Define(&Type{
		Name:      "Credential",
		IDField:   "token",
		Encrypted: []string{"secret"},
		Encoded:   []string{"scopes"},
	})

	testGadget = Define(&Type{Name: "Gadget", Hooks: gadgetHooks})
}

func newTestRegistry(t *testing.T) (*registry.Registry, *memory.Executor) {
	t.Helper()
	key, err := crypt.GenerateKey()
	require.NoError(t, err)
	cipher, err := crypt.New(key)
	require.NoError(t, err)

	exec := memory.New(cipher)
	reg := registry.New()
	reg.Register(registry.DefaultName, exec)
	return reg, exec
}

func mustSave(t *testing.T, e *Entity) {
	t.Helper()
	ok, err := e.Save()
	require.NoError(t, err)
	require.True(t, ok)
}

func seedUser(t *testing.T, reg *registry.Registry, login string) *Entity {
	t.Helper()
	u := testUser.New(reg)
	require.NoError(t, u.Set("login", login))
	mustSave(t, u)
	return u
}

func seedPost(t *testing.T, reg *registry.Registry, title string, author *Entity) *Entity {
	t.Helper()
	p := testPost.New(reg)
	require.NoError(t, p.Set("title", title))
	if author != nil {
		require.NoError(t, p.Set("author", author))
	}
	mustSave(t, p)
	return p
}

func seedTag(t *testing.T, reg *registry.Registry, label string) *Entity {
	t.Helper()
	tag := testTag.New(reg)
	require.NoError(t, tag.Set("label", label))
	mustSave(t, tag)
	return tag
}
