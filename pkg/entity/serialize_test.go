package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapAndOnly(t *testing.T) {
	reg, _ := newTestRegistry(t)
	u := testUser.New(reg)
	require.NoError(t, u.Set("login", "tara"))
	require.NoError(t, u.Set("password", "hush"))
	mustSave(t, u)

	m := u.Map(false)
	assert.Equal(t, "tara", m["login"])
	assert.NotContains(t, m, "password")

	m = u.Map(true)
	assert.Equal(t, "hush", m["password"])

	only := u.Only("login", "password", "ghost")
	assert.Equal(t, map[string]any{"login": "tara", "password": "hush"}, only)
}

func TestMapDoesNotAliasFields(t *testing.T) {
	reg, _ := newTestRegistry(t)
	u := seedUser(t, reg, "uma")

	m := u.Map(false)
	m["login"] = "mangled"

	got, err := u.Get("login")
	require.NoError(t, err)
	assert.Equal(t, "uma", got)
}

func TestWithFullRelation(t *testing.T) {
	reg, _ := newTestRegistry(t)
	author := seedUser(t, reg, "vera")
	post := seedPost(t, reg, "Hello", author)

	require.NoError(t, post.With("author"))
	m := post.Map(false)

	nested, ok := m["author"].(map[string]any)
	require.True(t, ok, "author should serialize as a nested map")
	assert.Equal(t, author.ID(), nested["id"])
	assert.Equal(t, "vera", nested["login"])
}

func TestWithCollectionRelation(t *testing.T) {
	reg, exec := newTestRegistry(t)
	exec.DeclareUnique("post_tags", "post_id", "tag_id")

	post := seedPost(t, reg, "Tagged", nil)
	tagGo := seedTag(t, reg, "go")
	tagDB := seedTag(t, reg, "db")
	require.NoError(t, post.Set("tags", []*Entity{tagGo, tagDB}))

	require.NoError(t, post.With("tags"))
	m := post.Map(false)

	tags, ok := m["tags"].([]map[string]any)
	require.True(t, ok, "tags should serialize as a list of maps")
	require.Len(t, tags, 2)
	labels := []any{tags[0]["label"], tags[1]["label"]}
	assert.ElementsMatch(t, []any{"go", "db"}, labels)
}

func TestWithColumnLimited(t *testing.T) {
	reg, exec := newTestRegistry(t)
	exec.DeclareUnique("post_tags", "post_id", "tag_id")

	post := seedPost(t, reg, "Narrow", nil)
	tag := seedTag(t, reg, "zig")
	require.NoError(t, post.Set("tags", tag))

	require.NoError(t, post.With("tags:label"))
	m := post.Map(false)

	tags, ok := m["tags"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, tags, 1)
	// The identifier rides along even when not asked for.
	assert.Equal(t, "zig", tags[0]["label"])
	assert.Contains(t, tags[0], "id")
	assert.Len(t, tags[0], 2)
}

func TestWithEmptyCollection(t *testing.T) {
	reg, _ := newTestRegistry(t)
	post := seedPost(t, reg, "Bare", nil)

	require.NoError(t, post.With("tags"))
	m := post.Map(false)

	tags, ok := m["tags"].([]map[string]any)
	require.True(t, ok)
	assert.Empty(t, tags)
	assert.NotNil(t, tags)
}

func TestWithUnknownRelation(t *testing.T) {
	reg, _ := newTestRegistry(t)
	post := seedPost(t, reg, "Oops", nil)

	var uerr *UsageError
	err := post.With("nonesuch")
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "With", uerr.Method)
}
