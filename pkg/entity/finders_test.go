package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFinderTable(t *testing.T) {
	assert.Equal(t, []string{"fromAuthor", "fromTags"}, testPost.Finders())
	assert.Equal(t, []string{"fromPosts", "fromProfile"}, testUser.Finders())
	assert.Empty(t, testTag.Finders())
}

func TestFindFromDirect(t *testing.T) {
	reg, _ := newTestRegistry(t)
	kate := seedUser(t, reg, "kate")
	noah := seedUser(t, reg, "noah")
	p1 := seedPost(t, reg, "One", kate)
	p2 := seedPost(t, reg, "Two", kate)
	seedPost(t, reg, "Other", noah)

	posts, err := testPost.FindFrom(reg, "fromAuthor", kate)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, p1.ID(), posts[0].ID())
	assert.Equal(t, p2.ID(), posts[1].ID())

	// A raw key works the same.
	posts, err = testPost.FindFrom(reg, "fromAuthor", kate.ID())
	require.NoError(t, err)
	assert.Len(t, posts, 2)
}

func TestFindFromOwned(t *testing.T) {
	reg, _ := newTestRegistry(t)
	owner := seedUser(t, reg, "ola")

	profile := testProfile.New(reg)
	require.NoError(t, profile.Set("bio", "hi"))
	require.NoError(t, owner.Set("profile", profile))

	// The reverse of an owned relation: who owns this profile?
	owners, err := testUser.FindFrom(reg, "fromProfile", profile)
	require.NoError(t, err)
	require.Len(t, owners, 1)
	assert.Equal(t, owner.ID(), owners[0].ID())

	// A raw key costs one narrow fetch of the target row.
	owners, err = testUser.FindFrom(reg, "fromProfile", profile.ID())
	require.NoError(t, err)
	require.Len(t, owners, 1)
	assert.Equal(t, owner.ID(), owners[0].ID())

	post := seedPost(t, reg, "Owned", owner)
	authors, err := testUser.FindFrom(reg, "fromPosts", post)
	require.NoError(t, err)
	require.Len(t, authors, 1)
	assert.Equal(t, owner.ID(), authors[0].ID())

	// An unattached target finds nobody.
	stray := seedPost(t, reg, "Stray", nil)
	authors, err = testUser.FindFrom(reg, "fromPosts", stray.ID())
	require.NoError(t, err)
	assert.Empty(t, authors)
}

func TestFindFromThrough(t *testing.T) {
	reg, exec := newTestRegistry(t)
	exec.DeclareUnique("post_tags", "post_id", "tag_id")

	tagGo := seedTag(t, reg, "go")
	p1 := seedPost(t, reg, "First", nil)
	p2 := seedPost(t, reg, "Second", nil)
	seedPost(t, reg, "Untagged", nil)

	require.NoError(t, p1.Set("tags", tagGo))
	require.NoError(t, p2.Set("tags", tagGo))

	posts, err := testPost.FindFrom(reg, "fromTags", tagGo)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.ElementsMatch(t, []any{p1.ID(), p2.ID()}, []any{posts[0].ID(), posts[1].ID()})

	fresh := seedTag(t, reg, "fresh")
	posts, err = testPost.FindFrom(reg, "fromTags", fresh)
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestFindFromUsageErrors(t *testing.T) {
	reg, _ := newTestRegistry(t)
	tag := seedTag(t, reg, "misc")

	var uerr *UsageError

	_, err := testPost.FindFrom(reg, "fromNowhere", 1)
	require.ErrorAs(t, err, &uerr)
	assert.Contains(t, uerr.Error(), "unknown finder")

	_, err = testPost.FindFrom(reg, "fromAuthor")
	require.ErrorAs(t, err, &uerr)
	assert.Contains(t, uerr.Error(), "expected 1 argument")

	_, err = testPost.FindFrom(reg, "fromAuthor", 1, 2)
	require.ErrorAs(t, err, &uerr)

	// The argument's type is checked against the relation's target.
	_, err = testPost.FindFrom(reg, "fromAuthor", tag)
	require.ErrorAs(t, err, &uerr)
	assert.Contains(t, uerr.Error(), "expected a User")
}

func TestLoadAbsentIsNil(t *testing.T) {
	reg, _ := newTestRegistry(t)

	u, err := testUser.Load(reg, int64(404))
	require.NoError(t, err)
	assert.Nil(t, u)

	u, err = testUser.Load(reg, nil)
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestFindOneAndFindAll(t *testing.T) {
	reg, _ := newTestRegistry(t)
	seedUser(t, reg, "nina")
	seedUser(t, reg, "omar")
	seedUser(t, reg, "pia")

	found, err := testUser.FindOne(reg, map[string]any{"login": "omar"})
	require.NoError(t, err)
	require.NotNil(t, found)

	missing, err := testUser.FindOne(reg, map[string]any{"login": "zz"})
	require.NoError(t, err)
	assert.Nil(t, missing)

	all, err := testUser.FindAll(reg, nil, "login DESC")
	require.NoError(t, err)
	require.Len(t, all, 3)
	first, err := all[0].Get("login")
	require.NoError(t, err)
	assert.Equal(t, "pia", first)

	// Slice values become IN conditions.
	some, err := testUser.FindAll(reg, map[string]any{"login": []string{"nina", "pia"}}, "")
	require.NoError(t, err)
	assert.Len(t, some, 2)
}

func TestCountWhereAndExists(t *testing.T) {
	reg, _ := newTestRegistry(t)
	u := seedUser(t, reg, "quinn")
	seedUser(t, reg, "rene")

	n, err := testUser.CountWhere(reg, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = testUser.CountWhere(reg, map[string]any{"login": "quinn"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	ok, err := testUser.Exists(reg, u.ID())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = testUser.Exists(reg, int64(404))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = testUser.Exists(reg, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAssureUnique(t *testing.T) {
	reg, _ := newTestRegistry(t)
	u1 := seedUser(t, reg, "pete")
	u2 := seedUser(t, reg, "sara")

	// Taken: the conflicting row's identifier comes back.
	taken, err := testUser.AssureUnique(reg, "login", "pete")
	require.NoError(t, err)
	assert.Equal(t, u1.ID(), taken)

	// Free.
	free, err := testUser.AssureUnique(reg, "login", "rosa")
	require.NoError(t, err)
	assert.Nil(t, free)

	// Editing a row in place excludes itself.
	self, err := testUser.AssureUnique(reg, "login", "pete", u1.ID())
	require.NoError(t, err)
	assert.Nil(t, self)

	// But another row claiming the value still conflicts.
	other, err := testUser.AssureUnique(reg, "login", "pete", u2.ID())
	require.NoError(t, err)
	assert.Equal(t, u1.ID(), other)
}
