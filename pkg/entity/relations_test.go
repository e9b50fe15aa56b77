package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadogan/recmap/pkg/executor"
)

func TestDirectReference(t *testing.T) {
	reg, _ := newTestRegistry(t)
	author := seedUser(t, reg, "kate")
	post := seedPost(t, reg, "Intro", author)

	got, err := post.Get("author")
	require.NoError(t, err)
	related, ok := got.(*Entity)
	require.True(t, ok)
	assert.Equal(t, author.ID(), related.ID())

	// Memoized until reassigned.
	again, err := post.Get("author")
	require.NoError(t, err)
	assert.Same(t, related, again.(*Entity))

	n, err := post.CountRelated("author")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	ids, err := post.ResolveIDs("author")
	require.NoError(t, err)
	assert.Equal(t, []any{author.ID()}, ids)

	// Detaching only moves the local key through the change set.
	require.NoError(t, post.Set("author", nil))
	assert.True(t, post.Changed("author_id"))

	got, err = post.Get("author")
	require.NoError(t, err)
	assert.Nil(t, got)

	n, err = post.CountRelated("author")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDirectReferenceDanglingKey(t *testing.T) {
	reg, _ := newTestRegistry(t)
	post := seedPost(t, reg, "Orphan", nil)
	require.NoError(t, post.Set("author_id", int64(404)))

	got, err := post.Get("author")
	require.NoError(t, err, "a dangling reference resolves nil, not an error")
	assert.Nil(t, got)
}

func TestSingleOwned(t *testing.T) {
	reg, exec := newTestRegistry(t)
	u := seedUser(t, reg, "lena")

	got, err := u.Get("profile")
	require.NoError(t, err)
	assert.Nil(t, got, "nothing attached yet")

	// A transient holder inserts with the owning key in place.
	p := testProfile.New(reg)
	require.NoError(t, p.Set("bio", "gopher"))
	require.NoError(t, u.Set("profile", p))
	assert.True(t, p.IsLoaded())

	got, err = u.Get("profile")
	require.NoError(t, err)
	require.NotNil(t, got)
	held := got.(*Entity)
	assert.Equal(t, p.ID(), held.ID())

	n, err := u.CountRelated("profile")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	// Reassigning releases the previous holder.
	p2 := testProfile.New(reg)
	require.NoError(t, p2.Set("bio", "rustacean"))
	require.NoError(t, u.Set("profile", p2))

	for _, row := range exec.Rows("profiles") {
		if executor.LooseEqual(row["id"], p.ID()) {
			assert.Nil(t, row["user_id"], "previous holder released")
		}
		if executor.LooseEqual(row["id"], p2.ID()) {
			assert.Equal(t, u.ID(), row["user_id"])
		}
	}

	// Clearing detaches without deleting the row.
	require.NoError(t, u.Set("profile", nil))
	got, err = u.Get("profile")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Len(t, exec.Rows("profiles"), 2)
}

func TestSingleOwnedAssignByKey(t *testing.T) {
	reg, _ := newTestRegistry(t)
	u := seedUser(t, reg, "maya")

	p := testProfile.New(reg)
	require.NoError(t, p.Set("bio", "plain"))
	mustSave(t, p)

	require.NoError(t, u.Set("profile", p.ID()))

	got, err := u.Get("profile")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, p.ID(), got.(*Entity).ID())
}

func TestMultiOwned(t *testing.T) {
	reg, exec := newTestRegistry(t)
	u := seedUser(t, reg, "mike")
	p1 := seedPost(t, reg, "One", u)
	p2 := seedPost(t, reg, "Two", u)
	p3 := seedPost(t, reg, "Three", nil)

	got, err := u.Get("posts")
	require.NoError(t, err)
	posts := got.([]*Entity)
	require.Len(t, posts, 2)
	assert.Equal(t, p1.ID(), posts[0].ID(), "default order applies")
	assert.Equal(t, p2.ID(), posts[1].ID())

	n, err := u.CountRelated("posts")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	// Replacing the membership adopts p3 and releases p1.
	require.NoError(t, u.Set("posts", []*Entity{p2, p3}))

	ids, err := u.ResolveIDs("posts")
	require.NoError(t, err)
	assert.ElementsMatch(t, []any{p2.ID(), p3.ID()}, ids)

	for _, row := range exec.Rows("posts") {
		if executor.LooseEqual(row["id"], p1.ID()) {
			assert.Nil(t, row["author_id"], "released member keeps its row")
		}
	}

	// Adopting a single member keeps the rest.
	require.NoError(t, u.Set("posts", p1))
	n, err = u.CountRelated("posts")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	// nil releases everyone.
	require.NoError(t, u.Set("posts", nil))
	n, err = u.CountRelated("posts")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, exec.Rows("posts"), 3, "release never deletes the rows")
}

func TestIndirectThrough(t *testing.T) {
	reg, exec := newTestRegistry(t)
	exec.DeclareUnique("post_tags", "post_id", "tag_id")

	post := seedPost(t, reg, "Tagged", nil)
	tagGo := seedTag(t, reg, "go")
	tagDB := seedTag(t, reg, "db")
	tagWeb := seedTag(t, reg, "web")

	// Attaching one member is idempotent.
	require.NoError(t, post.Set("tags", tagGo))
	require.NoError(t, post.Set("tags", tagGo))
	assert.Len(t, exec.Rows("post_tags"), 1)

	n, err := post.CountRelated("tags")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	// Replacing the membership diffs the join rows.
	require.NoError(t, post.Set("tags", []*Entity{tagDB, tagWeb}))

	ids, err := post.ResolveIDs("tags")
	require.NoError(t, err)
	assert.ElementsMatch(t, []any{tagDB.ID(), tagWeb.ID()}, ids)

	got, err := post.Get("tags")
	require.NoError(t, err)
	tags := got.([]*Entity)
	require.Len(t, tags, 2)

	// Keeping a member across a replace does not churn its join row.
	require.NoError(t, post.Set("tags", []*Entity{tagWeb}))
	ids, err = post.ResolveIDs("tags")
	require.NoError(t, err)
	assert.ElementsMatch(t, []any{tagWeb.ID()}, ids)

	// An empty list detaches everything; the tags themselves survive.
	require.NoError(t, post.Set("tags", []*Entity{}))
	assert.Empty(t, exec.Rows("post_tags"))
	assert.Len(t, exec.Rows("tags"), 3)

	got, err = post.Get("tags")
	require.NoError(t, err)
	assert.Empty(t, got.([]*Entity))
}

func TestIndirectThroughAssignByKeys(t *testing.T) {
	reg, exec := newTestRegistry(t)
	exec.DeclareUnique("post_tags", "post_id", "tag_id")

	post := seedPost(t, reg, "Keyed", nil)
	tagGo := seedTag(t, reg, "go")
	tagDB := seedTag(t, reg, "db")

	require.NoError(t, post.Set("tags", []any{tagGo.ID(), tagDB.ID()}))

	n, err := post.CountRelated("tags")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestRelationsOnTransientEntity(t *testing.T) {
	reg, _ := newTestRegistry(t)
	u := testUser.New(reg)

	got, err := u.Get("profile")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = u.Get("posts")
	require.NoError(t, err)
	assert.Empty(t, got.([]*Entity))

	n, err := u.CountRelated("posts")
	require.NoError(t, err)
	assert.Zero(t, n)

	// Attaching to an unsaved owner is a usage error.
	err = u.Set("posts", []*Entity{})
	var uerr *UsageError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "AssignRelated", uerr.Method)
}

func TestUnknownRelationIsUsageError(t *testing.T) {
	reg, _ := newTestRegistry(t)
	u := seedUser(t, reg, "noel")

	var uerr *UsageError

	_, err := u.Resolve("nope")
	assert.ErrorAs(t, err, &uerr)

	_, err = u.ResolveIDs("nope")
	assert.ErrorAs(t, err, &uerr)

	_, err = u.CountRelated("nope")
	assert.ErrorAs(t, err, &uerr)

	err = u.AssignRelated("nope", 1)
	assert.ErrorAs(t, err, &uerr)
}

func TestAssignRelatedRejectsUnsavedTarget(t *testing.T) {
	reg, _ := newTestRegistry(t)
	post := seedPost(t, reg, "Strict", nil)
	ghost := testTag.New(reg)

	// A join row needs a real key, so an unsaved tag cannot attach.
	var uerr *UsageError
	err := post.Set("tags", ghost)
	assert.ErrorAs(t, err, &uerr)
}
