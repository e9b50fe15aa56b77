package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadogan/recmap/pkg/crypt"
	"github.com/cadogan/recmap/pkg/executor"
)

func seedUsers(t *testing.T, e *Executor) {
	t.Helper()
	for _, row := range []executor.Row{
		{"login": "alice", "age": 30, "active": true},
		{"login": "bob", "age": 25, "active": false},
		{"login": "carol", "age": 35, "active": true},
	} {
		_, err := e.Insert("users", row, "id")
		require.NoError(t, err)
	}
}

func TestFetchOne(t *testing.T) {
	e := New(nil)
	seedUsers(t, e)

	row, err := e.Where("login", "bob", "=", "AND").FetchOne("users", "*")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "bob", row["login"])
	assert.Equal(t, int64(2), row["id"])

	// Absence is not an error
	row, err = e.Where("login", "nobody", "=", "AND").FetchOne("users", "*")
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestFetchOneColumnList(t *testing.T) {
	e := New(nil)
	seedUsers(t, e)

	row, err := e.Where("login", "alice", "=", "AND").FetchOne("users", "id, login")
	require.NoError(t, err)
	assert.Equal(t, executor.Row{"id": int64(1), "login": "alice"}, row)
}

func TestWhereConjunctionsAndIn(t *testing.T) {
	e := New(nil)
	seedUsers(t, e)

	rows, err := e.
		Where("age", 26, ">", "AND").
		Where("active", true, "=", "AND").
		FetchMany("users", "", "login")
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = e.
		Where("login", "bob", "=", "AND").
		Where("age", 34, ">", "OR").
		FetchMany("users", "login", "login")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "bob", rows[0]["login"])
	assert.Equal(t, "carol", rows[1]["login"])

	rows, err = e.
		Where("id", []any{int64(1), int64(3)}, "IN", "AND").
		FetchMany("users", "", "login")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestFetchManyOrdering(t *testing.T) {
	e := New(nil)
	seedUsers(t, e)

	rows, err := e.FetchMany("users", "age DESC", "login, age")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "carol", rows[0]["login"])
	assert.Equal(t, "alice", rows[1]["login"])
	assert.Equal(t, "bob", rows[2]["login"])

	// No match yields an empty slice, not nil
	rows, err = e.Where("age", 100, ">", "AND").FetchMany("users", "", "*")
	require.NoError(t, err)
	require.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestInsertAssignsIdentifiers(t *testing.T) {
	e := New(nil)

	id, err := e.Insert("users", executor.Row{"login": "alice"}, "id")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	id, err = e.Insert("users", executor.Row{"login": "bob"}, "id")
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)

	// A caller-provided key is adopted as-is
	id, err = e.Insert("tokens", executor.Row{"token": "t-123"}, "token")
	require.NoError(t, err)
	assert.Equal(t, "t-123", id)

	// No id column requested
	id, err = e.Insert("join_rows", executor.Row{"a": 1, "b": 2}, "")
	require.NoError(t, err)
	assert.Nil(t, id)
}

func TestInsertConflict(t *testing.T) {
	e := New(nil)
	e.DeclareUnique("users", "login")

	_, err := e.Insert("users", executor.Row{"login": "alice"}, "id")
	require.NoError(t, err)

	_, err = e.Insert("users", executor.Row{"login": "alice"}, "id")
	assert.ErrorIs(t, err, executor.ErrConflict)
	assert.NotEmpty(t, e.LastError())
}

func TestInsertIgnore(t *testing.T) {
	e := New(nil)
	e.DeclareUnique("memberships", "group_id", "user_id")

	inserted, err := e.InsertIgnore("memberships", executor.Row{"group_id": 1, "user_id": 2})
	require.NoError(t, err)
	assert.True(t, inserted)

	// The duplicate is suppressed, not an error
	inserted, err = e.InsertIgnore("memberships", executor.Row{"group_id": 1, "user_id": 2})
	require.NoError(t, err)
	assert.False(t, inserted)

	inserted, err = e.InsertIgnore("memberships", executor.Row{"group_id": 1, "user_id": 3})
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Len(t, e.Rows("memberships"), 2)
}

func TestUpdate(t *testing.T) {
	e := New(nil)
	seedUsers(t, e)

	updated, err := e.Where("login", "alice", "=", "AND").Update("users", executor.Row{"age": 31})
	require.NoError(t, err)
	assert.True(t, updated)

	row, err := e.Where("login", "alice", "=", "AND").FetchOne("users", "age")
	require.NoError(t, err)
	assert.Equal(t, 31, row["age"])

	updated, err = e.Where("login", "nobody", "=", "AND").Update("users", executor.Row{"age": 1})
	require.NoError(t, err)
	assert.False(t, updated)
}

func TestDelete(t *testing.T) {
	e := New(nil)
	seedUsers(t, e)

	deleted, err := e.Where("active", false, "=", "AND").Delete("users")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Len(t, e.Rows("users"), 2)

	deleted, err = e.Where("login", "nobody", "=", "AND").Delete("users")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestScalar(t *testing.T) {
	e := New(nil)
	seedUsers(t, e)

	count, err := e.Where("active", true, "=", "AND").Scalar("users", "COUNT(*)")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	login, err := e.Where("id", int64(3), "=", "AND").Scalar("users", "login")
	require.NoError(t, err)
	assert.Equal(t, "carol", login)

	missing, err := e.Where("id", int64(99), "=", "AND").Scalar("users", "login")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestEncryptionMarkers(t *testing.T) {
	key, err := crypt.GenerateKey()
	require.NoError(t, err)
	cipher, err := crypt.New(key)
	require.NoError(t, err)

	e := New(cipher)
	_, err = e.Insert("users", executor.Row{
		"login":   "alice",
		"api_key": executor.Encrypted{Plaintext: "s3cret"},
	}, "id")
	require.NoError(t, err)

	// Stored form is ciphertext
	stored := e.Rows("users")[0]["api_key"]
	packed, ok := stored.([]byte)
	require.True(t, ok, "expected ciphertext bytes, got %T", stored)
	assert.NotEqual(t, "s3cret", string(packed))

	// A raw read returns the ciphertext untouched
	row, err := e.Where("login", "alice", "=", "AND").FetchOne("users", "api_key")
	require.NoError(t, err)
	assert.Equal(t, packed, row["api_key"])

	// The decrypt projection recovers the plaintext under the bare name
	row, err = e.Where("login", "alice", "=", "AND").FetchOne("users", "DECRYPT(api_key)")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", row["api_key"])

	// Star plus projection: all columns, with the encrypted one readable
	row, err = e.Where("login", "alice", "=", "AND").FetchOne("users", "*, DECRYPT(api_key)")
	require.NoError(t, err)
	assert.Equal(t, "alice", row["login"])
	assert.Equal(t, "s3cret", row["api_key"])
}

func TestEncryptionWithoutCipher(t *testing.T) {
	e := New(nil)

	_, err := e.Insert("users", executor.Row{
		"api_key": executor.Encrypted{Plaintext: "s3cret"},
	}, "id")
	assert.Error(t, err)
	assert.NotEmpty(t, e.LastError())
}

func TestTerminalCallsResetConditions(t *testing.T) {
	e := New(nil)
	seedUsers(t, e)

	_, err := e.Where("login", "alice", "=", "AND").FetchOne("users", "*")
	require.NoError(t, err)

	// The previous condition must not leak into this query
	rows, err := e.FetchMany("users", "", "*")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestDiagnostics(t *testing.T) {
	e := New(nil)
	seedUsers(t, e)

	_, err := e.Where("login", "alice", "=", "AND").FetchOne("users", "*")
	require.NoError(t, err)
	assert.Contains(t, e.LastQuery(), "users")
	assert.Contains(t, e.LastQuery(), "login")

	// Reset clears conditions, not diagnostics
	e.Reset()
	assert.Contains(t, e.LastQuery(), "users")
}
