package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLogin(t *testing.T) {
	s := newTestService(t)

	token, err := s.Register(RegisterReq{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "Ada@Example.com",
		Password:  "longenough",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	t.Run("duplicate email conflicts", func(t *testing.T) {
		_, err := s.Register(RegisterReq{
			FirstName: "Ada",
			Email:     "ada@example.com",
			Password:  "longenough",
		})
		require.Error(t, err)
		assert.True(t, IsConflict(err))
	})

	t.Run("short password rejected", func(t *testing.T) {
		_, err := s.Register(RegisterReq{FirstName: "X", Email: "x@example.com", Password: "short"})
		require.Error(t, err)
		assert.True(t, IsValidation(err))
	})

	t.Run("login rotates token", func(t *testing.T) {
		loginToken, err := s.Login("ada@example.com", "longenough")
		require.NoError(t, err)
		assert.NotEmpty(t, loginToken)
		assert.NotEqual(t, token, loginToken)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := s.Login("ada@example.com", "wrongpass")
		assert.ErrorIs(t, err, ErrLoginPasswordDoesNotMatch)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := s.Login("nobody@example.com", "whatever")
		assert.ErrorIs(t, err, ErrLoginUserNotFound)
	})
}

func TestDeleteAccountCascades(t *testing.T) {
	s := newTestService(t)
	a := createUser(t, s, "a@example.com")
	b := createUser(t, s, "b@example.com")

	// a owns two notes, one shared with b; b owns a note shared with a
	first := createNote(t, s, a.ID, "Math", "first", "one")
	second := createNote(t, s, a.ID, "English", "second", "two")
	require.NoError(t, s.ShareNote(a.ID, second, b.ID, PermissionManage))

	theirNote := createNote(t, s, b.ID, "History", "theirs", "keep me")
	require.NoError(t, s.ShareNote(b.ID, theirNote, a.ID, PermissionRead))

	tagID, err := s.ResolveTag(a.ID, "homework")
	require.NoError(t, err)
	require.NoError(t, s.ToggleTag(a.ID, first, tagID, true))

	require.NoError(t, s.DeleteAccount(a.ID))

	assert.Equal(t, int64(0), countRows(t, s, "users", "id = ?", a.ID))
	assert.Equal(t, int64(0), countRows(t, s, "notes", "user_id = ?", a.ID))
	assert.Equal(t, int64(0), countRows(t, s, "subjects", "user_id = ?", a.ID))
	assert.Equal(t, int64(0), countRows(t, s, "tags", "user_id = ?", a.ID))
	// grants on a's notes and grants held by a elsewhere are both gone
	assert.Equal(t, int64(0), countRows(t, s, "shares", "note_id IN ?", []uint64{first, second}))
	assert.Equal(t, int64(0), countRows(t, s, "shares", "user_id = ?", a.ID))

	// blobs are gone too
	content, err := s.store.Read(first)
	require.NoError(t, err)
	assert.Empty(t, content)

	// b's world is untouched
	detail, err := s.GetNote(b.ID, theirNote)
	require.NoError(t, err)
	assert.Equal(t, "keep me", detail.Content)

	t.Run("unknown user", func(t *testing.T) {
		err := s.DeleteAccount(a.ID)
		require.Error(t, err)
		assert.True(t, IsNotFound(err))
	})
}
