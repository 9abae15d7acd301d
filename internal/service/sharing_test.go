package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShareNote(t *testing.T) {
	s := newTestService(t)
	a := createUser(t, s, "a@example.com")
	b := createUser(t, s, "b@example.com")

	noteID := createNote(t, s, a.ID, "Math", "Notes1", "hello")

	t.Run("grant then duplicate grant conflicts", func(t *testing.T) {
		require.NoError(t, s.ShareNote(a.ID, noteID, b.ID, PermissionRead))

		err := s.ShareNote(a.ID, noteID, b.ID, PermissionManage)
		require.Error(t, err)
		assert.True(t, IsConflict(err))

		assert.Equal(t, int64(1), countRows(t, s, "shares", "note_id = ? AND user_id = ?", noteID, b.ID))
	})

	t.Run("owner cannot be a grantee", func(t *testing.T) {
		err := s.ShareNote(a.ID, noteID, a.ID, PermissionRead)
		require.Error(t, err)
		assert.True(t, IsValidation(err))
	})

	t.Run("unknown grantee", func(t *testing.T) {
		err := s.ShareNote(a.ID, noteID, 424242, PermissionRead)
		require.Error(t, err)
		assert.True(t, IsNotFound(err))
	})

	t.Run("only the owner administers sharing", func(t *testing.T) {
		c := createUser(t, s, "c@example.com")
		require.NoError(t, s.UpdateShare(a.ID, noteID, b.ID, PermissionManage))

		// manage does not extend to share administration
		err := s.ShareNote(b.ID, noteID, c.ID, PermissionRead)
		assert.True(t, IsNotAuthorized(err))
		err = s.Unshare(b.ID, noteID, b.ID)
		assert.True(t, IsNotAuthorized(err))
	})
}

func TestUpdateAndUnshareAreIdempotent(t *testing.T) {
	s := newTestService(t)
	a := createUser(t, s, "a@example.com")
	b := createUser(t, s, "b@example.com")

	noteID := createNote(t, s, a.ID, "Math", "Notes1", "hello")

	// no grant on record: both are no-ops
	require.NoError(t, s.UpdateShare(a.ID, noteID, b.ID, PermissionManage))
	require.NoError(t, s.Unshare(a.ID, noteID, b.ID))

	require.NoError(t, s.ShareNote(a.ID, noteID, b.ID, PermissionRead))
	require.NoError(t, s.Unshare(a.ID, noteID, b.ID))
	require.NoError(t, s.Unshare(a.ID, noteID, b.ID))

	assert.Equal(t, int64(0), countRows(t, s, "shares", "note_id = ?", noteID))
}

func TestManageGranteeCannotDelete(t *testing.T) {
	s := newTestService(t)
	a := createUser(t, s, "a@example.com")
	b := createUser(t, s, "b@example.com")

	noteID := createNote(t, s, a.ID, "Math", "Notes1", "hello")
	require.NoError(t, s.ShareNote(a.ID, noteID, b.ID, PermissionManage))

	_, err := s.EditNote(b.ID, noteID, []byte("edited by b"))
	require.NoError(t, err)

	err = s.DeleteNote(b.ID, noteID)
	require.Error(t, err)
	assert.True(t, IsNotAuthorized(err))

	assert.Equal(t, int64(1), countRows(t, s, "notes", "id = ?", noteID))
}
