package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveTag(t *testing.T) {
	s := newTestService(t)
	a := createUser(t, s, "a@example.com")
	b := createUser(t, s, "b@example.com")

	t.Run("create if absent, stable on repeat", func(t *testing.T) {
		first, err := s.ResolveTag(a.ID, "homework")
		require.NoError(t, err)
		second, err := s.ResolveTag(a.ID, "homework")
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, int64(1), countRows(t, s, "tags", "name = ? AND user_id = ?", "homework", a.ID))
	})

	t.Run("same name, different owner scope", func(t *testing.T) {
		aID, err := s.ResolveTag(a.ID, "exam")
		require.NoError(t, err)
		bID, err := s.ResolveTag(b.ID, "exam")
		require.NoError(t, err)

		assert.NotEqual(t, aID, bID)
	})

	t.Run("blank name rejected", func(t *testing.T) {
		_, err := s.ResolveTag(a.ID, "   ")
		require.Error(t, err)
		assert.True(t, IsValidation(err))
	})
}

func TestToggleTag(t *testing.T) {
	s := newTestService(t)
	a := createUser(t, s, "a@example.com")
	b := createUser(t, s, "b@example.com")

	noteID := createNote(t, s, a.ID, "Math", "Notes1", "hello")
	tagID, err := s.ResolveTag(a.ID, "homework")
	require.NoError(t, err)

	t.Run("add is idempotent", func(t *testing.T) {
		require.NoError(t, s.ToggleTag(a.ID, noteID, tagID, true))
		require.NoError(t, s.ToggleTag(a.ID, noteID, tagID, true))

		assert.Equal(t, int64(1), countRows(t, s, "note_tags", "note_id = ? AND tag_id = ?", noteID, tagID))
	})

	t.Run("remove is idempotent", func(t *testing.T) {
		require.NoError(t, s.ToggleTag(a.ID, noteID, tagID, false))
		require.NoError(t, s.ToggleTag(a.ID, noteID, tagID, false))

		assert.Equal(t, int64(0), countRows(t, s, "note_tags", "note_id = ? AND tag_id = ?", noteID, tagID))
	})

	t.Run("other user's tag is not visible", func(t *testing.T) {
		foreignTag, err := s.ResolveTag(b.ID, "mine")
		require.NoError(t, err)

		err = s.ToggleTag(a.ID, noteID, foreignTag, true)
		require.Error(t, err)
		assert.True(t, IsNotAuthorized(err))
	})

	t.Run("global tag is visible to everyone", func(t *testing.T) {
		globalTag, err := s.ResolveTag(0, "important")
		require.NoError(t, err)

		require.NoError(t, s.ToggleTag(a.ID, noteID, globalTag, true))
		assert.Equal(t, int64(1), countRows(t, s, "note_tags", "note_id = ? AND tag_id = ?", noteID, globalTag))
	})

	t.Run("unknown tag", func(t *testing.T) {
		err := s.ToggleTag(a.ID, noteID, 987654, true)
		require.Error(t, err)
		assert.True(t, IsNotFound(err))
	})
}

func TestResolveSubjectScopedPerUser(t *testing.T) {
	s := newTestService(t)
	a := createUser(t, s, "a@example.com")
	b := createUser(t, s, "b@example.com")

	aID, err := s.ResolveSubject(a.ID, "Math")
	require.NoError(t, err)
	again, err := s.ResolveSubject(a.ID, "Math")
	require.NoError(t, err)
	bID, err := s.ResolveSubject(b.ID, "Math")
	require.NoError(t, err)

	assert.Equal(t, aID, again)
	assert.NotEqual(t, aID, bID)
}
