package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePermission(t *testing.T) {
	p, err := ParsePermission("read")
	require.NoError(t, err)
	assert.Equal(t, PermissionRead, p)

	p, err = ParsePermission("manage")
	require.NoError(t, err)
	assert.Equal(t, PermissionManage, p)

	_, err = ParsePermission("admin")
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestPermissionOrdering(t *testing.T) {
	assert.True(t, PermissionRead < PermissionManage)
	assert.Equal(t, "read", PermissionRead.String())
	assert.Equal(t, "manage", PermissionManage.String())
}

func TestAccessDecisionTable(t *testing.T) {
	assert.True(t, accessOwner.canRead())
	assert.True(t, accessOwner.canEdit())
	assert.True(t, accessOwner.isOwner())

	assert.True(t, accessManage.canRead())
	assert.True(t, accessManage.canEdit())
	assert.False(t, accessManage.isOwner())

	assert.True(t, accessRead.canRead())
	assert.False(t, accessRead.canEdit())

	assert.False(t, accessNone.canRead())
	assert.False(t, accessNone.canEdit())
}
