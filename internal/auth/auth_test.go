package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithUserRoundTrip(t *testing.T) {
	ctx := WithUser(context.Background(), 42, RoleUser)

	uid, ok := GetUIDFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, uint64(42), uid)

	role, ok := GetRoleFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, RoleUser, role)
	assert.False(t, IsAdmin(ctx))
}

func TestCheckOwnership(t *testing.T) {
	owner := WithUser(context.Background(), 42, RoleUser)
	stranger := WithUser(context.Background(), 43, RoleUser)
	admin := WithUser(context.Background(), 1, RoleAdmin)

	assert.NoError(t, CheckOwnership(owner, 42))
	assert.Error(t, CheckOwnership(stranger, 42))
	// 管理员可以访问所有资源
	assert.NoError(t, CheckOwnership(admin, 42))
	// 未认证
	assert.Error(t, CheckOwnership(context.Background(), 42))
}

func TestRequireAdmin(t *testing.T) {
	assert.Error(t, RequireAdmin(context.Background()))
	assert.Error(t, RequireAdmin(WithUser(context.Background(), 42, RoleUser)))
	assert.NoError(t, RequireAdmin(WithUser(context.Background(), 1, RoleAdmin)))
}
