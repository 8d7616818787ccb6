// Package repository 管理员仓储单元测试
package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumeirei/tkshop-backend/internal/models"
	"github.com/dumeirei/tkshop-backend/internal/testutil"
)

func TestAdminRepository_CreateAndGet(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewAdminRepository(db)
	ctx := context.Background()

	admin := &models.Admin{
		Username:     "alice",
		PasswordHash: "hashed",
		Name:         "审核员",
		Role:         models.RoleCodeAdmin,
		Status:       models.AdminStatusActive,
	}
	require.NoError(t, repo.Create(ctx, admin))
	assert.NotZero(t, admin.ID)

	got, err := repo.GetByID(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	byName, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, byName.ID)

	_, err = repo.GetByUsername(ctx, "nobody")
	assert.Error(t, err)
}

func TestAdminRepository_UpdateLoginInfo(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewAdminRepository(db)
	ctx := context.Background()

	admin := testutil.CreateAdmin(t, db, models.RoleCodeAdmin)
	require.NoError(t, repo.UpdateLoginInfo(ctx, admin.ID, "10.0.0.1"))

	got, err := repo.GetByID(ctx, admin.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastLoginIP)
	assert.Equal(t, "10.0.0.1", *got.LastLoginIP)
	assert.NotNil(t, got.LastLoginAt)
}

func TestAdminRepository_List(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewAdminRepository(db)
	ctx := context.Background()

	testutil.CreateAdmin(t, db, models.RoleCodeAdmin)
	testutil.CreateAdmin(t, db, models.RoleCodeAdmin)
	testutil.CreateAdmin(t, db, models.RoleCodeSuperAdmin)

	list, total, err := repo.List(ctx, 0, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, list, 3)

	list, total, err = repo.List(ctx, 0, 10, map[string]interface{}{"role": models.RoleCodeSuperAdmin})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.True(t, list[0].IsSuperAdmin())
}
