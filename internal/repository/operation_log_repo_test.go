// Package repository 操作日志仓储单元测试
package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumeirei/tkshop-backend/internal/models"
	"github.com/dumeirei/tkshop-backend/internal/testutil"
)

func TestOperationLogRepository_CreateAndList(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewOperationLogRepository(db)
	ctx := context.Background()

	target := "receipt"
	targetID := int64(7)
	logs := []*models.OperationLog{
		{AdminID: 1, Module: "receipt", Action: "approve", TargetType: &target, TargetID: &targetID, IP: "127.0.0.1", StatusCode: 200},
		{AdminID: 1, Module: "receipt", Action: "reject", IP: "127.0.0.1", StatusCode: 200},
		{AdminID: 2, Module: "deposit", Action: "create", IP: "127.0.0.1", StatusCode: 200,
			Request: models.JSON{"order_no": "ORD1"}},
	}
	for _, l := range logs {
		require.NoError(t, repo.Create(ctx, l))
	}

	all, total, err := repo.List(ctx, 0, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, all, 3)
	assert.Equal(t, "deposit", all[0].Module)
	assert.Equal(t, "ORD1", all[0].Request["order_no"])

	byTarget, total, err := repo.List(ctx, 0, 10, map[string]interface{}{
		"target_type": "receipt",
		"target_id":   int64(7),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "approve", byTarget[0].Action)

	_, total, err = repo.List(ctx, 0, 10, map[string]interface{}{"admin_id": int64(1), "action": "reject"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	count, err := repo.CountByModule(ctx, "receipt", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}
