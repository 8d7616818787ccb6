// Package repository 佣金仓储单元测试
package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dumeirei/tkshop-backend/internal/models"
	"github.com/dumeirei/tkshop-backend/internal/testutil"
)

func newTestCommissionRecord(adminID, sellerID, depositID int64, amount string) *models.CommissionRecord {
	return &models.CommissionRecord{
		AdminID:   adminID,
		SellerID:  sellerID,
		DepositID: depositID,
		ReceiptID: 1,
		Profit:    testutil.Dec("30"),
		Rate:      testutil.Dec("0.1"),
		Amount:    testutil.Dec(amount),
	}
}

func TestCommissionRepository_CreateRecordTxDedup(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewCommissionRepository(db)
	ctx := context.Background()

	created, err := repo.CreateRecordTx(ctx, db, newTestCommissionRecord(1, 2, 100, "3"))
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.CreateRecordTx(ctx, db, newTestCommissionRecord(1, 2, 100, "3"))
	require.NoError(t, err)
	assert.False(t, created)

	count, err := repo.CountRecords(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	var record models.CommissionRecord
	require.NoError(t, db.Where("deposit_id = ?", 100).First(&record).Error)
	assert.True(t, record.Amount.Equal(testutil.Dec("3")))
}

func TestCommissionRepository_AddToLedgerTx(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewCommissionRepository(db)
	ctx := context.Background()

	_, err := repo.GetLedger(ctx, 5)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	require.NoError(t, repo.AddToLedgerTx(ctx, db, 5, testutil.Dec("3")))
	require.NoError(t, repo.AddToLedgerTx(ctx, db, 5, testutil.Dec("1.25")))

	ledger, err := repo.GetLedger(ctx, 5)
	require.NoError(t, err)
	assert.True(t, ledger.TotalCommission.Equal(testutil.Dec("4.25")), ledger.TotalCommission.String())
	assert.Equal(t, int64(2), ledger.SettledCount)
}

func TestCommissionRepository_ListRecords(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewCommissionRepository(db)
	ctx := context.Background()

	for i, adminID := range []int64{1, 1, 2} {
		_, err := repo.CreateRecordTx(ctx, db, newTestCommissionRecord(adminID, 9, int64(200+i), "1"))
		require.NoError(t, err)
	}

	list, total, err := repo.ListRecords(ctx, 0, 10, map[string]interface{}{"admin_id": int64(1)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, int64(201), list[0].DepositID)

	_, total, err = repo.ListRecords(ctx, 0, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}
