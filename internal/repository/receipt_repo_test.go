// Package repository 支付凭证仓储单元测试
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

func createTestReceipt(t *testing.T, repo *ReceiptRepository, sellerID int64, status, method string, depositIDs ...int64) *models.Receipt {
	t.Helper()
	receipt := &models.Receipt{
		ReceiptNo:        "RC" + testutil.RandomPhone(),
		SellerID:         sellerID,
		Amount:           testutil.Dec("10"),
		PaymentMethod:    method,
		Status:           status,
		IsBulkPayment:    len(depositIDs) > 1,
		SettlementStatus: models.SettlementStatusNone,
	}
	// 逆序写入明细，验证读取按 position 排序
	for i := len(depositIDs) - 1; i >= 0; i-- {
		receipt.Items = append(receipt.Items, models.ReceiptItem{
			Position:  i,
			DepositID: depositIDs[i],
			Amount:    testutil.Dec("10"),
		})
	}
	require.NoError(t, repo.CreateTx(context.Background(), repo.db, receipt))
	return receipt
}

func TestReceiptRepository_CreateAndGet(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewReceiptRepository(db)
	ctx := context.Background()

	receipt := createTestReceipt(t, repo, 1, models.ReceiptStatusPending, models.PaymentMethodUSDT, 5, 3, 9)
	assert.NotZero(t, receipt.ID)

	got, err := repo.GetByID(ctx, receipt.ID)
	require.NoError(t, err)
	assert.True(t, got.IsBulkPayment)
	assert.Equal(t, []int64{5, 3, 9}, got.DepositIDs())
}

func TestReceiptRepository_List(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewReceiptRepository(db)
	ctx := context.Background()

	createTestReceipt(t, repo, 1, models.ReceiptStatusPending, models.PaymentMethodUSDT, 1)
	createTestReceipt(t, repo, 1, models.ReceiptStatusApproved, models.PaymentMethodWallet, 2)
	createTestReceipt(t, repo, 2, models.ReceiptStatusPending, models.PaymentMethodUSDT, 3)

	list, total, err := repo.List(ctx, nil, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, list, 3)
	assert.Empty(t, list[0].Items)

	sellerID := int64(1)
	_, total, err = repo.List(ctx, &ReceiptFilter{SellerID: &sellerID}, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	_, total, err = repo.List(ctx, &ReceiptFilter{Status: models.ReceiptStatusPending, PaymentMethod: models.PaymentMethodUSDT}, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	future := time.Now().Add(time.Hour)
	_, total, err = repo.List(ctx, &ReceiptFilter{StartDate: &future}, 0, 10)
	require.NoError(t, err)
	assert.Zero(t, total)

	count, err := repo.CountByStatus(ctx, models.ReceiptStatusPending)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestReceiptRepository_UpdateStatusCAS(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewReceiptRepository(db)
	ctx := context.Background()

	receipt := createTestReceipt(t, repo, 1, models.ReceiptStatusPending, models.PaymentMethodUSDT, 1)
	reviewer := int64(7)

	changed, err := repo.UpdateStatusCAS(ctx, db, receipt.ID, models.ReceiptStatusPending, models.ReceiptStatusApproved,
		map[string]interface{}{"reviewer_id": reviewer, "reviewed_at": time.Now()})
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.UpdateStatusCAS(ctx, db, receipt.ID, models.ReceiptStatusPending, models.ReceiptStatusRejected, nil)
	require.NoError(t, err)
	assert.False(t, changed)

	got, err := repo.GetByID(ctx, receipt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReceiptStatusApproved, got.Status)
	require.NotNil(t, got.ReviewerID)
	assert.Equal(t, reviewer, *got.ReviewerID)
}

func TestReceiptRepository_UpdateSettlement(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewReceiptRepository(db)
	ctx := context.Background()

	receipt := createTestReceipt(t, repo, 1, models.ReceiptStatusApproved, models.PaymentMethodUSDT, 1, 2, 3)
	require.NoError(t, repo.UpdateSettlement(ctx, receipt.ID, models.SettlementStatusCompleted, 2, 1, time.Now()))

	got, err := repo.GetByID(ctx, receipt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SettlementStatusCompleted, got.SettlementStatus)
	assert.Equal(t, 2, got.ProcessedCount)
	assert.Equal(t, 1, got.SkippedCount)
	assert.NotNil(t, got.SettledAt)
}

func TestReceiptRepository_ListApprovedWithOpenEntries(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewReceiptRepository(db)
	deposits := NewDepositRepository(db)
	ctx := context.Background()

	seller := testutil.CreateSeller(t, db, nil, "0")
	a := testutil.CreateEntry(t, db, seller.ID, models.DepositStatusSold, "10", "12", 1, 1)
	b := testutil.CreateEntry(t, db, seller.ID, models.DepositStatusSold, "10", "12", 1, 1)
	c := testutil.CreateEntry(t, db, seller.ID, models.DepositStatusSold, "10", "12", 1, 1)

	open := createTestReceipt(t, repo, seller.ID, models.ReceiptStatusApproved, models.PaymentMethodUSDT, a.ID, b.ID)
	pending := createTestReceipt(t, repo, seller.ID, models.ReceiptStatusPending, models.PaymentMethodUSDT, c.ID)
	for _, id := range []int64{a.ID, b.ID} {
		_, err := deposits.AttachReceiptTx(ctx, db, id, open.ID, time.Now())
		require.NoError(t, err)
	}
	_, err := deposits.AttachReceiptTx(ctx, db, c.ID, pending.ID, time.Now())
	require.NoError(t, err)

	ids, err := repo.ListApprovedWithOpenEntries(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, []int64{open.ID}, ids)
}
