// Package repository 卖家仓储单元测试
package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dumeirei/tkshop-backend/internal/models"
	"github.com/dumeirei/tkshop-backend/internal/testutil"
)

func TestSellerRepository_GetByPhone(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSellerRepository(db)
	ctx := context.Background()

	seller := testutil.CreateSeller(t, db, nil, "0")

	got, err := repo.GetByPhone(ctx, seller.Phone)
	require.NoError(t, err)
	assert.Equal(t, seller.ID, got.ID)

	_, err = repo.GetByPhone(ctx, "00000000000")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestSellerRepository_GetByIDWithWallet(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSellerRepository(db)

	seller := testutil.CreateSeller(t, db, nil, "12.50")

	got, err := repo.GetByIDWithWallet(context.Background(), seller.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Wallet)
	assert.True(t, got.Wallet.Balance.Equal(testutil.Dec("12.5")))
}

func TestSellerRepository_UpdateLoginAt(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSellerRepository(db)
	ctx := context.Background()

	seller := testutil.CreateSeller(t, db, nil, "0")
	require.NoError(t, repo.UpdateLoginAt(ctx, seller.ID, time.Now()))

	got, err := repo.GetByID(ctx, seller.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.LastLoginAt)
}

func TestSellerRepository_CreateWalletIdempotent(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSellerRepository(db)
	ctx := context.Background()

	seller := &models.Seller{ShopName: "s", Phone: testutil.RandomPhone(), PasswordHash: "x", Status: models.SellerStatusActive}
	require.NoError(t, repo.Create(ctx, seller))

	require.NoError(t, repo.CreateWallet(ctx, db, seller.ID))
	require.NoError(t, repo.CreateWallet(ctx, db, seller.ID))

	var count int64
	db.Model(&models.SellerWallet{}).Where("seller_id = ?", seller.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestSellerRepository_IncrementBalance(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSellerRepository(db)
	ctx := context.Background()

	seller := testutil.CreateSeller(t, db, nil, "10")

	require.NoError(t, repo.IncrementBalance(ctx, db, seller.ID, testutil.Dec("30"), "total_profit"))

	wallet, err := repo.GetWallet(ctx, seller.ID)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(testutil.Dec("40")), wallet.Balance.String())
	assert.True(t, wallet.TotalProfit.Equal(testutil.Dec("30")))
	assert.Equal(t, 1, wallet.Version)

	err = repo.IncrementBalance(ctx, db, 99999, testutil.Dec("1"), "")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestSellerRepository_DecrementBalance(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSellerRepository(db)
	ctx := context.Background()

	seller := testutil.CreateSeller(t, db, nil, "100")

	ok, err := repo.DecrementBalance(ctx, db, seller.ID, testutil.Dec("100.01"), "total_deposit_paid")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, testutil.WalletBalance(t, db, seller.ID).Equal(testutil.Dec("100")))

	ok, err = repo.DecrementBalance(ctx, db, seller.ID, testutil.Dec("100"), "total_deposit_paid")
	require.NoError(t, err)
	assert.True(t, ok)

	wallet, err := repo.GetWallet(ctx, seller.ID)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.IsZero())
	assert.True(t, wallet.TotalDepositPaid.Equal(testutil.Dec("100")))
}

func TestSellerRepository_GetWalletForUpdate(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSellerRepository(db)
	ctx := context.Background()

	seller := testutil.CreateSeller(t, db, nil, "5")

	err := db.Transaction(func(tx *gorm.DB) error {
		wallet, err := repo.GetWalletForUpdate(ctx, tx, seller.ID)
		if err != nil {
			return err
		}
		assert.True(t, wallet.Balance.Equal(testutil.Dec("5")))
		return nil
	})
	require.NoError(t, err)
}
