// Package wallet 钱包服务单元测试
package wallet

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	appErrors "github.com/dumeirei/tkshop-backend/internal/common/errors"
	"github.com/dumeirei/tkshop-backend/internal/models"
	"github.com/dumeirei/tkshop-backend/internal/repository"
	"github.com/dumeirei/tkshop-backend/internal/testutil"
)

func setupWalletService(t *testing.T) (*Service, *gorm.DB) {
	db := testutil.NewTestDB(t)
	svc := NewService(db, repository.NewSellerRepository(db), repository.NewTransactionRepository(db))
	return svc, db
}

func TestService_GetWallet(t *testing.T) {
	svc, db := setupWalletService(t)
	ctx := context.Background()

	seller := testutil.CreateSeller(t, db, nil, "88.80")
	info, err := svc.GetWallet(ctx, seller.ID)
	require.NoError(t, err)
	assert.True(t, info.Balance.Equal(testutil.Dec("88.8")))

	_, err = svc.GetWallet(ctx, 123456)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrSellerNotFound))
}

func TestService_GetWalletCreatesMissing(t *testing.T) {
	svc, db := setupWalletService(t)

	seller := &models.Seller{ShopName: "s", Phone: testutil.RandomPhone(), PasswordHash: "x", Status: models.SellerStatusActive}
	require.NoError(t, db.Create(seller).Error)

	info, err := svc.GetWallet(context.Background(), seller.ID)
	require.NoError(t, err)
	assert.True(t, info.Balance.IsZero())
}

func TestService_CreditTx(t *testing.T) {
	svc, db := setupWalletService(t)
	ctx := context.Background()
	seller := testutil.CreateSeller(t, db, nil, "10")

	var row *models.WalletTransaction
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		row, err = svc.CreditTx(ctx, tx, Movement{
			SellerID: seller.ID,
			Amount:   testutil.Dec("30"),
			Type:     models.WalletTxTypeProfitRelease,
			RefNo:    "DP1",
		})
		return err
	})
	require.NoError(t, err)

	assert.True(t, row.BalanceBefore.Equal(testutil.Dec("10")))
	assert.True(t, row.BalanceAfter.Equal(testutil.Dec("40")))
	assert.True(t, testutil.WalletBalance(t, db, seller.ID).Equal(testutil.Dec("40")))

	info, err := svc.GetWallet(ctx, seller.ID)
	require.NoError(t, err)
	assert.True(t, info.TotalProfit.Equal(testutil.Dec("30")))
}

func TestService_RejectsNonPositiveAmount(t *testing.T) {
	svc, db := setupWalletService(t)
	ctx := context.Background()
	seller := testutil.CreateSeller(t, db, nil, "10")

	for _, amount := range []string{"0", "-1"} {
		_, err := svc.CreditTx(ctx, db, Movement{SellerID: seller.ID, Amount: testutil.Dec(amount), Type: models.WalletTxTypeRecharge})
		assert.True(t, appErrors.IsCode(err, appErrors.ErrInvalidAmount), amount)

		_, err = svc.DebitTx(ctx, db, Movement{SellerID: seller.ID, Amount: testutil.Dec(amount), Type: models.WalletTxTypeDepositPayment})
		assert.True(t, appErrors.IsCode(err, appErrors.ErrInvalidAmount), amount)
	}
}

func TestService_DebitTx(t *testing.T) {
	svc, db := setupWalletService(t)
	ctx := context.Background()
	seller := testutil.CreateSeller(t, db, nil, "100")

	_, err := svc.DebitTx(ctx, db, Movement{SellerID: seller.ID, Amount: testutil.Dec("100.01"), Type: models.WalletTxTypeDepositPayment})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrBalanceInsufficient))

	row, err := svc.DebitTx(ctx, db, Movement{SellerID: seller.ID, Amount: testutil.Dec("60"), Type: models.WalletTxTypeDepositPayment, RefNo: "RC1"})
	require.NoError(t, err)
	assert.True(t, row.Amount.Equal(testutil.Dec("-60")))
	assert.True(t, row.BalanceAfter.Equal(testutil.Dec("40")))
	assert.True(t, testutil.WalletBalance(t, db, seller.ID).Equal(testutil.Dec("40")))

	records, total, err := svc.GetTransactions(ctx, seller.ID, 0, 10, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "押金支付", records[0].TypeName)
}

func TestService_Recharge(t *testing.T) {
	svc, db := setupWalletService(t)
	ctx := context.Background()
	seller := testutil.CreateSeller(t, db, nil, "0")

	_, err := svc.Recharge(ctx, seller.ID, testutil.Dec("50"), "TOPUP1")
	require.NoError(t, err)

	info, err := svc.GetWallet(ctx, seller.ID)
	require.NoError(t, err)
	assert.True(t, info.Balance.Equal(testutil.Dec("50")))
	assert.True(t, info.TotalRecharged.Equal(testutil.Dec("50")))
}

func TestService_ConcurrentDebitNeverOverdraws(t *testing.T) {
	svc, db := setupWalletService(t)
	ctx := context.Background()
	seller := testutil.CreateSeller(t, db, nil, "100")

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := db.Transaction(func(tx *gorm.DB) error {
				_, err := svc.DebitTx(ctx, tx, Movement{SellerID: seller.ID, Amount: testutil.Dec("30"), Type: models.WalletTxTypeDepositPayment})
				return err
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded)
	assert.True(t, testutil.WalletBalance(t, db, seller.ID).Equal(testutil.Dec("10")))
}
