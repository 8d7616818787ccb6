package receipt

import (
	"context"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dumeirei/tkshop-backend/internal/common/errors"
	"github.com/dumeirei/tkshop-backend/internal/common/utils"
	"github.com/dumeirei/tkshop-backend/internal/models"
	"github.com/dumeirei/tkshop-backend/internal/repository"
	"github.com/dumeirei/tkshop-backend/internal/service/commission"
	"github.com/dumeirei/tkshop-backend/internal/service/deposit"
	"github.com/dumeirei/tkshop-backend/internal/service/settlement"
	"github.com/dumeirei/tkshop-backend/internal/service/wallet"
	"github.com/dumeirei/tkshop-backend/internal/testutil"
	"github.com/dumeirei/tkshop-backend/pkg/oss"
	"github.com/dumeirei/tkshop-backend/pkg/sms"
)

var pngProof = &Proof{
	Filename: "transfer.png",
	Data:     append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...),
}

type env struct {
	db       *gorm.DB
	svc      *Service
	uploader *oss.MockUploader
	sms      *sms.MockSender
}

func newEnv(t *testing.T, opts Options) *env {
	t.Helper()
	return newEnvWithRedis(t, opts, nil)
}

func newEnvWithRedis(t *testing.T, opts Options, rdb *redis.Client) *env {
	t.Helper()
	db := testutil.NewTestDB(t)

	sellerRepo := repository.NewSellerRepository(db)
	depositRepo := repository.NewDepositRepository(db)
	receiptRepo := repository.NewReceiptRepository(db)
	eventRepo := repository.NewSettlementEventRepository(db)

	deposits := deposit.NewService(db, depositRepo, sellerRepo)
	wallets := wallet.NewService(db, sellerRepo, repository.NewTransactionRepository(db))
	commissions := commission.NewService(db, repository.NewCommissionRepository(db), sellerRepo, repository.NewAdminRepository(db), commission.Options{})
	dispatcher := settlement.NewDispatcher(eventRepo, commissions, nil, nil, zap.NewNop())
	engine := settlement.NewEngine(db, receiptRepo, depositRepo, eventRepo, deposits, wallets, dispatcher,
		settlement.Options{Redis: rdb, Logger: zap.NewNop()})

	uploader := oss.NewMockUploader()
	sender := sms.NewMockSender()
	opts.Uploader = uploader
	opts.SMS = sender
	if opts.MaxProofSize == 0 {
		opts.MaxProofSize = 1024
	}

	return &env{
		db:       db,
		svc:      NewService(db, receiptRepo, depositRepo, sellerRepo, deposits, wallets, engine, opts),
		uploader: uploader,
		sms:      sender,
	}
}

func (e *env) entry(t *testing.T, sellerID int64, cost, price string) *models.DepositLedgerEntry {
	return testutil.CreateEntry(t, e.db, sellerID, models.DepositStatusSold, cost, price, 1, 1)
}

func (e *env) usdt(t *testing.T, sellerID int64, amount string, entries ...*models.DepositLedgerEntry) *models.Receipt {
	t.Helper()
	ids := make([]int64, len(entries))
	for i, en := range entries {
		ids[i] = en.ID
	}
	out, err := e.svc.Submit(context.Background(), &SubmitRequest{
		SellerID:      sellerID,
		DepositIDs:    ids,
		PaymentMethod: models.PaymentMethodUSDT,
		Amount:        testutil.Dec(amount),
		Proof:         pngProof,
	})
	require.NoError(t, err)
	return out.Receipt
}

func TestSubmit_USDTBulk(t *testing.T) {
	e := newEnv(t, Options{})
	seller := testutil.CreateSeller(t, e.db, nil, "0")
	a := e.entry(t, seller.ID, "100", "130")
	b := e.entry(t, seller.ID, "50", "60")

	receipt := e.usdt(t, seller.ID, "150", b, a)

	assert.Equal(t, models.ReceiptStatusPending, receipt.Status)
	assert.True(t, receipt.IsBulkPayment)
	require.Len(t, receipt.Items, 2)
	assert.Equal(t, b.ID, receipt.Items[0].DepositID)
	assert.Equal(t, a.ID, receipt.Items[1].DepositID)
	assert.True(t, receipt.Items[1].Amount.Equal(testutil.Dec("100")))
	require.NotNil(t, receipt.ProofImageURL)
	require.NotNil(t, receipt.ProofObjectKey)
	assert.True(t, e.uploader.Has(*receipt.ProofObjectKey))

	for _, id := range []int64{a.ID, b.ID} {
		entry := testutil.Reload(t, e.db, id)
		assert.Equal(t, models.DepositStatusReceiptSubmitted, entry.Status)
		require.NotNil(t, entry.ReceiptID)
		assert.Equal(t, receipt.ID, *entry.ReceiptID)
	}
}

func TestSubmit_AmountMismatch(t *testing.T) {
	e := newEnv(t, Options{})
	seller := testutil.CreateSeller(t, e.db, nil, "0")
	a := e.entry(t, seller.ID, "100", "130")
	b := e.entry(t, seller.ID, "50", "60")

	_, err := e.svc.Submit(context.Background(), &SubmitRequest{
		SellerID:      seller.ID,
		DepositIDs:    []int64{a.ID, b.ID},
		PaymentMethod: models.PaymentMethodUSDT,
		Amount:        testutil.Dec("149"),
		Proof:         pngProof,
	})
	assert.True(t, errors.IsCode(err, errors.ErrAmountMismatch))
	assert.Equal(t, models.DepositStatusSold, testutil.Reload(t, e.db, a.ID).Status)
	assert.Empty(t, e.uploader.Files, "uploaded proof removed on failure")

	var count int64
	require.NoError(t, e.db.Model(&models.Receipt{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSubmit_Validation(t *testing.T) {
	e := newEnv(t, Options{MaxBulkEntries: 2})
	seller := testutil.CreateSeller(t, e.db, nil, "0")
	other := testutil.CreateSeller(t, e.db, nil, "0")
	mine := e.entry(t, seller.ID, "100", "130")
	theirs := e.entry(t, other.ID, "100", "130")
	listed := testutil.CreateEntry(t, e.db, seller.ID, models.DepositStatusPending, "100", "130", 1, 1)

	tests := []struct {
		name   string
		req    SubmitRequest
		target *errors.AppError
	}{
		{"不支持的支付方式", SubmitRequest{DepositIDs: []int64{mine.ID}, PaymentMethod: "alipay", Amount: testutil.Dec("100")}, errors.ErrPaymentMethod},
		{"未选择押金", SubmitRequest{PaymentMethod: models.PaymentMethodWallet, Amount: testutil.Dec("100")}, errors.ErrInvalidParams},
		{"数量超限", SubmitRequest{DepositIDs: []int64{1, 2, 3}, PaymentMethod: models.PaymentMethodWallet, Amount: testutil.Dec("100")}, errors.ErrTooManyEntries},
		{"重复押金", SubmitRequest{DepositIDs: []int64{mine.ID, mine.ID}, PaymentMethod: models.PaymentMethodWallet, Amount: testutil.Dec("200")}, errors.ErrDuplicateEntries},
		{"金额非正", SubmitRequest{DepositIDs: []int64{mine.ID}, PaymentMethod: models.PaymentMethodWallet, Amount: testutil.Dec("0")}, errors.ErrInvalidAmount},
		{"缺少截图", SubmitRequest{DepositIDs: []int64{mine.ID}, PaymentMethod: models.PaymentMethodUSDT, Amount: testutil.Dec("100")}, errors.ErrProofRequired},
		{"截图无效", SubmitRequest{DepositIDs: []int64{mine.ID}, PaymentMethod: models.PaymentMethodUSDT, Amount: testutil.Dec("100"),
			Proof: &Proof{Filename: "a.png", Data: []byte("not an image")}}, errors.ErrProofInvalid},
		{"押金不存在", SubmitRequest{DepositIDs: []int64{99999}, PaymentMethod: models.PaymentMethodUSDT, Amount: testutil.Dec("100"), Proof: pngProof}, errors.ErrDepositNotFound},
		{"押金不属于卖家", SubmitRequest{DepositIDs: []int64{theirs.ID}, PaymentMethod: models.PaymentMethodUSDT, Amount: testutil.Dec("100"), Proof: pngProof}, errors.ErrEntryNotOwned},
		{"押金未售出", SubmitRequest{DepositIDs: []int64{listed.ID}, PaymentMethod: models.PaymentMethodUSDT, Amount: testutil.Dec("100"), Proof: pngProof}, errors.ErrEntryNotSold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			req.SellerID = seller.ID
			_, err := e.svc.Submit(context.Background(), &req)
			assert.True(t, errors.IsCode(err, tt.target), "got %v", err)
		})
	}
}

func TestSubmit_AlreadySubmittedEntry(t *testing.T) {
	e := newEnv(t, Options{})
	seller := testutil.CreateSeller(t, e.db, nil, "0")
	a := e.entry(t, seller.ID, "100", "130")
	e.usdt(t, seller.ID, "100", a)

	_, err := e.svc.Submit(context.Background(), &SubmitRequest{
		SellerID:      seller.ID,
		DepositIDs:    []int64{a.ID},
		PaymentMethod: models.PaymentMethodUSDT,
		Amount:        testutil.Dec("100"),
		Proof:         pngProof,
	})
	assert.True(t, errors.IsCode(err, errors.ErrEntryNotSold))
}

func TestSubmit_WalletSettlesImmediately(t *testing.T) {
	e := newEnv(t, Options{})
	seller := testutil.CreateSeller(t, e.db, nil, "200")
	a := e.entry(t, seller.ID, "100", "130")
	b := e.entry(t, seller.ID, "50", "60")

	out, err := e.svc.Submit(context.Background(), &SubmitRequest{
		SellerID:      seller.ID,
		DepositIDs:    []int64{a.ID, b.ID},
		PaymentMethod: models.PaymentMethodWallet,
		Amount:        testutil.Dec("150"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReceiptStatusApproved, out.Receipt.Status)
	assert.Equal(t, models.SettlementStatusCompleted, out.Receipt.SettlementStatus)
	require.NotNil(t, out.Settlement)
	assert.Equal(t, 2, out.Settlement.Processed)

	// 200 - 150 + 30 + 10
	assert.True(t, testutil.WalletBalance(t, e.db, seller.ID).Equal(testutil.Dec("90")))
	assert.Equal(t, models.DepositStatusPaid, testutil.Reload(t, e.db, a.ID).Status)
	assert.Empty(t, e.uploader.Files)
}

func TestSubmit_WalletInsufficient(t *testing.T) {
	e := newEnv(t, Options{})
	seller := testutil.CreateSeller(t, e.db, nil, "99.99")
	a := e.entry(t, seller.ID, "100", "130")

	_, err := e.svc.Submit(context.Background(), &SubmitRequest{
		SellerID:      seller.ID,
		DepositIDs:    []int64{a.ID},
		PaymentMethod: models.PaymentMethodWallet,
		Amount:        testutil.Dec("100"),
	})
	assert.True(t, errors.IsCode(err, errors.ErrBalanceInsufficient))
	assert.Equal(t, models.DepositStatusSold, testutil.Reload(t, e.db, a.ID).Status)
	assert.True(t, testutil.WalletBalance(t, e.db, seller.ID).Equal(testutil.Dec("99.99")))
}

func TestApprove(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, Options{})
	admin := testutil.CreateAdmin(t, e.db, models.RoleCodeAdmin)
	seller := testutil.CreateSeller(t, e.db, &admin.ID, "0")
	a := e.entry(t, seller.ID, "100", "130")
	receipt := e.usdt(t, seller.ID, "100", a)

	out, err := e.svc.Approve(ctx, receipt.ID, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReceiptStatusApproved, out.Receipt.Status)
	require.NotNil(t, out.Receipt.ReviewerID)
	assert.Equal(t, admin.ID, *out.Receipt.ReviewerID)
	assert.Equal(t, 1, out.Settlement.Processed)
	assert.True(t, testutil.WalletBalance(t, e.db, seller.ID).Equal(testutil.Dec("30")))

	require.Equal(t, 1, e.sms.Count())
	msg := e.sms.GetLastMessage()
	assert.Equal(t, seller.Phone, msg.Phone)
	assert.Equal(t, sms.TemplateReceiptApproved, msg.TemplateCode)
	assert.Equal(t, "100.00", msg.Params["amount"])

	t.Run("重复审核不重复入账", func(t *testing.T) {
		again, err := e.svc.Approve(ctx, receipt.ID, admin.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, again.Settlement.Processed)
		assert.Equal(t, 1, again.Settlement.AlreadySettled)
		assert.True(t, testutil.WalletBalance(t, e.db, seller.ID).Equal(testutil.Dec("30")))
		assert.Equal(t, 1, e.sms.Count())
	})

	t.Run("已通过不能驳回", func(t *testing.T) {
		_, err := e.svc.Reject(ctx, receipt.ID, admin.ID, "误操作")
		assert.True(t, errors.IsCode(err, errors.ErrReceiptStatus))
	})

	t.Run("凭证不存在", func(t *testing.T) {
		_, err := e.svc.Approve(ctx, 99999, admin.ID)
		assert.True(t, errors.IsCode(err, errors.ErrReceiptNotFound))
	})
}

func TestApprove_Concurrent(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, Options{})
	admin := testutil.CreateAdmin(t, e.db, models.RoleCodeAdmin)
	seller := testutil.CreateSeller(t, e.db, nil, "0")
	receipt := e.usdt(t, seller.ID, "150", e.entry(t, seller.ID, "100", "130"), e.entry(t, seller.ID, "50", "60"))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.svc.Approve(ctx, receipt.ID, admin.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.True(t, testutil.WalletBalance(t, e.db, seller.ID).Equal(testutil.Dec("40")))
	assert.Equal(t, 1, e.sms.Count())

	var txCount int64
	require.NoError(t, e.db.Model(&models.WalletTransaction{}).
		Where("type = ?", models.WalletTxTypeProfitRelease).Count(&txCount).Error)
	assert.EqualValues(t, 2, txCount)
}

func TestApprove_SettlementLockHeld(t *testing.T) {
	ctx := context.Background()
	mr, rdb := testutil.NewMiniRedis(t)
	e := newEnvWithRedis(t, Options{}, rdb)
	admin := testutil.CreateAdmin(t, e.db, models.RoleCodeAdmin)
	seller := testutil.CreateSeller(t, e.db, nil, "0")
	receipt := e.usdt(t, seller.ID, "150", e.entry(t, seller.ID, "100", "130"), e.entry(t, seller.ID, "50", "60"))

	// 另一请求正持有结算锁
	require.NoError(t, mr.Set(settlement.LockKey(receipt.ID), "other"))
	outcome, err := e.svc.Approve(ctx, receipt.ID, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReceiptStatusApproved, outcome.Receipt.Status)
	require.NotNil(t, outcome.Settlement)
	assert.Equal(t, settlement.StatusInProgress, outcome.Settlement.Status)
	assert.Equal(t, 1, e.sms.Count())

	// 非本次转换的重复审核仍返回结算中
	_, err = e.svc.Approve(ctx, receipt.ID, admin.ID)
	assert.True(t, errors.IsCode(err, errors.ErrSettlementInProgress))

	mr.Del(settlement.LockKey(receipt.ID))
	outcome, err = e.svc.Approve(ctx, receipt.ID, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.Settlement.Processed)
	assert.True(t, testutil.WalletBalance(t, e.db, seller.ID).Equal(testutil.Dec("40")))
	assert.Equal(t, 1, e.sms.Count())
}

func TestApprove_ConcurrentWithLock(t *testing.T) {
	ctx := context.Background()
	_, rdb := testutil.NewMiniRedis(t)
	e := newEnvWithRedis(t, Options{}, rdb)
	admin := testutil.CreateAdmin(t, e.db, models.RoleCodeAdmin)
	seller := testutil.CreateSeller(t, e.db, nil, "0")
	receipt := e.usdt(t, seller.ID, "150", e.entry(t, seller.ID, "100", "130"), e.entry(t, seller.ID, "50", "60"))

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.svc.Approve(ctx, receipt.ID, admin.ID)
			if err != nil {
				assert.True(t, errors.IsCode(err, errors.ErrSettlementInProgress), "unexpected error: %v", err)
				return
			}
			mu.Lock()
			ok++
			mu.Unlock()
		}()
	}
	wg.Wait()

	// 完成状态转换的请求不会因锁冲突报错
	assert.GreaterOrEqual(t, ok, 1)
	assert.Equal(t, 1, e.sms.Count())

	// 补一次审核确保结算收尾，利润只释放一次
	_, err := e.svc.Approve(ctx, receipt.ID, admin.ID)
	require.NoError(t, err)
	assert.True(t, testutil.WalletBalance(t, e.db, seller.ID).Equal(testutil.Dec("40")))
	approved, err := e.svc.Get(ctx, receipt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReceiptStatusApproved, approved.Status)
}

func TestReject(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, Options{})
	admin := testutil.CreateAdmin(t, e.db, models.RoleCodeAdmin)
	seller := testutil.CreateSeller(t, e.db, nil, "0")
	a := e.entry(t, seller.ID, "100", "130")
	b := e.entry(t, seller.ID, "50", "60")
	receipt := e.usdt(t, seller.ID, "150", a, b)

	_, err := e.svc.Reject(ctx, receipt.ID, admin.ID, "  ")
	assert.True(t, errors.IsCode(err, errors.ErrInvalidParams))

	rejected, err := e.svc.Reject(ctx, receipt.ID, admin.ID, "截图金额不符")
	require.NoError(t, err)
	assert.Equal(t, models.ReceiptStatusRejected, rejected.Status)
	require.NotNil(t, rejected.RejectReason)
	assert.Equal(t, "截图金额不符", *rejected.RejectReason)

	for _, id := range []int64{a.ID, b.ID} {
		entry := testutil.Reload(t, e.db, id)
		assert.Equal(t, models.DepositStatusSold, entry.Status)
		assert.Nil(t, entry.ReceiptID)
	}
	assert.Equal(t, sms.TemplateReceiptRejected, e.sms.GetLastMessage().TemplateCode)

	_, err = e.svc.Approve(ctx, receipt.ID, admin.ID)
	assert.True(t, errors.IsCode(err, errors.ErrReceiptStatus))

	_, err = e.svc.Reject(ctx, receipt.ID, admin.ID, "again")
	assert.True(t, errors.IsCode(err, errors.ErrReceiptStatus))

	// 驳回后押金可以重新提交
	resubmitted := e.usdt(t, seller.ID, "150", a, b)
	assert.NotEqual(t, receipt.ID, resubmitted.ID)
}

func TestGetForSellerAndList(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, Options{})
	seller := testutil.CreateSeller(t, e.db, nil, "0")
	other := testutil.CreateSeller(t, e.db, nil, "0")
	receipt := e.usdt(t, seller.ID, "100", e.entry(t, seller.ID, "100", "130"))
	e.usdt(t, other.ID, "100", e.entry(t, other.ID, "100", "130"))

	got, err := e.svc.GetForSeller(ctx, seller.ID, receipt.ID)
	require.NoError(t, err)
	assert.Len(t, got.Items, 1)

	_, err = e.svc.GetForSeller(ctx, other.ID, receipt.ID)
	assert.True(t, errors.IsCode(err, errors.ErrReceiptNotFound))

	list, total, err := e.svc.List(ctx, &repository.ReceiptFilter{SellerID: &seller.ID}, utils.Pagination{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, list, 1)

	_, total, err = e.svc.List(ctx, &repository.ReceiptFilter{Status: models.ReceiptStatusPending}, utils.Pagination{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
}

func TestGetPaymentInfo(t *testing.T) {
	ctx := context.Background()

	t.Run("未配置地址", func(t *testing.T) {
		e := newEnv(t, Options{})
		_, err := e.svc.GetPaymentInfo(ctx, 1, nil)
		assert.True(t, errors.IsCode(err, errors.ErrPaymentMethod))
	})

	e := newEnv(t, Options{USDTAddress: "TXYZabc123", USDTNetwork: "TRC20"})
	seller := testutil.CreateSeller(t, e.db, nil, "0")
	a := e.entry(t, seller.ID, "100", "130")
	e.entry(t, seller.ID, "50", "60")

	all, err := e.svc.GetPaymentInfo(ctx, seller.ID, nil)
	require.NoError(t, err)
	assert.True(t, all.Amount.Equal(testutil.Dec("150")))
	assert.Equal(t, 2, all.EntryCount)
	assert.Equal(t, "TRC20", all.Network)
	assert.Contains(t, all.QRCode, "data:image/png;base64,")

	one, err := e.svc.GetPaymentInfo(ctx, seller.ID, []int64{a.ID})
	require.NoError(t, err)
	assert.True(t, one.Amount.Equal(testutil.Dec("100")))
	assert.Equal(t, 1, one.EntryCount)

	_, err = e.svc.GetPaymentInfo(ctx, seller.ID+1, []int64{a.ID})
	assert.True(t, errors.IsCode(err, errors.ErrEntryNotOwned))
}
