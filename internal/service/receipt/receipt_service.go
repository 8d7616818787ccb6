// Package receipt 押金支付凭证的提交与审核
package receipt

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dumeirei/tkshop-backend/internal/common/errors"
	"github.com/dumeirei/tkshop-backend/internal/common/logger"
	"github.com/dumeirei/tkshop-backend/internal/common/metrics"
	"github.com/dumeirei/tkshop-backend/internal/common/qrcode"
	"github.com/dumeirei/tkshop-backend/internal/common/utils"
	"github.com/dumeirei/tkshop-backend/internal/models"
	"github.com/dumeirei/tkshop-backend/internal/repository"
	"github.com/dumeirei/tkshop-backend/internal/service/deposit"
	"github.com/dumeirei/tkshop-backend/internal/service/settlement"
	"github.com/dumeirei/tkshop-backend/internal/service/wallet"
	"github.com/dumeirei/tkshop-backend/pkg/oss"
	"github.com/dumeirei/tkshop-backend/pkg/sms"
)

const (
	defaultMaxBulkEntries = 200
	proofKeyPrefix        = "receipts"
)

// Settler 凭证结算
type Settler interface {
	Settle(ctx context.Context, receiptID int64) (*settlement.Result, error)
}

// Options 可选依赖与业务参数
type Options struct {
	Uploader       oss.Uploader
	SMS            sms.Sender
	QRCode         *qrcode.Generator
	Metrics        *metrics.Metrics
	USDTAddress    string
	USDTNetwork    string
	MaxProofSize   int64
	MaxBulkEntries int
}

// Service 凭证服务
type Service struct {
	db          *gorm.DB
	receiptRepo *repository.ReceiptRepository
	depositRepo *repository.DepositRepository
	sellerRepo  *repository.SellerRepository
	deposits    *deposit.Service
	wallets     *wallet.Service
	settler     Settler
	opts        Options
}

// NewService 创建凭证服务
func NewService(
	db *gorm.DB,
	receiptRepo *repository.ReceiptRepository,
	depositRepo *repository.DepositRepository,
	sellerRepo *repository.SellerRepository,
	deposits *deposit.Service,
	wallets *wallet.Service,
	settler Settler,
	opts Options,
) *Service {
	if opts.MaxBulkEntries <= 0 {
		opts.MaxBulkEntries = defaultMaxBulkEntries
	}
	if opts.QRCode == nil {
		opts.QRCode = qrcode.NewGenerator()
	}
	return &Service{
		db:          db,
		receiptRepo: receiptRepo,
		depositRepo: depositRepo,
		sellerRepo:  sellerRepo,
		deposits:    deposits,
		wallets:     wallets,
		settler:     settler,
		opts:        opts,
	}
}

// Proof 转账截图
type Proof struct {
	Filename string
	Data     []byte
}

// SubmitRequest 提交凭证请求
type SubmitRequest struct {
	SellerID      int64
	DepositIDs    []int64
	PaymentMethod string
	Amount        decimal.Decimal
	TxHash        string
	Proof         *Proof
}

// Outcome 凭证变更结果
type Outcome struct {
	Receipt    *models.Receipt    `json:"receipt"`
	Settlement *settlement.Result `json:"settlement,omitempty"`
}

// Submit 提交押金支付凭证
// 钱包支付同步扣款并直接结算，USDT 支付进入待审核
func (s *Service) Submit(ctx context.Context, req *SubmitRequest) (*Outcome, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	var proofKey, proofURL string
	if req.PaymentMethod == models.PaymentMethodUSDT {
		key, url, err := s.uploadProof(ctx, req.SellerID, req.Proof)
		if err != nil {
			return nil, err
		}
		proofKey, proofURL = key, url
	}

	receipt := &models.Receipt{
		ReceiptNo:        utils.GenerateOrderNo(utils.NoPrefixReceipt),
		SellerID:         req.SellerID,
		Amount:           req.Amount,
		PaymentMethod:    req.PaymentMethod,
		Status:           models.ReceiptStatusPending,
		IsBulkPayment:    len(req.DepositIDs) > 1,
		SettlementStatus: models.SettlementStatusNone,
	}
	if proofKey != "" {
		receipt.ProofObjectKey = &proofKey
		receipt.ProofImageURL = &proofURL
	}
	if txHash := strings.TrimSpace(req.TxHash); txHash != "" {
		receipt.TxHash = &txHash
	}
	if req.PaymentMethod == models.PaymentMethodWallet {
		now := time.Now()
		receipt.Status = models.ReceiptStatusApproved
		receipt.ReviewedAt = &now
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entries, err := s.lockPayableEntries(ctx, tx, req.SellerID, req.DepositIDs)
		if err != nil {
			return err
		}

		sum := decimal.Zero
		receipt.Items = make([]models.ReceiptItem, len(req.DepositIDs))
		for i, id := range req.DepositIDs {
			entry := entries[id]
			sum = sum.Add(entry.TotalDepositRequired)
			receipt.Items[i] = models.ReceiptItem{
				Position:  i,
				DepositID: id,
				Amount:    entry.TotalDepositRequired,
			}
		}
		if !req.Amount.Equal(sum) {
			return errors.ErrAmountMismatch.WithMessage(
				fmt.Sprintf("凭证金额 %s 与押金合计 %s 不一致", req.Amount.StringFixed(2), sum.StringFixed(2)))
		}

		if err := s.receiptRepo.CreateTx(ctx, tx, receipt); err != nil {
			return errors.ErrDatabaseError.WithError(err)
		}

		if receipt.PaymentMethod == models.PaymentMethodWallet {
			if _, err := s.wallets.DebitTx(ctx, tx, wallet.Movement{
				SellerID: req.SellerID,
				Amount:   req.Amount,
				Type:     models.WalletTxTypeDepositPayment,
				RefNo:    receipt.ReceiptNo,
				Remark:   "余额支付押金",
			}); err != nil {
				return err
			}
		}

		for _, id := range req.DepositIDs {
			if err := s.deposits.AttachReceiptTx(ctx, tx, id, receipt.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.discardProof(ctx, proofKey)
		return nil, err
	}

	s.opts.Metrics.RecordReceipt(receipt.PaymentMethod, "submit")
	logger.Info("receipt submitted",
		logger.ReceiptID(receipt.ID),
		logger.ReceiptNo(receipt.ReceiptNo),
		logger.SellerID(receipt.SellerID),
		zap.String("payment_method", receipt.PaymentMethod),
		zap.Int("entries", len(receipt.Items)),
		logger.Amount("amount", receipt.Amount),
	)

	outcome := &Outcome{Receipt: receipt}
	if receipt.Status == models.ReceiptStatusApproved {
		result, err := s.settler.Settle(ctx, receipt.ID)
		if err != nil {
			// 凭证保持已通过，可重新审核补齐结算
			logger.Error("wallet receipt settlement failed", logger.ReceiptID(receipt.ID), zap.Error(err))
		}
		outcome.Settlement = result
	}
	return s.reload(ctx, outcome)
}

func (s *Service) validateRequest(req *SubmitRequest) error {
	switch req.PaymentMethod {
	case models.PaymentMethodWallet, models.PaymentMethodUSDT:
	default:
		return errors.ErrPaymentMethod
	}
	if len(req.DepositIDs) == 0 {
		return errors.ErrInvalidParams.WithMessage("请选择需要支付的押金记录")
	}
	if len(req.DepositIDs) > s.opts.MaxBulkEntries {
		return errors.ErrTooManyEntries.WithMessage(
			fmt.Sprintf("单张凭证最多关联 %d 条押金记录", s.opts.MaxBulkEntries))
	}
	if len(utils.Unique(req.DepositIDs)) != len(req.DepositIDs) {
		return errors.ErrDuplicateEntries
	}
	if !req.Amount.IsPositive() {
		return errors.ErrInvalidAmount
	}
	if req.PaymentMethod == models.PaymentMethodUSDT {
		if req.Proof == nil || len(req.Proof.Data) == 0 {
			return errors.ErrProofRequired
		}
		if err := oss.ValidateImage(req.Proof.Filename, req.Proof.Data, s.opts.MaxProofSize); err != nil {
			return errors.ErrProofInvalid.WithMessage(err.Error())
		}
	}
	return nil
}

// lockPayableEntries 加锁读取押金并校验归属与状态
func (s *Service) lockPayableEntries(ctx context.Context, tx *gorm.DB, sellerID int64, ids []int64) (map[int64]*models.DepositLedgerEntry, error) {
	rows, err := s.depositRepo.GetByIDsForUpdate(ctx, tx, ids)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	entries := make(map[int64]*models.DepositLedgerEntry, len(rows))
	for _, row := range rows {
		entries[row.ID] = row
	}
	for _, id := range ids {
		entry, ok := entries[id]
		if !ok {
			return nil, errors.ErrDepositNotFound.WithMessage(fmt.Sprintf("押金记录 %d 不存在", id))
		}
		if entry.SellerID != sellerID {
			return nil, errors.ErrEntryNotOwned
		}
		if !entry.Payable() {
			return nil, errors.ErrEntryNotSold.WithMessage(
				fmt.Sprintf("押金记录 %s 当前状态为 %s", entry.DepositNo, entry.Status))
		}
	}
	return entries, nil
}

func (s *Service) uploadProof(ctx context.Context, sellerID int64, proof *Proof) (string, string, error) {
	if s.opts.Uploader == nil {
		return "", "", errors.ErrExternalService.WithMessage("未配置凭证存储")
	}
	key := oss.GenerateObjectKey(proofKeyPrefix+"/"+strconv.FormatInt(sellerID, 10), proof.Filename)
	url, err := s.opts.Uploader.Upload(ctx, key, bytes.NewReader(proof.Data), oss.GetContentType(proof.Filename))
	if err != nil {
		return "", "", errors.ErrExternalService.WithMessage("凭证图片上传失败").WithError(err)
	}
	return key, url, nil
}

func (s *Service) discardProof(ctx context.Context, key string) {
	if key == "" || s.opts.Uploader == nil {
		return
	}
	if err := s.opts.Uploader.Delete(ctx, key); err != nil {
		logger.Warn("orphan proof cleanup failed", zap.String("object_key", key), zap.Error(err))
	}
}

// Approve 审核通过并结算；对已通过的凭证重复调用会重新结算未完成的押金
func (s *Service) Approve(ctx context.Context, receiptID, adminID int64) (*Outcome, error) {
	receipt, err := s.Get(ctx, receiptID)
	if err != nil {
		return nil, err
	}

	transitioned := false
	switch receipt.Status {
	case models.ReceiptStatusRejected:
		return nil, errors.ErrReceiptStatus.WithMessage("凭证已驳回")
	case models.ReceiptStatusPending:
		now := time.Now()
		changed, err := s.receiptRepo.UpdateStatusCAS(ctx, s.db, receiptID,
			models.ReceiptStatusPending, models.ReceiptStatusApproved,
			map[string]interface{}{"reviewer_id": adminID, "reviewed_at": now})
		if err != nil {
			return nil, errors.ErrDatabaseError.WithError(err)
		}
		if !changed {
			current, err := s.Get(ctx, receiptID)
			if err != nil {
				return nil, err
			}
			if current.Status != models.ReceiptStatusApproved {
				return nil, errors.ErrReceiptStatus.WithMessage("凭证已驳回")
			}
		}
		transitioned = changed
	}

	// 审核状态已提交，通知与结算结果无关
	if transitioned {
		s.opts.Metrics.RecordReceipt(receipt.PaymentMethod, "approve")
		logger.Info("receipt approved", logger.ReceiptID(receiptID), logger.AdminID(adminID))
		s.notify(ctx, receipt, func(sender sms.Sender, phone string) error {
			return sender.SendReceiptApproved(ctx, phone, receipt.ReceiptNo, receipt.Amount.StringFixed(2))
		})
	}

	result, err := s.settler.Settle(ctx, receiptID)
	if err != nil {
		if !transitioned || !errors.IsCode(err, errors.ErrSettlementInProgress) {
			return nil, err
		}
		// 并发的重复审核已在结算本凭证
		logger.Info("receipt settlement in progress elsewhere", logger.ReceiptID(receiptID), logger.AdminID(adminID))
		result = &settlement.Result{ReceiptID: receiptID, Status: settlement.StatusInProgress}
	}
	return s.reload(ctx, &Outcome{Receipt: receipt, Settlement: result})
}

// Reject 驳回待审核凭证，押金退回待支付
func (s *Service) Reject(ctx context.Context, receiptID, adminID int64, reason string) (*models.Receipt, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, errors.ErrInvalidParams.WithMessage("驳回原因不能为空")
	}

	receipt, err := s.Get(ctx, receiptID)
	if err != nil {
		return nil, err
	}

	var released int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		changed, err := s.receiptRepo.UpdateStatusCAS(ctx, tx, receiptID,
			models.ReceiptStatusPending, models.ReceiptStatusRejected,
			map[string]interface{}{
				"reviewer_id":   adminID,
				"reviewed_at":   time.Now(),
				"reject_reason": reason,
			})
		if err != nil {
			return errors.ErrDatabaseError.WithError(err)
		}
		if !changed {
			return errors.ErrReceiptStatus.WithMessage("仅待审核凭证可以驳回")
		}
		released, err = s.deposits.ReleaseTx(ctx, tx, receiptID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.opts.Metrics.RecordReceipt(receipt.PaymentMethod, "reject")
	logger.Info("receipt rejected",
		logger.ReceiptID(receiptID),
		logger.AdminID(adminID),
		zap.Int64("released", released),
		zap.String("reason", reason),
	)
	s.notify(ctx, receipt, func(sender sms.Sender, phone string) error {
		return sender.SendReceiptRejected(ctx, phone, receipt.ReceiptNo, reason)
	})

	return s.Get(ctx, receiptID)
}

// notify 短信通知卖家，失败只记录日志
func (s *Service) notify(ctx context.Context, receipt *models.Receipt, send func(sms.Sender, string) error) {
	if s.opts.SMS == nil {
		return
	}
	seller, err := s.sellerRepo.GetByID(ctx, receipt.SellerID)
	if err != nil {
		logger.Warn("receipt notify: seller lookup failed", logger.SellerID(receipt.SellerID), zap.Error(err))
		return
	}
	if err := send(s.opts.SMS, seller.Phone); err != nil {
		logger.Warn("receipt notify failed", logger.ReceiptNo(receipt.ReceiptNo), zap.Error(err))
	}
}

// Get 获取凭证（含明细）
func (s *Service) Get(ctx context.Context, id int64) (*models.Receipt, error) {
	receipt, err := s.receiptRepo.GetByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrReceiptNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return receipt, nil
}

// GetForSeller 获取卖家本人的凭证
func (s *Service) GetForSeller(ctx context.Context, sellerID, id int64) (*models.Receipt, error) {
	receipt, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if receipt.SellerID != sellerID {
		return nil, errors.ErrReceiptNotFound
	}
	return receipt, nil
}

// List 凭证列表
func (s *Service) List(ctx context.Context, filter *repository.ReceiptFilter, page utils.Pagination) ([]*models.Receipt, int64, error) {
	page.Normalize()
	receipts, total, err := s.receiptRepo.List(ctx, filter, page.GetOffset(), page.GetLimit())
	if err != nil {
		return nil, 0, errors.ErrDatabaseError.WithError(err)
	}
	return receipts, total, nil
}

// PaymentInfo USDT 收款信息
type PaymentInfo struct {
	Address    string          `json:"address"`
	Network    string          `json:"network"`
	Amount     decimal.Decimal `json:"amount"`
	EntryCount int             `json:"entry_count"`
	QRCode     string          `json:"qr_code"`
}

// GetPaymentInfo 计算待支付金额并生成收款二维码；ids 为空时汇总全部待支付押金
func (s *Service) GetPaymentInfo(ctx context.Context, sellerID int64, ids []int64) (*PaymentInfo, error) {
	if s.opts.USDTAddress == "" {
		return nil, errors.ErrPaymentMethod.WithMessage("未配置 USDT 收款地址")
	}

	info := &PaymentInfo{Address: s.opts.USDTAddress, Network: s.opts.USDTNetwork}
	if len(ids) == 0 {
		summary, err := s.deposits.GetPendingSummary(ctx, sellerID)
		if err != nil {
			return nil, err
		}
		info.Amount = summary.TotalAmount
		info.EntryCount = int(summary.Count)
	} else {
		ids = utils.Unique(ids)
		entries, err := s.depositRepo.GetByIDs(ctx, ids)
		if err != nil {
			return nil, errors.ErrDatabaseError.WithError(err)
		}
		if len(entries) != len(ids) {
			return nil, errors.ErrDepositNotFound
		}
		info.Amount = decimal.Zero
		for _, entry := range entries {
			if entry.SellerID != sellerID {
				return nil, errors.ErrEntryNotOwned
			}
			if !entry.Payable() {
				return nil, errors.ErrEntryNotSold
			}
			info.Amount = info.Amount.Add(entry.TotalDepositRequired)
		}
		info.EntryCount = len(entries)
	}

	qr, err := s.opts.QRCode.GenerateDataURL(qrcode.PaymentURI(info.Network, info.Address, info.Amount.StringFixed(2)))
	if err != nil {
		return nil, errors.ErrInternalError.WithError(err)
	}
	info.QRCode = qr
	return info, nil
}

func (s *Service) reload(ctx context.Context, outcome *Outcome) (*Outcome, error) {
	receipt, err := s.Get(ctx, outcome.Receipt.ID)
	if err != nil {
		return nil, err
	}
	outcome.Receipt = receipt
	return outcome, nil
}
