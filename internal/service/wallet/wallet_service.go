// Package wallet 提供卖家钱包余额服务
// 卖家余额只允许通过 CreditTx / DebitTx 变更
package wallet

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dumeirei/tkshop-backend/internal/common/errors"
	"github.com/dumeirei/tkshop-backend/internal/models"
	"github.com/dumeirei/tkshop-backend/internal/repository"
)

// Service 钱包服务
type Service struct {
	db         *gorm.DB
	sellerRepo *repository.SellerRepository
	txRepo     *repository.TransactionRepository
}

// NewService 创建钱包服务
func NewService(db *gorm.DB, sellerRepo *repository.SellerRepository, txRepo *repository.TransactionRepository) *Service {
	return &Service{
		db:         db,
		sellerRepo: sellerRepo,
		txRepo:     txRepo,
	}
}

// WalletInfo 钱包信息
type WalletInfo struct {
	SellerID         int64           `json:"seller_id"`
	Balance          decimal.Decimal `json:"balance"`
	TotalDepositPaid decimal.Decimal `json:"total_deposit_paid"`
	TotalProfit      decimal.Decimal `json:"total_profit"`
	TotalRecharged   decimal.Decimal `json:"total_recharged"`
}

// Movement 一次余额变动
type Movement struct {
	SellerID int64
	Amount   decimal.Decimal
	Type     string
	RefNo    string
	Remark   string
}

// GetWallet 获取钱包信息，不存在时创建空钱包
func (s *Service) GetWallet(ctx context.Context, sellerID int64) (*WalletInfo, error) {
	wallet, err := s.sellerRepo.GetWallet(ctx, sellerID)
	if err != nil {
		if !stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrDatabaseError.WithError(err)
		}
		if _, err := s.sellerRepo.GetByID(ctx, sellerID); err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return nil, errors.ErrSellerNotFound
			}
			return nil, errors.ErrDatabaseError.WithError(err)
		}
		if err := s.sellerRepo.CreateWallet(ctx, s.db, sellerID); err != nil {
			return nil, errors.ErrDatabaseError.WithError(err)
		}
		if wallet, err = s.sellerRepo.GetWallet(ctx, sellerID); err != nil {
			return nil, errors.ErrDatabaseError.WithError(err)
		}
	}

	return &WalletInfo{
		SellerID:         wallet.SellerID,
		Balance:          wallet.Balance,
		TotalDepositPaid: wallet.TotalDepositPaid,
		TotalProfit:      wallet.TotalProfit,
		TotalRecharged:   wallet.TotalRecharged,
	}, nil
}

// TransactionRecord 流水记录
type TransactionRecord struct {
	ID            int64           `json:"id"`
	Type          string          `json:"type"`
	TypeName      string          `json:"type_name"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	RefNo         *string         `json:"ref_no,omitempty"`
	Remark        *string         `json:"remark,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// GetTransactions 获取流水记录
func (s *Service) GetTransactions(ctx context.Context, sellerID int64, offset, limit int, txType string) ([]*TransactionRecord, int64, error) {
	filter := &repository.TransactionFilter{SellerID: &sellerID, Type: txType}
	rows, total, err := s.txRepo.List(ctx, filter, offset, limit)
	if err != nil {
		return nil, 0, errors.ErrDatabaseError.WithError(err)
	}

	records := make([]*TransactionRecord, len(rows))
	for i, row := range rows {
		records[i] = &TransactionRecord{
			ID:            row.ID,
			Type:          row.Type,
			TypeName:      typeName(row.Type),
			Amount:        row.Amount,
			BalanceBefore: row.BalanceBefore,
			BalanceAfter:  row.BalanceAfter,
			RefNo:         row.RefNo,
			Remark:        row.Remark,
			CreatedAt:     row.CreatedAt,
		}
	}
	return records, total, nil
}

func typeName(txType string) string {
	switch txType {
	case models.WalletTxTypeDepositPayment:
		return "押金支付"
	case models.WalletTxTypeProfitRelease:
		return "利润释放"
	case models.WalletTxTypeRecharge:
		return "充值"
	default:
		return "其他"
	}
}

// totalColumn 变动类型对应的累计字段
func totalColumn(txType string) string {
	switch txType {
	case models.WalletTxTypeDepositPayment:
		return "total_deposit_paid"
	case models.WalletTxTypeProfitRelease:
		return "total_profit"
	case models.WalletTxTypeRecharge:
		return "total_recharged"
	default:
		return ""
	}
}

// Recharge 充值
func (s *Service) Recharge(ctx context.Context, sellerID int64, amount decimal.Decimal, refNo string) (*models.WalletTransaction, error) {
	var result *models.WalletTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = s.CreditTx(ctx, tx, Movement{
			SellerID: sellerID,
			Amount:   amount,
			Type:     models.WalletTxTypeRecharge,
			RefNo:    refNo,
			Remark:   "余额充值",
		})
		return err
	})
	return result, err
}

// CreditTx 在已有事务中增加余额
func (s *Service) CreditTx(ctx context.Context, tx *gorm.DB, m Movement) (*models.WalletTransaction, error) {
	if !m.Amount.IsPositive() {
		return nil, errors.ErrInvalidAmount.WithMessage("入账金额必须大于0")
	}

	wallet, err := s.lockWallet(ctx, tx, m.SellerID)
	if err != nil {
		return nil, err
	}

	if err := s.sellerRepo.IncrementBalance(ctx, tx, m.SellerID, m.Amount, totalColumn(m.Type)); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	return s.record(ctx, tx, m, wallet.Balance, wallet.Balance.Add(m.Amount), m.Amount)
}

// DebitTx 在已有事务中扣减余额，余额不足返回 ErrBalanceInsufficient
func (s *Service) DebitTx(ctx context.Context, tx *gorm.DB, m Movement) (*models.WalletTransaction, error) {
	if !m.Amount.IsPositive() {
		return nil, errors.ErrInvalidAmount.WithMessage("扣款金额必须大于0")
	}

	wallet, err := s.lockWallet(ctx, tx, m.SellerID)
	if err != nil {
		return nil, err
	}
	if wallet.Balance.LessThan(m.Amount) {
		return nil, errors.ErrBalanceInsufficient
	}

	ok, err := s.sellerRepo.DecrementBalance(ctx, tx, m.SellerID, m.Amount, totalColumn(m.Type))
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if !ok {
		return nil, errors.ErrBalanceInsufficient
	}

	return s.record(ctx, tx, m, wallet.Balance, wallet.Balance.Sub(m.Amount), m.Amount.Neg())
}

func (s *Service) lockWallet(ctx context.Context, tx *gorm.DB, sellerID int64) (*models.SellerWallet, error) {
	wallet, err := s.sellerRepo.GetWalletForUpdate(ctx, tx, sellerID)
	if err == nil {
		return wallet, nil
	}
	if !stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if _, err := s.sellerRepo.GetByIDTx(ctx, tx, sellerID); err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrSellerNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if err := s.sellerRepo.CreateWallet(ctx, tx, sellerID); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	wallet, err = s.sellerRepo.GetWalletForUpdate(ctx, tx, sellerID)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return wallet, nil
}

func (s *Service) record(ctx context.Context, tx *gorm.DB, m Movement, before, after, signed decimal.Decimal) (*models.WalletTransaction, error) {
	row := &models.WalletTransaction{
		SellerID:      m.SellerID,
		Type:          m.Type,
		Amount:        signed,
		BalanceBefore: before,
		BalanceAfter:  after,
	}
	if m.RefNo != "" {
		row.RefNo = &m.RefNo
	}
	if m.Remark != "" {
		row.Remark = &m.Remark
	}
	if err := s.txRepo.CreateTx(ctx, tx, row); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return row, nil
}
