// Package deposit 提供押金台账服务
package deposit

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dumeirei/tkshop-backend/internal/common/errors"
	"github.com/dumeirei/tkshop-backend/internal/common/logger"
	"github.com/dumeirei/tkshop-backend/internal/common/utils"
	"github.com/dumeirei/tkshop-backend/internal/models"
	"github.com/dumeirei/tkshop-backend/internal/repository"
)

// Service 押金台账服务
type Service struct {
	db          *gorm.DB
	depositRepo *repository.DepositRepository
	sellerRepo  *repository.SellerRepository
}

// NewService 创建押金台账服务
func NewService(db *gorm.DB, depositRepo *repository.DepositRepository, sellerRepo *repository.SellerRepository) *Service {
	return &Service{
		db:          db,
		depositRepo: depositRepo,
		sellerRepo:  sellerRepo,
	}
}

// Sale 一笔售出记录
type Sale struct {
	SellerID            int64            `json:"seller_id" binding:"required"`
	OrderNo             string           `json:"order_no" binding:"required"`
	ProductName         string           `json:"product_name" binding:"required"`
	OriginalCostPerUnit *decimal.Decimal `json:"original_cost_per_unit"`
	ListingPrice        *decimal.Decimal `json:"listing_price"`
	SalePrice           *decimal.Decimal `json:"sale_price"`
	QuantityListed      int              `json:"quantity_listed"`
	QuantitySold        int              `json:"quantity_sold"`
}

// Validate 校验售出数据
func (s *Sale) Validate() error {
	if s.OriginalCostPerUnit == nil || !s.OriginalCostPerUnit.IsPositive() {
		return errors.ErrInvalidSale.WithMessage("缺少成本价")
	}
	if s.QuantitySold < 1 {
		return errors.ErrInvalidSale.WithMessage("售出数量必须大于0")
	}
	if s.QuantitySold > s.QuantityListed {
		return errors.ErrInvalidSale.WithMessage("售出数量不能超过上架数量")
	}
	if s.ListingPrice == nil {
		return errors.ErrInvalidSale.WithMessage("缺少上架价格")
	}
	if s.ListingPrice.LessThan(*s.OriginalCostPerUnit) {
		return errors.ErrInvalidSale.WithMessage("上架价格不能低于成本价")
	}
	if s.SalePrice != nil && s.SalePrice.IsNegative() {
		return errors.ErrInvalidSale.WithMessage("成交价格无效")
	}
	return nil
}

// DepositRequired 押金 = 成本价 × 售出数量
func DepositRequired(cost decimal.Decimal, quantitySold int) decimal.Decimal {
	return cost.Mul(decimal.NewFromInt(int64(quantitySold))).Round(2)
}

// PendingProfit 待释放利润 = (上架价 - 成本价) × 售出数量
func PendingProfit(listingPrice, cost decimal.Decimal, quantitySold int) decimal.Decimal {
	return listingPrice.Sub(cost).Mul(decimal.NewFromInt(int64(quantitySold))).Round(2)
}

// CreateEntry 根据售出记录创建押金台账，状态为 sold
func (s *Service) CreateEntry(ctx context.Context, sale *Sale) (*models.DepositLedgerEntry, error) {
	if err := sale.Validate(); err != nil {
		return nil, err
	}

	seller, err := s.sellerRepo.GetByID(ctx, sale.SellerID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrSellerNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if seller.Status != models.SellerStatusActive {
		return nil, errors.ErrSellerDisabled
	}

	salePrice := *sale.ListingPrice
	if sale.SalePrice != nil {
		salePrice = *sale.SalePrice
	}

	entry := &models.DepositLedgerEntry{
		DepositNo:            utils.GenerateOrderNo(utils.NoPrefixDeposit),
		SellerID:             sale.SellerID,
		OrderNo:              sale.OrderNo,
		ProductName:          sale.ProductName,
		OriginalCostPerUnit:  *sale.OriginalCostPerUnit,
		ListingPrice:         *sale.ListingPrice,
		SalePrice:            salePrice,
		QuantityListed:       sale.QuantityListed,
		QuantitySold:         sale.QuantitySold,
		TotalDepositRequired: DepositRequired(*sale.OriginalCostPerUnit, sale.QuantitySold),
		PendingProfitAmount:  PendingProfit(*sale.ListingPrice, *sale.OriginalCostPerUnit, sale.QuantitySold),
		Status:               models.DepositStatusSold,
	}
	if err := s.depositRepo.Create(ctx, entry); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	logger.Info("deposit entry created",
		logger.SellerID(entry.SellerID),
		logger.DepositNo(entry.DepositNo),
		logger.Amount("deposit", entry.TotalDepositRequired),
		logger.Amount("profit", entry.PendingProfitAmount),
	)
	return entry, nil
}

// Get 获取押金记录
func (s *Service) Get(ctx context.Context, id int64) (*models.DepositLedgerEntry, error) {
	entry, err := s.depositRepo.GetByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrDepositNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return entry, nil
}

// GetForSeller 获取卖家自己的押金记录
func (s *Service) GetForSeller(ctx context.Context, sellerID, id int64) (*models.DepositLedgerEntry, error) {
	entry, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry.SellerID != sellerID {
		return nil, errors.ErrDepositNotFound
	}
	return entry, nil
}

// ListBySeller 获取卖家押金列表
func (s *Service) ListBySeller(ctx context.Context, sellerID int64, status string, page utils.Pagination) ([]*models.DepositLedgerEntry, int64, error) {
	page.Normalize()
	filters := map[string]interface{}{}
	if status != "" {
		filters["status"] = status
	}
	list, total, err := s.depositRepo.ListBySeller(ctx, sellerID, page.GetOffset(), page.GetLimit(), filters)
	if err != nil {
		return nil, 0, errors.ErrDatabaseError.WithError(err)
	}
	return list, total, nil
}

// PendingSummary 待支付押金汇总
type PendingSummary struct {
	Count       int64           `json:"count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// GetPendingSummary 获取卖家待支付押金汇总
func (s *Service) GetPendingSummary(ctx context.Context, sellerID int64) (*PendingSummary, error) {
	count, total, err := s.depositRepo.PendingSummary(ctx, sellerID)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return &PendingSummary{Count: count, TotalAmount: total}, nil
}

// AttachReceiptTx sold -> receipt_submitted，记录不处于 sold 时返回 ErrAlreadySettled
func (s *Service) AttachReceiptTx(ctx context.Context, tx *gorm.DB, entryID, receiptID int64) error {
	changed, err := s.depositRepo.AttachReceiptTx(ctx, tx, entryID, receiptID, time.Now())
	if err != nil {
		return errors.ErrDatabaseError.WithError(err)
	}
	if !changed {
		return errors.ErrAlreadySettled
	}
	return nil
}

// MarkPaidTx receipt_submitted -> deposit_paid
// 已支付的记录视为成功但返回 changed=false，调用方据此避免重复释放利润
func (s *Service) MarkPaidTx(ctx context.Context, tx *gorm.DB, entryID, receiptID int64) (bool, error) {
	changed, err := s.depositRepo.MarkPaidTx(ctx, tx, entryID, receiptID, time.Now())
	if err != nil {
		return false, errors.ErrDatabaseError.WithError(err)
	}
	if changed {
		return true, nil
	}

	entry, err := s.depositRepo.GetForUpdate(ctx, tx, entryID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return false, errors.ErrDepositNotFound
		}
		return false, errors.ErrDatabaseError.WithError(err)
	}
	if entry.IsPaid() {
		return false, nil
	}
	return false, errors.ErrReceiptStatus.WithMessage("押金记录不处于待确认状态")
}

// ReleaseTx 将凭证下已提交的押金退回 sold
func (s *Service) ReleaseTx(ctx context.Context, tx *gorm.DB, receiptID int64) (int64, error) {
	released, err := s.depositRepo.ReleaseByReceiptTx(ctx, tx, receiptID)
	if err != nil {
		return 0, errors.ErrDatabaseError.WithError(err)
	}
	if released > 0 {
		logger.Info("deposit entries released", logger.ReceiptID(receiptID), zap.Int64("released", released))
	}
	return released, nil
}

// MarkPaid 独立事务版本
func (s *Service) MarkPaid(ctx context.Context, entryID, receiptID int64) (bool, error) {
	var changed bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		changed, err = s.MarkPaidTx(ctx, tx, entryID, receiptID)
		return err
	})
	return changed, err
}
