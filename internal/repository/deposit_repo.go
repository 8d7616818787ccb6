// Package repository 提供数据访问层
package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dumeirei/tkshop-backend/internal/models"
)

// DepositRepository 押金台账仓储
type DepositRepository struct {
	db *gorm.DB
}

// NewDepositRepository 创建押金台账仓储
func NewDepositRepository(db *gorm.DB) *DepositRepository {
	return &DepositRepository{db: db}
}

// Create 创建押金记录
func (r *DepositRepository) Create(ctx context.Context, entry *models.DepositLedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// GetByID 根据 ID 获取押金记录
func (r *DepositRepository) GetByID(ctx context.Context, id int64) (*models.DepositLedgerEntry, error) {
	var entry models.DepositLedgerEntry
	if err := r.db.WithContext(ctx).First(&entry, id).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// GetForUpdate 获取押金记录（加行锁）
func (r *DepositRepository) GetForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*models.DepositLedgerEntry, error) {
	var entry models.DepositLedgerEntry
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&entry, id).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// GetByIDsForUpdate 批量获取押金记录（加行锁），按 ID 升序加锁避免死锁
func (r *DepositRepository) GetByIDsForUpdate(ctx context.Context, tx *gorm.DB, ids []int64) ([]*models.DepositLedgerEntry, error) {
	var entries []*models.DepositLedgerEntry
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// GetByIDs 批量获取押金记录
func (r *DepositRepository) GetByIDs(ctx context.Context, ids []int64) ([]*models.DepositLedgerEntry, error) {
	var entries []*models.DepositLedgerEntry
	if len(ids) == 0 {
		return entries, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&entries).Error
	return entries, err
}

// ListBySeller 获取卖家押金记录列表
func (r *DepositRepository) ListBySeller(ctx context.Context, sellerID int64, offset, limit int, filters map[string]interface{}) ([]*models.DepositLedgerEntry, int64, error) {
	var entries []*models.DepositLedgerEntry
	var total int64

	query := r.db.WithContext(ctx).Model(&models.DepositLedgerEntry{}).Where("seller_id = ?", sellerID)

	if status, ok := filters["status"].(string); ok && status != "" {
		query = query.Where("status = ?", status)
	}
	if receiptID, ok := filters["receipt_id"].(int64); ok && receiptID > 0 {
		query = query.Where("receipt_id = ?", receiptID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Order("id DESC").Offset(offset).Limit(limit).Find(&entries).Error; err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

// PendingSummary 统计卖家待支付（sold）押金的条数与金额
func (r *DepositRepository) PendingSummary(ctx context.Context, sellerID int64) (int64, decimal.Decimal, error) {
	var row struct {
		Count int64
		Total decimal.Decimal
	}
	err := r.db.WithContext(ctx).Model(&models.DepositLedgerEntry{}).
		Select("COUNT(*) AS count, COALESCE(SUM(total_deposit_required), 0) AS total").
		Where("seller_id = ? AND status = ?", sellerID, models.DepositStatusSold).
		Scan(&row).Error
	if err != nil {
		return 0, decimal.Zero, err
	}
	return row.Count, row.Total, nil
}

// AttachReceiptTx sold -> receipt_submitted，返回是否变更
func (r *DepositRepository) AttachReceiptTx(ctx context.Context, tx *gorm.DB, id, receiptID int64, at time.Time) (bool, error) {
	result := tx.WithContext(ctx).Model(&models.DepositLedgerEntry{}).
		Where("id = ? AND status = ? AND receipt_id IS NULL", id, models.DepositStatusSold).
		Updates(map[string]interface{}{
			"status":       models.DepositStatusReceiptSubmitted,
			"receipt_id":   receiptID,
			"submitted_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// MarkPaidTx receipt_submitted -> deposit_paid，仅当记录仍挂在该凭证下时生效，返回是否变更
func (r *DepositRepository) MarkPaidTx(ctx context.Context, tx *gorm.DB, id, receiptID int64, at time.Time) (bool, error) {
	result := tx.WithContext(ctx).Model(&models.DepositLedgerEntry{}).
		Where("id = ? AND status = ? AND receipt_id = ?", id, models.DepositStatusReceiptSubmitted, receiptID).
		Updates(map[string]interface{}{
			"status":  models.DepositStatusPaid,
			"paid_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// MarkProfitReleasedTx 标记利润已释放，返回是否变更
func (r *DepositRepository) MarkProfitReleasedTx(ctx context.Context, tx *gorm.DB, id int64) (bool, error) {
	result := tx.WithContext(ctx).Model(&models.DepositLedgerEntry{}).
		Where("id = ? AND profit_released = ?", id, false).
		Update("profit_released", true)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ReleaseByReceiptTx 将凭证下 receipt_submitted 的记录退回 sold，返回影响行数
func (r *DepositRepository) ReleaseByReceiptTx(ctx context.Context, tx *gorm.DB, receiptID int64) (int64, error) {
	result := tx.WithContext(ctx).Model(&models.DepositLedgerEntry{}).
		Where("receipt_id = ? AND status = ?", receiptID, models.DepositStatusReceiptSubmitted).
		Updates(map[string]interface{}{
			"status":       models.DepositStatusSold,
			"receipt_id":   nil,
			"submitted_at": nil,
		})
	return result.RowsAffected, result.Error
}
