// Package repository 提供数据访问层
package repository

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dumeirei/tkshop-backend/internal/models"
)

// CommissionRepository 佣金仓储
type CommissionRepository struct {
	db *gorm.DB
}

// NewCommissionRepository 创建佣金仓储
func NewCommissionRepository(db *gorm.DB) *CommissionRepository {
	return &CommissionRepository{db: db}
}

// CreateRecordTx 写入佣金明细，同一押金重复写入时返回 false
func (r *CommissionRepository) CreateRecordTx(ctx context.Context, tx *gorm.DB, record *models.CommissionRecord) (bool, error) {
	result := tx.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "deposit_id"}}, DoNothing: true}).
		Create(record)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// AddToLedgerTx 累加管理员佣金汇总，不存在时创建
func (r *CommissionRepository) AddToLedgerTx(ctx context.Context, tx *gorm.DB, adminID int64, amount decimal.Decimal) error {
	ledger := &models.CommissionLedger{
		AdminID:         adminID,
		TotalCommission: amount,
		SettledCount:    1,
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "admin_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"total_commission": gorm.Expr("commission_ledger.total_commission + ?", amount),
			"settled_count":    gorm.Expr("commission_ledger.settled_count + 1"),
			"updated_at":       gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(ledger).Error
}

// GetLedger 获取管理员佣金汇总
func (r *CommissionRepository) GetLedger(ctx context.Context, adminID int64) (*models.CommissionLedger, error) {
	var ledger models.CommissionLedger
	err := r.db.WithContext(ctx).Where("admin_id = ?", adminID).First(&ledger).Error
	if err != nil {
		return nil, err
	}
	return &ledger, nil
}

// CountRecords 统计管理员佣金明细条数
func (r *CommissionRepository) CountRecords(ctx context.Context, adminID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.CommissionRecord{}).Where("admin_id = ?", adminID).Count(&count).Error
	return count, err
}

// ListRecords 获取佣金明细列表
func (r *CommissionRepository) ListRecords(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.CommissionRecord, int64, error) {
	var records []*models.CommissionRecord
	var total int64

	query := r.db.WithContext(ctx).Model(&models.CommissionRecord{})

	if adminID, ok := filters["admin_id"].(int64); ok && adminID > 0 {
		query = query.Where("admin_id = ?", adminID)
	}
	if sellerID, ok := filters["seller_id"].(int64); ok && sellerID > 0 {
		query = query.Where("seller_id = ?", sellerID)
	}
	if receiptID, ok := filters["receipt_id"].(int64); ok && receiptID > 0 {
		query = query.Where("receipt_id = ?", receiptID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Order("id DESC").Offset(offset).Limit(limit).Find(&records).Error; err != nil {
		return nil, 0, err
	}

	return records, total, nil
}
