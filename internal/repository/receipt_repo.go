// Package repository 提供数据访问层
package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/dumeirei/tkshop-backend/internal/common/database"
	"github.com/dumeirei/tkshop-backend/internal/models"
)

// ReceiptRepository 支付凭证仓储
type ReceiptRepository struct {
	db *gorm.DB
}

// NewReceiptRepository 创建支付凭证仓储
func NewReceiptRepository(db *gorm.DB) *ReceiptRepository {
	return &ReceiptRepository{db: db}
}

// CreateTx 在事务内创建凭证及明细
func (r *ReceiptRepository) CreateTx(ctx context.Context, tx *gorm.DB, receipt *models.Receipt) error {
	return tx.WithContext(ctx).Create(receipt).Error
}

// GetByID 根据 ID 获取凭证（包含明细）
func (r *ReceiptRepository) GetByID(ctx context.Context, id int64) (*models.Receipt, error) {
	return r.getByID(r.db.WithContext(ctx), id)
}

// GetByIDTx 在事务内获取凭证（包含明细）
func (r *ReceiptRepository) GetByIDTx(ctx context.Context, tx *gorm.DB, id int64) (*models.Receipt, error) {
	return r.getByID(tx.WithContext(ctx), id)
}

func (r *ReceiptRepository) getByID(db *gorm.DB, id int64) (*models.Receipt, error) {
	var receipt models.Receipt
	err := db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).First(&receipt, id).Error
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

// ReceiptFilter 凭证查询过滤条件
type ReceiptFilter struct {
	SellerID      *int64
	Status        string
	PaymentMethod string
	StartDate     *time.Time
	EndDate       *time.Time
}

// List 获取凭证列表（不含明细）
func (r *ReceiptRepository) List(ctx context.Context, filter *ReceiptFilter, offset, limit int) ([]*models.Receipt, int64, error) {
	var receipts []*models.Receipt
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Receipt{})

	if filter != nil {
		if filter.SellerID != nil {
			query = query.Where("seller_id = ?", *filter.SellerID)
		}
		if filter.Status != "" {
			query = query.Where("status = ?", filter.Status)
		}
		if filter.PaymentMethod != "" {
			query = query.Where("payment_method = ?", filter.PaymentMethod)
		}
		if filter.StartDate != nil {
			query = query.Where("created_at >= ?", *filter.StartDate)
		}
		if filter.EndDate != nil {
			query = query.Where("created_at <= ?", *filter.EndDate)
		}
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Scopes(database.OrderByCreatedDesc).
		Offset(offset).
		Limit(limit).
		Find(&receipts).Error
	if err != nil {
		return nil, 0, err
	}

	return receipts, total, nil
}

// UpdateStatusCAS 按期望状态更新凭证状态，返回是否变更
func (r *ReceiptRepository) UpdateStatusCAS(ctx context.Context, tx *gorm.DB, id int64, from, to string, fields map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{"status": to}
	for k, v := range fields {
		updates[k] = v
	}
	result := tx.WithContext(ctx).Model(&models.Receipt{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// UpdateSettlement 写入结算结果
func (r *ReceiptRepository) UpdateSettlement(ctx context.Context, id int64, status string, processed, skipped int, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Receipt{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"settlement_status": status,
			"processed_count":   processed,
			"skipped_count":     skipped,
			"settled_at":        at,
		}).Error
}

// ListApprovedWithOpenEntries 已通过但仍有 receipt_submitted 押金的凭证 ID
func (r *ReceiptRepository) ListApprovedWithOpenEntries(ctx context.Context, tx *gorm.DB) ([]int64, error) {
	var ids []int64
	err := tx.WithContext(ctx).Model(&models.Receipt{}).
		Distinct("receipts.id").
		Joins("JOIN deposit_ledger ON deposit_ledger.receipt_id = receipts.id").
		Where("receipts.status = ? AND deposit_ledger.status = ?", models.ReceiptStatusApproved, models.DepositStatusReceiptSubmitted).
		Order("receipts.id ASC").
		Pluck("receipts.id", &ids).Error
	return ids, err
}

// CountByStatus 按状态统计凭证数量
func (r *ReceiptRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Receipt{}).Where("status = ?", status).Count(&count).Error
	return count, err
}
