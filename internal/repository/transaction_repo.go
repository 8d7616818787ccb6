// Package repository 提供数据访问层
package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/dumeirei/tkshop-backend/internal/common/database"
	"github.com/dumeirei/tkshop-backend/internal/models"
)

// TransactionRepository 钱包流水仓储
type TransactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository 创建钱包流水仓储
func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// CreateTx 在事务内写入流水
func (r *TransactionRepository) CreateTx(ctx context.Context, tx *gorm.DB, transaction *models.WalletTransaction) error {
	return tx.WithContext(ctx).Create(transaction).Error
}

// TransactionFilter 流水查询过滤条件
type TransactionFilter struct {
	SellerID  *int64
	Type      string
	RefNo     string
	StartDate *time.Time
	EndDate   *time.Time
}

// List 获取流水列表
func (r *TransactionRepository) List(ctx context.Context, filter *TransactionFilter, offset, limit int) ([]*models.WalletTransaction, int64, error) {
	var transactions []*models.WalletTransaction
	var total int64

	query := r.db.WithContext(ctx).Model(&models.WalletTransaction{})

	if filter != nil {
		if filter.SellerID != nil {
			query = query.Where("seller_id = ?", *filter.SellerID)
		}
		if filter.Type != "" {
			query = query.Where("type = ?", filter.Type)
		}
		if filter.RefNo != "" {
			query = query.Where("ref_no = ?", filter.RefNo)
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
		Find(&transactions).Error
	if err != nil {
		return nil, 0, err
	}

	return transactions, total, nil
}

// ListBySeller 获取卖家流水列表
func (r *TransactionRepository) ListBySeller(ctx context.Context, sellerID int64, offset, limit int) ([]*models.WalletTransaction, int64, error) {
	return r.List(ctx, &TransactionFilter{SellerID: &sellerID}, offset, limit)
}

