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

// SellerRepository 卖家仓储
type SellerRepository struct {
	db *gorm.DB
}

// NewSellerRepository 创建卖家仓储
func NewSellerRepository(db *gorm.DB) *SellerRepository {
	return &SellerRepository{db: db}
}

// Create 创建卖家
func (r *SellerRepository) Create(ctx context.Context, seller *models.Seller) error {
	return r.db.WithContext(ctx).Create(seller).Error
}

// GetByID 根据 ID 获取卖家
func (r *SellerRepository) GetByID(ctx context.Context, id int64) (*models.Seller, error) {
	var seller models.Seller
	err := r.db.WithContext(ctx).First(&seller, id).Error
	if err != nil {
		return nil, err
	}
	return &seller, nil
}

// GetByIDTx 在事务内获取卖家
func (r *SellerRepository) GetByIDTx(ctx context.Context, tx *gorm.DB, id int64) (*models.Seller, error) {
	var seller models.Seller
	if err := tx.WithContext(ctx).First(&seller, id).Error; err != nil {
		return nil, err
	}
	return &seller, nil
}

// GetByIDWithWallet 根据 ID 获取卖家（包含钱包）
func (r *SellerRepository) GetByIDWithWallet(ctx context.Context, id int64) (*models.Seller, error) {
	var seller models.Seller
	err := r.db.WithContext(ctx).Preload("Wallet").First(&seller, id).Error
	if err != nil {
		return nil, err
	}
	return &seller, nil
}

// GetByPhone 根据手机号获取卖家
func (r *SellerRepository) GetByPhone(ctx context.Context, phone string) (*models.Seller, error) {
	var seller models.Seller
	err := r.db.WithContext(ctx).Where("phone = ?", phone).First(&seller).Error
	if err != nil {
		return nil, err
	}
	return &seller, nil
}

// UpdateLoginAt 更新最后登录时间
func (r *SellerRepository) UpdateLoginAt(ctx context.Context, id int64, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Seller{}).Where("id = ?", id).Update("last_login_at", at).Error
}

// GetWallet 获取卖家钱包
func (r *SellerRepository) GetWallet(ctx context.Context, sellerID int64) (*models.SellerWallet, error) {
	var wallet models.SellerWallet
	err := r.db.WithContext(ctx).Where("seller_id = ?", sellerID).First(&wallet).Error
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// CreateWallet 创建钱包，已存在时不报错
func (r *SellerRepository) CreateWallet(ctx context.Context, tx *gorm.DB, sellerID int64) error {
	wallet := &models.SellerWallet{SellerID: sellerID}
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "seller_id"}}, DoNothing: true}).
		Create(wallet).Error
}

// GetWalletForUpdate 获取卖家钱包（加行锁）
func (r *SellerRepository) GetWalletForUpdate(ctx context.Context, tx *gorm.DB, sellerID int64) (*models.SellerWallet, error) {
	var wallet models.SellerWallet
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("seller_id = ?", sellerID).
		First(&wallet).Error
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// IncrementBalance 增加余额及对应累计字段
func (r *SellerRepository) IncrementBalance(ctx context.Context, tx *gorm.DB, sellerID int64, amount decimal.Decimal, totalColumn string) error {
	updates := map[string]interface{}{
		"balance": gorm.Expr("balance + ?", amount),
		"version": gorm.Expr("version + 1"),
	}
	if totalColumn != "" {
		updates[totalColumn] = gorm.Expr(totalColumn+" + ?", amount)
	}
	result := tx.WithContext(ctx).Model(&models.SellerWallet{}).
		Where("seller_id = ?", sellerID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DecrementBalance 扣减余额，余额不足时不更新并返回 false
func (r *SellerRepository) DecrementBalance(ctx context.Context, tx *gorm.DB, sellerID int64, amount decimal.Decimal, totalColumn string) (bool, error) {
	updates := map[string]interface{}{
		"balance": gorm.Expr("balance - ?", amount),
		"version": gorm.Expr("version + 1"),
	}
	if totalColumn != "" {
		updates[totalColumn] = gorm.Expr(totalColumn+" + ?", amount)
	}
	result := tx.WithContext(ctx).Model(&models.SellerWallet{}).
		Where("seller_id = ? AND balance >= ?", sellerID, amount).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
