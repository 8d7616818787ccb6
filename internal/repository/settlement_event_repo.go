// Package repository 提供数据访问层
package repository

import (
	"context"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dumeirei/tkshop-backend/internal/models"
)

// last_error 保留的最大字符数
const maxLastErrorRunes = 500

// SettlementEventRepository 结算事件发件箱仓储
type SettlementEventRepository struct {
	db *gorm.DB
}

// NewSettlementEventRepository 创建结算事件仓储
func NewSettlementEventRepository(db *gorm.DB) *SettlementEventRepository {
	return &SettlementEventRepository{db: db}
}

// CreateTx 在事务内写入事件，同一押金只保留一条
func (r *SettlementEventRepository) CreateTx(ctx context.Context, tx *gorm.DB, event *models.SettlementEvent) error {
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "deposit_id"}}, DoNothing: true}).
		Create(event).Error
}

// GetByDepositID 根据押金 ID 获取事件
func (r *SettlementEventRepository) GetByDepositID(ctx context.Context, depositID int64) (*models.SettlementEvent, error) {
	var event models.SettlementEvent
	err := r.db.WithContext(ctx).Where("deposit_id = ?", depositID).First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// ListPending 获取未投递事件，按写入顺序
func (r *SettlementEventRepository) ListPending(ctx context.Context, limit int) ([]*models.SettlementEvent, error) {
	var events []*models.SettlementEvent
	err := r.db.WithContext(ctx).
		Where("dispatched = ?", false).
		Order("id ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// MarkDispatched 标记事件已投递
func (r *SettlementEventRepository) MarkDispatched(ctx context.Context, id int64, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.SettlementEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"dispatched":    true,
			"dispatched_at": at,
			"attempts":      gorm.Expr("attempts + 1"),
			"last_error":    nil,
		}).Error
}

// MarkFailed 记录投递失败
func (r *SettlementEventRepository) MarkFailed(ctx context.Context, id int64, cause string) error {
	if utf8.RuneCountInString(cause) > maxLastErrorRunes {
		cause = string([]rune(cause)[:maxLastErrorRunes])
	}
	return r.db.WithContext(ctx).Model(&models.SettlementEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": cause,
		}).Error
}

// CountPending 统计未投递事件
func (r *SettlementEventRepository) CountPending(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.SettlementEvent{}).Where("dispatched = ?", false).Count(&count).Error
	return count, err
}
