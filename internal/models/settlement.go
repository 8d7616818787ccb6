package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SettlementEvent 结算事件发件箱
// 与押金状态变更在同一事务写入，提交后再投递给佣金累计与 MQTT
type SettlementEvent struct {
	ID           int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	DepositID    int64           `gorm:"uniqueIndex;not null" json:"deposit_id"`
	ReceiptID    int64           `gorm:"index;not null" json:"receipt_id"`
	SellerID     int64           `gorm:"index;not null" json:"seller_id"`
	Profit       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"profit"`
	Dispatched   bool            `gorm:"index;not null;default:false" json:"dispatched"`
	DispatchedAt *time.Time      `json:"dispatched_at,omitempty"`
	Attempts     int             `gorm:"not null;default:0" json:"attempts"`
	LastError    *string         `gorm:"type:varchar(500)" json:"last_error,omitempty"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (SettlementEvent) TableName() string {
	return "settlement_events"
}

// DataMigration 已执行的数据迁移
type DataMigration struct {
	Version      string    `gorm:"type:varchar(64);primaryKey" json:"version"`
	Name         string    `gorm:"type:varchar(200);not null" json:"name"`
	AffectedRows int64     `gorm:"not null;default:0" json:"affected_rows"`
	AppliedAt    time.Time `gorm:"not null" json:"applied_at"`
}

// TableName 表名
func (DataMigration) TableName() string {
	return "data_migrations"
}
