package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CommissionLedger 管理员佣金汇总，每个管理员一行
type CommissionLedger struct {
	ID              int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	AdminID         int64           `gorm:"uniqueIndex;not null" json:"admin_id"`
	TotalCommission decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total_commission"`
	SettledCount    int64           `gorm:"not null;default:0" json:"settled_count"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (CommissionLedger) TableName() string {
	return "commission_ledger"
}

// CommissionRecord 佣金明细，每条已结算押金最多一条
type CommissionRecord struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	AdminID   int64           `gorm:"index;not null" json:"admin_id"`
	SellerID  int64           `gorm:"index;not null" json:"seller_id"`
	DepositID int64           `gorm:"uniqueIndex;not null" json:"deposit_id"`
	ReceiptID int64           `gorm:"index;not null" json:"receipt_id"`
	Profit    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"profit"`
	Rate      decimal.Decimal `gorm:"type:decimal(5,4);not null" json:"rate"`
	Amount    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	CreatedAt time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

// TableName 表名
func (CommissionRecord) TableName() string {
	return "commission_records"
}
