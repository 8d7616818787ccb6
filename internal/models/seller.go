// Package models 定义数据模型
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Seller 卖家模型
type Seller struct {
	ID              int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	ShopName        string     `gorm:"type:varchar(100);not null" json:"shop_name"`
	Phone           string     `gorm:"type:varchar(20);uniqueIndex;not null" json:"phone"`
	PasswordHash    string     `gorm:"type:varchar(255);not null" json:"-"`
	ReferrerAdminID *int64     `gorm:"index" json:"referrer_admin_id,omitempty"`
	Status          int8       `gorm:"type:smallint;not null;default:1" json:"status"`
	LastLoginAt     *time.Time `json:"last_login_at,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	// 关联
	Wallet *SellerWallet `gorm:"foreignKey:SellerID" json:"wallet,omitempty"`
}

// TableName 表名
func (Seller) TableName() string {
	return "sellers"
}

// SellerStatus 卖家状态
const (
	SellerStatusDisabled = 0 // 禁用
	SellerStatusActive   = 1 // 正常
)

// SellerWallet 卖家钱包
type SellerWallet struct {
	ID               int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	SellerID         int64           `gorm:"uniqueIndex;not null" json:"seller_id"`
	Balance          decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"balance"`
	TotalDepositPaid decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total_deposit_paid"`
	TotalProfit      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total_profit"`
	TotalRecharged   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total_recharged"`
	Version          int             `gorm:"not null;default:0" json:"-"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (SellerWallet) TableName() string {
	return "seller_wallets"
}

// WalletTransaction 钱包流水，只追加不修改
type WalletTransaction struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	SellerID      int64           `gorm:"index;not null" json:"seller_id"`
	Type          string          `gorm:"type:varchar(20);not null" json:"type"`
	Amount        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	BalanceBefore decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"balance_before"`
	BalanceAfter  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"balance_after"`
	RefNo         *string         `gorm:"type:varchar(64);index" json:"ref_no,omitempty"`
	Remark        *string         `gorm:"type:varchar(255)" json:"remark,omitempty"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 表名
func (WalletTransaction) TableName() string {
	return "wallet_transactions"
}

// WalletTransactionType 钱包交易类型
const (
	WalletTxTypeDepositPayment = "deposit_payment" // 钱包支付押金
	WalletTxTypeProfitRelease  = "profit_release"  // 结算释放利润
	WalletTxTypeRecharge       = "recharge"        // 充值
)

// JSON 自定义 JSON 类型
type JSON map[string]interface{}

// Scan 实现 sql.Scanner 接口
func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("models: unsupported JSON source %T", value)
	}
	if len(data) == 0 {
		*j = nil
		return nil
	}
	return json.Unmarshal(data, j)
}

// Value 实现 driver.Valuer 接口
func (j JSON) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	b, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
