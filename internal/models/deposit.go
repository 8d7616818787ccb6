package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DepositLedgerEntry 押金台账
// 每笔销售生成一条，记录卖家应付押金与待释放利润
type DepositLedgerEntry struct {
	ID                   int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	DepositNo            string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"deposit_no"`
	SellerID             int64           `gorm:"index:idx_deposit_seller_status;not null" json:"seller_id"`
	OrderNo              string          `gorm:"type:varchar(64);index;not null" json:"order_no"`
	ProductName          string          `gorm:"type:varchar(200);not null" json:"product_name"`
	OriginalCostPerUnit  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"original_cost_per_unit"`
	ListingPrice         decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"listing_price"`
	SalePrice            decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"sale_price"`
	QuantityListed       int             `gorm:"not null;default:0" json:"quantity_listed"`
	QuantitySold         int             `gorm:"not null;default:0" json:"quantity_sold"`
	TotalDepositRequired decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total_deposit_required"`
	PendingProfitAmount  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"pending_profit_amount"`
	Status               string          `gorm:"type:varchar(20);index:idx_deposit_seller_status;not null;default:pending" json:"status"`
	ReceiptID            *int64          `gorm:"index" json:"receipt_id,omitempty"`
	ProfitReleased       bool            `gorm:"not null;default:false" json:"profit_released"`
	SubmittedAt          *time.Time      `json:"submitted_at,omitempty"`
	PaidAt               *time.Time      `json:"paid_at,omitempty"`
	CreatedAt            time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (DepositLedgerEntry) TableName() string {
	return "deposit_ledger"
}

// DepositStatus 押金状态
// pending -> sold -> receipt_submitted -> deposit_paid
// 凭证驳回时 receipt_submitted -> sold
const (
	DepositStatusPending          = "pending"           // 已上架未售出
	DepositStatusSold             = "sold"              // 已售出，待支付押金
	DepositStatusReceiptSubmitted = "receipt_submitted" // 已提交支付凭证
	DepositStatusPaid             = "deposit_paid"      // 押金已支付（终态）
)

// IsPaid 押金是否已支付
func (e *DepositLedgerEntry) IsPaid() bool {
	return e.Status == DepositStatusPaid
}

// Payable 是否可以提交支付凭证
func (e *DepositLedgerEntry) Payable() bool {
	return e.Status == DepositStatusSold
}
