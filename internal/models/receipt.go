package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Receipt 押金支付凭证
// 一张凭证可覆盖多条押金记录（批量支付），明细见 ReceiptItem
type Receipt struct {
	ID               int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	ReceiptNo        string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"receipt_no"`
	SellerID         int64           `gorm:"index;not null" json:"seller_id"`
	Amount           decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	PaymentMethod    string          `gorm:"type:varchar(20);not null" json:"payment_method"`
	Status           string          `gorm:"type:varchar(20);index;not null;default:pending" json:"status"`
	IsBulkPayment    bool            `gorm:"not null;default:false" json:"is_bulk_payment"`
	ProofImageURL    *string         `gorm:"type:varchar(500)" json:"proof_image_url,omitempty"`
	ProofObjectKey   *string         `gorm:"type:varchar(255)" json:"-"`
	TxHash           *string         `gorm:"type:varchar(128)" json:"tx_hash,omitempty"`
	ReviewerID       *int64          `json:"reviewer_id,omitempty"`
	ReviewedAt       *time.Time      `json:"reviewed_at,omitempty"`
	RejectReason     *string         `gorm:"type:varchar(255)" json:"reject_reason,omitempty"`
	SettlementStatus string          `gorm:"type:varchar(20);not null;default:none" json:"settlement_status"`
	SettledAt        *time.Time      `json:"settled_at,omitempty"`
	ProcessedCount   int             `gorm:"not null;default:0" json:"processed_count"`
	SkippedCount     int             `gorm:"not null;default:0" json:"skipped_count"`
	CreatedAt        time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	// 关联
	Items []ReceiptItem `gorm:"foreignKey:ReceiptID" json:"items,omitempty"`
}

// TableName 表名
func (Receipt) TableName() string {
	return "receipts"
}

// ReceiptStatus 凭证状态，approved / rejected 为终态
const (
	ReceiptStatusPending  = "pending"  // 待审核
	ReceiptStatusApproved = "approved" // 已通过
	ReceiptStatusRejected = "rejected" // 已驳回
)

// PaymentMethod 支付方式
const (
	PaymentMethodWallet = "wallet" // 钱包余额
	PaymentMethodUSDT   = "usdt"   // USDT 转账
)

// SettlementStatus 结算状态
const (
	SettlementStatusNone      = "none"      // 未结算
	SettlementStatusCompleted = "completed" // 结算完成
	SettlementStatusPartial   = "partial"   // 部分记录结算失败，可重试
)

// IsTerminal 是否为终态
func (r *Receipt) IsTerminal() bool {
	return r.Status == ReceiptStatusApproved || r.Status == ReceiptStatusRejected
}

// DepositIDs 按提交顺序返回关联押金 ID
func (r *Receipt) DepositIDs() []int64 {
	ids := make([]int64, 0, len(r.Items))
	for _, item := range r.Items {
		ids = append(ids, item.DepositID)
	}
	return ids
}

// ReceiptItem 凭证明细，记录提交时每条押金的金额快照
type ReceiptItem struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	ReceiptID int64           `gorm:"uniqueIndex:idx_receipt_item_position;not null" json:"receipt_id"`
	Position  int             `gorm:"uniqueIndex:idx_receipt_item_position;not null" json:"position"`
	DepositID int64           `gorm:"index;not null" json:"deposit_id"`
	Amount    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 表名
func (ReceiptItem) TableName() string {
	return "receipt_items"
}
