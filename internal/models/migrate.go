package models

import "gorm.io/gorm"

// All 返回需要建表的全部模型
func All() []interface{} {
	return []interface{}{
		&Admin{},
		&OperationLog{},
		&Seller{},
		&SellerWallet{},
		&WalletTransaction{},
		&DepositLedgerEntry{},
		&Receipt{},
		&ReceiptItem{},
		&CommissionLedger{},
		&CommissionRecord{},
		&SettlementEvent{},
		&DataMigration{},
	}
}

// AutoMigrate 自动建表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(All()...)
}
