package migration

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dumeirei/tkshop-backend/internal/common/logger"
	"github.com/dumeirei/tkshop-backend/internal/models"
	"github.com/dumeirei/tkshop-backend/internal/repository"
	"github.com/dumeirei/tkshop-backend/internal/service/settlement"
)

// Settler 重新结算凭证
type Settler interface {
	Settle(ctx context.Context, receiptID int64) (*settlement.Result, error)
}

// Builtin 内置数据迁移
func Builtin(receiptRepo *repository.ReceiptRepository, settler Settler) []Migration {
	return []Migration{
		{
			Version: "0001",
			Name:    "recompute_deposit_by_quantity_sold",
			Up:      recomputeDepositByQuantitySold,
		},
		{
			Version: "0002",
			Name:    "recompute_pending_profit",
			Up:      recomputePendingProfit,
		},
		{
			Version: "0003",
			Name:    "promote_sold_pending_entries",
			Up:      promoteSoldPendingEntries,
		},
		{
			Version: "0004",
			Name:    "release_orphaned_submissions",
			Up:      releaseOrphanedSubmissions,
		},
		flagPartialBulkSettlements(receiptRepo, settler),
	}
}

const depositExpr = "ROUND(original_cost_per_unit * quantity_sold, 2)"

// 未支付押金按售出数量重算应付押金
func recomputeDepositByQuantitySold(ctx context.Context, tx *gorm.DB, _ bool) (int64, error) {
	result := tx.WithContext(ctx).Model(&models.DepositLedgerEntry{}).
		Where("status <> ?", models.DepositStatusPaid).
		Where("ROUND(total_deposit_required, 2) <> " + depositExpr).
		Update("total_deposit_required", gorm.Expr(depositExpr))
	return result.RowsAffected, result.Error
}

const profitExpr = "ROUND((listing_price - original_cost_per_unit) * quantity_sold, 2)"

// 未释放利润的押金重算待释放利润
func recomputePendingProfit(ctx context.Context, tx *gorm.DB, _ bool) (int64, error) {
	result := tx.WithContext(ctx).Model(&models.DepositLedgerEntry{}).
		Where("profit_released = ? AND status <> ?", false, models.DepositStatusPaid).
		Where("ROUND(pending_profit_amount, 2) <> " + profitExpr).
		Update("pending_profit_amount", gorm.Expr(profitExpr))
	return result.RowsAffected, result.Error
}

func promoteSoldPendingEntries(ctx context.Context, tx *gorm.DB, _ bool) (int64, error) {
	result := tx.WithContext(ctx).Model(&models.DepositLedgerEntry{}).
		Where("status = ? AND quantity_sold > 0", models.DepositStatusPending).
		Update("status", models.DepositStatusSold)
	return result.RowsAffected, result.Error
}

// 凭证已驳回或不存在的已提交押金退回待支付
func releaseOrphanedSubmissions(ctx context.Context, tx *gorm.DB, _ bool) (int64, error) {
	live := tx.Model(&models.Receipt{}).
		Select("1").
		Where("receipts.id = deposit_ledger.receipt_id AND receipts.status <> ?", models.ReceiptStatusRejected)

	result := tx.WithContext(ctx).Model(&models.DepositLedgerEntry{}).
		Where("status = ?", models.DepositStatusReceiptSubmitted).
		Where("receipt_id IS NULL OR NOT EXISTS (?)", live).
		Updates(map[string]interface{}{
			"status":       models.DepositStatusSold,
			"receipt_id":   nil,
			"submitted_at": nil,
		})
	return result.RowsAffected, result.Error
}

// 已通过但仍有未结算押金的凭证标记为部分结算，提交后重新结算
func flagPartialBulkSettlements(receiptRepo *repository.ReceiptRepository, settler Settler) Migration {
	return Migration{
		Version: "0005",
		Name:    "flag_partial_bulk_settlements",
		Up: func(ctx context.Context, tx *gorm.DB, _ bool) (int64, error) {
			ids, err := receiptRepo.ListApprovedWithOpenEntries(ctx, tx)
			if err != nil || len(ids) == 0 {
				return 0, err
			}
			result := tx.WithContext(ctx).Model(&models.Receipt{}).
				Where("id IN ?", ids).
				Update("settlement_status", models.SettlementStatusPartial)
			return result.RowsAffected, result.Error
		},
		AfterCommit: func(ctx context.Context, db *gorm.DB) error {
			if settler == nil {
				return nil
			}
			ids, err := receiptRepo.ListApprovedWithOpenEntries(ctx, db)
			if err != nil {
				return err
			}
			for _, id := range ids {
				result, err := settler.Settle(ctx, id)
				if err != nil {
					logger.Warn("resettle receipt failed", logger.ReceiptID(id), zap.Error(err))
					continue
				}
				logger.Info("receipt resettled",
					logger.ReceiptID(id),
					zap.Int("processed", result.Processed),
					zap.String("status", result.Status),
				)
			}
			return nil
		},
	}
}
