// Package settlement 押金结算引擎
// 凭证审核通过后逐条确认押金、释放利润，并通过发件箱投递结算事件
package settlement

import (
	"context"
	stderrors "errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dumeirei/tkshop-backend/internal/common/cache"
	"github.com/dumeirei/tkshop-backend/internal/common/errors"
	"github.com/dumeirei/tkshop-backend/internal/common/logger"
	"github.com/dumeirei/tkshop-backend/internal/common/metrics"
	"github.com/dumeirei/tkshop-backend/internal/common/tracing"
	"github.com/dumeirei/tkshop-backend/internal/models"
	"github.com/dumeirei/tkshop-backend/internal/repository"
	"github.com/dumeirei/tkshop-backend/internal/service/deposit"
	"github.com/dumeirei/tkshop-backend/internal/service/wallet"
)

// 跳过原因
const (
	SkipNotFound        = "not_found"
	SkipInvalidState    = "invalid_state"
	SkipReceiptMismatch = "receipt_mismatch"
)

// 单条押金结算结果
const (
	outcomeProcessed      = "processed"
	outcomeSkipped        = "skipped"
	outcomeAlreadySettled = "already_settled"
	outcomeFailed         = "failed"
)

const (
	defaultLockTTL      = 30 * time.Second
	defaultEntryTimeout = 10 * time.Second
)

// Skip 被跳过的押金
type Skip struct {
	DepositID int64  `json:"deposit_id"`
	Reason    string `json:"reason"`
}

// Failure 结算失败的押金
type Failure struct {
	DepositID int64  `json:"deposit_id"`
	Error     string `json:"error"`
}

// StatusInProgress 结算由其他请求执行中，仅出现在接口返回中
const StatusInProgress = "in_progress"

// Result 一次结算的汇总
type Result struct {
	ReceiptID      int64           `json:"receipt_id"`
	Status         string          `json:"settlement_status"`
	Processed      int             `json:"processed"`
	Skipped        int             `json:"skipped"`
	AlreadySettled int             `json:"already_settled"`
	Failed         int             `json:"failed"`
	ProfitReleased decimal.Decimal `json:"profit_released"`
	Skips          []Skip          `json:"skips,omitempty"`
	Failures       []Failure       `json:"failures,omitempty"`
}

// Options 可选依赖
type Options struct {
	Redis        *redis.Client
	Metrics      *metrics.Metrics
	Tracer       *tracing.Tracer
	Logger       *zap.Logger
	LockTTL      time.Duration
	EntryTimeout time.Duration
}

// Engine 结算引擎
type Engine struct {
	db          *gorm.DB
	receiptRepo *repository.ReceiptRepository
	depositRepo *repository.DepositRepository
	eventRepo   *repository.SettlementEventRepository
	deposits    *deposit.Service
	wallets     *wallet.Service
	dispatcher  *Dispatcher

	rdb          *redis.Client
	metrics      *metrics.Metrics
	tracer       *tracing.Tracer
	log          *zap.Logger
	lockTTL      time.Duration
	entryTimeout time.Duration
}

// NewEngine 创建结算引擎
func NewEngine(
	db *gorm.DB,
	receiptRepo *repository.ReceiptRepository,
	depositRepo *repository.DepositRepository,
	eventRepo *repository.SettlementEventRepository,
	deposits *deposit.Service,
	wallets *wallet.Service,
	dispatcher *Dispatcher,
	opts Options,
) *Engine {
	e := &Engine{
		db:           db,
		receiptRepo:  receiptRepo,
		depositRepo:  depositRepo,
		eventRepo:    eventRepo,
		deposits:     deposits,
		wallets:      wallets,
		dispatcher:   dispatcher,
		rdb:          opts.Redis,
		metrics:      opts.Metrics,
		tracer:       opts.Tracer,
		log:          opts.Logger,
		lockTTL:      opts.LockTTL,
		entryTimeout: opts.EntryTimeout,
	}
	if e.tracer == nil {
		e.tracer = tracing.GetTracer()
	}
	if e.log == nil {
		e.log = logger.GetLogger()
	}
	e.log = e.log.Named("settlement")
	if e.lockTTL <= 0 {
		e.lockTTL = defaultLockTTL
	}
	if e.entryTimeout <= 0 {
		e.entryTimeout = defaultEntryTimeout
	}
	return e
}

// LockKey 凭证结算锁键
func LockKey(receiptID int64) string {
	return cache.BuildKey(cache.KeyPrefixLock, "settlement", "receipt", strconv.FormatInt(receiptID, 10))
}

// Settle 结算已审核通过的凭证，可重复调用，已结算的押金不会重复释放利润
func (e *Engine) Settle(ctx context.Context, receiptID int64) (*Result, error) {
	ctx, span := e.tracer.StartSpan(ctx, "settlement.Settle",
		tracing.WithReceiptID(receiptID),
		tracing.WithOperation("settle"),
	)
	defer span.End()

	start := time.Now()

	var lock *cache.Lock
	if e.rdb != nil {
		held, err := cache.NewLocker(e.rdb).Acquire(ctx, LockKey(receiptID), e.lockTTL)
		if err != nil {
			if stderrors.Is(err, cache.ErrLockHeld) {
				span.SetStatus(codes.Error, "settlement in progress")
				return nil, errors.ErrSettlementInProgress
			}
			// Redis 不可用时由数据库条件更新兜底
			e.log.Warn("settlement lock unavailable", logger.ReceiptID(receiptID), zap.Error(err))
		} else {
			lock = held
			defer func() {
				if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
					e.log.Warn("settlement lock release failed", logger.ReceiptID(receiptID), zap.Error(err))
				}
			}()
		}
	}

	receipt, err := e.receiptRepo.GetByID(ctx, receiptID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrReceiptNotFound
		}
		tracing.SetError(ctx, err)
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if receipt.Status != models.ReceiptStatusApproved {
		return nil, errors.ErrReceiptNotApproved
	}
	span.SetAttributes(tracing.WithSellerID(receipt.SellerID), tracing.AttrEntryCount.Int(len(receipt.Items)))

	result := &Result{ReceiptID: receipt.ID, ProfitReleased: decimal.Zero}
	var events []*models.SettlementEvent

	for i := range receipt.Items {
		item := &receipt.Items[i]
		// 每条押金开始前续期，保证锁覆盖本条的处理时限
		if err := lock.Extend(ctx, e.lockTTL+e.entryTimeout); err != nil {
			e.log.Warn("settlement lock extend failed", logger.ReceiptID(receipt.ID), zap.Error(err))
		}
		outcome, ev, err := e.settleEntry(ctx, receipt, item)
		switch outcome {
		case outcomeProcessed:
			result.Processed++
			result.ProfitReleased = result.ProfitReleased.Add(ev.Profit)
			if ev.ID > 0 {
				events = append(events, ev)
			}
		case outcomeAlreadySettled:
			result.AlreadySettled++
		case outcomeFailed:
			result.Failed++
			result.Failures = append(result.Failures, Failure{DepositID: item.DepositID, Error: err.Error()})
			e.log.Error("deposit settlement failed",
				logger.ReceiptID(receipt.ID),
				logger.DepositID(item.DepositID),
				zap.Error(err),
			)
		default:
			result.Skipped++
			result.Skips = append(result.Skips, Skip{DepositID: item.DepositID, Reason: outcome})
			e.log.Info("deposit skipped",
				logger.ReceiptID(receipt.ID),
				logger.DepositID(item.DepositID),
				zap.String("reason", outcome),
			)
		}
	}

	result.Status = models.SettlementStatusCompleted
	if result.Failed > 0 {
		result.Status = models.SettlementStatusPartial
	}

	if err := e.receiptRepo.UpdateSettlement(ctx, receipt.ID, result.Status,
		result.Processed+result.AlreadySettled, result.Skipped, time.Now()); err != nil {
		e.log.Error("settlement status update failed", logger.ReceiptID(receipt.ID), zap.Error(err))
		tracing.SetError(ctx, err)
	}

	e.metrics.RecordSettlement(result.Status, map[string]int{
		outcomeProcessed:      result.Processed,
		outcomeSkipped:        result.Skipped,
		outcomeAlreadySettled: result.AlreadySettled,
		outcomeFailed:         result.Failed,
	}, time.Since(start))
	e.metrics.AddProfitReleased(result.ProfitReleased.InexactFloat64())

	span.SetAttributes(
		tracing.AttrProcessed.Int(result.Processed),
		tracing.AttrSkipped.Int(result.Skipped),
		tracing.AttrFailed.Int(result.Failed),
	)
	if result.Failed > 0 {
		span.SetStatus(codes.Error, "partial settlement")
	}

	e.log.Info("receipt settled",
		logger.ReceiptID(receipt.ID),
		logger.ReceiptNo(receipt.ReceiptNo),
		zap.String("status", result.Status),
		zap.Int("processed", result.Processed),
		zap.Int("skipped", result.Skipped),
		zap.Int("already_settled", result.AlreadySettled),
		zap.Int("failed", result.Failed),
		logger.Amount("profit_released", result.ProfitReleased),
	)

	if e.dispatcher != nil && len(events) > 0 {
		e.dispatcher.Dispatch(ctx, events)
	}

	return result, nil
}

// settleEntry 在独立事务中结算单条押金
func (e *Engine) settleEntry(ctx context.Context, receipt *models.Receipt, item *models.ReceiptItem) (string, *models.SettlementEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, e.entryTimeout)
	defer cancel()

	outcome := outcomeFailed
	var event *models.SettlementEvent

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry, err := e.depositRepo.GetForUpdate(ctx, tx, item.DepositID)
		if err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				outcome = SkipNotFound
				return nil
			}
			return err
		}

		sameReceipt := entry.ReceiptID != nil && *entry.ReceiptID == receipt.ID
		switch {
		case entry.IsPaid() && sameReceipt:
			outcome = outcomeAlreadySettled
			return nil
		case entry.IsPaid():
			outcome = SkipReceiptMismatch
			return nil
		case entry.Status != models.DepositStatusReceiptSubmitted:
			outcome = SkipInvalidState
			return nil
		case !sameReceipt:
			outcome = SkipReceiptMismatch
			return nil
		}

		if !entry.TotalDepositRequired.Equal(item.Amount) {
			e.log.Warn("deposit amount changed since submission",
				logger.ReceiptID(receipt.ID),
				logger.DepositID(entry.ID),
				logger.Amount("submitted", item.Amount),
				logger.Amount("current", entry.TotalDepositRequired),
			)
		}

		changed, err := e.deposits.MarkPaidTx(ctx, tx, entry.ID, receipt.ID)
		if err != nil {
			return err
		}
		if !changed {
			outcome = outcomeAlreadySettled
			return nil
		}

		profit := entry.PendingProfitAmount
		if profit.IsPositive() {
			if _, err := e.wallets.CreditTx(ctx, tx, wallet.Movement{
				SellerID: entry.SellerID,
				Amount:   profit,
				Type:     models.WalletTxTypeProfitRelease,
				RefNo:    entry.DepositNo,
				Remark:   "押金确认，释放利润",
			}); err != nil {
				return err
			}
		} else {
			profit = decimal.Zero
		}

		if _, err := e.depositRepo.MarkProfitReleasedTx(ctx, tx, entry.ID); err != nil {
			return err
		}

		event = &models.SettlementEvent{
			DepositID: entry.ID,
			ReceiptID: receipt.ID,
			SellerID:  entry.SellerID,
			Profit:    profit,
		}
		if err := e.eventRepo.CreateTx(ctx, tx, event); err != nil {
			return err
		}

		outcome = outcomeProcessed
		return nil
	})
	if err != nil {
		return outcomeFailed, nil, err
	}
	return outcome, event, nil
}

// ReplayPending 重新投递未成功的结算事件
func (e *Engine) ReplayPending(ctx context.Context, limit int) (*DispatchStats, error) {
	if e.dispatcher == nil {
		return &DispatchStats{}, nil
	}
	return e.dispatcher.ReplayPending(ctx, limit)
}
