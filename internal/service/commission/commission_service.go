// Package commission 管理员推荐佣金累计与查询
package commission

import (
	"context"
	stderrors "errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dumeirei/tkshop-backend/internal/common/cache"
	"github.com/dumeirei/tkshop-backend/internal/common/errors"
	"github.com/dumeirei/tkshop-backend/internal/common/logger"
	"github.com/dumeirei/tkshop-backend/internal/common/metrics"
	"github.com/dumeirei/tkshop-backend/internal/common/utils"
	"github.com/dumeirei/tkshop-backend/internal/models"
	"github.com/dumeirei/tkshop-backend/internal/repository"
)

// DefaultRate 默认佣金比例
const DefaultRate = 0.10

const summaryCacheName = "commission_summary"

// Options 可选依赖
type Options struct {
	Rate     float64
	CacheTTL time.Duration
	Redis    *redis.Client
	Metrics  *metrics.Metrics
}

// Service 佣金服务
type Service struct {
	db             *gorm.DB
	commissionRepo *repository.CommissionRepository
	sellerRepo     *repository.SellerRepository
	adminRepo      *repository.AdminRepository
	rdb            *redis.Client
	metrics        *metrics.Metrics
	rate           decimal.Decimal
	cacheTTL       time.Duration
}

// NewService 创建佣金服务
func NewService(
	db *gorm.DB,
	commissionRepo *repository.CommissionRepository,
	sellerRepo *repository.SellerRepository,
	adminRepo *repository.AdminRepository,
	opts Options,
) *Service {
	rate := opts.Rate
	if rate <= 0 {
		rate = DefaultRate
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Service{
		db:             db,
		commissionRepo: commissionRepo,
		sellerRepo:     sellerRepo,
		adminRepo:      adminRepo,
		rdb:            opts.Redis,
		metrics:        opts.Metrics,
		rate:           decimal.NewFromFloat(rate),
		cacheTTL:       ttl,
	}
}

// Rate 当前佣金比例
func (s *Service) Rate() decimal.Decimal {
	return s.rate
}

// Accrue 按结算事件为卖家的推荐管理员累计佣金
// 无推荐人、推荐人不可用、利润非正或事件重复时返回 nil 记录
func (s *Service) Accrue(ctx context.Context, event *models.SettlementEvent) (*models.CommissionRecord, error) {
	if !event.Profit.IsPositive() {
		return nil, nil
	}

	var created *models.CommissionRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seller, err := s.sellerRepo.GetByIDTx(ctx, tx, event.SellerID)
		if err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return errors.ErrSellerNotFound
			}
			return errors.ErrDatabaseError.WithError(err)
		}
		if seller.ReferrerAdminID == nil {
			return nil
		}

		admin, err := s.adminRepo.GetByIDTx(ctx, tx, *seller.ReferrerAdminID)
		if err != nil && !stderrors.Is(err, gorm.ErrRecordNotFound) {
			return errors.ErrDatabaseError.WithError(err)
		}
		if admin == nil || !admin.IsActive() {
			logger.Warn("referrer admin unavailable, commission skipped",
				logger.SellerID(seller.ID),
				logger.AdminID(*seller.ReferrerAdminID),
				logger.DepositID(event.DepositID),
			)
			return nil
		}

		record := &models.CommissionRecord{
			AdminID:   admin.ID,
			SellerID:  seller.ID,
			DepositID: event.DepositID,
			ReceiptID: event.ReceiptID,
			Profit:    event.Profit,
			Rate:      s.rate,
			Amount:    event.Profit.Mul(s.rate).Round(2),
		}
		inserted, err := s.commissionRepo.CreateRecordTx(ctx, tx, record)
		if err != nil {
			return errors.ErrDatabaseError.WithError(err)
		}
		if !inserted {
			return nil
		}
		if err := s.commissionRepo.AddToLedgerTx(ctx, tx, admin.ID, record.Amount); err != nil {
			return errors.ErrDatabaseError.WithError(err)
		}
		created = record
		return nil
	})
	if err != nil {
		return nil, err
	}

	if created != nil {
		s.metrics.AddCommissionAccrued(created.Amount.InexactFloat64())
		s.invalidate(ctx, created.AdminID)
		logger.Info("commission accrued",
			logger.AdminID(created.AdminID),
			logger.DepositID(created.DepositID),
			logger.Amount("amount", created.Amount),
		)
	}
	return created, nil
}

// Summary 管理员佣金汇总
type Summary struct {
	AdminID         int64           `json:"admin_id"`
	TotalCommission decimal.Decimal `json:"total_commission"`
	SettledCount    int64           `json:"settled_count"`
	RecordCount     int64           `json:"record_count"`
	Rate            decimal.Decimal `json:"rate"`
}

// GetSummary 查询佣金汇总，viewer 非超级管理员时只能查询本人
func (s *Service) GetSummary(ctx context.Context, viewerID, adminID int64) (*Summary, error) {
	if err := s.authorize(ctx, viewerID, adminID); err != nil {
		return nil, err
	}
	return s.Summary(ctx, adminID)
}

// Summary 查询佣金汇总，无数据时返回零值
func (s *Service) Summary(ctx context.Context, adminID int64) (*Summary, error) {
	key := summaryKey(adminID)
	if s.rdb != nil {
		var cached Summary
		if err := cache.GetJSON(ctx, s.rdb, key, &cached); err == nil {
			s.metrics.RecordCacheHit(summaryCacheName)
			return &cached, nil
		} else if !cache.IsMiss(err) {
			logger.Warn("commission summary cache read failed", zap.Error(err))
		}
		s.metrics.RecordCacheMiss(summaryCacheName)
	}

	summary := &Summary{
		AdminID:         adminID,
		TotalCommission: decimal.Zero,
		Rate:            s.rate,
	}
	ledger, err := s.commissionRepo.GetLedger(ctx, adminID)
	switch {
	case err == nil:
		summary.TotalCommission = ledger.TotalCommission
		summary.SettledCount = ledger.SettledCount
	case !stderrors.Is(err, gorm.ErrRecordNotFound):
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	count, err := s.commissionRepo.CountRecords(ctx, adminID)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	summary.RecordCount = count

	if s.rdb != nil {
		if err := cache.SetJSON(ctx, s.rdb, key, summary, s.cacheTTL); err != nil {
			logger.Warn("commission summary cache write failed", zap.Error(err))
		}
	}
	return summary, nil
}

// ListRecords 佣金明细，viewer 非超级管理员时只能查询本人
func (s *Service) ListRecords(ctx context.Context, viewerID, adminID int64, page utils.Pagination) ([]*models.CommissionRecord, int64, error) {
	if err := s.authorize(ctx, viewerID, adminID); err != nil {
		return nil, 0, err
	}
	page.Normalize()
	records, total, err := s.commissionRepo.ListRecords(ctx, page.GetOffset(), page.GetLimit(), map[string]interface{}{
		"admin_id": adminID,
	})
	if err != nil {
		return nil, 0, errors.ErrDatabaseError.WithError(err)
	}
	return records, total, nil
}

func (s *Service) authorize(ctx context.Context, viewerID, adminID int64) error {
	viewer, err := s.adminRepo.GetByID(ctx, viewerID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return errors.ErrAdminNotFound
		}
		return errors.ErrDatabaseError.WithError(err)
	}
	if !viewer.IsActive() {
		return errors.ErrAccountDisabled
	}
	if viewer.ID != adminID && !viewer.IsSuperAdmin() {
		return errors.ErrPermissionDenied
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context, adminID int64) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, summaryKey(adminID)).Err(); err != nil {
		logger.Warn("commission summary cache invalidate failed", logger.AdminID(adminID), zap.Error(err))
	}
}

func summaryKey(adminID int64) string {
	return cache.BuildKey(cache.KeyPrefixCommissionSummary, strconv.FormatInt(adminID, 10))
}
