package settlement

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dumeirei/tkshop-backend/internal/common/errors"
	"github.com/dumeirei/tkshop-backend/internal/common/logger"
	"github.com/dumeirei/tkshop-backend/internal/common/metrics"
	"github.com/dumeirei/tkshop-backend/internal/models"
	"github.com/dumeirei/tkshop-backend/internal/repository"
	"github.com/dumeirei/tkshop-backend/pkg/mqtt"
)

const defaultReplayBatch = 100

// Accruer 结算事件的佣金消费者
type Accruer interface {
	Accrue(ctx context.Context, event *models.SettlementEvent) (*models.CommissionRecord, error)
}

// DispatchStats 投递统计
type DispatchStats struct {
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
}

// Dispatcher 发件箱投递器
// 事件依次交给佣金累计与 MQTT，全部成功才标记已投递
type Dispatcher struct {
	eventRepo *repository.SettlementEventRepository
	accruer   Accruer
	publisher mqtt.Publisher
	metrics   *metrics.Metrics
	log       *zap.Logger
}

// NewDispatcher 创建投递器，publisher 可为 nil
func NewDispatcher(eventRepo *repository.SettlementEventRepository, accruer Accruer, publisher mqtt.Publisher, m *metrics.Metrics, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Dispatcher{
		eventRepo: eventRepo,
		accruer:   accruer,
		publisher: publisher,
		metrics:   m,
		log:       log.Named("dispatcher"),
	}
}

// Dispatch 投递一批已提交的事件，失败的事件保留待重放
func (d *Dispatcher) Dispatch(ctx context.Context, events []*models.SettlementEvent) *DispatchStats {
	stats := &DispatchStats{}
	for _, ev := range events {
		if err := d.deliver(ctx, ev); err != nil {
			stats.Failed++
			d.metrics.RecordDispatch("failed")
			d.log.Warn("settlement event dispatch failed",
				zap.Int64("event_id", ev.ID),
				logger.DepositID(ev.DepositID),
				zap.Error(err),
			)
			if markErr := d.eventRepo.MarkFailed(ctx, ev.ID, err.Error()); markErr != nil {
				d.log.Error("mark event failed", zap.Int64("event_id", ev.ID), zap.Error(markErr))
			}
			continue
		}

		stats.Delivered++
		d.metrics.RecordDispatch("delivered")
		if err := d.eventRepo.MarkDispatched(ctx, ev.ID, time.Now()); err != nil {
			d.log.Error("mark event dispatched failed", zap.Int64("event_id", ev.ID), zap.Error(err))
		}
	}
	return stats
}

// ReplayPending 重放未投递事件
func (d *Dispatcher) ReplayPending(ctx context.Context, limit int) (*DispatchStats, error) {
	if limit <= 0 {
		limit = defaultReplayBatch
	}
	events, err := d.eventRepo.ListPending(ctx, limit)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if len(events) == 0 {
		return &DispatchStats{}, nil
	}

	stats := d.Dispatch(ctx, events)
	d.log.Info("settlement events replayed",
		zap.Int("delivered", stats.Delivered),
		zap.Int("failed", stats.Failed),
	)
	return stats, nil
}

func (d *Dispatcher) deliver(ctx context.Context, ev *models.SettlementEvent) error {
	if d.accruer != nil {
		_, err := d.accruer.Accrue(ctx, ev)
		switch {
		case errors.IsCode(err, errors.ErrSellerNotFound):
			// 卖家已删除，重放也无法累计，放弃佣金继续投递
			d.log.Warn("commission skipped: seller not found",
				zap.Int64("event_id", ev.ID),
				logger.SellerID(ev.SellerID),
				logger.DepositID(ev.DepositID),
			)
		case err != nil:
			return err
		}
	}
	if d.publisher == nil {
		return nil
	}

	err := d.publisher.PublishSettlement(ctx, &mqtt.SettlementMessage{
		EventID:   ev.ID,
		DepositID: ev.DepositID,
		ReceiptID: ev.ReceiptID,
		SellerID:  ev.SellerID,
		Profit:    ev.Profit.StringFixed(2),
	})
	if err != nil {
		d.metrics.RecordMQTTMessage(mqtt.TopicSettlementDepositPaid, "failed")
		return errors.ErrEventPublishFailed.WithError(err)
	}
	d.metrics.RecordMQTTMessage(mqtt.TopicSettlementDepositPaid, "published")
	return nil
}
