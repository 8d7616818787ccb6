package scheduler

import (
	"context"

	"go.uber.org/zap"

	"github.com/dumeirei/tkshop-backend/internal/service/settlement"
)

// Replayer 重放未投递的结算事件
type Replayer interface {
	ReplayPending(ctx context.Context, limit int) (*settlement.DispatchStats, error)
}

// TaskHandler 结算相关定时任务
type TaskHandler struct {
	replayer Replayer
	batch    int
	log      *zap.Logger
}

// NewTaskHandler 创建任务处理器
func NewTaskHandler(replayer Replayer, batch int, log *zap.Logger) *TaskHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &TaskHandler{replayer: replayer, batch: batch, log: log.Named("tasks")}
}

// ReplaySettlementEvents 补投佣金累计或 MQTT 发布失败的结算事件
func (h *TaskHandler) ReplaySettlementEvents(ctx context.Context) error {
	stats, err := h.replayer.ReplayPending(ctx, h.batch)
	if err != nil {
		return err
	}
	if stats.Failed > 0 {
		h.log.Warn("settlement events still undelivered",
			zap.Int("delivered", stats.Delivered),
			zap.Int("failed", stats.Failed),
		)
	}
	return nil
}
