package admin

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dumeirei/tkshop-backend/internal/common/errors"
	"github.com/dumeirei/tkshop-backend/internal/common/handler"
	"github.com/dumeirei/tkshop-backend/internal/models"
	"github.com/dumeirei/tkshop-backend/internal/repository"
	"github.com/dumeirei/tkshop-backend/internal/service/settlement"
)

// SystemHandler 结算运维与审计日志处理器
type SystemHandler struct {
	engine      *settlement.Engine
	receiptRepo *repository.ReceiptRepository
	eventRepo   *repository.SettlementEventRepository
	logRepo     *repository.OperationLogRepository
}

// NewSystemHandler 创建系统处理器
func NewSystemHandler(
	engine *settlement.Engine,
	receiptRepo *repository.ReceiptRepository,
	eventRepo *repository.SettlementEventRepository,
	logRepo *repository.OperationLogRepository,
) *SystemHandler {
	return &SystemHandler{engine: engine, receiptRepo: receiptRepo, eventRepo: eventRepo, logRepo: logRepo}
}

// SettlementOverview 结算运行概况
type SettlementOverview struct {
	PendingReceipts   int64 `json:"pending_receipts"`
	UndeliveredEvents int64 `json:"undelivered_events"`
	ReviewsToday      int64 `json:"reviews_today"`
}

// ReplayRequest 重放请求
type ReplayRequest struct {
	Limit int `json:"limit" binding:"omitempty,min=1,max=1000"`
}

// ReplayEvents 重放未投递的结算事件
// @Summary 重放结算事件
// @Description 重新投递佣金累计与 MQTT 发布失败的结算事件
// @Tags 结算运维
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body ReplayRequest false "最多重放条数，默认 100"
// @Success 200 {object} response.Response{data=settlement.DispatchStats}
// @Router /api/admin/settlement/replay-events [post]
func (h *SystemHandler) ReplayEvents(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}

	var req ReplayRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			handler.HandleError(c, errors.ErrInvalidParams)
			return
		}
	}

	stats, err := h.engine.ReplayPending(c.Request.Context(), req.Limit)
	handler.MustSucceed(c, err, stats)
}

// GetOverview 结算概况
// @Summary 结算运行概况
// @Description 待审核凭证数、未投递结算事件数、今日审核操作数
// @Tags 结算运维
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=SettlementOverview}
// @Router /api/admin/settlement/overview [get]
func (h *SystemHandler) GetOverview(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}
	ctx := c.Request.Context()

	pending, err := h.receiptRepo.CountByStatus(ctx, models.ReceiptStatusPending)
	if err != nil {
		handler.HandleError(c, errors.ErrDatabaseError.WithError(err))
		return
	}
	undelivered, err := h.eventRepo.CountPending(ctx)
	if err != nil {
		handler.HandleError(c, errors.ErrDatabaseError.WithError(err))
		return
	}
	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	reviews, err := h.logRepo.CountByModule(ctx, "receipt", today)
	if err != nil {
		handler.HandleError(c, errors.ErrDatabaseError.WithError(err))
		return
	}

	handler.MustSucceed(c, nil, &SettlementOverview{
		PendingReceipts:   pending,
		UndeliveredEvents: undelivered,
		ReviewsToday:      reviews,
	})
}

// ListOperationLogs 操作日志
// @Summary 获取管理员操作日志
// @Tags 结算运维
// @Produce json
// @Security Bearer
// @Param admin_id query int false "管理员ID"
// @Param module query string false "模块"
// @Param action query string false "操作"
// @Param start_date query string false "开始日期 (2006-01-02)"
// @Param end_date query string false "结束日期 (2006-01-02)"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Success 200 {object} response.Response{data=response.PageData{list=[]models.OperationLog}}
// @Router /api/admin/operation-logs [get]
func (h *SystemHandler) ListOperationLogs(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}

	adminID, ok := handler.ParseQueryID(c, "admin_id", "管理员")
	if !ok {
		return
	}
	start, end, ok := handler.ParseQueryDateRange(c)
	if !ok {
		return
	}

	filters := map[string]interface{}{
		"module": c.Query("module"),
		"action": c.Query("action"),
	}
	if adminID != nil {
		filters["admin_id"] = *adminID
	}
	if start != nil {
		filters["start_time"] = *start
	}
	if end != nil {
		filters["end_time"] = *end
	}

	page := handler.BindPagination(c)
	list, total, err := h.logRepo.List(c.Request.Context(), page.GetOffset(), page.GetLimit(), filters)
	if err != nil {
		handler.HandleError(c, errors.ErrDatabaseError.WithError(err))
		return
	}
	handler.MustSucceedPage(c, nil, list, total, page.Page, page.PageSize)
}
