package admin

import (
	"github.com/gin-gonic/gin"

	"github.com/dumeirei/tkshop-backend/internal/common/handler"
	commissionService "github.com/dumeirei/tkshop-backend/internal/service/commission"
)

// CommissionHandler 佣金查询处理器
type CommissionHandler struct {
	commissionService *commissionService.Service
}

// NewCommissionHandler 创建佣金查询处理器
func NewCommissionHandler(commissionSvc *commissionService.Service) *CommissionHandler {
	return &CommissionHandler{commissionService: commissionSvc}
}

// targetAdmin 解析 admin_id 参数，缺省为当前管理员
func targetAdmin(c *gin.Context, viewerID int64) (int64, bool) {
	id, ok := handler.ParseQueryID(c, "admin_id", "管理员")
	if !ok {
		return 0, false
	}
	if id == nil {
		return viewerID, true
	}
	return *id, true
}

// GetSummary 佣金汇总
// @Summary 获取佣金汇总
// @Description 普通管理员只能查询本人，超级管理员可指定 admin_id
// @Tags 佣金
// @Produce json
// @Security Bearer
// @Param admin_id query int false "管理员ID"
// @Success 200 {object} response.Response{data=commissionService.Summary}
// @Router /api/admin/commissions/summary [get]
func (h *CommissionHandler) GetSummary(c *gin.Context) {
	viewerID, ok := handler.RequireAdminID(c)
	if !ok {
		return
	}
	adminID, ok := targetAdmin(c, viewerID)
	if !ok {
		return
	}

	summary, err := h.commissionService.GetSummary(c.Request.Context(), viewerID, adminID)
	handler.MustSucceed(c, err, summary)
}

// ListRecords 佣金明细
// @Summary 获取佣金明细
// @Tags 佣金
// @Produce json
// @Security Bearer
// @Param admin_id query int false "管理员ID"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Success 200 {object} response.Response{data=response.PageData{list=[]models.CommissionRecord}}
// @Router /api/admin/commissions/records [get]
func (h *CommissionHandler) ListRecords(c *gin.Context) {
	viewerID, ok := handler.RequireAdminID(c)
	if !ok {
		return
	}
	adminID, ok := targetAdmin(c, viewerID)
	if !ok {
		return
	}

	page := handler.BindPagination(c)
	list, total, err := h.commissionService.ListRecords(c.Request.Context(), viewerID, adminID, page)
	handler.MustSucceedPage(c, err, list, total, page.Page, page.PageSize)
}
