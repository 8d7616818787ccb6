package seller

import (
	"github.com/gin-gonic/gin"

	"github.com/dumeirei/tkshop-backend/internal/common/handler"
	"github.com/dumeirei/tkshop-backend/internal/common/response"
	"github.com/dumeirei/tkshop-backend/internal/models"
)

var depositStatuses = map[string]struct{}{
	models.DepositStatusPending:          {},
	models.DepositStatusSold:             {},
	models.DepositStatusReceiptSubmitted: {},
	models.DepositStatusPaid:             {},
}

// ListDeposits 押金台账列表
// @Summary 获取押金台账列表
// @Tags 卖家押金
// @Produce json
// @Security Bearer
// @Param status query string false "状态" Enums(pending, sold, receipt_submitted, deposit_paid)
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Success 200 {object} response.Response{data=response.PageData{list=[]models.DepositLedgerEntry}}
// @Router /api/v1/seller/deposits [get]
func (h *Handler) ListDeposits(c *gin.Context) {
	sellerID, ok := handler.RequireSellerID(c)
	if !ok {
		return
	}

	status := c.Query("status")
	if status != "" {
		if _, valid := depositStatuses[status]; !valid {
			response.BadRequest(c, "无效的押金状态")
			return
		}
	}

	page := handler.BindPagination(c)
	list, total, err := h.depositService.ListBySeller(c.Request.Context(), sellerID, status, page)
	handler.MustSucceedPage(c, err, list, total, page.Page, page.PageSize)
}

// GetDeposit 押金详情
// @Summary 获取押金详情
// @Tags 卖家押金
// @Produce json
// @Security Bearer
// @Param id path int true "押金ID"
// @Success 200 {object} response.Response{data=models.DepositLedgerEntry}
// @Router /api/v1/seller/deposits/{id} [get]
func (h *Handler) GetDeposit(c *gin.Context) {
	sellerID, id, ok := handler.RequireSellerAndParseID(c, "押金")
	if !ok {
		return
	}

	entry, err := h.depositService.GetForSeller(c.Request.Context(), sellerID, id)
	handler.MustSucceed(c, err, entry)
}

// GetPendingSummary 待支付押金汇总
// @Summary 获取待支付押金汇总
// @Tags 卖家押金
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=depositService.PendingSummary}
// @Router /api/v1/seller/deposits/summary [get]
func (h *Handler) GetPendingSummary(c *gin.Context) {
	sellerID, ok := handler.RequireSellerID(c)
	if !ok {
		return
	}

	summary, err := h.depositService.GetPendingSummary(c.Request.Context(), sellerID)
	handler.MustSucceed(c, err, summary)
}
