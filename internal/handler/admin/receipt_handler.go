package admin

import (
	"github.com/gin-gonic/gin"

	"github.com/dumeirei/tkshop-backend/internal/common/handler"
	"github.com/dumeirei/tkshop-backend/internal/common/response"
	"github.com/dumeirei/tkshop-backend/internal/repository"
	receiptService "github.com/dumeirei/tkshop-backend/internal/service/receipt"
)

// ReceiptHandler 凭证审核处理器
type ReceiptHandler struct {
	receiptService *receiptService.Service
}

// NewReceiptHandler 创建凭证审核处理器
func NewReceiptHandler(receiptSvc *receiptService.Service) *ReceiptHandler {
	return &ReceiptHandler{receiptService: receiptSvc}
}

// ListReceipts 凭证列表
// @Summary 获取凭证列表
// @Tags 凭证审核
// @Produce json
// @Security Bearer
// @Param seller_id query int false "卖家ID"
// @Param status query string false "状态" Enums(pending, approved, rejected)
// @Param payment_method query string false "支付方式" Enums(wallet, usdt)
// @Param start_date query string false "开始日期 (2006-01-02)"
// @Param end_date query string false "结束日期 (2006-01-02)"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Success 200 {object} response.Response{data=response.PageData{list=[]models.Receipt}}
// @Router /api/admin/receipts [get]
func (h *ReceiptHandler) ListReceipts(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}

	sellerID, ok := handler.ParseQueryID(c, "seller_id", "卖家")
	if !ok {
		return
	}
	start, end, ok := handler.ParseQueryDateRange(c)
	if !ok {
		return
	}

	filter := &repository.ReceiptFilter{
		SellerID:      sellerID,
		Status:        c.Query("status"),
		PaymentMethod: c.Query("payment_method"),
		StartDate:     start,
		EndDate:       end,
	}
	page := handler.BindPagination(c)
	list, total, err := h.receiptService.List(c.Request.Context(), filter, page)
	handler.MustSucceedPage(c, err, list, total, page.Page, page.PageSize)
}

// GetReceipt 凭证详情
// @Summary 获取凭证详情（含明细）
// @Tags 凭证审核
// @Produce json
// @Security Bearer
// @Param id path int true "凭证ID"
// @Success 200 {object} response.Response{data=models.Receipt}
// @Router /api/admin/receipts/{id} [get]
func (h *ReceiptHandler) GetReceipt(c *gin.Context) {
	_, id, ok := handler.RequireAdminAndParseID(c, "凭证")
	if !ok {
		return
	}

	receipt, err := h.receiptService.Get(c.Request.Context(), id)
	handler.MustSucceed(c, err, receipt)
}

// ApproveReceipt 审核通过并结算
// @Summary 审核通过凭证
// @Description 通过后立即对凭证下押金执行结算，重复调用幂等
// @Tags 凭证审核
// @Produce json
// @Security Bearer
// @Param id path int true "凭证ID"
// @Success 200 {object} response.Response{data=receiptService.Outcome}
// @Router /api/admin/receipts/{id}/approve [post]
func (h *ReceiptHandler) ApproveReceipt(c *gin.Context) {
	adminID, id, ok := handler.RequireAdminAndParseID(c, "凭证")
	if !ok {
		return
	}

	outcome, err := h.receiptService.Approve(c.Request.Context(), id, adminID)
	handler.MustSucceed(c, err, outcome)
}

// RejectRequest 驳回请求
type RejectRequest struct {
	Reason string `json:"reason" binding:"required,max=255"`
}

// RejectReceipt 驳回凭证
// @Summary 驳回凭证
// @Description 驳回后凭证下押金退回待支付状态
// @Tags 凭证审核
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "凭证ID"
// @Param request body RejectRequest true "驳回原因"
// @Success 200 {object} response.Response{data=models.Receipt}
// @Router /api/admin/receipts/{id}/reject [post]
func (h *ReceiptHandler) RejectReceipt(c *gin.Context) {
	adminID, id, ok := handler.RequireAdminAndParseID(c, "凭证")
	if !ok {
		return
	}

	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请填写驳回原因")
		return
	}

	receipt, err := h.receiptService.Reject(c.Request.Context(), id, adminID, req.Reason)
	handler.MustSucceed(c, err, receipt)
}
