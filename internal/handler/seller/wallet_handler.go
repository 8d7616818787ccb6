package seller

import (
	"github.com/gin-gonic/gin"

	"github.com/dumeirei/tkshop-backend/internal/common/handler"
)

// GetWallet 钱包信息
// @Summary 获取钱包信息
// @Tags 卖家钱包
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=walletService.WalletInfo}
// @Router /api/v1/seller/wallet [get]
func (h *Handler) GetWallet(c *gin.Context) {
	sellerID, ok := handler.RequireSellerID(c)
	if !ok {
		return
	}

	info, err := h.walletService.GetWallet(c.Request.Context(), sellerID)
	handler.MustSucceed(c, err, info)
}

// ListTransactions 钱包流水
// @Summary 获取钱包流水
// @Tags 卖家钱包
// @Produce json
// @Security Bearer
// @Param type query string false "流水类型"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Success 200 {object} response.Response{data=response.PageData{list=[]walletService.TransactionRecord}}
// @Router /api/v1/seller/wallet/transactions [get]
func (h *Handler) ListTransactions(c *gin.Context) {
	sellerID, ok := handler.RequireSellerID(c)
	if !ok {
		return
	}

	page := handler.BindPagination(c)
	list, total, err := h.walletService.GetTransactions(c.Request.Context(), sellerID, page.GetOffset(), page.GetLimit(), c.Query("type"))
	handler.MustSucceedPage(c, err, list, total, page.Page, page.PageSize)
}
