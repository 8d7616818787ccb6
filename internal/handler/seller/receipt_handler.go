package seller

import (
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/dumeirei/tkshop-backend/internal/common/handler"
	"github.com/dumeirei/tkshop-backend/internal/common/response"
	"github.com/dumeirei/tkshop-backend/internal/repository"
	receiptService "github.com/dumeirei/tkshop-backend/internal/service/receipt"
)

// SubmitReceiptRequest JSON 方式提交凭证（钱包支付）
type SubmitReceiptRequest struct {
	DepositIDs    []int64         `json:"deposit_ids" binding:"required"`
	PaymentMethod string          `json:"payment_method" binding:"required"`
	Amount        decimal.Decimal `json:"amount"`
	TxHash        string          `json:"tx_hash"`
}

// GetPaymentInfo USDT 收款信息
// @Summary 获取 USDT 收款信息
// @Description deposit_ids 为空时按全部待支付押金计算
// @Tags 卖家凭证
// @Produce json
// @Security Bearer
// @Param deposit_ids query string false "押金ID，逗号分隔"
// @Success 200 {object} response.Response{data=receiptService.PaymentInfo}
// @Router /api/v1/seller/payment-info [get]
func (h *Handler) GetPaymentInfo(c *gin.Context) {
	sellerID, ok := handler.RequireSellerID(c)
	if !ok {
		return
	}

	ids, ok := parseIDList(c.Query("deposit_ids"))
	if !ok {
		response.BadRequest(c, "无效的押金ID")
		return
	}

	info, err := h.receiptService.GetPaymentInfo(c.Request.Context(), sellerID, ids)
	handler.MustSucceed(c, err, info)
}

// SubmitReceipt 提交押金支付凭证
// @Summary 提交押金支付凭证
// @Description 钱包支付使用 JSON 提交并立即结算；USDT 支付使用 multipart 上传转账截图 proof，等待审核
// @Tags 卖家凭证
// @Accept json,mpfd
// @Produce json
// @Security Bearer
// @Param request body SubmitReceiptRequest false "钱包支付参数"
// @Param deposit_ids formData string false "押金ID，逗号分隔"
// @Param payment_method formData string false "支付方式" Enums(wallet, usdt)
// @Param amount formData string false "支付金额"
// @Param tx_hash formData string false "链上交易哈希"
// @Param proof formData file false "转账截图"
// @Success 200 {object} response.Response{data=receiptService.Outcome}
// @Router /api/v1/seller/receipts [post]
func (h *Handler) SubmitReceipt(c *gin.Context) {
	sellerID, ok := handler.RequireSellerID(c)
	if !ok {
		return
	}

	var req *receiptService.SubmitRequest
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		req, ok = h.bindMultipart(c)
	} else {
		req, ok = bindJSON(c)
	}
	if !ok {
		return
	}
	req.SellerID = sellerID

	outcome, err := h.receiptService.Submit(c.Request.Context(), req)
	handler.MustSucceed(c, err, outcome)
}

func bindJSON(c *gin.Context) (*receiptService.SubmitRequest, bool) {
	var body SubmitReceiptRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "参数错误")
		return nil, false
	}
	return &receiptService.SubmitRequest{
		DepositIDs:    body.DepositIDs,
		PaymentMethod: body.PaymentMethod,
		Amount:        body.Amount,
		TxHash:        body.TxHash,
	}, true
}

func (h *Handler) bindMultipart(c *gin.Context) (*receiptService.SubmitRequest, bool) {
	ids, ok := parseIDList(c.PostForm("deposit_ids"))
	if !ok {
		response.BadRequest(c, "无效的押金ID")
		return nil, false
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(c.PostForm("amount")))
	if err != nil {
		response.BadRequest(c, "无效的支付金额")
		return nil, false
	}

	req := &receiptService.SubmitRequest{
		DepositIDs:    ids,
		PaymentMethod: c.PostForm("payment_method"),
		Amount:        amount,
		TxHash:        strings.TrimSpace(c.PostForm("tx_hash")),
	}

	fileHeader, err := c.FormFile("proof")
	if err != nil {
		// 未上传截图时交由服务层按支付方式判断
		return req, true
	}
	if fileHeader.Size > h.maxProofSize {
		response.BadRequest(c, "转账截图过大")
		return nil, false
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.BadRequest(c, "读取转账截图失败")
		return nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxProofSize+1))
	if err != nil {
		response.BadRequest(c, "读取转账截图失败")
		return nil, false
	}
	req.Proof = &receiptService.Proof{Filename: fileHeader.Filename, Data: data}
	return req, true
}

// ListReceipts 我的凭证列表
// @Summary 获取凭证列表
// @Tags 卖家凭证
// @Produce json
// @Security Bearer
// @Param status query string false "状态" Enums(pending, approved, rejected)
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Success 200 {object} response.Response{data=response.PageData{list=[]models.Receipt}}
// @Router /api/v1/seller/receipts [get]
func (h *Handler) ListReceipts(c *gin.Context) {
	sellerID, ok := handler.RequireSellerID(c)
	if !ok {
		return
	}

	filter := &repository.ReceiptFilter{
		SellerID: &sellerID,
		Status:   c.Query("status"),
	}
	page := handler.BindPagination(c)
	list, total, err := h.receiptService.List(c.Request.Context(), filter, page)
	handler.MustSucceedPage(c, err, list, total, page.Page, page.PageSize)
}

// GetReceipt 凭证详情
// @Summary 获取凭证详情
// @Tags 卖家凭证
// @Produce json
// @Security Bearer
// @Param id path int true "凭证ID"
// @Success 200 {object} response.Response{data=models.Receipt}
// @Router /api/v1/seller/receipts/{id} [get]
func (h *Handler) GetReceipt(c *gin.Context) {
	sellerID, id, ok := handler.RequireSellerAndParseID(c, "凭证")
	if !ok {
		return
	}

	receipt, err := h.receiptService.GetForSeller(c.Request.Context(), sellerID, id)
	handler.MustSucceed(c, err, receipt)
}
