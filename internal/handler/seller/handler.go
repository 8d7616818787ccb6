// Package seller 提供卖家端 HTTP Handler
package seller

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	authService "github.com/dumeirei/tkshop-backend/internal/service/auth"
	depositService "github.com/dumeirei/tkshop-backend/internal/service/deposit"
	receiptService "github.com/dumeirei/tkshop-backend/internal/service/receipt"
	walletService "github.com/dumeirei/tkshop-backend/internal/service/wallet"
)

// Handler 卖家端处理器
type Handler struct {
	authService    *authService.Service
	depositService *depositService.Service
	receiptService *receiptService.Service
	walletService  *walletService.Service
	maxProofSize   int64
}

// NewHandler 创建卖家端处理器
func NewHandler(
	authSvc *authService.Service,
	depositSvc *depositService.Service,
	receiptSvc *receiptService.Service,
	walletSvc *walletService.Service,
	maxProofSize int64,
) *Handler {
	if maxProofSize <= 0 {
		maxProofSize = 5 << 20
	}
	return &Handler{
		authService:    authSvc,
		depositService: depositSvc,
		receiptService: receiptSvc,
		walletService:  walletSvc,
		maxProofSize:   maxProofSize,
	}
}

// RegisterPublicRoutes 注册无需登录的路由
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.POST("/login", h.Login)
	r.POST("/refresh", h.RefreshToken)
}

// RegisterRoutes 注册需要卖家登录的路由
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/me", h.GetCurrentSeller)

	r.GET("/deposits", h.ListDeposits)
	r.GET("/deposits/summary", h.GetPendingSummary)
	r.GET("/deposits/:id", h.GetDeposit)

	r.GET("/payment-info", h.GetPaymentInfo)
	r.POST("/receipts", h.SubmitReceipt)
	r.GET("/receipts", h.ListReceipts)
	r.GET("/receipts/:id", h.GetReceipt)

	r.GET("/wallet", h.GetWallet)
	r.GET("/wallet/transactions", h.ListTransactions)
}

// parseIDList 解析逗号分隔的 ID 列表
func parseIDList(raw string) ([]int64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil || id <= 0 {
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}
