package admin

import (
	"github.com/gin-gonic/gin"

	"github.com/dumeirei/tkshop-backend/internal/middleware"
)

// Handlers 管理后台处理器集合
type Handlers struct {
	Auth       *AuthHandler
	Deposit    *DepositHandler
	Receipt    *ReceiptHandler
	Commission *CommissionHandler
	System     *SystemHandler
}

// RegisterPublicRoutes 注册无需登录的管理后台路由
func (h *Handlers) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.POST("/login", h.Auth.Login)
	r.POST("/refresh", h.Auth.RefreshToken)
}

// RegisterRoutes 注册需要管理员登录的路由，r 已挂载 AdminAuth 与操作日志中间件
func (h *Handlers) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/profile", h.Auth.GetCurrentAdmin)

	r.POST("/deposits", h.Deposit.CreateDeposit)
	r.GET("/deposits/:id", h.Deposit.GetDeposit)

	r.GET("/receipts", h.Receipt.ListReceipts)
	r.GET("/receipts/:id", h.Receipt.GetReceipt)
	r.POST("/receipts/:id/approve", h.Receipt.ApproveReceipt)
	r.POST("/receipts/:id/reject", h.Receipt.RejectReceipt)

	r.GET("/commissions/summary", h.Commission.GetSummary)
	r.GET("/commissions/records", h.Commission.ListRecords)

	super := r.Group("")
	super.Use(middleware.RequireSuperAdmin())
	{
		super.GET("/settlement/overview", h.System.GetOverview)
		super.POST("/settlement/replay-events", h.System.ReplayEvents)
		super.GET("/operation-logs", h.System.ListOperationLogs)
	}
}
