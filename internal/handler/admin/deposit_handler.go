package admin

import (
	"github.com/gin-gonic/gin"

	"github.com/dumeirei/tkshop-backend/internal/common/handler"
	"github.com/dumeirei/tkshop-backend/internal/common/response"
	depositService "github.com/dumeirei/tkshop-backend/internal/service/deposit"
)

// DepositHandler 押金台账管理处理器
type DepositHandler struct {
	depositService *depositService.Service
}

// NewDepositHandler 创建押金台账管理处理器
func NewDepositHandler(depositSvc *depositService.Service) *DepositHandler {
	return &DepositHandler{depositService: depositSvc}
}

// CreateDeposit 登记售出记录
// @Summary 登记售出并生成押金台账
// @Description 押金 = 成本价 × 售出数量，待释放利润 = (上架价 - 成本价) × 售出数量
// @Tags 押金管理
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body depositService.Sale true "售出记录"
// @Success 200 {object} response.Response{data=models.DepositLedgerEntry}
// @Router /api/admin/deposits [post]
func (h *DepositHandler) CreateDeposit(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}

	var sale depositService.Sale
	if err := c.ShouldBindJSON(&sale); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	entry, err := h.depositService.CreateEntry(c.Request.Context(), &sale)
	handler.MustSucceed(c, err, entry)
}

// GetDeposit 押金详情
// @Summary 获取押金详情
// @Tags 押金管理
// @Produce json
// @Security Bearer
// @Param id path int true "押金ID"
// @Success 200 {object} response.Response{data=models.DepositLedgerEntry}
// @Router /api/admin/deposits/{id} [get]
func (h *DepositHandler) GetDeposit(c *gin.Context) {
	_, id, ok := handler.RequireAdminAndParseID(c, "押金")
	if !ok {
		return
	}

	entry, err := h.depositService.Get(c.Request.Context(), id)
	handler.MustSucceed(c, err, entry)
}
