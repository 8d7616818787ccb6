package seller

import (
	"github.com/gin-gonic/gin"

	"github.com/dumeirei/tkshop-backend/internal/common/handler"
	"github.com/dumeirei/tkshop-backend/internal/common/jwt"
	"github.com/dumeirei/tkshop-backend/internal/common/response"
	authService "github.com/dumeirei/tkshop-backend/internal/service/auth"
)

// RefreshTokenRequest 刷新 Token 请求
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Login 卖家登录
// @Summary 卖家登录
// @Tags 卖家认证
// @Accept json
// @Produce json
// @Param request body authService.SellerLoginRequest true "请求参数"
// @Success 200 {object} response.Response{data=authService.SellerLoginResponse}
// @Router /api/v1/seller/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req authService.SellerLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	result, err := h.authService.SellerLogin(c.Request.Context(), &req)
	handler.MustSucceed(c, err, result)
}

// RefreshToken 刷新 Token
// @Summary 刷新卖家 Token
// @Tags 卖家认证
// @Accept json
// @Produce json
// @Param request body RefreshTokenRequest true "请求参数"
// @Success 200 {object} response.Response{data=jwt.TokenPair}
// @Router /api/v1/seller/refresh [post]
func (h *Handler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	tokenPair, err := h.authService.RefreshToken(c.Request.Context(), req.RefreshToken, jwt.UserTypeSeller)
	handler.MustSucceed(c, err, tokenPair)
}

// GetCurrentSeller 获取当前卖家信息
// @Summary 获取当前卖家信息
// @Tags 卖家认证
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=authService.SellerInfo}
// @Router /api/v1/seller/me [get]
func (h *Handler) GetCurrentSeller(c *gin.Context) {
	sellerID, ok := handler.RequireSellerID(c)
	if !ok {
		return
	}

	info, err := h.authService.GetSellerInfo(c.Request.Context(), sellerID)
	handler.MustSucceed(c, err, info)
}
