// Package admin 提供管理后台 HTTP Handler
package admin

import (
	"github.com/gin-gonic/gin"

	"github.com/dumeirei/tkshop-backend/internal/common/handler"
	"github.com/dumeirei/tkshop-backend/internal/common/jwt"
	"github.com/dumeirei/tkshop-backend/internal/common/response"
	authService "github.com/dumeirei/tkshop-backend/internal/service/auth"
)

// AuthHandler 管理员认证处理器
type AuthHandler struct {
	authService *authService.Service
}

// NewAuthHandler 创建管理员认证处理器
func NewAuthHandler(authSvc *authService.Service) *AuthHandler {
	return &AuthHandler{authService: authSvc}
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 管理员登录
// @Summary 管理员登录
// @Tags 管理员认证
// @Accept json
// @Produce json
// @Param request body LoginRequest true "请求参数"
// @Success 200 {object} response.Response{data=authService.AdminLoginResponse}
// @Router /api/admin/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	result, err := h.authService.AdminLogin(c.Request.Context(), &authService.AdminLoginRequest{
		Username: req.Username,
		Password: req.Password,
		IP:       c.ClientIP(),
	})
	handler.MustSucceed(c, err, result)
}

// RefreshTokenRequest 刷新 Token 请求
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// RefreshToken 刷新 Token
// @Summary 刷新管理员 Token
// @Tags 管理员认证
// @Accept json
// @Produce json
// @Param request body RefreshTokenRequest true "请求参数"
// @Success 200 {object} response.Response{data=jwt.TokenPair}
// @Router /api/admin/refresh [post]
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	tokenPair, err := h.authService.RefreshToken(c.Request.Context(), req.RefreshToken, jwt.UserTypeAdmin)
	handler.MustSucceed(c, err, tokenPair)
}

// GetCurrentAdmin 获取当前管理员信息
// @Summary 获取当前管理员信息
// @Tags 管理员认证
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=authService.AdminInfo}
// @Router /api/admin/profile [get]
func (h *AuthHandler) GetCurrentAdmin(c *gin.Context) {
	adminID, ok := handler.RequireAdminID(c)
	if !ok {
		return
	}

	info, err := h.authService.GetAdminInfo(c.Request.Context(), adminID)
	handler.MustSucceed(c, err, info)
}
