// Package auth 提供管理员与卖家的登录认证
package auth

import (
	"context"
	stderrors "errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dumeirei/tkshop-backend/internal/common/crypto"
	"github.com/dumeirei/tkshop-backend/internal/common/errors"
	"github.com/dumeirei/tkshop-backend/internal/common/jwt"
	"github.com/dumeirei/tkshop-backend/internal/common/logger"
	"github.com/dumeirei/tkshop-backend/internal/models"
	"github.com/dumeirei/tkshop-backend/internal/repository"
)

// Service 认证服务
type Service struct {
	adminRepo  *repository.AdminRepository
	sellerRepo *repository.SellerRepository
	jwtManager *jwt.Manager
}

// NewService 创建认证服务
func NewService(adminRepo *repository.AdminRepository, sellerRepo *repository.SellerRepository, jwtManager *jwt.Manager) *Service {
	return &Service{
		adminRepo:  adminRepo,
		sellerRepo: sellerRepo,
		jwtManager: jwtManager,
	}
}

var errBadCredentials = errors.ErrPasswordError.WithMessage("账号或密码错误")

// AdminLoginRequest 管理员登录请求
type AdminLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	IP       string `json:"-"`
}

// AdminInfo 管理员信息（不含敏感字段）
type AdminInfo struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

// AdminLoginResponse 管理员登录响应
type AdminLoginResponse struct {
	Admin     *AdminInfo     `json:"admin"`
	TokenPair *jwt.TokenPair `json:"token"`
}

// AdminLogin 管理员登录
func (s *Service) AdminLogin(ctx context.Context, req *AdminLoginRequest) (*AdminLoginResponse, error) {
	admin, err := s.adminRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errBadCredentials
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	if !crypto.VerifyPassword(req.Password, admin.PasswordHash) {
		return nil, errBadCredentials
	}
	if !admin.IsActive() {
		return nil, errors.ErrAccountDisabled
	}

	tokenPair, err := s.jwtManager.GenerateTokenPair(admin.ID, jwt.UserTypeAdmin, admin.Role)
	if err != nil {
		return nil, errors.ErrInternalError.WithError(err)
	}

	if err := s.adminRepo.UpdateLoginInfo(ctx, admin.ID, req.IP); err != nil {
		logger.Warn("update admin login info failed", logger.AdminID(admin.ID), zap.Error(err))
	}

	return &AdminLoginResponse{Admin: toAdminInfo(admin), TokenPair: tokenPair}, nil
}

// SellerLoginRequest 卖家登录请求
type SellerLoginRequest struct {
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// SellerInfo 卖家信息
type SellerInfo struct {
	ID       int64  `json:"id"`
	ShopName string `json:"shop_name"`
	Phone    string `json:"phone"`
}

// SellerLoginResponse 卖家登录响应
type SellerLoginResponse struct {
	Seller    *SellerInfo    `json:"seller"`
	TokenPair *jwt.TokenPair `json:"token"`
}

// SellerLogin 卖家登录
func (s *Service) SellerLogin(ctx context.Context, req *SellerLoginRequest) (*SellerLoginResponse, error) {
	seller, err := s.sellerRepo.GetByPhone(ctx, req.Phone)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errBadCredentials
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	if !crypto.VerifyPassword(req.Password, seller.PasswordHash) {
		return nil, errBadCredentials
	}
	if seller.Status != models.SellerStatusActive {
		return nil, errors.ErrSellerDisabled
	}

	tokenPair, err := s.jwtManager.GenerateTokenPair(seller.ID, jwt.UserTypeSeller, "")
	if err != nil {
		return nil, errors.ErrInternalError.WithError(err)
	}

	if err := s.sellerRepo.UpdateLoginAt(ctx, seller.ID, time.Now()); err != nil {
		logger.Warn("update seller login time failed", logger.SellerID(seller.ID), zap.Error(err))
	}

	return &SellerLoginResponse{Seller: toSellerInfo(seller), TokenPair: tokenPair}, nil
}

// RefreshToken 刷新令牌，账号被禁用后不再签发
func (s *Service) RefreshToken(ctx context.Context, refreshToken, userType string) (*jwt.TokenPair, error) {
	claims, err := s.jwtManager.ParseToken(refreshToken)
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.ErrTokenExpired
		}
		return nil, errors.ErrTokenInvalid
	}
	if claims.UserType != userType {
		return nil, errors.ErrTokenInvalid
	}

	role := ""
	switch userType {
	case jwt.UserTypeAdmin:
		admin, err := s.adminRepo.GetByID(ctx, claims.UserID)
		if err != nil {
			return nil, errors.ErrTokenRefreshFail
		}
		if !admin.IsActive() {
			return nil, errors.ErrAccountDisabled
		}
		role = admin.Role
	case jwt.UserTypeSeller:
		seller, err := s.sellerRepo.GetByID(ctx, claims.UserID)
		if err != nil {
			return nil, errors.ErrTokenRefreshFail
		}
		if seller.Status != models.SellerStatusActive {
			return nil, errors.ErrSellerDisabled
		}
	default:
		return nil, errors.ErrTokenInvalid
	}

	tokenPair, err := s.jwtManager.GenerateTokenPair(claims.UserID, userType, role)
	if err != nil {
		return nil, errors.ErrTokenRefreshFail.WithError(err)
	}
	return tokenPair, nil
}

// GetAdminInfo 获取管理员信息
func (s *Service) GetAdminInfo(ctx context.Context, adminID int64) (*AdminInfo, error) {
	admin, err := s.adminRepo.GetByID(ctx, adminID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrAdminNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return toAdminInfo(admin), nil
}

// GetSellerInfo 获取卖家信息
func (s *Service) GetSellerInfo(ctx context.Context, sellerID int64) (*SellerInfo, error) {
	seller, err := s.sellerRepo.GetByID(ctx, sellerID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrSellerNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return toSellerInfo(seller), nil
}

func toAdminInfo(admin *models.Admin) *AdminInfo {
	return &AdminInfo{
		ID:       admin.ID,
		Username: admin.Username,
		Name:     admin.Name,
		Role:     admin.Role,
	}
}

func toSellerInfo(seller *models.Seller) *SellerInfo {
	return &SellerInfo{
		ID:       seller.ID,
		ShopName: seller.ShopName,
		Phone:    crypto.MaskPhone(seller.Phone),
	}
}
