// Package errors 定义业务错误码和错误处理
package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError 应用错误
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 实现 errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Err
}

// New 创建新的应用错误
func New(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包装错误
func Wrap(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithMessage 修改错误消息
func (e *AppError) WithMessage(message string) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: message,
		Err:     e.Err,
	}
}

// WithError 添加原始错误
func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     err,
	}
}

// 通用错误码 (1000-1999)
var (
	ErrUnknown          = New(1000, "未知错误")
	ErrInvalidParams    = New(1001, "参数错误")
	ErrNotFound         = New(1002, "资源不存在")
	ErrAlreadyExists    = New(1003, "资源已存在")
	ErrDatabaseError    = New(1004, "数据库错误")
	ErrCacheError       = New(1005, "缓存错误")
	ErrInternalError    = New(1006, "内部错误")
	ErrExternalService  = New(1007, "外部服务错误")
	ErrRateLimitExceed  = New(1008, "请求过于频繁")
	ErrOperationFailed  = New(1009, "操作失败")
	ErrResourceNotFound = New(1010, "资源不存在")
)

// 认证错误码 (2000-2999)
var (
	ErrUnauthorized     = New(2000, "未登录")
	ErrTokenExpired     = New(2001, "登录已过期")
	ErrTokenInvalid     = New(2002, "无效的令牌")
	ErrTokenRefreshFail = New(2003, "刷新令牌失败")
	ErrPermissionDenied = New(2004, "权限不足")
	ErrAccountDisabled  = New(2005, "账号已禁用")
	ErrAccountLocked    = New(2006, "账号已锁定")
	ErrPasswordError    = New(2007, "密码错误")
	ErrCaptchaError     = New(2008, "验证码错误")
	ErrSmsCodeError     = New(2009, "短信验证码错误")
	ErrSmsCodeExpired   = New(2010, "短信验证码已过期")
	ErrSmsSendFail      = New(2011, "短信发送失败")
	ErrSmsSendTooFast   = New(2012, "短信发送过于频繁")
)

// 卖家/钱包错误码 (3000-3999)
var (
	ErrSellerNotFound      = New(3000, "卖家不存在")
	ErrSellerDisabled      = New(3001, "卖家已禁用")
	ErrWalletNotFound      = New(3002, "钱包不存在")
	ErrBalanceInsufficient = New(3006, "余额不足")
	ErrInvalidAmount       = New(3007, "无效的金额")
)

// 押金错误码 (4000-4999)
var (
	ErrDepositNotFound  = New(4000, "押金记录不存在")
	ErrInvalidSale      = New(4001, "销售数据无效")
	ErrEntryNotSold     = New(4002, "押金记录不处于待支付状态")
	ErrAlreadySettled   = New(4003, "押金已结算")
	ErrEntryNotOwned    = New(4004, "押金记录不属于当前卖家")
	ErrEntryHasReceipt  = New(4005, "押金记录已关联凭证")
	ErrDuplicateEntries = New(4006, "押金记录重复")
)

// 凭证错误码 (5000-5999)
var (
	ErrReceiptNotFound    = New(5000, "凭证不存在")
	ErrReceiptStatus      = New(5001, "凭证状态异常")
	ErrReceiptNotApproved = New(5002, "凭证未审核通过")
	ErrAmountMismatch     = New(5003, "凭证金额与押金合计不一致")
	ErrProofRequired      = New(5004, "USDT 凭证缺少转账截图")
	ErrPaymentMethod      = New(5005, "不支持的支付方式")
	ErrTooManyEntries     = New(5006, "关联押金数量超限")
	ErrProofInvalid       = New(5007, "凭证图片无效")
)

// 结算错误码 (6000-6999)
var (
	ErrSettlementInProgress = New(6000, "凭证正在结算中")
	ErrSettlementFailed     = New(6001, "结算失败")
	ErrEventPublishFailed   = New(6002, "结算事件投递失败")
)

// 佣金错误码 (7000-7999)
var (
	ErrCommissionNotFound = New(7000, "佣金记录不存在")
	ErrAdminNotFound      = New(7001, "管理员不存在")
	ErrReferrerInactive   = New(7002, "推荐管理员不可用")
)

// IsAppError 判断是否为应用错误
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetAppError 获取应用错误
func GetAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return ErrUnknown.WithError(err)
}

// IsCode 判断错误链中是否存在与 target 错误码相同的应用错误
func IsCode(err error, target *AppError) bool {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return false
	}
	return appErr.Code == target.Code
}
