// Package response 提供统一的 API 响应格式
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequestIDKey 请求 ID 在 gin 上下文中的键，由 RequestID 中间件写入
const RequestIDKey = "request_id"

// Response API 统一响应结构
// 业务错误同样返回 HTTP 200，以 code 区分；request_id 便于对账时定位结算日志
type Response struct {
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// PageData 分页数据结构
type PageData struct {
	List     interface{} `json:"list"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

func write(c *gin.Context, status int, resp Response) {
	resp.RequestID = c.GetString(RequestIDKey)
	c.JSON(status, resp)
}

func abort(c *gin.Context, status int, message, fallback string) {
	if message == "" {
		message = fallback
	}
	c.Abort()
	write(c, status, Response{Code: status, Message: message})
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	write(c, http.StatusOK, Response{Code: 0, Message: "success", Data: data})
}

// SuccessPage 分页成功响应
func SuccessPage(c *gin.Context, list interface{}, total int64, page, pageSize int) {
	write(c, http.StatusOK, Response{
		Code:    0,
		Message: "success",
		Data: PageData{
			List:     list,
			Total:    total,
			Page:     page,
			PageSize: pageSize,
		},
	})
}

// Error 业务错误响应
func Error(c *gin.Context, code int, message string) {
	write(c, http.StatusOK, Response{Code: code, Message: message})
}

// BadRequest 请求参数错误
func BadRequest(c *gin.Context, message string) {
	write(c, http.StatusBadRequest, Response{Code: http.StatusBadRequest, Message: message})
}

// Unauthorized 未授权，并中止后续处理
func Unauthorized(c *gin.Context, message string) {
	abort(c, http.StatusUnauthorized, message, "unauthorized")
}

// Forbidden 禁止访问，并中止后续处理
func Forbidden(c *gin.Context, message string) {
	abort(c, http.StatusForbidden, message, "forbidden")
}

// InternalError 服务器内部错误
func InternalError(c *gin.Context, message string) {
	if message == "" {
		message = "internal server error"
	}
	write(c, http.StatusInternalServerError, Response{Code: http.StatusInternalServerError, Message: message})
}

// TooManyRequests 请求过于频繁，并中止后续处理
func TooManyRequests(c *gin.Context, message string) {
	abort(c, http.StatusTooManyRequests, message, "too many requests")
}
