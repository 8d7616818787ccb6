// Package middleware 提供依赖仓储层的 HTTP 中间件
package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dumeirei/tkshop-backend/internal/common/jwt"
	"github.com/dumeirei/tkshop-backend/internal/common/logger"
	"github.com/dumeirei/tkshop-backend/internal/models"
	"github.com/dumeirei/tkshop-backend/internal/repository"
)

// OperationLogger 管理员操作日志中间件
type OperationLogger struct {
	repo    *repository.OperationLogRepository
	timeout time.Duration
}

// NewOperationLogger 创建操作日志中间件
func NewOperationLogger(repo *repository.OperationLogRepository) *OperationLogger {
	return &OperationLogger{repo: repo, timeout: 5 * time.Second}
}

// OperationConfig 操作配置
type OperationConfig struct {
	Module     string
	Action     string
	TargetType string
}

// 路由到模块操作的映射，key 为 "METHOD 路由模板"，不含 /api 前缀
var moduleActionMap = map[string]OperationConfig{
	"POST /admin/deposits":                 {Module: "deposit", Action: "create", TargetType: "deposit"},
	"POST /admin/receipts/:id/approve":     {Module: "receipt", Action: "approve", TargetType: "receipt"},
	"POST /admin/receipts/:id/reject":      {Module: "receipt", Action: "reject", TargetType: "receipt"},
	"POST /admin/settlement/replay-events": {Module: "settlement", Action: "replay"},
}

var sensitiveFields = []string{
	"password", "token", "secret", "api_key", "proof",
}

// Log 记录管理员写操作，日志写入异步进行，失败不影响请求
func (l *OperationLogger) Log() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isWriteMethod(c.Request.Method) {
			c.Next()
			return
		}

		var requestBody []byte
		if c.Request.Body != nil && strings.HasPrefix(c.ContentType(), "application/json") {
			requestBody, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))
		}

		c.Next()

		entry := l.buildEntry(c, requestBody)
		if entry == nil {
			return
		}
		ctx := context.WithoutCancel(c.Request.Context())
		go l.save(ctx, entry)
	}
}

// buildEntry 在请求 goroutine 内读取上下文，gin.Context 不可跨 goroutine 使用
func (l *OperationLogger) buildEntry(c *gin.Context, requestBody []byte) *models.OperationLog {
	if l.repo == nil {
		return nil
	}
	adminID, ok := adminIDFromContext(c)
	if !ok {
		return nil
	}

	config := lookupConfig(c.Request.Method, c.FullPath())
	entry := &models.OperationLog{
		AdminID:    adminID,
		Module:     config.Module,
		Action:     config.Action,
		StatusCode: c.Writer.Status(),
		IP:         c.ClientIP(),
	}
	if ua := c.Request.UserAgent(); ua != "" {
		entry.UserAgent = &ua
	}
	if config.TargetType != "" {
		targetType := config.TargetType
		entry.TargetType = &targetType
		if id, err := strconv.ParseInt(c.Param("id"), 10, 64); err == nil {
			entry.TargetID = &id
		}
	}
	if len(requestBody) > 0 {
		var data interface{}
		if err := json.Unmarshal(requestBody, &data); err == nil {
			if m, ok := filterSensitiveData(data).(map[string]interface{}); ok {
				entry.Request = models.JSON(m)
			}
		}
	}
	return entry
}

func (l *OperationLogger) save(ctx context.Context, entry *models.OperationLog) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	if err := l.repo.Create(ctx, entry); err != nil {
		logger.Warn("save operation log failed",
			logger.AdminID(entry.AdminID),
			logger.Module(entry.Module),
			logger.Action(entry.Action),
			zap.Error(err),
		)
	}
}

func isWriteMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func adminIDFromContext(c *gin.Context) (int64, bool) {
	if c.GetString("user_type") != jwt.UserTypeAdmin {
		return 0, false
	}
	v, ok := c.Get("user_id")
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok && id > 0
}

func lookupConfig(method, fullPath string) OperationConfig {
	path := strings.TrimPrefix(fullPath, "/api")
	if config, ok := moduleActionMap[method+" "+path]; ok {
		return config
	}

	module := "unknown"
	switch {
	case strings.Contains(path, "/deposits"):
		module = "deposit"
	case strings.Contains(path, "/receipts"):
		module = "receipt"
	case strings.Contains(path, "/commission"):
		module = "commission"
	case strings.Contains(path, "/settlement"):
		module = "settlement"
	case strings.Contains(path, "/auth"):
		module = "auth"
	}

	action := "unknown"
	switch method {
	case http.MethodPost:
		action = "create"
	case http.MethodPut, http.MethodPatch:
		action = "update"
	case http.MethodDelete:
		action = "delete"
	}
	return OperationConfig{Module: module, Action: action}
}

// filterSensitiveData 递归脱敏
func filterSensitiveData(data interface{}) interface{} {
	switch v := data.(type) {
	case map[string]interface{}:
		result := make(map[string]interface{}, len(v))
		for key, value := range v {
			if isSensitive(key) {
				result[key] = "***"
				continue
			}
			result[key] = filterSensitiveData(value)
		}
		return result
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, item := range v {
			result[i] = filterSensitiveData(item)
		}
		return result
	default:
		return data
	}
}

func isSensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, sf := range sensitiveFields {
		if strings.Contains(lower, sf) {
			return true
		}
	}
	return false
}
