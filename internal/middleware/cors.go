package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORSConfig CORS 配置，未填写的字段取 DefaultCORSConfig 的值
type CORSConfig struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           int // 秒
}

// DefaultCORSConfig 管理后台与卖家端的默认跨域配置
// 凭证上传与审核只用到 GET/POST/PUT；链路追踪头双向放行
func DefaultCORSConfig() *CORSConfig {
	return &CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"Authorization",
			"X-Request-ID",
			"traceparent",
			"tracestate",
		},
		ExposeHeaders: []string{
			"X-Request-ID",
			"traceparent",
			"X-RateLimit-Limit",
			"X-RateLimit-Remaining",
		},
		AllowCredentials: true,
		MaxAge:           86400,
	}
}

func (c *CORSConfig) withDefaults() *CORSConfig {
	defaults := DefaultCORSConfig()
	if c == nil {
		return defaults
	}
	merged := *c
	if len(merged.AllowOrigins) == 0 {
		merged.AllowOrigins = defaults.AllowOrigins
	}
	if len(merged.AllowMethods) == 0 {
		merged.AllowMethods = defaults.AllowMethods
	}
	if len(merged.AllowHeaders) == 0 {
		merged.AllowHeaders = defaults.AllowHeaders
	}
	if len(merged.ExposeHeaders) == 0 {
		merged.ExposeHeaders = defaults.ExposeHeaders
	}
	return &merged
}

// CORS 跨域中间件
func CORS(config *CORSConfig) gin.HandlerFunc {
	config = config.withDefaults()

	allowAllOrigins := len(config.AllowOrigins) == 1 && config.AllowOrigins[0] == "*"
	allowOriginSet := make(map[string]struct{}, len(config.AllowOrigins))
	for _, origin := range config.AllowOrigins {
		allowOriginSet[origin] = struct{}{}
	}
	methods := strings.Join(config.AllowMethods, ", ")
	headers := strings.Join(config.AllowHeaders, ", ")
	exposed := strings.Join(config.ExposeHeaders, ", ")

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		var allowOrigin string
		switch {
		case origin == "":
		case allowAllOrigins && !config.AllowCredentials:
			allowOrigin = "*"
		case allowAllOrigins:
			allowOrigin = origin
		default:
			if _, ok := allowOriginSet[origin]; ok {
				allowOrigin = origin
			}
		}

		if allowOrigin != "" {
			if allowOrigin != "*" {
				c.Header("Vary", "Origin")
			}
			c.Header("Access-Control-Allow-Origin", allowOrigin)
			c.Header("Access-Control-Allow-Methods", methods)
			c.Header("Access-Control-Allow-Headers", headers)
			c.Header("Access-Control-Expose-Headers", exposed)
			if config.AllowCredentials {
				c.Header("Access-Control-Allow-Credentials", "true")
			}
			if config.MaxAge > 0 {
				c.Header("Access-Control-Max-Age", strconv.Itoa(config.MaxAge))
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
