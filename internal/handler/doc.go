// Package handler 按调用方划分的 HTTP 处理器：seller 为卖家端，admin 为管理后台。
//
// swag init --dir ./internal/handler 要求该目录本身是合法的包。
package handler
