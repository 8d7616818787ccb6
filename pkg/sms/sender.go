// Package sms 短信服务，向卖家推送凭证审核结果
package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	openapi "github.com/alibabacloud-go/darabonba-openapi/v2/client"
	dysmsapi "github.com/alibabacloud-go/dysmsapi-20170525/v3/client"
	"github.com/alibabacloud-go/tea/tea"
)

// 模板名称
const (
	TemplateReceiptApproved = "receipt_approved"
	TemplateReceiptRejected = "receipt_rejected"
)

// Sender 短信发送器接口
type Sender interface {
	Send(ctx context.Context, phone, templateCode string, params map[string]string) error
	SendReceiptApproved(ctx context.Context, phone, receiptNo, amount string) error
	SendReceiptRejected(ctx context.Context, phone, receiptNo, reason string) error
}

// AliyunConfig 阿里云短信配置
type AliyunConfig struct {
	AccessKeyID     string
	AccessKeySecret string
	SignName        string
	Endpoint        string
}

// AliyunSender 阿里云短信发送器
type AliyunSender struct {
	client    *dysmsapi.Client
	signName  string
	templates map[string]string
}

// DefaultTemplates 默认模板编码
var DefaultTemplates = map[string]string{
	TemplateReceiptApproved: "SMS_xxxxxx", // 凭证审核通过
	TemplateReceiptRejected: "SMS_xxxxxx", // 凭证被驳回
}

// NewAliyunSender 创建阿里云短信发送器
func NewAliyunSender(config *AliyunConfig) (*AliyunSender, error) {
	cfg := &openapi.Config{
		AccessKeyId:     tea.String(config.AccessKeyID),
		AccessKeySecret: tea.String(config.AccessKeySecret),
	}
	if config.Endpoint != "" {
		cfg.Endpoint = tea.String(config.Endpoint)
	} else {
		cfg.Endpoint = tea.String("dysmsapi.aliyuncs.com")
	}

	client, err := dysmsapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("创建阿里云短信客户端失败: %v", err)
	}

	templates := make(map[string]string, len(DefaultTemplates))
	for k, v := range DefaultTemplates {
		templates[k] = v
	}

	return &AliyunSender{
		client:    client,
		signName:  config.SignName,
		templates: templates,
	}, nil
}

// SetTemplates 设置模板编码
func (s *AliyunSender) SetTemplates(templates map[string]string) {
	for k, v := range templates {
		s.templates[k] = v
	}
}

// Send 发送短信
func (s *AliyunSender) Send(ctx context.Context, phone, templateCode string, params map[string]string) error {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("序列化参数失败: %v", err)
	}

	req := &dysmsapi.SendSmsRequest{
		PhoneNumbers:  tea.String(phone),
		SignName:      tea.String(s.signName),
		TemplateCode:  tea.String(templateCode),
		TemplateParam: tea.String(string(paramsJSON)),
	}

	resp, err := s.client.SendSms(req)
	if err != nil {
		return fmt.Errorf("发送短信失败: %v", err)
	}

	if resp.Body == nil || resp.Body.Code == nil || *resp.Body.Code != "OK" {
		msg := "未知错误"
		if resp.Body != nil && resp.Body.Message != nil {
			msg = *resp.Body.Message
		}
		return fmt.Errorf("发送短信失败: %s", msg)
	}

	return nil
}

// SendReceiptApproved 发送凭证审核通过通知
func (s *AliyunSender) SendReceiptApproved(ctx context.Context, phone, receiptNo, amount string) error {
	templateCode, ok := s.templates[TemplateReceiptApproved]
	if !ok {
		return fmt.Errorf("审核通过模板未配置")
	}
	return s.Send(ctx, phone, templateCode, map[string]string{
		"receipt_no": receiptNo,
		"amount":     amount,
	})
}

// SendReceiptRejected 发送凭证驳回通知
func (s *AliyunSender) SendReceiptRejected(ctx context.Context, phone, receiptNo, reason string) error {
	templateCode, ok := s.templates[TemplateReceiptRejected]
	if !ok {
		return fmt.Errorf("驳回模板未配置")
	}
	return s.Send(ctx, phone, templateCode, map[string]string{
		"receipt_no": receiptNo,
		"reason":     reason,
	})
}

// MockSender 模拟短信发送器（用于开发/测试）
type MockSender struct {
	mu           sync.Mutex
	SentMessages []MockMessage
}

// MockMessage 模拟消息
type MockMessage struct {
	Phone        string
	TemplateCode string
	Params       map[string]string
	SentAt       time.Time
}

// NewMockSender 创建模拟发送器
func NewMockSender() *MockSender {
	return &MockSender{
		SentMessages: make([]MockMessage, 0),
	}
}

// Send 模拟发送
func (s *MockSender) Send(ctx context.Context, phone, templateCode string, params map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SentMessages = append(s.SentMessages, MockMessage{
		Phone:        phone,
		TemplateCode: templateCode,
		Params:       params,
		SentAt:       time.Now(),
	})
	return nil
}

// SendReceiptApproved 模拟发送审核通过通知
func (s *MockSender) SendReceiptApproved(ctx context.Context, phone, receiptNo, amount string) error {
	return s.Send(ctx, phone, TemplateReceiptApproved, map[string]string{"receipt_no": receiptNo, "amount": amount})
}

// SendReceiptRejected 模拟发送驳回通知
func (s *MockSender) SendReceiptRejected(ctx context.Context, phone, receiptNo, reason string) error {
	return s.Send(ctx, phone, TemplateReceiptRejected, map[string]string{"receipt_no": receiptNo, "reason": reason})
}

// Count 已发送条数
func (s *MockSender) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.SentMessages)
}

// GetLastMessage 获取最后发送的消息
func (s *MockSender) GetLastMessage() *MockMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.SentMessages) == 0 {
		return nil
	}
	msg := s.SentMessages[len(s.SentMessages)-1]
	return &msg
}

// Clear 清空消息记录
func (s *MockSender) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SentMessages = make([]MockMessage, 0)
}
