package mqtt

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// 主题
const (
	TopicSettlementDepositPaid = "settlement/deposit_paid" // 押金结算完成
)

// SettlementMessage 押金结算消息
type SettlementMessage struct {
	MessageID string `json:"message_id"`
	EventID   int64  `json:"event_id"`
	DepositID int64  `json:"deposit_id"`
	ReceiptID int64  `json:"receipt_id"`
	SellerID  int64  `json:"seller_id"`
	Profit    string `json:"profit"`
	Timestamp int64  `json:"timestamp"`
}

// Publisher 结算事件发布接口
type Publisher interface {
	PublishSettlement(ctx context.Context, msg *SettlementMessage) error
}

// publishClient 发布所需的最小客户端能力
type publishClient interface {
	PublishWithContext(ctx context.Context, topic string, payload interface{}) error
}

// EventPublisher 基于 MQTT 客户端的发布器
type EventPublisher struct {
	client      publishClient
	topicPrefix string
	timeout     time.Duration
}

// NewEventPublisher 创建发布器
func NewEventPublisher(client *Client, topicPrefix string, timeout time.Duration) *EventPublisher {
	return newEventPublisher(client, topicPrefix, timeout)
}

func newEventPublisher(client publishClient, topicPrefix string, timeout time.Duration) *EventPublisher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &EventPublisher{client: client, topicPrefix: topicPrefix, timeout: timeout}
}

// Topic 完整主题
func (p *EventPublisher) Topic() string {
	return p.topicPrefix + TopicSettlementDepositPaid
}

// PublishSettlement 发布押金结算消息，缺省字段自动补齐
func (p *EventPublisher) PublishSettlement(ctx context.Context, msg *SettlementMessage) error {
	if msg.MessageID == "" {
		msg.MessageID = uuid.NewString()
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().Unix()
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.client.PublishWithContext(ctx, p.Topic(), msg)
}

// MockPublisher 模拟发布器（用于开发/测试）
type MockPublisher struct {
	mu       sync.Mutex
	Messages []SettlementMessage
	Err      error
}

// NewMockPublisher 创建模拟发布器
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

// PublishSettlement 记录消息，Err 非空时返回错误
func (p *MockPublisher) PublishSettlement(_ context.Context, msg *SettlementMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.Messages = append(p.Messages, *msg)
	return nil
}

// Count 已发布条数
func (p *MockPublisher) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Messages)
}
