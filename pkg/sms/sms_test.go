// Package sms 短信服务单元测试
package sms

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockSender_Send(t *testing.T) {
	sender := NewMockSender()
	ctx := context.Background()

	t.Run("发送短信", func(t *testing.T) {
		err := sender.Send(ctx, "13800138000", "SMS_TEMPLATE", map[string]string{"k": "v"})
		require.NoError(t, err)

		require.Equal(t, 1, sender.Count())
		msg := sender.GetLastMessage()
		assert.Equal(t, "13800138000", msg.Phone)
		assert.Equal(t, "SMS_TEMPLATE", msg.TemplateCode)
		assert.Equal(t, "v", msg.Params["k"])
		assert.NotZero(t, msg.SentAt)
	})

	t.Run("清空记录", func(t *testing.T) {
		sender.Clear()
		assert.Equal(t, 0, sender.Count())
		assert.Nil(t, sender.GetLastMessage())
	})
}

func TestMockSender_ReceiptNotifications(t *testing.T) {
	sender := NewMockSender()
	ctx := context.Background()

	require.NoError(t, sender.SendReceiptApproved(ctx, "13800138000", "RC1", "150.00"))
	msg := sender.GetLastMessage()
	assert.Equal(t, TemplateReceiptApproved, msg.TemplateCode)
	assert.Equal(t, "RC1", msg.Params["receipt_no"])
	assert.Equal(t, "150.00", msg.Params["amount"])

	require.NoError(t, sender.SendReceiptRejected(ctx, "13800138000", "RC2", "截图模糊"))
	msg = sender.GetLastMessage()
	assert.Equal(t, TemplateReceiptRejected, msg.TemplateCode)
	assert.Equal(t, "截图模糊", msg.Params["reason"])
}

func TestNewAliyunSender_Templates(t *testing.T) {
	sender, err := NewAliyunSender(&AliyunConfig{AccessKeyID: "id", AccessKeySecret: "secret", SignName: "TK"})
	require.NoError(t, err)

	sender.SetTemplates(map[string]string{TemplateReceiptApproved: "SMS_100"})
	assert.Equal(t, "SMS_100", sender.templates[TemplateReceiptApproved])
	// 默认模板表不应被修改
	assert.Equal(t, "SMS_xxxxxx", DefaultTemplates[TemplateReceiptApproved])
}

func TestSenderInterface(t *testing.T) {
	var _ Sender = (*MockSender)(nil)
	var _ Sender = (*AliyunSender)(nil)
}
