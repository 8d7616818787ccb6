// Package qrcode 二维码生成单元测试
package qrcode

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGenerator_Options(t *testing.T) {
	g := NewGenerator()
	assert.Equal(t, 256, g.size)
	assert.Equal(t, Medium, g.recoveryLevel)

	g = NewGenerator(WithSize(128), WithRecoveryLevel(High))
	assert.Equal(t, 128, g.size)
	assert.Equal(t, High, g.recoveryLevel)
}

func TestGenerate(t *testing.T) {
	img, err := NewGenerator(WithSize(200)).Generate("tron:TXYZ?amount=130")
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx())
}

func TestGeneratePNG_Decodable(t *testing.T) {
	data, err := NewGenerator().GeneratePNG("hello")
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(data))
	assert.NoError(t, err)
}

func TestGenerateDataURL(t *testing.T) {
	url, err := NewGenerator(WithSize(64)).GenerateDataURL("TXYZ")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "data:image/png;base64,"))

	_, err = base64.StdEncoding.DecodeString(strings.TrimPrefix(url, "data:image/png;base64,"))
	assert.NoError(t, err)
}

func TestGenerate_EmptyContent(t *testing.T) {
	_, err := NewGenerator().GeneratePNG("")
	assert.Error(t, err)
}

func TestPaymentURI(t *testing.T) {
	assert.Equal(t, "tron:TXYZ?amount=130&token=USDT", PaymentURI("TRC20", "TXYZ", "130"))
	assert.Equal(t, "ethereum:0xabc?amount=1.5&token=USDT", PaymentURI("erc20", "0xabc", "1.5"))
	assert.Equal(t, "ADDR", PaymentURI("BEP20", "ADDR", "10"))
}
