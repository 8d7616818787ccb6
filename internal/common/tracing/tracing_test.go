// Package tracing 提供 OpenTelemetry 分布式追踪单元测试
package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInit_Disabled(t *testing.T) {
	tracer, err := Init(&Config{ServiceName: "disabled", Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, tracer.provider)

	ctx, span := tracer.StartSpan(context.Background(), "settle", WithReceiptID(1))
	defer span.End()
	assert.False(t, span.IsRecording())
	assert.NotNil(t, ctx)
}

func TestInit_StdoutExporter(t *testing.T) {
	tracer, err := Init(&Config{ServiceName: "tkshop-test", SampleRate: 1, Enabled: true})
	require.NoError(t, err)
	require.NotNil(t, tracer.provider)
	assert.NoError(t, tracer.Shutdown(context.Background()))
}

func TestGetTracer_Uninitialized(t *testing.T) {
	defaultTracer = nil
	tracer := GetTracer()
	_, span := tracer.Start(context.Background(), "noop")
	span.End()
	assert.False(t, span.IsRecording())
}

func TestNewWithProvider_RecordsAttributes(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := NewWithProvider(provider, "tkshop-test")

	ctx, span := tracer.StartSpan(context.Background(), "settlement.settle", WithReceiptID(9), WithSellerID(3))
	SetAttributes(ctx, AttrProcessed.Int(2), AttrSkipped.Int(1))
	AddEvent(ctx, "entry.skipped", WithDepositID(5))
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "settlement.settle", ended[0].Name())

	attrs := map[string]int64{}
	for _, kv := range ended[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInt64()
	}
	assert.Equal(t, int64(9), attrs["receipt.id"])
	assert.Equal(t, int64(3), attrs["seller.id"])
	assert.Equal(t, int64(2), attrs["settlement.processed"])
	require.Len(t, ended[0].Events(), 1)
	assert.Equal(t, "entry.skipped", ended[0].Events()[0].Name)
}
