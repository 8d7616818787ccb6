package scheduler

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dumeirei/tkshop-backend/internal/service/settlement"
)

type mockReplayer struct {
	mock.Mock
}

func (m *mockReplayer) ReplayPending(ctx context.Context, limit int) (*settlement.DispatchStats, error) {
	args := m.Called(ctx, limit)
	stats, _ := args.Get(0).(*settlement.DispatchStats)
	return stats, args.Error(1)
}

func TestScheduler_RunsAndStops(t *testing.T) {
	s := NewScheduler(zap.NewNop())
	var runs int32
	s.AddTask("count", 10*time.Millisecond, func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	})
	s.AddTask("disabled", 0, func(ctx context.Context) error {
		t.Fatal("disabled task must not run")
		return nil
	})

	s.Start()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&runs) >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()

	after := atomic.LoadInt32(&runs)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, atomic.LoadInt32(&runs))
}

func TestScheduler_PanicIsRecovered(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	s := NewScheduler(zap.New(core))
	var runs int32
	s.AddTask("boom", 10*time.Millisecond, func(ctx context.Context) error {
		if atomic.AddInt32(&runs, 1) == 1 {
			panic("boom")
		}
		return stderrors.New("still failing")
	})

	s.Start()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&runs) >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()

	assert.Equal(t, 1, logs.FilterMessage("task panicked").Len())
	assert.GreaterOrEqual(t, logs.FilterMessage("task failed").Len(), 1)
}

func TestReplaySettlementEvents(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	replayer := new(mockReplayer)
	replayer.On("ReplayPending", mock.Anything, 50).Return(&settlement.DispatchStats{Delivered: 2, Failed: 1}, nil).Once()
	replayer.On("ReplayPending", mock.Anything, 50).Return(&settlement.DispatchStats{}, nil).Once()

	h := NewTaskHandler(replayer, 50, zap.New(core))
	require.NoError(t, h.ReplaySettlementEvents(context.Background()))
	require.NoError(t, h.ReplaySettlementEvents(context.Background()))

	replayer.AssertExpectations(t)
	entries := logs.FilterMessage("settlement events still undelivered").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1), entries[0].ContextMap()["failed"])
}

func TestReplaySettlementEvents_Error(t *testing.T) {
	replayer := new(mockReplayer)
	replayer.On("ReplayPending", mock.Anything, 10).Return(nil, stderrors.New("db down"))

	h := NewTaskHandler(replayer, 10, nil)
	assert.EqualError(t, h.ReplaySettlementEvents(context.Background()), "db down")
}
