package xpool

import (
	"context"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestBreakerSubmitter_TripsOnOverload(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := NewMockSubmitter(ctrl)

	var transitions []gobreaker.State
	b, err := NewBreakerSubmitter(next, BreakerOptions{
		Failures: 2,
		Cooldown: 50 * time.Millisecond,
		OnStateChange: func(_ string, _, to gobreaker.State) {
			transitions = append(transitions, to)
		},
	})
	require.NoError(t, err)

	next.EXPECT().Submit(gomock.Any()).Return(TaskID(0), ErrOverload).Times(2)
	for range 2 {
		_, err := b.Submit(noopRetryTask)
		assert.ErrorIs(t, err, ErrOverload)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	// 打开状态下不会调用底层 Submitter
	_, err = b.Submit(noopRetryTask)
	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)

	time.Sleep(80 * time.Millisecond)
	next.EXPECT().Submit(gomock.Any()).Return(TaskID(7), nil)
	id, err := b.Submit(noopRetryTask)
	require.NoError(t, err)
	assert.Equal(t, TaskID(7), id)
	assert.Equal(t, gobreaker.StateClosed, b.State())

	assert.Equal(t, []gobreaker.State{gobreaker.StateOpen, gobreaker.StateHalfOpen, gobreaker.StateClosed}, transitions)
}

func TestBreakerSubmitter_OtherErrorsDoNotTrip(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := NewMockSubmitter(ctrl)
	b, err := NewBreakerSubmitter(next, BreakerOptions{Failures: 1})
	require.NoError(t, err)

	next.EXPECT().Submit(gomock.Any()).Return(TaskID(0), ErrPoolClosed).Times(3)
	for range 3 {
		_, err := b.Submit(noopRetryTask)
		assert.ErrorIs(t, err, ErrPoolClosed)
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreakerSubmitter_OpenIsNotRetried(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := NewMockSubmitter(ctrl)
	b, err := NewBreakerSubmitter(next, BreakerOptions{Failures: 1, Cooldown: time.Minute})
	require.NoError(t, err)

	next.EXPECT().Submit(gomock.Any()).Return(TaskID(0), ErrOverload).Times(1)
	_, err = SubmitWithRetry(context.Background(), b, noopRetryTask, RetryOptions{Attempts: 5, Delay: time.Millisecond})
	assert.ErrorIs(t, err, ErrBreakerOpen)
}

func TestBreakerSubmitter_RealPool(t *testing.T) {
	p := newTestPool(t, Config{MaxSize: 1, QueueCapacity: 0})
	b, err := NewBreakerSubmitter(p, BreakerOptions{Failures: 1, Cooldown: time.Minute})
	require.NoError(t, err)

	g := newGate()
	started := make(chan struct{}, 1)
	_, err = b.Submit(blockingTask(g, started))
	require.NoError(t, err)
	waitStarted(t, started, 1)

	_, err = b.Submit(noopRetryTask)
	assert.ErrorIs(t, err, ErrOverload)
	_, err = b.Submit(noopRetryTask)
	assert.ErrorIs(t, err, ErrBreakerOpen)
	g.open()
}

func TestNewBreakerSubmitter_Nil(t *testing.T) {
	_, err := NewBreakerSubmitter(nil, BreakerOptions{})
	assert.ErrorIs(t, err, ErrNilTask)

	o := BreakerOptions{}.withDefaults()
	assert.Equal(t, "xpool", o.Name)
	assert.Equal(t, uint32(5), o.Failures)
	assert.Equal(t, time.Second, o.Cooldown)
	assert.Equal(t, uint32(1), o.Probes)
}
