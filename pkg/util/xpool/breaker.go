package xpool

import (
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerOptions 配置提交熔断器，零值字段取默认值。
type BreakerOptions struct {
	// Name 熔断器名称，传给 OnStateChange。
	Name string
	// Failures 连续 ErrOverload 达到该次数时熔断，默认 5。
	Failures uint32
	// Cooldown 熔断后进入半开试探前的等待时间，默认 1s。
	Cooldown time.Duration
	// Probes 半开状态允许通过的提交数，默认 1。
	Probes uint32
	// OnStateChange 状态变化回调，在提交方 goroutine 上同步调用。
	OnStateChange func(name string, from, to gobreaker.State)
}

func (o BreakerOptions) withDefaults() BreakerOptions {
	if o.Name == "" {
		o.Name = "xpool"
	}
	if o.Failures == 0 {
		o.Failures = 5
	}
	if o.Cooldown <= 0 {
		o.Cooldown = time.Second
	}
	if o.Probes == 0 {
		o.Probes = 1
	}
	return o
}

// BreakerSubmitter 在 Submitter 前加熔断器：池持续过载时快速拒绝，
// 冷却后放行少量试探提交，成功即恢复。
//
// 只有 ErrOverload 计为失败，ErrPoolClosed 等错误原样返回且不影响熔断状态。
type BreakerSubmitter struct {
	next Submitter
	cb   *gobreaker.CircuitBreaker[TaskID]
}

// NewBreakerSubmitter 创建带熔断的 Submitter。
func NewBreakerSubmitter(next Submitter, opts BreakerOptions) (*BreakerSubmitter, error) {
	if next == nil {
		return nil, ErrNilTask
	}
	opts = opts.withDefaults()
	failures := opts.Failures

	st := gobreaker.Settings{
		Name:        opts.Name,
		MaxRequests: opts.Probes,
		Timeout:     opts.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return !errors.Is(err, ErrOverload)
		},
		OnStateChange: opts.OnStateChange,
	}
	return &BreakerSubmitter{
		next: next,
		cb:   gobreaker.NewCircuitBreaker[TaskID](st),
	}, nil
}

// Submit 经熔断器提交任务。熔断时返回包装了 gobreaker 错误的 ErrBreakerOpen。
func (b *BreakerSubmitter) Submit(task Task) (TaskID, error) {
	id, err := b.cb.Execute(func() (TaskID, error) {
		return b.next.Submit(task)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return 0, fmt.Errorf("%w: %w", ErrBreakerOpen, err)
	}
	return id, err
}

// State 返回熔断器当前状态。
func (b *BreakerSubmitter) State() gobreaker.State {
	return b.cb.State()
}
