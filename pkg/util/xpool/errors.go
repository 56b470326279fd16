package xpool

import (
	"errors"
	"fmt"
	"runtime/debug"
)

var (
	// ErrInvalidConfig 表示配置非法，由 *ConfigError 包装。
	ErrInvalidConfig = errors.New("xpool: invalid config")

	// ErrNilTask 表示提交的任务为 nil。
	ErrNilTask = errors.New("xpool: nil task")

	// ErrPoolClosed 表示池已关闭，不再接受任务。
	ErrPoolClosed = errors.New("xpool: pool closed")

	// ErrOverload 表示池已饱和（队列已满且 worker 数达到上限），任务被拒绝。
	ErrOverload = errors.New("xpool: pool overloaded")

	// ErrTaskDiscarded 表示任务被拒绝策略或非优雅关闭丢弃，
	// 通过 Future 和 ScheduledTask 报告。
	ErrTaskDiscarded = errors.New("xpool: task discarded")

	// ErrNilContext 表示传入的 context 为 nil。
	ErrNilContext = errors.New("xpool: nil context")

	// ErrInvalidDelay 表示延迟为负数或周期不是正数。
	ErrInvalidDelay = errors.New("xpool: invalid delay")

	// ErrBreakerOpen 表示提交熔断器处于打开状态，提交被快速拒绝，不会重试。
	ErrBreakerOpen = errors.New("xpool: submit breaker open")

	// ErrSchedulerClosed 表示调度器已关闭，可用 errors.Is 匹配 ErrPoolClosed。
	ErrSchedulerClosed = fmt.Errorf("xpool: scheduler closed: %w", ErrPoolClosed)
)

// ConfigError 描述一个非法的配置字段。
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("xpool: invalid config: %s %s", e.Field, e.Reason)
}

// Unwrap 返回 ErrInvalidConfig。
func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// PanicError 是任务 panic 时交给失败观察者的错误。
type PanicError struct {
	Value any
	Stack []byte
}

func newPanicError(v any) *PanicError {
	return &PanicError{Value: v, Stack: debug.Stack()}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("xpool: task panic: %v", e.Value)
}

// Unwrap 在 panic 值本身是 error 时返回它。
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
