package xpool

import (
	"context"
	"errors"
	"time"

	retry "github.com/avast/retry-go/v5"
)

// RetryOptions 配置 SubmitWithRetry 的退避参数，零值字段使用默认值。
type RetryOptions struct {
	// Attempts 总尝试次数（含首次），默认 5。
	Attempts uint
	// Delay 首次重试前的等待，之后指数增长，默认 10ms。
	Delay time.Duration
	// MaxDelay 单次等待上限，默认 1s。
	MaxDelay time.Duration
}

func (o RetryOptions) withDefaults() RetryOptions {
	if o.Attempts == 0 {
		o.Attempts = 5
	}
	if o.Delay <= 0 {
		o.Delay = 10 * time.Millisecond
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = time.Second
	}
	return o
}

// SubmitWithRetry 提交任务，遇到 ErrOverload 时指数退避重试，其他错误立即返回。
// 重试耗尽时返回最后一次的错误；ctx 结束时返回 ctx 的错误。
func SubmitWithRetry(ctx context.Context, s Submitter, task Task, opts RetryOptions) (TaskID, error) {
	if ctx == nil {
		return 0, ErrNilContext
	}
	if s == nil || task == nil {
		return 0, ErrNilTask
	}
	opts = opts.withDefaults()

	return retry.NewWithData[TaskID](
		retry.Context(ctx),
		retry.Attempts(opts.Attempts),
		retry.Delay(opts.Delay),
		retry.MaxDelay(opts.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(func(err error) bool { return errors.Is(err, ErrOverload) }),
		retry.LastErrorOnly(true),
	).Do(func() (TaskID, error) {
		return s.Submit(task)
	})
}
