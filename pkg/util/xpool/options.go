package xpool

import "github.com/omeyang/xexec/pkg/observability/xmetrics"

// FailureObserver 接收执行失败的任务 ID 与错误（含 *PanicError），
// 每个失败任务恰好调用一次，调用发生在执行任务的 goroutine 上。
type FailureObserver func(id TaskID, err error)

// RejectObserver 在拒绝策略生效时调用：Abort/Discard/CallerRuns 传入新任务 ID，
// DiscardOldest 传入被挤出的任务 ID。
type RejectObserver func(id TaskID, policy Policy)

// Option 配置 Pool 的可选项。
type Option func(*options)

type options struct {
	name      string
	onFailure FailureObserver
	onReject  RejectObserver
	observer  xmetrics.Observer
}

func defaultOptions() *options {
	return &options{observer: xmetrics.NoopObserver{}}
}

// WithName 设置池名称，会注入到任务 context（xctx.Pool）。
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithFailureObserver 设置任务失败观察者，池本身从不打日志。
func WithFailureObserver(fn FailureObserver) Option {
	return func(o *options) {
		o.onFailure = fn
	}
}

// WithRejectObserver 设置拒绝观察者。
func WithRejectObserver(fn RejectObserver) Option {
	return func(o *options) {
		o.onReject = fn
	}
}

// WithObserver 设置执行观测器，每次任务执行生成一个 xpool/execute 跨度。
// nil 使用空实现。
func WithObserver(observer xmetrics.Observer) Option {
	return func(o *options) {
		if observer == nil {
			observer = xmetrics.NoopObserver{}
		}
		o.observer = observer
	}
}
