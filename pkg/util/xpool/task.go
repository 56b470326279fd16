package xpool

import "context"

// Task 是提交给池的工作单元。
//
// Execute 返回的错误（以及 panic）由池捕获并交给失败观察者，
// 不会影响执行它的 worker。ctx 在非优雅关闭时取消，任务应自行配合退出。
type Task interface {
	Execute(ctx context.Context) error
}

// TaskFunc 将函数适配为 Task。
type TaskFunc func(ctx context.Context) error

// Execute 实现 Task。
func (f TaskFunc) Execute(ctx context.Context) error {
	return f(ctx)
}

// TaskID 是池内单调递增的任务标识，提交时分配，从 1 开始。
type TaskID uint64

// Prioritized 由需要参与优先级排序的任务实现，数值越大越先执行。
type Prioritized interface {
	Priority() int
}

// discarder 由需要感知"被丢弃"的内部任务实现（Future、调度任务）。
type discarder interface {
	discard(err error)
}

// entry 是排队中的任务及其 ID。task 为 nil 表示唤醒信号。
type entry struct {
	id   TaskID
	task Task
}

func notifyDiscard(t Task, err error) {
	if d, ok := t.(discarder); ok {
		d.discard(err)
	}
}

// safeExecute 执行任务并把 panic 转换为 *PanicError。
func safeExecute(ctx context.Context, t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newPanicError(r)
		}
	}()
	return t.Execute(ctx)
}
