package xpool

import (
	"context"
	"sync"
)

// Future 是 Call 提交的任务结果。
//
// 任务的错误（含 *PanicError）只通过 Get 返回，不会交给失败观察者；
// 任务被拒绝策略或非优雅关闭丢弃时，Get 返回 ErrTaskDiscarded。
type Future[T any] struct {
	id   TaskID
	done chan struct{}
	once sync.Once
	val  T
	err  error
}

// Call 把 fn 作为任务提交给 s，提交失败时返回 nil Future 和提交错误。
func Call[T any](s Submitter, fn func(ctx context.Context) (T, error)) (*Future[T], error) {
	if s == nil || fn == nil {
		return nil, ErrNilTask
	}
	f := &Future[T]{done: make(chan struct{})}
	id, err := s.Submit(&futureTask[T]{f: f, fn: fn})
	if err != nil {
		return nil, err
	}
	f.id = id
	return f, nil
}

// ID 返回任务 ID。
func (f *Future[T]) ID() TaskID {
	return f.id
}

// Done 返回结果就绪时关闭的通道。
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Get 等待结果，ctx 先结束时返回 ctx.Err()。
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	var zero T
	if ctx == nil {
		return zero, ErrNilContext
	}
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (f *Future[T]) complete(v T, err error) {
	f.once.Do(func() {
		f.val, f.err = v, err
		close(f.done)
	})
}

type futureTask[T any] struct {
	f  *Future[T]
	fn func(ctx context.Context) (T, error)
}

func (t *futureTask[T]) Execute(ctx context.Context) error {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			t.f.complete(zero, newPanicError(r))
		}
	}()
	v, err := t.fn(ctx)
	t.f.complete(v, err)
	return nil
}

func (t *futureTask[T]) discard(err error) {
	var zero T
	t.f.complete(zero, err)
}
