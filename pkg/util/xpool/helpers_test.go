package xpool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const waitTimeout = 5 * time.Second

// newTestPool 创建池并在测试结束时强制关闭、等待终止。
func newTestPool(t *testing.T, cfg Config, opts ...Option) *Pool {
	t.Helper()
	p, err := New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		p.Shutdown(false)
		require.True(t, p.AwaitTermination(waitTimeout), "pool did not terminate")
	})
	return p
}

// gate 阻塞任务直到 open 被调用。
type gate struct {
	ch   chan struct{}
	once sync.Once
}

func newGate() *gate {
	return &gate{ch: make(chan struct{})}
}

func (g *gate) open() {
	g.once.Do(func() { close(g.ch) })
}

func (g *gate) wait(ctx context.Context) error {
	select {
	case <-g.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// recorder 记录任务执行顺序与次数。
type recorder struct {
	mu    sync.Mutex
	order []int
	count map[int]int
}

func newRecorder() *recorder {
	return &recorder{count: make(map[int]int)}
}

func (r *recorder) task(n int) Task {
	return TaskFunc(func(context.Context) error {
		r.add(n)
		return nil
	})
}

func (r *recorder) add(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, n)
	r.count[n]++
}

func (r *recorder) snapshot() ([]int, map[int]int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := make(map[int]int, len(r.count))
	for k, v := range r.count {
		count[k] = v
	}
	return append([]int(nil), r.order...), count
}

// blockingTask 通知已开始，然后等待 gate。
func blockingTask(g *gate, started chan<- struct{}) Task {
	return TaskFunc(func(ctx context.Context) error {
		if started != nil {
			started <- struct{}{}
		}
		return g.wait(ctx)
	})
}

func waitStarted(t *testing.T, started <-chan struct{}, n int) {
	t.Helper()
	for range n {
		select {
		case <-started:
		case <-time.After(waitTimeout):
			t.Fatal("task did not start")
		}
	}
}
