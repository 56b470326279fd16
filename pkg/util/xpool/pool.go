package xpool

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/omeyang/xexec/pkg/context/xctx"
	"github.com/omeyang/xexec/pkg/observability/xmetrics"
)

//go:generate mockgen -source=pool.go -destination=submitter_mock_test.go -package=xpool

// Submitter 是可以接受任务的对象，*Pool 与 *ScheduledPool 均实现。
type Submitter interface {
	Submit(task Task) (TaskID, error)
}

// Pool 是有界工作池。
//
// 队列、存活 worker 数等共享状态由同一把互斥锁保护。
// 空闲 worker 挂在 idle 链表上，每个持有一个容量为 1 的移交通道；
// idle 非空时队列必为空，新任务直接移交给最近空闲的 worker。
type Pool struct {
	cfg  Config
	opts *options

	seq atomic.Uint64

	// baseCtx 是所有任务 context 的父级，非优雅关闭或终止时取消。
	baseCtx context.Context
	cancel  context.CancelFunc
	done    chan struct{}

	mu        sync.Mutex
	state     State
	queue     pendingQueue
	idle      list.List
	live      int
	active    int
	largest   int
	workerSeq int

	submitted uint64
	completed uint64
	failed    uint64
	rejected  uint64
	discarded uint64
	callerRan uint64
}

type worker struct {
	id   int
	ch   chan entry
	elem *list.Element
}

// New 校验配置并创建池。除非设置 PrestartCore，worker 按需创建。
func New(cfg Config, opts ...Option) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	base, _ := xctx.WithPool(context.Background(), o.name)
	ctx, cancel := context.WithCancel(base)
	p := &Pool{
		cfg:     cfg,
		opts:    o,
		baseCtx: ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		queue:   newPendingQueue(cfg),
	}
	if cfg.PrestartCore {
		p.PrestartCoreWorkers()
	}
	return p, nil
}

// Submit 提交任务，按以下顺序决定去向：
//
//  1. 存活 worker 少于 CoreSize：新建 worker 直接执行；
//  2. 队列有空位（或有空闲 worker 等待）：入队；
//  3. 存活 worker 少于 MaxSize：新建弹性 worker 直接执行；
//  4. 交给拒绝策略。
//
// 除 CallerRuns 外 Submit 从不阻塞。返回的 TaskID 即使在出错时也有效，
// 可与拒绝观察者收到的 ID 对应。
func (p *Pool) Submit(task Task) (TaskID, error) {
	if task == nil {
		return 0, ErrNilTask
	}
	e := entry{id: TaskID(p.seq.Add(1)), task: task}
	return e.id, p.submit(e)
}

// SubmitFunc 提交函数任务。
func (p *Pool) SubmitFunc(fn func(ctx context.Context) error) (TaskID, error) {
	if fn == nil {
		return 0, ErrNilTask
	}
	return p.Submit(TaskFunc(fn))
}

func (p *Pool) submit(e entry) error {
	p.mu.Lock()
	if p.state != StateRunning {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	if p.acceptLocked(e) {
		p.mu.Unlock()
		return nil
	}

	switch p.cfg.Rejection {
	case PolicyDiscard:
		p.discarded++
		p.mu.Unlock()
		p.notifyReject(e.id, PolicyDiscard)
		notifyDiscard(e.task, ErrTaskDiscarded)
		return nil

	case PolicyDiscardOldest:
		old, ok := p.queue.pop()
		if !ok {
			// 同步移交队列没有可挤出的任务
			break
		}
		p.discarded++
		accepted := p.acceptLocked(e)
		if !accepted {
			p.rejected++
		}
		p.mu.Unlock()
		p.notifyReject(old.id, PolicyDiscardOldest)
		notifyDiscard(old.task, ErrTaskDiscarded)
		if !accepted {
			p.notifyReject(e.id, PolicyAbort)
			return ErrOverload
		}
		return nil

	case PolicyCallerRuns:
		p.callerRan++
		p.mu.Unlock()
		p.notifyReject(e.id, PolicyCallerRuns)
		err := p.run(e, 0)
		p.mu.Lock()
		p.recordLocked(err)
		p.mu.Unlock()
		return nil
	}

	p.rejected++
	p.mu.Unlock()
	p.notifyReject(e.id, PolicyAbort)
	return ErrOverload
}

// acceptLocked 执行提交决策的前三步，成功时任务归池所有。
func (p *Pool) acceptLocked(e entry) bool {
	switch {
	case p.live < p.cfg.CoreSize:
		p.startWorkerLocked(e)
	case p.offerLocked(e):
		// CoreSize 为 0 时队列里的任务需要一个 worker 来取
		if p.live == 0 {
			p.startWorkerLocked(entry{})
		}
	case p.live < p.cfg.MaxSize:
		p.startWorkerLocked(e)
	default:
		return false
	}
	p.submitted++
	return true
}

func (p *Pool) offerLocked(e entry) bool {
	if back := p.idle.Back(); back != nil {
		w := p.idle.Remove(back).(*worker)
		w.elem = nil
		p.active++
		w.ch <- e
		return true
	}
	if p.cfg.QueueCapacity == Unbounded || p.queue.len() < p.cfg.QueueCapacity {
		p.queue.push(e)
		return true
	}
	return false
}

func (p *Pool) startWorkerLocked(first entry) {
	p.workerSeq++
	w := &worker{id: p.workerSeq, ch: make(chan entry, 1)}
	p.live++
	if p.live > p.largest {
		p.largest = p.live
	}
	if first.task != nil {
		p.active++
	}
	go p.runWorker(w, first)
}

// PrestartCoreWorkers 启动全部尚未创建的常驻 worker，返回新启动的数量。
func (p *Pool) PrestartCoreWorkers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for p.state == StateRunning && p.live < p.cfg.CoreSize {
		p.startWorkerLocked(entry{})
		n++
	}
	return n
}

// run 在 workerID 对应的 worker 上执行任务（0 表示提交方 goroutine）。
func (p *Pool) run(e entry, workerID int) error {
	ctx, _ := xctx.WithTaskID(p.baseCtx, uint64(e.id))
	if workerID > 0 {
		ctx, _ = xctx.WithWorkerID(ctx, workerID)
	}
	ctx, span := xmetrics.Start(ctx, p.opts.observer, xmetrics.SpanOptions{
		Component: "xpool",
		Operation: "execute",
		Kind:      xmetrics.KindConsumer,
		Attrs:     xmetrics.TaskAttrs(ctx),
	})
	err := safeExecute(ctx, e.task)
	span.End(xmetrics.Result{Err: err})
	if err != nil {
		p.notifyFailure(e.id, err)
	}
	return err
}

func (p *Pool) recordLocked(err error) {
	if err != nil {
		p.failed++
	} else {
		p.completed++
	}
}

// 观察者中的 panic 不能带走 worker。
func (p *Pool) notifyFailure(id TaskID, err error) {
	if p.opts.onFailure == nil {
		return
	}
	defer func() { _ = recover() }()
	p.opts.onFailure(id, err)
}

func (p *Pool) notifyReject(id TaskID, policy Policy) {
	if p.opts.onReject == nil {
		return
	}
	defer func() { _ = recover() }()
	p.opts.onReject(id, policy)
}

// Shutdown 停止接受新任务。
//
// graceful 为 true 时 worker 执行完队列中的全部任务后退出；否则清空队列
// 并返回未执行的任务，同时取消任务 context，执行中的任务运行到结束。
// 可以重复调用，优雅关闭之后仍可升级为非优雅关闭。
func (p *Pool) Shutdown(graceful bool) []Task {
	p.mu.Lock()
	if p.state == StateTerminated {
		p.mu.Unlock()
		return nil
	}
	if p.state == StateRunning {
		p.state = StateShuttingDown
	}
	var dropped []entry
	if !graceful && p.state == StateShuttingDown {
		p.state = StateStopping
		for {
			e, ok := p.queue.pop()
			if !ok {
				break
			}
			dropped = append(dropped, e)
		}
		p.discarded += uint64(len(dropped))
		p.cancel()
	}
	// 唤醒空闲 worker 重新检查状态
	for back := p.idle.Back(); back != nil; back = p.idle.Back() {
		w := p.idle.Remove(back).(*worker)
		w.elem = nil
		w.ch <- entry{}
	}
	if p.live == 0 {
		p.terminateLocked()
	}
	p.mu.Unlock()

	if len(dropped) == 0 {
		return nil
	}
	tasks := make([]Task, 0, len(dropped))
	for _, e := range dropped {
		notifyDiscard(e.task, ErrTaskDiscarded)
		tasks = append(tasks, e.task)
	}
	return tasks
}

func (p *Pool) terminateLocked() {
	p.state = StateTerminated
	p.cancel()
	close(p.done)
}

// AwaitTermination 等待池终止，超时返回 false。timeout ≤ 0 时只检查当前状态。
func (p *Pool) AwaitTermination(timeout time.Duration) bool {
	return awaitClosed(p.done, timeout)
}

func awaitClosed(ch <-chan struct{}, timeout time.Duration) bool {
	if timeout <= 0 {
		select {
		case <-ch:
			return true
		default:
			return false
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
		return true
	case <-timer.C:
		return false
	}
}

// Done 返回池终止时关闭的通道。
func (p *Pool) Done() <-chan struct{} {
	return p.done
}

// GracefulStop 优雅关闭并等待终止，ctx 结束时返回 ctx.Err()，池继续在后台排空。
func (p *Pool) GracefulStop(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	p.Shutdown(true)
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close 优雅关闭并阻塞到全部任务执行完毕，实现 io.Closer。
func (p *Pool) Close() error {
	p.Shutdown(true)
	<-p.done
	return nil
}

// State 返回当前生命周期状态。
func (p *Pool) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Config 返回池的配置副本。
func (p *Pool) Config() Config {
	return p.cfg
}

// Name 返回池名称。
func (p *Pool) Name() string {
	return p.opts.name
}

// Stats 返回运行时快照。
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		State:     p.state,
		Live:      p.live,
		Idle:      p.idle.Len(),
		Active:    p.active,
		Largest:   p.largest,
		Queued:    p.queue.len(),
		Submitted: p.submitted,
		Completed: p.completed,
		Failed:    p.failed,
		Rejected:  p.rejected,
		Discarded: p.discarded,
		CallerRan: p.callerRan,
	}
}
