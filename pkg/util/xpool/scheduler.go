package xpool

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// ScheduleState 是调度任务的状态。
type ScheduleState int

const (
	// SchedulePending 等待到期。
	SchedulePending ScheduleState = iota
	// ScheduleDispatched 已提交给池，尚未执行完。
	ScheduleDispatched
	// ScheduleCompleted 一次性任务已执行完。
	ScheduleCompleted
	// ScheduleCancelled 被 Cancel 或关闭取消。
	ScheduleCancelled
	// ScheduleFailed 提交被拒绝或被丢弃，Err 返回原因。
	ScheduleFailed
)

func (s ScheduleState) String() string {
	switch s {
	case SchedulePending:
		return "pending"
	case ScheduleDispatched:
		return "dispatched"
	case ScheduleCompleted:
		return "completed"
	case ScheduleCancelled:
		return "cancelled"
	case ScheduleFailed:
		return "failed"
	default:
		return fmt.Sprintf("ScheduleState(%d)", int(s))
	}
}

// fixedRate 以固定周期触发，实现 cron.Schedule。
type fixedRate time.Duration

func (f fixedRate) Next(t time.Time) time.Time {
	return t.Add(time.Duration(f))
}

// Every 返回周期为 d 的 cron.Schedule，不像 cron.Every 那样取整到秒。
func Every(d time.Duration) cron.Schedule {
	return fixedRate(d)
}

// ScheduledPool 在 Pool 之上增加延迟与周期调度。
//
// 一个专用的分发 goroutine 维护按到期时间排序的堆，到期的任务通过
// Pool.Submit 提交，因此同样遵循提交决策与拒绝策略。
type ScheduledPool struct {
	pool *Pool

	mu     sync.Mutex
	timers timerHeap
	seq    uint64
	closed bool

	wake     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	// dispatched 在分发 goroutine 退出时关闭
	dispatched chan struct{}
}

// NewScheduled 创建带调度能力的池。
func NewScheduled(cfg Config, opts ...Option) (*ScheduledPool, error) {
	p, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	s := &ScheduledPool{
		pool:       p,
		wake:       make(chan struct{}, 1),
		stop:       make(chan struct{}),
		dispatched: make(chan struct{}),
	}
	go s.dispatch()
	return s, nil
}

// ScheduledTask 是调度任务的句柄。
type ScheduledTask struct {
	s        *ScheduledPool
	task     Task
	schedule cron.Schedule // 一次性任务为 nil

	// 以下字段由 s.mu 保护
	at     time.Time
	seq    uint64
	index  int
	state  ScheduleState
	err    error
	lastID TaskID
	runs   int
	done   chan struct{}
	closed bool
}

// ScheduleAfter 在 delay 之后把 task 提交给池。
func (s *ScheduledPool) ScheduleAfter(task Task, delay time.Duration) (*ScheduledTask, error) {
	if task == nil {
		return nil, ErrNilTask
	}
	if delay < 0 {
		return nil, ErrInvalidDelay
	}
	return s.add(task, nil, time.Now().Add(delay))
}

// ScheduleEvery 在 initialDelay 之后首次执行，此后按 period 周期执行。
// 上一次执行结束后才安排下一次，错过的周期不补跑。
func (s *ScheduledPool) ScheduleEvery(task Task, initialDelay, period time.Duration) (*ScheduledTask, error) {
	if task == nil {
		return nil, ErrNilTask
	}
	if initialDelay < 0 || period <= 0 {
		return nil, ErrInvalidDelay
	}
	return s.add(task, Every(period), time.Now().Add(initialDelay))
}

// ScheduleCron 按标准五段式 cron 表达式（或 @every/@daily 等描述符）周期执行。
func (s *ScheduledPool) ScheduleCron(spec string, task Task) (*ScheduledTask, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("xpool: parse cron spec %q: %w", spec, err)
	}
	return s.Schedule(task, sched)
}

// Schedule 按任意 cron.Schedule 周期执行，首次执行时间为 sched.Next(now)。
func (s *ScheduledPool) Schedule(task Task, sched cron.Schedule) (*ScheduledTask, error) {
	if task == nil {
		return nil, ErrNilTask
	}
	if sched == nil {
		return nil, ErrInvalidDelay
	}
	first := sched.Next(time.Now())
	if first.IsZero() {
		return nil, ErrInvalidDelay
	}
	return s.add(task, sched, first)
}

func (s *ScheduledPool) add(task Task, sched cron.Schedule, at time.Time) (*ScheduledTask, error) {
	st := &ScheduledTask{
		s:        s,
		task:     task,
		schedule: sched,
		at:       at,
		done:     make(chan struct{}),
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSchedulerClosed
	}
	s.pushLocked(st)
	s.mu.Unlock()
	return st, nil
}

func (s *ScheduledPool) pushLocked(st *ScheduledTask) {
	s.seq++
	st.seq = s.seq
	st.state = SchedulePending
	heap.Push(&s.timers, st)
	// 新任务成为堆顶时分发 goroutine 需要重新计时
	if st.index == 0 {
		select {
		case s.wake <- struct{}{}:
		default:
		}
	}
}

// dispatch 是分发 goroutine：取出全部到期任务提交给池，然后睡到下一个到期时间。
func (s *ScheduledPool) dispatch() {
	defer close(s.dispatched)
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		s.mu.Lock()
		now := time.Now()
		var due []*ScheduledTask
		for len(s.timers) > 0 && !s.timers[0].at.After(now) {
			st := heap.Pop(&s.timers).(*ScheduledTask)
			st.state = ScheduleDispatched
			due = append(due, st)
		}
		wait := time.Duration(-1)
		if len(s.timers) > 0 {
			wait = s.timers[0].at.Sub(now)
		}
		s.mu.Unlock()

		for _, st := range due {
			s.submit(st)
		}
		if len(due) > 0 {
			continue
		}

		var fire <-chan time.Time
		if wait >= 0 {
			timer.Reset(wait)
			fire = timer.C
		}
		select {
		case <-s.stop:
			return
		case <-s.wake:
		case <-fire:
		}
		timer.Stop()
	}
}

func (s *ScheduledPool) submit(st *ScheduledTask) {
	id, err := s.pool.Submit(scheduledRun{st: st})
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case err == nil:
		st.lastID = id
	case s.closed && errors.Is(err, ErrPoolClosed):
		// 出堆后、提交前调度器被关闭
		st.finishLocked(ScheduleCancelled, nil)
	default:
		st.finishLocked(ScheduleFailed, err)
	}
}

// scheduledRun 是一次到期执行，提交给池的实际任务。
type scheduledRun struct {
	st *ScheduledTask
}

func (r scheduledRun) Execute(ctx context.Context) error {
	if !r.st.s.beforeRun(r.st) {
		return nil
	}
	defer r.st.s.afterRun(r.st)
	return r.st.task.Execute(ctx)
}

func (r scheduledRun) unwrap() Task {
	return r.st.task
}

func (r scheduledRun) discard(err error) {
	r.st.s.mu.Lock()
	defer r.st.s.mu.Unlock()
	if r.st.state == ScheduleCancelled {
		r.st.finishLocked(ScheduleCancelled, nil)
		return
	}
	r.st.finishLocked(ScheduleFailed, err)
}

// beforeRun 报告排队中的执行是否仍应运行；在队列中被取消的周期任务就此结束。
func (s *ScheduledPool) beforeRun(st *ScheduledTask) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.state == ScheduleCancelled {
		st.finishLocked(ScheduleCancelled, nil)
		return false
	}
	return true
}

// afterRun 在一次执行结束后重新安排周期任务，或结束一次性任务。
func (s *ScheduledPool) afterRun(st *ScheduledTask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st.runs++
	if st.state != ScheduleDispatched {
		// 执行期间被取消
		st.finishLocked(st.state, st.err)
		return
	}
	if st.schedule == nil {
		st.finishLocked(ScheduleCompleted, nil)
		return
	}
	if s.closed {
		st.finishLocked(ScheduleCancelled, nil)
		return
	}
	now := time.Now()
	next := st.schedule.Next(st.at)
	if next.Before(now) {
		next = st.schedule.Next(now)
	}
	if next.IsZero() {
		st.finishLocked(ScheduleCompleted, nil)
		return
	}
	st.at = next
	s.pushLocked(st)
}

func (st *ScheduledTask) finishLocked(state ScheduleState, err error) {
	st.state = state
	st.err = err
	if !st.closed {
		st.closed = true
		close(st.done)
	}
}

// Cancel 取消尚未分发的执行。一次性任务已分发时返回 false；
// 周期任务总是可以取消：还在池队列中的那次执行不再运行，
// 已经开始的那次执行会运行到结束。
func (st *ScheduledTask) Cancel() bool {
	s := st.s
	s.mu.Lock()
	defer s.mu.Unlock()
	switch st.state {
	case SchedulePending:
		if st.index >= 0 {
			heap.Remove(&s.timers, st.index)
		}
		st.finishLocked(ScheduleCancelled, nil)
		return true
	case ScheduleDispatched:
		if st.schedule == nil {
			return false
		}
		// done 在本次执行结束时关闭
		st.state = ScheduleCancelled
		return true
	default:
		return false
	}
}

// Done 返回任务不会再执行时关闭的通道：一次性任务执行完毕、被取消、
// 被拒绝或丢弃，周期任务被取消或调度器关闭。
func (st *ScheduledTask) Done() <-chan struct{} {
	return st.done
}

// State 返回当前状态。
func (st *ScheduledTask) State() ScheduleState {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	return st.state
}

// Err 返回 ScheduleFailed 状态的原因。
func (st *ScheduledTask) Err() error {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	return st.err
}

// NextRun 返回下一次预定的执行时间，任务结束后为最后一次的时间。
func (st *ScheduledTask) NextRun() time.Time {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	return st.at
}

// Runs 返回已执行完的次数。
func (st *ScheduledTask) Runs() int {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	return st.runs
}

// LastID 返回最近一次提交给池时分配的 TaskID。
func (st *ScheduledTask) LastID() TaskID {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	return st.lastID
}

// Submit 立即提交任务，等同于 Pool.Submit。
func (s *ScheduledPool) Submit(task Task) (TaskID, error) {
	return s.pool.Submit(task)
}

// SubmitFunc 立即提交函数任务。
func (s *ScheduledPool) SubmitFunc(fn func(ctx context.Context) error) (TaskID, error) {
	return s.pool.SubmitFunc(fn)
}

// Pool 返回底层池。
func (s *ScheduledPool) Pool() *Pool {
	return s.pool
}

// Stats 返回底层池的快照。
func (s *ScheduledPool) Stats() Stats {
	return s.pool.Stats()
}

// Pending 返回尚未到期的调度任务数。
func (s *ScheduledPool) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Shutdown 取消全部未到期的调度，停止分发 goroutine，再关闭底层池。
// 返回值与 Pool.Shutdown 相同，调度任务以用户提交的原始 Task 返回。
func (s *ScheduledPool) Shutdown(graceful bool) []Task {
	s.mu.Lock()
	s.closed = true
	for len(s.timers) > 0 {
		st := heap.Pop(&s.timers).(*ScheduledTask)
		st.finishLocked(ScheduleCancelled, nil)
	}
	s.mu.Unlock()
	s.stopOnce.Do(func() { close(s.stop) })

	tasks := s.pool.Shutdown(graceful)
	for i, t := range tasks {
		tasks[i] = unwrapTask(t)
	}
	return tasks
}

// AwaitTermination 等待分发 goroutine 与底层池都结束。
func (s *ScheduledPool) AwaitTermination(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	if !awaitClosed(s.dispatched, timeout) {
		return false
	}
	return s.pool.AwaitTermination(time.Until(deadline))
}

// Done 返回底层池终止时关闭的通道。
func (s *ScheduledPool) Done() <-chan struct{} {
	return s.pool.Done()
}

// GracefulStop 优雅关闭并等待终止。
func (s *ScheduledPool) GracefulStop(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	s.Shutdown(true)
	select {
	case <-s.dispatched:
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.pool.GracefulStop(ctx)
}

// Close 优雅关闭并阻塞到终止。
func (s *ScheduledPool) Close() error {
	s.Shutdown(true)
	<-s.dispatched
	return s.pool.Close()
}

// timerHeap 按 (at, seq) 排序。
type timerHeap []*ScheduledTask

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].seq < h[j].seq
	}
	return h[i].at.Before(h[j].at)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	st := x.(*ScheduledTask)
	st.index = len(*h)
	*h = append(*h, st)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	st := old[n-1]
	old[n-1] = nil
	st.index = -1
	*h = old[:n-1]
	return st
}
