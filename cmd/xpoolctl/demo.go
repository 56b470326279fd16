package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/xexec/pkg/observability/xlog"
	"github.com/omeyang/xexec/pkg/util/xpool"
)

// demoOptions 是 demo 命令的参数。
type demoOptions struct {
	tasks   int
	delay   time.Duration
	workers int
	pool    xpool.Config
}

// lifecycle 是 *xpool.Pool 与 *xpool.ScheduledPool 共有的关闭与统计能力。
type lifecycle interface {
	xpool.Submitter
	Shutdown(graceful bool) []xpool.Task
	GracefulStop(ctx context.Context) error
	AwaitTermination(timeout time.Duration) bool
	Stats() xpool.Stats
}

func demoOptionsFrom(cmd *cli.Command) (demoOptions, error) {
	opts := demoOptions{
		tasks:   cmd.Int("tasks"),
		delay:   cmd.Duration("delay"),
		workers: cmd.Int("workers"),
		pool: xpool.Config{
			CoreSize:      cmd.Int("core"),
			MaxSize:       cmd.Int("max"),
			KeepAlive:     time.Second,
			QueueCapacity: cmd.Int("queue"),
		},
	}
	switch {
	case opts.tasks < 1:
		return opts, newUsageError("--tasks 必须 >= 1，实际为 %d", opts.tasks)
	case opts.delay < 0:
		return opts, newUsageError("--delay 不能为负数: %s", opts.delay)
	case opts.workers < 1 || opts.workers > xpool.MaxPoolSize:
		return opts, newUsageError("--workers 超出范围 [1, %d]: %d", xpool.MaxPoolSize, opts.workers)
	}
	if err := opts.pool.Rejection.UnmarshalText([]byte(cmd.String("policy"))); err != nil {
		return opts, newUsageError("--policy: %v", err)
	}
	if err := opts.pool.QueueOrder.UnmarshalText([]byte(cmd.String("order"))); err != nil {
		return opts, newUsageError("--order: %v", err)
	}
	return opts, nil
}

// runDemo 按 kind 创建池并运行一批演示任务，结果写入 out。
func runDemo(ctx context.Context, kind string, opts demoOptions, logger xlog.Logger, out io.Writer) error {
	poolOpts := demoPoolOptions(ctx, "demo-"+kind, logger)

	var (
		p   *xpool.Pool
		err error
	)
	switch kind {
	case "fixed":
		p, err = xpool.NewFixed(opts.workers, poolOpts...)
	case "single":
		p, err = xpool.NewSingle(poolOpts...)
	case "cached":
		p, err = xpool.NewCached(poolOpts...)
	case "manual":
		p, err = xpool.New(opts.pool, poolOpts...)
		if errors.Is(err, xpool.ErrInvalidConfig) {
			return newUsageError("%v", err)
		}
	case "scheduled":
		sp, serr := xpool.NewScheduledFixed(opts.workers, poolOpts...)
		if serr != nil {
			return serr
		}
		return runScheduledDemo(ctx, sp, opts, out)
	default:
		return newUsageError("未知的 demo 类型 %q，可选: fixed/single/cached/scheduled/manual", kind)
	}
	if err != nil {
		return err
	}
	return runBatchDemo(ctx, p, opts, out)
}

func demoPoolOptions(ctx context.Context, name string, logger xlog.Logger) []xpool.Option {
	return []xpool.Option{
		xpool.WithName(name),
		xpool.WithFailureObserver(func(id xpool.TaskID, err error) {
			logger.Warn(ctx, "task failed", xlog.Component(name), slog.Uint64("task_id", uint64(id)), xlog.Err(err))
		}),
		xpool.WithRejectObserver(func(id xpool.TaskID, policy xpool.Policy) {
			logger.Info(ctx, "task rejected", xlog.Component(name), slog.Uint64("task_id", uint64(id)), xlog.Policy(policy.String()))
		}),
	}
}

// concurrency 记录同时执行的任务数峰值。
type concurrency struct {
	current atomic.Int64
	peak    atomic.Int64
}

func (c *concurrency) enter() {
	n := c.current.Add(1)
	for {
		peak := c.peak.Load()
		if n <= peak || c.peak.CompareAndSwap(peak, n) {
			return
		}
	}
}

func (c *concurrency) leave() { c.current.Add(-1) }

// demoTask 睡眠 delay 后记录执行顺序，优先级为 n%3。
type demoTask struct {
	n     int
	delay time.Duration
	conc  *concurrency
	order *executionOrder
}

func (t demoTask) Priority() int { return t.n % 3 }

func (t demoTask) Execute(ctx context.Context) error {
	t.conc.enter()
	defer t.conc.leave()

	if t.delay > 0 {
		timer := time.NewTimer(t.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	t.order.add(t.n)
	return nil
}

type executionOrder struct {
	mu  sync.Mutex
	seq []int
}

func (o *executionOrder) add(n int) {
	o.mu.Lock()
	o.seq = append(o.seq, n)
	o.mu.Unlock()
}

func (o *executionOrder) snapshot() []int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]int(nil), o.seq...)
}

func runBatchDemo(ctx context.Context, p lifecycle, opts demoOptions, out io.Writer) error {
	conc := &concurrency{}
	order := &executionOrder{}

	var rejected int
	for i := range opts.tasks {
		task := demoTask{n: i, delay: opts.delay, conc: conc, order: order}
		if _, err := p.Submit(task); err != nil {
			if !errors.Is(err, xpool.ErrOverload) {
				p.Shutdown(false)
				return fmt.Errorf("submit task %d: %w", i, err)
			}
			rejected++
			fmt.Fprintf(out, "task %d rejected: %v\n", i, err)
		}
	}

	err := stopPool(ctx, p, out)
	st := p.Stats()
	fmt.Fprintf(out, "order: %v\n", order.snapshot())
	fmt.Fprintf(out, "submitted=%d completed=%d failed=%d rejected=%d discarded=%d caller_ran=%d largest=%d peak=%d\n",
		st.Submitted, st.Completed, st.Failed, rejected, st.Discarded, st.CallerRan, st.Largest, conc.peak.Load())
	return err
}

func runScheduledDemo(ctx context.Context, sp *xpool.ScheduledPool, opts demoOptions, out io.Writer) error {
	conc := &concurrency{}
	order := &executionOrder{}

	// 倒序登记，执行顺序仍按到期时间
	handles := make([]*xpool.ScheduledTask, 0, opts.tasks)
	for i := opts.tasks - 1; i >= 0; i-- {
		task := demoTask{n: i, conc: conc, order: order}
		st, err := sp.ScheduleAfter(task, time.Duration(i+1)*opts.delay)
		if err != nil {
			sp.Shutdown(false)
			return fmt.Errorf("schedule task %d: %w", i, err)
		}
		handles = append(handles, st)
	}

	var beats atomic.Int64
	heartbeat, err := sp.ScheduleEvery(xpool.TaskFunc(func(context.Context) error {
		beats.Add(1)
		return nil
	}), opts.delay, opts.delay)
	if err != nil {
		sp.Shutdown(false)
		return fmt.Errorf("schedule heartbeat: %w", err)
	}

	for _, st := range handles {
		select {
		case <-st.Done():
		case <-ctx.Done():
		}
	}
	heartbeat.Cancel()

	err = stopPool(ctx, sp, out)
	completed := 0
	for _, st := range handles {
		if st.State() == xpool.ScheduleCompleted {
			completed++
		}
	}
	fmt.Fprintf(out, "order: %v\n", order.snapshot())
	fmt.Fprintf(out, "scheduled=%d completed=%d heartbeats=%d heartbeat_state=%s\n",
		len(handles), completed, beats.Load(), heartbeat.State())
	return err
}

// stopPool 优雅关闭；ctx 先结束时立即关闭并报告被丢弃的任务。
func stopPool(ctx context.Context, p lifecycle, out io.Writer) error {
	if err := p.GracefulStop(ctx); err == nil {
		return nil
	}
	dropped := p.Shutdown(false)
	if !p.AwaitTermination(defaultShutdownTimeout) {
		return &exitError{code: 1}
	}
	fmt.Fprintf(out, "interrupted: %d queued tasks dropped\n", len(dropped))
	return nil
}
