package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/omeyang/xexec/pkg/config/xconf"
	"github.com/omeyang/xexec/pkg/lifecycle/xrun"
	"github.com/omeyang/xexec/pkg/observability/xlog"
	"github.com/omeyang/xexec/pkg/observability/xmetrics"
	"github.com/omeyang/xexec/pkg/observability/xrotate"
	"github.com/omeyang/xexec/pkg/observability/xsampling"
	"github.com/omeyang/xexec/pkg/util/xpool"
)

var (
	errDurationElapsed = errors.New("run duration elapsed")
	errInjected        = errors.New("injected failure")
)

type runOptions struct {
	configPath string
	watch      bool
	duration   time.Duration
	stdout     io.Writer
	stderr     io.Writer
}

// cmdRun 运行工作池直到收到信号、--duration 到期或某个服务出错。
func cmdRun(ctx context.Context, opts runOptions) error {
	cfg, src, err := loadAppConfig(opts.configPath)
	if err != nil {
		return err
	}

	logger, cleanup, err := buildLogger(cfg.Log, opts.stderr)
	if err != nil {
		return newUsageError("log: %v", err)
	}
	defer func() { _ = cleanup() }()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(context.WithoutCancel(ctx)) }()

	observer, err := xmetrics.NewOTelObserver(
		xmetrics.WithInstrumentationName("xpoolctl"),
		xmetrics.WithMeterProvider(provider),
	)
	if err != nil {
		return err
	}
	sampler, err := xsampling.NewKeyBasedSampler(cfg.Metrics.SampleRate, xsampling.TaskKey)
	if err != nil {
		return newUsageError("metrics.sample_rate: %v", err)
	}
	observer = xmetrics.Sampled(observer, sampler)

	pool, err := xpool.New(cfg.Pool,
		xpool.WithName(cfg.Name),
		xpool.WithObserver(observer),
		xpool.WithFailureObserver(func(id xpool.TaskID, err error) {
			logger.Error(ctx, "task failed", slog.Uint64("task_id", uint64(id)), xlog.Err(err))
		}),
		xpool.WithRejectObserver(func(id xpool.TaskID, policy xpool.Policy) {
			logger.Debug(ctx, "task rejected", slog.Uint64("task_id", uint64(id)), xlog.Policy(policy.String()))
		}),
	)
	if err != nil {
		return newUsageError("%v", err)
	}

	load, err := newWorkload(ctx, cfg.Workload, pool, logger)
	if err != nil {
		pool.Shutdown(false)
		return err
	}
	services := []func(context.Context) error{
		xrun.Ticker(cfg.Workload.Interval, true, load.tick),
		xrun.OnShutdown(cfg.ShutdownTimeout, pool.GracefulStop),
	}
	if opts.watch {
		watcher, err := xconf.Watch(src, levelReloader(ctx, logger))
		if err != nil {
			pool.Shutdown(false)
			return err
		}
		services = append(services, watcher.Run)
	}
	if opts.duration > 0 {
		services = append(services, xrun.Timer(opts.duration, func(context.Context) error {
			return errDurationElapsed
		}))
	}

	logger.Info(ctx, "pool started",
		xlog.Component(cfg.Name),
		slog.Int("core_size", cfg.Pool.CoreSize),
		slog.Int("max_size", cfg.Pool.MaxSize),
		xlog.Policy(cfg.Pool.Rejection.String()),
	)
	runErr := xrun.RunWithOptions(ctx, []xrun.Option{
		xrun.WithLogger(logger),
		xrun.WithName(cfg.Name),
	}, services...)

	// OnShutdown 超时后池仍在排空，丢弃剩余任务
	if !pool.AwaitTermination(0) {
		dropped := pool.Shutdown(false)
		logger.Warn(ctx, "shutdown timeout elapsed, dropping queued tasks",
			xlog.Count(int64(len(dropped))), xlog.Duration(cfg.ShutdownTimeout))
		if !pool.AwaitTermination(cfg.ShutdownTimeout) {
			logger.Error(ctx, "pool did not terminate", xlog.State(pool.State().String()))
			return &exitError{code: 1}
		}
	}

	st := pool.Stats()
	fmt.Fprintf(opts.stdout, "submitted=%d completed=%d failed=%d rejected=%d discarded=%d caller_ran=%d largest=%d skipped=%d\n",
		st.Submitted, st.Completed, st.Failed, st.Rejected, st.Discarded, st.CallerRan, st.Largest, load.skipped.Load())
	if totals, err := operationTotals(context.WithoutCancel(ctx), reader); err == nil {
		for _, status := range slices.Sorted(maps.Keys(totals)) {
			fmt.Fprintf(opts.stdout, "%s{status=%s} %d\n", xmetrics.MetricOperationTotal, status, totals[status])
		}
	} else {
		logger.Warn(ctx, "collect metrics failed", xlog.Err(err))
	}

	switch {
	case runErr == nil,
		errors.Is(runErr, errDurationElapsed),
		errors.Is(runErr, xrun.ErrSignal),
		errors.Is(runErr, context.Canceled),
		errors.Is(runErr, context.DeadlineExceeded):
		logger.Info(ctx, "pool stopped", xlog.State(pool.State().String()))
		return nil
	default:
		return runErr
	}
}

func buildLogger(cfg logConfig, stderr io.Writer) (xlog.LoggerWithLevel, func() error, error) {
	b := xlog.New().
		SetOutput(stderr).
		SetLevel(cfg.Level).
		SetFormat(cfg.Format)
	if cfg.File != "" {
		var ropts []xrotate.Option
		if cfg.MaxSizeMB > 0 {
			ropts = append(ropts, xrotate.WithMaxSize(cfg.MaxSizeMB))
		}
		if cfg.MaxBackups > 0 {
			ropts = append(ropts, xrotate.WithMaxBackups(cfg.MaxBackups))
		}
		if cfg.MaxAgeDays > 0 {
			ropts = append(ropts, xrotate.WithMaxAge(cfg.MaxAgeDays))
		}
		ropts = append(ropts, xrotate.WithCompress(cfg.Compress))
		b.SetRotation(cfg.File, ropts...)
	}
	return b.Build()
}

// levelReloader 返回配置重载回调，只应用 log.level。
func levelReloader(ctx context.Context, logger xlog.LoggerWithLevel) xconf.WatchCallback {
	return func(cfg xconf.Config, err error) {
		if err != nil {
			logger.Warn(ctx, "config reload failed", xlog.Err(err))
			return
		}
		var lc logConfig
		if err := cfg.Unmarshal("log", &lc); err != nil {
			logger.Warn(ctx, "config reload failed", xlog.Err(err))
			return
		}
		if lc.Level == logger.GetLevel() {
			return
		}
		logger.SetLevel(lc.Level)
		logger.Info(ctx, "log level changed", slog.String("level", lc.Level.String()))
	}
}

// workload 周期性地向池注入模拟任务。
type workload struct {
	cfg       workloadConfig
	submitter xpool.Submitter
	logger    xlog.Logger

	seq     atomic.Int64
	skipped atomic.Int64
}

func newWorkload(ctx context.Context, cfg workloadConfig, pool *xpool.Pool, logger xlog.Logger) (*workload, error) {
	w := &workload{cfg: cfg, submitter: pool, logger: logger}
	if cfg.BreakerFailures == 0 {
		return w, nil
	}
	breaker, err := xpool.NewBreakerSubmitter(pool, xpool.BreakerOptions{
		Name:     pool.Name(),
		Failures: cfg.BreakerFailures,
		Cooldown: cfg.BreakerCooldown,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info(ctx, "submit breaker state changed", xlog.Component(name),
				slog.String("from", from.String()), xlog.State(to.String()))
		},
	})
	if err != nil {
		return nil, err
	}
	w.submitter = breaker
	return w, nil
}

func (w *workload) tick(ctx context.Context) error {
	for i := range w.cfg.Batch {
		n := w.seq.Add(1)
		err := w.submit(ctx, w.task(n))
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, xpool.ErrBreakerOpen):
			// 熔断期间本批剩余任务一并跳过
			w.skipped.Add(int64(w.cfg.Batch - i))
			return nil
		case errors.Is(err, xpool.ErrOverload):
			w.logger.Debug(ctx, "submit rejected", xlog.Count(n), xlog.Err(err))
		default:
			return err
		}
	}
	return nil
}

func (w *workload) submit(ctx context.Context, task xpool.Task) error {
	if w.cfg.RetryAttempts == 0 {
		_, err := w.submitter.Submit(task)
		return err
	}
	_, err := xpool.SubmitWithRetry(ctx, w.submitter, task, xpool.RetryOptions{
		Attempts: w.cfg.RetryAttempts,
		Delay:    w.cfg.RetryDelay,
	})
	return err
}

func (w *workload) task(n int64) xpool.Task {
	cfg := w.cfg
	return xpool.TaskFunc(func(ctx context.Context) error {
		if cfg.TaskDuration > 0 {
			timer := time.NewTimer(cfg.TaskDuration)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if cfg.PanicEvery > 0 && n%int64(cfg.PanicEvery) == 0 {
			panic(fmt.Sprintf("injected panic in task %d", n))
		}
		if cfg.FailEvery > 0 && n%int64(cfg.FailEvery) == 0 {
			return fmt.Errorf("task %d: %w", n, errInjected)
		}
		w.logger.Debug(ctx, "task done", xlog.Count(n))
		return nil
	})
}

// operationTotals 汇总 xexec.operation.total 各状态的计数。
func operationTotals(ctx context.Context, reader *sdkmetric.ManualReader) (map[string]int64, error) {
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		return nil, err
	}
	out := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != xmetrics.MetricOperationTotal {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				status, _ := dp.Attributes.Value(attribute.Key("status"))
				out[status.AsString()] += dp.Value
			}
		}
	}
	return out, nil
}
