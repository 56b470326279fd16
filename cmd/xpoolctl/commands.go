package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/xexec/pkg/observability/xlog"
)

// 创建所有子命令。
func createCommands() []*cli.Command {
	return []*cli.Command{
		createDemoCommand(),
		createRunCommand(),
		createValidateCommand(),
	}
}

// createDemoCommand 创建 demo 子命令。
func createDemoCommand() *cli.Command {
	return &cli.Command{
		Name:      "demo",
		Usage:     "运行内置示例",
		ArgsUsage: "<fixed|single|cached|scheduled|manual>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "tasks", Aliases: []string{"n"}, Usage: "提交的任务数", Value: 10},
			&cli.DurationFlag{Name: "delay", Aliases: []string{"d"}, Usage: "每个任务的执行耗时（scheduled 为调度间隔）", Value: 20 * time.Millisecond},
			&cli.IntFlag{Name: "workers", Aliases: []string{"w"}, Usage: "fixed/scheduled 的 worker 数", Value: 4},
			&cli.IntFlag{Name: "core", Usage: "manual: 常驻 worker 数", Value: 1},
			&cli.IntFlag{Name: "max", Usage: "manual: worker 上限", Value: 2},
			&cli.IntFlag{Name: "queue", Usage: "manual: 队列容量（-1 无界）", Value: 2},
			&cli.StringFlag{Name: "policy", Usage: "manual: 拒绝策略 (abort/discard/discard-oldest/caller-runs)", Value: "abort"},
			&cli.StringFlag{Name: "order", Usage: "manual: 队列顺序 (fifo/lifo/priority)", Value: "fifo"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return newUsageError("demo 需要且只需要一个参数: %s", cmd.ArgsUsage)
			}
			opts, err := demoOptionsFrom(cmd)
			if err != nil {
				return err
			}
			logger, cleanup, err := newCLILogger(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = cleanup() }()
			return runDemo(ctx, cmd.Args().First(), opts, logger, cmd.Root().Writer)
		},
	}
}

// createRunCommand 创建 run 子命令。
func createRunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "按配置文件运行工作池并持续注入负载",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "配置文件路径 (.yaml/.yml/.json)", Required: true},
			&cli.BoolFlag{Name: "watch", Usage: "监视配置文件，热更新日志级别"},
			&cli.DurationFlag{Name: "duration", Usage: "运行时长，0 表示直到收到信号"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			duration := cmd.Duration("duration")
			if duration < 0 {
				return newUsageError("--duration 不能为负数: %s", duration)
			}
			return cmdRun(ctx, runOptions{
				configPath: cmd.String("config"),
				watch:      cmd.Bool("watch"),
				duration:   duration,
				stdout:     cmd.Root().Writer,
				stderr:     cmd.Root().ErrWriter,
			})
		},
	}
}

// createValidateCommand 创建 validate 子命令。
func createValidateCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "校验配置文件并打印生效配置",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "配置文件路径", Required: true},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg, _, err := loadAppConfig(cmd.String("config"))
			if err != nil {
				return err
			}
			printConfig(cmd.Root().Writer, cfg)
			return nil
		},
	}
}

// newCLILogger 根据全局 --log-level 构建输出到 stderr 的 logger。
func newCLILogger(cmd *cli.Command) (xlog.LoggerWithLevel, func() error, error) {
	logger, cleanup, err := xlog.New().
		SetOutput(cmd.Root().ErrWriter).
		SetLevelString(cmd.String("log-level")).
		Build()
	if err != nil {
		return nil, nil, newUsageError("%v", err)
	}
	return logger, cleanup, nil
}

// setupSignalHandler 第一次信号取消 context，第二次强制退出。
func setupSignalHandler(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()

		<-sigCh
		signal.Stop(sigCh)
		os.Exit(130)
	}()
}

func printConfig(w io.Writer, cfg appConfig) {
	p := cfg.Pool
	fmt.Fprintf(w, "name:              %s\n", cfg.Name)
	fmt.Fprintf(w, "shutdown_timeout:  %s\n", cfg.ShutdownTimeout)
	fmt.Fprintf(w, "pool.core_size:    %d\n", p.CoreSize)
	fmt.Fprintf(w, "pool.max_size:     %d\n", p.MaxSize)
	fmt.Fprintf(w, "pool.keep_alive:   %s\n", p.KeepAlive)
	fmt.Fprintf(w, "pool.queue:        %s\n", queueCapacityString(p.QueueCapacity))
	fmt.Fprintf(w, "pool.queue_order:  %s\n", p.QueueOrder)
	fmt.Fprintf(w, "pool.rejection:    %s\n", p.Rejection)
	fmt.Fprintf(w, "pool.core_timeout: %t\n", p.AllowCoreTimeout)
	fmt.Fprintf(w, "log.level:         %s\n", cfg.Log.Level)
	fmt.Fprintf(w, "metrics.sample:    %g\n", cfg.Metrics.SampleRate)
	fmt.Fprintf(w, "workload:          %d every %s, task %s\n",
		cfg.Workload.Batch, cfg.Workload.Interval, cfg.Workload.TaskDuration)
}

func queueCapacityString(n int) string {
	switch {
	case n < 0:
		return "unbounded"
	case n == 0:
		return "hand-off"
	default:
		return fmt.Sprintf("bounded(%d)", n)
	}
}
