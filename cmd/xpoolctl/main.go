// xpoolctl 是 xpool 工作池的演示与压测命令行工具。
//
// 用法:
//
//	xpoolctl [全局选项] <命令> [命令参数]
//
// 命令:
//
//	demo <kind>     运行内置示例（fixed/single/cached/scheduled/manual）
//	run             按配置文件运行工作池并持续注入负载
//	validate        校验配置文件并打印生效配置
//	help            显示帮助信息
//
// run 命令说明:
//
//	配置文件包含 pool、log、metrics、workload 段，格式由扩展名决定（.yaml/.yml/.json）。
//	--watch 开启后监视配置文件，log.level 的变更会热生效；
//	pool 段在池创建后不可变，修改需重启。
//	收到 SIGINT/SIGTERM 或 --duration 到期后优雅停止：停止注入负载，
//	排空队列，超过 shutdown_timeout 仍未结束的任务被丢弃。
//	第二次信号强制退出（退出码 130）。
//
// 退出码:
//
//	0: 执行成功
//	1: 运行失败（配置加载失败、池未能在超时内终止等）
//	2: 参数错误（未知命令、无效参数、配置校验失败）
//
// 示例:
//
//	xpoolctl demo fixed --tasks 20 --workers 4
//	xpoolctl demo manual --core 1 --max 2 --queue 2 --policy caller-runs
//	xpoolctl run --config pool.yaml --watch --duration 30s
//	xpoolctl validate --config pool.yaml
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
)

// 版本信息（可通过 -ldflags 注入，例如:
//
//	go build -ldflags "-X main.Version=1.0.0 -X main.GitCommit=$(git rev-parse --short HEAD)"
//
// ）。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	setupSignalHandler(cancel)

	code := run(ctx, os.Args, os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// createApp 创建 CLI 应用。
func createApp(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "xpoolctl",
		Usage:     "xpool 工作池演示与压测工具",
		Version:   fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "demo 命令的日志级别 (debug/info/warn/error)，run 使用配置文件的 log.level",
				Value:   "warn",
			},
		},
		Commands:       createCommands(),
		DefaultCommand: "help",
		// 禁止 urfave/cli 直接调用 os.Exit，退出码统一由 run() 映射
		ExitErrHandler: func(_ context.Context, _ *cli.Command, err error) {
			if _, ok := err.(cli.ExitCoder); ok {
				fmt.Fprintln(stderr, err)
			}
		},
	}
}

// run 执行命令并返回退出码。
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	app := createApp(stdout, stderr)

	if err := app.Run(ctx, args); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}
		var usageErr *usageError
		if errors.As(err, &usageErr) {
			fmt.Fprintf(stderr, "参数错误: %v\n", usageErr)
			return 2
		}
		if isCLIUsageError(err) {
			// flag 解析器已输出详情
			return 2
		}
		fmt.Fprintf(stderr, "错误: %v\n", err)
		return 1
	}
	return 0
}
