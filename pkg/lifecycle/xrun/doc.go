// Package xrun 提供进程生命周期管理：基于 errgroup 并发运行多个服务，
// 在收到系统信号或任一服务出错时协调关闭。
//
// # 基本用法
//
//	err := xrun.RunWithOptions(ctx, []xrun.Option{xrun.WithName("xpoolctl")},
//	    watcher.Run,
//	    xrun.OnShutdown(10*time.Second, pool.GracefulStop),
//	)
//	if errors.Is(err, xrun.ErrSignal) {
//	    // 信号退出，视为正常
//	}
//
// # 退出原因
//
// Group.Cancel(cause) 设置的原因（包括信号触发的 *SignalError）会通过
// Wait 返回；普通的 context 取消返回 nil。
//
// # 服务函数
//
//   - [Ticker]：周期执行
//   - [Timer]：延迟执行一次
//   - [WaitForDone]：阻塞直到取消
//   - [OnShutdown]：取消后在独立超时内执行清理（如工作池优雅关闭）
package xrun
