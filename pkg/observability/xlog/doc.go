// Package xlog 基于 log/slog 的结构化日志库。
//
// # 核心功能
//
//   - Builder 模式配置（输出目标、级别、格式、轮转）
//   - 自动从 context 注入 pool / task_id / worker_id（EnrichHandler，默认启用）
//   - 动态级别调整（运行时热更新，xpoolctl 配置热加载使用）
//   - 全局 Logger 便利函数
//
// # 创建 Logger
//
// Builder 采用 first-error-wins：遇到第一个配置错误后，后续 Set 操作的
// 错误被忽略，Build 返回第一个错误。
//
//	logger, cleanup, err := xlog.New().
//		SetLevelString("debug").
//		SetFormat("json").
//		SetRotation("/var/log/xpool.log").
//		Build()
//	if err != nil {
//		return err
//	}
//	defer cleanup()
//
// # 与 xpool 配合
//
// xpool 本身从不写日志；调用方通过 WithFailureObserver 把失败事件接入 Logger。
// 任务内部使用传入的 ctx 记录日志时，EnrichHandler 会自动附加执行身份：
//
//	pool.SubmitFunc(func(ctx context.Context) error {
//		logger.Info(ctx, "processing") // 自动带 pool/task_id/worker_id
//		return nil
//	})
package xlog
