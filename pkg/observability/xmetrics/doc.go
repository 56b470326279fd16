// Package xmetrics 提供统一的可观测性接口（metrics + tracing）。
//
// 业务代码只依赖最小化的 Observer/Span/Attr 接口，默认实现基于
// OpenTelemetry。xpool 通过 WithObserver 注入 Observer，为每次任务执行
// 创建一个跨度（component=xpool, operation=execute）。
//
// # 使用示例
//
//	obs, _ := xmetrics.NewOTelObserver()
//	ctx, span := xmetrics.Start(ctx, obs, xmetrics.SpanOptions{
//		Component: "xpool",
//		Operation: "execute",
//	})
//	defer span.End(xmetrics.Result{Err: err})
//
// # 指标命名
//
//   - xexec.operation.total（计数，单位 1）
//   - xexec.operation.duration（直方图，单位 s）
//
// 统一属性：component / operation / status。
package xmetrics
