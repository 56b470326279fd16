// Package observability 提供可观测性相关的子包。
//
// 子包列表：
//   - xlog: 结构化日志，基于 log/slog 扩展，自动注入执行身份
//   - xmetrics: 统一观测接口（指标、追踪），默认实现基于 OpenTelemetry
//   - xsampling: 任务执行观测的采样策略
//   - xrotate: 日志文件轮转
package observability
