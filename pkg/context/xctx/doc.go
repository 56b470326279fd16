// Package xctx 在 context.Context 中传递 worker pool 的执行身份信息。
//
// # 字段
//
//   - pool: pool 名称（xpool.WithName 设置）
//   - task_id: 任务 ID（每个 pool 内单调递增）
//   - worker_id: 执行任务的 worker ID
//
// xpool 在执行任务前把这些字段注入任务 context；xlog 的 EnrichHandler
// 通过 [AppendAttrs] 自动把它们写入每条日志，因此任务内部只需使用传入的
// ctx 记录日志即可关联到具体的 pool/task/worker。
//
// # 约定
//
//   - With* 函数对 nil ctx 返回 ErrNilContext，不 panic
//   - 读取函数对 nil ctx 或缺失字段返回零值和 false（或空字符串）
//   - 只注入非零值；空的 pool 名称不会覆盖父 context 中已有的值
package xctx
