// Package context 提供执行上下文相关的子包。
//
// 子包列表：
//   - xctx: 在 context 中传递 pool 名称、任务 ID、worker ID 等执行身份
//
// 所有上下文信息通过 context.Context 传递，不使用全局变量。
package context
