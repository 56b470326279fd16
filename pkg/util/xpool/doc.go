// Package xpool 提供可配置的有界工作池。
//
// # 配置
//
// [Config] 描述常驻数（CoreSize）、上限（MaxSize）、空闲超时（KeepAlive）、
// 等待队列容量与顺序，以及池饱和时的拒绝策略。配置在 [New] 时校验，
// 非法组合返回 *[ConfigError]（可用 errors.Is(err, ErrInvalidConfig) 判断）。
// Config 带 koanf 标签，可直接由 xconf 从 YAML/JSON 加载。
//
// # 提交决策
//
// [Pool.Submit] 依次尝试：
//
//  1. 存活 worker 少于 CoreSize：新建 worker 直接执行，不经过队列；
//  2. 队列有空位：入队（有空闲 worker 时直接移交）；
//  3. 存活 worker 少于 MaxSize：新建弹性 worker 直接执行；
//  4. 拒绝策略：Abort 返回 [ErrOverload]；Discard 静默丢弃；
//     DiscardOldest 挤出队首任务后重试一次，仍失败按 Abort 处理；
//     CallerRuns 在提交方 goroutine 上同步执行。
//
// QueueCapacity 为 0 时是同步移交：只有空闲 worker 正在等待时才能入队。
//
// # 失败隔离
//
// 任务返回的错误和 panic（包装为 *[PanicError]）交给 [WithFailureObserver]
// 设置的观察者，每个失败任务恰好通知一次，worker 继续处理后续任务。
// 池本身不打日志。
//
// # 关闭
//
// [Pool.Shutdown] 传入 true 时执行完队列再退出；传入 false 时清空并返回
// 队列中的任务，取消任务 context，执行中的任务运行到结束。
// [Pool.AwaitTermination] 以有界的超时等待全部 worker 退出。
//
// # 扩展
//
//   - [ScheduledPool]：ScheduleAfter/ScheduleEvery/ScheduleCron，可取消的 [ScheduledTask]
//   - [Call]：返回 [Future] 的带结果提交
//   - [SubmitWithRetry]：过载时指数退避重试
//   - [NewFixed]/[NewSingle]/[NewCached]/[NewScheduledFixed]：常用配置
package xpool
