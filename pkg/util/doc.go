// Package util 提供通用工具相关的子包。
//
// 子包列表：
//   - xpool: 有界工作池，可配置常驻/最大 worker 数、队列与拒绝策略，支持延迟与周期调度
package util
