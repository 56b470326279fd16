// Package xsampling 提供执行观测的采样策略。
//
// Sampler.ShouldSample(ctx) 决定一次任务执行是否产生 span 与指标。
// 高吞吐的池对每个任务都建 span 代价过高，可按比例采样。
//
//   - Always()/Never(): 全采样与不采样
//   - NewRateSampler(rate): 随机比率采样
//   - NewKeyBasedSampler(rate, keyFunc): 按 key 的一致性采样，使用 xxhash
//
// TaskKey 以 context 中的任务 ID 为 key，同一任务的决策在重试和日志关联中保持一致。
//
// 所有采样器并发安全。
package xsampling
