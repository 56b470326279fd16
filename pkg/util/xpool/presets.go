package xpool

import "time"

// CachedKeepAlive 是 NewCached 的默认空闲超时。
const CachedKeepAlive = 60 * time.Second

// NewFixed 创建固定 n 个 worker、无界 FIFO 队列的池。
func NewFixed(n int, opts ...Option) (*Pool, error) {
	return New(fixedConfig(n), opts...)
}

// NewSingle 创建单 worker 池，任务严格按提交顺序串行执行。
func NewSingle(opts ...Option) (*Pool, error) {
	return New(fixedConfig(1), opts...)
}

// NewCached 创建按需扩张的池：没有常驻 worker，使用同步移交队列，
// 空闲 worker 在 CachedKeepAlive 后退出。
func NewCached(opts ...Option) (*Pool, error) {
	return New(Config{
		CoreSize:      0,
		MaxSize:       MaxPoolSize,
		KeepAlive:     CachedKeepAlive,
		QueueCapacity: 0,
	}, opts...)
}

// NewScheduledFixed 创建固定 n 个 worker 的调度池。
func NewScheduledFixed(n int, opts ...Option) (*ScheduledPool, error) {
	return NewScheduled(fixedConfig(n), opts...)
}

func fixedConfig(n int) Config {
	return Config{
		CoreSize:      n,
		MaxSize:       n,
		QueueCapacity: Unbounded,
	}
}
