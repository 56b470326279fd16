package xpool

import (
	"fmt"
	"strings"
	"time"
)

// MaxPoolSize 是 MaxSize 的上限。
const MaxPoolSize = 1 << 16

// Unbounded 作为 QueueCapacity 表示无界队列。
const Unbounded = -1

// QueueOrder 定义等待队列的出队顺序。
type QueueOrder int

const (
	// OrderFIFO 按提交顺序出队（默认）。
	OrderFIFO QueueOrder = iota
	// OrderLIFO 后提交的先出队。
	OrderLIFO
	// OrderPriority 按比较器出队，相等时保持提交顺序。
	OrderPriority
)

var queueOrderNames = [...]string{"fifo", "lifo", "priority"}

func (o QueueOrder) String() string {
	if o >= 0 && int(o) < len(queueOrderNames) {
		return queueOrderNames[o]
	}
	return fmt.Sprintf("QueueOrder(%d)", int(o))
}

// MarshalText 实现 encoding.TextMarshaler。
func (o QueueOrder) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler，大小写不敏感，空值为 fifo。
func (o *QueueOrder) UnmarshalText(text []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(text)))
	if s == "" {
		*o = OrderFIFO
		return nil
	}
	for i, name := range queueOrderNames {
		if s == name {
			*o = QueueOrder(i)
			return nil
		}
	}
	return &ConfigError{Field: "queue_order", Reason: fmt.Sprintf("unknown value %q", string(text))}
}

// Policy 是池饱和时的拒绝策略，取值仅限下列四种。
type Policy int

const (
	// PolicyAbort 拒绝提交并返回 ErrOverload（默认）。
	PolicyAbort Policy = iota
	// PolicyDiscard 静默丢弃新任务，Submit 返回 nil。
	PolicyDiscard
	// PolicyDiscardOldest 丢弃队首任务后重试一次，仍失败则按 Abort 处理。
	PolicyDiscardOldest
	// PolicyCallerRuns 在提交方 goroutine 上同步执行任务。
	PolicyCallerRuns
)

var policyNames = [...]string{"abort", "discard", "discard_oldest", "caller_runs"}

func (p Policy) String() string {
	if p >= 0 && int(p) < len(policyNames) {
		return policyNames[p]
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// MarshalText 实现 encoding.TextMarshaler。
func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler，接受 "discard-oldest" 等连字符写法。
func (p *Policy) UnmarshalText(text []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(text)))
	s = strings.ReplaceAll(s, "-", "_")
	if s == "" {
		*p = PolicyAbort
		return nil
	}
	for i, name := range policyNames {
		if s == name {
			*p = Policy(i)
			return nil
		}
	}
	return &ConfigError{Field: "rejection", Reason: fmt.Sprintf("unknown value %q", string(text))}
}

// Config 是池的不可变配置，New 之后修改不生效。
//
// 零值不可用（MaxSize 必须 ≥ 1）；常用组合见 NewFixed/NewSingle/NewCached。
type Config struct {
	// CoreSize 常驻 worker 数，0 ≤ CoreSize ≤ MaxSize。
	CoreSize int `koanf:"core_size"`

	// MaxSize 同时存活的 worker 上限，1 ≤ MaxSize ≤ MaxPoolSize。
	MaxSize int `koanf:"max_size"`

	// KeepAlive 超出 CoreSize 的 worker 空闲多久后退出。
	KeepAlive time.Duration `koanf:"keep_alive"`

	// QueueCapacity 等待队列容量：Unbounded 无界，0 为同步移交
	// （仅当有空闲 worker 等待时入队成功），>0 为有界。
	QueueCapacity int `koanf:"queue_capacity"`

	// QueueOrder 等待队列出队顺序。
	QueueOrder QueueOrder `koanf:"queue_order"`

	// Rejection 池饱和时的拒绝策略。
	Rejection Policy `koanf:"rejection"`

	// AllowCoreTimeout 为 true 时常驻 worker 也受 KeepAlive 约束。
	AllowCoreTimeout bool `koanf:"allow_core_timeout"`

	// PrestartCore 为 true 时 New 立即启动全部常驻 worker。
	PrestartCore bool `koanf:"prestart_core"`

	// Less 优先级队列的比较器，a 应先于 b 执行时返回 true。
	// 为 nil 时按 Prioritized.Priority() 降序排列。
	Less func(a, b Task) bool `koanf:"-"`
}

// Validate 检查配置，返回第一个非法字段的 *ConfigError。
func (c Config) Validate() error {
	switch {
	case c.MaxSize < 1:
		return &ConfigError{Field: "max_size", Reason: "must be at least 1"}
	case c.MaxSize > MaxPoolSize:
		return &ConfigError{Field: "max_size", Reason: fmt.Sprintf("must not exceed %d", MaxPoolSize)}
	case c.CoreSize < 0:
		return &ConfigError{Field: "core_size", Reason: "must not be negative"}
	case c.CoreSize > c.MaxSize:
		return &ConfigError{Field: "core_size", Reason: "must not exceed max_size"}
	case c.KeepAlive < 0:
		return &ConfigError{Field: "keep_alive", Reason: "must not be negative"}
	case c.QueueCapacity < Unbounded:
		return &ConfigError{Field: "queue_capacity", Reason: "must be -1 (unbounded), 0 (hand-off) or positive"}
	case c.QueueOrder < OrderFIFO || c.QueueOrder > OrderPriority:
		return &ConfigError{Field: "queue_order", Reason: fmt.Sprintf("unknown value %d", int(c.QueueOrder))}
	case c.Rejection < PolicyAbort || c.Rejection > PolicyCallerRuns:
		return &ConfigError{Field: "rejection", Reason: fmt.Sprintf("unknown value %d", int(c.Rejection))}
	case c.AllowCoreTimeout && c.KeepAlive == 0:
		return &ConfigError{Field: "keep_alive", Reason: "must be positive when allow_core_timeout is set"}
	}
	return nil
}

// timedWait 报告存活数为 live 时空闲 worker 是否按 KeepAlive 限时等待。
func (c Config) timedWait(live int) bool {
	return c.AllowCoreTimeout || live > c.CoreSize
}
