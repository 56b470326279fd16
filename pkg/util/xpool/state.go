package xpool

import "fmt"

// State 是池的生命周期状态，只会向前推进。
type State int32

const (
	// StateRunning 接受新任务。
	StateRunning State = iota
	// StateShuttingDown 优雅关闭中：拒绝新任务，继续执行队列中的任务。
	StateShuttingDown
	// StateStopping 非优雅关闭中：队列已清空，等待执行中的任务结束。
	StateStopping
	// StateTerminated 全部 worker 已退出。
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting_down"
	case StateStopping:
		return "stopping"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Stats 是池的运行时快照。
type Stats struct {
	State State

	// Live 存活 worker 数，Idle 为其中空闲等待的数量，Active 为正在执行任务的数量。
	Live   int
	Idle   int
	Active int
	// Largest 历史最大存活 worker 数。
	Largest int
	// Queued 等待队列中的任务数。
	Queued int

	// Submitted 被池接受（入队或直接交给 worker）的任务数。
	Submitted uint64
	// Completed/Failed 执行结束的任务数（含 CallerRuns 执行的任务）。
	Completed uint64
	Failed    uint64
	// Rejected 以 ErrOverload 拒绝的提交数。
	Rejected uint64
	// Discarded 被 Discard/DiscardOldest 策略或非优雅关闭丢弃的任务数。
	Discarded uint64
	// CallerRan 由 CallerRuns 策略在提交方执行的任务数。
	CallerRan uint64
}
