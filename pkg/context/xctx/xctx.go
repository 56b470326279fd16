package xctx

import (
	"context"
	"errors"
)

// contextKey 使用包私有 string 类型，调试时可读。
type contextKey string

const (
	keyPool     contextKey = "pool"
	keyTaskID   contextKey = "task_id"
	keyWorkerID contextKey = "worker_id"
)

// 日志字段名。
const (
	KeyPool     = "pool"
	KeyTaskID   = "task_id"
	KeyWorkerID = "worker_id"
)

// fieldCount 身份字段数量，用于预分配。
const fieldCount = 3

// ErrNilContext 表示传入的 context 为 nil。
var ErrNilContext = errors.New("xctx: nil context")

// WithPool 在 context 中设置 pool 名称。空名称直接返回原 ctx。
func WithPool(ctx context.Context, name string) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if name == "" {
		return ctx, nil
	}
	return context.WithValue(ctx, keyPool, name), nil
}

// Pool 返回 context 中的 pool 名称。
func Pool(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(keyPool).(string)
	return v
}

// WithTaskID 在 context 中设置任务 ID。
func WithTaskID(ctx context.Context, id uint64) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	return context.WithValue(ctx, keyTaskID, id), nil
}

// TaskID 返回 context 中的任务 ID。
func TaskID(ctx context.Context) (uint64, bool) {
	if ctx == nil {
		return 0, false
	}
	v, ok := ctx.Value(keyTaskID).(uint64)
	return v, ok
}

// WithWorkerID 在 context 中设置 worker ID。
func WithWorkerID(ctx context.Context, id int) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	return context.WithValue(ctx, keyWorkerID, id), nil
}

// WorkerID 返回 context 中的 worker ID。
func WorkerID(ctx context.Context) (int, bool) {
	if ctx == nil {
		return 0, false
	}
	v, ok := ctx.Value(keyWorkerID).(int)
	return v, ok
}

// Identity 是执行身份的快照。
type Identity struct {
	Pool     string
	TaskID   uint64
	WorkerID int
	// HasTask/HasWorker 区分零值 ID 与缺失字段
	HasTask   bool
	HasWorker bool
}

// GetIdentity 一次性读取全部身份字段。
func GetIdentity(ctx context.Context) Identity {
	var id Identity
	id.Pool = Pool(ctx)
	id.TaskID, id.HasTask = TaskID(ctx)
	id.WorkerID, id.HasWorker = WorkerID(ctx)
	return id
}

// WithIdentity 批量注入身份字段，只注入非零/存在的字段。
func WithIdentity(ctx context.Context, id Identity) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	ctx, _ = WithPool(ctx, id.Pool)
	if id.HasTask {
		ctx, _ = WithTaskID(ctx, id.TaskID)
	}
	if id.HasWorker {
		ctx, _ = WithWorkerID(ctx, id.WorkerID)
	}
	return ctx, nil
}
