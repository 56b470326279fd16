package xmetrics

import (
	"context"
	"time"

	"github.com/omeyang/xexec/pkg/context/xctx"
)

// 基础属性构造函数，Duration 以纳秒写入 OTel。

func String(key, value string) Attr { return Attr{Key: key, Value: value} }

func Bool(key string, value bool) Attr { return Attr{Key: key, Value: value} }

func Int(key string, value int) Attr { return Attr{Key: key, Value: value} }

func Int64(key string, value int64) Attr { return Attr{Key: key, Value: value} }

func Uint64(key string, value uint64) Attr { return Attr{Key: key, Value: value} }

func Duration(key string, d time.Duration) Attr { return Attr{Key: key, Value: d} }

// TaskAttrs 从 ctx 取出任务 ID 与 worker ID 作为跨度属性。
// 提交方执行（CallerRuns）的任务没有 worker ID，只带 task_id。
//
// 这些字段基数高，只进入 trace，不进入指标标签。
func TaskAttrs(ctx context.Context) []Attr {
	if ctx == nil {
		return nil
	}
	attrs := make([]Attr, 0, 2)
	if id, ok := xctx.TaskID(ctx); ok {
		attrs = append(attrs, Uint64(xctx.KeyTaskID, id))
	}
	if id, ok := xctx.WorkerID(ctx); ok {
		attrs = append(attrs, Int(xctx.KeyWorkerID, id))
	}
	return attrs
}
