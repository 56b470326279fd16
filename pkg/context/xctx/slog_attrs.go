package xctx

import (
	"context"
	"log/slog"
)

// AppendAttrs 将 context 中的身份信息追加到现有切片。
// 调用方传入预分配切片可避免热路径分配；只追加存在的字段。
func AppendAttrs(attrs []slog.Attr, ctx context.Context) []slog.Attr {
	if ctx == nil {
		return attrs
	}
	if v := Pool(ctx); v != "" {
		attrs = append(attrs, slog.String(KeyPool, v))
	}
	if v, ok := TaskID(ctx); ok {
		attrs = append(attrs, slog.Uint64(KeyTaskID, v))
	}
	if v, ok := WorkerID(ctx); ok {
		attrs = append(attrs, slog.Int(KeyWorkerID, v))
	}
	return attrs
}

// Attrs 返回身份信息属性，全部缺失时返回 nil。
func Attrs(ctx context.Context) []slog.Attr {
	attrs := AppendAttrs(make([]slog.Attr, 0, fieldCount), ctx)
	if len(attrs) == 0 {
		return nil
	}
	return attrs
}
