package xctx

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithPool(t *testing.T) {
	ctx, err := WithPool(context.Background(), "orders")
	require.NoError(t, err)
	assert.Equal(t, "orders", Pool(ctx))

	// 空名称不覆盖已有值
	ctx2, err := WithPool(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "orders", Pool(ctx2))
}

func TestNilContext(t *testing.T) {
	//nolint:staticcheck // 测试 nil ctx
	_, err := WithPool(nil, "x")
	assert.ErrorIs(t, err, ErrNilContext)
	//nolint:staticcheck // 测试 nil ctx
	_, err = WithTaskID(nil, 1)
	assert.ErrorIs(t, err, ErrNilContext)
	//nolint:staticcheck // 测试 nil ctx
	_, err = WithWorkerID(nil, 1)
	assert.ErrorIs(t, err, ErrNilContext)
	//nolint:staticcheck // 测试 nil ctx
	_, err = WithIdentity(nil, Identity{})
	assert.ErrorIs(t, err, ErrNilContext)

	//nolint:staticcheck // 测试 nil ctx
	assert.Equal(t, "", Pool(nil))
	//nolint:staticcheck // 测试 nil ctx
	_, ok := TaskID(nil)
	assert.False(t, ok)
	//nolint:staticcheck // 测试 nil ctx
	assert.Nil(t, AppendAttrs(nil, nil))
}

func TestTaskAndWorkerID(t *testing.T) {
	ctx := context.Background()
	_, ok := TaskID(ctx)
	assert.False(t, ok)

	ctx, _ = WithTaskID(ctx, 0)
	id, ok := TaskID(ctx)
	assert.True(t, ok)
	assert.Equal(t, uint64(0), id)

	ctx, _ = WithWorkerID(ctx, 7)
	wid, ok := WorkerID(ctx)
	assert.True(t, ok)
	assert.Equal(t, 7, wid)
}

func TestIdentityRoundTrip(t *testing.T) {
	in := Identity{Pool: "p", TaskID: 42, HasTask: true, WorkerID: 3, HasWorker: true}
	ctx, err := WithIdentity(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, in, GetIdentity(ctx))

	ctx, err = WithIdentity(context.Background(), Identity{Pool: "only"})
	require.NoError(t, err)
	got := GetIdentity(ctx)
	assert.Equal(t, "only", got.Pool)
	assert.False(t, got.HasTask)
	assert.False(t, got.HasWorker)
}

func TestAttrs(t *testing.T) {
	assert.Nil(t, Attrs(context.Background()))

	ctx, _ := WithPool(context.Background(), "p")
	ctx, _ = WithTaskID(ctx, 9)
	ctx, _ = WithWorkerID(ctx, 2)

	attrs := Attrs(ctx)
	require.Len(t, attrs, 3)
	assert.Equal(t, slog.String(KeyPool, "p"), attrs[0])
	assert.Equal(t, slog.Uint64(KeyTaskID, 9), attrs[1])
	assert.Equal(t, slog.Int(KeyWorkerID, 2), attrs[2])
}
