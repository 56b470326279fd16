package xconf

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type poolSection struct {
	CoreSize  int           `koanf:"core_size"`
	KeepAlive time.Duration `koanf:"keep_alive"`
	Name      string        `koanf:"name"`
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNew_YAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "pool.yaml", "pool:\n  core_size: 4\n  keep_alive: 30s\n  name: demo\n")

	cfg, err := New(path)
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, cfg.Format())
	assert.Equal(t, path, cfg.Path())

	var sec poolSection
	require.NoError(t, cfg.Unmarshal("pool", &sec))
	assert.Equal(t, 4, sec.CoreSize)
	assert.Equal(t, 30*time.Second, sec.KeepAlive)
	assert.Equal(t, "demo", sec.Name)
	assert.Equal(t, 4, cfg.Client().Int("pool.core_size"))
}

func TestNew_JSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "pool.json", `{"pool":{"core_size":2,"keep_alive":"1m"}}`)

	cfg, err := New(path)
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, cfg.Format())

	var sec poolSection
	require.NoError(t, cfg.Unmarshal("pool", &sec))
	assert.Equal(t, 2, sec.CoreSize)
	assert.Equal(t, time.Minute, sec.KeepAlive)
}

func TestNew_Errors(t *testing.T) {
	_, err := New("")
	assert.ErrorIs(t, err, ErrEmptyPath)

	_, err = New("pool.toml")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = New(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrLoadFailed)

	path := writeFile(t, t.TempDir(), "bad.json", `{"pool":`)
	_, err = New(path)
	assert.ErrorIs(t, err, ErrParseFailed)
}

func TestNewFromBytes(t *testing.T) {
	cfg, err := NewFromBytes([]byte("pool:\n  core_size: 8\n"), FormatYAML)
	require.NoError(t, err)
	assert.Empty(t, cfg.Path())
	assert.Equal(t, 8, cfg.Client().Int("pool.core_size"))
	assert.ErrorIs(t, cfg.Reload(), ErrNotReloadable)

	empty, err := NewFromBytes(nil, FormatJSON)
	require.NoError(t, err)
	assert.Empty(t, empty.Client().Keys())

	_, err = NewFromBytes([]byte("a: 1"), Format("ini"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestUnmarshal_Failure(t *testing.T) {
	cfg, err := NewFromBytes([]byte("pool:\n  core_size: many\n"), FormatYAML)
	require.NoError(t, err)

	var sec poolSection
	assert.ErrorIs(t, cfg.Unmarshal("pool", &sec), ErrUnmarshalFailed)
	assert.Panics(t, func() { MustUnmarshal(cfg, "pool", &sec) })
}

func TestOptions(t *testing.T) {
	cfg, err := NewFromBytes([]byte(`{"pool":{"size":3}}`), FormatJSON, WithDelim("/"), WithTag("json"), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Client().Int("pool/size"))

	var sec struct {
		Size int `json:"size"`
	}
	require.NoError(t, cfg.Unmarshal("pool", &sec))
	assert.Equal(t, 3, sec.Size)

	opts := defaultOptions()
	WithDelim("")(opts)
	WithTag("")(opts)
	assert.Equal(t, ".", opts.Delim)
	assert.Equal(t, "koanf", opts.Tag)
}

func TestReload(t *testing.T) {
	path := writeFile(t, t.TempDir(), "pool.yaml", "pool:\n  core_size: 1\n")
	cfg, err := New(path)
	require.NoError(t, err)

	writeFile(t, filepath.Dir(path), "pool.yaml", "pool:\n  core_size: 5\n")
	require.NoError(t, cfg.Reload())
	assert.Equal(t, 5, cfg.Client().Int("pool.core_size"))

	// 解析失败时保留旧配置
	writeFile(t, filepath.Dir(path), "pool.yaml", "pool: [\n")
	assert.ErrorIs(t, cfg.Reload(), ErrParseFailed)
	assert.Equal(t, 5, cfg.Client().Int("pool.core_size"))
}

func TestWatch_Rejects(t *testing.T) {
	cfg, err := NewFromBytes([]byte("a: 1"), FormatYAML)
	require.NoError(t, err)
	_, err = Watch(cfg, nil)
	assert.ErrorIs(t, err, ErrNotReloadable)
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "pool.yaml", "pool:\n  core_size: 1\n")
	cfg, err := New(path)
	require.NoError(t, err)

	var reloads atomic.Int32
	var last atomic.Int64
	w, err := Watch(cfg, func(c Config, err error) {
		if err != nil {
			return
		}
		reloads.Add(1)
		last.Store(c.Client().Int64("pool.core_size"))
	}, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// 无关文件不触发重载
	writeFile(t, dir, "other.yaml", "x: 1\n")
	writeFile(t, dir, "pool.yaml", "pool:\n  core_size: 9\n")

	assert.Eventually(t, func() bool { return last.Load() == 9 }, 3*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, reloads.Load(), int32(1))

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
