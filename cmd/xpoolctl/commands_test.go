package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/omeyang/xexec/pkg/config/xconf"
	"github.com/omeyang/xexec/pkg/observability/xlog"
	"github.com/omeyang/xexec/pkg/util/xpool"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), append([]string{"xpoolctl"}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pool.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRun_Version(t *testing.T) {
	code, out, _ := runCLI(t, "--version")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, Version)
}

func TestRun_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown_flag", []string{"demo", "--bogus", "fixed"}},
		{"missing_kind", []string{"demo"}},
		{"unknown_kind", []string{"demo", "bogus"}},
		{"bad_policy", []string{"demo", "--policy", "retry", "manual"}},
		{"bad_order", []string{"demo", "--order", "random", "manual"}},
		{"bad_tasks", []string{"demo", "--tasks", "0", "fixed"}},
		{"bad_manual_config", []string{"demo", "--core", "3", "--max", "2", "manual"}},
		{"bad_log_level", []string{"--log-level", "loud", "demo", "fixed"}},
		{"run_without_config", []string{"run"}},
		{"negative_duration", []string{"run", "--config", "x.yaml", "--duration", "-1s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, _ := runCLI(t, tt.args...)
			assert.Equal(t, 2, code)
		})
	}
}

func TestDemo_Fixed(t *testing.T) {
	code, out, _ := runCLI(t, "demo", "--tasks", "8", "--workers", "2", "--delay", "5ms", "fixed")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "submitted=8 completed=8 failed=0 rejected=0")
	assert.NotContains(t, out, "peak=3")
}

func TestDemo_SingleKeepsOrder(t *testing.T) {
	code, out, _ := runCLI(t, "demo", "--tasks", "5", "--delay", "1ms", "single")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "order: [0 1 2 3 4]")
	assert.Contains(t, out, "peak=1")
}

func TestDemo_Cached(t *testing.T) {
	code, out, _ := runCLI(t, "demo", "--tasks", "4", "--delay", "50ms", "cached")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "completed=4")
	assert.Contains(t, out, "largest=4")
}

func TestDemo_ManualAbort(t *testing.T) {
	code, out, _ := runCLI(t, "demo",
		"--tasks", "4", "--delay", "200ms",
		"--core", "1", "--max", "1", "--queue", "1", "--policy", "abort",
		"manual")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "task 2 rejected")
	assert.Contains(t, out, "task 3 rejected")
	assert.Contains(t, out, "completed=2 failed=0 rejected=2")
}

func TestDemo_ManualCallerRuns(t *testing.T) {
	code, out, _ := runCLI(t, "demo",
		"--tasks", "4", "--delay", "200ms",
		"--core", "1", "--max", "1", "--queue", "1", "--policy", "caller-runs",
		"manual")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "completed=4 failed=0 rejected=0")
	assert.NotContains(t, out, "caller_ran=0")
}

func TestDemo_Scheduled(t *testing.T) {
	code, out, _ := runCLI(t, "demo", "--tasks", "3", "--delay", "10ms", "scheduled")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "scheduled=3 completed=3")
	assert.Contains(t, out, "heartbeat_state=cancelled")
}

func TestDemo_Interrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	p, err := xpool.NewSingle()
	require.NoError(t, err)
	opts := demoOptions{tasks: 3, workers: 1}
	require.NoError(t, runBatchDemo(ctx, p, opts, &out))
	assert.Equal(t, xpool.StateTerminated, p.State())
	assert.Contains(t, out.String(), "submitted=3")
}

const validConfig = `
name: test-pool
shutdown_timeout: 2s
pool:
  core_size: 2
  max_size: 3
  keep_alive: 500ms
  queue_capacity: 8
  rejection: caller-runs
log:
  level: warn
workload:
  interval: 10ms
  batch: 4
  task_duration: 1ms
  fail_every: 3
metrics:
  sample_rate: 1
`

func TestValidate(t *testing.T) {
	code, out, _ := runCLI(t, "validate", "--config", writeConfig(t, validConfig))
	require.Equal(t, 0, code)
	assert.Contains(t, out, "name:              test-pool")
	assert.Contains(t, out, "pool.rejection:    caller_runs")
	assert.Contains(t, out, "pool.queue:        bounded(8)")
	assert.Contains(t, out, "log.level:         WARN")
}

func TestValidate_Errors(t *testing.T) {
	code, _, errOut := runCLI(t, "validate", "--config", writeConfig(t, "pool:\n  max_size: 0\n"))
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "max_size")

	code, _, _ = runCLI(t, "validate", "--config", writeConfig(t, "workload:\n  batch: 0\n"))
	assert.Equal(t, 2, code)

	code, _, errOut = runCLI(t, "validate", "--config", writeConfig(t, "metrics:\n  sample_rate: 2\n"))
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "sample_rate")

	code, _, _ = runCLI(t, "validate", "--config", "pool.toml")
	assert.Equal(t, 2, code)

	code, _, _ = runCLI(t, "validate", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, 1, code)
}

func TestLoadAppConfig_KeepsDefaults(t *testing.T) {
	cfg, src, err := loadAppConfig(writeConfig(t, "pool:\n  max_size: 8\n"))
	require.NoError(t, err)
	require.NotNil(t, src)

	def := defaultAppConfig()
	assert.Equal(t, 8, cfg.Pool.MaxSize)
	assert.Equal(t, def.Pool.CoreSize, cfg.Pool.CoreSize)
	assert.Equal(t, def.Workload.Interval, cfg.Workload.Interval)
	assert.Equal(t, def.ShutdownTimeout, cfg.ShutdownTimeout)
}

func TestRunCommand_Duration(t *testing.T) {
	code, out, _ := runCLI(t, "run", "--config", writeConfig(t, validConfig), "--duration", "200ms")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "submitted=")
	assert.Contains(t, out, "xexec.operation.total{status=error}")
	assert.Contains(t, out, "xexec.operation.total{status=ok}")
}

func TestRunCommand_Watch(t *testing.T) {
	code, out, _ := runCLI(t, "run", "--config", writeConfig(t, validConfig), "--watch", "--duration", "100ms")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "submitted=")
}

func TestRunCommand_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var stdout, stderr bytes.Buffer
	err := cmdRun(ctx, runOptions{
		configPath: writeConfig(t, validConfig),
		stdout:     &stdout,
		stderr:     &stderr,
	})
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "submitted=")
}

func TestLevelReloader(t *testing.T) {
	var buf bytes.Buffer
	logger, cleanup, err := xlog.New().SetOutput(&buf).SetLevel(xlog.LevelInfo).Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = cleanup() })

	reload := levelReloader(context.Background(), logger)

	cfg, err := xconf.NewFromBytes([]byte("log:\n  level: debug\n"), xconf.FormatYAML)
	require.NoError(t, err)
	reload(cfg, nil)
	assert.Equal(t, xlog.LevelDebug, logger.GetLevel())
	assert.Contains(t, buf.String(), "log level changed")

	reload(cfg, errors.New("boom"))
	assert.Equal(t, xlog.LevelDebug, logger.GetLevel())
	assert.Contains(t, buf.String(), "config reload failed")

	bad, err := xconf.NewFromBytes([]byte("log:\n  level: loud\n"), xconf.FormatYAML)
	require.NoError(t, err)
	reload(bad, nil)
	assert.Equal(t, xlog.LevelDebug, logger.GetLevel())
}

func TestIsCLIUsageError(t *testing.T) {
	assert.False(t, isCLIUsageError(nil))
	assert.False(t, isCLIUsageError(errors.New("connection refused")))
	assert.True(t, isCLIUsageError(errors.New("flag provided but not defined: -bogus")))
	assert.True(t, isCLIUsageError(errors.New(`Required flag "config" not set`)))
}

func TestQueueCapacityString(t *testing.T) {
	assert.Equal(t, "unbounded", queueCapacityString(xpool.Unbounded))
	assert.Equal(t, "hand-off", queueCapacityString(0))
	assert.Equal(t, "bounded(3)", queueCapacityString(3))
}

func TestRunCommand_Breaker(t *testing.T) {
	const cfg = `
shutdown_timeout: 2s
pool:
  core_size: 1
  max_size: 1
  queue_capacity: 0
  rejection: abort
workload:
  interval: 20ms
  batch: 4
  task_duration: 50ms
  breaker_failures: 2
  breaker_cooldown: 1s
`
	code, out, _ := runCLI(t, "run", "--config", writeConfig(t, cfg), "--duration", "150ms")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "skipped=")
	assert.NotContains(t, out, "skipped=0")
}
