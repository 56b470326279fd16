package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/omeyang/xexec/pkg/config/xconf"
	"github.com/omeyang/xexec/pkg/observability/xlog"
	"github.com/omeyang/xexec/pkg/observability/xsampling"
	"github.com/omeyang/xexec/pkg/util/xpool"
)

// 配置默认值。
const (
	defaultShutdownTimeout = 10 * time.Second
	defaultInterval        = 100 * time.Millisecond
	defaultBatch           = 4
	defaultTaskDuration    = 20 * time.Millisecond
)

// appConfig 是 run/validate 命令读取的配置文件结构。
type appConfig struct {
	Name            string         `koanf:"name"`
	ShutdownTimeout time.Duration  `koanf:"shutdown_timeout"`
	Pool            xpool.Config   `koanf:"pool"`
	Log             logConfig      `koanf:"log"`
	Metrics         metricsConfig  `koanf:"metrics"`
	Workload        workloadConfig `koanf:"workload"`
}

type metricsConfig struct {
	// SampleRate 按任务 ID 一致采样的比率，[0, 1]。
	SampleRate float64 `koanf:"sample_rate"`
}

type logConfig struct {
	Level      xlog.Level `koanf:"level"`
	Format     string     `koanf:"format"`
	File       string     `koanf:"file"`
	MaxSizeMB  int        `koanf:"max_size_mb"`
	MaxBackups int        `koanf:"max_backups"`
	MaxAgeDays int        `koanf:"max_age_days"`
	Compress   bool       `koanf:"compress"`
}

// workloadConfig 描述注入的模拟负载：每 Interval 提交 Batch 个任务。
type workloadConfig struct {
	Interval     time.Duration `koanf:"interval"`
	Batch        int           `koanf:"batch"`
	TaskDuration time.Duration `koanf:"task_duration"`
	// FailEvery 每第 N 个任务返回错误，0 不注入失败。
	FailEvery int `koanf:"fail_every"`
	// PanicEvery 每第 N 个任务 panic，0 不注入。
	PanicEvery int `koanf:"panic_every"`
	// RetryAttempts > 0 时 ErrOverload 的提交按退避重试。
	RetryAttempts uint          `koanf:"retry_attempts"`
	RetryDelay    time.Duration `koanf:"retry_delay"`
	// BreakerFailures > 0 时连续过载达到该次数后暂停提交 BreakerCooldown。
	BreakerFailures uint32        `koanf:"breaker_failures"`
	BreakerCooldown time.Duration `koanf:"breaker_cooldown"`
}

func defaultAppConfig() appConfig {
	return appConfig{
		Name:            "xpoolctl",
		ShutdownTimeout: defaultShutdownTimeout,
		Pool: xpool.Config{
			CoreSize:      2,
			MaxSize:       4,
			KeepAlive:     time.Second,
			QueueCapacity: 16,
		},
		Log:     logConfig{Level: xlog.LevelInfo, Format: "text"},
		Metrics: metricsConfig{SampleRate: 1},
		Workload: workloadConfig{
			Interval:     defaultInterval,
			Batch:        defaultBatch,
			TaskDuration: defaultTaskDuration,
		},
	}
}

// loadAppConfig 加载并校验配置文件，未出现的字段保留默认值。
func loadAppConfig(path string) (appConfig, xconf.Config, error) {
	cfg := defaultAppConfig()
	src, err := xconf.New(path)
	if err != nil {
		if errors.Is(err, xconf.ErrEmptyPath) || errors.Is(err, xconf.ErrUnsupportedFormat) {
			return cfg, nil, newUsageError("%v", err)
		}
		return cfg, nil, err
	}
	if err := src.Unmarshal("", &cfg); err != nil {
		return cfg, nil, newUsageError("%v", err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, nil, newUsageError("%v", err)
	}
	return cfg, src, nil
}

func (c appConfig) validate() error {
	if err := c.Pool.Validate(); err != nil {
		return err
	}
	if _, err := xsampling.NewRateSampler(c.Metrics.SampleRate); err != nil {
		return fmt.Errorf("metrics.sample_rate: %w", err)
	}
	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("shutdown_timeout must be >= 0, got %s", c.ShutdownTimeout)
	}
	w := c.Workload
	switch {
	case w.Interval <= 0:
		return fmt.Errorf("workload.interval must be > 0, got %s", w.Interval)
	case w.Batch < 1:
		return fmt.Errorf("workload.batch must be >= 1, got %d", w.Batch)
	case w.TaskDuration < 0:
		return fmt.Errorf("workload.task_duration must be >= 0, got %s", w.TaskDuration)
	case w.FailEvery < 0 || w.PanicEvery < 0:
		return errors.New("workload.fail_every and workload.panic_every must be >= 0")
	}
	return nil
}
