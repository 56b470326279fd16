// Package xrotate 为 xlog 提供基于文件大小的日志轮转，底层使用 lumberjack。
package xrotate

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

var _ io.WriteCloser = (Rotator)(nil)

// Rotator 日志轮转器接口。实现必须并发安全。
type Rotator interface {
	Write(p []byte) (n int, err error)
	// Close 重复调用返回 ErrClosed。
	Close() error
	// Rotate 手动触发轮转。
	Rotate() error
}

// 默认配置。
const (
	DefaultMaxSizeMB  = 100
	DefaultMaxBackups = 7
	DefaultMaxAgeDays = 30

	maxSizeMB  = 10240
	maxBackups = 1024
	maxAgeDays = 3650
)

var (
	// ErrEmptyFilename 文件名为空。
	ErrEmptyFilename = errors.New("xrotate: empty filename")
	// ErrInvalidConfig 轮转参数越界。
	ErrInvalidConfig = errors.New("xrotate: invalid config")
	// ErrClosed 轮转器已关闭。
	ErrClosed = errors.New("xrotate: rotator closed")
)

type config struct {
	maxSizeMB  int
	maxBackups int
	maxAgeDays int
	compress   bool
	localTime  bool
}

// Option 轮转配置项。
type Option func(*config)

// WithMaxSize 设置单个文件最大大小（MB）。
func WithMaxSize(mb int) Option {
	return func(c *config) { c.maxSizeMB = mb }
}

// WithMaxBackups 设置备份数量，0 表示不限制。
func WithMaxBackups(n int) Option {
	return func(c *config) { c.maxBackups = n }
}

// WithMaxAge 设置备份保留天数，0 表示不按天数清理。
func WithMaxAge(days int) Option {
	return func(c *config) { c.maxAgeDays = days }
}

// WithCompress 设置是否 gzip 压缩备份。
func WithCompress(compress bool) Option {
	return func(c *config) { c.compress = compress }
}

// WithLocalTime 备份文件名使用本地时间（默认 UTC）。
func WithLocalTime(local bool) Option {
	return func(c *config) { c.localTime = local }
}

type lumberjackRotator struct {
	logger *lumberjack.Logger
	mu     sync.Mutex
	closed atomic.Bool
}

// NewLumberjack 创建基于 lumberjack 的轮转器。
func NewLumberjack(filename string, opts ...Option) (Rotator, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return nil, ErrEmptyFilename
	}
	cfg := config{
		maxSizeMB:  DefaultMaxSizeMB,
		maxBackups: DefaultMaxBackups,
		maxAgeDays: DefaultMaxAgeDays,
		compress:   true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	return &lumberjackRotator{
		logger: &lumberjack.Logger{
			Filename:   filepath.Clean(filename),
			MaxSize:    cfg.maxSizeMB,
			MaxBackups: cfg.maxBackups,
			MaxAge:     cfg.maxAgeDays,
			Compress:   cfg.compress,
			LocalTime:  cfg.localTime,
		},
	}, nil
}

func validate(cfg config) error {
	switch {
	case cfg.maxSizeMB <= 0 || cfg.maxSizeMB > maxSizeMB:
		return fmt.Errorf("%w: max size %d MB out of (0, %d]", ErrInvalidConfig, cfg.maxSizeMB, maxSizeMB)
	case cfg.maxBackups < 0 || cfg.maxBackups > maxBackups:
		return fmt.Errorf("%w: max backups %d out of [0, %d]", ErrInvalidConfig, cfg.maxBackups, maxBackups)
	case cfg.maxAgeDays < 0 || cfg.maxAgeDays > maxAgeDays:
		return fmt.Errorf("%w: max age %d out of [0, %d]", ErrInvalidConfig, cfg.maxAgeDays, maxAgeDays)
	}
	return nil
}

func (r *lumberjackRotator) Write(p []byte) (int, error) {
	if r.closed.Load() {
		return 0, ErrClosed
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.logger.Write(p)
}

func (r *lumberjackRotator) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.logger.Close()
}

func (r *lumberjackRotator) Rotate() error {
	if r.closed.Load() {
		return ErrClosed
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.logger.Rotate()
}
