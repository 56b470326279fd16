package xsampling

import (
	"context"
	"math/rand/v2"
)

// Sampler 采样策略。ctx 携带决策所需的信息（如任务 ID），可以为 nil。
type Sampler interface {
	ShouldSample(ctx context.Context) bool
}

type constSampler bool

func (s constSampler) ShouldSample(context.Context) bool { return bool(s) }

// Always 返回全采样策略。
func Always() Sampler { return constSampler(true) }

// Never 返回不采样策略。
func Never() Sampler { return constSampler(false) }

// RateSampler 按固定比率随机采样。
type RateSampler struct {
	rate float64
}

// NewRateSampler 创建比率采样器，rate 超出 [0, 1] 或为 NaN 时返回 ErrInvalidRate。
func NewRateSampler(rate float64) (*RateSampler, error) {
	if err := validateRate(rate); err != nil {
		return nil, err
	}
	return &RateSampler{rate: rate}, nil
}

func (s *RateSampler) ShouldSample(context.Context) bool {
	return sampleRandom(s.rate)
}

// Rate 返回采样比率。
func (s *RateSampler) Rate() float64 {
	return s.rate
}

func sampleRandom(rate float64) bool {
	switch {
	case rate <= 0:
		return false
	case rate >= 1:
		return true
	default:
		return rand.Float64() < rate
	}
}
