package xsampling

import (
	"context"
	"math"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/omeyang/xexec/pkg/context/xctx"
)

// KeyFunc 从 context 提取采样 key，返回空串时回退到随机采样。
type KeyFunc func(ctx context.Context) string

// KeyBasedSampler 按 key 的一致性采样：相同 key 在相同 rate 下决策相同，跨进程一致。
type KeyBasedSampler struct {
	rate    float64
	keyFunc KeyFunc
}

// NewKeyBasedSampler 创建一致性采样器。
func NewKeyBasedSampler(rate float64, keyFunc KeyFunc) (*KeyBasedSampler, error) {
	if err := validateRate(rate); err != nil {
		return nil, err
	}
	if keyFunc == nil {
		return nil, ErrNilKeyFunc
	}
	return &KeyBasedSampler{rate: rate, keyFunc: keyFunc}, nil
}

func (s *KeyBasedSampler) ShouldSample(ctx context.Context) bool {
	if s.rate <= 0 || s.rate >= 1 || ctx == nil {
		return sampleRandom(s.rate)
	}
	key := s.keyFunc(ctx)
	if key == "" {
		return sampleRandom(s.rate)
	}
	return hashFraction(key) < s.rate
}

// Rate 返回采样比率。
func (s *KeyBasedSampler) Rate() float64 {
	return s.rate
}

// hashFraction 把 key 映射到 [0, 1]。
func hashFraction(key string) float64 {
	return float64(xxhash.Sum64String(key)) / float64(math.MaxUint64)
}

// TaskKey 以任务 ID 作为采样 key，context 中没有任务 ID 时返回空串。
func TaskKey(ctx context.Context) string {
	id, ok := xctx.TaskID(ctx)
	if !ok {
		return ""
	}
	return strconv.FormatUint(id, 10)
}
