package xsampling

import (
	"errors"
	"math"
)

var (
	// ErrInvalidRate 表示采样比率不在 [0.0, 1.0] 范围内。
	ErrInvalidRate = errors.New("xsampling: rate must be in [0.0, 1.0]")

	// ErrNilKeyFunc 表示 KeyBasedSampler 的 keyFunc 为 nil。
	ErrNilKeyFunc = errors.New("xsampling: keyFunc must not be nil")
)

func validateRate(rate float64) error {
	if math.IsNaN(rate) || rate < 0 || rate > 1 {
		return ErrInvalidRate
	}
	return nil
}
