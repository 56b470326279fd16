package xmetrics

import (
	"context"

	"github.com/omeyang/xexec/pkg/observability/xsampling"
)

// Sampled 返回按 sampler 采样的 Observer：未命中采样的跨度不产生 trace 和指标。
// sampler 为 nil 时直接返回 observer。
func Sampled(observer Observer, sampler xsampling.Sampler) Observer {
	if observer == nil {
		return NoopObserver{}
	}
	if sampler == nil {
		return observer
	}
	return &sampledObserver{next: observer, sampler: sampler}
}

type sampledObserver struct {
	next    Observer
	sampler xsampling.Sampler
}

func (o *sampledObserver) Start(ctx context.Context, opts SpanOptions) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !o.sampler.ShouldSample(ctx) {
		return ctx, NoopSpan{}
	}
	return o.next.Start(ctx, opts)
}
