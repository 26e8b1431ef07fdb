package stt

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"live-transcription-service/internal/observability/metrics"
)

// Pool bounds the number of engine calls running at once across every
// session and pass.
type Pool struct {
	sem     *semaphore.Weighted
	size    int
	metrics *metrics.Metrics
}

// NewPool creates a pool with size workers. size < 1 is treated as 1.
func NewPool(size int, m *metrics.Metrics) *Pool {
	if size < 1 {
		size = 1
	}
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Pool{
		sem:     semaphore.NewWeighted(int64(size)),
		size:    size,
		metrics: m,
	}
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

type result struct {
	segments []Segment
	err      error
}

// Transcribe waits for a free worker and runs engine on it. If ctx ends
// while waiting or while the engine runs, Transcribe returns ctx.Err()
// immediately; an engine call already in flight keeps its worker until it
// returns and its result is discarded.
func (p *Pool) Transcribe(ctx context.Context, engine Engine, pass string, samples []float32, opts DecodeOptions) ([]Segment, error) {
	waitStart := time.Now()
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	p.metrics.RecordInferenceWait(pass, time.Since(waitStart).Seconds())

	done := make(chan result, 1)
	go func() {
		defer p.sem.Release(1)
		p.metrics.InferenceInFlight.Inc()
		defer p.metrics.InferenceInFlight.Dec()

		start := time.Now()
		segs, err := engine.Transcribe(ctx, samples, opts)
		p.metrics.RecordInference(engine.Name(), pass, time.Since(start).Seconds())
		if err != nil {
			err = fmt.Errorf("%s transcribe: %w", engine.Name(), err)
		}
		done <- result{segments: segs, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return r.segments, r.err
	}
}
