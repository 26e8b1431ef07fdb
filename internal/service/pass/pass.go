// Package pass runs the two transcription cadences over a speaker buffer.
//
// The fast pass transcribes a short tail of recent audio and emits drafts.
// The slow pass transcribes everything past the cursor (plus a small
// overlap), emits finals and then commits the window. Each pass owns one
// goroutine per speaker; they share nothing but the speaker's State.
package pass

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"live-transcription-service/internal/models"
	"live-transcription-service/internal/observability/metrics"
	"live-transcription-service/internal/service/transcript"
)

// Pass names used in logs and metric labels.
const (
	NameFast = "fast"
	NameSlow = "slow"
)

// Sink receives transcript events. transcript.Emitter implements it.
type Sink interface {
	Emit(ctx context.Context, ev models.TranscriptEvent, meta transcript.Meta) error
}

// DefaultBackoff is the pause after a failed iteration.
const DefaultBackoff = time.Second

// loop calls tick every interval until ctx is done. A failed tick is logged
// and followed by a cancellable backoff; only cancellation ends the loop.
func loop(ctx context.Context, interval, backoff time.Duration, name string, sp models.Speaker,
	m *metrics.Metrics, logger zerolog.Logger, tick func(context.Context) error) error {
	if backoff <= 0 {
		backoff = DefaultBackoff
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		err := tick(ctx)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return nil
		}

		m.RecordPassError(name, sp.String())
		logger.Error().Err(err).Dur("backoff", backoff).Msg("Pass iteration failed")

		if !sleep(ctx, backoff) {
			return nil
		}
	}
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// bytesFor converts a duration of PCM16 mono audio to a whole number of
// samples in bytes.
func bytesFor(d time.Duration, sampleRate int) int {
	samples := int(d.Seconds() * float64(sampleRate))
	return samples * 2
}

// offsetMs converts an absolute byte offset to milliseconds of audio.
func offsetMs(offset int64, sampleRate int) int64 {
	if sampleRate <= 0 {
		return 0
	}
	return offset / 2 * 1000 / int64(sampleRate)
}
