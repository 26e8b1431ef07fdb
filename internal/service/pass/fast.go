package pass

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"live-transcription-service/internal/models"
	"live-transcription-service/internal/observability/metrics"
	"live-transcription-service/internal/service/speaker"
	"live-transcription-service/internal/service/stt"
	"live-transcription-service/internal/service/transcript"
)

// FastConfig tunes the draft cadence.
type FastConfig struct {
	Interval   time.Duration
	MinWindow  time.Duration // skip while the buffer holds less than this
	Tail       time.Duration // audio transcribed per tick
	Backoff    time.Duration
	SampleRate int
	Language   string
}

// DefaultFastConfig returns a 150 ms cadence over a 0.5 s tail.
func DefaultFastConfig() FastConfig {
	return FastConfig{
		Interval:   150 * time.Millisecond,
		MinWindow:  400 * time.Millisecond,
		Tail:       500 * time.Millisecond,
		Backoff:    DefaultBackoff,
		SampleRate: 16000,
		Language:   "en",
	}
}

// Fast emits draft transcripts of the most recent audio for one speaker.
type Fast struct {
	cfg       FastConfig
	state     *speaker.State
	engine    stt.Engine
	pool      *stt.Pool
	sink      Sink
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	minBytes  int
	tailBytes int

	// written watermark at the last inference attempt
	lastWritten int64
}

// NewFast creates a fast pass. It never moves the cursor of state.
func NewFast(cfg FastConfig, state *speaker.State, engine stt.Engine, pool *stt.Pool, sink Sink, m *metrics.Metrics, logger zerolog.Logger) *Fast {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Fast{
		cfg:       cfg,
		state:     state,
		engine:    engine,
		pool:      pool,
		sink:      sink,
		metrics:   m,
		logger:    logger,
		minBytes:  bytesFor(cfg.MinWindow, cfg.SampleRate),
		tailBytes: bytesFor(cfg.Tail, cfg.SampleRate),
	}
}

// Run ticks until ctx is cancelled.
func (f *Fast) Run(ctx context.Context) error {
	f.logger.Debug().Dur("interval", f.cfg.Interval).Msg("Fast pass started")
	defer f.logger.Debug().Msg("Fast pass stopped")
	return loop(ctx, f.cfg.Interval, f.cfg.Backoff, NameFast, f.state.Speaker(), f.metrics, f.logger, f.Tick)
}

// Tick performs one draft iteration.
func (f *Fast) Tick(ctx context.Context) error {
	sp := f.state.Speaker().String()
	f.metrics.RecordTick(NameFast, sp)

	written := f.state.Written()
	if written == f.lastWritten {
		f.metrics.RecordSkip(NameFast, sp, "no_new_audio")
		return nil
	}
	if f.state.Len() < f.minBytes {
		f.metrics.RecordSkip(NameFast, sp, "too_short")
		return nil
	}

	pcm := f.state.SnapshotTail(f.tailBytes)
	f.metrics.RecordWindow(NameFast, len(pcm))

	segs, err := f.pool.Transcribe(ctx, f.engine, NameFast, stt.PCM16ToFloat32(pcm), stt.FastOptions(f.cfg.Language))
	if err != nil {
		// The watermark stays put so the same tail is retried after backoff.
		return err
	}
	f.lastWritten = written
	if ctx.Err() != nil {
		return nil
	}

	meta := transcript.Meta{AudioOffsetMs: offsetMs(written, f.cfg.SampleRate)}
	for _, seg := range segs {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		if !f.state.Draft(text) {
			f.metrics.RecordDraftDeduplicated(sp)
			continue
		}
		if err := f.sink.Emit(ctx, models.NewDraft(f.state.Speaker(), text, seg.AvgLogProb), meta); err != nil {
			return err
		}
	}
	return nil
}
