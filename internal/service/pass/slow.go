package pass

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"live-transcription-service/internal/models"
	"live-transcription-service/internal/observability/metrics"
	"live-transcription-service/internal/service/segment"
	"live-transcription-service/internal/service/speaker"
	"live-transcription-service/internal/service/stt"
	"live-transcription-service/internal/service/transcript"
)

// SlowConfig tunes the final cadence.
type SlowConfig struct {
	Interval  time.Duration
	MinWindow time.Duration // minimum pending audio before a window is cut
	Overlap   time.Duration // audio re-read before the cursor
	MaxWindow time.Duration // cap on one window, 0 for none
	// Retain is kept before the cursor on commit. Values below Overlap are
	// raised to Overlap.
	Retain     time.Duration
	Backoff    time.Duration
	SampleRate int
	Language   string
}

// DefaultSlowConfig returns a 500 ms cadence over windows of at least 2 s.
func DefaultSlowConfig() SlowConfig {
	return SlowConfig{
		Interval:   500 * time.Millisecond,
		MinWindow:  2 * time.Second,
		Overlap:    200 * time.Millisecond,
		MaxWindow:  30 * time.Second,
		Retain:     500 * time.Millisecond,
		Backoff:    DefaultBackoff,
		SampleRate: 16000,
		Language:   "en",
	}
}

// Slow emits final transcripts for one speaker and owns its cursor.
type Slow struct {
	cfg          SlowConfig
	sessionID    string
	state        *speaker.State
	engine       stt.Engine
	pool         *stt.Pool
	sink         Sink
	windows      *segment.Generator
	metrics      *metrics.Metrics
	logger       zerolog.Logger
	minBytes     int
	overlapBytes int
	maxBytes     int
	retainBytes  int

	mu       sync.Mutex
	inflight *segment.Lifecycle
}

// NewSlow creates a slow pass. windows generates window IDs and may be
// shared across speakers.
func NewSlow(cfg SlowConfig, sessionID string, state *speaker.State, engine stt.Engine, pool *stt.Pool,
	sink Sink, windows *segment.Generator, m *metrics.Metrics, logger zerolog.Logger) *Slow {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	if windows == nil {
		windows = segment.New()
	}
	overlap := bytesFor(cfg.Overlap, cfg.SampleRate)
	return &Slow{
		cfg:          cfg,
		sessionID:    sessionID,
		state:        state,
		engine:       engine,
		pool:         pool,
		sink:         sink,
		windows:      windows,
		metrics:      m,
		logger:       logger,
		minBytes:     bytesFor(cfg.MinWindow, cfg.SampleRate),
		overlapBytes: overlap,
		maxBytes:     bytesFor(cfg.MaxWindow, cfg.SampleRate),
		retainBytes:  max(overlap, bytesFor(cfg.Retain, cfg.SampleRate)),
	}
}

// Run ticks until ctx is cancelled.
func (s *Slow) Run(ctx context.Context) error {
	s.logger.Debug().Dur("interval", s.cfg.Interval).Msg("Slow pass started")
	defer s.logger.Debug().Msg("Slow pass stopped")
	return loop(ctx, s.cfg.Interval, s.cfg.Backoff, NameSlow, s.state.Speaker(), s.metrics, s.logger, s.Tick)
}

// Abort drops the window currently being processed, if any. A dropped window
// emits nothing further and never commits. It is safe to call from any
// goroutine.
func (s *Slow) Abort() bool {
	s.mu.Lock()
	lc := s.inflight
	s.mu.Unlock()
	if lc == nil {
		return false
	}
	return lc.Drop()
}

func (s *Slow) track(lc *segment.Lifecycle) {
	s.mu.Lock()
	s.inflight = lc
	s.mu.Unlock()
}

// Tick performs one final iteration. The cursor moves only after every
// segment of the window has been emitted, and only if the window was not
// dropped in the meantime.
func (s *Slow) Tick(ctx context.Context) error {
	sp := s.state.Speaker()
	s.metrics.RecordTick(NameSlow, sp.String())

	if s.state.Pending() < s.minBytes {
		s.metrics.RecordSkip(NameSlow, sp.String(), "pending_short")
		return nil
	}

	win := s.state.SnapshotFrom(s.overlapBytes, s.maxBytes)
	lc := segment.NewLifecycle(s.windows.Next(s.sessionID, sp.String()))
	if err := lc.BeginInference(); err != nil {
		return err
	}
	s.track(lc)
	defer s.track(nil)
	s.metrics.RecordWindow(NameSlow, win.Len())

	log := s.logger.With().
		Str("windowId", lc.ID()).
		Int64("start", win.Start).
		Int64("end", win.End).
		Logger()

	segs, err := s.pool.Transcribe(ctx, s.engine, NameSlow, stt.PCM16ToFloat32(win.PCM), stt.FinalOptions(s.cfg.Language))
	if ctx.Err() != nil || lc.IsDropped() {
		lc.Drop()
		log.Debug().Msg("Window dropped")
		return nil
	}
	if err != nil {
		lc.Drop()
		return fmt.Errorf("window %s: %w", lc.ID(), err)
	}

	startMs := offsetMs(win.Start, s.cfg.SampleRate)
	emitted := 0
	for _, seg := range segs {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		if lc.IsDropped() {
			break
		}
		meta := transcript.Meta{
			WindowID:      lc.ID(),
			AudioOffsetMs: startMs + int64(math.Round(seg.Start*1000)),
		}
		if err := s.sink.Emit(ctx, models.NewFinal(sp, text, seg.AvgLogProb), meta); err != nil {
			lc.Drop()
			return fmt.Errorf("window %s: %w", lc.ID(), err)
		}
		emitted++
	}

	trimmed := 0
	err = lc.Commit(func() {
		trimmed = s.state.Commit(win.End, s.retainBytes)
	})
	if errors.Is(err, segment.ErrWindowClosed) {
		log.Debug().Int("segments", emitted).Msg("Window dropped before commit")
		return nil
	}
	if err != nil {
		return err
	}
	s.metrics.RecordCommit(sp.String(), trimmed, s.state.Len())

	log.Debug().
		Int("bytes", win.Len()).
		Int("segments", emitted).
		Int("trimmed", trimmed).
		Msg("Window committed")
	return nil
}
