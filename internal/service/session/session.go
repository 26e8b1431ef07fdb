// Package session runs one client connection: an ingest reader plus a fast
// and a slow pass per speaker, all sharing a single transcript emitter.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"live-transcription-service/internal/observability/logging"
	"live-transcription-service/internal/observability/metrics"
	"live-transcription-service/internal/service/audio"
	"live-transcription-service/internal/service/pass"
	"live-transcription-service/internal/service/segment"
	"live-transcription-service/internal/service/speaker"
	"live-transcription-service/internal/service/stt"
	"live-transcription-service/internal/service/transcript"
	"live-transcription-service/internal/transport"
)

// ErrBinaryFrame is returned for inbound binary messages, which the
// protocol does not use.
var ErrBinaryFrame = errors.New("binary frames are not supported")

// Conn is the client connection. Close must unblock a pending Read.
type Conn interface {
	Read(ctx context.Context) (transport.Frame, error)
	Write(ctx context.Context, payload []byte) error
	Close() error
}

// Config holds per-session tuning.
type Config struct {
	Fast   pass.FastConfig
	Slow   pass.SlowConfig
	Ingest audio.IngestLimits
}

// DefaultConfig returns the default pass cadences and ingest limits.
func DefaultConfig() Config {
	return Config{
		Fast:   pass.DefaultFastConfig(),
		Slow:   pass.DefaultSlowConfig(),
		Ingest: audio.DefaultLimits(),
	}
}

// Deps are shared by every session of the process.
type Deps struct {
	FastEngine  stt.Engine
	FinalEngine stt.Engine
	Pool        *stt.Pool
	Mirror      transcript.Mirror // optional
	Metrics     *metrics.Metrics
}

// Session is a single client connection's lifetime.
type Session struct {
	id     string
	cfg    Config
	deps   Deps
	logger zerolog.Logger
}

// New creates a session with a fresh ID.
func New(cfg Config, deps Deps, remoteAddr string) *Session {
	if deps.Metrics == nil {
		deps.Metrics = metrics.DefaultMetrics
	}
	id := uuid.NewString()
	return &Session{
		id:     id,
		cfg:    cfg,
		deps:   deps,
		logger: logging.WithSession(id, remoteAddr),
	}
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// Run serves conn until the client disconnects or ctx is cancelled. Speaker
// buffers are created here and discarded on return. Run closes conn and
// returns only after every task has exited.
func (s *Session) Run(ctx context.Context, conn Conn) error {
	start := time.Now()
	m := s.deps.Metrics
	m.RecordSessionStart()
	defer func() { m.RecordSessionEnd(time.Since(start).Seconds()) }()

	speakers := speaker.NewSet(s.cfg.Ingest.MaxPendingBytes)
	ingest := audio.NewHandler(speakers, s.cfg.Ingest, m, s.logger)
	emitter := transcript.NewEmitter(s.id, conn, s.deps.Mirror, m, s.logger)
	windows := segment.New()

	g, gctx := errgroup.WithContext(ctx)
	sctx, cancel := context.WithCancel(gctx)
	defer cancel()

	var (
		fasts []*pass.Fast
		slows []*pass.Slow
	)
	for _, st := range speakers.All() {
		fasts = append(fasts, pass.NewFast(s.cfg.Fast, st, s.deps.FastEngine, s.deps.Pool, emitter, m,
			logging.WithPass(s.logger, pass.NameFast, st.Speaker().String())))
		slows = append(slows, pass.NewSlow(s.cfg.Slow, s.id, st, s.deps.FinalEngine, s.deps.Pool, emitter, windows, m,
			logging.WithPass(s.logger, pass.NameSlow, st.Speaker().String())))
	}

	g.Go(func() error {
		<-sctx.Done()
		for _, slow := range slows {
			if slow.Abort() {
				s.logger.Debug().Msg("In-flight window dropped on close")
			}
		}
		if err := conn.Close(); err != nil {
			s.logger.Debug().Err(err).Msg("Close connection")
		}
		return nil
	})

	g.Go(func() error {
		defer cancel()
		return s.read(sctx, conn, ingest)
	})

	for i := range fasts {
		fast, slow := fasts[i], slows[i]
		g.Go(func() error { return fast.Run(sctx) })
		g.Go(func() error { return slow.Run(sctx) })
	}

	s.logger.Info().Msg("Session started")
	err := g.Wait()

	accepted, rejected := ingest.Counts()
	drafts, finals := emitter.Counts()
	ev := s.logger.Info()
	if err != nil {
		ev = s.logger.Warn().Err(err)
	}
	ev.Int64("accepted", accepted).
		Int64("rejected", rejected).
		Int("drafts", drafts).
		Int("finals", finals).
		Dur("duration", time.Since(start)).
		Msg("Session ended")

	for _, st := range speakers.All() {
		stats := st.Stats()
		s.logger.Debug().
			Str("speaker", st.Speaker().String()).
			Int64("written", stats.Written).
			Int64("trimmed", stats.Trimmed).
			Int("pending", stats.Pending).
			Int("cursor", stats.Cursor).
			Str("lastDraft", st.LastDraft()).
			Msg("Speaker buffer at close")
	}
	return err
}

// read feeds inbound frames to the ingest handler. Invalid messages are
// dropped and reading continues; a closed connection ends the session.
func (s *Session) read(ctx context.Context, conn Conn, ingest *audio.Handler) error {
	for {
		frame, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			if errors.Is(err, transport.ErrMessageTooLarge) {
				ingest.Reject("message_too_large", err)
				s.logger.Warn().Err(err).Msg("Connection closed on oversized message")
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		if frame.Kind != transport.KindText {
			ingest.Reject("binary_frame", ErrBinaryFrame)
			s.logger.Warn().Int("bytes", len(frame.Data)).Msg("Dropped binary frame")
			continue
		}
		if err := ingest.Handle(frame.Data); err != nil {
			s.logger.Warn().Err(err).Msg("Dropped inbound message")
		}
	}
}
