package http

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"live-transcription-service/internal/observability/metrics"
	"live-transcription-service/internal/service/session"
	"live-transcription-service/internal/transport"
)

// StreamConfig bounds the WebSocket endpoint.
type StreamConfig struct {
	MaxSessions int
	Transport   transport.Config
	Session     session.Config
}

// StreamHandler upgrades requests to WebSocket sessions. Sessions run on
// the handler's base context so Shutdown can end them; the request context
// is not used after the upgrade.
type StreamHandler struct {
	cfg     StreamConfig
	deps    session.Deps
	slots   *semaphore.Weighted
	base    context.Context
	metrics *metrics.Metrics
	logger  zerolog.Logger

	wg     sync.WaitGroup
	active atomic.Int32
}

// NewStreamHandler creates the handler. Sessions end when base is cancelled.
func NewStreamHandler(base context.Context, cfg StreamConfig, deps session.Deps, logger zerolog.Logger) *StreamHandler {
	if cfg.MaxSessions < 1 {
		cfg.MaxSessions = 1
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &StreamHandler{
		cfg:     cfg,
		deps:    deps,
		slots:   semaphore.NewWeighted(int64(cfg.MaxSessions)),
		base:    base,
		metrics: m,
		logger:  logger,
	}
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.base.Err() != nil {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	if !h.slots.TryAcquire(1) {
		h.metrics.RecordSessionRejected()
		h.logger.Warn().Str("remoteAddr", r.RemoteAddr).Int("maxSessions", h.cfg.MaxSessions).Msg("Session rejected: limit reached")
		http.Error(w, "session limit reached", http.StatusServiceUnavailable)
		return
	}
	defer h.slots.Release(1)

	conn, err := transport.Upgrade(w, r, h.cfg.Transport)
	if err != nil {
		// Upgrade has already written an HTTP error.
		h.logger.Warn().Err(err).Str("remoteAddr", r.RemoteAddr).Msg("WebSocket upgrade failed")
		return
	}

	h.wg.Add(1)
	defer h.wg.Done()
	h.active.Add(1)
	defer h.active.Add(-1)

	s := session.New(h.cfg.Session, h.deps, r.RemoteAddr)
	if err := s.Run(h.base, conn); err != nil {
		h.logger.Warn().Err(err).Str("sessionId", s.ID()).Msg("Session ended with error")
	}
}

// Active returns the number of running sessions.
func (h *StreamHandler) Active() int {
	return int(h.active.Load())
}

// Wait blocks until every session has returned or ctx ends.
func (h *StreamHandler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
