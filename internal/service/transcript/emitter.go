// Package transcript serializes transcript events onto the session's
// outbound connection and mirrors them to Kafka.
package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"live-transcription-service/internal/models"
	"live-transcription-service/internal/observability/metrics"
)

// Meta carries session context that is mirrored but not sent to the client.
type Meta struct {
	WindowID      string
	AudioOffsetMs int64
}

// Writer sends one text frame. Implementations are not required to be
// safe for concurrent use.
type Writer interface {
	Write(ctx context.Context, payload []byte) error
}

// Mirror receives a copy of every emitted event.
type Mirror interface {
	Enabled() bool
	PublishDraft(ctx context.Context, key string, record models.TranscriptRecord) error
	PublishFinal(ctx context.Context, key string, record models.TranscriptRecord) error
}

// Emitter is the single outbound sink for a session. All four pass tasks
// share it; a mutex keeps frames whole and in emit order.
type Emitter struct {
	sessionID string
	conn      Writer
	mirror    Mirror
	metrics   *metrics.Metrics
	logger    zerolog.Logger

	mu     sync.Mutex
	drafts int
	finals int
}

// NewEmitter creates a sink for one session. mirror may be nil.
func NewEmitter(sessionID string, conn Writer, mirror Mirror, m *metrics.Metrics, logger zerolog.Logger) *Emitter {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Emitter{
		sessionID: sessionID,
		conn:      conn,
		mirror:    mirror,
		metrics:   m,
		logger:    logger,
	}
}

// Emit marshals ev and writes it to the client. Mirror failures are logged
// and never returned.
func (e *Emitter) Emit(ctx context.Context, ev models.TranscriptEvent, meta Meta) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.conn.Write(ctx, payload); err != nil {
		e.metrics.RecordEmitError()
		return fmt.Errorf("write transcript: %w", err)
	}

	if ev.Final {
		e.finals++
		e.metrics.RecordFinal(ev.Speaker.String())
	} else {
		e.drafts++
		e.metrics.RecordDraft(ev.Speaker.String())
	}

	e.logger.Debug().
		Str("speaker", ev.Speaker.String()).
		Bool("final", ev.Final).
		Str("text", ev.Text).
		Float64("confidence", ev.Confidence).
		Str("windowId", meta.WindowID).
		Msg("Transcript emitted")

	e.mirrorLocked(ctx, ev, meta)
	return nil
}

func (e *Emitter) mirrorLocked(ctx context.Context, ev models.TranscriptEvent, meta Meta) {
	if e.mirror == nil || !e.mirror.Enabled() {
		return
	}

	rec := models.TranscriptRecord{
		EventType:     "transcript.draft",
		SessionID:     e.sessionID,
		WindowID:      meta.WindowID,
		Speaker:       ev.Speaker,
		Text:          ev.Text,
		Final:         ev.Final,
		Confidence:    ev.Confidence,
		AudioOffsetMs: meta.AudioOffsetMs,
		Timestamp:     time.Now().UnixMilli(),
	}

	var err error
	if ev.Final {
		rec.EventType = "transcript.final"
		err = e.mirror.PublishFinal(ctx, e.sessionID, rec)
	} else {
		err = e.mirror.PublishDraft(ctx, e.sessionID, rec)
	}
	if err != nil {
		e.logger.Warn().Err(err).Bool("final", ev.Final).Msg("Failed to mirror transcript")
	}
}

// Counts returns the number of drafts and finals written.
func (e *Emitter) Counts() (drafts, finals int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.drafts, e.finals
}
