// Package audio routes inbound audio envelopes into per-speaker buffers.
package audio

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"live-transcription-service/internal/observability/metrics"
	"live-transcription-service/internal/schema"
	"live-transcription-service/internal/service/speaker"
)

// Ingest errors. Schema errors from the validator are returned unchanged.
var (
	ErrChunkTooLarge = errors.New("audio chunk exceeds limit")
	ErrNoSpeaker     = errors.New("speaker has no buffer")
)

// IngestLimits defines safety guardrails for inbound audio.
// These prevent unbounded buffering when the slow pass falls behind.
type IngestLimits struct {
	MaxChunkBytes   int // max decoded bytes in one message
	MaxPendingBytes int // max unprocessed bytes per speaker
}

// DefaultLimits returns limits for 16 kHz PCM16: 10 s per chunk and two
// minutes of unprocessed audio per speaker.
func DefaultLimits() IngestLimits {
	return IngestLimits{
		MaxChunkBytes:   10 * 16000 * 2,
		MaxPendingBytes: 120 * 16000 * 2,
	}
}

// Handler validates envelopes and appends their audio to the matching
// speaker buffer. It is used by a single session and keeps no state of its
// own besides counters.
type Handler struct {
	validator *schema.Validator
	speakers  *speaker.Set
	limits    IngestLimits
	metrics   *metrics.Metrics
	logger    zerolog.Logger

	accepted int64
	rejected int64
}

// NewHandler creates an ingest handler for one session's speakers.
func NewHandler(speakers *speaker.Set, limits IngestLimits, m *metrics.Metrics, logger zerolog.Logger) *Handler {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Handler{
		validator: schema.New(),
		speakers:  speakers,
		limits:    limits,
		metrics:   m,
		logger:    logger,
	}
}

// Handle processes one text frame. A non-nil error means the message was
// dropped; the buffers are unchanged and the caller should keep reading.
func (h *Handler) Handle(raw []byte) error {
	chunk, err := h.validator.Validate(raw)
	if err != nil {
		return h.reject(schema.Reason(err), err)
	}

	if h.limits.MaxChunkBytes > 0 && len(chunk.PCM) > h.limits.MaxChunkBytes {
		return h.reject("chunk_too_large",
			fmt.Errorf("%w: %d > %d", ErrChunkTooLarge, len(chunk.PCM), h.limits.MaxChunkBytes))
	}

	st, ok := h.speakers.Get(chunk.Speaker)
	if !ok {
		return h.reject("unknown_speaker", fmt.Errorf("%w: %s", ErrNoSpeaker, chunk.Speaker))
	}

	written, err := st.Append(chunk.PCM)
	if err != nil {
		return h.reject("pending_limit", fmt.Errorf("speaker %s: %w", chunk.Speaker, err))
	}

	h.accepted++
	h.metrics.RecordAudioReceived(chunk.Speaker.String(), len(chunk.PCM))
	h.logger.Trace().
		Str("speaker", chunk.Speaker.String()).
		Int("bytes", len(chunk.PCM)).
		Int64("written", written).
		Msg("Audio appended")
	return nil
}

// Reject records a message dropped before validation, such as a binary frame.
func (h *Handler) Reject(reason string, err error) error {
	return h.reject(reason, err)
}

func (h *Handler) reject(reason string, err error) error {
	h.rejected++
	h.metrics.RecordIngestRejected(reason)
	return err
}

// Counts returns the number of accepted and rejected messages.
func (h *Handler) Counts() (accepted, rejected int64) {
	return h.accepted, h.rejected
}
