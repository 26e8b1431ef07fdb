package audio

import (
	"encoding/hex"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"live-transcription-service/internal/models"
	"live-transcription-service/internal/observability/metrics"
	"live-transcription-service/internal/schema"
	"live-transcription-service/internal/service/speaker"
)

func envelope(sp string, pcm []byte) []byte {
	return []byte(`{"speaker":"` + sp + `","audio":"` + hex.EncodeToString(pcm) + `"}`)
}

func newTestHandler(limits IngestLimits) (*Handler, *speaker.Set, *metrics.Metrics) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	set := speaker.NewSet(limits.MaxPendingBytes)
	return NewHandler(set, limits, m, zerolog.Nop()), set, m
}

func TestHandler_RoutesBySpeaker(t *testing.T) {
	h, set, _ := newTestHandler(DefaultLimits())

	if err := h.Handle(envelope("user", make([]byte, 320))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := h.Handle(envelope("interviewer", make([]byte, 640))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	user, _ := set.Get(models.SpeakerUser)
	interviewer, _ := set.Get(models.SpeakerInterviewer)
	if user.Len() != 320 {
		t.Errorf("expected 320 user bytes, got %d", user.Len())
	}
	if interviewer.Len() != 640 {
		t.Errorf("expected 640 interviewer bytes, got %d", interviewer.Len())
	}
}

func TestHandler_RejectsMalformed(t *testing.T) {
	tests := []struct {
		name   string
		raw    []byte
		want   error
		reason string
	}{
		{"not json", []byte("not json"), schema.ErrMalformedEnvelope, "malformed"},
		{"missing speaker", []byte(`{"audio":"0000"}`), schema.ErrMissingSpeaker, "missing_speaker"},
		{"missing audio", []byte(`{"speaker":"user"}`), schema.ErrMissingAudio, "missing_audio"},
		{"unknown speaker", []byte(`{"speaker":"narrator","audio":"0000"}`), schema.ErrUnknownSpeaker, "unknown_speaker"},
		{"bad hex", []byte(`{"speaker":"user","audio":"zz"}`), schema.ErrInvalidAudio, "invalid_audio"},
		{"odd length", []byte(`{"speaker":"user","audio":"000000"}`), schema.ErrInvalidAudio, "invalid_audio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, set, m := newTestHandler(DefaultLimits())

			err := h.Handle(tt.raw)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			for _, st := range set.All() {
				if st.Len() != 0 {
					t.Errorf("%s buffer changed after rejected message", st.Speaker())
				}
			}
			if got := testutil.ToFloat64(m.IngestRejected.WithLabelValues(tt.reason)); got != 1 {
				t.Errorf("expected rejection counted under %q, got %v", tt.reason, got)
			}
		})
	}
}

func TestHandler_MalformedDoesNotStopStream(t *testing.T) {
	h, set, _ := newTestHandler(DefaultLimits())

	h.Handle([]byte("{broken"))
	if err := h.Handle(envelope("user", make([]byte, 100))); err != nil {
		t.Fatalf("valid message after malformed one failed: %v", err)
	}

	user, _ := set.Get(models.SpeakerUser)
	if user.Len() != 100 {
		t.Errorf("expected 100 bytes, got %d", user.Len())
	}
	accepted, rejected := h.Counts()
	if accepted != 1 || rejected != 1 {
		t.Errorf("expected 1 accepted and 1 rejected, got %d and %d", accepted, rejected)
	}
}

func TestHandler_MaxChunkBytes(t *testing.T) {
	h, set, _ := newTestHandler(IngestLimits{MaxChunkBytes: 100})

	if err := h.Handle(envelope("user", make([]byte, 100))); err != nil {
		t.Fatalf("chunk at limit should succeed: %v", err)
	}
	if err := h.Handle(envelope("user", make([]byte, 102))); !errors.Is(err, ErrChunkTooLarge) {
		t.Fatalf("expected ErrChunkTooLarge, got %v", err)
	}

	user, _ := set.Get(models.SpeakerUser)
	if user.Len() != 100 {
		t.Errorf("oversized chunk was appended: len=%d", user.Len())
	}
}

func TestHandler_MaxPendingBytes(t *testing.T) {
	h, set, _ := newTestHandler(IngestLimits{MaxPendingBytes: 200})

	if err := h.Handle(envelope("user", make([]byte, 150))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := h.Handle(envelope("user", make([]byte, 100))); !errors.Is(err, speaker.ErrPendingLimit) {
		t.Fatalf("expected ErrPendingLimit, got %v", err)
	}

	// The limit is per speaker.
	if err := h.Handle(envelope("interviewer", make([]byte, 150))); err != nil {
		t.Errorf("interviewer should be unaffected: %v", err)
	}

	user, _ := set.Get(models.SpeakerUser)
	if user.Len() != 150 {
		t.Errorf("expected buffered audio kept at 150 bytes, got %d", user.Len())
	}
}

func TestHandler_RecordsAudioMetrics(t *testing.T) {
	h, _, m := newTestHandler(DefaultLimits())

	h.Handle(envelope("user", make([]byte, 320)))
	h.Handle(envelope("user", make([]byte, 320)))

	if got := testutil.ToFloat64(m.AudioBytesReceived.WithLabelValues("user")); got != 640 {
		t.Errorf("expected 640 bytes recorded, got %v", got)
	}
	if got := testutil.ToFloat64(m.AudioChunksReceived.WithLabelValues("user")); got != 2 {
		t.Errorf("expected 2 chunks recorded, got %v", got)
	}
}
