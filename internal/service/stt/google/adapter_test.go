package google

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/protobuf/types/known/durationpb"

	"live-transcription-service/internal/service/stt"
)

func newTestAdapter(fn recognizeFunc) *Adapter {
	return &Adapter{name: "google-test", cfg: DefaultConfig(), recognize: fn}
}

func voiced(n int) []float32 {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = 0.25 * float32(math.Sin(2*math.Pi*300*float64(i)/16000))
	}
	return samples
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.LanguageCode != "en-US" {
		t.Errorf("expected default language 'en-US', got %s", cfg.LanguageCode)
	}
	if cfg.SampleRateHz != 16000 {
		t.Errorf("expected default sample rate 16000, got %d", cfg.SampleRateHz)
	}
	if cfg.Model != "latest_long" {
		t.Errorf("expected default model 'latest_long', got %s", cfg.Model)
	}
}

func TestBuildRequest(t *testing.T) {
	tests := []struct {
		name string
		opts stt.DecodeOptions
	}{
		{"fast", stt.FastOptions("en")},
		{"final", stt.FinalOptions("en")},
		{"wide beam", stt.DecodeOptions{BeamSize: 100, Language: "en"}},
	}

	a := newTestAdapter(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := a.buildRequest(voiced(160), tt.opts)

			if got := req.GetConfig().GetMaxAlternatives(); got != 1 {
				t.Errorf("MaxAlternatives = %d, want 1 regardless of beam size", got)
			}
			if req.GetConfig().GetEncoding() != speechpb.RecognitionConfig_LINEAR16 {
				t.Errorf("expected LINEAR16, got %v", req.GetConfig().GetEncoding())
			}
			if len(req.GetAudio().GetContent()) != 320 {
				t.Errorf("expected 320 bytes of PCM, got %d", len(req.GetAudio().GetContent()))
			}
		})
	}
}

func TestParseResponse_UnsetConfidenceIsNeutral(t *testing.T) {
	segs := parseResponse(&speechpb.RecognizeResponse{
		Results: []*speechpb.SpeechRecognitionResult{
			{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "no score", Confidence: 0}}},
		},
	})

	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
	if segs[0].AvgLogProb != 0 {
		t.Errorf("expected neutral log-probability 0 for unset confidence, got %v", segs[0].AvgLogProb)
	}
}

func TestTranscribe_ParsesResults(t *testing.T) {
	a := newTestAdapter(func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		return &speechpb.RecognizeResponse{
			Results: []*speechpb.SpeechRecognitionResult{
				{
					Alternatives:  []*speechpb.SpeechRecognitionAlternative{{Transcript: " hello there ", Confidence: 0.9}},
					ResultEndTime: durationpb.New(1500 * time.Millisecond),
				},
				{Alternatives: nil},
				{
					Alternatives:  []*speechpb.SpeechRecognitionAlternative{{Transcript: "general", Confidence: 0.5}},
					ResultEndTime: durationpb.New(2500 * time.Millisecond),
				},
			},
		}, nil
	})

	segs, err := a.Transcribe(context.Background(), voiced(16000), stt.FinalOptions("en"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segs))
	}
	if segs[0].Text != "hello there" {
		t.Errorf("expected trimmed text, got %q", segs[0].Text)
	}
	if math.Abs(segs[0].AvgLogProb-math.Log(0.9)) > 1e-6 {
		t.Errorf("expected log(0.9), got %v", segs[0].AvgLogProb)
	}
	if segs[1].Start != 1.5 || segs[1].End != 2.5 {
		t.Errorf("expected second segment [1.5,2.5], got [%v,%v]", segs[1].Start, segs[1].End)
	}
}

func TestTranscribe_VADSkipsSilence(t *testing.T) {
	called := false
	a := newTestAdapter(func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		called = true
		return &speechpb.RecognizeResponse{}, nil
	})

	segs, err := a.Transcribe(context.Background(), make([]float32, 16000), stt.FinalOptions("en"))
	if err != nil || segs != nil {
		t.Errorf("expected nil, nil; got %v, %v", segs, err)
	}
	if called {
		t.Error("silent window should not reach the API with VAD on")
	}

	a.Transcribe(context.Background(), make([]float32, 16000), stt.FastOptions("en"))
	if !called {
		t.Error("silent window should reach the API with VAD off")
	}
}

func TestTranscribe_PropagatesErrors(t *testing.T) {
	boom := errors.New("unavailable")
	a := newTestAdapter(func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		return nil, boom
	})

	if _, err := a.Transcribe(context.Background(), voiced(1600), stt.FastOptions("en")); !errors.Is(err, boom) {
		t.Errorf("expected recognize error, got %v", err)
	}
}
