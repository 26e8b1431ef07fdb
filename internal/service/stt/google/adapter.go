// Package google provides a Google Cloud Speech-to-Text engine.
package google

import (
	"context"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"

	"live-transcription-service/internal/service/stt"
)

// Config holds Google recognizer settings for one engine.
type Config struct {
	LanguageCode    string
	SampleRateHz    int
	Model           string // e.g. "latest_short" for drafts, "latest_long" for finals
	CredentialsFile string // empty uses application default credentials
	Punctuation     bool
	SpeechThreshold float64
}

// DefaultConfig returns settings for 16 kHz English audio.
func DefaultConfig() Config {
	return Config{
		LanguageCode:    "en-US",
		SampleRateHz:    16000,
		Model:           "latest_long",
		Punctuation:     true,
		SpeechThreshold: stt.DefaultSpeechThreshold,
	}
}

type recognizeFunc func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)

// Adapter implements stt.Engine with synchronous Recognize calls. Each pass
// window is sent as one LINEAR16 request for a single alternative. The API
// exposes no beam width, so BeamSize is ignored; the fast and final passes
// differ by model and VAD instead.
type Adapter struct {
	name      string
	cfg       Config
	client    *speech.Client
	recognize recognizeFunc
}

// New creates a Google STT engine.
// Without CredentialsFile, GOOGLE_APPLICATION_CREDENTIALS or other
// application default credentials must be available.
func New(ctx context.Context, name string, cfg Config) (*Adapter, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	c, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("google speech client: %w", err)
	}

	a := &Adapter{name: name, cfg: cfg, client: c}
	a.recognize = func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		return c.Recognize(ctx, req)
	}
	return a, nil
}

// Name returns the engine name.
func (a *Adapter) Name() string {
	return a.name
}

// Transcribe sends samples to Google and maps each result to a segment.
// With opts.VADFilter set, windows without speech energy are not sent.
func (a *Adapter) Transcribe(ctx context.Context, samples []float32, opts stt.DecodeOptions) ([]stt.Segment, error) {
	if len(samples) == 0 {
		return nil, nil
	}
	if opts.VADFilter && !stt.HasSpeech(samples, a.cfg.SampleRateHz, a.cfg.SpeechThreshold) {
		return nil, nil
	}

	resp, err := a.recognize(ctx, a.buildRequest(samples, opts))
	if err != nil {
		return nil, err
	}
	return parseResponse(resp), nil
}

// Close closes the underlying client.
func (a *Adapter) Close() error {
	if a.client != nil {
		return a.client.Close()
	}
	return nil
}

func (a *Adapter) buildRequest(samples []float32, opts stt.DecodeOptions) *speechpb.RecognizeRequest {
	language := a.cfg.LanguageCode
	if language == "" {
		language = opts.Language
	}

	return &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:            int32(a.cfg.SampleRateHz),
			AudioChannelCount:          1,
			LanguageCode:               language,
			MaxAlternatives:            1,
			Model:                      a.cfg.Model,
			EnableAutomaticPunctuation: a.cfg.Punctuation,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{
				Content: stt.Float32ToPCM16(samples),
			},
		},
	}
}

// parseResponse keeps the top alternative of every result. Result end
// offsets become segment boundaries. A confidence of 0 means the API did not
// set one and maps to a neutral log-probability of 0.
func parseResponse(resp *speechpb.RecognizeResponse) []stt.Segment {
	var (
		segments []stt.Segment
		prevEnd  float64
	)
	for _, r := range resp.GetResults() {
		if len(r.GetAlternatives()) == 0 {
			continue
		}
		alt := r.GetAlternatives()[0]
		end := r.GetResultEndTime().AsDuration().Seconds()
		segments = append(segments, stt.Segment{
			Text:       strings.TrimSpace(alt.GetTranscript()),
			AvgLogProb: stt.ConfidenceToLogProb(float64(alt.GetConfidence())),
			Start:      prevEnd,
			End:        end,
		})
		prevEnd = end
	}
	return segments
}

func logProb(confidence float32) float64 {
	if confidence == 0 {
		return 0
	}
	return stt.ConfidenceToLogProb(float64(confidence))
}
