// Package mock provides a simulated STT engine for running the service
// without a model or cloud credentials. Output is deterministic for a given
// waveform: the engine picks a scripted utterance from the audio content and
// returns as many of its words as the audio duration would plausibly hold.
package mock

import (
	"context"
	"math"
	"strings"
	"time"

	"live-transcription-service/internal/service/stt"
)

// SimulatedUtterance is one scripted line the engine can return.
type SimulatedUtterance struct {
	Text       string
	Confidence float64 // 0-1, converted to a log-probability on output
}

// DefaultUtterances provides sample interview lines for simulation.
var DefaultUtterances = []SimulatedUtterance{
	{Text: "Tell me about a project you are proud of", Confidence: 0.94},
	{Text: "I led the migration of our billing system to event sourcing", Confidence: 0.91},
	{Text: "What was the hardest part of that work", Confidence: 0.96},
	{Text: "Keeping the old and new ledgers consistent during the cutover", Confidence: 0.88},
	{Text: "How did you measure success", Confidence: 0.97},
}

// Config tunes the simulation.
type Config struct {
	SampleRate     int
	WordsPerSecond float64
	// Latency is added to every call to mimic model inference time.
	Latency         time.Duration
	SpeechThreshold float64
	Utterances      []SimulatedUtterance
}

// DefaultConfig returns a 16 kHz, 2.5 words/s simulation with no latency.
func DefaultConfig() Config {
	return Config{
		SampleRate:      16000,
		WordsPerSecond:  2.5,
		SpeechThreshold: stt.DefaultSpeechThreshold,
		Utterances:      DefaultUtterances,
	}
}

// Adapter implements stt.Engine with scripted responses.
type Adapter struct {
	name string
	cfg  Config
}

// New creates a simulated engine. name distinguishes the fast and final
// engines in logs and metrics.
func New(name string, cfg Config) *Adapter {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.WordsPerSecond <= 0 {
		cfg.WordsPerSecond = 2.5
	}
	if len(cfg.Utterances) == 0 {
		cfg.Utterances = DefaultUtterances
	}
	return &Adapter{name: name, cfg: cfg}
}

// Name returns the engine name.
func (a *Adapter) Name() string {
	return a.name
}

// Close is a no-op.
func (a *Adapter) Close() error {
	return nil
}

// Transcribe returns at most one segment. Silent audio yields no segments
// when opts.VADFilter is set, and an empty-text segment otherwise.
func (a *Adapter) Transcribe(ctx context.Context, samples []float32, opts stt.DecodeOptions) ([]stt.Segment, error) {
	if a.cfg.Latency > 0 {
		timer := time.NewTimer(a.cfg.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if len(samples) == 0 {
		return nil, nil
	}

	duration := float64(len(samples)) / float64(a.cfg.SampleRate)
	voiced := stt.HasSpeech(samples, a.cfg.SampleRate, a.cfg.SpeechThreshold)
	if opts.VADFilter && !voiced {
		return nil, nil
	}
	if !voiced {
		return []stt.Segment{{Text: "", AvgLogProb: stt.ConfidenceToLogProb(0.2), End: duration}}, nil
	}

	utt := a.cfg.Utterances[pick(samples, len(a.cfg.Utterances))]
	words := strings.Fields(utt.Text)
	n := int(math.Ceil(duration * a.cfg.WordsPerSecond))
	if n > len(words) {
		n = len(words)
	}

	confidence := utt.Confidence
	if opts.BeamSize <= 1 {
		// Greedy decoding is less certain.
		confidence *= 0.9
	}

	return []stt.Segment{{
		Text:       strings.Join(words[:n], " "),
		AvgLogProb: stt.ConfidenceToLogProb(confidence),
		Start:      0,
		End:        duration,
	}}, nil
}

// pick chooses an utterance index from the waveform so identical audio
// always maps to the same line.
func pick(samples []float32, n int) int {
	var energy float64
	for _, s := range samples {
		energy += math.Abs(float64(s))
	}
	return int(uint64(energy*1000) % uint64(n))
}
