// Package stt defines the boundary to speech-to-text engines.
package stt

import (
	"context"
	"encoding/binary"
	"math"
)

// DecodeOptions are the per-call knobs of the decoding contract. Engines
// honor what their backend supports: the mock reads BeamSize and VADFilter,
// Google reads VADFilter and Language only. Temperature and
// ConditionOnPreviousText are carried for local decoders and are ignored by
// both bundled engines.
type DecodeOptions struct {
	// BeamSize is the number of decoding candidates. 1 means greedy.
	BeamSize int
	// Temperature is the sampling temperature. 0 means deterministic.
	Temperature float64
	// VADFilter drops non-speech audio before decoding.
	VADFilter bool
	// ConditionOnPreviousText feeds earlier output back as a prompt.
	ConditionOnPreviousText bool
	// Language is a BCP-47 code, e.g. "en".
	Language string
}

// FastOptions returns the greedy, latency-first settings used by the draft pass.
func FastOptions(language string) DecodeOptions {
	return DecodeOptions{
		BeamSize:                1,
		Temperature:             0,
		VADFilter:               false,
		ConditionOnPreviousText: false,
		Language:                language,
	}
}

// FinalOptions returns the accuracy-first settings used by the final pass.
func FinalOptions(language string) DecodeOptions {
	return DecodeOptions{
		BeamSize:                5,
		Temperature:             0,
		VADFilter:               true,
		ConditionOnPreviousText: true,
		Language:                language,
	}
}

// Segment is one timed piece of text returned by an engine. Start and End
// are relative to the start of the analyzed waveform.
type Segment struct {
	Text string
	// AvgLogProb is the average token log-probability, <= 0.
	AvgLogProb float64
	Start      float64
	End        float64
}

// Engine transcribes a mono float waveform in [-1, 1] at the configured
// sample rate. Implementations return segments in time order with trimmed text.
type Engine interface {
	Transcribe(ctx context.Context, samples []float32, opts DecodeOptions) ([]Segment, error)
	// Name identifies the engine in logs and metrics.
	Name() string
	// Close releases engine resources.
	Close() error
}

// PCM16ToFloat32 converts little-endian 16-bit PCM to samples in [-1, 1).
// A trailing odd byte is ignored.
func PCM16ToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(pcm[2*i:]))
		samples[i] = float32(v) / 32768.0
	}
	return samples
}

// Float32ToPCM16 converts samples in [-1, 1] back to little-endian 16-bit PCM.
func Float32ToPCM16(samples []float32) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		v := float64(s) * 32768.0
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}
		binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(v)))
	}
	return out
}

// RMS returns the root mean square level of samples.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// DefaultSpeechThreshold is the RMS level below which a frame counts as silence.
const DefaultSpeechThreshold = 0.01

// SpeechFrames splits samples into frames of frameSize and reports, for each
// frame, whether its RMS reaches threshold.
func SpeechFrames(samples []float32, frameSize int, threshold float64) []bool {
	if frameSize <= 0 {
		return nil
	}
	frames := make([]bool, 0, (len(samples)+frameSize-1)/frameSize)
	for start := 0; start < len(samples); start += frameSize {
		end := start + frameSize
		if end > len(samples) {
			end = len(samples)
		}
		frames = append(frames, RMS(samples[start:end]) >= threshold)
	}
	return frames
}

// HasSpeech is the energy voice-activity check used when VADFilter is set:
// true when any 30 ms frame (at sampleRate) is above threshold.
func HasSpeech(samples []float32, sampleRate int, threshold float64) bool {
	frame := sampleRate * 30 / 1000
	if frame <= 0 {
		frame = len(samples)
	}
	for _, voiced := range SpeechFrames(samples, frame, threshold) {
		if voiced {
			return true
		}
	}
	return false
}

// ConfidenceToLogProb maps a 0-1 confidence to a log-probability so engines
// that report probabilities match the AvgLogProb contract.
func ConfidenceToLogProb(confidence float64) float64 {
	const floor = 1e-6
	if confidence < floor {
		confidence = floor
	}
	if confidence > 1 {
		confidence = 1
	}
	return math.Log(confidence)
}
