// Package schema validates inbound audio envelopes.
package schema

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"live-transcription-service/internal/models"
)

// Errors returned for rejected envelopes. Callers match them with errors.Is.
var (
	ErrMalformedEnvelope = errors.New("malformed envelope")
	ErrMissingSpeaker    = errors.New("missing speaker")
	ErrMissingAudio      = errors.New("missing audio")
	ErrUnknownSpeaker    = errors.New("unknown speaker")
	ErrInvalidAudio      = errors.New("invalid audio payload")
)

// Chunk is a validated, decoded audio payload for one speaker.
type Chunk struct {
	Speaker models.Speaker
	PCM     []byte
}

type Validator struct{}

func New() *Validator {
	return &Validator{}
}

// Validate parses raw as an AudioMessage and decodes its hex payload.
// PCM16 payloads must hold a whole number of samples.
func (v *Validator) Validate(raw []byte) (Chunk, error) {
	var msg models.AudioMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Chunk{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if msg.Speaker == "" {
		return Chunk{}, ErrMissingSpeaker
	}
	if msg.Audio == "" {
		return Chunk{}, ErrMissingAudio
	}

	speaker, err := models.ParseSpeaker(msg.Speaker)
	if err != nil {
		return Chunk{}, fmt.Errorf("%w: %q", ErrUnknownSpeaker, msg.Speaker)
	}

	pcm, err := hex.DecodeString(msg.Audio)
	if err != nil {
		return Chunk{}, fmt.Errorf("%w: %v", ErrInvalidAudio, err)
	}
	if len(pcm)%2 != 0 {
		return Chunk{}, fmt.Errorf("%w: odd byte count %d for 16-bit samples", ErrInvalidAudio, len(pcm))
	}

	return Chunk{Speaker: speaker, PCM: pcm}, nil
}

// Reason maps a validation error to a short metrics label.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrMalformedEnvelope):
		return "malformed"
	case errors.Is(err, ErrMissingSpeaker):
		return "missing_speaker"
	case errors.Is(err, ErrMissingAudio):
		return "missing_audio"
	case errors.Is(err, ErrUnknownSpeaker):
		return "unknown_speaker"
	case errors.Is(err, ErrInvalidAudio):
		return "invalid_audio"
	default:
		return "other"
	}
}
