// Package models defines the wire structures exchanged with the client
// and mirrored to Kafka.
package models

import "fmt"

// Speaker identifies one of the two fixed audio channels of a session.
type Speaker string

const (
	SpeakerUser        Speaker = "user"
	SpeakerInterviewer Speaker = "interviewer"
)

// Speakers lists every channel a session owns, in a stable order.
var Speakers = []Speaker{SpeakerUser, SpeakerInterviewer}

// ParseSpeaker maps a wire identifier to a Speaker.
func ParseSpeaker(s string) (Speaker, error) {
	switch Speaker(s) {
	case SpeakerUser, SpeakerInterviewer:
		return Speaker(s), nil
	default:
		return "", fmt.Errorf("unknown speaker %q", s)
	}
}

func (s Speaker) String() string {
	return string(s)
}

// EventTypeTranscript is the only outbound message type.
const EventTypeTranscript = "transcript"

// AudioMessage is the inbound envelope. Audio is hex-encoded PCM16
// little-endian mono at the configured sample rate.
type AudioMessage struct {
	Speaker string `json:"speaker"`
	Audio   string `json:"audio"`
}

// TranscriptEvent is sent to the client for every draft or final result.
//
// Confidence is the engine's average log-probability for the segment
// (a value <= 0, closer to 0 is better). It is not a 0-1 probability.
type TranscriptEvent struct {
	Type       string  `json:"type"`
	Speaker    Speaker `json:"speaker"`
	Text       string  `json:"text"`
	Final      bool    `json:"final"`
	Confidence float64 `json:"confidence"`
}

// NewDraft builds a non-final transcript event.
func NewDraft(speaker Speaker, text string, confidence float64) TranscriptEvent {
	return TranscriptEvent{
		Type:       EventTypeTranscript,
		Speaker:    speaker,
		Text:       text,
		Final:      false,
		Confidence: confidence,
	}
}

// NewFinal builds a final transcript event.
func NewFinal(speaker Speaker, text string, confidence float64) TranscriptEvent {
	return TranscriptEvent{
		Type:       EventTypeTranscript,
		Speaker:    speaker,
		Text:       text,
		Final:      true,
		Confidence: confidence,
	}
}

// TranscriptRecord is the Kafka mirror of a TranscriptEvent with session context.
type TranscriptRecord struct {
	EventType     string  `json:"eventType"`
	SessionID     string  `json:"sessionId"`
	WindowID      string  `json:"windowId,omitempty"`
	Speaker       Speaker `json:"speaker"`
	Text          string  `json:"text"`
	Final         bool    `json:"final"`
	Confidence    float64 `json:"confidence"`
	AudioOffsetMs int64   `json:"audioOffsetMs"`
	Timestamp     int64   `json:"timestamp"`
}
