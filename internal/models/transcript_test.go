package models

import (
	"encoding/json"
	"testing"
)

func TestParseSpeaker(t *testing.T) {
	tests := []struct {
		in      string
		want    Speaker
		wantErr bool
	}{
		{"user", SpeakerUser, false},
		{"interviewer", SpeakerInterviewer, false},
		{"User", "", true},
		{"", "", true},
		{"narrator", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSpeaker(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSpeaker(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseSpeaker(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTranscriptEvent_WireShape(t *testing.T) {
	payload, err := json.Marshal(NewFinal(SpeakerInterviewer, "hello there", -0.25))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	want := map[string]any{
		"type":       "transcript",
		"speaker":    "interviewer",
		"text":       "hello there",
		"final":      true,
		"confidence": -0.25,
	}
	if len(decoded) != len(want) {
		t.Errorf("expected %d fields, got %d: %v", len(want), len(decoded), decoded)
	}
	for k, v := range want {
		if decoded[k] != v {
			t.Errorf("field %s = %v, want %v", k, decoded[k], v)
		}
	}
}

func TestNewDraft_IsNotFinal(t *testing.T) {
	ev := NewDraft(SpeakerUser, "hi", -0.5)
	if ev.Final {
		t.Error("expected draft to be non-final")
	}
	if ev.Type != EventTypeTranscript {
		t.Errorf("expected type %q, got %q", EventTypeTranscript, ev.Type)
	}
}
