package main

import (
	"testing"

	"live-transcription-service/internal/models"
)

func TestFilter_Matches(t *testing.T) {
	draft := models.TranscriptRecord{SessionID: "a", Speaker: models.SpeakerUser, Final: false}
	final := models.TranscriptRecord{SessionID: "b", Speaker: models.SpeakerInterviewer, Final: true}

	tests := []struct {
		name   string
		f      filter
		rec    models.TranscriptRecord
		expect bool
	}{
		{"no filter", filter{}, draft, true},
		{"finals only drops draft", filter{finalsOnly: true}, draft, false},
		{"finals only keeps final", filter{finalsOnly: true}, final, true},
		{"session match", filter{sessionID: "a"}, draft, true},
		{"session mismatch", filter{sessionID: "a"}, final, false},
		{"speaker match", filter{speaker: "interviewer"}, final, true},
		{"speaker mismatch", filter{speaker: "interviewer"}, draft, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.f.matches(tt.rec); got != tt.expect {
				t.Errorf("matches() = %v, want %v", got, tt.expect)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("hello world", 5); got != "hello..." {
		t.Errorf("expected 'hello...', got %q", got)
	}
	if got := truncate("hi", 5); got != "hi" {
		t.Errorf("expected 'hi', got %q", got)
	}
	if got := truncate("unbounded", 0); got != "unbounded" {
		t.Errorf("expected no truncation with 0, got %q", got)
	}
}
