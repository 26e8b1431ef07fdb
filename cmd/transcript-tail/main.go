// Command transcript-tail follows the Kafka transcript mirror and prints
// drafts and finals as they arrive.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"live-transcription-service/internal/models"
)

type filter struct {
	sessionID  string
	speaker    string
	finalsOnly bool
}

func (f filter) matches(rec models.TranscriptRecord) bool {
	if f.finalsOnly && !rec.Final {
		return false
	}
	if f.sessionID != "" && rec.SessionID != f.sessionID {
		return false
	}
	if f.speaker != "" && rec.Speaker.String() != f.speaker {
		return false
	}
	return true
}

func truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func consume(ctx context.Context, brokers []string, topic string, since time.Duration, f filter, maxLen int) {
	// Partition reader without a consumer group: every tail sees every record.
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   brokers,
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer reader.Close()

	if err := reader.SetOffsetAt(ctx, time.Now().Add(-since)); err != nil {
		log.Warn().Err(err).Str("topic", topic).Msg("Could not seek, reading from the start")
	}
	log.Info().Str("topic", topic).Dur("since", since).Msg("Consuming")

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Str("topic", topic).Msg("Kafka read error")
			time.Sleep(time.Second)
			continue
		}

		var rec models.TranscriptRecord
		if err := json.Unmarshal(msg.Value, &rec); err != nil {
			log.Warn().Err(err).Str("topic", topic).Msg("Skipping undecodable record")
			continue
		}
		if !f.matches(rec) {
			continue
		}

		kind := "draft"
		if rec.Final {
			kind = "FINAL"
		}
		log.Info().
			Str("kind", kind).
			Str("session", rec.SessionID).
			Str("speaker", rec.Speaker.String()).
			Str("window", rec.WindowID).
			Int64("offsetMs", rec.AudioOffsetMs).
			Float64("confidence", rec.Confidence).
			Msg(truncate(rec.Text, maxLen))
	}
}

func main() {
	brokers := flag.String("brokers", "localhost:9092", "Kafka brokers (comma-separated)")
	topicDraft := flag.String("topic-draft", "interview.transcript.draft", "Draft transcript topic")
	topicFinal := flag.String("topic-final", "interview.transcript.final", "Final transcript topic")
	since := flag.Duration("since", time.Hour, "Replay records newer than this")
	session := flag.String("session", "", "Only show this session ID")
	speaker := flag.String("speaker", "", "Only show this speaker")
	finalsOnly := flag.Bool("finals", false, "Only show finals")
	maxLen := flag.Int("max-len", 120, "Truncate text longer than this (0 for no limit)")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	f := filter{sessionID: *session, speaker: *speaker, finalsOnly: *finalsOnly}
	topics := []string{*topicFinal}
	if !*finalsOnly {
		topics = append(topics, *topicDraft)
	}

	var wg sync.WaitGroup
	for _, topic := range topics {
		wg.Add(1)
		go func() {
			defer wg.Done()
			consume(ctx, strings.Split(*brokers, ","), topic, *since, f, *maxLen)
		}()
	}
	wg.Wait()
}
