// Package events mirrors transcript events to Kafka for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"live-transcription-service/internal/models"
	"live-transcription-service/internal/observability/metrics"
)

// Publisher publishes transcript records to separate draft and final topics.
type Publisher struct {
	writerDraft *kafka.Writer
	writerFinal *kafka.Writer
	principal   string
	topicDraft  string
	topicFinal  string
	enabled     bool
	metrics     *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers    []string
	TopicDraft string
	TopicFinal string
	Principal  string
	Enabled    bool
}

// New creates a Kafka publisher. A nil or disabled config yields a
// log-only publisher whose methods always succeed.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	// Handle nil config case
	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			enabled: false,
			metrics: m,
		}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:  cfg.Principal,
			topicDraft: cfg.TopicDraft,
			topicFinal: cfg.TopicFinal,
			enabled:    false,
			metrics:    m,
		}
	}

	// Longer dial timeout for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	// Writers are async: the mirror must never hold up the live WebSocket
	// stream. Delivery results are reported through Completion.
	newWriter := func(topic, eventType string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireOne,
			Transport:    transport,
			Async:        true,
			Completion:   completion(m, topic, eventType),
		}
	}
	writerDraft := newWriter(cfg.TopicDraft, "draft")
	writerFinal := newWriter(cfg.TopicFinal, "final")

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicDraft", cfg.TopicDraft).
		Str("topicFinal", cfg.TopicFinal).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerDraft: writerDraft,
		writerFinal: writerFinal,
		principal:   cfg.Principal,
		topicDraft:  cfg.TopicDraft,
		topicFinal:  cfg.TopicFinal,
		enabled:     true,
		metrics:     m,
	}
}

// Enabled reports whether records are written to Kafka.
func (p *Publisher) Enabled() bool {
	return p.enabled
}

// PublishDraft publishes a draft transcript record to the draft topic.
func (p *Publisher) PublishDraft(ctx context.Context, key string, record models.TranscriptRecord) error {
	return p.publish(ctx, p.writerDraft, p.topicDraft, "draft", key, record)
}

// PublishFinal publishes a final transcript record to the final topic.
func (p *Publisher) PublishFinal(ctx context.Context, key string, record models.TranscriptRecord) error {
	return p.publish(ctx, p.writerFinal, p.topicFinal, "final", key, record)
}

func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, eventType, key string, record models.TranscriptRecord) error {
	start := time.Now()

	payload, err := json.Marshal(record)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	// If Kafka is disabled, just log
	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Time:  start,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "speaker", Value: []byte(record.Speaker)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	// Async writer: this only enqueues. Errors here mean the writer is closed.
	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to enqueue Kafka message")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}
	return nil
}

// completion records delivery results for an async writer. Latency is
// measured from the record timestamp to the broker acknowledgement.
func completion(m *metrics.Metrics, topic, eventType string) func([]kafka.Message, error) {
	return func(msgs []kafka.Message, err error) {
		for _, msg := range msgs {
			m.RecordKafkaPublish(topic, eventType, err, time.Since(msg.Time).Seconds())
		}
		if err != nil {
			log.Error().
				Err(err).
				Str("topic", topic).
				Int("messages", len(msgs)).
				Msg("Failed to write to Kafka")
		}
	}
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerDraft != nil {
		if e := p.writerDraft.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing draft writer")
			err = e
		}
	}
	if p.writerFinal != nil {
		if e := p.writerFinal.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing final writer")
			err = e
		}
	}
	return err
}
