// Package config loads service settings from environment variables.
// Every value has a default; unparsable values fall back to the default.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full service configuration.
type Config struct {
	Service       ServiceConfig
	Audio         AudioConfig
	Fast          FastConfig
	Slow          SlowConfig
	STT           STTConfig
	Ingest        IngestConfig
	Kafka         KafkaConfig
	Observability ObservabilityConfig
}

// ServiceConfig holds listener and identity settings.
type ServiceConfig struct {
	Principal       string
	ListenAddr      string // WebSocket endpoint
	GRPCPort        string // admin health and reflection
	MaxSessions     int
	ShutdownTimeout time.Duration
	WriteTimeout    time.Duration
	ReadLimitBytes  int64
}

// AudioConfig describes the inbound PCM16 mono stream.
type AudioConfig struct {
	SampleRateHz int
	Language     string
}

// FastConfig tunes the draft pass.
type FastConfig struct {
	Interval  time.Duration
	MinWindow time.Duration
	Tail      time.Duration
}

// SlowConfig tunes the final pass.
type SlowConfig struct {
	Interval  time.Duration
	MinWindow time.Duration
	Overlap   time.Duration
	MaxWindow time.Duration
}

// STTConfig selects and configures the speech engines.
type STTConfig struct {
	Provider        string // mock, google
	Workers         int
	Backoff         time.Duration
	LanguageCode    string
	FastModel       string
	FinalModel      string
	CredentialsFile string
	Punctuation     bool
	SpeechThreshold float64
	MockLatency     time.Duration
	MockWordsPerSec float64
}

// IngestConfig bounds inbound audio.
type IngestConfig struct {
	MaxChunkBytes   int
	MaxPendingBytes int
}

// KafkaConfig configures the optional transcript mirror.
type KafkaConfig struct {
	Enabled    bool
	Brokers    []string
	TopicDraft string
	TopicFinal string
	Principal  string
}

// ObservabilityConfig configures logging and the admin HTTP server.
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string
	Addr      string
}

// Load reads the configuration from the environment.
func Load() *Config {
	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-live-transcription")

	return &Config{
		Service: ServiceConfig{
			Principal:       principal,
			ListenAddr:      envOrDefault("STT_LISTEN_ADDR", "127.0.0.1:8765"),
			GRPCPort:        envOrDefault("GRPC_PORT", "50051"),
			MaxSessions:     envOrDefaultInt("MAX_SESSIONS", 1),
			ShutdownTimeout: envOrDefaultDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
			WriteTimeout:    envOrDefaultDuration("WS_WRITE_TIMEOUT", 5*time.Second),
			ReadLimitBytes:  int64(envOrDefaultInt("WS_READ_LIMIT_BYTES", 1<<20)),
		},
		Audio: AudioConfig{
			SampleRateHz: envOrDefaultInt("AUDIO_SAMPLE_RATE_HZ", 16000),
			Language:     envOrDefault("AUDIO_LANGUAGE", "en"),
		},
		Fast: FastConfig{
			Interval:  envOrDefaultDuration("FAST_INTERVAL", 150*time.Millisecond),
			MinWindow: envOrDefaultDuration("FAST_MIN_WINDOW", 400*time.Millisecond),
			Tail:      envOrDefaultDuration("FAST_TAIL", 500*time.Millisecond),
		},
		Slow: SlowConfig{
			Interval:  envOrDefaultDuration("SLOW_INTERVAL", 500*time.Millisecond),
			MinWindow: envOrDefaultDuration("SLOW_MIN_WINDOW", 2*time.Second),
			Overlap:   envOrDefaultDuration("SLOW_OVERLAP", 200*time.Millisecond),
			MaxWindow: envOrDefaultDuration("SLOW_MAX_WINDOW", 30*time.Second),
		},
		STT: STTConfig{
			Provider:        envOrDefault("STT_PROVIDER", "mock"),
			Workers:         envOrDefaultInt("STT_WORKERS", 2),
			Backoff:         envOrDefaultDuration("STT_ERROR_BACKOFF", time.Second),
			LanguageCode:    envOrDefault("STT_LANGUAGE_CODE", "en-US"),
			FastModel:       envOrDefault("STT_FAST_MODEL", "latest_short"),
			FinalModel:      envOrDefault("STT_FINAL_MODEL", "latest_long"),
			CredentialsFile: envOrDefault("GOOGLE_APPLICATION_CREDENTIALS", ""),
			Punctuation:     envOrDefaultBool("STT_PUNCTUATION", true),
			SpeechThreshold: envOrDefaultFloat("STT_SPEECH_THRESHOLD", 0.01),
			MockLatency:     envOrDefaultDuration("STT_MOCK_LATENCY", 0),
			MockWordsPerSec: envOrDefaultFloat("STT_MOCK_WORDS_PER_SEC", 2.5),
		},
		Ingest: IngestConfig{
			MaxChunkBytes:   envOrDefaultInt("INGEST_MAX_CHUNK_BYTES", 10*16000*2),
			MaxPendingBytes: envOrDefaultInt("INGEST_MAX_PENDING_BYTES", 120*16000*2),
		},
		Kafka: KafkaConfig{
			Enabled:    envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:    envOrDefaultList("KAFKA_BROKERS", []string{"localhost:9092"}),
			TopicDraft: envOrDefault("KAFKA_TOPIC_DRAFT", "interview.transcript.draft"),
			TopicFinal: envOrDefault("KAFKA_TOPIC_FINAL", "interview.transcript.final"),
			Principal:  envOrDefault("KAFKA_PRINCIPAL", principal),
		},
		Observability: ObservabilityConfig{
			LogLevel:  envOrDefault("LOG_LEVEL", "info"),
			LogFormat: envOrDefault("LOG_FORMAT", "json"),
			Addr:      envOrDefault("OBS_ADDR", "127.0.0.1:9090"),
		},
	}
}

// Validate rejects combinations the passes cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Audio.SampleRateHz <= 0 {
		errs = append(errs, fmt.Errorf("sample rate must be positive, got %d", c.Audio.SampleRateHz))
	}
	if c.Fast.Interval <= 0 || c.Slow.Interval <= 0 {
		errs = append(errs, errors.New("pass intervals must be positive"))
	}
	if c.Fast.Tail < c.Fast.MinWindow {
		errs = append(errs, fmt.Errorf("fast tail %v is shorter than fast min window %v", c.Fast.Tail, c.Fast.MinWindow))
	}
	if c.Slow.Overlap >= c.Slow.MinWindow {
		errs = append(errs, fmt.Errorf("slow overlap %v must be below slow min window %v", c.Slow.Overlap, c.Slow.MinWindow))
	}
	if c.Slow.MaxWindow > 0 && c.Slow.MaxWindow < c.Slow.MinWindow+c.Slow.Overlap {
		errs = append(errs, fmt.Errorf("slow max window %v must hold min window plus overlap", c.Slow.MaxWindow))
	}
	if c.Service.MaxSessions < 1 {
		errs = append(errs, fmt.Errorf("max sessions must be at least 1, got %d", c.Service.MaxSessions))
	}
	switch c.STT.Provider {
	case "mock", "google":
	default:
		errs = append(errs, fmt.Errorf("unknown STT provider %q", c.STT.Provider))
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka enabled without brokers"))
	}
	if c.Ingest.MaxPendingBytes > 0 && c.Ingest.MaxPendingBytes < c.slowMinBytes() {
		errs = append(errs, fmt.Errorf("ingest max pending %d bytes cannot hold one slow window", c.Ingest.MaxPendingBytes))
	}

	return errors.Join(errs...)
}

func (c *Config) slowMinBytes() int {
	return int(c.Slow.MinWindow.Seconds()*float64(c.Audio.SampleRateHz)) * 2
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envOrDefaultFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

// envOrDefaultList splits a comma-separated value, dropping empty items.
func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
