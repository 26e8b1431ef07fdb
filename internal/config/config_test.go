package config

import (
	"os"
	"reflect"
	"strings"
	"testing"
	"time"
)

var allEnvVars = []string{
	"SERVICE_PRINCIPAL", "STT_LISTEN_ADDR", "GRPC_PORT", "MAX_SESSIONS", "LOG_LEVEL", "LOG_FORMAT", "OBS_ADDR",
	"AUDIO_SAMPLE_RATE_HZ", "FAST_INTERVAL", "FAST_MIN_WINDOW", "FAST_TAIL",
	"SLOW_INTERVAL", "SLOW_MIN_WINDOW", "SLOW_OVERLAP", "SLOW_MAX_WINDOW",
	"STT_PROVIDER", "STT_WORKERS", "STT_LANGUAGE_CODE", "STT_FAST_MODEL", "STT_FINAL_MODEL",
	"INGEST_MAX_CHUNK_BYTES", "INGEST_MAX_PENDING_BYTES",
	"KAFKA_ENABLED", "KAFKA_BROKERS", "KAFKA_PRINCIPAL",
}

func clearEnv() {
	for _, v := range allEnvVars {
		os.Unsetenv(v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv()

	cfg := Load()

	// Service defaults
	if cfg.Service.Principal != "svc-live-transcription" {
		t.Errorf("expected default principal 'svc-live-transcription', got %s", cfg.Service.Principal)
	}
	if cfg.Service.ListenAddr != "127.0.0.1:8765" {
		t.Errorf("expected default listen addr '127.0.0.1:8765', got %s", cfg.Service.ListenAddr)
	}
	if cfg.Service.GRPCPort != "50051" {
		t.Errorf("expected default port '50051', got %s", cfg.Service.GRPCPort)
	}
	if cfg.Service.MaxSessions != 1 {
		t.Errorf("expected a single session by default, got %d", cfg.Service.MaxSessions)
	}

	// Pass defaults
	if cfg.Fast.Interval != 150*time.Millisecond || cfg.Fast.MinWindow != 400*time.Millisecond || cfg.Fast.Tail != 500*time.Millisecond {
		t.Errorf("unexpected fast defaults %+v", cfg.Fast)
	}
	if cfg.Slow.Interval != 500*time.Millisecond || cfg.Slow.MinWindow != 2*time.Second || cfg.Slow.Overlap != 200*time.Millisecond {
		t.Errorf("unexpected slow defaults %+v", cfg.Slow)
	}

	// STT defaults
	if cfg.STT.Provider != "mock" {
		t.Errorf("expected default STT provider 'mock', got %s", cfg.STT.Provider)
	}
	if cfg.STT.Workers != 2 {
		t.Errorf("expected 2 workers, got %d", cfg.STT.Workers)
	}
	if cfg.Audio.SampleRateHz != 16000 {
		t.Errorf("expected default sample rate 16000, got %d", cfg.Audio.SampleRateHz)
	}

	// Kafka defaults
	if cfg.Kafka.Enabled {
		t.Error("expected Kafka disabled by default")
	}
	if cfg.Kafka.TopicDraft != "interview.transcript.draft" || cfg.Kafka.TopicFinal != "interview.transcript.final" {
		t.Errorf("unexpected topics %s, %s", cfg.Kafka.TopicDraft, cfg.Kafka.TopicFinal)
	}

	// Observability defaults
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("expected default log level 'info', got %s", cfg.Observability.LogLevel)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv()
	os.Setenv("STT_LISTEN_ADDR", "0.0.0.0:9000")
	os.Setenv("MAX_SESSIONS", "4")
	os.Setenv("STT_PROVIDER", "google")
	os.Setenv("SLOW_OVERLAP", "300ms")
	os.Setenv("FAST_INTERVAL", "100ms")
	os.Setenv("KAFKA_ENABLED", "true")
	os.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,,")
	os.Setenv("LOG_LEVEL", "debug")
	defer clearEnv()

	cfg := Load()

	if cfg.Service.ListenAddr != "0.0.0.0:9000" {
		t.Errorf("expected listen addr '0.0.0.0:9000', got %s", cfg.Service.ListenAddr)
	}
	if cfg.Service.MaxSessions != 4 {
		t.Errorf("expected 4 sessions, got %d", cfg.Service.MaxSessions)
	}
	if cfg.STT.Provider != "google" {
		t.Errorf("expected STT provider 'google', got %s", cfg.STT.Provider)
	}
	if cfg.Slow.Overlap != 300*time.Millisecond {
		t.Errorf("expected overlap 300ms, got %v", cfg.Slow.Overlap)
	}
	if cfg.Fast.Interval != 100*time.Millisecond {
		t.Errorf("expected fast interval 100ms, got %v", cfg.Fast.Interval)
	}
	if !cfg.Kafka.Enabled {
		t.Error("expected Kafka enabled")
	}
	if want := []string{"k1:9092", "k2:9092"}; !reflect.DeepEqual(cfg.Kafka.Brokers, want) {
		t.Errorf("expected brokers %v, got %v", want, cfg.Kafka.Brokers)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_InvalidValues_FallbackToDefaults(t *testing.T) {
	clearEnv()
	os.Setenv("AUDIO_SAMPLE_RATE_HZ", "not-a-number")
	os.Setenv("KAFKA_ENABLED", "invalid")
	os.Setenv("SLOW_MIN_WINDOW", "two seconds")
	os.Setenv("STT_WORKERS", "many")
	defer clearEnv()

	cfg := Load()

	if cfg.Audio.SampleRateHz != 16000 {
		t.Errorf("expected default sample rate on invalid input, got %d", cfg.Audio.SampleRateHz)
	}
	if cfg.Kafka.Enabled {
		t.Error("expected default Kafka enabled on invalid input")
	}
	if cfg.Slow.MinWindow != 2*time.Second {
		t.Errorf("expected default slow min window on invalid input, got %v", cfg.Slow.MinWindow)
	}
	if cfg.STT.Workers != 2 {
		t.Errorf("expected default workers on invalid input, got %d", cfg.STT.Workers)
	}
}

func TestLoad_KafkaPrincipal_FallsBackToServicePrincipal(t *testing.T) {
	clearEnv()
	os.Setenv("SERVICE_PRINCIPAL", "my-service")
	defer clearEnv()

	cfg := Load()

	if cfg.Kafka.Principal != "my-service" {
		t.Errorf("expected Kafka principal to fall back to service principal, got %s", cfg.Kafka.Principal)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"tail below min window", func(c *Config) { c.Fast.Tail = 100 * time.Millisecond }, "fast tail"},
		{"overlap not below min window", func(c *Config) { c.Slow.Overlap = 3 * time.Second }, "slow overlap"},
		{"max window too small", func(c *Config) { c.Slow.MaxWindow = time.Second }, "slow max window"},
		{"unknown provider", func(c *Config) { c.STT.Provider = "whisper" }, "unknown STT provider"},
		{"zero sessions", func(c *Config) { c.Service.MaxSessions = 0 }, "max sessions"},
		{"kafka without brokers", func(c *Config) { c.Kafka.Enabled = true; c.Kafka.Brokers = nil }, "without brokers"},
		{"pending limit too small", func(c *Config) { c.Ingest.MaxPendingBytes = 1000 }, "max pending"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv()
			cfg := Load()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestEnvOrDefaultBool(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		def      bool
		expected bool
	}{
		{"true string", "true", false, true},
		{"false string", "false", true, false},
		{"1", "1", false, true},
		{"0", "0", true, false},
		{"TRUE uppercase", "TRUE", false, true},
		{"invalid", "invalid", true, true},
		{"empty", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_BOOL_VAR"
			if tt.envValue != "" {
				os.Setenv(key, tt.envValue)
			} else {
				os.Unsetenv(key)
			}
			defer os.Unsetenv(key)

			got := envOrDefaultBool(key, tt.def)
			if got != tt.expected {
				t.Errorf("envOrDefaultBool(%s, %v) = %v, want %v", tt.envValue, tt.def, got, tt.expected)
			}
		})
	}
}

func TestEnvOrDefaultList(t *testing.T) {
	key := "TEST_LIST_VAR"
	defer os.Unsetenv(key)

	os.Setenv(key, " , ")
	if got := envOrDefaultList(key, []string{"d"}); !reflect.DeepEqual(got, []string{"d"}) {
		t.Errorf("expected default for blank list, got %v", got)
	}

	os.Setenv(key, "a,b")
	if got := envOrDefaultList(key, nil); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("expected [a b], got %v", got)
	}
}
