package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	grpcapi "live-transcription-service/internal/api/grpc"
	"live-transcription-service/internal/config"
	"live-transcription-service/internal/events"
	transporthttp "live-transcription-service/internal/http"
	"live-transcription-service/internal/observability"
	"live-transcription-service/internal/observability/logging"
	"live-transcription-service/internal/observability/metrics"
	"live-transcription-service/internal/service/audio"
	"live-transcription-service/internal/service/pass"
	"live-transcription-service/internal/service/session"
	"live-transcription-service/internal/service/stt"
	"live-transcription-service/internal/service/stt/google"
	"live-transcription-service/internal/service/stt/mock"
	"live-transcription-service/internal/transport"
)

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Config

	metrics     *metrics.Metrics
	fastEngine  stt.Engine
	finalEngine stt.Engine
	publisher   *events.Publisher
	stream      *transporthttp.StreamHandler
	httpServer  *http.Server
	listener    net.Listener
	admin       *grpcapi.Server
	obs         *observability.Server

	cancelSessions context.CancelFunc
	ready          atomic.Bool
}

// New constructs a new Application from the provided configuration.
func New(cfg *config.Config) *Application {
	a := &Application{
		Cfg:     cfg,
		metrics: metrics.DefaultMetrics,
	}
	a.setupLogger()

	appLogger := a.Logger.With().
		Str("method", "New").
		Logger()

	appLogger.Info().Msg("Live transcription service application created")
	return a
}

// setupLogger configures zerolog for the service. ENV=dev forces console
// output regardless of LOG_FORMAT.
func (a *Application) setupLogger() {
	lc := logging.DefaultConfig()
	lc.Level = a.Cfg.Observability.LogLevel
	lc.Format = a.Cfg.Observability.LogFormat
	if os.Getenv("ENV") == "dev" {
		lc.Format = "console"
	}
	logging.Init(lc)

	a.Logger = log.With().
		Str("service", "live-transcription-service").
		Str("component", "application").
		Logger()

	a.Logger.Info().
		Str("logLevel", zerolog.GlobalLevel().String()).
		Str("logFormat", lc.Format).
		Str("environment", os.Getenv("ENV")).
		Msg("Logger setup completed")
}

// Ready reports whether the WebSocket endpoint is accepting sessions.
func (a *Application) Ready() bool {
	return a.ready.Load()
}

// Addr returns the WebSocket listener address once started.
func (a *Application) Addr() string {
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// Start builds the engines and starts every listener. It returns once the
// service is accepting connections.
func (a *Application) Start(ctx context.Context) error {
	startLogger := a.Logger.With().
		Str("method", "Start").
		Logger()

	a.StartupTime = time.Now().UTC()
	startLogger.Info().
		Time("startupTime", a.StartupTime).
		Str("provider", a.Cfg.STT.Provider).
		Msg("Live transcription service starting")

	if err := a.Cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	fast, final, err := buildEngines(ctx, a.Cfg)
	if err != nil {
		return err
	}
	a.fastEngine, a.finalEngine = fast, final

	a.publisher = events.New(&events.Config{
		Enabled:    a.Cfg.Kafka.Enabled,
		Brokers:    a.Cfg.Kafka.Brokers,
		TopicDraft: a.Cfg.Kafka.TopicDraft,
		TopicFinal: a.Cfg.Kafka.TopicFinal,
		Principal:  a.Cfg.Kafka.Principal,
	})

	sessionCtx, cancel := context.WithCancel(context.Background())
	a.cancelSessions = cancel

	a.stream = transporthttp.NewStreamHandler(sessionCtx, transporthttp.StreamConfig{
		MaxSessions: a.Cfg.Service.MaxSessions,
		Transport: transport.Config{
			ReadLimit:    a.Cfg.Service.ReadLimitBytes,
			WriteTimeout: a.Cfg.Service.WriteTimeout,
		},
		Session: sessionConfig(a.Cfg),
	}, session.Deps{
		FastEngine:  fast,
		FinalEngine: final,
		Pool:        stt.NewPool(a.Cfg.STT.Workers, a.metrics),
		Mirror:      a.publisher,
		Metrics:     a.metrics,
	}, logging.WithComponent("stream"))

	lis, err := net.Listen("tcp", a.Cfg.Service.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.Cfg.Service.ListenAddr, err)
	}
	a.listener = lis
	a.httpServer = &http.Server{
		Handler:           transporthttp.NewRouter(a.stream, a.Ready),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := a.httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			startLogger.Error().Err(err).Msg("WebSocket server error")
		}
	}()

	adminLis, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", a.Cfg.Service.GRPCPort))
	if err != nil {
		return fmt.Errorf("listen admin gRPC: %w", err)
	}
	a.admin = grpcapi.New(a.metrics)
	go func() {
		if err := a.admin.Serve(adminLis); err != nil {
			startLogger.Error().Err(err).Msg("Admin gRPC server error")
		}
	}()

	a.obs = observability.NewServer(a.Cfg.Observability.Addr, nil, a.Ready)
	a.obs.Start()

	a.ready.Store(true)
	a.admin.SetServing(true)

	startLogger.Info().
		Str("addr", lis.Addr().String()).
		Int("maxSessions", a.Cfg.Service.MaxSessions).
		Int("workers", a.Cfg.STT.Workers).
		Bool("kafka", a.publisher.Enabled()).
		Msg("Live transcription service listening")
	return nil
}

// Shutdown stops accepting sessions, cancels running ones and releases
// engines and writers. It is safe to call after a failed Start.
func (a *Application) Shutdown(ctx context.Context) {
	shutdownLogger := a.Logger.With().
		Str("method", "Shutdown").
		Logger()

	shutdownLogger.Info().Msg("Live transcription service shutting down")
	a.ready.Store(false)

	if a.admin != nil {
		a.admin.SetServing(false)
	}
	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(ctx); err != nil {
			shutdownLogger.Warn().Err(err).Msg("WebSocket server shutdown")
		}
	}
	if a.cancelSessions != nil {
		a.cancelSessions()
	}
	if a.stream != nil {
		if err := a.stream.Wait(ctx); err != nil {
			shutdownLogger.Warn().Err(err).Int("active", a.stream.Active()).Msg("Sessions still running at shutdown")
		}
	}
	if a.admin != nil {
		a.admin.Stop(ctx)
	}
	if a.obs != nil {
		if err := a.obs.Shutdown(ctx); err != nil {
			shutdownLogger.Warn().Err(err).Msg("Observability server shutdown")
		}
	}
	if a.publisher != nil {
		a.publisher.Close()
	}
	for _, e := range []stt.Engine{a.fastEngine, a.finalEngine} {
		if e != nil {
			if err := e.Close(); err != nil {
				shutdownLogger.Warn().Err(err).Str("engine", e.Name()).Msg("Engine close")
			}
		}
	}

	shutdownLogger.Info().
		Dur("uptime", time.Since(a.StartupTime)).
		Msg("Live transcription service stopped")
}

func sessionConfig(cfg *config.Config) session.Config {
	rate := cfg.Audio.SampleRateHz
	lang := cfg.Audio.Language

	return session.Config{
		Fast: pass.FastConfig{
			Interval:   cfg.Fast.Interval,
			MinWindow:  cfg.Fast.MinWindow,
			Tail:       cfg.Fast.Tail,
			Backoff:    cfg.STT.Backoff,
			SampleRate: rate,
			Language:   lang,
		},
		Slow: pass.SlowConfig{
			Interval:  cfg.Slow.Interval,
			MinWindow: cfg.Slow.MinWindow,
			Overlap:   cfg.Slow.Overlap,
			MaxWindow: cfg.Slow.MaxWindow,
			// The fast tail must survive compaction.
			Retain:     cfg.Fast.Tail,
			Backoff:    cfg.STT.Backoff,
			SampleRate: rate,
			Language:   lang,
		},
		Ingest: audio.IngestLimits{
			MaxChunkBytes:   cfg.Ingest.MaxChunkBytes,
			MaxPendingBytes: cfg.Ingest.MaxPendingBytes,
		},
	}
}

// buildEngines returns the draft and final engines for the configured
// provider. Both share the inference pool.
func buildEngines(ctx context.Context, cfg *config.Config) (stt.Engine, stt.Engine, error) {
	switch cfg.STT.Provider {
	case "google":
		gc := google.Config{
			LanguageCode:    cfg.STT.LanguageCode,
			SampleRateHz:    cfg.Audio.SampleRateHz,
			CredentialsFile: cfg.STT.CredentialsFile,
			Punctuation:     cfg.STT.Punctuation,
			SpeechThreshold: cfg.STT.SpeechThreshold,
		}
		fc := gc
		fc.Model = cfg.STT.FastModel
		fast, err := google.New(ctx, "google-"+fc.Model, fc)
		if err != nil {
			return nil, nil, err
		}
		gc.Model = cfg.STT.FinalModel
		final, err := google.New(ctx, "google-"+gc.Model, gc)
		if err != nil {
			fast.Close()
			return nil, nil, err
		}
		return fast, final, nil

	case "mock":
		mc := mock.DefaultConfig()
		mc.SampleRate = cfg.Audio.SampleRateHz
		mc.WordsPerSecond = cfg.STT.MockWordsPerSec
		mc.SpeechThreshold = cfg.STT.SpeechThreshold
		mc.Latency = cfg.STT.MockLatency
		return mock.New("mock-fast", mc), mock.New("mock-final", mc), nil

	default:
		return nil, nil, fmt.Errorf("unknown STT provider %q", cfg.STT.Provider)
	}
}
