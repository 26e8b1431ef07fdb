// Package observability provides the admin HTTP server and gRPC
// interceptors for metrics and logging.
package observability

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"live-transcription-service/internal/observability/metrics"
)

// quietPrefix marks health checks, which run every few seconds and are
// logged at trace level only.
const quietPrefix = "/grpc.health.v1.Health/"

// observe records one finished admin call.
func observe(m *metrics.Metrics, kind, method string, start time.Time, err error) {
	code := status.Code(err)
	m.RecordAdminRPC(method, code.String())

	level := zerolog.DebugLevel
	if strings.HasPrefix(method, quietPrefix) {
		level = zerolog.TraceLevel
	}
	if code != codes.OK {
		level = zerolog.WarnLevel
	}
	log.WithLevel(level).
		Str("kind", kind).
		Str("method", method).
		Str("code", code.String()).
		Dur("duration", time.Since(start)).
		Msg("Admin call")
}

// UnaryServerInterceptor returns a gRPC unary interceptor for metrics and logging.
func UnaryServerInterceptor(m *metrics.Metrics) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		observe(m, "unary", info.FullMethod, start, err)
		return resp, err
	}
}

// StreamServerInterceptor is the streaming counterpart. Health Watch and
// reflection calls are streams.
func StreamServerInterceptor(m *metrics.Metrics) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		observe(m, "stream", info.FullMethod, start, err)
		return err
	}
}
