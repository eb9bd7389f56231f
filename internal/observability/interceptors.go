package observability

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"voice-ordering-service/internal/observability/logging"
	"voice-ordering-service/internal/observability/metrics"
)

// SessionMetadataKey is the incoming metadata key that ties an RPC to an
// ordering session in the logs.
const SessionMetadataKey = "x-session-id"

// UnaryServerInterceptor returns a gRPC unary interceptor for metrics and logging.
func UnaryServerInterceptor(m *metrics.Metrics) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := observeRPC(m, info.FullMethod, err, time.Since(start))

		l := rpcLogger(ctx)
		l.Debug().
			Str("method", info.FullMethod).
			Str("code", code).
			Dur("duration", time.Since(start)).
			Msg("gRPC unary call")
		return resp, err
	}
}

// StreamServerInterceptor returns a gRPC stream interceptor for metrics and logging.
// Health Watch streams are the only streaming RPCs the service exposes.
func StreamServerInterceptor(m *metrics.Metrics) grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		start := time.Now()
		err := handler(srv, ss)
		code := observeRPC(m, info.FullMethod, err, time.Since(start))

		l := rpcLogger(ss.Context())
		l.Info().
			Str("method", info.FullMethod).
			Str("code", code).
			Dur("duration", time.Since(start)).
			Bool("success", err == nil).
			Msg("gRPC stream completed")
		return err
	}
}

func observeRPC(m *metrics.Metrics, method string, err error, d time.Duration) string {
	st, _ := status.FromError(err)
	code := st.Code().String()
	m.RecordRPC(method, code, d.Seconds())
	return code
}

// rpcLogger scopes the global logger to the caller's session and address
// when the request carries them.
func rpcLogger(ctx context.Context) zerolog.Logger {
	l := log.Logger
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get(SessionMetadataKey); len(ids) > 0 && ids[0] != "" {
			l = logging.WithSession(ids[0])
		}
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		l = l.With().Str("peer", p.Addr.String()).Logger()
	}
	return l
}
