package rpc

import (
	"context"
	"path"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/pharmacontrol/identity-service/internal/pkg/metrics"
)

const requestIDHeader = "x-request-id"

// RecoveryInterceptor turns a handler panic into codes.Internal.
func RecoveryInterceptor(log zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Str("method", info.FullMethod).
					Interface("panic", r).
					Bytes("stack", debug.Stack()).
					Msg("rpc handler panicked")
				resp, err = nil, status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}

// LoggingInterceptor tags every call with a request id, echoes it in the
// response header, stores a request-scoped logger in the context and writes
// one access line per call. Request bodies are never logged.
func LoggingInterceptor(log zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		id := requestID(ctx)
		_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDHeader, id))

		reqLog := log.With().Str("request_id", id).Str("method", info.FullMethod).Logger()
		ctx = reqLog.WithContext(ctx)

		resp, err := handler(ctx, req)

		code := status.Code(err)
		ev := reqLog.Info()
		if code != codes.OK {
			ev = reqLog.Warn().Err(err)
		}
		ev.Str("code", code.String()).Dur("duration", time.Since(start)).Msg("rpc")
		return resp, err
	}
}

// MetricsInterceptor records call counts and latency per method.
func MetricsInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		method := path.Base(info.FullMethod)
		metrics.RPCRequestsTotal.WithLabelValues(method, status.Code(err).String()).Inc()
		metrics.RPCDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
		return resp, err
	}
}

func requestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(requestIDHeader); len(v) > 0 && v[0] != "" {
			return v[0]
		}
	}
	return uuid.NewString()
}
