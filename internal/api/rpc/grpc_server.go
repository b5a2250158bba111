package rpc

import (
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/pharmacontrol/identity-service/internal/core/ports"
)

// GRPCOptions tunes the gRPC server.
type GRPCOptions struct {
	MaxMessageBytes int
	// Interceptors run after the built-in chain. The identity service itself
	// sets none; services embedding this server add their guards here, such
	// as middleware.Authorizer.UnaryServerInterceptor.
	Interceptors []grpc.UnaryServerInterceptor
}

// NewGRPCServer builds a grpc.Server serving auth.AuthService and, when hs is
// non-nil, the standard health service.
func NewGRPCServer(svc ports.AuthService, hs *health.Server, opts GRPCOptions, log zerolog.Logger) *grpc.Server {
	// Recovery sits innermost so a panic is still logged and counted.
	chain := []grpc.UnaryServerInterceptor{
		LoggingInterceptor(log),
		MetricsInterceptor(),
		RecoveryInterceptor(log),
	}
	chain = append(chain, opts.Interceptors...)

	serverOpts := []grpc.ServerOption{grpc.ChainUnaryInterceptor(chain...)}
	if opts.MaxMessageBytes > 0 {
		serverOpts = append(serverOpts,
			grpc.MaxRecvMsgSize(opts.MaxMessageBytes),
			grpc.MaxSendMsgSize(opts.MaxMessageBytes),
		)
	}

	s := grpc.NewServer(serverOpts...)
	RegisterAuthServiceServer(s, NewServer(svc))
	if hs != nil {
		healthpb.RegisterHealthServer(s, hs)
		hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	}
	return s
}
