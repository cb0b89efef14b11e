package server

import (
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// GateEntryService is the service name reported on the health endpoint
// alongside the overall ("") status.
const GateEntryService = "gatepass.GateEntry"

// NewGRPCServer returns the gatepass health listener: grpc.health.v1 for
// "" and GateEntryService, plus reflection. When authToken is set every
// method outside grpc.health.v1 needs it, unary or streaming. The health
// handle lets the caller flip to NOT_SERVING on shutdown.
func NewGRPCServer(authToken string, logger *slog.Logger) (*grpc.Server, *health.Server) {
	guard := newRPCGuard(authToken, logger)
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(guard.unary),
		grpc.ChainStreamInterceptor(guard.stream),
	)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(GateEntryService, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	return srv, hs
}
