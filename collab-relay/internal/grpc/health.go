package grpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
	pkglog "github.com/weiawesome/wes-io-collab/pkg/log"
	"github.com/weiawesome/wes-io-collab/pkg/pubsub"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported for the relay.
const ServiceName = "collab.relay"

// HealthServer exposes grpc.health.v1 and tracks broker reachability.
type HealthServer struct {
	server *grpc.Server
	health *health.Server
	broker pubsub.PubSub
	doneCh chan struct{}
}

// StartHealthServer listens on addr and serves the health service with the
// logging interceptors installed.
func StartHealthServer(addr string, broker pubsub.PubSub, logger zerolog.Logger) (*HealthServer, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return serveHealth(lis, broker, logger), nil
}

func serveHealth(lis net.Listener, broker pubsub.PubSub, logger zerolog.Logger) *HealthServer {
	s := grpc.NewServer(
		grpc.UnaryInterceptor(pkglog.UnaryServerInterceptor(logger)),
		grpc.StreamInterceptor(pkglog.StreamServerInterceptor(logger)),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	go func() {
		l := pkglog.L()
		l.Info().Str("address", lis.Addr().String()).Msg("relay grpc health server listening")
		if err := s.Serve(lis); err != nil {
			l.Error().Err(err).Msg("grpc server error")
		}
	}()

	return &HealthServer{server: s, health: hs, broker: broker, doneCh: make(chan struct{})}
}

// Watch pings the broker every interval and reports ServiceName as
// NOT_SERVING while it is unreachable.
func (h *HealthServer) Watch(ctx context.Context, interval time.Duration) {
	defer close(h.doneCh)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	l := pkglog.Component("health")
	serving := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, interval)
			err := h.broker.Ping(pingCtx)
			cancel()

			switch {
			case err != nil && serving:
				serving = false
				h.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
				l.Warn().Err(err).Msg("broker unreachable")
			case err == nil && !serving:
				serving = true
				h.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
				l.Info().Msg("broker reachable again")
			}
		}
	}
}

// Done is closed when Watch returns.
func (h *HealthServer) Done() <-chan struct{} { return h.doneCh }

// Stop marks every service NOT_SERVING and stops the server gracefully.
func (h *HealthServer) Stop() {
	h.health.Shutdown()
	h.server.GracefulStop()
}
