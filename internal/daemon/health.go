package daemon

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/wagw/wagw/internal/bus"
	"github.com/wagw/wagw/internal/session"
	"github.com/wagw/wagw/internal/status"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService is the name local tooling checks for session liveness.
const HealthService = "wagw.session"

// HealthServer exposes the session's health over the gRPC health protocol
// on the session's Unix domain socket. SERVING tracks the Connected state;
// a disconnected or connecting session reports NOT_SERVING.
type HealthServer struct {
	grpcServer *grpc.Server
	health     *health.Server
	listener   net.Listener
	socketPath string
	logger     *zap.Logger
}

// NewHealthServer creates a health server bound to the session's socket.
func NewHealthServer(p Params, logger *zap.Logger) (*HealthServer, error) {
	socketPath := p.SocketPath
	if socketPath == "" {
		socketPath = session.SocketPath(p.SessionName)
	}

	// Clean stale socket if it exists.
	if _, err := os.Stat(socketPath); err == nil {
		_ = os.Remove(socketPath)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen unix socket: %w", err)
	}
	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}

	srv := grpc.NewServer()
	healthSrv := health.NewServer()
	healthSrv.SetServingStatus(HealthService, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(srv, healthSrv)

	return &HealthServer{
		grpcServer: srv,
		health:     healthSrv,
		listener:   listener,
		socketPath: socketPath,
		logger:     logger,
	}, nil
}

// Start begins serving in the background.
func (s *HealthServer) Start() error {
	s.logger.Info("health server starting", zap.String("socket", s.socketPath))
	go func() {
		if err := s.grpcServer.Serve(s.listener); err != nil {
			s.logger.Error("health server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Run mirrors session status changes into the health service until ctx is
// cancelled.
func (s *HealthServer) Run(ctx context.Context, b *bus.Bus) {
	events, unsubscribe := b.Subscribe("session.status_changed", 16)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-events:
			change, ok := evt.Payload.(status.StatusChange)
			if !ok {
				continue
			}
			serving := healthpb.HealthCheckResponse_NOT_SERVING
			if change.To == status.Connected {
				serving = healthpb.HealthCheckResponse_SERVING
			}
			s.health.SetServingStatus(HealthService, serving)
		}
	}
}

// Stop performs a graceful shutdown and removes the socket file.
func (s *HealthServer) Stop() {
	s.logger.Info("health server stopping")
	s.grpcServer.GracefulStop()
	_ = os.Remove(s.socketPath)
}
