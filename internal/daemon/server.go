package daemon

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/matheus3301/sightings/internal/config"
	"github.com/matheus3301/sightings/internal/profile"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service reported for the HTTP surface.
const ServiceName = "sightings.Sightd"

// ControlServer serves gRPC health checks on the daemon's Unix domain socket.
type ControlServer struct {
	grpcServer *grpc.Server
	listener   net.Listener
	socketPath string
	logger     *zap.Logger
}

// NewControlServer binds the control socket. The socket path is, in order,
// the Params override, the configured path, or the default under the server dir.
func NewControlServer(p Params, cfg *config.Server, hs *health.Server, logger *zap.Logger) (*ControlServer, error) {
	socketPath := p.SocketPath
	if socketPath == "" {
		socketPath = cfg.ControlSocket
	}
	if socketPath == "" {
		socketPath = profile.ServerSocketPath()
	}
	if err := os.MkdirAll(filepath.Dir(socketPath), 0700); err != nil {
		return nil, fmt.Errorf("create socket dir: %w", err)
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
	healthpb.RegisterHealthServer(srv, hs)

	return &ControlServer{
		grpcServer: srv,
		listener:   listener,
		socketPath: socketPath,
		logger:     logger,
	}, nil
}

func (s *ControlServer) SocketPath() string { return s.socketPath }

// Start serves health checks. Blocks until stopped.
func (s *ControlServer) Start() error {
	s.logger.Info("control server starting", zap.String("socket", s.socketPath))
	return s.grpcServer.Serve(s.listener)
}

// Stop performs a graceful shutdown and removes the socket file.
func (s *ControlServer) Stop(_ context.Context) {
	s.logger.Info("control server stopping")
	s.grpcServer.GracefulStop()
	_ = os.Remove(s.socketPath)
}
