package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wagw/wagw/internal/bus"
	"github.com/wagw/wagw/internal/status"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func newTestHealthServer(t *testing.T) (*HealthServer, healthpb.HealthClient) {
	t.Helper()

	// Use /tmp for short socket paths (macOS 104-char limit).
	tmpDir, err := os.MkdirTemp("/tmp", "wagw-health-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(tmpDir) })

	socketPath := filepath.Join(tmpDir, "d.sock")
	srv, err := NewHealthServer(Params{SessionName: "test", SocketPath: socketPath}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewHealthServer() error = %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return srv, healthpb.NewHealthClient(conn)
}

func checkHealth(t *testing.T, client healthpb.HealthClient) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: HealthService})
	if err != nil {
		t.Fatalf("health check error = %v", err)
	}
	return resp.Status
}

func TestHealthStartsNotServing(t *testing.T) {
	_, client := newTestHealthServer(t)

	if got := checkHealth(t, client); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("status = %v, want NOT_SERVING before connect", got)
	}
}

func TestHealthTracksSessionStatus(t *testing.T) {
	srv, client := newTestHealthServer(t)

	b := bus.NewBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Run(ctx, b)
	time.Sleep(50 * time.Millisecond)

	machine := status.NewMachine(b)
	if err := machine.Transition(status.Connecting); err != nil {
		t.Fatal(err)
	}
	if err := machine.Transition(status.Connected); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for checkHealth(t, client) != healthpb.HealthCheckResponse_SERVING {
		if time.Now().After(deadline) {
			t.Fatal("health never reached SERVING after Connected")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := machine.Transition(status.Disconnected); err != nil {
		t.Fatal(err)
	}
	deadline = time.Now().Add(2 * time.Second)
	for checkHealth(t, client) != healthpb.HealthCheckResponse_NOT_SERVING {
		if time.Now().After(deadline) {
			t.Fatal("health never dropped to NOT_SERVING after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
