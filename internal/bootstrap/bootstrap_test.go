package bootstrap

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve a free port: %v", err)
	}
	addr := lis.Addr().String()
	lis.Close()
	return addr
}

func TestServeHealthReportsServing(t *testing.T) {
	addr := freeAddr(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		ServeHealth(ctx, addr, "orchestrator")
		close(done)
	}()

	var conn *grpc.ClientConn
	var err error
	for i := 0; i < 50; i++ {
		conn, err = grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("failed to dial health server: %v", err)
	}
	defer conn.Close()

	client := healthpb.NewHealthClient(conn)
	var resp *healthpb.HealthCheckResponse
	for i := 0; i < 50; i++ {
		resp, err = client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "orchestrator"})
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	if resp.Status != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %v", resp.Status)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected ServeHealth to return after context cancellation")
	}
}

func TestServeHealthReturnsOnListenFailure(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve a port: %v", err)
	}
	defer lis.Close()

	done := make(chan struct{})
	go func() {
		ServeHealth(context.Background(), lis.Addr().String(), "orchestrator")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected ServeHealth to return promptly when the address is already in use")
	}
}

func TestPortParsesTrailingPort(t *testing.T) {
	cases := map[string]int{
		":8080":            8080,
		"0.0.0.0:9090":     9090,
		"127.0.0.1:1":      1,
		"[::]:443":         443,
		"no-colon-here":    0,
		"host:not-a-port":  0,
		":":                0,
	}
	for addr, want := range cases {
		if got := Port(addr); got != want {
			t.Errorf("Port(%q) = %d, want %d", addr, got, want)
		}
	}
}

func TestAdvertiseAddrDefaultsWithoutEnv(t *testing.T) {
	t.Setenv("ADVERTISE_ADDR", "")
	if got := AdvertiseAddr(); got != "127.0.0.1" {
		t.Fatalf("expected default advertise addr, got %q", got)
	}
}

func TestAdvertiseAddrHonorsEnv(t *testing.T) {
	t.Setenv("ADVERTISE_ADDR", "10.0.0.5")
	if got := AdvertiseAddr(); got != "10.0.0.5" {
		t.Fatalf("expected env override, got %q", got)
	}
}

func TestConfigPathFromEnv(t *testing.T) {
	t.Setenv("FLARE_CONFIG", "/etc/flare/config.yaml")
	if got := ConfigPathFromEnv(); got != "/etc/flare/config.yaml" {
		t.Fatalf("expected env value, got %q", got)
	}
}
