package grpc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/weiawesome/wes-io-collab/pkg/pubsub"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestHealthTracksBroker(t *testing.T) {
	bus := pubsub.NewMemoryBus()
	broker := pubsub.NewMemoryPubSub(bus)
	defer broker.Close()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	hs := serveHealth(lis, broker, zerolog.Nop())
	defer hs.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hs.Watch(ctx, 10*time.Millisecond)

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	waitStatus := func(want healthpb.HealthCheckResponse_ServingStatus) {
		t.Helper()
		deadline := time.Now().Add(2 * time.Second)
		for {
			resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
			if err == nil && resp.GetStatus() == want {
				return
			}
			if time.Now().After(deadline) {
				t.Fatalf("status never became %v (last err %v)", want, err)
			}
			time.Sleep(10 * time.Millisecond)
		}
	}

	waitStatus(healthpb.HealthCheckResponse_SERVING)

	bus.Fail(errors.New("broker down"))
	waitStatus(healthpb.HealthCheckResponse_NOT_SERVING)

	bus.Fail(nil)
	waitStatus(healthpb.HealthCheckResponse_SERVING)

	cancel()
	select {
	case <-hs.Done():
	case <-time.After(time.Second):
		t.Fatal("watch did not stop")
	}
}
