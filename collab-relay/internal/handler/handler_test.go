package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/weiawesome/wes-io-collab/collab-relay/internal/domain"
	"github.com/weiawesome/wes-io-collab/collab-relay/internal/hub"
	"github.com/weiawesome/wes-io-collab/collab-relay/internal/service"
	pkglog "github.com/weiawesome/wes-io-collab/pkg/log"
	"github.com/weiawesome/wes-io-collab/pkg/pubsub"
)

func newServer(t *testing.T, bus *pubsub.MemoryBus) *httptest.Server {
	t.Helper()

	broker := pubsub.NewMemoryPubSub(bus)
	h := hub.NewHub(hub.Config{
		PingInterval:   time.Second,
		PongWait:       2 * time.Second,
		WriteWait:      time.Second,
		MaxMessageSize: 1 << 16,
	})
	go h.Run()

	ctx, cancel := context.WithCancel(context.Background())
	svc := service.NewRelayService(h, broker, service.Config{})
	if err := svc.Start(ctx); err != nil {
		t.Fatal(err)
	}

	router := mux.NewRouter()
	router.HandleFunc("/ws", NewWSHandler(h, svc).HandleWebSocket).Methods("GET")
	router.HandleFunc("/health", NewHTTPHandler(h, broker).HealthCheck).Methods("GET")

	srv := httptest.NewServer(pkglog.HTTPMiddleware(zerolog.Nop())(router))
	t.Cleanup(func() {
		cancel()
		<-svc.Done()
		h.Stop()
		srv.Close()
		broker.Close()
	})
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })

	if f := read(t, conn); f.Type != domain.FrameConnected || f.Session == "" {
		t.Fatalf("handshake = %+v", f)
	}
	return conn
}

func read(t *testing.T, conn *websocket.Conn) domain.Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f domain.Frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

func write(t *testing.T, conn *websocket.Conn, f domain.Frame) {
	t.Helper()
	if err := conn.WriteJSON(f); err != nil {
		t.Fatal(err)
	}
}

// subscribeAndSync subscribes and then waits for an error frame from a
// deliberately bad frame, so the subscription is known to be in place.
func subscribeAndSync(t *testing.T, conn *websocket.Conn, topic string) {
	t.Helper()
	write(t, conn, domain.Frame{Type: domain.FrameSubscribe, Destination: domain.TopicPrefix + topic})
	write(t, conn, domain.Frame{Type: "sync"})
	if f := read(t, conn); f.Type != domain.FrameError {
		t.Fatalf("sync frame = %+v", f)
	}
}

func TestWebSocketRoundTrip(t *testing.T) {
	srv := newServer(t, pubsub.NewMemoryBus())
	a := dial(t, srv)
	b := dial(t, srv)
	subscribeAndSync(t, a, "room.r1.code")
	subscribeAndSync(t, b, "room.r1.code")

	write(t, a, domain.Frame{
		Type:        domain.FrameSend,
		Destination: "/app/room.r1.code",
		Body:        `{"roomId":"r1","userId":"a","fullText":"aaa","version":1}`,
	})

	for _, conn := range []*websocket.Conn{a, b} {
		f := read(t, conn)
		if f.Type != domain.FrameMessage || f.Destination != "/topic/room.r1.code" {
			t.Fatalf("got %+v", f)
		}
		if !strings.Contains(f.Body, `"fullText":"aaa"`) {
			t.Errorf("body = %s", f.Body)
		}
	}
}

func TestTwoRelaysShareBroker(t *testing.T) {
	bus := pubsub.NewMemoryBus()
	a := dial(t, newServer(t, bus))
	b := dial(t, newServer(t, bus))
	subscribeAndSync(t, b, "room.r1.cursor")

	write(t, a, domain.Frame{
		Type:        domain.FrameSend,
		Destination: "/app/room.r1.cursor",
		Body:        `{"roomId":"r1","userId":"a","from":3,"to":3}`,
	})

	f := read(t, b)
	if f.Destination != "/topic/room.r1.cursor" || !strings.Contains(f.Body, `"from":3`) {
		t.Errorf("got %+v", f)
	}
}

func TestHealthCheck(t *testing.T) {
	bus := pubsub.NewMemoryBus()
	srv := newServer(t, bus)

	get := func() HealthResponse {
		t.Helper()
		resp, err := http.Get(srv.URL + "/health")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		var body HealthResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		return body
	}

	if got := get(); got.Status != "ok" {
		t.Errorf("got %+v", got)
	}

	bus.Fail(errors.New("down"))
	if got := get(); got.Status != "degraded" || got.Broker != "down" {
		t.Errorf("got %+v", got)
	}
}
