package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"stationagent/internal/logger"
	"stationagent/internal/model"
)

type stubEncoder struct{}

func (stubEncoder) Encode(model.Frame) ([]byte, error) { return []byte("jpeg"), nil }

func startHub(t *testing.T) (*HubService, *httptest.Server) {
	t.Helper()
	hub := NewHubService(stubEncoder{}, logger.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register(r.Context(), conn)
		defer hub.Unregister(context.Background(), conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return hub, srv
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_PublishReachesViewer(t *testing.T) {
	hub, srv := startHub(t)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()
	waitFor(t, func() bool { return hub.GetClientCount() == 1 })

	hub.Publish(model.StationBrake, model.Frame{Width: 1, Height: 1, Data: []byte{0, 0, 0}}, model.Counts{Dent: 2})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var p Preview
	if err := json.Unmarshal(msg, &p); err != nil {
		t.Fatalf("invalid preview: %v", err)
	}
	if p.Station != model.StationBrake || p.Counts.Dent != 2 || string(p.Image) != "jpeg" {
		t.Errorf("unexpected preview %+v", p)
	}
}

func TestHub_PublishWithoutViewersDoesNotBlock(t *testing.T) {
	hub := NewHubService(stubEncoder{}, logger.Nop())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			hub.Publish(model.StationFront, model.Frame{}, model.Counts{})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked")
	}
}

func TestHub_ViewerDisconnect(t *testing.T) {
	hub, srv := startHub(t)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	waitFor(t, func() bool { return hub.GetClientCount() == 1 })

	conn.Close()
	waitFor(t, func() bool { return hub.GetClientCount() == 0 })
}
