package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"stationagent/internal/logger"
	"stationagent/internal/model"
)

const writeWait = time.Second

// Encoder turns a frame into JPEG bytes.
type Encoder interface {
	Encode(frame model.Frame) ([]byte, error)
}

// Preview is one message sent to viewers.
type Preview struct {
	Station model.Station `json:"station"`
	Counts  model.Counts  `json:"counts"`
	Image   []byte        `json:"image"`
	At      time.Time     `json:"at"`
}

type pending struct {
	station model.Station
	frame   model.Frame
	counts  model.Counts
}

// HubService fans annotated live frames out to local viewers. Publishing never
// blocks: while a frame is waiting to be sent, newer ones are dropped.
type HubService struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan pending
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	mutex      sync.RWMutex
	encoder    Encoder
	logger     *logger.Logger
}

func NewHubService(encoder Encoder, logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan pending, 1),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		encoder:    encoder,
		logger:     logger,
	}
}

// Run serves registrations and broadcasts until ctx is done, then closes
// every viewer.
func (h *HubService) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer connected. Total: %d", n)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			n := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer disconnected. Total: %d", n)

		case p := <-h.broadcast:
			h.send(p)
		}
	}
}

func (h *HubService) send(p pending) {
	image, err := h.encoder.Encode(p.frame)
	if err != nil {
		h.logger.Error("Error encoding preview: %v", err)
		return
	}
	message, err := json.Marshal(Preview{Station: p.station, Counts: p.counts, Image: image, At: p.frame.CapturedAt})
	if err != nil {
		h.logger.Error("Error encoding preview message: %v", err)
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	for client := range h.clients {
		client.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
			h.logger.Error("Error sending preview: %v", err)
			delete(h.clients, client)
			client.Close()
		}
	}
}

// Register adds a viewer. It blocks until Run accepts it, Run has returned
// or ctx is done.
func (h *HubService) Register(ctx context.Context, client *websocket.Conn) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	case <-ctx.Done():
	}
}

func (h *HubService) Unregister(ctx context.Context, client *websocket.Conn) {
	select {
	case h.unregister <- client:
	case <-h.done:
	case <-ctx.Done():
	}
}

// Publish queues a frame for viewers. It is a no-op without viewers and drops
// the frame when one is already queued.
func (h *HubService) Publish(station model.Station, frame model.Frame, counts model.Counts) {
	if h.GetClientCount() == 0 {
		return
	}
	select {
	case h.broadcast <- pending{station: station, frame: frame, counts: counts}:
	default:
	}
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
