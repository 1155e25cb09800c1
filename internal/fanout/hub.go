package fanout

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"aquadash/internal/models"
)

// Hub maintains the set of connected browser clients and broadcasts live
// events to all of them. No acknowledgement, no replay: a client connecting
// after an event was broadcast never receives it. Connections carry no
// server-side session state beyond their lifetime.
type Hub struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[string]*websocket.Conn
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		conns: make(map[string]*websocket.Conn),
	}
}

// ServeHTTP upgrades the request and registers the connection until it
// closes. Inbound frames are drained and discarded; the channel is
// server-to-client only.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Websocket upgrade failed", zap.Error(err))
		return
	}

	id := uuid.New().String()
	h.mu.Lock()
	h.conns[id] = conn
	count := len(h.conns)
	h.mu.Unlock()

	h.logger.Info("Live client connected",
		zap.String("conn_id", id),
		zap.String("remote_addr", conn.RemoteAddr().String()),
		zap.Int("clients", count),
	)

	go h.readLoop(id, conn)
}

func (h *Hub) readLoop(id string, conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.remove(id, conn)
			return
		}
	}
}

func (h *Hub) remove(id string, conn *websocket.Conn) {
	h.mu.Lock()
	_, present := h.conns[id]
	delete(h.conns, id)
	count := len(h.conns)
	h.mu.Unlock()

	conn.Close()
	if present {
		h.logger.Info("Live client disconnected",
			zap.String("conn_id", id),
			zap.Int("clients", count),
		)
	}
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Broadcast delivers the event to every currently-connected client. A failed
// write drops that connection; other clients are unaffected.
func (h *Hub) Broadcast(event *models.LiveEvent) {
	b, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Failed to marshal live event", zap.Error(err))
		return
	}

	h.mu.Lock()
	targets := make(map[string]*websocket.Conn, len(h.conns))
	for id, conn := range h.conns {
		targets[id] = conn
	}
	h.mu.Unlock()

	for id, conn := range targets {
		if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
			h.logger.Info("Dropping live client on write failure",
				zap.String("conn_id", id),
				zap.Error(err),
			)
			h.remove(id, conn)
		}
	}
}

// Listen subscribes the backplane channel and fans every event out to the
// websocket clients until the context is cancelled.
func (h *Hub) Listen(ctx context.Context, client *redis.Client, channel string) {
	sub := client.Subscribe(ctx, channel)
	defer sub.Close()

	h.logger.Info("Live fanout listening", zap.String("channel", channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var event models.LiveEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				h.logger.Error("Malformed live event on backplane", zap.Error(err))
				continue
			}
			h.Broadcast(&event)
		}
	}
}
