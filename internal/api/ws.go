package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/example/table-sniper/internal/timer"
)

// hub pushes timer status transitions to connected clients. Push is
// advisory: the UI's resilient path is polling get-status, since its
// own lifecycle can drop any persistent connection.
type hub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func newHub() *hub {
	return &hub{conns: make(map[*websocket.Conn]struct{})}
}

type statusEvent struct {
	Type  string      `json:"type"`
	Timer timer.Timer `json:"timer"`
}

// Broadcast fans a status transition out to every subscriber. Writes
// happen off the caller's goroutine: the scheduler calls this inside
// its critical section and must not wait on slow or dead peers.
func (h *hub) Broadcast(t timer.Timer) {
	data, err := json.Marshal(statusEvent{Type: "status", Timer: t})
	if err != nil {
		slog.Error("marshal status event", "error", err)
		return
	}
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		go func(c *websocket.Conn) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := c.Write(ctx, websocket.MessageText, data); err != nil {
				h.drop(c)
				_ = c.Close(websocket.StatusNormalClosure, "write failed")
			}
		}(c)
	}
}

func (h *hub) add(c *websocket.Conn) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
}

func (h *hub) drop(c *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
}

func (h *hub) handle(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("websocket accept", "error", err)
		return
	}
	h.add(c)
	defer func() {
		h.drop(c)
		_ = c.Close(websocket.StatusNormalClosure, "")
	}()

	// Clients only receive; the read loop exists to notice the close.
	for {
		if _, _, err := c.Read(r.Context()); err != nil {
			return
		}
	}
}
