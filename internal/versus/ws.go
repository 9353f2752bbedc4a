package versus

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pingInterval = 25 * time.Second
	writeTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeLive upgrades the request and pushes the match view on every change until the
// client disconnects or the match finishes. Clients only read; inbound frames are ignored.
func (c *Controller) ServeLive(w http.ResponseWriter, r *http.Request, m *Match) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, unsubscribe, err := c.Subscribe(ctx, m.ID)
	if err != nil {
		c.log.Warn("live subscribe failed", "match_id", m.ID, "err", err)
		http.Error(w, "live updates unavailable", http.StatusServiceUnavailable)
		return
	}
	defer unsubscribe()

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer ws.Close()

	// reader loop: only needed to notice the client going away
	go func() {
		defer cancel()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(v View) bool {
		_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
		return ws.WriteJSON(v) == nil
	}

	// Re-read after subscribing so a change between the caller's read and the
	// subscription is not lost.
	if cur, err := c.store.Get(r.Context(), m.ID); err == nil {
		m = cur
	}
	if !send(m.View()) || m.Status == StatusFinished {
		return
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-updates:
			if !ok || !send(v) || v.Status == StatusFinished {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
