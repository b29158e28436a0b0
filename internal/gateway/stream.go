package gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pixil98/go-quest/internal/messaging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Clients are mobile apps, not browsers; origin checks add nothing.
	CheckOrigin: func(*http.Request) bool { return true },
}

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	// frameBuffer absorbs bursts of frames while the socket is busy.
	frameBuffer = 32
)

// handleStream upgrades the connection and forwards the player's frames
// from the messaging layer until either side disconnects.
func (g *Gateway) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionId := r.PathValue("session")
	playerId := r.PathValue("player")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.WarnContext(r.Context(), "upgrading stream", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	frames := make(chan []byte, frameBuffer)
	unsubscribe, err := g.sub.Subscribe(messaging.PlayerSubject(sessionId, playerId), func(data []byte) {
		select {
		case frames <- data:
		default:
			// Slow consumer; the next snapshot frame supersedes anything
			// dropped here.
		}
	})
	if err != nil {
		slog.WarnContext(r.Context(), "subscribing stream", "session", sessionId, "player", playerId, "error", err)
		return
	}
	defer unsubscribe()

	// Drain reads so close frames and pongs are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-done:
			return
		case data := <-frames:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
