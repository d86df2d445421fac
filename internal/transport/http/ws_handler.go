package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"edu-duel-service/internal/app"
	"edu-duel-service/internal/logger"
)

// WSHandler streams sanitized duel state to watching participants. The engine
// itself stays request/response; this is a presentation-layer convenience over
// polling.
type WSHandler struct {
	duels    *app.DuelService
	hub      *app.WatchHub
	upgrader websocket.Upgrader
}

func NewWSHandler(duels *app.DuelService, hub *app.WatchHub) *WSHandler {
	return &WSHandler{
		duels: duels,
		hub:   hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage struct {
	Type    string        `json:"type"`
	Payload *app.DuelView `json:"payload,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// ServeWS upgrades the request and pushes a state snapshot followed by every
// subsequent change until the client disconnects.
func (h *WSHandler) ServeWS(c *gin.Context) {
	duelID := c.Param("id")
	userID := c.Query("userId")
	if userID == "" {
		userID = c.GetHeader("X-User-ID")
	}
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing user identity"})
		return
	}

	initial, err := h.duels.Get(c.Request.Context(), duelID, userID)
	if err != nil {
		writeError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	updates, cancel := h.hub.Subscribe(duelID)
	defer cancel()

	if err := conn.WriteJSON(outboundMessage{Type: "duel", Payload: initial}); err != nil {
		return
	}

	// Drain reads so close frames are processed; watchers never send commands.
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case view, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(outboundMessage{Type: "duel", Payload: view}); err != nil {
				return
			}
		case <-readerDone:
			return
		}
	}
}
