package v1

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mesquitadev/whatsticket-be/internal/api/middleware"
	"github.com/mesquitadev/whatsticket-be/internal/api/response"
	"github.com/mesquitadev/whatsticket-be/internal/sse"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPongTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
)

// WSHandler exposes the same announcement stream over a websocket for
// clients that cannot hold an EventSource connection.
type WSHandler struct {
	hub    *sse.Hub
	logger *zap.Logger

	upgrader websocket.Upgrader
}

func NewWSHandler(hub *sse.Hub, logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WSHandler{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
		},
	}
}

func RegisterWSRoutes(group *gin.RouterGroup, hub *sse.Hub, logger *zap.Logger) {
	handler := NewWSHandler(hub, logger)
	group.GET("/ws", middleware.JWTAuth(), handler.Subscribe)
}

func (h *WSHandler) Subscribe(c *gin.Context) {
	if h.hub == nil {
		response.Fail(c, http.StatusServiceUnavailable, "event hub unavailable")
		return
	}

	claims, ok := middleware.GetClaims(c)
	if !ok || claims.CompanyID <= 0 {
		response.Fail(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := sse.NewClient(claims.UserID, claims.CompanyID)
	h.hub.Register(client)

	go h.readLoop(conn, client)
	h.writeLoop(conn, client)
}

// readLoop discards inbound frames; the socket is broadcast-only. It exists
// to process control frames and detect the peer going away.
func (h *WSHandler) readLoop(conn *websocket.Conn, client *sse.Client) {
	defer h.hub.Unregister(client.ID)

	conn.SetReadLimit(1024)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *WSHandler) writeLoop(conn *websocket.Conn, client *sse.Client) {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
		h.hub.Unregister(client.ID)
	}()

	for {
		select {
		case <-client.Done:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			_ = conn.WriteMessage(websocket.CloseMessage, nil)
			return
		case event := <-client.Ch:
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
