package v1

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mesquitadev/whatsticket-be/internal/api/middleware"
	"github.com/mesquitadev/whatsticket-be/internal/api/response"
	"github.com/mesquitadev/whatsticket-be/internal/sse"
)

type SSEHandler struct {
	hub *sse.Hub
}

func NewSSEHandler(hub *sse.Hub) *SSEHandler {
	return &SSEHandler{hub: hub}
}

func RegisterSSERoutes(group *gin.RouterGroup, hub *sse.Hub) {
	handler := NewSSEHandler(hub)
	group.GET("/events", middleware.JWTAuth(), handler.Events)
}

// Events streams announcement broadcasts for the caller's tenant. The
// Last-Event-ID header replays buffered events missed during a reconnect.
func (h *SSEHandler) Events(c *gin.Context) {
	if h.hub == nil {
		response.Fail(c, 503, "event hub unavailable")
		return
	}

	claims, ok := middleware.GetClaims(c)
	if !ok || claims.CompanyID <= 0 {
		response.Fail(c, 401, "unauthorized")
		return
	}

	flusher, ok := c.Writer.(interface{ Flush() })
	if !ok {
		response.Fail(c, 500, "stream unsupported")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Header("Connection", "keep-alive")
	c.Status(200)

	client := sse.NewClient(claims.UserID, claims.CompanyID)
	h.hub.Register(client)
	defer h.hub.Unregister(client.ID)

	if lastID := c.GetHeader("Last-Event-ID"); lastID != "" {
		for _, event := range h.hub.Since(lastID, claims.CompanyID) {
			if err := writeSSEEvent(c, event); err != nil {
				return
			}
			flusher.Flush()
		}
	}

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-client.Done:
			return
		case event := <-client.Ch:
			if err := writeSSEEvent(c, event); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSEEvent(c *gin.Context, event sse.Event) error {
	if _, err := fmt.Fprintf(c.Writer, "id: %s\n", event.ID); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(c.Writer, "event: %s\n", event.Type); err != nil {
		return err
	}

	for _, line := range strings.Split(event.Data, "\n") {
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n", line); err != nil {
			return err
		}
	}

	_, err := fmt.Fprint(c.Writer, "\n")
	return err
}
