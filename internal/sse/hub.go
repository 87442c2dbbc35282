package sse

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mesquitadev/whatsticket-be/internal/metrics"
)

const (
	heartbeatInterval     = 30 * time.Second
	backpressureFullLimit = 5
)

// Hub fans events out to connected subscribers. Topics are implicit: a
// Broadcast reaches every client regardless of tenant, SendToCompany reaches
// only clients registered under that company. The registry tolerates
// concurrent register/unregister/publish; publishers never block on it.
type Hub struct {
	clients  sync.Map
	eventBuf *RingBuffer

	logger *zap.Logger
	stopCh chan struct{}
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}

	hub := &Hub{
		eventBuf: NewRingBuffer(defaultRingBufferSize),
		logger:   logger,
		stopCh:   make(chan struct{}),
	}

	go hub.startHeartbeat()

	return hub
}

func (h *Hub) Register(client *Client) {
	if h == nil || client == nil || client.ID == "" {
		return
	}

	h.clients.Store(client.ID, client)
	metrics.SetSubscriberCount(h.ConnectedCount())
}

func (h *Hub) Unregister(clientID string) {
	if h == nil || clientID == "" {
		return
	}

	value, loaded := h.clients.LoadAndDelete(clientID)
	if !loaded {
		return
	}

	if client, ok := value.(*Client); ok {
		client.Close()
	}
	metrics.SetSubscriberCount(h.ConnectedCount())
}

// Broadcast delivers to every connected client (the global topic).
func (h *Hub) Broadcast(event Event) {
	if h == nil {
		return
	}

	h.eventBuf.Push(event)
	metrics.IncBroadcastEvents(event.Type)
	h.clients.Range(func(_, value interface{}) bool {
		if client, ok := value.(*Client); ok {
			h.dispatch(client, event)
		}
		return true
	})
}

// SendToCompany delivers only to clients of one tenant topic. The event is
// stamped with the tenant before buffering so replay stays scoped too.
func (h *Hub) SendToCompany(companyID int64, event Event) {
	if h == nil {
		return
	}

	event.CompanyID = companyID
	h.eventBuf.Push(event)
	metrics.IncBroadcastEvents(event.Type)
	h.clients.Range(func(_, value interface{}) bool {
		client, ok := value.(*Client)
		if !ok {
			return true
		}
		if client.CompanyID == companyID {
			h.dispatch(client, event)
		}
		return true
	})
}

// Since replays buffered events newer than lastID that companyID is allowed
// to see: its own tenant-scoped events plus global ones. An empty lastID
// means the subscriber has no replay position, so nothing is replayed.
func (h *Hub) Since(lastID string, companyID int64) []Event {
	if h == nil || lastID == "" {
		return nil
	}

	buffered := h.eventBuf.Since(lastID)
	result := make([]Event, 0, len(buffered))
	for _, event := range buffered {
		if event.CompanyID != 0 && event.CompanyID != companyID {
			continue
		}
		result = append(result, event)
	}
	return result
}

func (h *Hub) Close() {
	if h == nil {
		return
	}

	select {
	case <-h.stopCh:
		return
	default:
		close(h.stopCh)
	}
}

func (h *Hub) ConnectedCount() int {
	if h == nil {
		return 0
	}

	count := 0
	h.clients.Range(func(_, _ interface{}) bool {
		count++
		return true
	})
	return count
}

// dispatch never blocks a publisher: a full client buffer drops the event,
// and a client that stays full long enough is disconnected.
func (h *Hub) dispatch(client *Client, event Event) {
	if client == nil {
		return
	}

	select {
	case <-client.Done:
		return
	case client.Ch <- event:
		client.markDispatchSuccess()
		return
	default:
		streak := client.markDispatchFull()
		h.logger.Warn("drop event due to full subscriber buffer",
			zap.String("client_id", client.ID),
			zap.String("user_id", client.UserID),
			zap.String("type", event.Type),
			zap.Int32("full_streak", streak),
		)
		if streak >= backpressureFullLimit {
			h.logger.Warn("disconnect slow subscriber due to backpressure",
				zap.String("client_id", client.ID),
				zap.Int32("full_streak", streak),
			)
			h.Unregister(client.ID)
		}
	}
}

func (h *Hub) startHeartbeat() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopCh:
			return
		case now := <-ticker.C:
			h.Broadcast(NewEvent(EventHeartbeat, map[string]interface{}{
				"ts": now.UTC().Format(time.RFC3339Nano),
			}))
		}
	}
}
