package sse

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestHub() *Hub {
	return &Hub{
		eventBuf: NewRingBuffer(defaultRingBufferSize),
		logger:   zap.NewNop(),
		stopCh:   make(chan struct{}),
	}
}

func TestBroadcast_AllTenantsReceive(t *testing.T) {
	t.Parallel()

	hub := newTestHub()
	tenantOne := NewClient("u1", 1)
	tenantTwo := NewClient("u2", 2)
	hub.Register(tenantOne)
	hub.Register(tenantTwo)

	event := NewEvent(EventAnnouncement, map[string]any{"action": ActionCreate})
	hub.Broadcast(event)

	assertEventType(t, tenantOne.Ch, EventAnnouncement)
	assertEventType(t, tenantTwo.Ch, EventAnnouncement)
}

func TestSendToCompany_OnlyMatchingTenantReceives(t *testing.T) {
	t.Parallel()

	hub := newTestHub()
	target := NewClient("u1", 1)
	other := NewClient("u2", 2)
	hub.Register(target)
	hub.Register(other)

	event := NewEvent(EventAnnouncement, map[string]any{"action": ActionDelete, "id": 7})
	hub.SendToCompany(1, event)

	assertEventType(t, target.Ch, EventAnnouncement)
	assertNoEvent(t, other.Ch)
}

func TestSendToCompany_MultipleConnectionsPerUser(t *testing.T) {
	t.Parallel()

	hub := newTestHub()
	first := NewClient("u1", 1)
	second := NewClient("u1", 1)
	hub.Register(first)
	hub.Register(second)

	if hub.ConnectedCount() != 2 {
		t.Fatalf("expected 2 registered connections, got %d", hub.ConnectedCount())
	}

	event := NewEvent(EventAnnouncement, map[string]any{"action": ActionUpdate})
	hub.SendToCompany(1, event)

	assertEventType(t, first.Ch, EventAnnouncement)
	assertEventType(t, second.Ch, EventAnnouncement)
}

func TestBackpressure_SlowClientDoesNotBlockOthers(t *testing.T) {
	t.Parallel()

	hub := newTestHub()
	slow := &Client{
		ID:        "slow",
		UserID:    "u1",
		CompanyID: 1,
		Ch:        make(chan Event, 1),
		Done:      make(chan struct{}),
	}
	fast := &Client{
		ID:        "fast",
		UserID:    "u2",
		CompanyID: 1,
		Ch:        make(chan Event, 1),
		Done:      make(chan struct{}),
	}
	// Fill the slow client queue so dispatch takes the non-blocking path.
	slow.Ch <- NewEvent(EventHeartbeat, map[string]any{"seed": true})

	hub.Register(slow)
	hub.Register(fast)

	event := NewEvent(EventAnnouncement, map[string]any{"action": ActionCreate})
	hub.Broadcast(event)

	assertEventType(t, fast.Ch, EventAnnouncement)
}

func TestBackpressure_PersistentlyFullClientIsDisconnected(t *testing.T) {
	t.Parallel()

	hub := newTestHub()
	slow := &Client{
		ID:        "stuck",
		UserID:    "u1",
		CompanyID: 1,
		Ch:        make(chan Event, 1),
		Done:      make(chan struct{}),
	}
	slow.Ch <- NewEvent(EventHeartbeat, map[string]any{"seed": true})
	hub.Register(slow)

	for i := 0; i < backpressureFullLimit; i++ {
		hub.Broadcast(NewEvent(EventAnnouncement, map[string]any{"n": i}))
	}

	if hub.ConnectedCount() != 0 {
		t.Fatalf("expected stuck client disconnected, got %d connections", hub.ConnectedCount())
	}

	select {
	case <-slow.Done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected Done channel closed after forced disconnect")
	}
}

func TestUnregister_ClosesClientOnce(t *testing.T) {
	t.Parallel()

	hub := newTestHub()
	client := NewClient("u1", 1)
	hub.Register(client)

	hub.Unregister(client.ID)
	hub.Unregister(client.ID)

	select {
	case <-client.Done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected Done channel closed after unregister")
	}
	if hub.ConnectedCount() != 0 {
		t.Fatalf("expected 0 connections, got %d", hub.ConnectedCount())
	}
}

func TestSince_ReplayIsScopedToTenant(t *testing.T) {
	t.Parallel()

	hub := newTestHub()
	anchor := NewEvent(EventAnnouncement, map[string]any{"action": ActionCreate})
	hub.Broadcast(anchor)

	global := NewEvent(EventAnnouncement, map[string]any{"action": ActionUpdate})
	scoped := NewEvent(EventAnnouncement, map[string]any{"action": ActionDelete, "id": 42})
	hub.Broadcast(global)
	hub.SendToCompany(1, scoped)

	replayed := hub.Since(anchor.ID, 1)
	if len(replayed) != 2 {
		t.Fatalf("expected tenant 1 to replay 2 events, got %d", len(replayed))
	}
	if replayed[0].ID != global.ID || replayed[1].ID != scoped.ID {
		t.Fatalf("unexpected replay sequence: %+v", replayed)
	}

	otherTenant := hub.Since(anchor.ID, 2)
	if len(otherTenant) != 1 {
		t.Fatalf("expected tenant 2 to replay only the global event, got %d", len(otherTenant))
	}
	if otherTenant[0].ID != global.ID {
		t.Fatalf("tenant 2 replayed a foreign tenant event: %+v", otherTenant[0])
	}
}

func TestSince_NoReplayWithoutLastEventID(t *testing.T) {
	t.Parallel()

	hub := newTestHub()
	hub.Broadcast(NewEvent(EventAnnouncement, map[string]any{"action": ActionCreate}))
	hub.SendToCompany(1, NewEvent(EventAnnouncement, map[string]any{"action": ActionDelete, "id": 7}))

	if replayed := hub.Since("", 1); len(replayed) != 0 {
		t.Fatalf("expected no replay for a fresh subscriber, got %d events", len(replayed))
	}
}

func TestRingBuffer_Since_ReturnsNewerEvents(t *testing.T) {
	t.Parallel()

	rb := NewRingBuffer(10)
	rb.Push(Event{ID: "1", Type: EventHeartbeat})
	rb.Push(Event{ID: "2", Type: EventAnnouncement})
	rb.Push(Event{ID: "3", Type: EventAnnouncement})

	events := rb.Since("1")
	if len(events) != 2 {
		t.Fatalf("expected 2 events after id=1, got %d", len(events))
	}
	if events[0].ID != "2" || events[1].ID != "3" {
		t.Fatalf("unexpected event sequence: %+v", events)
	}
}

func TestRingBuffer_EvictsOldestWhenFull(t *testing.T) {
	t.Parallel()

	rb := NewRingBuffer(3)
	rb.Push(Event{ID: "1", Type: EventHeartbeat})
	rb.Push(Event{ID: "2", Type: EventAnnouncement})
	rb.Push(Event{ID: "3", Type: EventAnnouncement})
	rb.Push(Event{ID: "4", Type: EventAnnouncement})

	events := rb.Since("")
	if len(events) != 3 {
		t.Fatalf("expected 3 events in ring buffer, got %d", len(events))
	}
	if events[0].ID != "2" || events[1].ID != "3" || events[2].ID != "4" {
		t.Fatalf("unexpected buffer contents after eviction: %+v", events)
	}
}

func assertEventType(t *testing.T, ch <-chan Event, wantType string) {
	t.Helper()
	select {
	case event := <-ch:
		if event.Type != wantType {
			t.Fatalf("expected event type %q, got %q", wantType, event.Type)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for event type %q", wantType)
	}
}

func assertNoEvent(t *testing.T, ch <-chan Event) {
	t.Helper()
	select {
	case event := <-ch:
		t.Fatalf("unexpected event delivered: %+v", event)
	case <-time.After(100 * time.Millisecond):
	}
}
