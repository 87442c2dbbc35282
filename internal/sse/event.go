package sse

import (
	"encoding/json"
	"strconv"
	"sync/atomic"
)

type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data string `json:"data"`

	// CompanyID scopes the event to one tenant; zero means global. It is
	// routing metadata, never part of the wire payload.
	CompanyID int64 `json:"-"`
}

const (
	EventHeartbeat    = "heartbeat"
	EventAnnouncement = "company-announcement"
)

const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

var globalEventID int64

func NewEvent(eventType string, payload any) Event {
	id := atomic.AddInt64(&globalEventID, 1)
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte("null")
	}

	return Event{
		ID:   strconv.FormatInt(id, 10),
		Type: eventType,
		Data: string(data),
	}
}
