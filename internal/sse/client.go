package sse

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

const clientBufferSize = 512

// Client is one subscriber connection. A user may hold several concurrent
// connections, so the registry key is the connection ID, not the user.
type Client struct {
	ID        string
	UserID    string
	CompanyID int64
	Ch        chan Event
	Done      chan struct{}

	fullStreak atomic.Int32
	closeOnce  sync.Once
}

func NewClient(userID string, companyID int64) *Client {
	return &Client{
		ID:        uuid.NewString(),
		UserID:    userID,
		CompanyID: companyID,
		Ch:        make(chan Event, clientBufferSize),
		Done:      make(chan struct{}),
	}
}

func (c *Client) Close() {
	if c == nil {
		return
	}

	c.closeOnce.Do(func() {
		close(c.Done)
	})
}

func (c *Client) markDispatchSuccess() {
	if c == nil {
		return
	}
	c.fullStreak.Store(0)
}

func (c *Client) markDispatchFull() int32 {
	if c == nil {
		return 0
	}
	return c.fullStreak.Add(1)
}
