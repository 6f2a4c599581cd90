// registry/endpoint.go
package registry

import (
	"sync"
	"time"

	"github.com/wfunc/matchserver/network"
)

// Endpoint is one live transport connection. A user on several devices
// holds several endpoints at once.
type Endpoint struct {
	ID          string
	UserID      int64
	Name        string // display name announced in the hello event
	Conn        network.Connection
	ConnectedAt time.Time
	LastActive  time.Time
	mutex       sync.RWMutex
	closed      bool
}

func NewEndpoint(id string, conn network.Connection) *Endpoint {
	now := time.Now()
	return &Endpoint{
		ID:          id,
		Conn:        conn,
		ConnectedAt: now,
		LastActive:  now,
	}
}

func (e *Endpoint) Send(event string, payload interface{}) error {
	e.mutex.Lock()
	e.LastActive = time.Now()
	e.mutex.Unlock()
	return e.Conn.Send(event, payload)
}

func (e *Endpoint) Touch() {
	e.mutex.Lock()
	e.LastActive = time.Now()
	e.mutex.Unlock()
}

func (e *Endpoint) GetID() string {
	return e.ID
}

func (e *Endpoint) Close() error {
	e.mutex.Lock()
	e.closed = true
	e.mutex.Unlock()
	return e.Conn.Close()
}

// IsClosed reports whether the underlying transport was shut down.
func (e *Endpoint) IsClosed() bool {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.closed
}
