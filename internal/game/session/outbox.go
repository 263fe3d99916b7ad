package session

import (
	"fmt"
	"sync"
)

// Outbox buffers notices for one connected actor until a transport stream
// drains them.
type Outbox struct {
	owner   string
	notices chan string
	mu      sync.Mutex
	closed  bool
}

// NewOutbox creates an Outbox for owner holding up to bufferSize notices.
//
// Postcondition: Returns an Outbox with an open notices channel.
func NewOutbox(owner string, bufferSize int) *Outbox {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Outbox{
		owner:   owner,
		notices: make(chan string, bufferSize),
	}
}

// Push enqueues msg without blocking.
//
// Postcondition: msg is enqueued, or an error if the outbox is closed or full.
func (o *Outbox) Push(msg string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return fmt.Errorf("outbox %s is closed", o.owner)
	}
	select {
	case o.notices <- msg:
		return nil
	default:
		return fmt.Errorf("outbox %s buffer full", o.owner)
	}
}

// Notices returns the read-only notice channel. It is closed by Close.
func (o *Outbox) Notices() <-chan string {
	return o.notices
}

// Close closes the notice channel. Close is idempotent.
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.closed {
		o.closed = true
		close(o.notices)
	}
}

// IsClosed reports whether the outbox has been closed.
func (o *Outbox) IsClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}
