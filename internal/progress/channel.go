package progress

import "sync"

// Channel is a Sink backed by a buffered channel. When the buffer is full,
// download and processing events are dropped; start and summary events
// always get through.
type Channel struct {
	ch     chan Event
	mu     sync.RWMutex
	closed bool
}

func NewChannel(buffer int) *Channel {
	if buffer < 1 {
		buffer = 64
	}
	return &Channel{ch: make(chan Event, buffer)}
}

// Events returns the receive side. It is closed by Close.
func (c *Channel) Events() <-chan Event {
	return c.ch
}

func (c *Channel) Emit(e Event) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}

	switch e.Kind {
	case KindStart, KindSummary:
		c.ch <- e
	default:
		select {
		case c.ch <- e:
		default:
		}
	}
}

// Close stops delivery. Emit after Close is a no-op.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.ch)
}

// Pump forwards events from c to sink until c is closed.
func (c *Channel) Pump(sink Sink) {
	for e := range c.ch {
		sink.Emit(e)
	}
}
