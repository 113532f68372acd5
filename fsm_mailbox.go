package wsfeed

import (
	"sync"
)

// mailbox is the unbounded inbox of the machine loop. Posting never blocks, so listeners invoked from
// transport goroutines cannot stall on a busy loop.
type mailbox struct {
	mu     sync.Mutex
	queue  []event
	notify chan struct{}
	closed bool
}

func newMailbox() *mailbox {
	return &mailbox{notify: make(chan struct{}, 1)}
}

// post enqueues ev. It reports false once the mailbox is closed.
func (b *mailbox) post(ev event) bool {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false
	}
	b.queue = append(b.queue, ev)
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
	return true
}

func (b *mailbox) drain() []event {
	b.mu.Lock()
	defer b.mu.Unlock()

	queue := b.queue
	b.queue = nil
	return queue
}

// close rejects further posts and returns whatever was still queued.
func (b *mailbox) close() []event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	queue := b.queue
	b.queue = nil
	return queue
}
