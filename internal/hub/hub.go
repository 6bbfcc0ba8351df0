// Package hub implements the single-producer broadcast channel that fans
// decoded create records out to TCP writer goroutines. The hub keeps a
// fixed-size ring of the most recent records: publishing never blocks, the
// oldest record is overwritten when the ring is full, and a receiver that
// was overtaken learns about the gap through ErrLagged.
package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"pumpfun-relay/internal/extract"
)

// DefaultCapacity is the ring size used by the process-wide hub.
const DefaultCapacity = 10000

// ErrClosed is returned by Recv once the hub has been closed and the
// receiver has drained every retained record.
var ErrClosed = errors.New("hub: closed")

// ErrLagged reports that the ring overwrote records a receiver had not yet
// read. The receiver's cursor is moved to the oldest retained record, so
// the next Recv resumes delivery from there.
type ErrLagged struct {
	Missed uint64
}

func (e ErrLagged) Error() string {
	return fmt.Sprintf("hub: receiver lagged behind, missed %d records", e.Missed)
}

// Hub is the broadcast channel. All state is guarded by mu; waiting
// receivers are woken by replacing the wake channel on every publish.
type Hub struct {
	mu        sync.Mutex
	buf       []*extract.CreateRecord
	head      uint64 // sequence number of the next record to publish
	receivers int
	closed    bool
	wake      chan struct{} // closed and replaced on publish and on Close
}

// New creates a hub retaining up to capacity records. Capacity must be
// positive; callers normally pass DefaultCapacity.
func New(capacity int) *Hub {
	if capacity <= 0 {
		panic("hub: capacity must be positive")
	}
	return &Hub{
		buf:  make([]*extract.CreateRecord, capacity),
		wake: make(chan struct{}),
	}
}

// Publish appends rec to the ring, overwriting the oldest retained record
// if the ring is full, and wakes every waiting receiver. It returns the
// number of attached receivers; zero means the record reached nobody.
// Publish never blocks on receivers.
func (h *Hub) Publish(rec *extract.CreateRecord) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0
	}
	h.buf[h.head%uint64(len(h.buf))] = rec
	h.head++
	close(h.wake)
	h.wake = make(chan struct{})
	return h.receivers
}

// Subscribe attaches a new receiver at the current head; it will see only
// records published after this call.
func (h *Hub) Subscribe() *Receiver {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.receivers++
	return &Receiver{hub: h, next: h.head}
}

// Receivers reports the number of currently attached receivers.
func (h *Hub) Receivers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.receivers
}

// Close marks the hub closed and wakes all waiting receivers. Receivers
// may still drain retained records; after that Recv returns ErrClosed.
// Publishing after Close is a no-op.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	close(h.wake)
}

// oldestLocked returns the sequence number of the oldest retained record.
// Callers must hold mu.
func (h *Hub) oldestLocked() uint64 {
	capacity := uint64(len(h.buf))
	if h.head > capacity {
		return h.head - capacity
	}
	return 0
}

// Receiver is one subscriber's private cursor onto the hub. A Receiver is
// owned by a single goroutine and must not be shared.
type Receiver struct {
	hub  *Hub
	next uint64
}

// Recv returns the next record in publication order. When the receiver was
// overtaken it returns ErrLagged and skips to the oldest retained record;
// when the hub is closed and drained it returns ErrClosed; when ctx is
// done it returns the context error.
func (r *Receiver) Recv(ctx context.Context) (*extract.CreateRecord, error) {
	for {
		r.hub.mu.Lock()
		if oldest := r.hub.oldestLocked(); r.next < oldest {
			missed := oldest - r.next
			r.next = oldest
			r.hub.mu.Unlock()
			return nil, ErrLagged{Missed: missed}
		}
		if r.next < r.hub.head {
			rec := r.hub.buf[r.next%uint64(len(r.hub.buf))]
			r.next++
			r.hub.mu.Unlock()
			return rec, nil
		}
		if r.hub.closed {
			r.hub.mu.Unlock()
			return nil, ErrClosed
		}
		wake := r.hub.wake
		r.hub.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close detaches the receiver from the hub. Recv must not be called after
// Close.
func (r *Receiver) Close() {
	r.hub.mu.Lock()
	defer r.hub.mu.Unlock()
	r.hub.receivers--
}
