package sink

import (
	"sync"
	"sync/atomic"

	"github.com/safing/mibis/log"
)

// DefaultSubscriberBuffer is the number of packed chunks buffered per subscriber.
const DefaultSubscriberBuffer = 16

// Broadcast fans packed bits out to subscribers. Chunks are dropped for
// subscribers that do not keep up, so the pipeline is never blocked.
type Broadcast struct {
	lock        sync.RWMutex
	subscribers map[*Subscription]struct{}
	closed      bool
}

// Subscription receives packed chunks of a Broadcast.
type Subscription struct {
	C       <-chan []byte
	c       chan []byte
	b       *Broadcast
	dropped atomic.Uint64
	once    sync.Once
}

// NewBroadcast returns a new Broadcast without subscribers.
func NewBroadcast() *Broadcast {
	return &Broadcast{
		subscribers: make(map[*Subscription]struct{}),
	}
}

// Subscribe adds a new subscriber. The returned subscription must be
// canceled when it is no longer read from.
func (b *Broadcast) Subscribe() *Subscription {
	c := make(chan []byte, DefaultSubscriberBuffer)
	sub := &Subscription{
		C: c,
		c: c,
		b: b,
	}

	b.lock.Lock()
	defer b.lock.Unlock()

	if b.closed {
		sub.once.Do(func() {
			close(c)
		})
		return sub
	}
	b.subscribers[sub] = struct{}{}
	return sub
}

// Subscribers returns the number of active subscribers.
func (b *Broadcast) Subscribers() int {
	b.lock.RLock()
	defer b.lock.RUnlock()

	return len(b.subscribers)
}

// WriteBits implements BitWriter.
func (b *Broadcast) WriteBits(bits []byte) error {
	b.lock.RLock()
	defer b.lock.RUnlock()

	if len(b.subscribers) == 0 {
		return nil
	}

	packed, err := Pack(bits)
	if err != nil {
		return err
	}
	for sub := range b.subscribers {
		select {
		case sub.c <- packed:
		default:
			if sub.dropped.Add(1) == 1 {
				log.Debugf("sink: broadcast subscriber is too slow, dropping chunks")
			}
		}
	}
	return nil
}

// Close ends all subscriptions.
func (b *Broadcast) Close() error {
	b.lock.Lock()
	defer b.lock.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for sub := range b.subscribers {
		sub.once.Do(func() {
			close(sub.c)
		})
		delete(b.subscribers, sub)
	}
	return nil
}

// Cancel ends the subscription and closes C.
func (sub *Subscription) Cancel() {
	sub.b.lock.Lock()
	defer sub.b.lock.Unlock()

	delete(sub.b.subscribers, sub)
	sub.once.Do(func() {
		close(sub.c)
	})
}

// Dropped returns the number of chunks dropped for this subscriber.
func (sub *Subscription) Dropped() uint64 {
	return sub.dropped.Load()
}
