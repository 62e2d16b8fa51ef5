package store

import "sync"

// Broadcaster is a multi-subscriber, commit-ordered change-notification
// stream for a single relation. A new subscriber immediately receives the
// current snapshot (the caller's responsibility to push via Publish right
// after Subscribe, or to seed it with an initial Publish), then every
// subsequent publish in commit order.
//
// Grounded on the teacher's cmd/desktop/websocket.go Hub: the
// register/unregister/broadcast channel triad and its run() goroutine are
// generalized here from a websocket-client fan-out to a plain, in-process
// one, since this core has no transport dependency.
type Broadcaster struct {
	mu          sync.Mutex
	subscribers map[chan []byte]struct{}
	register    chan chan []byte
	unregister  chan chan []byte
	broadcast   chan []byte
	done        chan struct{}
}

// subscriberBuffer bounds how many pending snapshots a slow subscriber can
// accumulate before this broadcaster starts coalescing: a new publish to a
// full channel drops the oldest pending value in favor of the newest one,
// rather than blocking the whole store on one slow consumer.
const subscriberBuffer = 4

// NewBroadcaster creates a Broadcaster and starts its dispatch loop.
func NewBroadcaster() *Broadcaster {
	b := &Broadcaster{
		subscribers: make(map[chan []byte]struct{}),
		register:    make(chan chan []byte),
		unregister:  make(chan chan []byte),
		broadcast:   make(chan []byte, 16),
		done:        make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *Broadcaster) run() {
	for {
		select {
		case ch := <-b.register:
			b.mu.Lock()
			b.subscribers[ch] = struct{}{}
			b.mu.Unlock()
		case ch := <-b.unregister:
			b.mu.Lock()
			if _, ok := b.subscribers[ch]; ok {
				delete(b.subscribers, ch)
				close(ch)
			}
			b.mu.Unlock()
		case payload := <-b.broadcast:
			b.mu.Lock()
			for ch := range b.subscribers {
				select {
				case ch <- payload:
				default:
					// Slow consumer: drop the oldest pending value and
					// retry once so the newest snapshot always lands.
					select {
					case <-ch:
					default:
					}
					select {
					case ch <- payload:
					default:
					}
				}
			}
			b.mu.Unlock()
		case <-b.done:
			b.mu.Lock()
			for ch := range b.subscribers {
				close(ch)
			}
			b.subscribers = nil
			b.mu.Unlock()
			return
		}
	}
}

// Publish sends payload (typically a JSON-encoded snapshot or delta) to
// every current subscriber, in commit order relative to other Publish
// calls from the same caller.
func (b *Broadcaster) Publish(payload []byte) {
	select {
	case b.broadcast <- payload:
	case <-b.done:
	}
}

// Subscribe registers a new subscriber and returns its channel plus an
// unsubscribe function. The channel is closed when Unsubscribe is called
// or the Broadcaster itself is closed.
func (b *Broadcaster) Subscribe() (ch <-chan []byte, unsubscribe func()) {
	c := make(chan []byte, subscriberBuffer)
	select {
	case b.register <- c:
	case <-b.done:
		close(c)
		return c, func() {}
	}
	return c, func() {
		select {
		case b.unregister <- c:
		case <-b.done:
		}
	}
}

// Close shuts down the dispatch loop and closes every subscriber channel.
func (b *Broadcaster) Close() {
	close(b.done)
}
