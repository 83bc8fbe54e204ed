// Package events fans analysis progress out to any number of subscribers.
package events

import (
	"sync"
	"time"

	"github.com/jonathan/ats-analyzer/internal/types"
)

// Lifecycle event names. Reveal events use the phase name instead.
const (
	Started   = "started"
	CacheHit  = "cache_hit"
	Completed = "completed"
	Failed    = "error"
	Cancelled = "cancelled"
	Cleared   = "cleared"
)

// Event is one progress notification
type Event struct {
	Phase     string      `json:"phase"`
	Message   string      `json:"message"`
	IsError   bool        `json:"is_error"`
	SessionID string      `json:"session_id"`
	State     types.State `json:"state,omitempty"`
	Time      time.Time   `json:"time"`
}

// Terminal reports whether the event moved the session to a terminal state.
func (e Event) Terminal() bool {
	return e.State.IsTerminal()
}

// Bus delivers every published event to every current subscriber, in
// publish order. Publish never blocks: each subscriber has its own
// unbounded queue.
type Bus struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[*Subscription]struct{})}
}

// Publish sends ev to all subscribers. A zero Time is set to now.
func (b *Bus) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for sub := range b.subs {
		sub.push(ev)
	}
}

// Subscribe registers a new subscriber. It sees only events published after
// the call. Subscribing to a closed bus yields a closed channel.
func (b *Bus) Subscribe() *Subscription {
	sub := &Subscription{
		bus:    b,
		out:    make(chan Event),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.out)
		return sub
	}
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	go sub.run()
	return sub
}

// Len returns the number of active subscribers.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close stops accepting events. Subscribers still receive what was queued,
// then their channels close.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		sub.drain()
	}
	b.subs = nil
}

func (b *Bus) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, sub)
}

// Subscription is one subscriber's view of a bus
type Subscription struct {
	bus    *Bus
	out    chan Event
	notify chan struct{}
	done   chan struct{}
	once   sync.Once

	mu       sync.Mutex
	queue    []Event
	draining bool
}

// Events returns the delivery channel. It closes after Close, or once the
// bus is closed and the queue is drained.
func (s *Subscription) Events() <-chan Event {
	return s.out
}

// Close unsubscribes and drops undelivered events.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.remove(s)
		close(s.done)
	})
}

func (s *Subscription) push(ev Event) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	s.wake()
}

func (s *Subscription) drain() {
	s.mu.Lock()
	s.draining = true
	s.mu.Unlock()
	s.wake()
}

func (s *Subscription) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Subscription) run() {
	defer close(s.out)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			draining := s.draining
			s.mu.Unlock()
			if draining {
				return
			}
			select {
			case <-s.notify:
				continue
			case <-s.done:
				return
			}
		}
		ev := s.queue[0]
		s.queue[0] = Event{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- ev:
		case <-s.done:
			return
		}
	}
}
