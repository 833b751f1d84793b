package events

import (
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/codeready-toolchain/buildscout/pkg/agent"
)

const (
	// maxEventsPerSession caps the catch-up history of one session. Older
	// events are discarded first.
	maxEventsPerSession = 1000

	// subscriberBuffer is the channel capacity of a subscription.
	subscriberBuffer = 256

	// evictedSeqFactor sizes the memory of evicted sessions' last event IDs
	// relative to the number of kept histories.
	evictedSeqFactor = 16
)

// sessionLog is the history of one session.
type sessionLog struct {
	mu      sync.Mutex
	nextID  int64
	events  []Event
	dropped bool // history was trimmed at least once
}

// Subscription receives live events for one session.
type Subscription struct {
	C <-chan Event

	ch        chan Event
	sessionID string
	broker    *Broker
	closeOnce sync.Once
}

// Close stops delivery and releases the subscription.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() { s.broker.unsubscribe(s) })
}

// Broker is an in-process publish/subscribe hub keyed by session id, with a
// bounded catch-up history. Histories of idle sessions expire after the
// configured TTL, and at most maxSessions histories are kept.
//
// Event IDs of a session never restart: when its history is evicted the last
// ID is remembered, and a recreated history continues after it and reports
// the lost range as overflow.
type Broker struct {
	history *expirable.LRU[string, *sessionLog]
	// evicted maps session id to the last event ID of an evicted history.
	evicted *lru.Cache[string, int64]

	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{}

	logger *slog.Logger
}

// NewBroker creates a broker.
func NewBroker(maxSessions int, ttl time.Duration) *Broker {
	// lru.New fails only for a non-positive size.
	evicted, _ := lru.New[string, int64](max(1, maxSessions*evictedSeqFactor))
	b := &Broker{
		evicted: evicted,
		subs:    make(map[string]map[*Subscription]struct{}),
		logger:  slog.Default(),
	}
	b.history = expirable.NewLRU[string, *sessionLog](maxSessions, b.onEvict, ttl)
	return b
}

// onEvict remembers where an evicted history's IDs stopped.
func (b *Broker) onEvict(sessionID string, log *sessionLog) {
	log.mu.Lock()
	last := log.nextID
	log.mu.Unlock()
	if last > 0 {
		b.evicted.Add(sessionID, last)
	}
}

// Publish assigns the event its sequence number, records it (unless
// transient) and delivers it to live subscribers. Slow subscribers lose
// events rather than block the publisher; they can resync with catch-up.
func (b *Broker) Publish(ev Event) Event {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	// Holding the write lock while appending keeps catch-up and live
	// delivery gap-free for concurrent subscribers.
	b.mu.Lock()
	defer b.mu.Unlock()

	if !isTransient(ev.Type) {
		log := b.logFor(ev.SessionID)
		log.mu.Lock()
		log.nextID++
		ev.ID = log.nextID
		log.events = append(log.events, ev)
		if len(log.events) > maxEventsPerSession {
			log.events = log.events[len(log.events)-maxEventsPerSession:]
			log.dropped = true
		}
		log.mu.Unlock()
	}

	for sub := range b.subs[ev.SessionID] {
		select {
		case sub.ch <- ev:
		default:
			b.logger.Warn("Dropping event for slow subscriber",
				"session_id", ev.SessionID, "type", ev.Type, "id", ev.ID)
		}
	}
	return ev
}

// Subscribe returns the recorded events with ID > sinceID and a live
// subscription starting right after them. overflow reports that events
// after sinceID were already trimmed from the history.
func (b *Broker) Subscribe(sessionID string, sinceID int64) (catchup []Event, sub *Subscription, overflow bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if log, ok := b.history.Get(sessionID); ok {
		log.mu.Lock()
		for _, ev := range log.events {
			if ev.ID > sinceID {
				catchup = append(catchup, ev)
			}
		}
		if log.dropped && len(log.events) > 0 && log.events[0].ID > sinceID+1 {
			overflow = true
		}
		log.mu.Unlock()
	} else if last, ok := b.evicted.Peek(sessionID); ok && sinceID < last {
		overflow = true
	}

	ch := make(chan Event, subscriberBuffer)
	sub = &Subscription{C: ch, ch: ch, sessionID: sessionID, broker: b}
	if b.subs[sessionID] == nil {
		b.subs[sessionID] = make(map[*Subscription]struct{})
	}
	b.subs[sessionID][sub] = struct{}{}
	return catchup, sub, overflow
}

// History returns the recorded events of a session.
func (b *Broker) History(sessionID string) []Event {
	log, ok := b.history.Get(sessionID)
	if !ok {
		return nil
	}
	log.mu.Lock()
	defer log.mu.Unlock()
	return append([]Event(nil), log.events...)
}

// SubscriberCount returns the number of live subscriptions for a session.
func (b *Broker) SubscriberCount(sessionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[sessionID])
}

func (b *Broker) unsubscribe(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if subs, ok := b.subs[s.sessionID]; ok {
		delete(subs, s)
		if len(subs) == 0 {
			delete(b.subs, s.sessionID)
		}
	}
	close(s.ch)
}

// logFor returns the session history, creating it on first use. A history
// recreated after eviction continues the session's ID sequence.
// Caller holds b.mu.
func (b *Broker) logFor(sessionID string) *sessionLog {
	if log, ok := b.history.Get(sessionID); ok {
		return log
	}
	log := &sessionLog{}
	if last, ok := b.evicted.Peek(sessionID); ok {
		log.nextID = last
		log.dropped = true
		b.evicted.Remove(sessionID)
	}
	b.history.Add(sessionID, log)
	return log
}

// Forward publishes controller events for a session until ch is closed.
func (b *Broker) Forward(sessionID string, ch <-chan agent.Event) {
	for ev := range ch {
		b.Publish(FromAgentEvent(sessionID, ev))
	}
}
