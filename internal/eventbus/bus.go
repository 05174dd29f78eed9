// Package eventbus implements spec.md §4.6's per-task fan-out: every
// subscriber gets an independent bounded queue, publish never blocks the
// mutation path, and a full queue drops the message rather than stalling
// the publisher. Grounded on internal/sse/hub.go's subscriptions map /
// buffered Outbound channel / non-blocking Broadcast.
package eventbus

import (
	"sync"

	"github.com/google/uuid"
	"github.com/riverglen/coursecraft/internal/domain"
	"github.com/riverglen/coursecraft/internal/logger"
)

const subscriberBufferSize = 16

// Subscription is a single client's bounded inbox for one task's events.
type Subscription struct {
	ID     uuid.UUID
	TaskID string
	Events chan domain.Event
}

type Bus struct {
	log *logger.Logger

	mu   sync.RWMutex
	subs map[string]map[uuid.UUID]*Subscription
}

func New(log *logger.Logger) *Bus {
	return &Bus{
		log:  log,
		subs: make(map[string]map[uuid.UUID]*Subscription),
	}
}

// Subscribe registers a new bounded inbox for taskID. The caller must call
// Unsubscribe when done; events delivered before Subscribe returns are not
// replayed (spec.md §4.6: "subscribers are fed only future events").
func (b *Bus) Subscribe(taskID string) *Subscription {
	sub := &Subscription{
		ID:     uuid.New(),
		TaskID: taskID,
		Events: make(chan domain.Event, subscriberBufferSize),
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[taskID] == nil {
		b.subs[taskID] = make(map[uuid.UUID]*Subscription)
	}
	b.subs[taskID][sub.ID] = sub
	return sub
}

// Unsubscribe unlinks sub's queue; its channel is closed so a reader range
// loop terminates cleanly.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if clients, ok := b.subs[sub.TaskID]; ok {
		if _, ok := clients[sub.ID]; ok {
			delete(clients, sub.ID)
			close(sub.Events)
		}
		if len(clients) == 0 {
			delete(b.subs, sub.TaskID)
		}
	}
}

// Publish fans event out to every current subscriber of event.TaskID,
// dropping on a full queue rather than blocking. It never returns an error
// to the mutation path: the event log (internal/eventlog) is the
// authoritative record regardless of delivery (spec.md §4.6).
func (b *Bus) Publish(event domain.Event) {
	b.mu.RLock()
	clients := b.subs[event.TaskID]
	b.mu.RUnlock()

	if len(clients) == 0 {
		return
	}
	for _, sub := range clients {
		select {
		case sub.Events <- event:
		default:
			if b.log != nil {
				b.log.Warn("dropping event; subscriber buffer full", "task_id", event.TaskID, "subscriber_id", sub.ID.String())
			}
		}
	}
}
