// bus.go
//
// A schema-driven collections and records service for jam-build
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of jam-build-recordsdb.
// jam-build-recordsdb is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// jam-build-recordsdb is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with jam-build-recordsdb.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package realtime

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// DefaultBuffer is the queue depth of a subscriber when none is configured
const DefaultBuffer = 64

// Subscription is one subscriber's private, ordered event queue.
// The queue is closed when the subscriber is removed from the bus.
type Subscription struct {
	id         uint64
	collection string
	ch         chan *Event
	once       sync.Once
}

// Events returns the subscriber's delivery channel
func (s *Subscription) Events() <-chan *Event {
	return s.ch
}

// Collection returns the subscribed collection name, empty for all collections
func (s *Subscription) Collection() string {
	return s.collection
}

func (s *Subscription) close() {
	s.once.Do(func() {
		close(s.ch)
	})
}

// subscriberSet is the registry for one collection name, or the wildcard.
// Sends and closes happen under mu, so a queue is never written after close.
type subscriberSet struct {
	mu   sync.Mutex
	subs map[uint64]*Subscription
}

func newSubscriberSet() *subscriberSet {
	return &subscriberSet{subs: make(map[uint64]*Subscription)}
}

// Bus is the in-process event broadcaster. It is created once at start-up
// and closed at shutdown. Each collection name has its own registry lock,
// so traffic for unrelated collections never contends.
type Bus struct {
	buffer int
	log    *zap.SugaredLogger

	mu       sync.RWMutex
	sets     map[string]*subscriberSet
	wildcard *subscriberSet

	nextID atomic.Uint64
	closed atomic.Bool
}

// NewBus creates a Bus whose subscriber queues hold buffer events
func NewBus(buffer int, log *zap.SugaredLogger) *Bus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Bus{
		buffer:   buffer,
		log:      log,
		sets:     make(map[string]*subscriberSet),
		wildcard: newSubscriberSet(),
	}
}

// set returns the registry for a collection name, creating it when asked.
// Registries are never removed, so a set obtained here stays valid.
func (b *Bus) set(collection string, create bool) *subscriberSet {
	if collection == "" {
		return b.wildcard
	}

	b.mu.RLock()
	set, ok := b.sets[collection]
	b.mu.RUnlock()
	if ok || !create {
		return set
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if set, ok = b.sets[collection]; !ok {
		set = newSubscriberSet()
		b.sets[collection] = set
	}
	return set
}

// Subscribe registers a subscriber for one collection, or for every
// collection when collection is empty. After Close the returned
// subscription is already closed.
func (b *Bus) Subscribe(collection string) *Subscription {
	sub := &Subscription{
		id:         b.nextID.Add(1),
		collection: collection,
		ch:         make(chan *Event, b.buffer),
	}

	set := b.set(collection, true)
	set.mu.Lock()
	defer set.mu.Unlock()

	if b.closed.Load() {
		sub.close()
		return sub
	}

	set.subs[sub.id] = sub
	subscribersGauge.WithLabelValues(scopeLabel(collection)).Inc()
	b.log.Debugw("realtime subscribe", "collection", collection, "id", sub.id)
	return sub
}

// Unsubscribe removes a subscriber and closes its queue. Repeated calls are no-ops.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	set := b.set(sub.collection, false)
	if set == nil {
		sub.close()
		return
	}

	set.mu.Lock()
	defer set.mu.Unlock()
	b.remove(set, sub)
}

// remove must be called with set.mu held
func (b *Bus) remove(set *subscriberSet, sub *Subscription) {
	if _, ok := set.subs[sub.id]; ok {
		delete(set.subs, sub.id)
		subscribersGauge.WithLabelValues(scopeLabel(sub.collection)).Dec()
	}
	sub.close()
}

// Publish delivers an event to the subscribers of its collection and to
// every wildcard subscriber. It never blocks: a subscriber whose queue is
// full is removed and its queue closed.
func (b *Bus) Publish(e *Event) {
	if e == nil || b.closed.Load() {
		return
	}

	eventsPublished.WithLabelValues(e.Type).Inc()

	if e.Collection != "" {
		if set := b.set(e.Collection, false); set != nil {
			b.deliver(set, e)
		}
	}
	b.deliver(b.wildcard, e)
}

func (b *Bus) deliver(set *subscriberSet, e *Event) {
	set.mu.Lock()
	defer set.mu.Unlock()

	for _, sub := range set.subs {
		select {
		case sub.ch <- e:
			eventsDelivered.Inc()
		default:
			b.log.Warnw("realtime subscriber dropped, queue full",
				"collection", sub.collection, "id", sub.id, "event", e.Type)
			subscribersDropped.Inc()
			b.remove(set, sub)
		}
	}
}

// SubscriberCount returns the number of subscribers registered for a
// collection name, or the wildcard subscribers when collection is empty.
func (b *Bus) SubscriberCount(collection string) int {
	set := b.set(collection, false)
	if set == nil {
		return 0
	}
	set.mu.Lock()
	defer set.mu.Unlock()
	return len(set.subs)
}

// Close removes every subscriber and closes their queues. Publishing after
// Close is a no-op.
func (b *Bus) Close() {
	if b.closed.Swap(true) {
		return
	}

	b.mu.RLock()
	sets := make([]*subscriberSet, 0, len(b.sets)+1)
	for _, set := range b.sets {
		sets = append(sets, set)
	}
	b.mu.RUnlock()
	sets = append(sets, b.wildcard)

	count := 0
	for _, set := range sets {
		set.mu.Lock()
		for _, sub := range set.subs {
			b.remove(set, sub)
			count++
		}
		set.mu.Unlock()
	}

	b.log.Infow("realtime bus closed", "subscribers", count)
}
