package realtime

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func receive(t *testing.T, sub *Subscription) *Event {
	t.Helper()
	select {
	case e, ok := <-sub.Events():
		require.True(t, ok, "subscription closed")
		return e
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
	return nil
}

func assertNoEvent(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case e := <-sub.Events():
		t.Fatalf("unexpected event %+v", e)
	default:
	}
}

func TestPublishRoutesByCollection(t *testing.T) {
	bus := NewBus(4, zaptest.NewLogger(t).Sugar())
	defer bus.Close()

	posts := bus.Subscribe("posts")
	users := bus.Subscribe("users")
	all := bus.Subscribe("")

	bus.Publish(NewEvent(RecordCreated, "posts", "r1", map[string]string{"id": "r1"}))

	e := receive(t, posts)
	assert.Equal(t, RecordCreated, e.Type)
	assert.Equal(t, "r1", e.RecordID)
	assert.Same(t, e, receive(t, all))
	assertNoEvent(t, users)
}

func TestPublishKeepsOrderPerSubscriber(t *testing.T) {
	bus := NewBus(16, nil)
	defer bus.Close()

	sub := bus.Subscribe("posts")
	for _, id := range []string{"a", "b", "c"} {
		bus.Publish(NewEvent(RecordUpdated, "posts", id, nil))
	}

	for _, id := range []string{"a", "b", "c"} {
		assert.Equal(t, id, receive(t, sub).RecordID)
	}
}

func TestFullSubscriberIsDropped(t *testing.T) {
	bus := NewBus(1, nil)
	defer bus.Close()

	slow := bus.Subscribe("posts")
	fast := bus.Subscribe("posts")

	bus.Publish(NewEvent(RecordCreated, "posts", "1", nil))
	assert.Equal(t, "1", receive(t, fast).RecordID)

	// slow never drained, so the second event overflows its queue
	bus.Publish(NewEvent(RecordCreated, "posts", "2", nil))
	assert.Equal(t, "2", receive(t, fast).RecordID)
	assert.Equal(t, 1, bus.SubscriberCount("posts"))

	assert.Equal(t, "1", receive(t, slow).RecordID)
	_, ok := <-slow.Events()
	assert.False(t, ok)
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	bus := NewBus(4, nil)
	defer bus.Close()

	sub := bus.Subscribe("posts")
	assert.Equal(t, 1, bus.SubscriberCount("posts"))

	bus.Unsubscribe(sub)
	bus.Unsubscribe(sub)
	bus.Unsubscribe(nil)
	assert.Equal(t, 0, bus.SubscriberCount("posts"))

	_, ok := <-sub.Events()
	assert.False(t, ok)
}

func TestCloseEndsSubscriptions(t *testing.T) {
	bus := NewBus(4, nil)
	a := bus.Subscribe("posts")
	b := bus.Subscribe("")

	bus.Close()
	bus.Close()

	_, ok := <-a.Events()
	assert.False(t, ok)
	_, ok = <-b.Events()
	assert.False(t, ok)

	// publishing and subscribing after close are harmless
	bus.Publish(NewEvent(RecordDeleted, "posts", "x", nil))
	late := bus.Subscribe("posts")
	_, ok = <-late.Events()
	assert.False(t, ok)
}

func TestConcurrentPublishSubscribe(t *testing.T) {
	bus := NewBus(256, nil)
	defer bus.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			sub := bus.Subscribe("posts")
			bus.Unsubscribe(sub)
		}()
		go func() {
			defer wg.Done()
			bus.Publish(NewEvent(RecordCreated, "posts", "x", nil))
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, bus.SubscriberCount("posts"))
}
