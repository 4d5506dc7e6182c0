package bus

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeAndPublish(t *testing.T) {
	b := NewEventBus()

	received := make(chan Event, 1)
	b.Subscribe(EventTypeMessageAppended, func(e Event) {
		received <- e
	})

	b.Publish(Event{
		Type: EventTypeMessageAppended,
		Data: map[string]any{"role": "user"},
	})

	select {
	case e := <-received:
		assert.Equal(t, EventTypeMessageAppended, e.Type)
		assert.Equal(t, "user", e.Data["role"])
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked")
	}
}

func TestPublishOnlyMatchingType(t *testing.T) {
	b := NewEventBus()

	var count atomic.Int32
	b.Subscribe(EventTypeVoiceError, func(Event) {
		count.Add(1)
	})

	b.PublishSync(Event{Type: EventTypeVoiceStateChanged})
	b.PublishSync(Event{Type: EventTypeVoiceError})

	assert.Equal(t, int32(1), count.Load())
}

func TestSubscribeMultiple(t *testing.T) {
	b := NewEventBus()

	var mu sync.Mutex
	seen := make(map[EventType]int)
	b.SubscribeMultiple([]EventType{EventTypeDispatchStarted, EventTypeDispatchCompleted}, func(e Event) {
		mu.Lock()
		seen[e.Type]++
		mu.Unlock()
	})

	b.PublishSync(Event{Type: EventTypeDispatchStarted})
	b.PublishSync(Event{Type: EventTypeDispatchCompleted})
	b.PublishSync(Event{Type: EventTypeDispatchFailed})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, seen[EventTypeDispatchStarted])
	assert.Equal(t, 1, seen[EventTypeDispatchCompleted])
	assert.Equal(t, 0, seen[EventTypeDispatchFailed])
}

func TestPublishSyncWaitsForHandlers(t *testing.T) {
	b := NewEventBus()

	var done atomic.Bool
	b.Subscribe(EventTypeSessionReset, func(Event) {
		time.Sleep(50 * time.Millisecond)
		done.Store(true)
	})

	b.PublishSync(Event{Type: EventTypeSessionReset})
	require.True(t, done.Load())
}

func TestClear(t *testing.T) {
	b := NewEventBus()

	var count atomic.Int32
	b.Subscribe(EventTypeNameSet, func(Event) {
		count.Add(1)
	})

	b.Clear()
	b.PublishSync(Event{Type: EventTypeNameSet})

	assert.Equal(t, int32(0), count.Load())
}
