package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishReachesSubscribers(t *testing.T) {
	hub := NewHub()
	topic := ApplicationTopic("driver-1")

	first := hub.Subscribe(topic)
	second := hub.Subscribe(topic)
	other := hub.Subscribe(ApplicationTopic("driver-2"))
	defer first.Close()
	defer second.Close()
	defer other.Close()

	hub.Publish(topic, KindApplication, map[string]string{"id": "driver-1"})

	for _, sub := range []*Subscription{first, second} {
		select {
		case event := <-sub.C:
			assert.Equal(t, topic, event.Topic)
			assert.Equal(t, KindApplication, event.Kind)
		case <-time.After(time.Second):
			t.Fatal("subscriber never received the event")
		}
	}

	select {
	case event := <-other.C:
		t.Fatalf("unrelated topic received %+v", event)
	default:
	}
}

func TestHub_CloseStopsDelivery(t *testing.T) {
	hub := NewHub()
	topic := ApplicationTopic("driver-1")

	sub := hub.Subscribe(topic)
	require.Equal(t, 1, hub.Subscribers(topic))

	sub.Close()
	assert.Equal(t, 0, hub.Subscribers(topic))

	// Publishing after teardown must not panic or deliver.
	hub.Publish(topic, KindMessage, "late")

	_, open := <-sub.C
	assert.False(t, open)

	// Close is idempotent.
	sub.Close()
}

func TestHub_SlowSubscriberDropsOldest(t *testing.T) {
	hub := NewHub()
	topic := ApplicationTopic("driver-1")

	sub := hub.Subscribe(topic)
	defer sub.Close()

	// Overrun the buffer without draining.
	for i := 0; i < 50; i++ {
		hub.Publish(topic, KindUnread, i)
	}

	var last any
	for {
		select {
		case event := <-sub.C:
			last = event.Payload
			continue
		default:
		}
		break
	}

	// The newest event survives the overflow.
	assert.Equal(t, 49, last)
}
