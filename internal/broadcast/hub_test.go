package broadcast

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub *Subscription) any {
	t.Helper()
	select {
	case msg, ok := <-sub.C():
		require.True(t, ok, "subscription closed")
		return msg
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for message on %s", sub.Topic())
		return nil
	}
}

func TestPublishFanOutPerTopic(t *testing.T) {
	t.Parallel()

	hub := NewHub(4)
	a1 := hub.Subscribe("alpha")
	a2 := hub.Subscribe("alpha")
	b := hub.Subscribe("beta")

	hub.Publish("alpha", "hello")

	assert.Equal(t, "hello", receive(t, a1))
	assert.Equal(t, "hello", receive(t, a2))
	select {
	case msg := <-b.C():
		t.Fatalf("beta subscriber received %v", msg)
	default:
	}
}

func TestPublishPreservesOrder(t *testing.T) {
	t.Parallel()

	hub := NewHub(16)
	sub := hub.Subscribe("alpha")
	for i := 0; i < 10; i++ {
		hub.Publish("alpha", i)
	}
	for i := 0; i < 10; i++ {
		assert.Equal(t, i, receive(t, sub))
	}
}

func TestSlowSubscriberDropsOldest(t *testing.T) {
	t.Parallel()

	hub := NewHub(2)
	sub := hub.Subscribe("alpha")
	for i := 1; i <= 5; i++ {
		hub.Publish("alpha", i)
	}

	assert.Equal(t, 4, receive(t, sub))
	assert.Equal(t, 5, receive(t, sub))
	assert.Equal(t, uint64(3), sub.Dropped())
}

func TestUnsubscribeClosesAndCollectsTopic(t *testing.T) {
	t.Parallel()

	hub := NewHub(1)
	sub := hub.Subscribe("alpha")
	require.Equal(t, 1, hub.Subscribers("alpha"))

	hub.Unsubscribe(sub)
	hub.Unsubscribe(sub)

	_, ok := <-sub.C()
	assert.False(t, ok)
	assert.Equal(t, 0, hub.Subscribers("alpha"))
	assert.Equal(t, 0, hub.Topics())

	hub.Publish("alpha", "after close")
}

func TestConcurrentPublishAndUnsubscribe(t *testing.T) {
	t.Parallel()

	hub := NewHub(8)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub := hub.Subscribe("alpha")
			for j := 0; j < 50; j++ {
				hub.Publish("alpha", j)
			}
			hub.Unsubscribe(sub)
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, hub.Topics())
}
