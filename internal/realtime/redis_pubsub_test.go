package realtime

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisClient(t *testing.T, mr *miniredis.Miniredis) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func collect(t *testing.T, ps *RedisPubSub) (<-chan string, func()) {
	t.Helper()
	got := make(chan string, 8)
	cancel, err := ps.Subscribe(func(event string, payload []byte) {
		got <- event + " " + string(payload)
	})
	require.NoError(t, err)
	t.Cleanup(cancel)
	return got, cancel
}

func TestRedisPubSub_RelaysToOtherInstancesOnly(t *testing.T) {
	mr := miniredis.RunT(t)
	a := NewRedisPubSub(newRedisClient(t, mr), "site_ads_v1", nil)
	b := NewRedisPubSub(newRedisClient(t, mr), "site_ads_v1", nil)
	gotA, _ := collect(t, a)
	gotB, _ := collect(t, b)

	require.NoError(t, a.Publish("ads_changed", []byte(`[{"id":"ad_1"}]`)))

	select {
	case m := <-gotB:
		assert.Equal(t, `ads_changed [{"id":"ad_1"}]`, m)
	case <-time.After(2 * time.Second):
		t.Fatal("instance b did not receive the event")
	}
	select {
	case m := <-gotA:
		t.Fatalf("instance a received its own event: %s", m)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRedisPubSub_SkipsMalformedMessages(t *testing.T) {
	mr := miniredis.RunT(t)
	a := NewRedisPubSub(newRedisClient(t, mr), "site_ads_v1", nil)
	b := NewRedisPubSub(newRedisClient(t, mr), "site_ads_v1", nil)
	gotB, _ := collect(t, b)

	mr.Publish(channelPrefix+"site_ads_v1", "not json")
	require.NoError(t, a.Publish("ad_changed", []byte(`{"id":"ad_2"}`)))

	select {
	case m := <-gotB:
		assert.Equal(t, `ad_changed {"id":"ad_2"}`, m)
	case <-time.After(2 * time.Second):
		t.Fatal("valid event after a malformed one was not delivered")
	}
}

func TestRedisPubSub_KeysDoNotCross(t *testing.T) {
	mr := miniredis.RunT(t)
	a := NewRedisPubSub(newRedisClient(t, mr), "site_ads_v1", nil)
	b := NewRedisPubSub(newRedisClient(t, mr), "other_ads", nil)
	gotB, _ := collect(t, b)

	require.NoError(t, a.Publish("ads_changed", []byte(`[]`)))
	select {
	case m := <-gotB:
		t.Fatalf("event crossed to another key: %s", m)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRedisPubSub_CancelEndsSubscription(t *testing.T) {
	mr := miniredis.RunT(t)
	channel := channelPrefix + "site_ads_v1"
	b := NewRedisPubSub(newRedisClient(t, mr), "site_ads_v1", nil)
	_, cancel := collect(t, b)
	require.Equal(t, 1, mr.PubSubNumSub(channel)[channel])

	cancel()
	require.Eventually(t, func() bool {
		return mr.PubSubNumSub(channel)[channel] == 0
	}, 2*time.Second, 10*time.Millisecond)
}
