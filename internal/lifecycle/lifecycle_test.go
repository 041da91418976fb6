package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func waitUntil(d time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestNotificationFireIsIdempotent(t *testing.T) {
	n := NewNotification()
	assert.False(t, n.Fired())
	n.Fire()
	n.Fire()
	assert.True(t, n.Fired())
	select {
	case <-n.Done():
	default:
		t.Fatal("Done() should be closed after Fire")
	}
}

func TestNotificationBroadcastsToAllWaiters(t *testing.T) {
	n := NewNotification()
	const waiters = 16
	seen := make(chan struct{}, waiters)
	for i := 0; i < waiters; i++ {
		go func() {
			<-n.Done()
			seen <- struct{}{}
		}()
	}
	n.Fire()
	for i := 0; i < waiters; i++ {
		select {
		case <-seen:
		case <-time.After(time.Second):
			t.Fatal("waiter did not observe the fire")
		}
	}
}

func TestBarrierZeroIsImmediatelyReady(t *testing.T) {
	b := NewBarrier(0)
	select {
	case <-b.Ready():
	default:
		t.Fatal("barrier with n=0 should start ready")
	}
}

func TestBarrierOpensAfterAllDecrements(t *testing.T) {
	b := NewBarrier(3)
	select {
	case <-b.Ready():
		t.Fatal("barrier should not be ready yet")
	default:
	}
	b.Decrement()
	b.Decrement()
	select {
	case <-b.Ready():
		t.Fatal("barrier should not be ready before all decrements")
	default:
	}
	b.Decrement()
	assert.True(t, waitUntil(100*time.Millisecond, func() bool {
		select {
		case <-b.Ready():
			return true
		default:
			return false
		}
	}))
}

func TestBarrierExtraDecrementsAreNoops(t *testing.T) {
	b := NewBarrier(1)
	b.Decrement()
	b.Decrement()
	b.Decrement()
	select {
	case <-b.Ready():
	default:
		t.Fatal("barrier should be ready")
	}
}
