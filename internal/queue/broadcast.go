package queue

import "sync"

// broadcastCond is a channel-based condition variable: it supports waiting
// on a snapshot of "has anyone broadcast since I last checked" alongside a
// deadline and a separate cancellation channel, which sync.Cond cannot do.
// Callers snapshot wait() while still holding the queue mutex, release the
// mutex, then select on the returned channel.
type broadcastCond struct {
	mu sync.Mutex
	ch chan struct{}
}

func newBroadcastCond() *broadcastCond {
	return &broadcastCond{ch: make(chan struct{})}
}

// wait returns the current generation's channel. It closes when the next
// broadcast fires.
func (b *broadcastCond) wait() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ch
}

// broadcast wakes every current waiter and starts a fresh generation.
func (b *broadcastCond) broadcast() {
	b.mu.Lock()
	defer b.mu.Unlock()
	close(b.ch)
	b.ch = make(chan struct{})
}
