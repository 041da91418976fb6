// Package signalcond implements a small broadcast condition variable used
// to wake the recent-claims regenerator the instant the claim worker
// commits a batch, without polling. sync.Cond cannot be selected on
// alongside a shutdown notification, so this follows the same
// channel-swap-on-broadcast idiom as internal/queue's unexported condition,
// exported here for cross-package use between internal/claimworker and
// internal/regen.
package signalcond

import "sync"

// Cond is a channel-based condition variable: Wait snapshots the current
// generation's channel, which closes on the next Broadcast.
type Cond struct {
	mu sync.Mutex
	ch chan struct{}
}

// New returns a ready-to-use condition.
func New() *Cond {
	return &Cond{ch: make(chan struct{})}
}

// Wait returns a channel that closes on the next Broadcast call. Call this
// before releasing whatever state you're re-checking in a loop, to avoid
// missing a broadcast that lands between the check and the wait.
func (c *Cond) Wait() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ch
}

// Broadcast wakes every current waiter and starts a fresh generation.
func (c *Cond) Broadcast() {
	c.mu.Lock()
	defer c.mu.Unlock()
	close(c.ch)
	c.ch = make(chan struct{})
}
