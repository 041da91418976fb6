package nowcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewIsImmediatelyPopulated(t *testing.T) {
	c := New()
	assert.NotEmpty(t, c.Date())
	assert.True(t, c.Unix() > 0)
}

func TestRunRefreshesUntilShutdown(t *testing.T) {
	c := New()
	first := c.Date()
	shutdown := make(chan struct{})
	done := make(chan struct{})
	go func() {
		c.Run(shutdown)
		close(done)
	}()

	// wait for the formatted Date to move forward by at least one second.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.Unix() > 0 && c.Date() != first {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	assert.NotEqual(t, first, c.Date())

	close(shutdown)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not exit on shutdown")
	}
}
