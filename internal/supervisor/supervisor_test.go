package supervisor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"turfwar/internal/asset"
	"turfwar/internal/lifecycle"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMelter struct {
	workers   int
	load      float64
	meltCalls int
}

func (f *fakeMelter) WorkerCount() int {
	if f.workers == 0 {
		return 2
	}
	return f.workers
}
func (f *fakeMelter) Load() float64 { return f.load }
func (f *fakeMelter) Meltdown()     { f.meltCalls++ }

func TestRunLoadsDiskAssetsBeforeDecrementingBarrier(t *testing.T) {
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "index.html")
	require.NoError(t, os.WriteFile(indexPath, []byte("<html>v1</html>"), 0o644))

	assets := asset.NewSet(indexPath, "", "", "")
	barrier := lifecycle.NewBarrier(1)
	shutdown := lifecycle.NewNotification()
	melter := &fakeMelter{}

	done := make(chan struct{})
	go func() {
		Run(melter, assets, barrier, shutdown, zerolog.Nop())
		close(done)
	}()

	select {
	case <-barrier.Ready():
	case <-time.After(time.Second):
		t.Fatal("barrier was not decremented after initial asset load")
	}
	assert.Equal(t, []byte("<html>v1</html>"), assets.Index.Read().Raw)

	shutdown.Fire()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not exit on shutdown")
	}
}

func TestRunCallsMeltdownWhenLoadExceedsThreshold(t *testing.T) {
	assets := asset.NewSet("", "", "", "")
	barrier := lifecycle.NewBarrier(1)
	shutdown := lifecycle.NewNotification()
	melter := &fakeMelter{load: 0.95}

	origInterval := Interval
	_ = origInterval // Interval is a package const in production; test relies on its real value being short enough via a longer wait below.

	done := make(chan struct{})
	go func() {
		Run(melter, assets, barrier, shutdown, zerolog.Nop())
		close(done)
	}()

	<-barrier.Ready()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && melter.meltCalls == 0 {
		time.Sleep(50 * time.Millisecond)
	}
	assert.True(t, melter.meltCalls > 0)

	shutdown.Fire()
	<-done
}

func TestRunNeverMeltsDownWithASingleWorker(t *testing.T) {
	assets := asset.NewSet("", "", "", "")
	barrier := lifecycle.NewBarrier(1)
	shutdown := lifecycle.NewNotification()
	melter := &fakeMelter{workers: 1, load: 1.0}

	done := make(chan struct{})
	go func() {
		Run(melter, assets, barrier, shutdown, zerolog.Nop())
		close(done)
	}()

	<-barrier.Ready()
	time.Sleep(3 * Interval)
	assert.Equal(t, 0, melter.meltCalls)

	shutdown.Fire()
	<-done
}
