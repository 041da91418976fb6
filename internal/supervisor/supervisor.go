// Package supervisor implements the main-thread loop that enforces
// admission control and hot-reloads disk-backed assets, grounded on the
// Supervisor function in original_source/net/turfwar/turfwar.c.
package supervisor

import (
	"os"
	"time"

	"turfwar/internal/asset"
	"turfwar/internal/gzipper"
	"turfwar/internal/lifecycle"

	"github.com/rs/zerolog"
)

// Interval is the supervisor's tick period, matching the original's 1000ms.
const Interval = time.Second

// LoadThreshold is the connections/workers ratio above which a meltdown
// sweep fires, matching the original's 0.85.
const LoadThreshold = 0.85

// Melter is implemented by httpserver.Server: whatever can report its
// worker count and current load, and force-cancel stuck connections.
type Melter interface {
	WorkerCount() int
	Load() float64
	Meltdown()
}

// Run polls every Interval until shutdown fires: if there is more than one
// worker and load exceeds LoadThreshold, it calls Meltdown(). A single
// worker never triggers a sweep, since cancelling the server's only
// connection-handling slot would solve nothing; matches the g_workers > 1
// guard in original_source/net/turfwar/turfwar.c. It then re-stats every
// disk-backed cell and republishes any whose mtime has advanced. It loads
// every disk-backed asset once before the first tick and decrements
// barrier afterward. A file that fails to stat, read or compress is logged
// and its cell keeps its previous (initially empty) content; the barrier is
// decremented regardless.
func Run(m Melter, assets *asset.Set, barrier *lifecycle.Barrier, shutdown *lifecycle.Notification, log zerolog.Logger) {
	ticker := time.NewTicker(Interval)
	defer ticker.Stop()

	cellMtimes := make(map[*asset.Cell]time.Time)

	for _, cell := range assets.DiskBacked() {
		reloadIfChanged(cell, cellMtimes, log)
	}
	barrier.Decrement()

	for {
		select {
		case <-ticker.C:
			if m.WorkerCount() > 1 && m.Load() > LoadThreshold {
				m.Meltdown()
			}
			for _, cell := range assets.DiskBacked() {
				reloadIfChanged(cell, cellMtimes, log)
			}
		case <-shutdown.Done():
			return
		}
	}
}

func reloadIfChanged(cell *asset.Cell, seen map[*asset.Cell]time.Time, log zerolog.Logger) {
	path := cell.Path()
	if path == "" {
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("stat failed, keeping previous asset")
		return
	}

	if !info.ModTime().After(seen[cell]) {
		return
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("read failed, keeping previous asset")
		return
	}

	gz, err := gzipper.Compress(raw)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("gzip failed, keeping previous asset")
		return
	}

	cell.Publish(raw, gz, info.ModTime(), contentTypeFor(path), 60)
	seen[cell] = info.ModTime()
}

func contentTypeFor(path string) string {
	switch {
	case hasSuffix(path, ".ico"):
		return "image/x-icon"
	default:
		return "text/html"
	}
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}
