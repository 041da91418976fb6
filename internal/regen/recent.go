package regen

import (
	"context"
	"fmt"
	"time"

	"turfwar/internal/asset"
	"turfwar/internal/gzipper"
	"turfwar/internal/lifecycle"
	"turfwar/internal/signalcond"
	"turfwar/internal/store"

	"github.com/rs/zerolog"
)

type recentDoc struct {
	Now    [2]int64        `json:"now"`
	Recent [][3]any `json:"recent"`
}

// GenerateRecent produces the JSON document for the 50 most recently
// claimed rows, newest first.
func GenerateRecent(ctx context.Context, db *store.DB, now time.Time) ([]byte, error) {
	rows, err := db.Recent(ctx)
	if err != nil {
		return nil, fmt.Errorf("regen: recent: %w", err)
	}

	doc := recentDoc{Now: [2]int64{now.Unix(), int64(now.Nanosecond())}}
	for _, r := range rows {
		doc.Recent = append(doc.Recent, [3]any{r.IP, r.Nick, r.Created})
	}
	return marshalNoEscape(doc)
}

// RunRecent regenerates and publishes the recent cell once immediately,
// then decrements barrier whether or not that first generation succeeded (a
// failed generation is logged and leaves the cell as it was). It then
// regenerates every time signal fires, until shutdown fires. The claim
// worker calls signal.Broadcast() after each committed batch; this loop
// never misses a wakeup because Wait() is called before the generation it
// corresponds to starts.
func RunRecent(ctx context.Context, db *store.DB, cell *asset.Cell, signal *signalcond.Cond, barrier *lifecycle.Barrier, shutdown *lifecycle.Notification, log zerolog.Logger) {
	tickOnce := func() bool {
		now := time.Now()
		raw, err := GenerateRecent(ctx, db, now)
		if err != nil {
			log.Error().Err(err).Msg("recent generation failed")
			return false
		}
		gz, err := gzipper.Compress(raw)
		if err != nil {
			log.Error().Err(err).Msg("recent gzip failed")
			return false
		}
		cell.Publish(raw, gz, now, "application/json", 5)
		return true
	}

	waitCh := signal.Wait()
	tickOnce()
	barrier.Decrement()

	for {
		select {
		case <-waitCh:
			waitCh = signal.Wait()
			tickOnce()
		case <-shutdown.Done():
			return
		}
	}
}
