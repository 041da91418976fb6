// Package regen implements the periodic asset regenerators: the five
// score-window workers (collapsed into one table-driven loop per
// SPEC_FULL.md §9) and the event-driven recent regenerator. Grounded on
// GenerateScore/ScoreWorker/RecentWorker in
// original_source/net/turfwar/turfwar.c.
package regen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"turfwar/internal/asset"
	"turfwar/internal/gzipper"
	"turfwar/internal/lifecycle"
	"turfwar/internal/store"
	"turfwar/internal/validate"

	"github.com/rs/zerolog"
)

// ScoreWindow names one leaderboard window regenerated by RunScoreWindow.
type ScoreWindow struct {
	Name     string
	Seconds  int64 // <=0 means all-time
	Interval time.Duration
}

type scoreDoc struct {
	Now   [2]int64             `json:"now"`
	Score map[string][][2]int64 `json:"score"`
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	out := buf.Bytes()
	return bytes.TrimRight(out, "\n"), nil
}

// GenerateScore runs the store's aggregate query for the window and
// produces the JSON document's bytes, skipping any row whose nick fails
// the nickname rule per SPEC_FULL.md §4.5.
func GenerateScore(ctx context.Context, db *store.DB, w ScoreWindow, now time.Time) ([]byte, error) {
	rows, err := db.Score(ctx, w.Seconds, now.Unix())
	if err != nil {
		return nil, fmt.Errorf("regen: score %s: %w", w.Name, err)
	}

	doc := scoreDoc{
		Now:   [2]int64{now.Unix(), int64(now.Nanosecond())},
		Score: make(map[string][][2]int64),
	}
	for _, r := range rows {
		if !validate.IsValidNick(r.Nick) {
			continue
		}
		doc.Score[r.Nick] = append(doc.Score[r.Nick], [2]int64{int64(r.Octet), r.Count})
	}
	return marshalNoEscape(doc)
}

// RunScoreWindow regenerates and publishes w.Name's cell once immediately,
// then decrements barrier whether or not that first generation succeeded (a
// failed generation is logged and leaves the cell as it was, empty until a
// later tick succeeds). It then regenerates on every w.Interval tick, until
// shutdown fires.
func RunScoreWindow(ctx context.Context, db *store.DB, cell *asset.Cell, w ScoreWindow, barrier *lifecycle.Barrier, shutdown *lifecycle.Notification, log zerolog.Logger) {
	tickOnce := func() {
		now := time.Now()
		raw, err := GenerateScore(ctx, db, w, now)
		if err != nil {
			log.Error().Err(err).Str("window", w.Name).Msg("score generation failed")
			return
		}
		gz, err := gzipper.Compress(raw)
		if err != nil {
			log.Error().Err(err).Str("window", w.Name).Msg("gzip failed")
			return
		}
		cell.Publish(raw, gz, now, "application/json", int(w.Interval/time.Second))
	}

	tickOnce()
	barrier.Decrement()

	deadline := time.Now().Add(w.Interval)
	for {
		timer := time.NewTimer(time.Until(deadline))
		select {
		case <-timer.C:
			tickOnce()
			deadline = deadline.Add(w.Interval)
			now := time.Now()
			if deadline.Before(now) {
				// Coalesce on oversleep rather than firing a burst of
				// already-late ticks.
				deadline = now.Add(w.Interval)
			}
		case <-shutdown.Done():
			timer.Stop()
			return
		}
	}
}
