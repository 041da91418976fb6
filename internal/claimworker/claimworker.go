// Package claimworker implements the single consumer that drains the claim
// queue into the store in batched transactions, grounded on
// ClaimWorker/AddClaim in original_source/net/turfwar/turfwar.c.
package claimworker

import (
	"context"
	"time"

	"turfwar/internal/lifecycle"
	"turfwar/internal/metrics"
	"turfwar/internal/queue"
	"turfwar/internal/signalcond"
	"turfwar/internal/store"

	"github.com/rs/zerolog"
)

// BatchSize is the maximum number of claims drained per store transaction,
// matching the original's 64-claim batch.
const BatchSize = 64

// Run drains q in batches of up to BatchSize, committing each batch in one
// transaction and signalling recentSignal after every non-empty commit.
// DequeueBatch blocks with no deadline, cancelled only by terminate (fired
// by cmd/turfwar once every producer goroutine has exited); this loop exits once a
// drain under termination returns zero, matching SPEC_FULL.md §4.7/§8
// shutdown-completeness property.
//
// On a store error, the batch's claims are not retried: the worker counts
// the failure and continues with the next batch, matching the original's
// "finalize, reopen, continue" recovery policy applied at the statement
// level rather than reopening the whole handle (this Go store already
// manages its own connection pool).
func Run(ctx context.Context, db *store.DB, q *queue.ClaimQueue, terminate *lifecycle.Notification, recentSignal *signalcond.Cond, counters *metrics.Counters, log zerolog.Logger) {
	out := make([]store.Claim, BatchSize)
	qClaims := make([]queue.Claim, BatchSize)

	for {
		n := q.DequeueBatch(qClaims, terminate.Done())
		if n == 0 {
			if terminate.Fired() {
				log.Info().Msg("claim worker draining complete, exiting")
				return
			}
			continue
		}

		for i := 0; i < n; i++ {
			out[i] = store.Claim{IP: qClaims[i].IP, Nick: qClaims[i].Nick, Created: qClaims[i].Created}
		}

		if err := db.CommitBatch(ctx, out[:n]); err != nil {
			counters.DBFails.Inc()
			log.Error().Err(err).Int("batch_size", n).Msg("claim batch commit failed")
			continue
		}

		recentSignal.Broadcast()
	}
}

// RunWithBackoffOpen opens db at path with the WAL-mode retry Open already
// implements, then calls Run. Kept separate from Run so tests can supply an
// already-open *store.DB directly.
func RunWithBackoffOpen(ctx context.Context, path string, q *queue.ClaimQueue, terminate *lifecycle.Notification, recentSignal *signalcond.Cond, counters *metrics.Counters, log zerolog.Logger) error {
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	db, err := store.Open(openCtx, path)
	if err != nil {
		return err
	}
	defer db.Close()
	Run(ctx, db, q, terminate, recentSignal, counters, log)
	return nil
}
