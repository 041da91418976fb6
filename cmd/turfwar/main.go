// Command turfwar runs the claim-queue/worker-pool/asset-pipeline engine
// described in SPEC_FULL.md. Grounded on main() in
// original_source/net/turfwar/turfwar.c and on the teacher's
// cmd/server/main.go wiring shape (flags/env, signal handling, a single
// blocking ListenAndServe-equivalent call).
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"turfwar/internal/asset"
	"turfwar/internal/claimworker"
	"turfwar/internal/config"
	"turfwar/internal/httpserver"
	"turfwar/internal/lifecycle"
	"turfwar/internal/logging"
	"turfwar/internal/metrics"
	"turfwar/internal/nowcache"
	"turfwar/internal/queue"
	"turfwar/internal/regen"
	"turfwar/internal/signalcond"
	"turfwar/internal/store"
	"turfwar/internal/supervisor"
	"turfwar/internal/trust"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const usageExitCode = 64

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "turfwar:", err)
		os.Exit(usageExitCode)
	}

	log := logging.Default(cfg.Verbose)

	if cfg.Daemonize {
		log.Warn().Msg("daemonization (-d) is delegated to the process supervisor in this build; running in the foreground")
	}

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("fatal startup error")
	}
}

func run(cfg config.Config, log zerolog.Logger) error {
	ctx := context.Background()

	trustClassifier, err := trust.New(cfg.ExtraProxies)
	if err != nil {
		return fmt.Errorf("trust setup: %w", err)
	}

	assets := asset.NewSet(
		filepath.Join(cfg.WorkDir, "index.html"),
		filepath.Join(cfg.WorkDir, "about.html"),
		filepath.Join(cfg.WorkDir, "user.html"),
		filepath.Join(cfg.WorkDir, "favicon.ico"),
	)

	q := queue.New(cfg.QueueCap)
	counters := metrics.New()
	now := nowcache.New()

	shutdown := lifecycle.NewNotification()
	terminate := lifecycle.NewNotification()

	// Barrier: one per score window + recent + supervisor's disk-asset load.
	barrier := lifecycle.NewBarrier(len(cfg.ScoreWindows) + 1 + 1)

	dbPath := filepath.Join(cfg.WorkDir, "db.sqlite3")
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	db, err := store.Open(openCtx, dbPath)
	cancel()
	if err != nil {
		return fmt.Errorf("store open: %w", err)
	}
	defer db.Close()

	ln, err := httpserver.Listen(ctx, cfg.Port)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	srv := httpserver.New(assets, q, counters, trustClassifier, now, shutdown, cfg.KeepAlive, cfg.Workers, log)

	recentSignal := signalcond.New()

	// producers is every goroutine that stops observing Shutdown and exits
	// on its own once it fires: the now cache, the regenerators, the
	// supervisor, and the HTTP workers. The claim worker is deliberately
	// NOT a member: per SPEC_FULL.md §5, Terminate must only fire after
	// every producer above has actually exited, the same sequencing as
	// original_source/net/turfwar/turfwar.c's pthread_join of every HTTP
	// and periodic worker before nsync_note_notify(g_terminate).
	var producers errgroup.Group

	producers.Go(func() error { now.Run(shutdown.Done()); return nil })

	for _, w := range cfg.ScoreWindows {
		w := w
		cell := scoreCellFor(assets, w.Name)
		producers.Go(func() error {
			regen.RunScoreWindow(ctx, db, cell, regen.ScoreWindow{Name: w.Name, Seconds: w.Seconds, Interval: w.Interval}, barrier, shutdown, log)
			return nil
		})
	}

	producers.Go(func() error {
		regen.RunRecent(ctx, db, assets.Recent, recentSignal, barrier, shutdown, log)
		return nil
	})

	producers.Go(func() error {
		supervisor.Run(srv, assets, barrier, shutdown, log)
		return nil
	})

	claimWorkerDone := make(chan struct{})
	go func() {
		claimworker.Run(ctx, db, q, terminate, recentSignal, counters, log)
		close(claimWorkerDone)
	}()

	handleSignals(shutdown, ln, srv, log)

	waitForBarrierThenLog(barrier, log)

	for i := 0; i < cfg.Workers; i++ {
		i := i
		producers.Go(func() error {
			srv.RunWorker(i, ln)
			return nil
		})
	}

	if err := producers.Wait(); err != nil {
		return err
	}
	log.Info().Msg("all producers exited, releasing claim worker to drain")
	terminate.Fire()
	<-claimWorkerDone
	return nil
}

func scoreCellFor(assets *asset.Set, name string) *asset.Cell {
	switch name {
	case "score":
		return assets.Score
	case "score_hour":
		return assets.ScoreHour
	case "score_day":
		return assets.ScoreDay
	case "score_week":
		return assets.ScoreWeek
	case "score_month":
		return assets.ScoreMonth
	default:
		return assets.Score
	}
}

func waitForBarrierThenLog(barrier *lifecycle.Barrier, log zerolog.Logger) {
	<-barrier.Ready()
	log.Info().Msg("startup barrier opened, accepting connections")
}

// handleSignals waits for SIGINT/SIGTERM/SIGHUP in the background: the
// first fires Shutdown (halting producers) and closes the shared listener,
// unblocking every HTTP worker's Accept(). It does NOT fire Terminate
// itself; run() does that only once every producer goroutine (including
// those HTTP workers) has actually returned, per SPEC_FULL.md §5. A second
// signal received before that sequence completes additionally
// force-cancels every still-connected worker, the double-Ctrl-C escalation.
func handleSignals(shutdown *lifecycle.Notification, ln net.Listener, srv *httpserver.Server, log zerolog.Logger) {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	go func() {
		<-sigCh
		log.Info().Msg("shutdown requested")
		shutdown.Fire()
		_ = ln.Close()

		select {
		case <-sigCh:
			log.Warn().Msg("second shutdown signal received, force-cancelling connected workers")
			srv.CancelAllConnected()
		case <-time.After(30 * time.Second):
		}
	}()
}
