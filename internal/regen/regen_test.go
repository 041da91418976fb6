package regen

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"turfwar/internal/asset"
	"turfwar/internal/lifecycle"
	"turfwar/internal/signalcond"
	"turfwar/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db.sqlite3")
	raw, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = raw.Exec(`CREATE TABLE land (ip INTEGER PRIMARY KEY, nick TEXT, created INTEGER NULL)`)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := store.Open(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestGenerateScoreSkipsInvalidNicknames(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, db.CommitBatch(ctx, []store.Claim{
		{IP: 0x01000001, Nick: "alice", Created: 100},
		// "bob$" cannot be committed through the normal /claim path (it
		// would fail validate.IsValidNick there), but a row with a bad
		// nick can still exist from legacy data; the regenerator must
		// skip it rather than publish it.
		{IP: 0x01000002, Nick: "bob$", Created: 100},
	}))

	raw, err := GenerateScore(ctx, db, ScoreWindow{Name: "score", Seconds: -1}, time.Now())
	require.NoError(t, err)

	var doc scoreDoc
	require.NoError(t, json.Unmarshal(raw, &doc))
	_, hasAlice := doc.Score["alice"]
	_, hasBob := doc.Score["bob$"]
	require.True(t, hasAlice)
	require.False(t, hasBob)
}

func TestRunScoreWindowDecrementsBarrierAfterFirstGeneration(t *testing.T) {
	db := newTestStore(t)
	cell := asset.NewCell("")
	barrier := lifecycle.NewBarrier(1)
	shutdown := lifecycle.NewNotification()
	log := zerolog.Nop()

	done := make(chan struct{})
	go func() {
		RunScoreWindow(context.Background(), db, cell, ScoreWindow{Name: "score", Seconds: -1, Interval: 50 * time.Millisecond}, barrier, shutdown, log)
		close(done)
	}()

	select {
	case <-barrier.Ready():
	case <-time.After(time.Second):
		t.Fatal("barrier was not decremented after first generation")
	}
	require.NotNil(t, cell.Read().Raw)

	shutdown.Fire()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunScoreWindow did not exit on shutdown")
	}
}

func TestRunRecentRegeneratesOnSignalAndExitsOnShutdown(t *testing.T) {
	db := newTestStore(t)
	cell := asset.NewCell("")
	barrier := lifecycle.NewBarrier(1)
	shutdown := lifecycle.NewNotification()
	signal := signalcond.New()
	log := zerolog.Nop()

	done := make(chan struct{})
	go func() {
		RunRecent(context.Background(), db, cell, signal, barrier, shutdown, log)
		close(done)
	}()

	<-barrier.Ready()
	first := cell.Read().Mtime

	require.NoError(t, db.CommitBatch(context.Background(), []store.Claim{{IP: 9, Nick: "zed", Created: 1}}))
	signal.Broadcast()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cell.Read().Mtime.After(first) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.True(t, cell.Read().Mtime.After(first))

	shutdown.Fire()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunRecent did not exit on shutdown")
	}
}
