// Package asset implements the asset cell: a versioned, lock-protected pair
// of (raw, gzip) bytes plus HTTP metadata, atomically swappable by a
// regenerator and read by HTTP workers under a shared lock.
package asset

import (
	"net/http"
	"sync"
	"time"
)

// Snapshot is an immutable view of a cell's content at the instant it was
// taken. Because Publish always installs freshly allocated Raw/Gzip slices
// rather than mutating the previous ones in place, a Snapshot remains valid
// to read after the cell's lock has been released (SPEC_FULL.md §4.2 Open
// Question: this implementation releases the lock before the body write).
type Snapshot struct {
	Raw          []byte
	Gzip         []byte
	Mtime        time.Time
	LastModified string
	ContentType  string
	MaxAge       int
}

// Cell is a single named asset: index.html, the all-time score JSON, and so
// on. Readers take a shared lock; Publish takes an exclusive lock.
type Cell struct {
	mu   sync.RWMutex
	data Snapshot
	path string // non-empty for disk-backed assets reloaded by the supervisor
}

// NewCell returns an empty cell. path is the backing file for disk-backed
// assets (index/about/user/favicon); it is empty for dynamically generated
// assets (score/recent).
func NewCell(path string) *Cell {
	return &Cell{path: path}
}

// Path returns the backing file path, or "" for a dynamically generated cell.
func (c *Cell) Path() string {
	return c.path
}

// Read returns a shared-locked snapshot of the cell's current content. The
// returned Snapshot's slices must not be mutated by the caller.
func (c *Cell) Read() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data
}

// Publish installs a fully-formed new generation, replacing raw, gzip,
// mtime, last_modified, content_type and max-age together. Publish is
// always called with a complete new snapshot; partial updates are
// disallowed so readers never observe a torn generation.
func (c *Cell) Publish(raw, gzip []byte, mtime time.Time, contentType string, maxAge int) {
	next := Snapshot{
		Raw:          raw,
		Gzip:         gzip,
		Mtime:        mtime,
		LastModified: mtime.UTC().Format(http.TimeFormat),
		ContentType:  contentType,
		MaxAge:       maxAge,
	}
	c.mu.Lock()
	c.data = next
	c.mu.Unlock()
}

// Set is the fixed record of named cells the server serves.
type Set struct {
	Index      *Cell
	About      *Cell
	User       *Cell
	Favicon    *Cell
	Score      *Cell
	ScoreHour  *Cell
	ScoreDay   *Cell
	ScoreWeek  *Cell
	ScoreMonth *Cell
	Recent     *Cell
}

// NewSet constructs the ten named cells. Disk-backed assets take their
// source path; dynamically generated ones take "".
func NewSet(indexPath, aboutPath, userPath, faviconPath string) *Set {
	return &Set{
		Index:      NewCell(indexPath),
		About:      NewCell(aboutPath),
		User:       NewCell(userPath),
		Favicon:    NewCell(faviconPath),
		Score:      NewCell(""),
		ScoreHour:  NewCell(""),
		ScoreDay:   NewCell(""),
		ScoreWeek:  NewCell(""),
		ScoreMonth: NewCell(""),
		Recent:     NewCell(""),
	}
}

// DiskBacked returns the four disk-backed cells (each reports its file via
// Path), for the supervisor's mtime-polling reload loop.
func (s *Set) DiskBacked() []*Cell {
	return []*Cell{s.Index, s.About, s.User, s.Favicon}
}
