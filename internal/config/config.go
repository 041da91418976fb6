// Package config layers the server's configuration: built-in defaults, an
// optional turfwar.toml in the working directory, then CLI flags (highest
// precedence), matching the original's CLI-only contract (spec.md §6)
// extended with the file layer SPEC_FULL.md §7 adds.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the fully-resolved set of knobs the server needs at startup.
type Config struct {
	Daemonize    bool
	Verbose      bool
	Port         int
	Workers      int
	KeepAlive    time.Duration
	WorkDir      string
	QueueCap     int
	BatchSize    int
	ExtraProxies []string

	ScoreWindows []ScoreWindow
}

// ScoreWindow names one of the five periodic score regenerators.
type ScoreWindow struct {
	Name     string
	Seconds  int64 // <=0 means all-time
	Interval time.Duration
}

func defaultScoreWindows() []ScoreWindow {
	return []ScoreWindow{
		{Name: "score", Seconds: -1, Interval: 90 * time.Second},
		{Name: "score_hour", Seconds: 3600, Interval: 10 * time.Second},
		{Name: "score_day", Seconds: 86400, Interval: 15 * time.Second},
		{Name: "score_week", Seconds: 7 * 86400, Interval: 30 * time.Second},
		{Name: "score_month", Seconds: 30 * 86400, Interval: 60 * time.Second},
	}
}

// Default returns the built-in defaults, matching the original's constants.
func Default() Config {
	return Config{
		Port:         8080,
		Workers:      4,
		KeepAlive:    5 * time.Second,
		WorkDir:      "/opt/turfwar",
		QueueCap:     800,
		BatchSize:    64,
		ScoreWindows: defaultScoreWindows(),
	}
}

// fileOverrides is the subset of Config that turfwar.toml may override.
// Extra trusted-proxy CIDRs and the five score-window intervals are new
// surface beyond the original CLI-only contract; see SPEC_FULL.md §7.
type fileOverrides struct {
	Port         *int     `toml:"port"`
	Workers      *int     `toml:"workers"`
	KeepAliveMs  *int     `toml:"keepalive_ms"`
	WorkDir      *string  `toml:"workdir"`
	QueueCap     *int     `toml:"queue_capacity"`
	BatchSize    *int     `toml:"claim_batch_size"`
	ExtraProxies []string `toml:"extra_trusted_proxies"`

	ScoreWindows map[string]struct {
		Seconds     *int64 `toml:"window_seconds"`
		IntervalSec *int   `toml:"interval_seconds"`
	} `toml:"score_windows"`
}

// loadFile applies turfwar.toml in dir onto cfg, if present. A missing file
// is not an error; a malformed one is.
func loadFile(dir string, cfg *Config) error {
	path := dir + "/turfwar.toml"
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: stat %s: %w", path, err)
	}

	var f fileOverrides
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	if f.Port != nil {
		cfg.Port = *f.Port
	}
	if f.Workers != nil {
		cfg.Workers = *f.Workers
	}
	if f.KeepAliveMs != nil {
		cfg.KeepAlive = time.Duration(*f.KeepAliveMs) * time.Millisecond
	}
	if f.WorkDir != nil {
		cfg.WorkDir = *f.WorkDir
	}
	if f.QueueCap != nil {
		cfg.QueueCap = *f.QueueCap
	}
	if f.BatchSize != nil {
		cfg.BatchSize = *f.BatchSize
	}
	cfg.ExtraProxies = append(cfg.ExtraProxies, f.ExtraProxies...)

	for name, w := range f.ScoreWindows {
		for i := range cfg.ScoreWindows {
			if cfg.ScoreWindows[i].Name != name {
				continue
			}
			if w.Seconds != nil {
				cfg.ScoreWindows[i].Seconds = *w.Seconds
			}
			if w.IntervalSec != nil {
				cfg.ScoreWindows[i].Interval = time.Duration(*w.IntervalSec) * time.Second
			}
		}
	}
	return nil
}

// Parse resolves configuration from defaults, an optional turfwar.toml in
// the default WorkDir, then CLI flags, in that ascending precedence order.
// args should be os.Args[1:].
func Parse(args []string) (Config, error) {
	cfg := Default()

	// The config file lives in the working directory; we probe the default
	// location before flags are parsed since -p/-w/-k may override it.
	if err := loadFile(cfg.WorkDir, &cfg); err != nil {
		return Config{}, err
	}

	fs := flag.NewFlagSet("turfwar", flag.ContinueOnError)
	daemonize := fs.Bool("d", false, "daemonize")
	verbose := fs.Bool("v", false, "raise log verbosity")
	port := fs.Int("p", cfg.Port, "listening port")
	workers := fs.Int("w", cfg.Workers, "HTTP worker count")
	keepaliveMs := fs.Int("k", int(cfg.KeepAlive/time.Millisecond), "keepalive timeout, milliseconds")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg.Daemonize = *daemonize
	cfg.Verbose = *verbose
	cfg.Port = *port
	cfg.Workers = *workers
	cfg.KeepAlive = time.Duration(*keepaliveMs) * time.Millisecond

	if cfg.Workers < 1 {
		return Config{}, fmt.Errorf("config: -w must be >= 1, got %d", cfg.Workers)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("config: -p must be a valid port, got %d", cfg.Port)
	}
	return cfg, nil
}
