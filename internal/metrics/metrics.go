// Package metrics backs every whitebox counter named in SPEC_FULL.md §7/§8
// with a real prometheus collector, registered in a private registry, and
// renders them into the plain-text key: value format /statusz serves.
package metrics

import (
	"fmt"
	"runtime"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// counter is an atomic int64 of record, additionally exposed to Prometheus
// scrapers via a CounterFunc collector. The atomic value is authoritative
// (cheap to read for /statusz); the collector exists so the same numbers
// are reachable from a Prometheus /metrics scrape without a second source
// of truth.
type counter struct {
	v int64
}

func (c *counter) Add(n int64)   { atomic.AddInt64(&c.v, n) }
func (c *counter) Inc()          { atomic.AddInt64(&c.v, 1) }
func (c *counter) Load() int64   { return atomic.LoadInt64(&c.v) }
func (c *counter) float() float64 { return float64(c.Load()) }

// Counters holds one counter per error/event class enumerated in
// SPEC_FULL.md §7 and §8, plus the live-connections gauge.
type Counters struct {
	reg *prometheus.Registry

	Accepts         counter
	Messages        counter
	DBFails         counter
	ParseFails      counter
	ReadFails       counter
	BadVersions     counter
	AcceptFails     counter
	SysFails        counter
	MemFails        counter
	QueueFulls      counter
	InvalidNames    counter
	NotFounds       counter
	Meltdowns       counter
	StatuszRequests counter
	Proxied         counter
	Unproxied       counter
	IPv6Forwards    counter

	connections int64 // atomic gauge: +1 on accept, -1 on close
	started     time.Time
}

// New registers all counters in a fresh private registry (never the global
// default registerer, so tests can construct many independent instances
// without colliding on metric names).
func New() *Counters {
	c := &Counters{reg: prometheus.NewRegistry(), started: time.Now()}

	for _, kv := range c.named() {
		ctr := kv.ctr
		reg := c.reg
		collector := prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "turfwar",
			Name:      kv.key + "_total",
			Help:      kv.key + " counter",
		}, ctr.float)
		reg.MustRegister(collector)
	}
	return c
}

type namedCounter struct {
	key string
	ctr *counter
}

// named enumerates every counter alongside its /statusz key, in the order
// they are rendered.
func (c *Counters) named() []namedCounter {
	return []namedCounter{
		{"accepts", &c.Accepts},
		{"messages", &c.Messages},
		{"dbfails", &c.DBFails},
		{"parsefails", &c.ParseFails},
		{"readfails", &c.ReadFails},
		{"badversions", &c.BadVersions},
		{"acceptfails", &c.AcceptFails},
		{"sysfails", &c.SysFails},
		{"memfails", &c.MemFails},
		{"queuefulls", &c.QueueFulls},
		{"invalidnames", &c.InvalidNames},
		{"notfounds", &c.NotFounds},
		{"meltdowns", &c.Meltdowns},
		{"statuszrequests", &c.StatuszRequests},
		{"proxied", &c.Proxied},
		{"unproxied", &c.Unproxied},
		{"ipv6forwards", &c.IPv6Forwards},
	}
}

// Registry exposes the private prometheus registry, for an optional
// /metrics scrape endpoint alongside the plain-text /statusz.
func (c *Counters) Registry() *prometheus.Registry {
	return c.reg
}

// AddConnections adjusts the live-connections gauge by delta.
func (c *Counters) AddConnections(delta int64) {
	atomic.AddInt64(&c.connections, delta)
}

// Connections returns the current live-connection count.
func (c *Counters) Connections() int64 {
	return atomic.LoadInt64(&c.connections)
}

// Render produces the /statusz plain-text body: qps, started, now,
// connections, workers, every named counter, then the
// getrusage(RUSAGE_SELF) fields, one "key: value" line each.
func Render(c *Counters, workers int, now time.Time) string {
	var b strings.Builder
	uptime := now.Sub(c.started).Seconds()
	qps := 0.0
	if uptime > 0 {
		qps = c.Messages.float() / uptime
	}

	fmt.Fprintf(&b, "qps: %.2f\n", qps)
	fmt.Fprintf(&b, "started: %d\n", c.started.Unix())
	fmt.Fprintf(&b, "now: %d\n", now.Unix())
	fmt.Fprintf(&b, "connections: %d\n", c.Connections())
	fmt.Fprintf(&b, "workers: %d\n", workers)

	for _, kv := range c.named() {
		fmt.Fprintf(&b, "%s: %d\n", kv.key, kv.ctr.Load())
	}

	renderRusage(&b)
	return b.String()
}

func renderRusage(b *strings.Builder) {
	var ru syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &ru); err != nil {
		return
	}
	fmt.Fprintf(b, "rusage.utime: %d.%06d\n", ru.Utime.Sec, ru.Utime.Usec)
	fmt.Fprintf(b, "rusage.stime: %d.%06d\n", ru.Stime.Sec, ru.Stime.Usec)
	fmt.Fprintf(b, "rusage.maxrss: %d\n", ru.Maxrss)
	fmt.Fprintf(b, "rusage.minflt: %d\n", ru.Minflt)
	fmt.Fprintf(b, "rusage.majflt: %d\n", ru.Majflt)
	fmt.Fprintf(b, "rusage.inblock: %d\n", ru.Inblock)
	fmt.Fprintf(b, "rusage.oublock: %d\n", ru.Oublock)
	fmt.Fprintf(b, "rusage.nvcsw: %d\n", ru.Nvcsw)
	fmt.Fprintf(b, "rusage.nivcsw: %d\n", ru.Nivcsw)
	fmt.Fprintf(b, "goroutines: %d\n", runtime.NumGoroutine())
}
