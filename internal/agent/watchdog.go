// Package agent runs the watchdog loop: inspect the node's containers
// through the docker proxy, record what was seen, and restart crashed role
// containers when armed.
package agent

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/wiktac/node-agent/internal/config"
	"github.com/wiktac/node-agent/internal/dockerproxy"
	"github.com/wiktac/node-agent/internal/log"
	"github.com/wiktac/node-agent/internal/state"
)

const (
	// startupDelay gives the proxy and sibling containers a moment to come
	// up before the first inspection.
	startupDelay = 2 * time.Second

	// minTickTimeout bounds a tick even when the interval is short.
	minTickTimeout = 30 * time.Second
)

// Options configures a Watchdog.
type Options struct {
	Proxy              *dockerproxy.Client
	Store              *state.Store
	AllowlistPath      string
	Interval           time.Duration
	Armed              bool
	FailsafeStopMining bool
}

// Watchdog manages the periodic inspection loop.
type Watchdog struct {
	proxy              *dockerproxy.Client
	store              *state.Store
	allowlistPath      string
	interval           time.Duration
	armed              bool
	failsafeStopMining bool
	logger             zerolog.Logger

	busy        atomic.Bool
	lastTick    atomic.Int64
	lastSuccess atomic.Int64
}

// New creates a watchdog. A zero interval falls back to the default tick
// interval.
func New(opts Options) *Watchdog {
	interval := opts.Interval
	if interval <= 0 {
		interval = config.DefaultTickInterval
	}
	return &Watchdog{
		proxy:              opts.Proxy,
		store:              opts.Store,
		allowlistPath:      opts.AllowlistPath,
		interval:           interval,
		armed:              opts.Armed,
		failsafeStopMining: opts.FailsafeStopMining,
		logger:             log.WithComponent("agent"),
	}
}

// Start begins the watchdog loop. It blocks until the context is canceled.
func (w *Watchdog) Start(ctx context.Context) {
	if w.armed {
		armedGauge.Set(1)
	} else {
		armedGauge.Set(0)
	}
	w.logger.Info().
		Str("event", "agent.started").
		Bool("armed", w.armed).
		Bool("failsafe_stop_mining", w.failsafeStopMining).
		Dur("interval", w.interval).
		Msg("watchdog started")

	select {
	case <-ctx.Done():
		return
	case <-time.After(startupDelay):
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Initial run directly
	w.tryTick(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Str("event", "agent.stopped").Msg("watchdog stopped")
			return
		case <-ticker.C:
			// tryTick is protected by the busy flag, so a tick that
			// outlives the interval makes later fires no-ops instead of
			// piling up.
			w.tryTick(ctx)
		}
	}
}

// tryTick runs one tick unless a previous tick is still in flight.
func (w *Watchdog) tryTick(ctx context.Context) {
	if !w.busy.CompareAndSwap(false, true) {
		return
	}
	defer w.busy.Store(false)

	w.runOnce(ctx)
}

// tickTimeout bounds one tick. Short intervals still get the full minimum
// so a slow proxy does not starve the tick.
func (w *Watchdog) tickTimeout() time.Duration {
	if w.interval > minTickTimeout {
		return w.interval
	}
	return minTickTimeout
}

// Interval returns the configured tick interval.
func (w *Watchdog) Interval() time.Duration {
	return w.interval
}

// Armed reports whether the watchdog restarts crashed containers.
func (w *Watchdog) Armed() bool {
	return w.armed
}

// LastTick returns when the last tick completed, successful or not. The zero
// time means no tick has completed yet.
func (w *Watchdog) LastTick() time.Time {
	ts := w.lastTick.Load()
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0)
}

// LastSuccess returns when the last fully successful tick completed. The
// zero time means there has been none yet.
func (w *Watchdog) LastSuccess() time.Time {
	ts := w.lastSuccess.Load()
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0)
}
