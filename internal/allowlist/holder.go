package allowlist

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/wiktac/node-agent/internal/log"
)

// Holder keeps an in-memory view of the allowlist file and refreshes it when
// the file changes on disk. The agent loop reads the file directly on every
// tick; the holder exists so that operator edits show up in logs and metrics
// immediately instead of on the next tick.
type Holder struct {
	mu      sync.RWMutex
	current Allowlist
	path    string
	watcher *fsnotify.Watcher
	logger  zerolog.Logger
}

// NewHolder loads the allowlist at path and returns a holder for it.
func NewHolder(path string) *Holder {
	h := &Holder{
		path:   path,
		logger: log.WithComponent("allowlist"),
	}
	h.current = Load(path)
	observeAllowlist(h.current)
	return h
}

// Get returns the current allowlist (thread-safe read).
func (h *Holder) Get() Allowlist {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Path returns the location of the backing file.
func (h *Holder) Path() string {
	return h.path
}

// Reload re-reads the allowlist from disk and swaps it in. Load never fails,
// so a corrupt file swaps in an empty allowlist, the same view the agent
// loop would get.
func (h *Holder) Reload(_ context.Context) {
	next := Load(h.path)

	h.mu.Lock()
	old := h.current
	h.current = next
	h.mu.Unlock()

	h.logChanges(old, next)
	observeAllowlist(next)
	h.logger.Info().
		Str("event", "allowlist.reloaded").
		Bool("present", next.HasAny()).
		Msg("allowlist reloaded")
}

// StartWatcher starts watching the allowlist file for changes. The data
// directory is watched rather than the file itself: saves replace the file
// by rename, and the file may not exist yet.
func (h *Holder) StartWatcher(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	h.watcher = watcher

	dir := filepath.Dir(h.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("create data dir: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch data dir: %w", err)
	}

	h.logger.Info().
		Str("event", "allowlist.watcher_started").
		Str("path", h.path).
		Msg("watching allowlist file for changes")

	go h.watchLoop(ctx)

	return nil
}

// watchLoop is the main file watcher loop.
func (h *Holder) watchLoop(ctx context.Context) {
	// Debounce timer to avoid multiple reloads for rapid file changes
	var debounceTimer *time.Timer
	debounceDuration := 500 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Str("event", "allowlist.watcher_stopped").Msg("allowlist watcher stopped")
			if h.watcher != nil {
				_ = h.watcher.Close()
			}
			return

		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(h.path) {
				continue
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				h.logger.Debug().
					Str("event", "allowlist.file_changed").
					Str("op", event.Op.String()).
					Msg("allowlist file changed")

				// Debounce: reset timer on each event
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDuration, func() {
					h.Reload(ctx)
				})
			}

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().
				Err(err).
				Str("event", "allowlist.watcher_error").
				Msg("allowlist watcher error")
		}
	}
}

// Stop stops the allowlist watcher (if running).
func (h *Holder) Stop() {
	if h.watcher != nil {
		_ = h.watcher.Close()
	}
}

// logChanges logs per-currency address count changes between reloads.
func (h *Holder) logChanges(old, next Allowlist) {
	oldCounts := old.Counts()
	newCounts := next.Counts()
	for _, currency := range []string{"btc", "bch", "dgb"} {
		if oldCounts[currency] != newCounts[currency] {
			h.logger.Info().
				Str("currency", currency).
				Int("old", oldCounts[currency]).
				Int("new", newCounts[currency]).
				Msg("allowlist changed")
		}
	}
}
