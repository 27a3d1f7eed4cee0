package allowlist

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestNewHolderLoadsInitialState(t *testing.T) {
	path := testPath(t)
	if err := Save(path, Allowlist{BTC: Currency{AllowedAddresses: []string{"bc1qexample"}}}); err != nil {
		t.Fatal(err)
	}

	h := NewHolder(path)
	if !h.Get().HasAny() {
		t.Error("holder should load the existing file")
	}
}

func TestNewHolderMissingFile(t *testing.T) {
	h := NewHolder(testPath(t))
	if h.Get().HasAny() {
		t.Error("holder over a missing file should hold an empty allowlist")
	}
}

func TestHolderReload(t *testing.T) {
	path := testPath(t)
	h := NewHolder(path)
	if h.Get().HasAny() {
		t.Fatal("expected empty initial allowlist")
	}

	if err := Save(path, Allowlist{DGB: Currency{AllowedAddresses: []string{"Dexample"}}}); err != nil {
		t.Fatal(err)
	}
	h.Reload(context.Background())

	got := h.Get()
	if len(got.DGB.AllowedAddresses) != 1 {
		t.Errorf("dgb = %v after reload", got.DGB.AllowedAddresses)
	}
}

func TestHolderReloadCorruptGoesEmpty(t *testing.T) {
	path := testPath(t)
	if err := Save(path, Allowlist{BTC: Currency{AllowedAddresses: []string{"bc1qexample"}}}); err != nil {
		t.Fatal(err)
	}
	h := NewHolder(path)
	if !h.Get().HasAny() {
		t.Fatal("expected initial allowlist to be present")
	}

	if err := Save(path, Allowlist{}); err != nil {
		t.Fatal(err)
	}
	h.Reload(context.Background())

	if h.Get().HasAny() {
		t.Error("reload should pick up the emptied file")
	}
}

func TestHolderStopWithoutWatcher(t *testing.T) {
	h := NewHolder(testPath(t))
	// Stop on a holder that never started a watcher must not panic.
	h.Stop()
}

func TestHolderWatcherPicksUpSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "allowed-payouts.yml")
	h := NewHolder(path)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := h.StartWatcher(ctx); err != nil {
		t.Fatalf("StartWatcher failed: %v", err)
	}
	defer h.Stop()

	if err := Save(path, Allowlist{BCH: Currency{AllowedAddresses: []string{"qexample"}}}); err != nil {
		t.Fatal(err)
	}

	// The watcher debounces for 500ms before reloading.
	deadline := time.After(5 * time.Second)
	for {
		if h.Get().HasAny() {
			return
		}
		select {
		case <-deadline:
			t.Fatal("watcher did not pick up the new allowlist")
		case <-time.After(50 * time.Millisecond):
		}
	}
}
