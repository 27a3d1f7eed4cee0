package agent

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/wiktac/node-agent/internal/allowlist"
	"github.com/wiktac/node-agent/internal/dockerproxy"
	"github.com/wiktac/node-agent/internal/state"
)

// Container IDs from the mock server's default inventory.
const (
	btcID        = "1f2a9c0d4e5b"
	dgbID        = "3c4d7e2f8a9b"
	miningcoreID = "4d5e6f3a9b0c"
)

type testEnv struct {
	srv           *dockerproxy.MockServer
	store         *state.Store
	allowlistPath string
}

func newTestWatchdog(t *testing.T, armed, failsafe bool) (*Watchdog, *testEnv) {
	t.Helper()

	srv := dockerproxy.NewMockServer()
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	env := &testEnv{
		srv:           srv,
		store:         state.NewStore(filepath.Join(dir, "state.json")),
		allowlistPath: filepath.Join(dir, "allowed-payouts.yml"),
	}

	w := New(Options{
		Proxy:              dockerproxy.New(srv.URL(), dockerproxy.Options{Timeout: 2 * time.Second}),
		Store:              env.store,
		AllowlistPath:      env.allowlistPath,
		Interval:           time.Second,
		Armed:              armed,
		FailsafeStopMining: failsafe,
	})
	return w, env
}

func TestTickSnapshotsIntel(t *testing.T) {
	w, env := newTestWatchdog(t, false, true)

	w.runOnce(context.Background())

	doc := env.store.Load()
	if len(doc.Intel.Containers) != 5 {
		t.Fatalf("containers = %d, want 5", len(doc.Intel.Containers))
	}
	if len(doc.Intel.Roles) != 4 {
		t.Fatalf("roles = %d, want 4", len(doc.Intel.Roles))
	}
	btc := doc.Intel.Roles["btc"]
	if btc.ID == nil || *btc.ID != btcID {
		t.Errorf("btc role id = %v, want %s", btc.ID, btcID)
	}
	if btc.Name == nil || *btc.Name != "/btc-node" {
		t.Errorf("btc role name = %v, want /btc-node", btc.Name)
	}
	if doc.LastRun == nil {
		t.Error("last_run should be set after a successful tick")
	}
	if len(doc.Actions) != 0 || len(doc.Alerts) != 0 {
		t.Errorf("healthy tick should not log actions or alerts: %+v %+v", doc.Actions, doc.Alerts)
	}
}

func TestTickAbsentRolesAreNull(t *testing.T) {
	w, env := newTestWatchdog(t, false, true)
	env.srv.SetContainers([]dockerproxy.Container{
		{ID: "aa11", Names: []string{"/traefik"}, Image: "traefik:v3.1", State: "running", Status: "Up 1 day"},
	})

	w.runOnce(context.Background())

	doc := env.store.Load()
	if len(doc.Intel.Roles) != 4 {
		t.Fatalf("roles = %d, want 4 entries even when nothing matches", len(doc.Intel.Roles))
	}
	for role, info := range doc.Intel.Roles {
		if info.ID != nil || info.Name != nil {
			t.Errorf("role %s should have null fields, got %+v", role, info)
		}
	}
}

func TestTickDisarmedDoesNotRestart(t *testing.T) {
	w, env := newTestWatchdog(t, false, true)
	env.srv.SetContainerState("/btc-node", "exited", "Exited (1) 2 minutes ago")

	w.runOnce(context.Background())

	if calls := env.srv.RestartCalls(); len(calls) != 0 {
		t.Errorf("disarmed watchdog restarted containers: %v", calls)
	}
	doc := env.store.Load()
	if len(doc.Actions) != 0 {
		t.Errorf("actions = %+v, want none", doc.Actions)
	}
	if doc.LastRun == nil {
		t.Error("observing without acting is still a successful tick")
	}
}

func TestTickArmedRestartsCrashed(t *testing.T) {
	w, env := newTestWatchdog(t, true, true)
	env.srv.SetContainerState("/btc-node", "exited", "Exited (1) 2 minutes ago")

	w.runOnce(context.Background())

	calls := env.srv.RestartCalls()
	if len(calls) != 1 || calls[0] != btcID {
		t.Fatalf("restart calls = %v, want [%s]", calls, btcID)
	}
	doc := env.store.Load()
	if len(doc.Actions) != 1 {
		t.Fatalf("actions = %d, want 1", len(doc.Actions))
	}
	action := doc.Actions[0]
	if action.Kind != state.ActionRestart {
		t.Errorf("kind = %q", action.Kind)
	}
	if action.Details["role"] != "btc" || action.Details["id"] != btcID {
		t.Errorf("details = %v", action.Details)
	}
	if doc.LastRun == nil {
		t.Error("last_run should be set")
	}
}

func TestTickRestartOrder(t *testing.T) {
	w, env := newTestWatchdog(t, true, true)
	if err := allowlist.Save(env.allowlistPath, allowlist.Allowlist{
		BTC: allowlist.Currency{AllowedAddresses: []string{"bc1qexample"}},
	}); err != nil {
		t.Fatal(err)
	}
	env.srv.SetContainerState("/miningcore", "exited", "Exited (137) 1 minute ago")
	env.srv.SetContainerState("/dgb-node", "dead", "Dead")
	env.srv.SetContainerState("/btc-node", "exited", "Exited (1) 2 minutes ago")

	w.runOnce(context.Background())

	want := []string{btcID, dgbID, miningcoreID}
	got := env.srv.RestartCalls()
	if len(got) != len(want) {
		t.Fatalf("restart calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("restart order = %v, want %v", got, want)
		}
	}
}

func TestTickFailsafeBlocksMiningcore(t *testing.T) {
	w, env := newTestWatchdog(t, true, true)
	env.srv.SetContainerState("/miningcore", "exited", "Exited (137) 1 minute ago")

	w.runOnce(context.Background())

	if calls := env.srv.RestartCalls(); len(calls) != 0 {
		t.Fatalf("failsafe should block the restart, got calls %v", calls)
	}
	doc := env.store.Load()
	if len(doc.Alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(doc.Alerts))
	}
	alert := doc.Alerts[0]
	if alert.Level != state.LevelCritical {
		t.Errorf("level = %q, want critical", alert.Level)
	}
	if alert.Msg != "MiningCore present but allowlist not set. Failsafe posture active." {
		t.Errorf("msg = %q", alert.Msg)
	}
	if alert.Meta["role"] != "miningcore" {
		t.Errorf("meta = %v", alert.Meta)
	}
	// The failsafe is a policy decision, not a failure.
	if doc.LastRun == nil {
		t.Error("last_run should still advance")
	}
}

func TestTickFailsafeDisabled(t *testing.T) {
	w, env := newTestWatchdog(t, true, false)
	env.srv.SetContainerState("/miningcore", "exited", "Exited (137) 1 minute ago")

	w.runOnce(context.Background())

	calls := env.srv.RestartCalls()
	if len(calls) != 1 || calls[0] != miningcoreID {
		t.Errorf("restart calls = %v, want [%s]", calls, miningcoreID)
	}
}

func TestTickAllowlistReleasesFailsafe(t *testing.T) {
	w, env := newTestWatchdog(t, true, true)
	if err := allowlist.Save(env.allowlistPath, allowlist.Allowlist{
		DGB: allowlist.Currency{AllowedAddresses: []string{"Dexample"}},
	}); err != nil {
		t.Fatal(err)
	}
	env.srv.SetContainerState("/miningcore", "exited", "Exited (137) 1 minute ago")

	w.runOnce(context.Background())

	calls := env.srv.RestartCalls()
	if len(calls) != 1 || calls[0] != miningcoreID {
		t.Fatalf("restart calls = %v, want [%s]", calls, miningcoreID)
	}
	if doc := env.store.Load(); len(doc.Alerts) != 0 {
		t.Errorf("alerts = %+v, want none", doc.Alerts)
	}
}

func TestTickListFailure(t *testing.T) {
	w, env := newTestWatchdog(t, true, true)

	// Seed intel with a successful tick, then fail the next listing.
	w.runOnce(context.Background())
	first := env.store.Load()
	if first.LastRun == nil {
		t.Fatal("seed tick should succeed")
	}

	env.srv.SetFailures("list", 1)
	w.runOnce(context.Background())

	doc := env.store.Load()
	if len(doc.Alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(doc.Alerts))
	}
	alert := doc.Alerts[0]
	if alert.Level != state.LevelError || alert.Msg != "Agent tick failed." {
		t.Errorf("alert = %+v", alert)
	}
	if alert.Meta["error"] == nil || alert.Meta["error"] == "" {
		t.Errorf("meta = %v, want error detail", alert.Meta)
	}
	// Intel from the previous tick is preserved, last_run does not advance.
	if len(doc.Intel.Containers) != 5 {
		t.Errorf("containers = %d, want preserved snapshot of 5", len(doc.Intel.Containers))
	}
	if doc.LastRun == nil || *doc.LastRun != *first.LastRun {
		t.Errorf("last_run = %v, want unchanged %v", doc.LastRun, first.LastRun)
	}
}

func TestTickFirstListFailureLeavesLastRunNull(t *testing.T) {
	w, env := newTestWatchdog(t, false, true)
	env.srv.SetFailures("list", 1)

	w.runOnce(context.Background())

	doc := env.store.Load()
	if doc.LastRun != nil {
		t.Errorf("last_run = %v, want null", doc.LastRun)
	}
	if len(doc.Intel.Containers) != 0 {
		t.Errorf("intel should stay empty, got %d containers", len(doc.Intel.Containers))
	}
}

func TestTickRestartFailureAbortsRemaining(t *testing.T) {
	w, env := newTestWatchdog(t, true, true)
	env.srv.SetContainerState("/btc-node", "exited", "Exited (1) 2 minutes ago")
	env.srv.SetContainerState("/dgb-node", "exited", "Exited (1) 1 minute ago")
	env.srv.SetRestartStatus(btcID, 500)

	w.runOnce(context.Background())

	if calls := env.srv.RestartCalls(); len(calls) != 0 {
		t.Errorf("no restart should succeed, got %v", calls)
	}
	doc := env.store.Load()
	if len(doc.Actions) != 0 {
		t.Errorf("actions = %+v, want none", doc.Actions)
	}
	if len(doc.Alerts) != 1 || doc.Alerts[0].Msg != "Agent tick failed." {
		t.Errorf("alerts = %+v", doc.Alerts)
	}
	if doc.LastRun != nil {
		t.Errorf("last_run = %v, want null", doc.LastRun)
	}
}

func TestTickPartialProgressKept(t *testing.T) {
	w, env := newTestWatchdog(t, true, true)
	env.srv.SetContainerState("/btc-node", "exited", "Exited (1) 2 minutes ago")
	env.srv.SetContainerState("/dgb-node", "exited", "Exited (1) 1 minute ago")
	env.srv.SetRestartStatus(dgbID, 500)

	w.runOnce(context.Background())

	calls := env.srv.RestartCalls()
	if len(calls) != 1 || calls[0] != btcID {
		t.Fatalf("restart calls = %v, want [%s]", calls, btcID)
	}
	doc := env.store.Load()
	// The successful btc restart is recorded even though the tick failed on dgb.
	if len(doc.Actions) != 1 || doc.Actions[0].Details["role"] != "btc" {
		t.Errorf("actions = %+v, want the btc restart", doc.Actions)
	}
	if len(doc.Alerts) != 1 {
		t.Errorf("alerts = %+v, want the tick failure", doc.Alerts)
	}
	if doc.LastRun != nil {
		t.Errorf("last_run = %v, want null", doc.LastRun)
	}
	if len(doc.Intel.Containers) != 5 {
		t.Errorf("intel snapshot should be kept, got %d containers", len(doc.Intel.Containers))
	}
}

func TestTickRunningMiningcoreIgnoresFailsafe(t *testing.T) {
	w, env := newTestWatchdog(t, true, true)

	w.runOnce(context.Background())

	// A healthy miningcore with no allowlist raises nothing.
	if doc := env.store.Load(); len(doc.Alerts) != 0 {
		t.Errorf("alerts = %+v, want none", doc.Alerts)
	}
}
