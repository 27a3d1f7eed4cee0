package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wiktac/node-agent/internal/allowlist"
	"github.com/wiktac/node-agent/internal/config"
	"github.com/wiktac/node-agent/internal/health"
	"github.com/wiktac/node-agent/internal/state"
)

type testServer struct {
	server  *Server
	router  http.Handler
	store   *state.Store
	payouts *allowlist.Holder
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	dataDir := t.TempDir()
	cfg := config.Config{
		DataDir: dataDir,
	}

	store := state.NewStore(filepath.Join(dataDir, config.StateFilename))
	payouts := allowlist.NewHolder(filepath.Join(dataDir, config.AllowlistFilename))
	healthMgr := health.NewManager("v0.0.0-test")

	server := New(cfg, store, payouts, healthMgr, "v0.0.0-test")
	return &testServer{
		server:  server,
		router:  server.Router(),
		store:   store,
		payouts: payouts,
	}
}

func (ts *testServer) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func TestIndexServesLandingPage(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("expected text/html content type, got %s", ct)
	}

	body := w.Body.String()
	if !strings.Contains(body, "<h1 style='font-family:system-ui'>WIKTAC Node Agent v0.0.0-test</h1>") {
		t.Errorf("unexpected landing heading: %s", body)
	}
	if !strings.Contains(body, "<a href='/api/state'>/api/state</a>") {
		t.Errorf("expected state link on landing page: %s", body)
	}
}

func TestIndexCarriesSecurityHeaders(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/", "")

	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("expected nosniff, got %q", got)
	}
	csp := w.Header().Get("Content-Security-Policy")
	if !strings.Contains(csp, "'unsafe-inline'") {
		t.Errorf("landing page needs inline styles allowed, got CSP %q", csp)
	}
}

func TestStateFreshDocument(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/state", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %s", ct)
	}

	body := w.Body.String()
	for _, want := range []string{`"last_run":null`, `"containers":[]`, `"roles":{}`, `"actions":[]`, `"alerts":[]`} {
		if !strings.Contains(body, want) {
			t.Errorf("fresh state missing %s: %s", want, body)
		}
	}
}

func TestStateReflectsPersistedDocument(t *testing.T) {
	ts := newTestServer(t)

	err := ts.store.Mutate(func(doc *state.Document) {
		doc.AppendAction(state.ActionRestart, map[string]any{"role": "btc", "id": "abc123"})
		doc.SetLastRun(1700000000)
	})
	if err != nil {
		t.Fatalf("seed state: %v", err)
	}

	w := ts.do(t, http.MethodGet, "/api/state", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var doc state.Document
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if doc.LastRun == nil || *doc.LastRun != 1700000000 {
		t.Errorf("expected last_run 1700000000, got %v", doc.LastRun)
	}
	if len(doc.Actions) != 1 || doc.Actions[0].Kind != state.ActionRestart {
		t.Errorf("expected one restart action, got %+v", doc.Actions)
	}
}

func TestAllowlistGetEmpty(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/allowlist", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	body := w.Body.String()
	for _, want := range []string{`"btc":{"allowed_addresses":[]}`, `"bch":{"allowed_addresses":[]}`, `"dgb":{"allowed_addresses":[]}`} {
		if !strings.Contains(body, want) {
			t.Errorf("empty allowlist missing %s: %s", want, body)
		}
	}
}

func TestAllowlistPostPersistsAndRecordsAction(t *testing.T) {
	ts := newTestServer(t)

	payload := `{
		"btc": {"allowed_addresses": ["bc1qexample"]},
		"dgb": {"allowed_addresses": ["DExample1", "DExample2"]}
	}`
	w := ts.do(t, http.MethodPost, "/api/allowlist", payload)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if body := strings.TrimSpace(w.Body.String()); body != `{"ok":true}` {
		t.Errorf("expected ok body, got %s", body)
	}

	// Persisted to disk
	stored := allowlist.Load(ts.payouts.Path())
	if len(stored.BTC.AllowedAddresses) != 1 || stored.BTC.AllowedAddresses[0] != "bc1qexample" {
		t.Errorf("btc addresses not persisted: %+v", stored.BTC)
	}
	if len(stored.DGB.AllowedAddresses) != 2 {
		t.Errorf("dgb addresses not persisted: %+v", stored.DGB)
	}

	// Holder sees the update without waiting for the watcher
	if !ts.payouts.Get().HasAny() {
		t.Error("holder not reloaded after update")
	}

	// Action recorded with per-currency counts
	doc := ts.store.Load()
	if len(doc.Actions) != 1 {
		t.Fatalf("expected one action, got %d", len(doc.Actions))
	}
	action := doc.Actions[0]
	if action.Kind != state.ActionAllowlistSet {
		t.Errorf("expected allowlist_set action, got %s", action.Kind)
	}
	if got := action.Details["btc"]; got != float64(1) && got != 1 {
		t.Errorf("expected btc count 1, got %v", got)
	}
	if got := action.Details["dgb"]; got != float64(2) && got != 2 {
		t.Errorf("expected dgb count 2, got %v", got)
	}
}

func TestAllowlistPostMalformedJSON(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/allowlist", `{not json`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "error") {
		t.Errorf("expected error body, got %s", w.Body.String())
	}
}

func TestAllowlistPostWrongFieldType(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/allowlist", `{"btc": {"allowed_addresses": "not-a-list"}}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for wrong type, got %d", w.Code)
	}
}

func TestAllowlistPostUnknownCurrencyIgnored(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/allowlist", `{"ltc": {"allowed_addresses": ["L123"]}}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	stored := allowlist.Load(ts.payouts.Path())
	if stored.HasAny() {
		t.Errorf("unknown currency must not create entries: %+v", stored)
	}
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK {
		t.Errorf("healthz: expected 200, got %d", w.Code)
	}

	w = ts.do(t, http.MethodGet, "/readyz", "")
	if w.Code != http.StatusOK {
		t.Errorf("readyz: expected 200, got %d", w.Code)
	}
}

func TestUnknownRouteReturns404(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/unknown", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}
