package dockerproxy

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// MockServer provides a configurable docker socket proxy mock for testing.
type MockServer struct {
	*httptest.Server
	mu            sync.RWMutex
	containers    []Container
	restartCalls  []string
	restartStatus map[string]int // forced status per container ID
	failures      map[string]int // number of failures before success per endpoint
}

// NewMockServer creates a new docker proxy mock server.
func NewMockServer() *MockServer {
	mock := &MockServer{
		restartStatus: make(map[string]int),
		failures:      make(map[string]int),
	}

	// Set up default test data
	mock.SetDefaultData()

	mux := http.NewServeMux()
	mux.HandleFunc("/containers/json", mock.handleList)
	mux.HandleFunc("/containers/", mock.handleContainer)
	mux.HandleFunc("/_ping", mock.handlePing)

	mock.Server = httptest.NewServer(mux)
	return mock
}

// SetDefaultData sets up a realistic container inventory.
func (m *MockServer) SetDefaultData() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setDefaultDataNoLock()
}

func (m *MockServer) setDefaultDataNoLock() {
	m.containers = []Container{
		{
			ID:     "1f2a9c0d4e5b",
			Names:  []string{"/btc-node"},
			Image:  "bitcoind:27.0",
			State:  "running",
			Status: "Up 4 days",
		},
		{
			ID:     "2b3c8d1e6f7a",
			Names:  []string{"/bch-node"},
			Image:  "bchn:28.0.1",
			State:  "running",
			Status: "Up 4 days",
		},
		{
			ID:     "3c4d7e2f8a9b",
			Names:  []string{"/dgb-node"},
			Image:  "digibyte/digibyted:8.22",
			State:  "running",
			Status: "Up 2 days",
		},
		{
			ID:     "4d5e6f3a9b0c",
			Names:  []string{"/miningcore"},
			Image:  "miningcore:latest",
			State:  "running",
			Status: "Up 4 days",
		},
		{
			ID:     "5e6f7a4b0c1d",
			Names:  []string{"/traefik"},
			Image:  "traefik:v3.1",
			State:  "running",
			Status: "Up 9 days",
		},
	}
	m.restartCalls = nil
}

// AddContainer appends a container to the inventory.
func (m *MockServer) AddContainer(c Container) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.containers = append(m.containers, c)
}

// SetContainers replaces the inventory.
func (m *MockServer) SetContainers(cs []Container) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.containers = append([]Container(nil), cs...)
}

// SetContainerState updates the state of the container with the given name.
func (m *MockServer) SetContainerState(name, state, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.containers {
		if m.containers[i].Name() == name {
			m.containers[i].State = state
			m.containers[i].Status = status
			return
		}
	}
}

// SetFailures sets the number of 500 responses before success for an endpoint
// key ("list", "restart" or "ping").
func (m *MockServer) SetFailures(endpoint string, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[endpoint] = count
}

// SetRestartStatus forces a status code for restarts of the given container ID.
func (m *MockServer) SetRestartStatus(id string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restartStatus[id] = status
}

// RestartCalls returns the container IDs restarted so far, in order.
func (m *MockServer) RestartCalls() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.restartCalls...)
}

// Reset clears all mock data and resets to defaults.
func (m *MockServer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restartStatus = make(map[string]int)
	m.failures = make(map[string]int)
	m.setDefaultDataNoLock()
}

// URL returns the mock server's base URL.
func (m *MockServer) URL() string {
	return m.Server.URL
}

func (m *MockServer) consumeFailure(endpoint string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures[endpoint] > 0 {
		m.failures[endpoint]--
		return true
	}
	return false
}

// handleList handles GET /containers/json.
func (m *MockServer) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if m.consumeFailure("list") {
		http.Error(w, `{"message":"server error"}`, http.StatusInternalServerError)
		return
	}

	m.mu.RLock()
	containers := append([]Container(nil), m.containers...)
	m.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(containers)
}

// handleContainer handles POST /containers/{id}/restart.
func (m *MockServer) handleContainer(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 3 || parts[0] != "containers" || parts[2] != "restart" {
		http.Error(w, `{"message":"page not found"}`, http.StatusNotFound)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := parts[1]

	if m.consumeFailure("restart") {
		http.Error(w, `{"message":"server error"}`, http.StatusInternalServerError)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if status, ok := m.restartStatus[id]; ok {
		if status == http.StatusNoContent || status == http.StatusNotModified {
			m.restartCalls = append(m.restartCalls, id)
		}
		w.WriteHeader(status)
		return
	}

	for _, c := range m.containers {
		if c.ID == id {
			m.restartCalls = append(m.restartCalls, id)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	http.Error(w, `{"message":"No such container: `+id+`"}`, http.StatusNotFound)
}

// handlePing handles GET /_ping.
func (m *MockServer) handlePing(w http.ResponseWriter, r *http.Request) {
	if m.consumeFailure("ping") {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("OK"))
}
