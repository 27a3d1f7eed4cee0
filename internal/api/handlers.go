package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/wiktac/node-agent/internal/allowlist"
	"github.com/wiktac/node-agent/internal/state"
)

// maxAllowlistBody caps the accepted allowlist payload size.
const maxAllowlistBody = 1 << 20

// handleIndex serves the human landing page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<h1 style='font-family:system-ui'>WIKTAC Node Agent %s</h1><p>Status: <a href='/api/state'>/api/state</a></p>", s.version)
}

// handleState returns the state document as last persisted.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Load())
}

// handleAllowlistGet returns the payout allowlist as stored on disk.
func (s *Server) handleAllowlistGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, allowlist.Load(s.payouts.Path()))
}

// handleAllowlistSet replaces the payout allowlist and records the change
// in the action log.
func (s *Server) handleAllowlistSet(w http.ResponseWriter, r *http.Request) {
	var payload allowlist.Allowlist
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAllowlistBody))
	if err := dec.Decode(&payload); err != nil {
		writeError(w, fmt.Errorf("invalid allowlist payload: %w", err))
		return
	}

	if err := allowlist.Save(s.payouts.Path(), payload); err != nil {
		s.logger.Error().
			Err(err).
			Str("event", "api.allowlist_write_failed").
			Msg("could not persist allowlist")
		writeInternalError(w)
		return
	}

	// The watcher would pick the file up after its debounce; reloading here
	// makes the new allowlist visible immediately.
	s.payouts.Reload(r.Context())

	counts := payload.Counts()
	err := s.store.Mutate(func(doc *state.Document) {
		doc.AppendAction(state.ActionAllowlistSet, map[string]any{
			"btc": counts["btc"],
			"bch": counts["bch"],
			"dgb": counts["dgb"],
		})
	})
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("event", "api.state_write_failed").
			Msg("could not record allowlist update")
		writeInternalError(w)
		return
	}

	s.logger.Info().
		Str("event", "api.allowlist_updated").
		Int("btc", counts["btc"]).
		Int("bch", counts["bch"]).
		Int("dgb", counts["dgb"]).
		Msg("allowlist updated")

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
