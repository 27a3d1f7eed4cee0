// Package allowlist reads and writes the payout address allowlist. The file
// is the failsafe switch: while no currency has any allowed address, the
// agent refuses to restart a crashed mining pool.
package allowlist

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"

	"github.com/wiktac/node-agent/internal/log"
)

// Currency holds the allowed payout addresses for one coin.
type Currency struct {
	AllowedAddresses []string `yaml:"allowed_addresses" json:"allowed_addresses"`
}

// Allowlist is the whole allowed-payouts.yml document.
type Allowlist struct {
	BTC Currency `yaml:"btc" json:"btc"`
	BCH Currency `yaml:"bch" json:"bch"`
	DGB Currency `yaml:"dgb" json:"dgb"`
}

// HasAny reports whether at least one currency has at least one address.
// This is the condition that releases the failsafe.
func (a Allowlist) HasAny() bool {
	return len(a.BTC.AllowedAddresses) > 0 ||
		len(a.BCH.AllowedAddresses) > 0 ||
		len(a.DGB.AllowedAddresses) > 0
}

// Counts returns the number of addresses per currency, keyed btc/bch/dgb.
func (a Allowlist) Counts() map[string]int {
	return map[string]int{
		"btc": len(a.BTC.AllowedAddresses),
		"bch": len(a.BCH.AllowedAddresses),
		"dgb": len(a.DGB.AllowedAddresses),
	}
}

func (a *Allowlist) normalize() {
	if a.BTC.AllowedAddresses == nil {
		a.BTC.AllowedAddresses = []string{}
	}
	if a.BCH.AllowedAddresses == nil {
		a.BCH.AllowedAddresses = []string{}
	}
	if a.DGB.AllowedAddresses == nil {
		a.DGB.AllowedAddresses = []string{}
	}
}

// Load reads the allowlist from disk. A missing, unreadable or unparseable
// file yields an empty allowlist, never an error. An empty allowlist keeps
// the failsafe engaged, which is the safe direction for this file.
func Load(path string) Allowlist {
	var a Allowlist
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger := log.WithComponent("allowlist")
			logger.Warn().
				Err(err).
				Str("path", path).
				Str("event", "allowlist.read_failed").
				Msg("allowlist unreadable, treating as empty")
		}
		a.normalize()
		return a
	}
	if err := yaml.Unmarshal(data, &a); err != nil {
		logger := log.WithComponent("allowlist")
		logger.Warn().
			Err(err).
			Str("path", path).
			Str("event", "allowlist.corrupt").
			Msg("allowlist unparseable, treating as empty")
		a = Allowlist{}
	}
	a.normalize()
	return a
}

// Save writes the allowlist atomically: temp file, fsync, rename. The data
// directory is created if missing.
func Save(path string, a Allowlist) error {
	a.normalize()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	data, err := yaml.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode allowlist: %w", err)
	}
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write allowlist file: %w", err)
	}
	return nil
}
