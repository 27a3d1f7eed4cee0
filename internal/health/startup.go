package health

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/wiktac/node-agent/internal/config"
	"github.com/wiktac/node-agent/internal/log"
)

// PerformStartupChecks validates the runtime environment before the daemon
// starts serving. Configuration syntax is already covered by config.Validate;
// this answers what only the running host can: can we write where we must,
// can we bind where we are told to.
func PerformStartupChecks(ctx context.Context, cfg config.Config, listenAddr string) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("Running pre-flight startup checks...")

	// 1. Data Directory Permissions
	if err := checkDataDir(logger, cfg.DataDir); err != nil {
		return fmt.Errorf("data directory check failed: %w", err)
	}

	// 2. API Listen Address
	if err := checkListenAddr(logger, listenAddr); err != nil {
		return fmt.Errorf("listen address check failed: %w", err)
	}

	logger.Info().Msg("✅ All startup checks passed")
	return nil
}

func checkDataDir(logger zerolog.Logger, path string) error {
	// The data dir is usually a mounted volume. Create it when the agent runs
	// outside one so first boot on a fresh host does not fail.
	// MkdirAll returns nil if exists
	if err := os.MkdirAll(path, 0750); err != nil {
		return fmt.Errorf("cannot create directory %s: %w", path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	// Check write permissions by creating a temp file
	testFile := filepath.Join(path, ".write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0600); err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", path, err)
	}
	_ = os.Remove(testFile)

	logger.Info().Str("path", path).Msg("✓ Data directory is writable")
	return nil
}

func checkListenAddr(logger zerolog.Logger, addr string) error {
	if addr == "" {
		return fmt.Errorf("listen address is empty")
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	portNum, err := strconv.Atoi(port)
	if err != nil || portNum < 0 || portNum > 65535 {
		return fmt.Errorf("invalid listen port %q in %q", port, addr)
	}
	logger.Info().Str("addr", addr).Msg("✓ API listen address is valid")
	return nil
}
