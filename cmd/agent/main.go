package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/wiktac/node-agent/internal/agent"
	"github.com/wiktac/node-agent/internal/allowlist"
	"github.com/wiktac/node-agent/internal/api"
	"github.com/wiktac/node-agent/internal/config"
	"github.com/wiktac/node-agent/internal/daemon"
	"github.com/wiktac/node-agent/internal/dockerproxy"
	"github.com/wiktac/node-agent/internal/health"
	wlog "github.com/wiktac/node-agent/internal/log"
	"github.com/wiktac/node-agent/internal/state"
	"github.com/wiktac/node-agent/internal/telemetry"
	"github.com/wiktac/node-agent/internal/version"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		os.Exit(0)
	}

	// Level resolution falls back to WIKTAC_LOG_LEVEL / LOG_LEVEL.
	wlog.Configure(wlog.Config{
		Service: "wiktac-agent",
		Version: version.Version,
	})

	logger := wlog.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.invalid").
			Msg("invalid configuration")
	}

	serverCfg := config.ParseServerConfig()
	bindHost := strings.TrimSpace(config.ParseString("WIKTAC_BIND_INTERFACE", ""))
	if bindHost != "" {
		newListen, err := config.BindListenAddr(serverCfg.ListenAddr, bindHost)
		if err != nil {
			logger.Fatal().
				Err(err).
				Msg("invalid WIKTAC_BIND_INTERFACE for API listen")
		}
		serverCfg.ListenAddr = newListen
	}

	logger.Info().
		Str("event", "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("build_date", version.Date).
		Str("addr", serverCfg.ListenAddr).
		Msg("starting wiktac node agent")

	logger.Info().Msgf("→ Docker proxy: %s", cfg.ProxyURL)
	logger.Info().Msgf("→ Data dir: %s", cfg.DataDir)
	logger.Info().Msgf("→ Tick interval: %s", cfg.TickInterval)
	if cfg.Armed {
		logger.Info().Msg("→ Mode: armed (crashed containers are restarted)")
	} else {
		logger.Info().Msg("→ Mode: observe only (set WIKTAC_ARMED=true to enable restarts)")
	}
	if cfg.FailsafeStopMining {
		logger.Info().Msg("→ Failsafe: miningcore restarts held while the payout allowlist is empty")
	}

	if err := health.PerformStartupChecks(ctx, cfg, serverCfg.ListenAddr); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "startup.checks.failed").
			Msg("startup checks failed")
	}

	telemetryProvider, err := telemetry.NewProvider(ctx, telemetry.FromEnv(version.Version))
	if err != nil {
		logger.Warn().
			Err(err).
			Msg("Telemetry initialization failed, continuing without tracing")
	}

	proxy := dockerproxy.New(cfg.ProxyURL, dockerproxy.Options{
		Timeout:        cfg.ProxyTimeout,
		RateLimit:      rate.Limit(cfg.ProxyRateLimit),
		RateLimitBurst: cfg.ProxyRateBurst,
	})

	store := state.NewStore(cfg.StatePath())
	payouts := allowlist.NewHolder(cfg.AllowlistPath())

	watchdog := agent.New(agent.Options{
		Proxy:              proxy,
		Store:              store,
		AllowlistPath:      cfg.AllowlistPath(),
		Interval:           cfg.TickInterval,
		Armed:              cfg.Armed,
		FailsafeStopMining: cfg.FailsafeStopMining,
	})

	healthMgr := health.NewManager(version.Version)
	healthMgr.RegisterChecker(health.NewProxyChecker(proxy.Ping))
	healthMgr.RegisterChecker(health.NewDataDirChecker(cfg.DataDir))
	healthMgr.RegisterChecker(health.NewLastTickChecker(watchdog.LastTick, watchdog.Interval()))

	apiServer := api.New(cfg, store, payouts, healthMgr, version.Version)

	var metricsHandler http.Handler
	metricsAddr := ""
	if cfg.MetricsEnabled {
		metricsAddr = strings.TrimSpace(cfg.MetricsAddr)
		metricsHandler = promhttp.Handler()
	}

	deps := daemon.Deps{
		Logger:         logger,
		APIHandler:     apiServer.Router(),
		MetricsAddr:    metricsAddr,
		MetricsHandler: metricsHandler,
	}

	mgr, err := daemon.NewManager(serverCfg, deps)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "manager.creation.failed").
			Msg("failed to create daemon manager")
	}

	if telemetryProvider != nil {
		mgr.RegisterShutdownHook("telemetry", telemetryProvider.Shutdown)
	}
	mgr.RegisterShutdownHook("allowlist-watcher", func(_ context.Context) error {
		payouts.Stop()
		return nil
	})

	app := daemon.NewApp(logger, mgr, payouts, watchdog)
	if err := app.Run(ctx); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "manager.failed").
			Msg("daemon app failed")
	}

	logger.Info().Msg("server exiting")
}
