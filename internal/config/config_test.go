package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()

	if cfg.DataDir != DefaultDataDir {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, DefaultDataDir)
	}
	if cfg.TickInterval != DefaultTickInterval {
		t.Errorf("TickInterval = %s, want %s", cfg.TickInterval, DefaultTickInterval)
	}
	if cfg.Armed {
		t.Error("Armed should default to false")
	}
	if cfg.ProxyURL != DefaultProxyURL {
		t.Errorf("ProxyURL = %q, want %q", cfg.ProxyURL, DefaultProxyURL)
	}
	if cfg.ProxyTimeout != DefaultProxyTimeout {
		t.Errorf("ProxyTimeout = %s, want %s", cfg.ProxyTimeout, DefaultProxyTimeout)
	}
	if !cfg.FailsafeStopMining {
		t.Error("FailsafeStopMining should default to true")
	}
	if cfg.MetricsEnabled {
		t.Error("MetricsEnabled should default to false")
	}
	if !cfg.RateLimitEnabled {
		t.Error("RateLimitEnabled should default to true")
	}
}

func TestFromEnvLegacyAliases(t *testing.T) {
	t.Setenv("TICK_SECONDS", "7")
	t.Setenv("ARMED_MODE", "true")
	t.Setenv("DOCKER_PROXY_URL", "http://proxy.internal:2375")
	t.Setenv("FAILSAFE_STOP_MINING", "false")

	cfg := FromEnv()

	if cfg.TickInterval != 7*time.Second {
		t.Errorf("TickInterval = %s, want 7s from TICK_SECONDS", cfg.TickInterval)
	}
	if !cfg.Armed {
		t.Error("expected ARMED_MODE=true to arm the agent")
	}
	if cfg.ProxyURL != "http://proxy.internal:2375" {
		t.Errorf("ProxyURL = %q, want DOCKER_PROXY_URL value", cfg.ProxyURL)
	}
	if cfg.FailsafeStopMining {
		t.Error("expected FAILSAFE_STOP_MINING=false to disable the failsafe")
	}
}

func TestFromEnvPrimaryBeatsAlias(t *testing.T) {
	t.Setenv("WIKTAC_TICK_INTERVAL", "45s")
	t.Setenv("TICK_SECONDS", "7")

	cfg := FromEnv()
	if cfg.TickInterval != 45*time.Second {
		t.Errorf("TickInterval = %s, want 45s from WIKTAC_TICK_INTERVAL", cfg.TickInterval)
	}
}

func TestFromEnvAllowedOrigins(t *testing.T) {
	t.Setenv("WIKTAC_ALLOWED_ORIGINS", "http://a.example, http://b.example ,")

	cfg := FromEnv()
	want := []string{"http://a.example", "http://b.example"}
	if len(cfg.AllowedOrigins) != len(want) {
		t.Fatalf("AllowedOrigins = %v, want %v", cfg.AllowedOrigins, want)
	}
	for i := range want {
		if cfg.AllowedOrigins[i] != want[i] {
			t.Errorf("AllowedOrigins[%d] = %q, want %q", i, cfg.AllowedOrigins[i], want[i])
		}
	}
}

func TestValidate(t *testing.T) {
	valid := FromEnv()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "empty data dir",
			mutate:  func(c *Config) { c.DataDir = "  " },
			wantErr: true,
		},
		{
			name:    "sub-second tick interval",
			mutate:  func(c *Config) { c.TickInterval = 100 * time.Millisecond },
			wantErr: true,
		},
		{
			name:    "proxy URL without scheme",
			mutate:  func(c *Config) { c.ProxyURL = "dockerproxy:2375" },
			wantErr: true,
		},
		{
			name:    "proxy URL with unsupported scheme",
			mutate:  func(c *Config) { c.ProxyURL = "unix:///var/run/docker.sock" },
			wantErr: true,
		},
		{
			name:    "https proxy URL is fine",
			mutate:  func(c *Config) { c.ProxyURL = "https://dockerproxy:2376" },
			wantErr: false,
		},
		{
			name:    "zero proxy timeout",
			mutate:  func(c *Config) { c.ProxyTimeout = 0 },
			wantErr: true,
		},
		{
			name:    "rate limit enabled with zero budget",
			mutate:  func(c *Config) { c.RateLimitRPM = 0 },
			wantErr: true,
		},
		{
			name: "rate limit disabled ignores budget",
			mutate: func(c *Config) {
				c.RateLimitEnabled = false
				c.RateLimitRPM = 0
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPaths(t *testing.T) {
	cfg := Config{DataDir: "/data"}

	if got := cfg.StatePath(); got != filepath.Join("/data", StateFilename) {
		t.Errorf("StatePath() = %q", got)
	}
	if got := cfg.AllowlistPath(); got != filepath.Join("/data", AllowlistFilename) {
		t.Errorf("AllowlistPath() = %q", got)
	}
}
