// Package config loads the settings passed to the syntax manager, sync
// manager, and editor coordinator at construction. Precedence: environment
// variables override the TOML file, which overrides the defaults below.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/shiv248/kolabcore/internal/syntax"
)

// Config holds the loaded settings. Nothing in internal/syntax,
// internal/syncmgr, or internal/editor reads this struct directly; the
// commands in internal/cmd read only its Server and Database sections, and
// SyntaxPolicySet/SyntaxManagerConfig convert its Syntax section into the
// syntax manager's constructor arguments.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Syntax   SyntaxConfig   `toml:"syntax"`
	Sync     SyncConfig     `toml:"sync"`
	Database DatabaseConfig `toml:"database"`
	Log      LogConfig      `toml:"log"`
}

// ServerConfig holds the demo broker transport's listen settings.
type ServerConfig struct {
	Port                string        `toml:"port"`
	MaxDocumentSizeKB   int           `toml:"max_document_size_kb"`
	BroadcastBufferSize int           `toml:"broadcast_buffer_size"`
	WSReadTimeout       time.Duration `toml:"-"`
	WSWriteTimeout      time.Duration `toml:"-"`
	WSReadTimeoutMin    int           `toml:"ws_read_timeout_minutes"`
	WSWriteTimeoutSec   int           `toml:"ws_write_timeout_seconds"`
}

// TierPolicyConfig mirrors syntax.TieredSyntaxPolicy's TOML-addressable
// fields for one size tier.
type TierPolicyConfig struct {
	DebounceMillis            int  `toml:"debounce_millis"`
	RetentionHiddenFullKeep   bool `toml:"retention_hidden_full_keep"`
	RetentionHiddenViewKeep   bool `toml:"retention_hidden_viewport_keep"`
	ViewportCooldownMillis    int  `toml:"viewport_cooldown_millis"`
	EagerInjections           bool `toml:"eager_injections"`
}

// SyntaxConfig holds the tiered syntax manager's policy-per-tier knobs and
// its worker pool bound.
type SyntaxConfig struct {
	MaxConcurrency int              `toml:"max_concurrency"`
	TierS          TierPolicyConfig `toml:"tier_s"`
	TierM          TierPolicyConfig `toml:"tier_m"`
	TierL          TierPolicyConfig `toml:"tier_l"`
}

// SyncConfig holds the cross-process buffer sync manager's timeouts.
type SyncConfig struct {
	RequestTimeoutSeconds int `toml:"request_timeout_seconds"`
}

// DatabaseConfig holds the persistence collaborator's settings.
type DatabaseConfig struct {
	SQLiteURI             string `toml:"sqlite_uri"`
	ExpiryDays            int    `toml:"expiry_days"`
	CleanupIntervalHours  int    `toml:"cleanup_interval_hours"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `toml:"level"` // debug, info, warn, error
}

// Load builds a Config by reading from a TOML config file and environment
// variables. Precedence: environment variables > config file > defaults.
//
// Config file search order (first found wins):
//  1. Path passed via configPath parameter (from --config flag)
//  2. KOLABCORE_CONFIG environment variable
//  3. ./kolabcore.toml (current directory)
//
// All fields are optional in the config file.
func Load(configPath string) (*Config, error) {
	cfg := defaults()

	if err := cfg.loadFile(configPath); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	cfg.resolveDurations()

	return cfg, nil
}

func defaults() *Config {
	tier := TierPolicyConfig{
		DebounceMillis:          60,
		RetentionHiddenFullKeep: true,
		RetentionHiddenViewKeep: false,
		ViewportCooldownMillis:  2000,
	}
	return &Config{
		Server: ServerConfig{
			Port:                "3030",
			MaxDocumentSizeKB:   256,
			BroadcastBufferSize: 16,
			WSReadTimeoutMin:    30,
			WSWriteTimeoutSec:   10,
		},
		Syntax: SyntaxConfig{
			MaxConcurrency: 4,
			TierS:          tier,
			TierM:          tier,
			TierL:          tier,
		},
		Sync: SyncConfig{
			RequestTimeoutSeconds: 5,
		},
		Database: DatabaseConfig{
			ExpiryDays:           7,
			CleanupIntervalHours: 1,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// loadFile finds and parses the TOML config file. If no file is found, this
// is a no-op (the config file is optional).
func (c *Config) loadFile(configPath string) error {
	path := resolveConfigPath(configPath)
	if path == "" {
		return nil
	}

	if _, err := toml.DecodeFile(path, c); err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}

	return nil
}

func resolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p := os.Getenv("KOLABCORE_CONFIG"); p != "" {
		return p
	}
	if _, err := os.Stat("kolabcore.toml"); err == nil {
		return "kolabcore.toml"
	}
	return ""
}

// applyEnv overlays environment variables on top of existing config values,
// the teacher's getEnv/getEnvInt override layer generalized across the
// whole config tree. An env var only takes effect if it is non-empty.
func (c *Config) applyEnv() {
	envOverride("PORT", &c.Server.Port)
	envOverrideInt("MAX_DOCUMENT_SIZE_KB", &c.Server.MaxDocumentSizeKB)
	envOverrideInt("BROADCAST_BUFFER_SIZE", &c.Server.BroadcastBufferSize)
	envOverrideInt("WS_READ_TIMEOUT_MINUTES", &c.Server.WSReadTimeoutMin)
	envOverrideInt("WS_WRITE_TIMEOUT_SECONDS", &c.Server.WSWriteTimeoutSec)

	envOverrideInt("SYNTAX_MAX_CONCURRENCY", &c.Syntax.MaxConcurrency)

	envOverrideInt("SYNC_REQUEST_TIMEOUT_SECONDS", &c.Sync.RequestTimeoutSeconds)

	envOverride("SQLITE_URI", &c.Database.SQLiteURI)
	envOverrideInt("EXPIRY_DAYS", &c.Database.ExpiryDays)
	envOverrideInt("CLEANUP_INTERVAL_HOURS", &c.Database.CleanupIntervalHours)

	envOverride("LOG_LEVEL", &c.Log.Level)
}

// resolveDurations derives the time.Duration fields the TOML/env layers
// populate as plain integers, matching the teacher's KB->bytes,
// hours->Duration conversion at the edge of config loading.
func (c *Config) resolveDurations() {
	c.Server.WSReadTimeout = time.Duration(c.Server.WSReadTimeoutMin) * time.Minute
	c.Server.WSWriteTimeout = time.Duration(c.Server.WSWriteTimeoutSec) * time.Second
}

// Debounce returns the configured debounce as a Duration.
func (t TierPolicyConfig) Debounce() time.Duration {
	return time.Duration(t.DebounceMillis) * time.Millisecond
}

// ViewportCooldown returns the configured viewport cooldown as a Duration.
func (t TierPolicyConfig) ViewportCooldown() time.Duration {
	return time.Duration(t.ViewportCooldownMillis) * time.Millisecond
}

// toRuntimePolicy converts a TierPolicyConfig into the syntax package's
// runtime policy type. Kept here, not in internal/syntax, so the core package
// never imports pkg/config (spec §9: construction-time values only).
func (t TierPolicyConfig) toRuntimePolicy() syntax.TieredSyntaxPolicy {
	fullRetention := syntax.DropWhenHidden
	if t.RetentionHiddenFullKeep {
		fullRetention = syntax.KeepAlways
	}
	viewportRetention := syntax.DropWhenHidden
	if t.RetentionHiddenViewKeep {
		viewportRetention = syntax.KeepAlways
	}
	return syntax.TieredSyntaxPolicy{
		Debounce:                  t.Debounce(),
		RetentionHiddenFull:       fullRetention,
		RetentionHiddenViewport:   viewportRetention,
		ViewportCooldownOnTimeout: t.ViewportCooldown(),
		EagerInjections:           t.EagerInjections,
	}
}

// SyntaxPolicySet converts the TOML-addressable tier configs into the
// runtime syntax.PolicySet the syntax manager is constructed with.
func (c SyntaxConfig) SyntaxPolicySet() syntax.PolicySet {
	return syntax.PolicySet{
		S: c.TierS.toRuntimePolicy(),
		M: c.TierM.toRuntimePolicy(),
		L: c.TierL.toRuntimePolicy(),
	}
}

// SyntaxManagerConfig converts SyntaxConfig into the syntax.Config the
// manager's constructor takes.
func (c SyntaxConfig) SyntaxManagerConfig() syntax.Config {
	return syntax.Config{MaxConcurrency: c.MaxConcurrency}
}

func envOverride(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envOverrideInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*dst = i
		}
	}
}
