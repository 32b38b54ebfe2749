package config

import (
	"os"
	"testing"

	"github.com/shiv248/kolabcore/internal/syntax"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "3030" {
		t.Fatalf("Server.Port = %q, want 3030", cfg.Server.Port)
	}
	if cfg.Syntax.MaxConcurrency != 4 {
		t.Fatalf("Syntax.MaxConcurrency = %d, want 4", cfg.Syntax.MaxConcurrency)
	}
	if cfg.Server.WSReadTimeout.Minutes() != 30 {
		t.Fatalf("WSReadTimeout = %v, want 30m", cfg.Server.WSReadTimeout)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("SYNTAX_MAX_CONCURRENCY", "8")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "9999" {
		t.Fatalf("Server.Port = %q, want 9999 (env override)", cfg.Server.Port)
	}
	if cfg.Syntax.MaxConcurrency != 8 {
		t.Fatalf("Syntax.MaxConcurrency = %d, want 8 (env override)", cfg.Syntax.MaxConcurrency)
	}
}

func TestLoadFileThenEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/kolabcore.toml"
	if err := os.WriteFile(path, []byte("[server]\nport = \"4040\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "4040" {
		t.Fatalf("Server.Port = %q, want 4040 (from file)", cfg.Server.Port)
	}

	t.Setenv("PORT", "5050")
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "5050" {
		t.Fatalf("Server.Port = %q, want 5050 (env beats file)", cfg.Server.Port)
	}
}

func TestSyntaxPolicySetConversion(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ps := cfg.Syntax.SyntaxPolicySet()
	if ps.S.Debounce.Milliseconds() != 60 {
		t.Fatalf("S.Debounce = %v, want 60ms", ps.S.Debounce)
	}
	if ps.S.RetentionHiddenFull != syntax.KeepAlways {
		t.Fatalf("expected default RetentionHiddenFull to keep always")
	}
}
