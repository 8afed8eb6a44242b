package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 37742 {
		t.Errorf("port = %d, want default 37742", cfg.Server.Port)
	}
	if cfg.Memory.SessionIdleMinutes != 30 {
		t.Errorf("session_idle_minutes = %d, want 30", cfg.Memory.SessionIdleMinutes)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engram.toml")
	content := `
[server]
port = 9999

[memory]
recall_limit = 25

[rank]
damping = 0.9
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Memory.RecallLimit != 25 {
		t.Errorf("recall_limit = %d, want 25", cfg.Memory.RecallLimit)
	}
	if cfg.Rank.Damping != 0.9 {
		t.Errorf("damping = %v, want 0.9", cfg.Rank.Damping)
	}
	// Untouched sections keep their defaults.
	if cfg.Server.Bind != "127.0.0.1" {
		t.Errorf("bind = %q, want default", cfg.Server.Bind)
	}
	if cfg.Embedding.Model != "nomic-embed-text" {
		t.Errorf("model = %q, want default", cfg.Embedding.Model)
	}
}

func TestLoadInvalidToml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.toml")
	if err := os.WriteFile(path, []byte("[server\nport ="), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed toml")
	}
}

func TestListenAddr(t *testing.T) {
	cfg := Default()
	if got := cfg.ListenAddr(); got != "127.0.0.1:37742" {
		t.Errorf("ListenAddr = %q", got)
	}
}

func TestEngineConfig(t *testing.T) {
	cfg := Default()
	ec := cfg.EngineConfig()

	if ec.SessionIdle != 30*time.Minute {
		t.Errorf("SessionIdle = %v, want 30m", ec.SessionIdle)
	}
	if ec.DecayHalfLife != 720*time.Hour {
		t.Errorf("DecayHalfLife = %v, want 720h", ec.DecayHalfLife)
	}
	if ec.TemporalK != 3 || ec.RankEdgeDelta != 50 {
		t.Errorf("unexpected tuning: %+v", ec)
	}
}
