package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/engramdb/engram/internal/engine"
)

// Config holds all engram configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Memory    MemoryConfig    `toml:"memory"`
	Rank      RankConfig      `toml:"rank"`
	Embedding EmbeddingConfig `toml:"embedding"`
}

type ServerConfig struct {
	Bind string `toml:"bind"`
	Port int    `toml:"port"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type MemoryConfig struct {
	MaxContentBytes    int    `toml:"max_content_bytes"`
	SessionIdleMinutes int    `toml:"session_idle_minutes"`
	TemporalEdges      int    `toml:"temporal_edges"`
	DecayHalfLifeHours int    `toml:"decay_half_life_hours"`
	RecallLimit        int    `toml:"recall_limit"`
	Author             string `toml:"author"`
}

type RankConfig struct {
	Damping         float64 `toml:"damping"`
	Tolerance       float64 `toml:"tolerance"`
	MaxIterations   int     `toml:"max_iterations"`
	IntervalMinutes int     `toml:"interval_minutes"`
	EdgeDelta       int     `toml:"edge_delta"`
}

type EmbeddingConfig struct {
	OllamaURL string `toml:"ollama_url"`
	Model     string `toml:"model"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37742,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		Memory: MemoryConfig{
			MaxContentBytes:    16384,
			SessionIdleMinutes: 30,
			TemporalEdges:      3,
			DecayHalfLifeHours: 720,
			RecallLimit:        10,
			Author:             "agent",
		},
		Rank: RankConfig{
			Damping:         0.85,
			Tolerance:       1e-6,
			MaxIterations:   100,
			IntervalMinutes: 5,
			EdgeDelta:       50,
		},
		Embedding: EmbeddingConfig{
			OllamaURL: "http://localhost:11434",
			Model:     "nomic-embed-text",
		},
	}
}

// Load reads a TOML config file over the defaults. A missing file is not
// an error; the defaults stand.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("decode config %s: %w", path, err)
	}
	return cfg, nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// EngineConfig converts the file-level settings into engine tuning.
func (c *Config) EngineConfig() engine.Config {
	return engine.Config{
		MaxContentBytes: c.Memory.MaxContentBytes,
		TemporalK:       c.Memory.TemporalEdges,
		SessionIdle:     time.Duration(c.Memory.SessionIdleMinutes) * time.Minute,
		Damping:         c.Rank.Damping,
		Tolerance:       c.Rank.Tolerance,
		MaxIterations:   c.Rank.MaxIterations,
		RankInterval:    time.Duration(c.Rank.IntervalMinutes) * time.Minute,
		RankEdgeDelta:   c.Rank.EdgeDelta,
		DecayHalfLife:   time.Duration(c.Memory.DecayHalfLifeHours) * time.Hour,
		RecallLimit:     c.Memory.RecallLimit,
		Author:          c.Memory.Author,
	}
}
