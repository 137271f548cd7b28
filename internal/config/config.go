package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/alanyang/annotation-desk/internal/domain/assignment"
)

const (
	ShuffleSeeded = "seeded"
	ShuffleRandom = "random"
)

// Config is the full runtime configuration.
type Config struct {
	Server     ServerConfig        `toml:"server"`
	Storage    StorageConfig       `toml:"storage"`
	Assignment AssignmentConfig    `toml:"assignment"`
	Render     RenderConfig        `toml:"render"`
	Logging    LoggingConfig       `toml:"logging"`
	Workers    []assignment.Worker `toml:"workers"`
}

type ServerConfig struct {
	Port                  string `toml:"port"`
	MaxUploadMB           int    `toml:"max_upload_mb"`
	IdempotencyTTLSeconds int    `toml:"idempotency_ttl_seconds"`
}

type StorageConfig struct {
	ImagesDir       string `toml:"images_dir"`
	AssignmentsFile string `toml:"assignments_file"`
}

type AssignmentConfig struct {
	Shuffle string `toml:"shuffle"`
	Seed    uint64 `toml:"seed"`
}

type RenderConfig struct {
	CacheTTLSeconds int `toml:"cache_ttl_seconds"`
	CacheMaxEntries int `toml:"cache_max_entries"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Load reads the TOML file at path, falling back to CONFIG_PATH and then
// config.toml when path is empty. A missing file yields defaults. Env
// overrides are applied after the file. The bool reports whether a file
// was read.
func Load(path string) (*Config, bool, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = defaultConfigPath
	}

	exists := true
	file, err := os.Open(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		exists = false
	case err != nil:
		return nil, false, fmt.Errorf("open config: %w", err)
	default:
		defer file.Close()
		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, false, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, false, err
	}
	return &cfg, exists, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("IMAGES_DIR"); v != "" {
		c.Storage.ImagesDir = v
	}
	if v := os.Getenv("ASSIGNMENTS_FILE"); v != "" {
		c.Storage.AssignmentsFile = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) normalize() {
	c.Server.Port = strings.TrimPrefix(strings.TrimSpace(c.Server.Port), ":")
	c.Storage.ImagesDir = strings.TrimSpace(c.Storage.ImagesDir)
	c.Storage.AssignmentsFile = strings.TrimSpace(c.Storage.AssignmentsFile)
	c.Assignment.Shuffle = strings.ToLower(strings.TrimSpace(c.Assignment.Shuffle))
	if c.Assignment.Shuffle == "" {
		c.Assignment.Shuffle = defaultShuffle
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if len(c.Workers) == 0 {
		c.Workers = DefaultWorkers()
	}
	for i := range c.Workers {
		c.Workers[i].Name = strings.TrimSpace(c.Workers[i].Name)
	}
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Server.Port
}

func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMB) << 20
}

// IdempotencyTTL is how long an upload response is replayed for a repeated
// Idempotency-Key. Zero disables replay.
func (c *Config) IdempotencyTTL() time.Duration {
	return time.Duration(c.Server.IdempotencyTTLSeconds) * time.Second
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Render.CacheTTLSeconds) * time.Second
}

// Shuffler returns the permutation the assignment store uses.
func (c *Config) Shuffler() assignment.Shuffler {
	if c.Assignment.Shuffle == ShuffleRandom {
		return assignment.RandomShuffler()
	}
	return assignment.SeededShuffler(c.Assignment.Seed)
}

// SlogLevel parses Logging.Level. Validate guarantees it is well-formed.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}
