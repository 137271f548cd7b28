package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateAssignment(); err != nil {
		return err
	}
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return c.validateWorkers()
}

func (c *Config) validateServer() error {
	port, err := strconv.Atoi(c.Server.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("server.port must be a number between 1 and 65535, got %q", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return errors.New("server.max_upload_mb must be positive")
	}
	if c.Server.IdempotencyTTLSeconds < 0 {
		return errors.New("server.idempotency_ttl_seconds must not be negative")
	}
	return nil
}

func (c *Config) validateStorage() error {
	if c.Storage.ImagesDir == "" {
		return errors.New("storage.images_dir must be set")
	}
	if c.Storage.AssignmentsFile == "" {
		return errors.New("storage.assignments_file must be set")
	}
	return nil
}

func (c *Config) validateAssignment() error {
	switch c.Assignment.Shuffle {
	case ShuffleSeeded, ShuffleRandom:
		return nil
	default:
		return fmt.Errorf("assignment.shuffle must be %q or %q, got %q", ShuffleSeeded, ShuffleRandom, c.Assignment.Shuffle)
	}
}

func (c *Config) validateRender() error {
	if c.Render.CacheTTLSeconds < 0 {
		return errors.New("render.cache_ttl_seconds must not be negative")
	}
	if c.Render.CacheMaxEntries < 0 {
		return errors.New("render.cache_max_entries must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch c.Logging.Format {
	case "json", "text":
		return nil
	default:
		return fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format)
	}
}

func (c *Config) validateWorkers() error {
	if len(c.Workers) == 0 {
		return errors.New("at least one worker must be configured")
	}
	seen := make(map[string]struct{}, len(c.Workers))
	for i, w := range c.Workers {
		if w.Name == "" {
			return fmt.Errorf("workers[%d].name must be set", i)
		}
		if _, dup := seen[w.Name]; dup {
			return fmt.Errorf("workers[%d]: duplicate name %q", i, w.Name)
		}
		seen[w.Name] = struct{}{}
		if w.Quota <= 0 {
			return fmt.Errorf("workers[%d] %q: quota must be positive", i, w.Name)
		}
	}
	return nil
}
