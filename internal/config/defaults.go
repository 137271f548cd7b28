package config

import "github.com/alanyang/annotation-desk/internal/domain/assignment"

const (
	defaultConfigPath      = "config.toml"
	defaultPort            = "5002"
	defaultMaxUploadMB     = 64
	defaultIdempotencyTTL  = 600
	defaultImagesDir       = "./images_train/"
	defaultAssignmentsFile = "assignments.json"
	defaultShuffle         = ShuffleSeeded
	defaultSeed            = 42
	defaultCacheTTLSeconds = 300
	defaultCacheMaxEntries = 256
	defaultLogLevel        = "info"
	defaultLogFormat       = "json"
)

// DefaultWorkers is used when the config file declares no workers.
func DefaultWorkers() []assignment.Worker {
	return []assignment.Worker{
		{Name: "Pratyush", Quota: 130},
		{Name: "Vaibhav", Quota: 50},
		{Name: "Amal", Quota: 50},
		{Name: "Abhinav", Quota: 50},
		{Name: "Aarnav", Quota: 48},
	}
}

// Default returns a Config populated with built-in defaults. Workers are
// left empty and filled in by normalize so a file's [[workers]] list
// replaces them instead of extending them.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:                  defaultPort,
			MaxUploadMB:           defaultMaxUploadMB,
			IdempotencyTTLSeconds: defaultIdempotencyTTL,
		},
		Storage: StorageConfig{
			ImagesDir:       defaultImagesDir,
			AssignmentsFile: defaultAssignmentsFile,
		},
		Assignment: AssignmentConfig{
			Shuffle: defaultShuffle,
			Seed:    defaultSeed,
		},
		Render: RenderConfig{
			CacheTTLSeconds: defaultCacheTTLSeconds,
			CacheMaxEntries: defaultCacheMaxEntries,
		},
		Logging: LoggingConfig{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
