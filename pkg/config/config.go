// Package config loads Drive's process configuration from a YAML file
// overlaid with DRIVE_-prefixed environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for a Drive process.
type Config struct {
	// Protocol / versioning
	ProtocolVersion uint32 `yaml:"protocol_version"`

	// Epoch & fee economics
	EpochBlockCount     uint64 `yaml:"epoch_block_count"`
	StoragePricePerByte int64  `yaml:"storage_price_per_byte"`
	CPUPricePerUnit     int64  `yaml:"cpu_price_per_unit"`
	StoragePoolShareBps uint32 `yaml:"storage_pool_share_bps"` // basis points moved per epoch rollover

	// Storage
	DataDir string `yaml:"data_dir"`

	// Optional Postgres mirror for the document query planner
	DocumentIndexDatabaseURL string `yaml:"document_index_database_url"`

	// Optional Firestore audit-trail mirror
	AuditFirestoreProjectID   string `yaml:"audit_firestore_project_id"`
	AuditFirestoreCollection  string `yaml:"audit_firestore_collection"`

	// Logging / metrics
	LogLevel   string `yaml:"log_level"`
	LogFormat  string `yaml:"log_format"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns conservative defaults for local/test use.
func Default() *Config {
	return &Config{
		ProtocolVersion:     1,
		EpochBlockCount:     576,
		StoragePricePerByte: 27000,
		CPUPricePerUnit:     1,
		StoragePoolShareBps: 1000,
		DataDir:             "./data",
		LogLevel:            "info",
		LogFormat:           "json",
		MetricsAddr:         ":9090",
	}
}

// Load reads a YAML config file (if path is non-empty and exists) and
// overlays DRIVE_-prefixed environment variables on top.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.ProtocolVersion = uint32(getEnvInt("DRIVE_PROTOCOL_VERSION", int(cfg.ProtocolVersion)))
	cfg.EpochBlockCount = uint64(getEnvInt("DRIVE_EPOCH_BLOCK_COUNT", int(cfg.EpochBlockCount)))
	cfg.DataDir = getEnv("DRIVE_DATA_DIR", cfg.DataDir)
	cfg.DocumentIndexDatabaseURL = getEnv("DRIVE_DOCUMENT_INDEX_DATABASE_URL", cfg.DocumentIndexDatabaseURL)
	cfg.AuditFirestoreProjectID = getEnv("DRIVE_AUDIT_FIRESTORE_PROJECT_ID", cfg.AuditFirestoreProjectID)
	cfg.LogLevel = getEnv("DRIVE_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("DRIVE_LOG_FORMAT", cfg.LogFormat)
	cfg.MetricsAddr = getEnv("DRIVE_METRICS_ADDR", cfg.MetricsAddr)

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}
