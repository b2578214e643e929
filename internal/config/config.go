package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	StorageBackend string // "memory", "firestore", "dynamodb" or "sqlite"

	GCPProjectID string

	DynamoTable string
	AWSRegion   string

	SQLitePath string

	// TTLAttribute names the item-expiry attribute for stores that need
	// one (DynamoDB). ItemTTL of zero disables item expiry everywhere.
	TTLAttribute string
	ItemTTL      time.Duration

	// CacheTTL bounds the merged-view cache.
	CacheTTL time.Duration

	// MaxHistorySize is the default trim applied by the HTTP layer when
	// a request carries none. Zero means unlimited.
	MaxHistorySize int
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("%s must be an integer, got %q", key, v)
	}
	return n
}

// Load reads all env vars and builds the config
func Load() *Config {
	cfg := &Config{
		Port: getEnv("CHATSTORE_PORT", "8080"),

		StorageBackend: getEnv("CHATSTORE_STORAGE_BACKEND", "memory"),

		GCPProjectID: getEnv("CHATSTORE_GCP_PROJECT", ""),

		DynamoTable: getEnv("CHATSTORE_DYNAMO_TABLE", ""),
		AWSRegion:   getEnv("CHATSTORE_AWS_REGION", "us-east-1"),

		SQLitePath: getEnv("CHATSTORE_SQLITE_PATH", "chatstore.db"),

		TTLAttribute: getEnv("CHATSTORE_TTL_ATTRIBUTE", "expires_at"),
		ItemTTL:      time.Duration(getIntEnv("CHATSTORE_TTL_SECONDS", 0)) * time.Second,

		CacheTTL: time.Duration(getIntEnv("CHATSTORE_CACHE_TTL_SECONDS", 10)) * time.Second,

		MaxHistorySize: getIntEnv("CHATSTORE_MAX_HISTORY_SIZE", 0),
	}

	switch cfg.StorageBackend {
	case "firestore":
		if cfg.GCPProjectID == "" {
			log.Fatal("CHATSTORE_GCP_PROJECT must be set for the firestore backend")
		}
	case "dynamodb":
		if cfg.DynamoTable == "" {
			log.Fatal("CHATSTORE_DYNAMO_TABLE must be set for the dynamodb backend")
		}
	case "memory", "sqlite":
	default:
		log.Fatalf("unknown storage backend %q", cfg.StorageBackend)
	}

	return cfg
}
