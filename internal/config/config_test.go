package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	// Clear anything inherited from the environment; both helpers treat
	// an empty value as unset.
	for _, key := range []string{
		"CHATSTORE_PORT",
		"CHATSTORE_STORAGE_BACKEND",
		"CHATSTORE_GCP_PROJECT",
		"CHATSTORE_DYNAMO_TABLE",
		"CHATSTORE_AWS_REGION",
		"CHATSTORE_SQLITE_PATH",
		"CHATSTORE_TTL_ATTRIBUTE",
		"CHATSTORE_TTL_SECONDS",
		"CHATSTORE_CACHE_TTL_SECONDS",
		"CHATSTORE_MAX_HISTORY_SIZE",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Port != "8080" {
		t.Fatalf("default port = %q", cfg.Port)
	}
	if cfg.StorageBackend != "memory" {
		t.Fatalf("default backend = %q", cfg.StorageBackend)
	}
	if cfg.CacheTTL != 10*time.Second {
		t.Fatalf("default cache TTL = %v", cfg.CacheTTL)
	}
	if cfg.ItemTTL != 0 {
		t.Fatalf("item expiry must default to disabled, got %v", cfg.ItemTTL)
	}
	if cfg.MaxHistorySize != 0 {
		t.Fatalf("default max history size = %d", cfg.MaxHistorySize)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CHATSTORE_PORT", "9090")
	t.Setenv("CHATSTORE_STORAGE_BACKEND", "dynamodb")
	t.Setenv("CHATSTORE_DYNAMO_TABLE", "conversations")
	t.Setenv("CHATSTORE_AWS_REGION", "eu-west-1")
	t.Setenv("CHATSTORE_TTL_SECONDS", "3600")
	t.Setenv("CHATSTORE_CACHE_TTL_SECONDS", "30")
	t.Setenv("CHATSTORE_MAX_HISTORY_SIZE", "50")

	cfg := Load()

	if cfg.Port != "9090" {
		t.Fatalf("port = %q", cfg.Port)
	}
	if cfg.StorageBackend != "dynamodb" || cfg.DynamoTable != "conversations" || cfg.AWSRegion != "eu-west-1" {
		t.Fatalf("dynamodb settings not loaded: %+v", cfg)
	}
	if cfg.ItemTTL != time.Hour {
		t.Fatalf("item TTL = %v", cfg.ItemTTL)
	}
	if cfg.CacheTTL != 30*time.Second {
		t.Fatalf("cache TTL = %v", cfg.CacheTTL)
	}
	if cfg.MaxHistorySize != 50 {
		t.Fatalf("max history size = %d", cfg.MaxHistorySize)
	}
}
