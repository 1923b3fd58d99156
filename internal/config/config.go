package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string // DEPTEX_DATABASE_URL (optional, empty = no local store)
	HTTPAddr    string // DEPTEX_HTTP_ADDR (default ":8080")
	NATSURL     string // DEPTEX_NATS_URL (optional, empty = no events)
	AuthToken   string // DEPTEX_AUTH_TOKEN (optional, empty = auth disabled)

	// Core API settings
	CoreURL   string // DEPTEX_CORE_URL (required; scan/intel backend)
	CoreToken string // DEPTEX_CORE_TOKEN (service token for the core API)

	// Agent settings
	GeminiModel string // DEPTEX_GEMINI_MODEL (default "gemini-2.5-flash"; key from GEMINI_API_KEY)

	// Graph settings
	GraphDebounce time.Duration // DEPTEX_GRAPH_DEBOUNCE (default 40ms)
	FontPath      string        // DEPTEX_FONT_PATH (TTF for PNG labels; empty = bitmap font)

	// Snapshot settings
	SnapshotInterval   time.Duration // DEPTEX_SNAPSHOT_INTERVAL (default 3m; 0 = disabled)
	SnapshotScopes     []string      // DEPTEX_SNAPSHOT_SCOPES (comma-separated, e.g. "org:org-1,project:prj-2")
	SnapshotS3Bucket   string        // DEPTEX_SNAPSHOT_S3_BUCKET (enables S3 when set)
	SnapshotS3Endpoint string        // DEPTEX_SNAPSHOT_S3_ENDPOINT (custom endpoint for MinIO)
	SnapshotS3Region   string        // DEPTEX_SNAPSHOT_S3_REGION (default "us-east-1")
	SnapshotS3Key      string        // DEPTEX_SNAPSHOT_S3_KEY (default "deptex/snapshots.jsonl")
	SnapshotGitRepo    string        // DEPTEX_SNAPSHOT_GIT_REPO (enables git when set; path to clone)
	SnapshotGitFile    string        // DEPTEX_SNAPSHOT_GIT_FILE (default "deptex-snapshots.jsonl")
	SnapshotGitBranch  string        // DEPTEX_SNAPSHOT_GIT_BRANCH (default "main")
}

// Load reads configuration from the environment, after loading a .env file
// if one is present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	c := &Config{
		DatabaseURL:        os.Getenv("DEPTEX_DATABASE_URL"),
		HTTPAddr:           envOrDefault("DEPTEX_HTTP_ADDR", ":8080"),
		NATSURL:            os.Getenv("DEPTEX_NATS_URL"),
		AuthToken:          os.Getenv("DEPTEX_AUTH_TOKEN"),
		CoreURL:            os.Getenv("DEPTEX_CORE_URL"),
		CoreToken:          os.Getenv("DEPTEX_CORE_TOKEN"),
		GeminiModel:        envOrDefault("DEPTEX_GEMINI_MODEL", "gemini-2.5-flash"),
		FontPath:           os.Getenv("DEPTEX_FONT_PATH"),
		SnapshotS3Bucket:   os.Getenv("DEPTEX_SNAPSHOT_S3_BUCKET"),
		SnapshotS3Endpoint: os.Getenv("DEPTEX_SNAPSHOT_S3_ENDPOINT"),
		SnapshotS3Region:   envOrDefault("DEPTEX_SNAPSHOT_S3_REGION", "us-east-1"),
		SnapshotS3Key:      envOrDefault("DEPTEX_SNAPSHOT_S3_KEY", "deptex/snapshots.jsonl"),
		SnapshotGitRepo:    os.Getenv("DEPTEX_SNAPSHOT_GIT_REPO"),
		SnapshotGitFile:    envOrDefault("DEPTEX_SNAPSHOT_GIT_FILE", "deptex-snapshots.jsonl"),
		SnapshotGitBranch:  envOrDefault("DEPTEX_SNAPSHOT_GIT_BRANCH", "main"),
	}
	if c.CoreURL == "" {
		return nil, fmt.Errorf("DEPTEX_CORE_URL is required")
	}

	if scopes := os.Getenv("DEPTEX_SNAPSHOT_SCOPES"); scopes != "" {
		for _, s := range strings.Split(scopes, ",") {
			if s = strings.TrimSpace(s); s != "" {
				c.SnapshotScopes = append(c.SnapshotScopes, s)
			}
		}
	}

	debounceStr := envOrDefault("DEPTEX_GRAPH_DEBOUNCE", "40ms")
	d, err := time.ParseDuration(debounceStr)
	if err != nil {
		return nil, fmt.Errorf("DEPTEX_GRAPH_DEBOUNCE: %w", err)
	}
	c.GraphDebounce = d

	intervalStr := envOrDefault("DEPTEX_SNAPSHOT_INTERVAL", "3m")
	if intervalStr != "" {
		d, err := time.ParseDuration(intervalStr)
		if err != nil {
			return nil, fmt.Errorf("DEPTEX_SNAPSHOT_INTERVAL: %w", err)
		}
		c.SnapshotInterval = d
	}

	return c, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
