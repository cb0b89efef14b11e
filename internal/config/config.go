package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Audit backends.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Disabled turns off an optional listener address.
const Disabled = "off"

type Config struct {
	HTTPAddr  string // GATEPASS_HTTP_ADDR (default ":8080")
	GRPCAddr  string // GATEPASS_GRPC_ADDR (default ":9090"; "off" = no health listener)
	AuthToken string // GATEPASS_AUTH_TOKEN (optional, empty = auth disabled)
	NATSURL   string // GATEPASS_NATS_URL (optional, empty = no NATS events)

	AuthorityURL      string         // GATEPASS_AUTHORITY_URL (required)
	AuthorityAction   string         // GATEPASS_AUTHORITY_ACTION
	AuthorityTimeout  time.Duration  // GATEPASS_AUTHORITY_TIMEOUT (default 10s)
	AuthorityLocation *time.Location // GATEPASS_AUTHORITY_TZ (default UTC)

	Policy     string // GATEPASS_POLICY (default "v1")
	PolicyFile string // GATEPASS_POLICY_FILE (optional TOML/YAML override)

	AuditBackend string // GATEPASS_AUDIT_BACKEND (file, postgres, memory; default file)
	AuditDir     string // GATEPASS_AUDIT_DIR (default "logs")
	DatabaseURL  string // GATEPASS_DATABASE_URL (required for postgres)

	ForwardURL     string        // GATEPASS_FORWARD_URL (optional, empty = forwarding off)
	ForwardTimeout time.Duration // GATEPASS_FORWARD_TIMEOUT (default 5s)

	// Archive settings
	ArchiveInterval   time.Duration // GATEPASS_ARCHIVE_INTERVAL (default 0 = disabled)
	ArchiveS3Bucket   string        // GATEPASS_ARCHIVE_S3_BUCKET (enables S3 when set)
	ArchiveS3Endpoint string        // GATEPASS_ARCHIVE_S3_ENDPOINT (custom endpoint for MinIO)
	ArchiveS3Region   string        // GATEPASS_ARCHIVE_S3_REGION (default "us-east-1")
	ArchiveS3Key      string        // GATEPASS_ARCHIVE_S3_KEY (default "gatepass/audit.jsonl")
	ArchiveGitRepo    string        // GATEPASS_ARCHIVE_GIT_REPO (enables git when set; path to clone)
	ArchiveGitFile    string        // GATEPASS_ARCHIVE_GIT_FILE (default "gatepass-audit.jsonl")
	ArchiveGitBranch  string        // GATEPASS_ARCHIVE_GIT_BRANCH (default "main")
}

func Load() (*Config, error) {
	c := &Config{
		HTTPAddr:          envOrDefault("GATEPASS_HTTP_ADDR", ":8080"),
		GRPCAddr:          envOrDefault("GATEPASS_GRPC_ADDR", ":9090"),
		AuthToken:         os.Getenv("GATEPASS_AUTH_TOKEN"),
		NATSURL:           os.Getenv("GATEPASS_NATS_URL"),
		AuthorityURL:      os.Getenv("GATEPASS_AUTHORITY_URL"),
		AuthorityAction:   envOrDefault("GATEPASS_AUTHORITY_ACTION", "http://tempuri.org/GetPermitDetails"),
		Policy:            envOrDefault("GATEPASS_POLICY", "v1"),
		PolicyFile:        os.Getenv("GATEPASS_POLICY_FILE"),
		AuditBackend:      strings.ToLower(envOrDefault("GATEPASS_AUDIT_BACKEND", BackendFile)),
		AuditDir:          envOrDefault("GATEPASS_AUDIT_DIR", "logs"),
		DatabaseURL:       os.Getenv("GATEPASS_DATABASE_URL"),
		ForwardURL:        os.Getenv("GATEPASS_FORWARD_URL"),
		ArchiveS3Bucket:   os.Getenv("GATEPASS_ARCHIVE_S3_BUCKET"),
		ArchiveS3Endpoint: os.Getenv("GATEPASS_ARCHIVE_S3_ENDPOINT"),
		ArchiveS3Region:   envOrDefault("GATEPASS_ARCHIVE_S3_REGION", "us-east-1"),
		ArchiveS3Key:      envOrDefault("GATEPASS_ARCHIVE_S3_KEY", "gatepass/audit.jsonl"),
		ArchiveGitRepo:    os.Getenv("GATEPASS_ARCHIVE_GIT_REPO"),
		ArchiveGitFile:    envOrDefault("GATEPASS_ARCHIVE_GIT_FILE", "gatepass-audit.jsonl"),
		ArchiveGitBranch:  envOrDefault("GATEPASS_ARCHIVE_GIT_BRANCH", "main"),
	}
	if c.AuthorityURL == "" {
		return nil, fmt.Errorf("GATEPASS_AUTHORITY_URL is required")
	}

	var err error
	if c.AuthorityTimeout, err = durationEnv("GATEPASS_AUTHORITY_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if c.ForwardTimeout, err = durationEnv("GATEPASS_FORWARD_TIMEOUT", "5s"); err != nil {
		return nil, err
	}
	if c.ArchiveInterval, err = durationEnv("GATEPASS_ARCHIVE_INTERVAL", "0"); err != nil {
		return nil, err
	}
	if c.AuthorityTimeout <= 0 || c.ForwardTimeout <= 0 {
		return nil, fmt.Errorf("outbound timeouts must be positive")
	}

	tz := envOrDefault("GATEPASS_AUTHORITY_TZ", "UTC")
	if c.AuthorityLocation, err = time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("GATEPASS_AUTHORITY_TZ: %w", err)
	}

	switch c.AuditBackend {
	case BackendFile, BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return nil, fmt.Errorf("GATEPASS_DATABASE_URL is required for the postgres audit backend")
		}
	default:
		return nil, fmt.Errorf("GATEPASS_AUDIT_BACKEND: unknown backend %q (file, postgres, memory)", c.AuditBackend)
	}

	return c, nil
}

// GRPCEnabled reports whether the health listener should start.
func (c *Config) GRPCEnabled() bool {
	return c.GRPCAddr != "" && c.GRPCAddr != Disabled
}

// ArchiveEnabled reports whether periodic export has an interval and at
// least one destination.
func (c *Config) ArchiveEnabled() bool {
	return c.ArchiveInterval > 0 && (c.ArchiveS3Bucket != "" || c.ArchiveGitRepo != "")
}

func durationEnv(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
