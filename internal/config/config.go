// package config provides a minimal environment-backed configuration
// loader used by cmd/streamkitctl's bootstrap.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the runtime config values streamkitctl needs to wire a
// stream and, optionally, its CDC sources and Kafka/S3 sinks.
type Config struct {
	ListenAddr string // LISTEN_ADDR (default :8080)

	DatabaseURL string // DATABASE_URL

	KafkaBrokers []string // KAFKA_BROKERS (comma-separated)
	KafkaTopic   string   // KAFKA_TOPIC

	S3Bucket string // S3_BUCKET
	S3Prefix string // S3_PREFIX

	MongoURI string // MONGO_URI

	CDCSourceID             string        // CDC_SOURCE_ID
	CDCDoInitialLoad        bool          // CDC_DO_INITIAL_LOAD
	CDCPollInterval         time.Duration // CDC_POLL_INTERVAL_MS (see note below)
	CDCMaxBackoff           time.Duration // CDC_MAX_BACKOFF_SECONDS
	CDCConfigureCDCOnServer bool          // CDC_CONFIGURE_ON_SERVER

	// OIDC / JWT auth for the status/health HTTP surface.
	JWTIssuer   string // JWT_ISSUER
	JWTAudience string // JWT_AUDIENCE
	RequireAuth bool   // REQUIRE_AUTH
}

// LoadFromEnv reads config values from environment variables and returns
// a Config pointer with sensible defaults applied.
func LoadFromEnv() *Config {
	cfg := &Config{
		ListenAddr:  os.Getenv("LISTEN_ADDR"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		KafkaTopic:  os.Getenv("KAFKA_TOPIC"),
		S3Bucket:    os.Getenv("S3_BUCKET"),
		S3Prefix:    os.Getenv("S3_PREFIX"),
		MongoURI:    os.Getenv("MONGO_URI"),
		CDCSourceID: os.Getenv("CDC_SOURCE_ID"),
		JWTIssuer:   os.Getenv("JWT_ISSUER"),
		JWTAudience: os.Getenv("JWT_AUDIENCE"),
	}

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = splitCommaList(v)
	}

	if v := os.Getenv("CDC_DO_INITIAL_LOAD"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.CDCDoInitialLoad = b
		}
	}
	if v := os.Getenv("REQUIRE_AUTH"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.RequireAuth = b
		}
	}
	if v := os.Getenv("CDC_CONFIGURE_ON_SERVER"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.CDCConfigureCDCOnServer = b
		}
	}

	// CDC_POLL_INTERVAL_MS is read as *total* milliseconds. An earlier
	// revision of this loader truncated the env value to sub-second
	// granularity (effectively dividing by 1000 before use), which made
	// any interval under a second collapse to zero and spin the worker
	// loop; this reads the full millisecond count.
	cfg.CDCPollInterval = 3 * time.Second
	if v := os.Getenv("CDC_POLL_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CDCPollInterval = time.Duration(n) * time.Millisecond
		}
	}

	cfg.CDCMaxBackoff = 30 * time.Second
	if v := os.Getenv("CDC_MAX_BACKOFF_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CDCMaxBackoff = time.Duration(n) * time.Second
		}
	}

	return cfg
}

func splitCommaList(v string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(v); i++ {
		if i == len(v) || v[i] == ',' {
			if item := strings.TrimSpace(v[start:i]); item != "" {
				out = append(out, item)
			}
			start = i + 1
		}
	}
	return out
}
