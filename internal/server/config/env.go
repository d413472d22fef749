package config

import (
	"os"
	"strconv"
	"time"
)

// parseEnv overlays VOICEGATE_* environment variables. Values that fail to
// parse are ignored so a bad variable cannot zero out a working setting.
func parseEnv(cfg *Config) {
	if v, ok := os.LookupEnv("VOICEGATE_ADDR"); ok {
		cfg.EndpointAddrHTTP = v
	}
	if v, ok := os.LookupEnv("VOICEGATE_DATABASE_DSN"); ok {
		cfg.DatabaseDSN = v
	}
	if v, ok := os.LookupEnv("VOICEGATE_SECRET_KEY"); ok {
		cfg.SecretKey = v
	}
	if v, ok := os.LookupEnv("VOICEGATE_STORAGE_SECRET"); ok {
		cfg.StorageSecret = v
	}
	if v, ok := os.LookupEnv("VOICEGATE_TOKEN_VALIDITY"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.AccessTokenValidityDuration = d
		}
	}
	if v, ok := os.LookupEnv("VOICEGATE_SCORER_BASE_URL"); ok {
		cfg.ScorerBaseURL = v
	}
	if v, ok := os.LookupEnv("VOICEGATE_SCORER_TIMEOUT"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ScorerTimeout = d
		}
	}
	if v, ok := os.LookupEnv("VOICEGATE_REQUESTS_PER_SECOND"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RequestsPerSecond = f
		}
	}
	if v, ok := os.LookupEnv("VOICEGATE_PURGE_SCHEDULE"); ok {
		cfg.PurgeSchedule = v
	}
	if v, ok := os.LookupEnv("VOICEGATE_RECONCILE_SCHEDULE"); ok {
		cfg.ReconcileSchedule = v
	}
	if v, ok := os.LookupEnv("VOICEGATE_S3_ROOT_USER"); ok {
		cfg.S3RootUser = v
	}
	if v, ok := os.LookupEnv("VOICEGATE_S3_ROOT_PASSWORD"); ok {
		cfg.S3RootPassword = v
	}
	if v, ok := os.LookupEnv("VOICEGATE_S3_BUCKET"); ok {
		cfg.S3Bucket = v
	}
	if v, ok := os.LookupEnv("VOICEGATE_S3_REGION"); ok {
		cfg.S3Region = v
	}
	if v, ok := os.LookupEnv("VOICEGATE_S3_BASE_ENDPOINT"); ok {
		cfg.S3BaseEndpoint = v
	}
}
