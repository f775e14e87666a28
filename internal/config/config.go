package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr      string
	PostgresDSN   string
	RedisAddr     string
	QueueKey      string
	ProcessingKey string
	Workers       int

	// StaleClaimAge is how long a queue claim may go unacked before the
	// reaper assumes its worker died and redelivers the job.
	StaleClaimAge time.Duration

	PublicBaseURL string
	ImageStore    string // "postgres" or "s3"
	JPEGQuality   int
	MaxDimension  int // 0 disables downscaling
	MaxUploadMB   int64

	SentryDSN   string
	Environment string

	S3 S3Config
}

type S3Config struct {
	AccountID     string
	Bucket        string
	AccessKeyID   string
	SecretKey     string
	PublicBaseURL string
}

// Load reads configuration from the environment. POSTGRES_DSN and
// REDIS_ADDR are required; everything else has a workable default.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPAddr:      envOr("HTTP_ADDR", ":8080"),
		PostgresDSN:   os.Getenv("POSTGRES_DSN"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		QueueKey:      envOr("REDIS_QUEUE_KEY", "jobs:queue"),
		ProcessingKey: envOr("REDIS_PROCESSING_KEY", "jobs:processing"),
		Workers:       envIntOr("WORKERS", 4),
		StaleClaimAge: time.Duration(envIntOr("STALE_CLAIM_SECONDS", 600)) * time.Second,
		PublicBaseURL: envOr("PUBLIC_BASE_URL", "http://localhost:8080"),
		ImageStore:    envOr("IMAGE_STORE", "postgres"),
		JPEGQuality:   envIntOr("JPEG_QUALITY", 50),
		MaxDimension:  envIntOr("MAX_IMAGE_DIMENSION", 0),
		MaxUploadMB:   int64(envIntOr("MAX_UPLOAD_MB", 32)),
		SentryDSN:     os.Getenv("SENTRY_DSN"),
		Environment:   envOr("ENVIRONMENT", "development"),
		S3: S3Config{
			AccountID:     os.Getenv("S3_ACCOUNT_ID"),
			Bucket:        os.Getenv("S3_BUCKET"),
			AccessKeyID:   os.Getenv("S3_ACCESS_KEY_ID"),
			SecretKey:     os.Getenv("S3_SECRET_ACCESS_KEY"),
			PublicBaseURL: os.Getenv("S3_PUBLIC_BASE_URL"),
		},
	}

	if cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("missing env: POSTGRES_DSN")
	}
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("missing env: REDIS_ADDR")
	}
	if cfg.ImageStore != "postgres" && cfg.ImageStore != "s3" {
		return nil, fmt.Errorf("IMAGE_STORE must be postgres or s3, got %q", cfg.ImageStore)
	}
	return cfg, nil
}

func envOr(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}
