package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration parsed from environment variables.
type Config struct {
	MediaSecretKey string

	UploadDir  string
	ConvertDir string
	EncryptDir string

	WorkerPoolSize   int
	JobQueueCapacity int

	StabilityGrace      time.Duration
	StabilityInterval   time.Duration
	StabilityMaxRetries int

	LeaseTTL time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	FFprobeTimeout           time.Duration
	FFmpegTimeout            time.Duration
	FrameRate                int
	MaxConcurrentTranscodes  int
	MaxConcurrentEncryptions int

	CatalogDSN string

	S3Enabled      bool
	S3Region       string
	S3Bucket       string
	S3AccessKey    string
	S3SecretKey    string
	S3BaseEndpoint string
	S3KeyPrefix    string

	HTTPAddr string

	RequestsPerSecond float64
	BurstSize         int
	PerIPRPS          float64
	PerIPBurst        int
	AllowedOrigins    []string

	LogLevel string
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
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

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func Load() *Config {
	cfg := &Config{
		MediaSecretKey: getEnv("MEDIA_SECRET_KEY", "change-me"),

		UploadDir:  getEnv("UPLOAD_DIR", "/var/lib/vodvault/upload/vods"),
		ConvertDir: getEnv("CONVERT_DIR", "/var/lib/vodvault/convert/vods"),
		EncryptDir: getEnv("ENCRYPT_DIR", "/var/lib/vodvault/encryption/vods"),

		WorkerPoolSize:   getEnvInt("WORKER_POOL_SIZE", 4),
		JobQueueCapacity: getEnvInt("JOB_QUEUE_CAPACITY", 200),

		StabilityGrace:      getEnvDuration("STABILITY_GRACE", 3*time.Second),
		StabilityInterval:   getEnvDuration("STABILITY_INTERVAL", time.Second),
		StabilityMaxRetries: getEnvInt("STABILITY_MAX_RETRIES", 5),

		LeaseTTL: getEnvDuration("LEASE_TTL", 30*time.Minute),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		FFprobeTimeout:           getEnvDuration("FFPROBE_TIMEOUT", 30*time.Second),
		FFmpegTimeout:            getEnvDuration("FFMPEG_TIMEOUT", 60*time.Minute),
		FrameRate:                getEnvInt("FRAME_RATE", 25),
		MaxConcurrentTranscodes:  getEnvInt("MAX_CONCURRENT_TRANSCODES", 2),
		MaxConcurrentEncryptions: getEnvInt("MAX_CONCURRENT_ENCRYPTIONS", 4),

		CatalogDSN: getEnv("CATALOG_DSN", "/var/lib/vodvault/catalog.db"),

		S3Enabled:      getEnvBool("S3_ENABLED", false),
		S3Region:       getEnv("S3_REGION", "us-east-1"),
		S3Bucket:       getEnv("S3_BUCKET", "vodvault"),
		S3AccessKey:    getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:    getEnv("S3_SECRET_KEY", ""),
		S3BaseEndpoint: getEnv("S3_BASE_ENDPOINT", ""),
		S3KeyPrefix:    getEnv("S3_KEY_PREFIX", "/v1/vol/"),

		HTTPAddr: getEnv("HTTP_ADDR", ":1992"),

		RequestsPerSecond: getEnvFloat("REQUESTS_PER_SECOND", 100),
		BurstSize:         getEnvInt("BURST_SIZE", 200),
		PerIPRPS:          getEnvFloat("PER_IP_RPS", 10),
		PerIPBurst:        getEnvInt("PER_IP_BURST", 20),
		AllowedOrigins:    splitAndTrim(getEnv("ALLOWED_ORIGINS", "*")),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
	return cfg
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	res := make([]string, 0, len(parts))
	for _, p := range parts {
		pt := strings.TrimSpace(p)
		if pt != "" {
			res = append(res, pt)
		}
	}
	return res
}
