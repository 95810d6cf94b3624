package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom log forwarding configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// ServerConfig defines HTTP server behavior.
type ServerConfig struct {
	Port            string
	MaxUploadMB     int64
	ShutdownTimeout time.Duration
}

// AuthConfig defines optional request identity.
type AuthConfig struct {
	JWTSecret string
}

// FilesConfig defines filesystem layout and retention.
type FilesConfig struct {
	UploadDir     string
	DownloadDir   string
	DBPath        string
	RetentionTTL  time.Duration
	SweepInterval time.Duration
}

// ToolsConfig defines external tool behavior and limits.
type ToolsConfig struct {
	GhostscriptPath    string
	LibreOfficeWorkers int
	ConvertTimeout     time.Duration
	CompressTimeout    time.Duration
}

// LimitsConfig defines admission control for heavy operations.
type LimitsConfig struct {
	MaxConcurrentOps int
	AdmissionWait    time.Duration
}

// BreakerConfig defines the redis-backed external tool breaker.
// An empty RedisURL disables the breaker entirely.
type BreakerConfig struct {
	RedisURL    string
	Threshold   int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// RenderConfig defines PDF-to-image rendering parameters.
type RenderConfig struct {
	DPI     int
	Quality int
}

// ArtifactsConfig defines optional S3 mirroring of produced files.
type ArtifactsConfig struct {
	Bucket     string
	Prefix     string
	Region     string
	Passphrase string
}

// Config is the top-level configuration.
type Config struct {
	Server    ServerConfig
	Logging   LoggingConfig
	Axiom     AxiomConfig
	Auth      AuthConfig
	Files     FilesConfig
	Tools     ToolsConfig
	Limits    LimitsConfig
	Breaker   BreakerConfig
	Render    RenderConfig
	Artifacts ArtifactsConfig
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	cfg.Server = ServerConfig{
		Port:            getEnv("PORT", "8080"),
		MaxUploadMB:     int64(parseInt(getEnv("MAX_UPLOAD_MB", "64"), 64)),
		ShutdownTimeout: parseDuration(getEnv("SHUTDOWN_TIMEOUT", "10s"), 10*time.Second),
	}

	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", "logs/easypdf.log"),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_easypdf",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	cfg.Auth = AuthConfig{
		JWTSecret: getEnv("JWT_SECRET", ""),
	}

	dataDir := getEnv("DATA_DIR", "data")
	cfg.Files = FilesConfig{
		UploadDir:     getEnv("UPLOAD_DIR", "uploads"),
		DownloadDir:   getEnv("DOWNLOAD_DIR", "downloads"),
		DBPath:        getEnv("DB_PATH", filepath.Join(dataDir, "easypdf.db")),
		RetentionTTL:  parseDuration(getEnv("RETENTION_TTL", "24h"), 24*time.Hour),
		SweepInterval: parseDuration(getEnv("SWEEP_INTERVAL", "1h"), time.Hour),
	}

	cfg.Tools = ToolsConfig{
		GhostscriptPath:    getEnv("GHOSTSCRIPT_PATH", ""),
		LibreOfficeWorkers: parseInt(getEnv("LIBREOFFICE_WORKERS", "2"), 2),
		ConvertTimeout:     parseDuration(getEnv("CONVERT_TIMEOUT", "180s"), 180*time.Second),
		CompressTimeout:    parseDuration(getEnv("COMPRESS_TIMEOUT", "120s"), 120*time.Second),
	}

	cfg.Limits = LimitsConfig{
		MaxConcurrentOps: parseInt(getEnv("MAX_CONCURRENT_OPS", "4"), 4),
		AdmissionWait:    parseDuration(getEnv("ADMISSION_WAIT", "5s"), 5*time.Second),
	}

	cfg.Breaker = BreakerConfig{
		RedisURL:    getEnv("REDIS_URL", ""),
		Threshold:   parseInt(getEnv("BREAKER_THRESHOLD", "3"), 3),
		BaseBackoff: parseDuration(getEnv("BREAKER_BASE_BACKOFF", "30s"), 30*time.Second),
		MaxBackoff:  parseDuration(getEnv("BREAKER_MAX_BACKOFF", "5m"), 5*time.Minute),
	}

	cfg.Render = RenderConfig{
		DPI:     parseInt(getEnv("RENDER_DPI", "150"), 150),
		Quality: parseInt(getEnv("RENDER_QUALITY", "85"), 85),
	}

	cfg.Artifacts = ArtifactsConfig{
		Bucket:     getEnv("ARTIFACTS_S3_BUCKET", ""),
		Prefix:     getEnv("ARTIFACTS_S3_PREFIX", "easypdf"),
		Region:     getEnv("AWS_REGION", ""),
		Passphrase: getEnv("ARTIFACTS_PASSPHRASE", ""),
	}

	return cfg
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
