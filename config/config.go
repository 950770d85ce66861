package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Storage backends accepted by STORAGE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendS3       = "s3"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Database DatabaseConfig
	Redis    RedisConfig
	AWS      AWSConfig
	JWT      JWTConfig
	Ads      AdsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// StorageConfig selects where the ad collection lives.
type StorageConfig struct {
	Backend          string
	Key              string // single key holding the whole collection
	FileDir          string // backend=file
	SQLitePath       string // backend=sqlite
	MemoryQuotaBytes int    // backend=memory; 0 = unlimited
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/adstore?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// AWSConfig holds AWS credentials and the bucket used by backend=s3.
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string // optional, for S3-compatible stores (MinIO etc.)
	Bucket          string
	Prefix          string
}

// JWTConfig holds JWT validation settings. Empty Secret leaves the API open.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// AdsConfig holds ad display settings.
type AdsConfig struct {
	RotateIntervalSec int // 0 disables rotation broadcasts
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Storage: StorageConfig{
			Backend:          strings.ToLower(getEnv("STORAGE_BACKEND", BackendMemory)),
			Key:              getEnv("ADS_STORAGE_KEY", "site_ads_v1"),
			FileDir:          getEnv("STORAGE_FILE_DIR", "data"),
			SQLitePath:       getEnv("SQLITE_PATH", "data/adstore.db"),
			MemoryQuotaBytes: getEnvInt("STORAGE_MEMORY_QUOTA_BYTES", 5*1024*1024),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "adstore"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", "localhost:6379"),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvInt("REDIS_DB", 0),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "adstore:"),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Endpoint:        getEnv("AWS_S3_ENDPOINT", ""),
			Bucket:          getEnv("AWS_S3_BUCKET", "adstore"),
			Prefix:          getEnv("AWS_S3_PREFIX", "kv/"),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", ""),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		Ads: AdsConfig{
			RotateIntervalSec: getEnvInt("ADS_ROTATE_INTERVAL_SEC", 0),
		},
	}

	switch cfg.Storage.Backend {
	case BackendMemory, BackendFile, BackendRedis, BackendPostgres, BackendSQLite, BackendS3:
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.Storage.Backend)
	}
	if strings.TrimSpace(cfg.Storage.Key) == "" {
		return nil, fmt.Errorf("ADS_STORAGE_KEY must not be empty")
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
