package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration loaded from environment variables or config files.
type Config struct {
	AppEnv          string        `mapstructure:"APP_ENV" validate:"required,oneof=development staging production test"`
	HTTPAddr        string        `mapstructure:"HTTP_ADDR" validate:"required,hostname_port"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT" validate:"required"`

	LogLevel  string `mapstructure:"LOG_LEVEL" validate:"required,oneof=debug info warn error dpanic panic fatal"`
	LogFormat string `mapstructure:"LOG_FORMAT" validate:"required,oneof=json console"`

	DatabaseURL string `mapstructure:"DATABASE_URL" validate:"required,url|uri"`

	RedisAddr     string `mapstructure:"REDIS_ADDR" validate:"required,hostname_port"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	AsynqConcurrency int `mapstructure:"ASYNQ_CONCURRENCY" validate:"gte=1,lte=1000"`

	GoMaxProcs int `mapstructure:"GOMAXPROCS" validate:"gte=0,lte=4096"`

	JWTSecret string `mapstructure:"JWT_SECRET"`

	// Object storage
	StorageDriver      string `mapstructure:"STORAGE_DRIVER" validate:"required,oneof=fs gcs s3"`
	StorageRoot        string `mapstructure:"STORAGE_ROOT" validate:"required_if=StorageDriver fs"`
	GCSCredentialsFile string `mapstructure:"GCS_CREDENTIALS_FILE"`
	S3Region           string `mapstructure:"S3_REGION" validate:"required_if=StorageDriver s3"`
	S3Endpoint         string `mapstructure:"S3_ENDPOINT"`
	BucketPrefix       string `mapstructure:"BUCKET_PREFIX"`
	BackupBucket       string `mapstructure:"BACKUP_BUCKET" validate:"required"`

	// Backup engine
	ActivityLogLimit    int   `mapstructure:"ACTIVITY_LOG_LIMIT" validate:"gte=0"`
	ReportActivityLimit int   `mapstructure:"REPORT_ACTIVITY_LIMIT" validate:"gte=0"`
	FileConcurrency     int   `mapstructure:"FILE_CONCURRENCY" validate:"gte=1,lte=256"`
	MaxArchiveBytes     int64 `mapstructure:"MAX_ARCHIVE_BYTES" validate:"gte=1"`
	MaxEntryBytes       int64 `mapstructure:"MAX_ENTRY_BYTES" validate:"gte=1"`
}

var (
	cfg      *Config
	validate = validator.New(validator.WithRequiredStructEnabled())

	keys = []string{
		"APP_ENV",
		"HTTP_ADDR",
		"SHUTDOWN_TIMEOUT",
		"LOG_LEVEL",
		"LOG_FORMAT",
		"DATABASE_URL",
		"REDIS_ADDR",
		"REDIS_PASSWORD",
		"ASYNQ_CONCURRENCY",
		"GOMAXPROCS",
		"JWT_SECRET",
		"STORAGE_DRIVER",
		"STORAGE_ROOT",
		"GCS_CREDENTIALS_FILE",
		"S3_REGION",
		"S3_ENDPOINT",
		"BUCKET_PREFIX",
		"BACKUP_BUCKET",
		"ACTIVITY_LOG_LIMIT",
		"REPORT_ACTIVITY_LIMIT",
		"FILE_CONCURRENCY",
		"MAX_ARCHIVE_BYTES",
		"MAX_ENTRY_BYTES",
	}
)

// Load initializes configuration using Viper. It loads from .env if present,
// applies defaults, binds env vars, and validates the result.
func Load() (*Config, error) {
	// Load .env if present (non-fatal)
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.AutomaticEnv()

	// Defaults
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("HTTP_ADDR", "0.0.0.0:8080")
	v.SetDefault("SHUTDOWN_TIMEOUT", "15s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("REDIS_ADDR", "127.0.0.1:6379")
	v.SetDefault("ASYNQ_CONCURRENCY", 10)
	v.SetDefault("GOMAXPROCS", 0)
	v.SetDefault("STORAGE_DRIVER", "fs")
	v.SetDefault("STORAGE_ROOT", "./data/storage")
	v.SetDefault("BACKUP_BUCKET", "project-backups")
	v.SetDefault("ACTIVITY_LOG_LIMIT", 500)
	v.SetDefault("REPORT_ACTIVITY_LIMIT", 50)
	v.SetDefault("FILE_CONCURRENCY", 8)
	v.SetDefault("MAX_ARCHIVE_BYTES", int64(512<<20))
	v.SetDefault("MAX_ENTRY_BYTES", int64(256<<20))

	// Optional config file
	_ = v.ReadInConfig()

	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}

	// Parse duration types that may come as string
	if s := v.GetString("SHUTDOWN_TIMEOUT"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
		}
		c.ShutdownTimeout = d
	}

	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if c.GoMaxProcs > 0 {
		runtime.GOMAXPROCS(c.GoMaxProcs)
	}

	cfg = &c
	return cfg, nil
}

// MustLoad loads configuration or exits the process on failure.
func MustLoad() *Config {
	c, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	return c
}

// Get returns the loaded configuration. Panics if not loaded.
func Get() *Config {
	if cfg == nil {
		panic("config not loaded: call config.Load or config.MustLoad first")
	}
	return cfg
}
