// Package config loads service configuration and opens the shared
// infrastructure handles (database, object store).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/llmtuner/llm-tuner-platform/backend/models"
)

// Config holds all configuration for the backend. Values come from an
// optional config.yaml in the working directory and from LLMTUNER_*
// environment variables, env taking precedence.
type Config struct {
	Port        string `mapstructure:"port"`
	DatabaseURL string `mapstructure:"database_url"`

	Minio struct {
		Endpoint  string `mapstructure:"endpoint"`
		AccessKey string `mapstructure:"access_key"`
		SecretKey string `mapstructure:"secret_key"`
		Bucket    string `mapstructure:"bucket"`
		UseSSL    bool   `mapstructure:"use_ssl"`
	} `mapstructure:"minio"`

	AWS struct {
		Region        string `mapstructure:"region"`
		ExecutionRole string `mapstructure:"execution_role"`
		TrainingImage string `mapstructure:"training_image"`
	} `mapstructure:"aws"`

	PollInterval  time.Duration `mapstructure:"poll_interval"`
	PollTimeout   time.Duration `mapstructure:"poll_timeout"`
	SubmitTimeout time.Duration `mapstructure:"submit_timeout"`
	StopTimeout   time.Duration `mapstructure:"stop_timeout"`
	MaxRuntime    time.Duration `mapstructure:"max_runtime"`

	// Default duration assumed for pre-submission cost quotes when the
	// request does not carry one.
	EstimateHours float64 `mapstructure:"estimate_hours"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("port", "8080")
	v.SetDefault("database_url", "")
	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.access_key", "")
	v.SetDefault("minio.secret_key", "")
	v.SetDefault("minio.bucket", "llm-tuner-platform")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("aws.region", "us-east-1")
	v.SetDefault("aws.execution_role", "")
	v.SetDefault("aws.training_image", "763104351884.dkr.ecr.us-east-1.amazonaws.com/huggingface-pytorch-training:2.0.0-transformers4.28.1-gpu-py310-cu118-ubuntu20.04")
	v.SetDefault("poll_interval", 10*time.Second)
	v.SetDefault("poll_timeout", 5*time.Second)
	v.SetDefault("submit_timeout", 30*time.Second)
	v.SetDefault("stop_timeout", 10*time.Second)
	v.SetDefault("max_runtime", 3*time.Hour)
	v.SetDefault("estimate_hours", 3.0)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvPrefix("LLMTUNER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// OpenDatabase connects to Postgres with pooled connections and migrates
// the training job schema.
func (c *Config) OpenDatabase() (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(c.DatabaseURL), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&models.TrainingJob{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return db, nil
}
