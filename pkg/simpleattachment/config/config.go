package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/tendant/simple-attachment/pkg/simpleattachment"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:           "8080",
		Environment:    "development",
		DatabaseType:   "memory",
		RunMigrations:  true,
		StorageBackend: "memory",
		Storage: StorageConfig{
			Bucket: "attachments",
			Region: "us-east-1",
		},
		ReadURLTTL:           simpleattachment.DefaultReadURLTTL,
		WriteURLTTL:          simpleattachment.DefaultWriteURLTTL,
		ReadURLCacheTTL:      5 * time.Minute,
		ReconcileConcurrency: simpleattachment.DefaultReconcileConcurrency,
		Kafka: KafkaConfig{
			GroupID:         "simple-attachment",
			AttachmentTopic: "polyflix.attachment",
			StorageTopic:    "polyflix.minio.attachment",
			VideoTopic:      "polyflix.video",
			ModuleTopic:     "polyflix.catalog.module",
		},
		AdminRole: "ADMINISTRATOR",
	}
}

// ServerConfig represents server configuration for the simple-attachment service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Database configuration
	DatabaseURL   string
	DatabaseType  string // "memory", "postgres"
	DBSchema      string // Postgres schema to use, empty for the server default
	RunMigrations bool

	// Storage configuration
	StorageBackend string // "memory", "s3", "minio"
	Storage        StorageConfig

	// Presigned URLs
	ReadURLTTL       time.Duration
	WriteURLTTL      time.Duration
	ReadURLCacheSize int // 0 disables the read URL cache
	ReadURLCacheTTL  time.Duration

	ReconcileConcurrency int

	// Messaging; no brokers means events are only logged
	Kafka KafkaConfig

	// Authentication
	JWTSecret string
	AdminRole string
}

// StorageConfig configures the S3 and MinIO storage gateways
type StorageConfig struct {
	Bucket          string
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	UsePathStyle    bool
	CreateBucket    bool
}

// KafkaConfig configures the event transport
type KafkaConfig struct {
	Brokers         []string
	GroupID         string
	AttachmentTopic string
	StorageTopic    string
	VideoTopic      string
	ModuleTopic     string
}

// Enabled reports whether a Kafka cluster is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	if c.DatabaseType != "memory" && c.DatabaseType != "postgres" {
		return errors.New("database_type must be 'memory' or 'postgres'")
	}
	if c.DatabaseType == "postgres" && c.DatabaseURL == "" {
		return errors.New("database_url is required when using postgres")
	}

	switch c.StorageBackend {
	case "memory":
	case "s3", "minio":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage bucket is required for %s", c.StorageBackend)
		}
		if c.StorageBackend == "minio" && c.Storage.Endpoint == "" {
			return errors.New("storage endpoint is required for minio")
		}
	default:
		return fmt.Errorf("unsupported storage backend: %s", c.StorageBackend)
	}

	if c.ReadURLTTL <= 0 || c.WriteURLTTL <= 0 {
		return errors.New("presigned URL TTLs must be positive")
	}
	if c.ReadURLCacheSize < 0 {
		return errors.New("read URL cache size cannot be negative")
	}
	if c.ReadURLCacheSize > 0 && (c.ReadURLCacheTTL <= 0 || c.ReadURLCacheTTL >= c.ReadURLTTL) {
		return errors.New("read URL cache TTL must be positive and shorter than the read URL TTL")
	}

	if c.Kafka.Enabled() {
		if c.Kafka.GroupID == "" {
			return errors.New("kafka group id is required")
		}
		if c.Kafka.AttachmentTopic == "" || c.Kafka.StorageTopic == "" ||
			c.Kafka.VideoTopic == "" || c.Kafka.ModuleTopic == "" {
			return errors.New("kafka topics cannot be empty")
		}
	}

	if c.Environment == "production" && c.JWTSecret == "" {
		return errors.New("jwt secret is required in production")
	}

	return nil
}
