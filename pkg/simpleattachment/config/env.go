package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// envConfig mirrors the environment variables understood by WithEnv.
type envConfig struct {
	Port        string `env:"PORT" env-default:"8080"`
	Environment string `env:"ENVIRONMENT" env-default:"development"`

	DatabaseURL   string `env:"DATABASE_URL" env-default:"memory"`
	DBSchema      string `env:"DB_SCHEMA"`
	RunMigrations bool   `env:"RUN_MIGRATIONS" env-default:"true"`

	StorageBackend         string `env:"STORAGE_BACKEND" env-default:"memory"`
	StorageBucket          string `env:"STORAGE_BUCKET" env-default:"attachments"`
	StorageEndpoint        string `env:"STORAGE_ENDPOINT"`
	StorageRegion          string `env:"STORAGE_REGION" env-default:"us-east-1"`
	StorageAccessKeyID     string `env:"STORAGE_ACCESS_KEY_ID"`
	StorageSecretAccessKey string `env:"STORAGE_SECRET_ACCESS_KEY"`
	StorageUseSSL          bool   `env:"STORAGE_USE_SSL" env-default:"false"`
	StorageUsePathStyle    bool   `env:"STORAGE_USE_PATH_STYLE" env-default:"true"`
	StorageCreateBucket    bool   `env:"STORAGE_CREATE_BUCKET" env-default:"false"`

	ReadURLTTL       time.Duration `env:"READ_URL_TTL" env-default:"1h"`
	WriteURLTTL      time.Duration `env:"WRITE_URL_TTL" env-default:"1h"`
	ReadURLCacheSize int           `env:"READ_URL_CACHE_SIZE" env-default:"0"`
	ReadURLCacheTTL  time.Duration `env:"READ_URL_CACHE_TTL" env-default:"5m"`

	ReconcileConcurrency int `env:"RECONCILE_CONCURRENCY" env-default:"4"`

	KafkaBrokers         []string `env:"KAFKA_BROKERS" env-separator:","`
	KafkaGroupID         string   `env:"KAFKA_GROUP_ID" env-default:"simple-attachment"`
	KafkaAttachmentTopic string   `env:"KAFKA_ATTACHMENT_TOPIC" env-default:"polyflix.attachment"`
	KafkaStorageTopic    string   `env:"KAFKA_STORAGE_TOPIC" env-default:"polyflix.minio.attachment"`
	KafkaVideoTopic      string   `env:"KAFKA_VIDEO_TOPIC" env-default:"polyflix.video"`
	KafkaModuleTopic     string   `env:"KAFKA_MODULE_TOPIC" env-default:"polyflix.catalog.module"`

	JWTSecret string `env:"JWT_SECRET"`
	AdminRole string `env:"ADMIN_ROLE" env-default:"ADMINISTRATOR"`
}

// WithEnv applies configuration from environment variables.
//
// Database:
//
//	DATABASE_URL - "memory" (default) or "postgres://..." / "postgresql://..."
//	DB_SCHEMA, RUN_MIGRATIONS
//
// Storage:
//
//	STORAGE_BACKEND - memory (default), s3 or minio
//	STORAGE_BUCKET, STORAGE_ENDPOINT, STORAGE_REGION, STORAGE_ACCESS_KEY_ID,
//	STORAGE_SECRET_ACCESS_KEY, STORAGE_USE_SSL, STORAGE_USE_PATH_STYLE,
//	STORAGE_CREATE_BUCKET
//
// Presigned URLs:
//
//	READ_URL_TTL, WRITE_URL_TTL, READ_URL_CACHE_SIZE, READ_URL_CACHE_TTL
//
// Kafka (events are only logged when KAFKA_BROKERS is empty):
//
//	KAFKA_BROKERS (comma separated), KAFKA_GROUP_ID, KAFKA_ATTACHMENT_TOPIC,
//	KAFKA_STORAGE_TOPIC, KAFKA_VIDEO_TOPIC, KAFKA_MODULE_TOPIC
//
// Auth:
//
//	JWT_SECRET, ADMIN_ROLE
func WithEnv() Option {
	return func(c *ServerConfig) error {
		var env envConfig
		if err := cleanenv.ReadEnv(&env); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}

		c.Port = env.Port
		c.Environment = env.Environment

		if err := applyDatabaseURL(env.DatabaseURL, c); err != nil {
			return err
		}
		c.DBSchema = env.DBSchema
		c.RunMigrations = env.RunMigrations

		c.StorageBackend = strings.ToLower(env.StorageBackend)
		c.Storage = StorageConfig{
			Bucket:          env.StorageBucket,
			Endpoint:        env.StorageEndpoint,
			Region:          env.StorageRegion,
			AccessKeyID:     env.StorageAccessKeyID,
			SecretAccessKey: env.StorageSecretAccessKey,
			UseSSL:          env.StorageUseSSL,
			UsePathStyle:    env.StorageUsePathStyle,
			CreateBucket:    env.StorageCreateBucket,
		}

		c.ReadURLTTL = env.ReadURLTTL
		c.WriteURLTTL = env.WriteURLTTL
		c.ReadURLCacheSize = env.ReadURLCacheSize
		c.ReadURLCacheTTL = env.ReadURLCacheTTL
		c.ReconcileConcurrency = env.ReconcileConcurrency

		c.Kafka = KafkaConfig{
			Brokers:         nonEmpty(env.KafkaBrokers),
			GroupID:         env.KafkaGroupID,
			AttachmentTopic: env.KafkaAttachmentTopic,
			StorageTopic:    env.KafkaStorageTopic,
			VideoTopic:      env.KafkaVideoTopic,
			ModuleTopic:     env.KafkaModuleTopic,
		}

		c.JWTSecret = env.JWTSecret
		c.AdminRole = env.AdminRole
		return nil
	}
}

// applyDatabaseURL detects the database type from the URL
func applyDatabaseURL(dbURL string, c *ServerConfig) error {
	switch {
	case dbURL == "" || dbURL == "memory":
		c.DatabaseType = "memory"
		c.DatabaseURL = ""
	case strings.HasPrefix(dbURL, "postgresql://"), strings.HasPrefix(dbURL, "postgres://"):
		c.DatabaseType = "postgres"
		c.DatabaseURL = dbURL
	default:
		return fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory' or 'postgresql://...')", dbURL)
	}
	return nil
}

func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
