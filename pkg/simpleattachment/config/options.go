package config

import (
	"fmt"
	"time"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithDatabase configures the database backend
func WithDatabase(dbType, url string) Option {
	return func(c *ServerConfig) error {
		if dbType != "memory" && dbType != "postgres" {
			return fmt.Errorf("database type must be 'memory' or 'postgres', got: %s", dbType)
		}
		if dbType == "postgres" && url == "" {
			return fmt.Errorf("database URL is required for postgres")
		}
		c.DatabaseType = dbType
		c.DatabaseURL = url
		return nil
	}
}

// WithDatabaseSchema sets the Postgres schema
func WithDatabaseSchema(schema string) Option {
	return func(c *ServerConfig) error {
		c.DBSchema = schema
		return nil
	}
}

// WithStorage selects the storage backend and its settings
func WithStorage(backend string, storage StorageConfig) Option {
	return func(c *ServerConfig) error {
		c.StorageBackend = backend
		c.Storage = storage
		return nil
	}
}

// WithURLTTLs sets the presigned URL validity
func WithURLTTLs(read, write time.Duration) Option {
	return func(c *ServerConfig) error {
		if read <= 0 || write <= 0 {
			return fmt.Errorf("URL TTLs must be positive")
		}
		c.ReadURLTTL = read
		c.WriteURLTTL = write
		return nil
	}
}

// WithReadURLCache enables the read URL cache
func WithReadURLCache(size int, ttl time.Duration) Option {
	return func(c *ServerConfig) error {
		c.ReadURLCacheSize = size
		c.ReadURLCacheTTL = ttl
		return nil
	}
}

// WithKafka configures the event transport
func WithKafka(kafka KafkaConfig) Option {
	return func(c *ServerConfig) error {
		c.Kafka = kafka
		return nil
	}
}

// WithJWT sets the token secret and the role granting admin rights
func WithJWT(secret, adminRole string) Option {
	return func(c *ServerConfig) error {
		c.JWTSecret = secret
		if adminRole != "" {
			c.AdminRole = adminRole
		}
		return nil
	}
}
