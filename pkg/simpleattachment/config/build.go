package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/simple-attachment/pkg/simpleattachment"
	"github.com/tendant/simple-attachment/pkg/simpleattachment/events/kafka"
	"github.com/tendant/simple-attachment/pkg/simpleattachment/repo/memory"
	repopg "github.com/tendant/simple-attachment/pkg/simpleattachment/repo/postgres"
	memorystorage "github.com/tendant/simple-attachment/pkg/simpleattachment/storage/memory"
	miniostorage "github.com/tendant/simple-attachment/pkg/simpleattachment/storage/minio"
	s3storage "github.com/tendant/simple-attachment/pkg/simpleattachment/storage/s3"
)

// ReadinessCheck reports whether a dependency is usable.
type ReadinessCheck func(ctx context.Context) error

// Runtime holds the wired components of a running server.
type Runtime struct {
	Service    simpleattachment.Service
	Reconciler *simpleattachment.Reconciler

	checks  map[string]ReadinessCheck
	closers []func()
}

// Ready runs every readiness check and returns the first failure.
func (r *Runtime) Ready(ctx context.Context) error {
	for name, check := range r.checks {
		if err := check(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// Close releases the runtime's connections in reverse order of creation.
func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// Build wires repository, storage, publisher, service and reconciler from
// the configuration.
func (c *ServerConfig) Build(ctx context.Context, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Runtime{checks: map[string]ReadinessCheck{}}

	repo, err := c.buildRepository(ctx, logger, rt)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}

	storage, err := c.buildStorage(ctx, rt)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to build storage gateway: %w", err)
	}

	options := []simpleattachment.Option{
		simpleattachment.WithRepository(repo),
		simpleattachment.WithStorage(storage),
		simpleattachment.WithPublisher(c.buildPublisher(logger, rt)),
		simpleattachment.WithLogger(logger),
		simpleattachment.WithURLTTLs(c.ReadURLTTL, c.WriteURLTTL),
	}
	if c.ReadURLCacheSize > 0 {
		options = append(options, simpleattachment.WithReadURLCache(
			simpleattachment.NewReadURLCache(c.ReadURLCacheSize, c.ReadURLCacheTTL)))
	}

	svc, err := simpleattachment.New(options...)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Service = svc
	rt.Reconciler = simpleattachment.NewReconciler(svc,
		simpleattachment.WithReconcileLogger(logger),
		simpleattachment.WithReconcileConcurrency(c.ReconcileConcurrency))
	return rt, nil
}

// BuildService creates a Service instance from the server configuration.
// The returned close function releases its connections and must be called
// once the service is no longer used.
func (c *ServerConfig) BuildService(ctx context.Context) (simpleattachment.Service, func(), error) {
	rt, err := c.Build(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	return rt.Service, rt.Close, nil
}

// buildRepository creates a Repository based on the configuration
func (c *ServerConfig) buildRepository(ctx context.Context, logger *slog.Logger, rt *Runtime) (simpleattachment.Repository, error) {
	switch c.DatabaseType {
	case "memory":
		return memory.New(), nil
	case "postgres":
		if c.DatabaseURL == "" {
			return nil, errors.New("database_url is required for postgres")
		}
		if c.RunMigrations {
			if err := repopg.Migrate(withSearchPath(c.DatabaseURL, c.DBSchema), logger); err != nil {
				return nil, err
			}
		}
		cfg, err := pgxpool.ParseConfig(c.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		schema := c.DBSchema
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			if schema == "" {
				return nil
			}
			_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
			return err
		}
		pool, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create pgx pool: %w", err)
		}
		rt.closers = append(rt.closers, pool.Close)
		rt.checks["postgres"] = func(ctx context.Context) error { return pool.Ping(ctx) }
		return repopg.NewWithPool(pool), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

// buildStorage creates the StorageGateway based on the configuration
func (c *ServerConfig) buildStorage(ctx context.Context, rt *Runtime) (simpleattachment.StorageGateway, error) {
	switch c.StorageBackend {
	case "memory":
		return memorystorage.New(c.Storage.Bucket), nil

	case "s3":
		backend, err := s3storage.New(ctx, s3storage.Config{
			Region:                 c.Storage.Region,
			Bucket:                 c.Storage.Bucket,
			AccessKeyID:            c.Storage.AccessKeyID,
			SecretAccessKey:        c.Storage.SecretAccessKey,
			Endpoint:               c.Storage.Endpoint,
			UsePathStyle:           c.Storage.UsePathStyle,
			CreateBucketIfNotExist: c.Storage.CreateBucket,
		})
		if err != nil {
			return nil, err
		}
		rt.checks["storage"] = backend.Ping
		return backend, nil

	case "minio":
		backend, err := miniostorage.New(ctx, miniostorage.Config{
			Endpoint:               c.Storage.Endpoint,
			Bucket:                 c.Storage.Bucket,
			Region:                 c.Storage.Region,
			AccessKeyID:            c.Storage.AccessKeyID,
			SecretAccessKey:        c.Storage.SecretAccessKey,
			UseSSL:                 c.Storage.UseSSL,
			CreateBucketIfNotExist: c.Storage.CreateBucket,
		})
		if err != nil {
			return nil, err
		}
		rt.checks["storage"] = backend.Ping
		return backend, nil

	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", c.StorageBackend)
	}
}

func (c *ServerConfig) buildPublisher(logger *slog.Logger, rt *Runtime) simpleattachment.EventPublisher {
	if !c.Kafka.Enabled() {
		return simpleattachment.NewLoggingPublisher(logger)
	}
	publisher := kafka.NewPublisher(c.Kafka.Brokers, c.Kafka.AttachmentTopic, logger)
	rt.closers = append(rt.closers, func() {
		if err := publisher.Close(); err != nil {
			logger.Error("Failed to close event publisher", "err", err)
		}
	})
	return publisher
}
