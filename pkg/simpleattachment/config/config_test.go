package config

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-attachment/pkg/simpleattachment"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "memory", cfg.DatabaseType)
	assert.Equal(t, "memory", cfg.StorageBackend)
	assert.Equal(t, "attachments", cfg.Storage.Bucket)
	assert.Equal(t, time.Hour, cfg.ReadURLTTL)
	assert.Equal(t, time.Hour, cfg.WriteURLTTL)
	assert.False(t, cfg.Kafka.Enabled())
	assert.Equal(t, "polyflix.minio.attachment", cfg.Kafka.StorageTopic)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    []Option
		wantErr string
	}{
		{
			name:    "postgres without url",
			opts:    []Option{func(c *ServerConfig) error { c.DatabaseType = "postgres"; return nil }},
			wantErr: "database_url is required",
		},
		{
			name:    "unknown storage",
			opts:    []Option{WithStorage("gcs", StorageConfig{Bucket: "b"})},
			wantErr: "unsupported storage backend",
		},
		{
			name:    "minio without endpoint",
			opts:    []Option{WithStorage("minio", StorageConfig{Bucket: "b"})},
			wantErr: "endpoint is required",
		},
		{
			name:    "cache outliving urls",
			opts:    []Option{WithReadURLCache(100, 2*time.Hour)},
			wantErr: "cache TTL",
		},
		{
			name:    "production without jwt secret",
			opts:    []Option{WithEnvironment("production")},
			wantErr: "jwt secret",
		},
		{
			name:    "kafka with empty topic",
			opts:    []Option{WithKafka(KafkaConfig{Brokers: []string{"localhost:9092"}, GroupID: "g"})},
			wantErr: "topics",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.opts...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWithEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/attachments")
	t.Setenv("STORAGE_BACKEND", "MinIO")
	t.Setenv("STORAGE_ENDPOINT", "localhost:9000")
	t.Setenv("READ_URL_TTL", "30m")
	t.Setenv("READ_URL_CACHE_SIZE", "256")
	t.Setenv("READ_URL_CACHE_TTL", "1m")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load(WithEnv())
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "postgres", cfg.DatabaseType)
	assert.Equal(t, "minio", cfg.StorageBackend)
	assert.Equal(t, "localhost:9000", cfg.Storage.Endpoint)
	assert.Equal(t, 30*time.Minute, cfg.ReadURLTTL)
	assert.Equal(t, time.Hour, cfg.WriteURLTTL)
	assert.Equal(t, 256, cfg.ReadURLCacheSize)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "polyflix.video", cfg.Kafka.VideoTopic)
	assert.Equal(t, "ADMINISTRATOR", cfg.AdminRole)
}

func TestWithEnvRejectsUnknownDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "mysql://localhost/db")
	_, err := Load(WithEnv())
	assert.ErrorContains(t, err, "unsupported DATABASE_URL")
}

func TestBuildMemoryRuntime(t *testing.T) {
	ctx := context.Background()
	cfg, err := Load(WithReadURLCache(16, time.Minute))
	require.NoError(t, err)

	rt, err := cfg.Build(ctx, nil)
	require.NoError(t, err)
	defer rt.Close()
	require.NoError(t, rt.Ready(ctx))

	a, err := rt.Service.CreateAttachment(ctx, simpleattachment.CreateAttachmentRequest{
		OwnerID: uuid.New(), Type: simpleattachment.AttachmentTypeLocal, Extension: "mp4",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, a.UploadURL)

	result, err := rt.Reconciler.Reconcile(ctx, simpleattachment.ElementKindVideo,
		simpleattachment.TriggerCreate, "video-1", []string{a.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID.String()}, result.Added)
}

func TestWithSearchPath(t *testing.T) {
	assert.Equal(t, "postgres://h/db", withSearchPath("postgres://h/db", ""))
	assert.Equal(t, "postgres://h/db?search_path=attachments", withSearchPath("postgres://h/db", "attachments"))
	assert.Equal(t, "postgres://h/db?search_path=s&sslmode=disable", withSearchPath("postgres://h/db?sslmode=disable", "s"))
}

func TestBuildServiceReturnsCloser(t *testing.T) {
	ctx := context.Background()
	cfg, err := Load()
	require.NoError(t, err)

	svc, closeFn, err := cfg.BuildService(ctx)
	require.NoError(t, err)
	require.NotNil(t, svc)
	require.NotNil(t, closeFn)
	closeFn()
}

func TestBuildRegistersPublisherCloser(t *testing.T) {
	ctx := context.Background()
	cfg, err := Load(WithKafka(KafkaConfig{
		Brokers:         []string{"localhost:9092"},
		GroupID:         "attachments-test",
		AttachmentTopic: "polyflix.attachment",
		StorageTopic:    "polyflix.minio.attachment",
		VideoTopic:      "polyflix.video",
		ModuleTopic:     "polyflix.catalog.module",
	}))
	require.NoError(t, err)

	rt, err := cfg.Build(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, rt.closers, 1)
	rt.Close()
}
