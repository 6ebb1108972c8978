package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendant/chi-demo/app"
	"golang.org/x/sync/errgroup"

	"github.com/tendant/simple-attachment/pkg/simpleattachment"
	"github.com/tendant/simple-attachment/pkg/simpleattachment/api"
	"github.com/tendant/simple-attachment/pkg/simpleattachment/config"
	"github.com/tendant/simple-attachment/pkg/simpleattachment/events"
	"github.com/tendant/simple-attachment/pkg/simpleattachment/events/kafka"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(config.WithEnv())
	if err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := cfg.Build(ctx, logger)
	if err != nil {
		slog.Error("Failed to build attachment service", "err", err)
		os.Exit(1)
	}
	defer rt.Close()

	secret := cfg.JWTSecret
	if secret == "" {
		secret = uuid.NewString()
		slog.Warn("JWT_SECRET not set, using a random secret; tokens will not survive a restart")
	}
	auth := jwtauth.New("HS256", []byte(secret), nil)

	consumers := buildConsumers(cfg, rt, logger)
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range consumers {
		c := c
		g.Go(func() error {
			defer c.Close()
			return c.Run(gctx)
		})
	}

	server := app.DefaultApp()

	app.RoutesHealthz(server.R)
	routesHealthzReady(server.R, rt)
	server.R.Handle("/metrics", promhttp.Handler())

	attachmentHandler := api.NewAttachmentHandler(rt.Service, auth, cfg.AdminRole)
	server.R.Route("/api/v1", func(r chi.Router) {
		r.Mount("/attachments", attachmentHandler.Routes())
	})

	slog.Info("Simple Attachment Server starting",
		"environment", cfg.Environment, "database", cfg.DatabaseType,
		"storage", cfg.StorageBackend, "kafka", cfg.Kafka.Enabled())

	// Start server
	server.Run()

	stop()
	if err := g.Wait(); err != nil {
		slog.Error("Event consumer failed", "err", err)
	}
}

// buildConsumers subscribes the storage notification topic and one element
// topic per element kind.
func buildConsumers(cfg *config.ServerConfig, rt *config.Runtime, logger *slog.Logger) []*kafka.Consumer {
	if !cfg.Kafka.Enabled() {
		slog.Warn("KAFKA_BROKERS not set, inbound events are disabled")
		return nil
	}

	consumer := func(topic string, handler events.Handler) *kafka.Consumer {
		return kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers: cfg.Kafka.Brokers,
			GroupID: cfg.Kafka.GroupID,
			Topic:   topic,
		}, handler, logger)
	}

	return []*kafka.Consumer{
		consumer(cfg.Kafka.StorageTopic, events.StorageNotificationHandler(rt.Service, logger)),
		consumer(cfg.Kafka.VideoTopic, events.ElementHandler(rt.Reconciler, simpleattachment.ElementKindVideo, logger)),
		consumer(cfg.Kafka.ModuleTopic, events.ElementHandler(rt.Reconciler, simpleattachment.ElementKindModule, logger)),
	}
}

func routesHealthzReady(r *chi.Mux, rt *config.Runtime) {
	r.Get("/healthz/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := rt.Ready(ctx); err != nil {
			slog.Warn("Readiness check failed", "err", err)
			render.Status(r, http.StatusServiceUnavailable)
			render.PlainText(w, r, err.Error())
			return
		}
		render.PlainText(w, r, http.StatusText(http.StatusOK))
	})
}
