// Package serve implements the serve subcommand: it wires the datastore,
// the external-call adapters and the HTTP API together and runs until
// interrupted.
package serve

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cattle-scans/backend/internal/api"
	"github.com/cattle-scans/backend/internal/artifact"
	"github.com/cattle-scans/backend/internal/breed"
	"github.com/cattle-scans/backend/internal/conf"
	"github.com/cattle-scans/backend/internal/datastore"
	"github.com/cattle-scans/backend/internal/events"
	"github.com/cattle-scans/backend/internal/geolocation"
	"github.com/cattle-scans/backend/internal/inference"
	"github.com/cattle-scans/backend/internal/logging"
	"github.com/cattle-scans/backend/internal/moderation"
	"github.com/cattle-scans/backend/internal/notification"
	"github.com/cattle-scans/backend/internal/observability"
	"github.com/cattle-scans/backend/internal/pipeline"
	"github.com/cattle-scans/backend/internal/review"
	"github.com/cattle-scans/backend/internal/telemetry"
)

// Command creates the serve subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(settings)
		},
	}

	cmd.Flags().StringVar(&settings.WebServer.Port, "port", viper.GetString("webserver.port"), "Port for the web server")
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return cmd
	}

	return cmd
}

func runServer(settings *conf.Settings) error {
	logger := logging.ForService("server")

	if err := telemetry.Init(settings); err != nil {
		logger.Warn("telemetry disabled", "error", err)
	}
	defer telemetry.Flush(2 * time.Second)

	store := datastore.New(settings)
	if store == nil {
		return fmt.Errorf("no database output enabled, enable output.sqlite or output.mysql")
	}
	if err := store.Open(); err != nil {
		return fmt.Errorf("failed to open datastore: %w", err)
	}
	defer func() { _ = store.Close() }()

	metrics, err := observability.NewMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	classifier, err := inference.NewClient(inference.Config{
		URL:         settings.Inference.URL,
		APIKey:      settings.Inference.APIKey,
		Timeout:     settings.Inference.Timeout,
		RateLimitMS: settings.Inference.RateLimitMS,
	})
	if err != nil {
		return fmt.Errorf("failed to create inference client: %w", err)
	}
	defer classifier.Close()

	artifacts, err := artifact.New(context.Background(), artifact.Config{
		Bucket:        settings.Storage.Bucket,
		Region:        settings.Storage.Region,
		Endpoint:      settings.Storage.Endpoint,
		PathStyle:     settings.Storage.PathStyle,
		PublicBaseURL: settings.Storage.PublicBaseURL,
		KeyPrefix:     settings.Storage.KeyPrefix,
	})
	if err != nil {
		return fmt.Errorf("failed to create artifact store: %w", err)
	}

	var resolver geolocation.Resolver
	if settings.Geolocation.Enabled {
		resolver = geolocation.NewHTTPResolver(geolocation.Config{
			URL:     settings.Geolocation.URL,
			Timeout: settings.Geolocation.Timeout,
		})
	}

	var push *notification.PushSender
	if settings.Notification.Push.Enabled {
		push, err = notification.NewPushSender(settings.Notification.Push.URLs, settings.Notification.Push.Timeout)
		if err != nil {
			logger.Warn("push notifications disabled", "error", err)
		}
	}
	notifier := notification.NewService(100, push)

	var publisher events.Publisher
	if settings.Realtime.MQTT.Enabled {
		publisher = events.NewPublisher(settings)
		defer publisher.Disconnect()
	}

	pipelineDeps := pipeline.Deps{
		Classifier: classifier,
		Artifacts:  artifacts,
		Resolver:   resolver,
		Records:    store,
		Notifier:   notifier,
		Publisher:  publisher,
		Metrics:    metrics,
		KeyPrefix:  settings.Storage.KeyPrefix,
	}

	breeds := breed.NewRegistry(store)
	reviews := review.NewCoordinator(store)
	engine := moderation.NewEngine(store, breeds, artifacts, moderation.Config{
		PageSize:  settings.Moderation.PageSize,
		KeyPrefix: settings.Storage.KeyPrefix,
	}, metrics)

	e := echo.New()
	e.HideBanner = true
	e.Debug = settings.WebServer.Debug

	api.New(e, store, settings, pipelineDeps, reviews, engine, breeds, metrics)

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + settings.WebServer.Port
		logger.Info("starting web server", "addr", addr, "version", settings.Version)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("web server failed: %w", err)
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	return nil
}
