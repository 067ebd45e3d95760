// Package telemetry wires optional Sentry error reporting into the enhanced
// error system. Disabled unless explicitly enabled in configuration.
package telemetry

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/cattle-scans/backend/internal/conf"
	"github.com/cattle-scans/backend/internal/errors"
)

// Init configures Sentry from settings and installs the error reporter.
func Init(settings *conf.Settings) error {
	if !settings.Sentry.Enabled || settings.Sentry.DSN == "" {
		errors.SetTelemetryReporter(nil)
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              settings.Sentry.DSN,
		Release:          settings.Version,
		Environment:      environment(settings),
		AttachStacktrace: true,
	})
	if err != nil {
		return fmt.Errorf("initializing sentry: %w", err)
	}

	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	return nil
}

// Flush drains buffered events, used on shutdown.
func Flush(timeout time.Duration) {
	sentry.Flush(timeout)
}

func environment(settings *conf.Settings) string {
	if settings.Debug {
		return "development"
	}
	return "production"
}
