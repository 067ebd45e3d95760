// Package errors - telemetry integration (optional)
package errors

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/getsentry/sentry-go"
)

// TelemetryReporter is an interface for reporting errors to telemetry systems
type TelemetryReporter interface {
	ReportError(ee *EnhancedError)
	IsEnabled() bool
}

var (
	telemetryReporter  TelemetryReporter
	telemetryMutex     sync.RWMutex
	hasActiveReporting atomic.Bool
)

// SetTelemetryReporter installs the reporter used by Build. Passing nil
// disables reporting.
func SetTelemetryReporter(reporter TelemetryReporter) {
	telemetryMutex.Lock()
	defer telemetryMutex.Unlock()
	telemetryReporter = reporter
	hasActiveReporting.Store(reporter != nil && reporter.IsEnabled())
}

// reportToTelemetry forwards the error to the installed reporter, if any.
func reportToTelemetry(ee *EnhancedError) {
	telemetryMutex.RLock()
	reporter := telemetryReporter
	telemetryMutex.RUnlock()

	if reporter == nil || !reporter.IsEnabled() {
		return
	}
	reporter.ReportError(ee)
}

// SentryReporter implements TelemetryReporter for Sentry
type SentryReporter struct {
	enabled bool
}

// NewSentryReporter creates a new Sentry telemetry reporter
func NewSentryReporter(enabled bool) *SentryReporter {
	return &SentryReporter{enabled: enabled}
}

// IsEnabled returns whether Sentry telemetry is enabled
func (sr *SentryReporter) IsEnabled() bool {
	return sr.enabled
}

// ReportError reports an enhanced error to Sentry
func (sr *SentryReporter) ReportError(ee *EnhancedError) {
	if !sr.enabled || ee.IsReported() {
		return
	}

	message := fmt.Sprintf("[%s] %s", ee.Category, ee.Err.Error())

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", ee.GetComponent())
		scope.SetTag("category", string(ee.Category))
		scope.SetTag("error_type", fmt.Sprintf("%T", ee.Err))

		for key, value := range ee.GetContext() {
			scope.SetContext(key, map[string]any{"value": value})
		}

		scope.SetLevel(errorLevel(ee.Category))
		scope.SetFingerprint([]string{ee.GetComponent(), string(ee.Category)})

		sentry.CaptureMessage(message)
	})

	ee.MarkReported()
}

// errorLevel maps error categories to Sentry severity levels
func errorLevel(category ErrorCategory) sentry.Level {
	switch category {
	case CategoryDatabase, CategoryImageStore:
		return sentry.LevelError
	case CategoryInference, CategoryNetwork, CategoryMQTTPublish:
		return sentry.LevelWarning
	case CategoryValidation, CategoryPrecondition, CategoryNotFound:
		return sentry.LevelInfo
	default:
		return sentry.LevelError
	}
}
