// config.go: settings struct and functions to load and access the CattleScan configuration.
package conf

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Log rotation types for file loggers.
const (
	RotationDaily  = "daily"
	RotationWeekly = "weekly"
	RotationSize   = "size"
)

// LogConfig defines the configuration for a log file
type LogConfig struct {
	Enabled  bool   // true to enable this log
	Path     string // path to log file
	Rotation string // rotation type: daily, weekly or size
	MaxSize  int64  // max size in bytes for size rotation
}

// InferenceSettings contains settings for the remote breed classifier service.
type InferenceSettings struct {
	URL         string        // endpoint accepting image uploads for classification
	APIKey      string        // optional bearer token for the classifier
	Timeout     time.Duration // per-request timeout
	RateLimitMS int           // minimum delay between requests in milliseconds
}

// StorageSettings contains settings for the S3-compatible artifact store.
type StorageSettings struct {
	Bucket        string // bucket name, required
	Region        string // AWS region, defaults to us-east-1
	Endpoint      string // optional custom endpoint (e.g. MinIO)
	PathStyle     bool   // true to force path-style addressing
	PublicBaseURL string // optional base URL for public object links
	KeyPrefix     string // key prefix for uploaded scan images
}

// GeolocationSettings contains settings for the best-effort location resolver.
type GeolocationSettings struct {
	Enabled bool          // true to resolve submission coordinates
	URL     string        // geolocation service endpoint
	Timeout time.Duration // per-request timeout
}

// ModerationSettings contains settings for the reconciliation views.
type ModerationSettings struct {
	PageSize int // fixed page size for unconfirmed/confirmed views
}

// MQTTSettings contains settings for scan event publishing.
type MQTTSettings struct {
	Enabled  bool   // true to enable MQTT publishing
	Broker   string // MQTT broker URL
	Topic    string // topic for scan-created events
	Username string // MQTT username
	Password string // MQTT password
	Retain   bool   // true to retain messages at the broker
}

// PushSettings contains settings for notification push delivery.
type PushSettings struct {
	Enabled bool          // true to push notifications via shoutrrr
	URLs    []string      // shoutrrr service URLs
	Timeout time.Duration // send timeout
}

// SentrySettings contains settings for error telemetry.
type SentrySettings struct {
	Enabled bool   // true to report enhanced errors to Sentry
	DSN     string // Sentry DSN
}

// Settings contains all application settings
type Settings struct {
	Debug bool // true to enable debug mode

	// Runtime values, not stored in config file
	Version   string `yaml:"-"` // Version from build
	BuildDate string `yaml:"-"` // Build date from build

	Main struct {
		Name string    // name of this CattleScan node
		Log  LogConfig // logging configuration
	}

	Inference   InferenceSettings   // remote classifier configuration
	Storage     StorageSettings     // artifact store configuration
	Geolocation GeolocationSettings // location resolver configuration
	Moderation  ModerationSettings  // moderation view configuration

	WebServer struct {
		Debug   bool   // true to enable debug mode
		Enabled bool   // true to enable web server
		Port    string // port for web server
	}

	Realtime struct {
		MQTT MQTTSettings // scan event publishing
	}

	Notification struct {
		Push PushSettings // push notification delivery
	}

	Sentry SentrySettings // error telemetry

	Output struct {
		SQLite struct {
			Enabled bool   // true to enable sqlite output
			Path    string // path to sqlite database
		}

		MySQL struct {
			Enabled  bool   // true to enable mysql output
			Username string // mysql username
			Password string // mysql password
			Database string // mysql database name
			Host     string // mysql host
			Port     string // mysql port
		}
	}
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
	settingsOnce     sync.Once
)

// Load reads the configuration into a new Settings struct.
func Load() (*Settings, error) {
	settings := &Settings{}

	initViper()

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, err
	}

	settingsMutex.Lock()
	settingsInstance = settings
	settingsMutex.Unlock()

	return settings, nil
}

// initViper sets config name, paths and defaults, then reads any config file.
func initViper() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths := configDirs()
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	viper.SetEnvPrefix("cattlescan")
	viper.AutomaticEnv()

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			log.Printf("error reading config file: %v", err)
		}
		// Missing config file is fine, defaults and env vars apply.
	}
}

// configDirs returns the list of directories searched for config.yaml.
func configDirs() []string {
	dirs := []string{"."}
	if configDir, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, filepath.Join(configDir, "cattlescan"))
	}
	dirs = append(dirs, "/etc/cattlescan")
	return dirs
}

// Setting returns the current settings instance, loading defaults if needed.
func Setting() *Settings {
	settingsOnce.Do(func() {
		settingsMutex.RLock()
		loaded := settingsInstance != nil
		settingsMutex.RUnlock()
		if !loaded {
			if _, err := Load(); err != nil {
				log.Printf("error loading settings: %v", err)
			}
		}
	})

	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// GetSettings returns the current settings instance without triggering a load.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// ValidateSettings checks configuration invariants that would otherwise
// surface as runtime failures deep inside the adapters.
func ValidateSettings(settings *Settings) error {
	if settings.Moderation.PageSize <= 0 {
		return fmt.Errorf("moderation.pagesize must be positive, got %d", settings.Moderation.PageSize)
	}
	if settings.Inference.Timeout <= 0 {
		return fmt.Errorf("inference.timeout must be positive, got %v", settings.Inference.Timeout)
	}
	if settings.Output.SQLite.Enabled && settings.Output.MySQL.Enabled {
		return fmt.Errorf("only one of output.sqlite and output.mysql may be enabled")
	}
	if !settings.Output.SQLite.Enabled && !settings.Output.MySQL.Enabled {
		return fmt.Errorf("one of output.sqlite or output.mysql must be enabled")
	}
	return nil
}
