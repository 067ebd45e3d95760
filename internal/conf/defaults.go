// defaults.go: viper defaults for all configuration values.
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaultConfig registers defaults for every configuration value.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "CattleScan")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "cattlescan.log")
	viper.SetDefault("main.log.rotation", RotationDaily)
	viper.SetDefault("main.log.maxsize", 10*1024*1024)

	viper.SetDefault("inference.url", "http://localhost:8501/v1/classify")
	viper.SetDefault("inference.apikey", "")
	viper.SetDefault("inference.timeout", 30*time.Second)
	viper.SetDefault("inference.ratelimitms", 100)

	viper.SetDefault("storage.bucket", "")
	viper.SetDefault("storage.region", "us-east-1")
	viper.SetDefault("storage.endpoint", "")
	viper.SetDefault("storage.pathstyle", false)
	viper.SetDefault("storage.publicbaseurl", "")
	viper.SetDefault("storage.keyprefix", "scans")

	viper.SetDefault("geolocation.enabled", true)
	viper.SetDefault("geolocation.url", "http://ip-api.com/json")
	viper.SetDefault("geolocation.timeout", 5*time.Second)

	viper.SetDefault("moderation.pagesize", 8)

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "8080")
	viper.SetDefault("webserver.debug", false)

	viper.SetDefault("realtime.mqtt.enabled", false)
	viper.SetDefault("realtime.mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("realtime.mqtt.topic", "cattlescan/scans")
	viper.SetDefault("realtime.mqtt.username", "")
	viper.SetDefault("realtime.mqtt.password", "")
	viper.SetDefault("realtime.mqtt.retain", false)

	viper.SetDefault("notification.push.enabled", false)
	viper.SetDefault("notification.push.urls", []string{})
	viper.SetDefault("notification.push.timeout", 10*time.Second)

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "cattlescan.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "cattlescan")
	viper.SetDefault("output.mysql.password", "")
	viper.SetDefault("output.mysql.database", "cattlescan")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")
}
