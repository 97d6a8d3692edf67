package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

// Load sets defaults and reads the optional JSON config file from
// configDir. Flag values bound by the commands override both.
func Load(configDir string) error {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "")

	viper.SetDefault("db.driver", "sqlite")
	viper.SetDefault("db.path", "")
	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "traffic")

	// Coordinate transform corners and margin for the reference scenario.
	viper.SetDefault("xform.x1", 679.56)
	viper.SetDefault("xform.y1", 966.00)
	viper.SetDefault("xform.x2", 4441.09)
	viper.SetDefault("xform.y2", 9242.02)
	viper.SetDefault("xform.margin", 25.0)

	viper.SetDefault("detect.run", 0)
	viper.SetDefault("detect.ttc", 1.0)
	viper.SetDefault("detect.wholeSeconds", true)
	viper.SetDefault("detect.laneTolerance", 0.1)

	// EPSG code of the network projection; 0 disables geolocation.
	viper.SetDefault("geo.epsg", 0)

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "traffic-metrics")
	viper.SetDefault("influx.bucket", "trace_analysis")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetConfigName("tracetools.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		// The config file is optional; flags and defaults suffice.
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}
