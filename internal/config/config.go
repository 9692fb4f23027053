package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// EngineConfig holds interaction tunables. Pixel values are screen pixels;
// minShapeSize is a fraction of the video's native dimensions.
type EngineConfig struct {
	HitTolerancePx         float64 `json:"hitTolerancePx" mapstructure:"hitTolerancePx"`
	DragThresholdPx        float64 `json:"dragThresholdPx" mapstructure:"dragThresholdPx"`
	MinShapeSize           float64 `json:"minShapeSize" mapstructure:"minShapeSize"`
	ImageDropWidthFraction float64 `json:"imageDropWidthFraction" mapstructure:"imageDropWidthFraction"`
}

// SQLiteConfig holds SQLite store backend settings.
type SQLiteConfig struct {
	Path string `json:"path" mapstructure:"path"` // empty means in-memory
}

// WSConfig holds WebSocket store backend settings.
type WSConfig struct {
	URL    string `json:"url" mapstructure:"url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// StoreConfig selects and configures the store backend.
type StoreConfig struct {
	Backend string       `json:"backend" mapstructure:"backend"`
	SQLite  SQLiteConfig `json:"sqlite" mapstructure:"sqlite"`
	WS      WSConfig     `json:"ws" mapstructure:"ws"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("engine.hitTolerancePx", 8.0)
	viper.SetDefault("engine.dragThresholdPx", 4.0)
	viper.SetDefault("engine.minShapeSize", 0.005)
	viper.SetDefault("engine.imageDropWidthFraction", 0.25)

	viper.SetDefault("store.backend", "memory")
	viper.SetDefault("store.sqlite.path", "")
	viper.SetDefault("store.ws.url", "ws://localhost:5001/ws")
	viper.SetDefault("store.ws.secret", "")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "annotate")

	viper.SetDefault("hub.listenAddr", ":5001")
	viper.SetDefault("hub.secret", "")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", false)

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "annotate-metrics")
	viper.SetDefault("influx.bucket", "review-sessions")

	viper.SetConfigName("annotate.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetEngineConfig returns the typed interaction tunables.
func GetEngineConfig() EngineConfig {
	return EngineConfig{
		HitTolerancePx:         viper.GetFloat64("engine.hitTolerancePx"),
		DragThresholdPx:        viper.GetFloat64("engine.dragThresholdPx"),
		MinShapeSize:           viper.GetFloat64("engine.minShapeSize"),
		ImageDropWidthFraction: viper.GetFloat64("engine.imageDropWidthFraction"),
	}
}

// GetStoreConfig returns the typed store backend selection.
func GetStoreConfig() StoreConfig {
	return StoreConfig{
		Backend: viper.GetString("store.backend"),
		SQLite: SQLiteConfig{
			Path: viper.GetString("store.sqlite.path"),
		},
		WS: WSConfig{
			URL:    viper.GetString("store.ws.url"),
			Secret: viper.GetString("store.ws.secret"),
		},
	}
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetFloat returns a float config value.
func GetFloat(key string) float64 {
	return viper.GetFloat64(key)
}
