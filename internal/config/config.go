// Package config defines the configuration structures for PlotAtlas.  Only
// plain data types and validation live in this file; parsing is in loader.go.
package config

import (
	"fmt"
	"time"
)

// Build information, set via -ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// HTTPConfig holds HTTP listener tunables.
type HTTPConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	// SessionRate limits map session creation per client, in requests per
	// second.  Zero disables the limit.
	SessionRate  float64 `mapstructure:"session_rate"`
	SessionBurst int     `mapstructure:"session_burst"`
}

// GRPCConfig holds gRPC listener tunables.
type GRPCConfig struct {
	Host  string `mapstructure:"host"`
	Port  int    `mapstructure:"port"`
	Debug bool   `mapstructure:"debug"`
}

// ServerConfig groups the API server listeners.
type ServerConfig struct {
	HTTP HTTPConfig `mapstructure:"http"`
	GRPC GRPCConfig `mapstructure:"grpc"`
}

// DatabaseConfig holds PostgreSQL connection parameters for the listing store.
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrationPath   string        `mapstructure:"migration_path"`
}

// RedisConfig holds Redis parameters for the feature and icon cache.
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
	TTL          time.Duration `mapstructure:"ttl"`
}

// KafkaConfig holds listing change-event stream parameters.
type KafkaConfig struct {
	Enabled         bool     `mapstructure:"enabled"`
	Brokers         []string `mapstructure:"brokers"`
	GroupID         string   `mapstructure:"group_id"`
	ListingTopic    string   `mapstructure:"listing_topic"`
	DeadLetterTopic string   `mapstructure:"dead_letter_topic"`
	MaxRetries      int      `mapstructure:"max_retries"`
}

// MinIOConfig holds object storage parameters for published marker sprites.
type MinIOConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Endpoint        string        `mapstructure:"endpoint"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	UseSSL          bool          `mapstructure:"use_ssl"`
	Region          string        `mapstructure:"region"`
	Bucket          string        `mapstructure:"bucket"`
	PresignExpiry   time.Duration `mapstructure:"presign_expiry"`
}

// CityReference pins a city name to a reference coordinate.  A list is used
// instead of a map because viper lower-cases map keys.
type CityReference struct {
	Name string  `mapstructure:"name"`
	Lng  float64 `mapstructure:"lng"`
	Lat  float64 `mapstructure:"lat"`
}

// MapConfig holds map view settings.  AccessToken gates the rendering engine;
// leaving it empty is a supported mode that shows the configuration placeholder.
type MapConfig struct {
	AccessToken      string          `mapstructure:"access_token"`
	StyleURL         string          `mapstructure:"style_url"`
	ClusterPadding   int             `mapstructure:"cluster_padding"`
	PlotPadding      int             `mapstructure:"plot_padding"`
	ClusterMaxZoom   float64         `mapstructure:"cluster_max_zoom"`
	PlotMaxZoom      float64         `mapstructure:"plot_max_zoom"`
	ResizeDebounce   time.Duration   `mapstructure:"resize_debounce"`
	JitterSpan       float64         `mapstructure:"jitter_span"`
	PlaceholderImage string          `mapstructure:"placeholder_image"`
	IconSize         int             `mapstructure:"icon_size"`
	SessionIdleTTL   time.Duration   `mapstructure:"session_idle_ttl"`
	Cities           []CityReference `mapstructure:"cities"`
	// ListingsFile is a JSON array of listings served from memory when the
	// database is disabled.
	ListingsFile string `mapstructure:"listings_file"`
}

// TokenConfigured reports whether the rendering engine may be initialised.
func (m MapConfig) TokenConfigured() bool {
	return m.AccessToken != ""
}

// LogConfig mirrors logging.LogConfig so config has no logging import.
type LogConfig struct {
	Level            string   `mapstructure:"level"`
	Format           string   `mapstructure:"format"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// MonitoringConfig controls the Prometheus endpoint.
type MonitoringConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Path      string `mapstructure:"path"`
}

// WorkerConfig controls cmd/worker.
type WorkerConfig struct {
	HealthPort int `mapstructure:"health_port"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root configuration
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration object.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	MinIO      MinIOConfig      `mapstructure:"minio"`
	Map        MapConfig        `mapstructure:"map"`
	Log        LogConfig        `mapstructure:"log"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Worker     WorkerConfig     `mapstructure:"worker"`
}

// Validate checks cross-field constraints.  Disabled backends are not checked.
// A missing map access token is valid: it selects placeholder mode.
func (c *Config) Validate() error {
	if c.Server.HTTP.Port <= 0 || c.Server.HTTP.Port > 65535 {
		return fmt.Errorf("config: server.http.port %d out of range", c.Server.HTTP.Port)
	}
	if c.Server.GRPC.Port < 0 || c.Server.GRPC.Port > 65535 {
		return fmt.Errorf("config: server.grpc.port %d out of range", c.Server.GRPC.Port)
	}
	if c.Database.Enabled {
		if c.Database.Host == "" {
			return fmt.Errorf("config: database.host is required")
		}
		if c.Database.DBName == "" {
			return fmt.Errorf("config: database.db_name is required")
		}
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required")
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("config: kafka.brokers must not be empty")
		}
		if c.Kafka.ListingTopic == "" {
			return fmt.Errorf("config: kafka.listing_topic is required")
		}
	}
	if c.MinIO.Enabled {
		if c.MinIO.Endpoint == "" || c.MinIO.Bucket == "" {
			return fmt.Errorf("config: minio.endpoint and minio.bucket are required")
		}
	}
	if c.Map.JitterSpan < 0 {
		return fmt.Errorf("config: map.jitter_span must be >= 0")
	}
	if c.Map.ClusterMaxZoom <= 0 || c.Map.PlotMaxZoom <= 0 {
		return fmt.Errorf("config: map zoom ceilings must be positive")
	}
	for i, city := range c.Map.Cities {
		if city.Name == "" {
			return fmt.Errorf("config: map.cities[%d].name is required", i)
		}
		if city.Lat < -90 || city.Lat > 90 || city.Lng < -180 || city.Lng > 180 {
			return fmt.Errorf("config: map.cities[%d] (%s) coordinate out of range", i, city.Name)
		}
	}
	return nil
}

//Personal.AI order the ending
