package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultHTTPHost        = "0.0.0.0"
	DefaultHTTPPort        = 8080
	DefaultGRPCPort        = 9090
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultSessionBurst    = 5

	DefaultDBHost          = "localhost"
	DefaultDBPort          = 5432
	DefaultDBName          = "plotatlas"
	DefaultDBSSLMode       = "disable"
	DefaultDBMaxOpenConns  = 20
	DefaultDBMaxIdleConns  = 5
	DefaultDBConnLifetime  = 30 * time.Minute
	DefaultDBMigrationPath = "migrations"

	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisPoolSize  = 10
	DefaultRedisKeyPrefix = "plotatlas:"
	DefaultRedisTTL       = 10 * time.Minute

	DefaultKafkaBroker       = "localhost:9092"
	DefaultKafkaGroupID      = "plotatlas-worker"
	DefaultKafkaListingTopic = "listings.changed"
	DefaultKafkaMaxRetries   = 3

	DefaultMinIOEndpoint = "localhost:9000"
	DefaultMinIORegion   = "us-east-1"
	DefaultMinIOBucket   = "plotatlas-sprites"
	DefaultPresignExpiry = time.Hour

	DefaultClusterPadding   = 50
	DefaultPlotPadding      = 80
	DefaultClusterMaxZoom   = 10
	DefaultPlotMaxZoom      = 14
	DefaultResizeDebounce   = 100 * time.Millisecond
	DefaultJitterSpan       = 0.1
	DefaultPlaceholderImage = "/images/plot-placeholder.jpg"
	DefaultIconSize         = 48
	DefaultSessionIdleTTL   = 30 * time.Minute

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultMetricsNamespace = "plotatlas"
	DefaultMetricsPath      = "/metrics"

	DefaultWorkerHealthPort = 8081
)

// ApplyDefaults fills zero-value fields in cfg.  It runs after unmarshalling
// and before Validate.
func ApplyDefaults(cfg *Config) {
	h := &cfg.Server.HTTP
	if h.Host == "" {
		h.Host = DefaultHTTPHost
	}
	if h.Port == 0 {
		h.Port = DefaultHTTPPort
	}
	if h.ReadTimeout == 0 {
		h.ReadTimeout = DefaultReadTimeout
	}
	if h.WriteTimeout == 0 {
		h.WriteTimeout = DefaultWriteTimeout
	}
	if h.ShutdownTimeout == 0 {
		h.ShutdownTimeout = DefaultShutdownTimeout
	}
	if h.SessionRate > 0 && h.SessionBurst <= 0 {
		h.SessionBurst = DefaultSessionBurst
	}
	if len(h.AllowedOrigins) == 0 {
		h.AllowedOrigins = []string{"*"}
	}
	if cfg.Server.GRPC.Port == 0 {
		cfg.Server.GRPC.Port = DefaultGRPCPort
	}

	db := &cfg.Database
	if db.Host == "" {
		db.Host = DefaultDBHost
	}
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.DBName == "" {
		db.DBName = DefaultDBName
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxOpenConns == 0 {
		db.MaxOpenConns = DefaultDBMaxOpenConns
	}
	if db.MaxIdleConns == 0 {
		db.MaxIdleConns = DefaultDBMaxIdleConns
	}
	if db.ConnMaxLifetime == 0 {
		db.ConnMaxLifetime = DefaultDBConnLifetime
	}
	if db.MigrationPath == "" {
		db.MigrationPath = DefaultDBMigrationPath
	}

	r := &cfg.Redis
	if r.Addr == "" {
		r.Addr = DefaultRedisAddr
	}
	if r.PoolSize == 0 {
		r.PoolSize = DefaultRedisPoolSize
	}
	if r.KeyPrefix == "" {
		r.KeyPrefix = DefaultRedisKeyPrefix
	}
	if r.TTL == 0 {
		r.TTL = DefaultRedisTTL
	}

	k := &cfg.Kafka
	if len(k.Brokers) == 0 {
		k.Brokers = []string{DefaultKafkaBroker}
	}
	if k.GroupID == "" {
		k.GroupID = DefaultKafkaGroupID
	}
	if k.ListingTopic == "" {
		k.ListingTopic = DefaultKafkaListingTopic
	}
	if k.DeadLetterTopic == "" {
		k.DeadLetterTopic = k.ListingTopic + ".dlq"
	}
	if k.MaxRetries == 0 {
		k.MaxRetries = DefaultKafkaMaxRetries
	}

	m := &cfg.MinIO
	if m.Endpoint == "" {
		m.Endpoint = DefaultMinIOEndpoint
	}
	if m.Region == "" {
		m.Region = DefaultMinIORegion
	}
	if m.Bucket == "" {
		m.Bucket = DefaultMinIOBucket
	}
	if m.PresignExpiry == 0 {
		m.PresignExpiry = DefaultPresignExpiry
	}

	mp := &cfg.Map
	if mp.ClusterPadding == 0 {
		mp.ClusterPadding = DefaultClusterPadding
	}
	if mp.PlotPadding == 0 {
		mp.PlotPadding = DefaultPlotPadding
	}
	if mp.ClusterMaxZoom == 0 {
		mp.ClusterMaxZoom = DefaultClusterMaxZoom
	}
	if mp.PlotMaxZoom == 0 {
		mp.PlotMaxZoom = DefaultPlotMaxZoom
	}
	if mp.ResizeDebounce == 0 {
		mp.ResizeDebounce = DefaultResizeDebounce
	}
	if mp.JitterSpan == 0 {
		mp.JitterSpan = DefaultJitterSpan
	}
	if mp.PlaceholderImage == "" {
		mp.PlaceholderImage = DefaultPlaceholderImage
	}
	if mp.IconSize == 0 {
		mp.IconSize = DefaultIconSize
	}
	if mp.SessionIdleTTL == 0 {
		mp.SessionIdleTTL = DefaultSessionIdleTTL
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	if cfg.Monitoring.Namespace == "" {
		cfg.Monitoring.Namespace = DefaultMetricsNamespace
	}
	if cfg.Monitoring.Path == "" {
		cfg.Monitoring.Path = DefaultMetricsPath
	}

	if cfg.Worker.HealthPort == 0 {
		cfg.Worker.HealthPort = DefaultWorkerHealthPort
	}
}

// NewDefaultConfig returns a Config populated only with defaults.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

//Personal.AI order the ending
