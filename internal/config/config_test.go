package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return NewDefaultConfig()
}

func TestValidate_Defaults(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_MissingTokenIsValid(t *testing.T) {
	cfg := validConfig()
	cfg.Map.AccessToken = ""
	assert.NoError(t, cfg.Validate())
	assert.False(t, cfg.Map.TokenConfigured())

	cfg.Map.AccessToken = "pk.test"
	assert.True(t, cfg.Map.TokenConfigured())
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		substr string
	}{
		{"http port", func(c *Config) { c.Server.HTTP.Port = 70000 }, "server.http.port"},
		{"grpc port", func(c *Config) { c.Server.GRPC.Port = -1 }, "server.grpc.port"},
		{"db host", func(c *Config) { c.Database.Enabled = true; c.Database.Host = "" }, "database.host"},
		{"db name", func(c *Config) { c.Database.Enabled = true; c.Database.DBName = "" }, "database.db_name"},
		{"redis addr", func(c *Config) { c.Redis.Enabled = true; c.Redis.Addr = "" }, "redis.addr"},
		{"kafka brokers", func(c *Config) { c.Kafka.Enabled = true; c.Kafka.Brokers = nil }, "kafka.brokers"},
		{"kafka topic", func(c *Config) { c.Kafka.Enabled = true; c.Kafka.ListingTopic = "" }, "kafka.listing_topic"},
		{"minio bucket", func(c *Config) { c.MinIO.Enabled = true; c.MinIO.Bucket = "" }, "minio.endpoint"},
		{"jitter", func(c *Config) { c.Map.JitterSpan = -0.1 }, "jitter_span"},
		{"zoom", func(c *Config) { c.Map.ClusterMaxZoom = 0 }, "zoom"},
		{"city name", func(c *Config) { c.Map.Cities = []CityReference{{Lng: 1, Lat: 1}} }, "cities[0].name"},
		{"city range", func(c *Config) { c.Map.Cities = []CityReference{{Name: "X", Lng: 200, Lat: 1}} }, "out of range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.substr)
			}
		})
	}
}

func TestValidate_DisabledBackendsSkipped(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Host = ""
	cfg.Redis.Addr = ""
	cfg.Kafka.Brokers = nil
	assert.NoError(t, cfg.Validate())
}

//Personal.AI order the ending
