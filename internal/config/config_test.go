package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.NotNil(t, cfg)
	assert.NoError(t, cfg.Validate())
}

func TestConfigFields(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 8440, cfg.Port)
	assert.Equal(t, 8, cfg.SuccessorListSize)
	assert.Equal(t, 3, cfg.ReplicationFactor)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
}

func TestConfigValidation(t *testing.T) {
	base := func() *Config {
		c := DefaultConfig()
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid config", func(c *Config) {}, false},
		{"invalid port (negative)", func(c *Config) { c.Port = -1 }, true},
		{"invalid port (too large)", func(c *Config) { c.Port = 70000 }, true},
		{"invalid monitor port", func(c *Config) { c.MonitorPort = -1 }, true},
		{"zero successor list", func(c *Config) { c.SuccessorListSize = 0 }, true},
		{"zero replication factor", func(c *Config) { c.ReplicationFactor = 0 }, true},
		{"replication factor too large", func(c *Config) { c.ReplicationFactor = 100 }, true},
		{"zero worker pool", func(c *Config) { c.WorkerPoolSize = 0 }, true},
		{"zero stabilize interval", func(c *Config) { c.StabilizeInterval = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
