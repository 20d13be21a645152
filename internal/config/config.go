// Package config defines the ring node's configuration surface.
package config

import (
	"fmt"
	"time"
)

// Config holds all configuration for a ring node.
type Config struct {
	Host string
	Port int

	// SuccessorListSize is how many successors each node tracks for
	// replication and fault tolerance.
	SuccessorListSize int

	StabilizeInterval    time.Duration
	FixFingersInterval   time.Duration
	FailureCheckInterval time.Duration

	// ReplicationFactor is R: the primary plus R-1 successor replicas.
	ReplicationFactor int
	// ReplicaAsync selects fire-and-forget replica writes over
	// wait-for-all-replicas writes.
	ReplicaAsync bool

	RPCTimeout        time.Duration
	RPCConnectTimeout time.Duration
	RPCMaxRetries     int

	WorkerPoolSize int
	MonitorPort    int

	LogLevel  string
	LogFormat string
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:                 "127.0.0.1",
		Port:                 8440,
		SuccessorListSize:    8,
		StabilizeInterval:    1 * time.Second,
		FixFingersInterval:   3 * time.Second,
		FailureCheckInterval: 2 * time.Second,
		ReplicationFactor:    3,
		ReplicaAsync:         false,
		RPCTimeout:           5 * time.Second,
		RPCConnectTimeout:    1 * time.Second,
		RPCMaxRetries:        3,
		WorkerPoolSize:       8,
		MonitorPort:          8080,
		LogLevel:             "info",
		LogFormat:            "console",
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.MonitorPort < 0 || c.MonitorPort > 65535 {
		return fmt.Errorf("invalid monitor port: %d", c.MonitorPort)
	}
	if c.SuccessorListSize < 1 {
		return fmt.Errorf("successor list size must be >= 1, got %d", c.SuccessorListSize)
	}
	if c.ReplicationFactor < 1 {
		return fmt.Errorf("replication factor must be >= 1, got %d", c.ReplicationFactor)
	}
	if c.ReplicationFactor > c.SuccessorListSize+1 {
		return fmt.Errorf("replication factor %d exceeds successor list size+1 %d", c.ReplicationFactor, c.SuccessorListSize+1)
	}
	if c.WorkerPoolSize < 1 {
		return fmt.Errorf("worker pool size must be >= 1, got %d", c.WorkerPoolSize)
	}
	if c.StabilizeInterval <= 0 {
		return fmt.Errorf("stabilize interval must be positive")
	}
	if c.FixFingersInterval <= 0 {
		return fmt.Errorf("fix-fingers interval must be positive")
	}
	if c.FailureCheckInterval <= 0 {
		return fmt.Errorf("failure check interval must be positive")
	}
	return nil
}
