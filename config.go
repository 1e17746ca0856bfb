// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package audiofork

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the process wide export settings, one per process shared by
// all sessions.
type Config struct {
	Client ClientConfig `yaml:"client"`
	Queue  QueueConfig  `yaml:"queue"`
}

// ClientConfig configures the websocket client.
type ClientConfig struct {
	DialTimeout int `yaml:"dial_timeout"` // seconds
	IdleTimeout int `yaml:"idle_timeout"` // seconds
}

// QueueConfig configures the ingest queue.
type QueueConfig struct {
	Capacity int `yaml:"capacity"`
}

func DefaultConfig() *Config {
	return &Config{
		Client: ClientConfig{
			DialTimeout: 5,
			IdleTimeout: 60,
		},
		Queue: QueueConfig{
			Capacity: DefaultQueueCapacity,
		},
	}
}

// LoadConfig reads a yaml config file, applying defaults for anything the
// file leaves out.
func LoadConfig(path string) (*Config, error) {
	conf := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, conf); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func (c *Config) Validate() error {
	if c.Client.DialTimeout <= 0 {
		return fmt.Errorf("client.dial_timeout must be positive, got %d", c.Client.DialTimeout)
	}
	if c.Client.IdleTimeout < 0 {
		return fmt.Errorf("client.idle_timeout must not be negative, got %d", c.Client.IdleTimeout)
	}
	if c.Queue.Capacity <= 0 {
		return fmt.Errorf("queue.capacity must be positive, got %d", c.Queue.Capacity)
	}
	return nil
}

// WSClientConfig converts the file representation into client options.
func (c *Config) WSClientConfig() WSClientConfig {
	return WSClientConfig{
		DialTimeout: time.Duration(c.Client.DialTimeout) * time.Second,
		IdleTimeout: time.Duration(c.Client.IdleTimeout) * time.Second,
	}
}
