// Copyright (c) 2026 VolStory. All rights reserved.
// Author: dev@volstory.app

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (API client, storage) via constructors.
  - Zero Hidden State: No global variables are used to store config.

This ensures the SDK and its tooling are Twelve-Factor compliant by storing
config in the env.
*/
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// # Configuration Schema

// Config holds all runtime configuration for the VolStory SDK and its tools.
type Config struct {

	// Backend API base URL consumed by the SDK's API client.
	APIBaseURL string `env:"API_BASE_URL" envDefault:"http://localhost:8080"`

	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Debug       bool   `env:"DEBUG"       envDefault:"false"`

	// Identity provider (Firebase Identity Toolkit REST surface)
	IdentityAPIKey  string `env:"IDENTITY_API_KEY"`
	IdentityBaseURL string `env:"IDENTITY_BASE_URL" envDefault:"https://identitytoolkit.googleapis.com/v1"`

	// Local persistence. "memory", "file", or "redis".
	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"file"`
	StoragePath    string `env:"STORAGE_PATH"    envDefault:""`
	RedisURL       string `env:"REDIS_URL"       envDefault:""`

	// Dev stub server settings
	ServerPort    string `env:"SERVER_PORT"    envDefault:"8080"`
	SessionSecret string `env:"SESSION_SECRET" envDefault:"volstory-dev-secret"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	return cfg, nil
}

// IsDevelopment reports whether the process is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the process is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
