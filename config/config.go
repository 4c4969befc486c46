//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package config loads the YAML configuration of the search agent.
//
// Credentials never live in the file: each section names the environment
// variable holding its secret and Load resolves it.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"trpc.group/trpc-go/trpc-search-agent-go/pipeline"
)

// Search backends.
const (
	SearchNone   = "none"
	SearchTavily = "tavily"
	SearchGoogle = "google"
)

// Checkpoint backends.
const (
	CheckpointNone     = "none"
	CheckpointInMemory = "inmemory"
	CheckpointSQLite   = "sqlite"
	CheckpointRedis    = "redis"
)

// Config is the root configuration.
type Config struct {
	Model      ModelConfig      `yaml:"model"`
	Search     SearchConfig     `yaml:"search"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Log        LogConfig        `yaml:"log"`
	Server     ServerConfig     `yaml:"server"`
}

// ModelConfig selects the text generation backend.
type ModelConfig struct {
	// Provider is a name registered in model/provider, e.g. "openai".
	Provider    string        `yaml:"provider"`
	Name        string        `yaml:"name"`
	BaseURL     string        `yaml:"base_url"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
	APIKeyEnv   string        `yaml:"api_key_env"`

	// APIKey is resolved from APIKeyEnv.
	APIKey string `yaml:"-"`
}

// SearchConfig selects the web search backend.
type SearchConfig struct {
	Backend     string        `yaml:"backend"`
	BaseURL     string        `yaml:"base_url"`
	MaxResults  int           `yaml:"max_results"`
	Timeout     time.Duration `yaml:"timeout"`
	APIKeyEnv   string        `yaml:"api_key_env"`
	EngineIDEnv string        `yaml:"engine_id_env"`

	APIKey   string `yaml:"-"`
	EngineID string `yaml:"-"`
}

// PipelineConfig configures the stage chain and its policy.
type PipelineConfig struct {
	StopOnFirstFailure bool          `yaml:"stop_on_first_failure"`
	StageTimeout       time.Duration `yaml:"stage_timeout"`
	MaxRetries         int           `yaml:"max_retries"`
	Classification     bool          `yaml:"classification"`
	QualityStages      bool          `yaml:"quality_stages"`
	ContractCheck      bool          `yaml:"contract_check"`
	BatchConcurrency   int           `yaml:"batch_concurrency"`
	// Stages overrides the built-in stage configs by stage name.
	Stages map[string]pipeline.StageConfig `yaml:"stages"`
}

// CheckpointConfig selects where run snapshots are stored.
type CheckpointConfig struct {
	Backend string `yaml:"backend"`
	// DSN is the SQLite data source name.
	DSN string `yaml:"dsn"`
	// URL is the Redis URL.
	URL          string        `yaml:"url"`
	TTL          time.Duration `yaml:"ttl"`
	MaxSnapshots int           `yaml:"max_snapshots"`
	// MaxRuns bounds the runs kept by the inmemory backend.
	MaxRuns int `yaml:"max_runs"`
}

// TelemetryConfig configures the OTLP exporters. An empty endpoint keeps
// telemetry disabled.
type TelemetryConfig struct {
	Endpoint    string `yaml:"endpoint"`
	Protocol    string `yaml:"protocol"`
	ServiceName string `yaml:"service_name"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Provider:  "openai",
			Name:      "gpt-4o",
			APIKeyEnv: "OPENAI_API_KEY",
		},
		Search: SearchConfig{
			Backend:    SearchNone,
			MaxResults: 5,
			Timeout:    30 * time.Second,
		},
		Pipeline: PipelineConfig{
			StopOnFirstFailure: true,
			StageTimeout:       30 * time.Second,
			BatchConcurrency:   4,
		},
		Checkpoint: CheckpointConfig{
			Backend: CheckpointNone,
			TTL:     7 * 24 * time.Hour,
		},
		Telemetry: TelemetryConfig{
			Protocol:    "grpc",
			ServiceName: "trpc-search-agent-go",
		},
		Log:    LogConfig{Level: "info"},
		Server: ServerConfig{Addr: ":8080"},
	}
}

// Load reads the YAML file at path over the defaults, resolves credentials
// from the environment and validates the result. An empty path yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.resolveEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) resolveEnv() {
	if c.Model.APIKeyEnv != "" {
		c.Model.APIKey = os.Getenv(c.Model.APIKeyEnv)
	}
	if c.Search.APIKeyEnv != "" {
		c.Search.APIKey = os.Getenv(c.Search.APIKeyEnv)
	}
	if c.Search.EngineIDEnv != "" {
		c.Search.EngineID = os.Getenv(c.Search.EngineIDEnv)
	}
}

// Validate reports configuration errors.
func (c *Config) Validate() error {
	var errs []error
	if c.Model.Provider == "" {
		errs = append(errs, errors.New("model.provider is empty"))
	}
	if c.Model.Name == "" {
		errs = append(errs, errors.New("model.name is empty"))
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		errs = append(errs, fmt.Errorf("model.temperature %v out of range [0, 2]", c.Model.Temperature))
	}
	switch c.Search.Backend {
	case "", SearchNone, SearchTavily, SearchGoogle:
	default:
		errs = append(errs, fmt.Errorf("unknown search.backend %q", c.Search.Backend))
	}
	switch c.Checkpoint.Backend {
	case "", CheckpointNone, CheckpointInMemory:
	case CheckpointSQLite:
		if c.Checkpoint.DSN == "" {
			errs = append(errs, errors.New("checkpoint.dsn is required for sqlite"))
		}
	case CheckpointRedis:
		if c.Checkpoint.URL == "" {
			errs = append(errs, errors.New("checkpoint.url is required for redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown checkpoint.backend %q", c.Checkpoint.Backend))
	}
	switch c.Telemetry.Protocol {
	case "", "grpc", "http":
	default:
		errs = append(errs, fmt.Errorf("unknown telemetry.protocol %q", c.Telemetry.Protocol))
	}
	if c.Pipeline.MaxRetries < 0 {
		errs = append(errs, errors.New("pipeline.max_retries is negative"))
	}
	if c.Pipeline.BatchConcurrency <= 0 {
		errs = append(errs, errors.New("pipeline.batch_concurrency must be positive"))
	}
	return errors.Join(errs...)
}
