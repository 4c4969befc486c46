//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-search-agent-go/pipeline"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Model.Provider)
	assert.Equal(t, "gpt-4o", cfg.Model.Name)
	assert.Equal(t, "sk-test", cfg.Model.APIKey)
	assert.True(t, cfg.Pipeline.StopOnFirstFailure)
	assert.Equal(t, 30*time.Second, cfg.Pipeline.StageTimeout)
	assert.Equal(t, SearchNone, cfg.Search.Backend)
	assert.Equal(t, CheckpointNone, cfg.Checkpoint.Backend)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoad_File(t *testing.T) {
	t.Setenv("MY_MODEL_KEY", "model-secret")
	t.Setenv("MY_SEARCH_KEY", "search-secret")
	t.Setenv("MY_ENGINE", "engine-1")

	path := writeConfig(t, `
model:
  provider: deepseek
  name: deepseek-chat
  temperature: 0.2
  api_key_env: MY_MODEL_KEY
search:
  backend: google
  api_key_env: MY_SEARCH_KEY
  engine_id_env: MY_ENGINE
  max_results: 8
pipeline:
  stop_on_first_failure: false
  stage_timeout: 5s
  max_retries: 2
  classification: true
  stages:
    query_synthesis:
      instruction_template: "Query for {{.Request}}"
checkpoint:
  backend: sqlite
  dsn: file:runs.db
log:
  level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "deepseek", cfg.Model.Provider)
	assert.InDelta(t, 0.2, cfg.Model.Temperature, 1e-9)
	assert.Equal(t, "model-secret", cfg.Model.APIKey)
	assert.Equal(t, SearchGoogle, cfg.Search.Backend)
	assert.Equal(t, "search-secret", cfg.Search.APIKey)
	assert.Equal(t, "engine-1", cfg.Search.EngineID)
	assert.Equal(t, 8, cfg.Search.MaxResults)
	assert.False(t, cfg.Pipeline.StopOnFirstFailure)
	assert.Equal(t, 5*time.Second, cfg.Pipeline.StageTimeout)
	assert.Equal(t, 2, cfg.Pipeline.MaxRetries)
	assert.True(t, cfg.Pipeline.Classification)
	require.Contains(t, cfg.Pipeline.Stages, pipeline.StageQuerySynthesis)
	assert.Equal(t, "Query for {{.Request}}", cfg.Pipeline.Stages[pipeline.StageQuerySynthesis].InstructionTemplate)
	assert.Equal(t, CheckpointSQLite, cfg.Checkpoint.Backend)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Unset sections keep their defaults.
	assert.Equal(t, 4, cfg.Pipeline.BatchConcurrency)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{name: "bad yaml", content: "model: [", wantErr: "parse config"},
		{name: "unknown search", content: "search:\n  backend: bing\n", wantErr: `unknown search.backend "bing"`},
		{name: "sqlite without dsn", content: "checkpoint:\n  backend: sqlite\n", wantErr: "checkpoint.dsn"},
		{name: "redis without url", content: "checkpoint:\n  backend: redis\n", wantErr: "checkpoint.url"},
		{name: "temperature", content: "model:\n  temperature: 3\n", wantErr: "model.temperature"},
		{name: "retries", content: "pipeline:\n  max_retries: -1\n", wantErr: "max_retries"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
