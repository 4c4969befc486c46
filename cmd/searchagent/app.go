//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"trpc.group/trpc-go/trpc-search-agent-go/config"
	"trpc.group/trpc-go/trpc-search-agent-go/generator"
	"trpc.group/trpc-go/trpc-search-agent-go/log"
	"trpc.group/trpc-go/trpc-search-agent-go/model/provider"
	"trpc.group/trpc-go/trpc-search-agent-go/pipeline"
	"trpc.group/trpc-go/trpc-search-agent-go/pipeline/checkpoint/inmemory"
	"trpc.group/trpc-go/trpc-search-agent-go/pipeline/checkpoint/redis"
	"trpc.group/trpc-go/trpc-search-agent-go/pipeline/checkpoint/sqlite"
	"trpc.group/trpc-go/trpc-search-agent-go/search"
	"trpc.group/trpc-go/trpc-search-agent-go/search/google"
	"trpc.group/trpc-go/trpc-search-agent-go/search/tavily"
	"trpc.group/trpc-go/trpc-search-agent-go/searchagent"
	"trpc.group/trpc-go/trpc-search-agent-go/telemetry/metric"
	"trpc.group/trpc-go/trpc-search-agent-go/telemetry/trace"
)

// app holds the wired components and what must be released on exit.
type app struct {
	agent   *searchagent.Agent
	saver   pipeline.CheckpointSaver
	closers []func() error
}

func (a *app) close() {
	if a == nil {
		return
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warnf("shutdown: %v", err)
		}
	}
}

// newApp wires every component from cfg. On error the components opened
// so far are released.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}
	if err := a.wire(ctx, cfg); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context, cfg *config.Config) error {
	if err := a.startTelemetry(ctx, cfg.Telemetry); err != nil {
		return err
	}

	gen, err := newGenerator(cfg.Model)
	if err != nil {
		return err
	}
	stages, err := pipeline.DefaultStages(cfg.Pipeline.Stages,
		pipeline.WithClassification(cfg.Pipeline.Classification),
		pipeline.WithQualityStages(cfg.Pipeline.QualityStages),
	)
	if err != nil {
		return fmt.Errorf("build stages: %w", err)
	}

	saver, closeSaver, err := newCheckpointSaver(cfg.Checkpoint)
	if err != nil {
		return err
	}
	if closeSaver != nil {
		a.closers = append(a.closers, closeSaver)
	}
	a.saver = saver

	pipelineOpts := []pipeline.Option{
		pipeline.WithStopOnFirstFailure(cfg.Pipeline.StopOnFirstFailure),
		pipeline.WithStageTimeout(cfg.Pipeline.StageTimeout),
		pipeline.WithMaxRetries(cfg.Pipeline.MaxRetries),
		pipeline.WithContractCheck(cfg.Pipeline.ContractCheck),
	}
	if saver != nil {
		pipelineOpts = append(pipelineOpts, pipeline.WithCheckpointSaver(saver))
	}
	orch, err := pipeline.New(stages, gen, pipelineOpts...)
	if err != nil {
		return err
	}

	agentOpts := []searchagent.Option{
		searchagent.WithSearchTimeout(cfg.Search.Timeout),
		searchagent.WithBatchConcurrency(cfg.Pipeline.BatchConcurrency),
	}
	client, err := newSearchClient(ctx, cfg.Search)
	if err != nil {
		return err
	}
	if client != nil {
		agentOpts = append(agentOpts, searchagent.WithSearchClient(client))
	}
	agent, err := searchagent.New(orch, agentOpts...)
	if err != nil {
		return err
	}
	a.agent = agent
	a.closers = append(a.closers, agent.Close)
	log.Debugf("search agent ready: stages %v", orch.Stages())
	return nil
}

func (a *app) startTelemetry(ctx context.Context, cfg config.TelemetryConfig) error {
	if cfg.Endpoint == "" {
		return nil
	}
	cleanTrace, err := trace.Start(ctx,
		trace.WithEndpoint(cfg.Endpoint),
		trace.WithProtocol(cfg.Protocol),
		trace.WithServiceName(cfg.ServiceName),
	)
	if err != nil {
		return fmt.Errorf("start tracing: %w", err)
	}
	a.closers = append(a.closers, cleanTrace)
	cleanMetric, err := metric.Start(ctx,
		metric.WithEndpoint(cfg.Endpoint),
		metric.WithProtocol(cfg.Protocol),
		metric.WithServiceName(cfg.ServiceName),
	)
	if err != nil {
		return fmt.Errorf("start metrics: %w", err)
	}
	a.closers = append(a.closers, cleanMetric)
	return nil
}

func newGenerator(cfg config.ModelConfig) (*generator.ModelGenerator, error) {
	var opts []provider.Option
	if cfg.APIKey != "" {
		opts = append(opts, provider.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, provider.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, provider.WithHTTPClientTimeout(cfg.Timeout))
	}
	m, err := provider.Model(cfg.Provider, cfg.Name, opts...)
	if err != nil {
		return nil, fmt.Errorf("create model: %w", err)
	}
	genOpts := []generator.Option{generator.WithTemperature(cfg.Temperature)}
	if cfg.MaxTokens > 0 {
		genOpts = append(genOpts, generator.WithMaxTokens(cfg.MaxTokens))
	}
	return generator.New(m, genOpts...)
}

func newSearchClient(ctx context.Context, cfg config.SearchConfig) (search.Client, error) {
	switch cfg.Backend {
	case "", config.SearchNone:
		return nil, nil
	case config.SearchTavily:
		opts := []tavily.Option{tavily.WithMaxResults(cfg.MaxResults)}
		if cfg.APIKey != "" {
			opts = append(opts, tavily.WithAPIKey(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, tavily.WithBaseURL(cfg.BaseURL))
		}
		return tavily.New(opts...)
	case config.SearchGoogle:
		opts := []google.Option{google.WithSize(cfg.MaxResults)}
		if cfg.APIKey != "" {
			opts = append(opts, google.WithAPIKey(cfg.APIKey))
		}
		if cfg.EngineID != "" {
			opts = append(opts, google.WithEngineID(cfg.EngineID))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, google.WithBaseURL(cfg.BaseURL))
		}
		return google.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unknown search backend %q", cfg.Backend)
	}
}

// newCheckpointSaver returns a nil saver when checkpointing is disabled.
func newCheckpointSaver(cfg config.CheckpointConfig) (pipeline.CheckpointSaver, func() error, error) {
	switch cfg.Backend {
	case "", config.CheckpointNone:
		return nil, nil, nil
	case config.CheckpointInMemory:
		s := inmemory.NewSaver()
		if cfg.MaxSnapshots > 0 {
			s = s.WithMaxSnapshotsPerRun(cfg.MaxSnapshots)
		}
		if cfg.MaxRuns > 0 {
			s = s.WithMaxRuns(cfg.MaxRuns)
		}
		return s, nil, nil
	case config.CheckpointSQLite:
		db, err := sql.Open("sqlite3", cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite %s: %w", cfg.DSN, err)
		}
		db.SetMaxOpenConns(1)
		s, err := sqlite.NewSaver(db)
		if err != nil {
			return nil, nil, errors.Join(err, db.Close())
		}
		return s, db.Close, nil
	case config.CheckpointRedis:
		s, err := redis.NewSaver(redis.WithRedisClientURL(cfg.URL), redis.WithTTL(cfg.TTL))
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown checkpoint backend %q", cfg.Backend)
	}
}
