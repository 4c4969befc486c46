//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package searchagent ties the prompt pipeline to a web search backend.
// An Agent runs the chain for a request and, when the chain produced a
// query, issues a single search with it.
package searchagent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"trpc.group/trpc-go/trpc-search-agent-go/log"
	"trpc.group/trpc-go/trpc-search-agent-go/pipeline"
	"trpc.group/trpc-go/trpc-search-agent-go/search"
	"trpc.group/trpc-go/trpc-search-agent-go/telemetry/trace"
)

// Agent runs search requests end to end. It is safe for concurrent use.
type Agent struct {
	orchestrator *pipeline.Orchestrator
	opts         options
	pool         *ants.PoolWithFunc
}

type runParam struct {
	idx     int
	ctx     context.Context
	request string
	agent   *Agent
	results []pipeline.State
	wg      *sync.WaitGroup
}

func (p *runParam) reset() {
	p.idx = 0
	p.ctx = nil
	p.request = ""
	p.agent = nil
	p.results = nil
	p.wg = nil
}

var runParamPool = &sync.Pool{
	New: func() any { return new(runParam) },
}

// New creates an Agent on top of orchestrator.
func New(orchestrator *pipeline.Orchestrator, opts ...Option) (*Agent, error) {
	if orchestrator == nil {
		return nil, errors.New("searchagent: orchestrator is nil")
	}
	o := defaultOptions
	for _, opt := range opts {
		opt(&o)
	}
	pool, err := createRunPool(o.batchConcurrency)
	if err != nil {
		return nil, fmt.Errorf("searchagent: %w", err)
	}
	return &Agent{orchestrator: orchestrator, opts: o, pool: pool}, nil
}

func createRunPool(size int) (*ants.PoolWithFunc, error) {
	if size <= 0 {
		return nil, errors.New("batch concurrency must be greater than 0")
	}
	pool, err := ants.NewPoolWithFunc(size, func(args any) {
		param, ok := args.(*runParam)
		if !ok {
			panic("searchagent run pool args type error")
		}
		wg := param.wg
		defer func() {
			wg.Done()
			param.reset()
			runParamPool.Put(param)
		}()
		param.results[param.idx] = param.agent.Run(param.ctx, param.request)
	})
	if err != nil {
		return nil, fmt.Errorf("create run pool: %w", err)
	}
	return pool, nil
}

// Close releases the batch worker pool.
func (a *Agent) Close() error {
	if a.pool != nil {
		a.pool.Release()
	}
	return nil
}

// Run executes the pipeline for request and, if it completed without
// halting and produced a query, runs one web search with that query.
// A failed search is recorded in the returned state's Errors.
func (a *Agent) Run(ctx context.Context, request string) pipeline.State {
	state := a.orchestrator.Run(ctx, request)
	if a.opts.searchClient == nil || state.Halted || state.Query == "" {
		return state
	}
	return a.search(ctx, state)
}

func (a *Agent) search(ctx context.Context, state pipeline.State) pipeline.State {
	ctx, span := trace.Tracer.Start(ctx, "searchagent.search")
	defer span.End()
	span.SetAttributes(attribute.String("search_agent.run_id", state.RunID))

	ctx, cancel := context.WithTimeout(ctx, a.opts.searchTimeout)
	defer cancel()

	state = state.Clone()
	results, err := a.opts.searchClient.Search(ctx, state.Query)
	if err != nil {
		state.AppendFailure(&pipeline.Error{
			Kind:   pipeline.KindSearch,
			Stage:  pipeline.StageWebSearch,
			Reason: err.Error(),
			Err:    err,
		})
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.WarnfContext(ctx, "pipeline run %s: web search for %q failed: %v", state.RunID, state.Query, err)
		return state
	}
	if results == nil {
		results = []search.Result{}
	}
	state.SearchResults = results
	span.SetAttributes(attribute.Int("search_agent.search_results", len(results)))
	log.DebugfContext(ctx, "pipeline run %s: web search returned %d results", state.RunID, len(results))
	return state
}

// RunBatch runs independent requests concurrently on the agent's worker
// pool. States are returned in request order. The error is non-nil only
// when a request could not be scheduled; its slot then holds a state
// without a run id.
func (a *Agent) RunBatch(ctx context.Context, requests []string) ([]pipeline.State, error) {
	results := make([]pipeline.State, len(requests))
	var (
		wg   sync.WaitGroup
		errs []error
	)
	for idx, request := range requests {
		param := runParamPool.Get().(*runParam)
		param.idx = idx
		param.ctx = ctx
		param.request = request
		param.agent = a
		param.results = results
		param.wg = &wg
		wg.Add(1)
		if err := a.pool.Invoke(param); err != nil {
			wg.Done()
			results[idx] = pipeline.NewState("", request)
			errs = append(errs, fmt.Errorf("submit request %d: %w", idx, err))
			param.reset()
			runParamPool.Put(param)
		}
	}
	wg.Wait()
	return results, errors.Join(errs...)
}
