//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/go-cmp/cmp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"trpc.group/trpc-go/trpc-search-agent-go/generator"
	"trpc.group/trpc-go/trpc-search-agent-go/log"
	"trpc.group/trpc-go/trpc-search-agent-go/telemetry/metric"
	"trpc.group/trpc-go/trpc-search-agent-go/telemetry/trace"
)

// Span attribute keys.
const (
	attrRunID   = "search_agent.run_id"
	attrStage   = "search_agent.stage"
	attrStep    = "search_agent.step"
	attrAttempt = "search_agent.attempts"
	attrOutcome = "search_agent.outcome"
)

// Orchestrator runs an ordered list of stages against a fresh State per
// request. It holds no per-run data and is safe for concurrent use.
type Orchestrator struct {
	stages []Stage
	gen    generator.Generator
	opts   options
}

// New creates an Orchestrator over stages. Stage names must be unique.
func New(stages []Stage, gen generator.Generator, opts ...Option) (*Orchestrator, error) {
	if gen == nil {
		return nil, errors.New("pipeline: generator is nil")
	}
	seen := make(map[string]struct{}, len(stages))
	for i, st := range stages {
		if st == nil {
			return nil, fmt.Errorf("pipeline: stage %d is nil", i)
		}
		if _, ok := seen[st.Name()]; ok {
			return nil, fmt.Errorf("pipeline: duplicate stage %q", st.Name())
		}
		seen[st.Name()] = struct{}{}
	}
	o := defaultOptions
	for _, opt := range opts {
		opt(&o)
	}
	return &Orchestrator{
		stages: append([]Stage(nil), stages...),
		gen:    gen,
		opts:   o,
	}, nil
}

// Stages returns the stage names in execution order.
func (o *Orchestrator) Stages() []string {
	names := make([]string, len(o.stages))
	for i, st := range o.stages {
		names[i] = st.Name()
	}
	return names
}

// Run executes the chain for request and returns the final state, whether
// or not every stage succeeded. Failures are recorded in State.Errors. The
// chain halts at the first failure when the stop-on-first-failure policy is
// set, and always halts once ctx is done.
func (o *Orchestrator) Run(ctx context.Context, request string) State {
	state := NewState(o.opts.runIDGenerator(), request)
	ctx, span := trace.Tracer.Start(ctx, "pipeline.run")
	defer span.End()
	span.SetAttributes(attribute.String(attrRunID, state.RunID))

	log.DebugfContext(ctx, "pipeline run %s started with %d stages", state.RunID, len(o.stages))
	for step, st := range o.stages {
		u, stageErr := o.runStage(ctx, state, step, st)
		if stageErr == nil {
			state = state.Apply(u)
		} else {
			state = state.Clone()
			state.AppendFailure(stageErr)
			log.WarnfContext(ctx, "pipeline run %s: %v", state.RunID, stageErr)
			if o.opts.stopOnFirstFailure || ctx.Err() != nil {
				state.Halted = true
				state.HaltedAt = st.Name()
			}
		}
		o.checkpoint(ctx, step, st.Name(), state)
		if state.Halted {
			break
		}
	}

	outcome := state.Outcome()
	span.SetAttributes(attribute.String(attrOutcome, string(outcome)))
	if outcome != OutcomeComplete {
		span.SetStatus(codes.Error, string(outcome))
	}
	log.DebugfContext(ctx, "pipeline run %s finished: %s", state.RunID, outcome)
	return state
}

// runStage runs one stage with the configured timeout and retries.
func (o *Orchestrator) runStage(ctx context.Context, state State, step int, st Stage) (Update, *Error) {
	name := st.Name()
	ctx, span := trace.Tracer.Start(ctx, "pipeline.stage "+name)
	defer span.End()
	span.SetAttributes(attribute.String(attrStage, name), attribute.Int(attrStep, step))

	start := time.Now()
	var (
		u        Update
		stageErr *Error
		attempts int
	)
	op := func() error {
		attempts++
		log.DebugfContext(ctx, "pipeline run %s: stage %s attempt %d", state.RunID, name, attempts)
		u, stageErr = o.attempt(ctx, state, st)
		if stageErr == nil {
			return nil
		}
		if ctx.Err() != nil || !retryable(stageErr) {
			return backoff.Permanent(stageErr)
		}
		return stageErr
	}
	if o.opts.maxRetries > 0 {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = o.opts.retryInitialInterval
		_ = backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, uint64(o.opts.maxRetries)), ctx))
	} else {
		_ = op()
	}

	var kind string
	span.SetAttributes(attribute.Int(attrAttempt, attempts))
	if stageErr != nil {
		kind = string(stageErr.Kind)
		span.RecordError(stageErr)
		span.SetStatus(codes.Error, stageErr.Error())
	}
	metric.RecordStage(ctx, name, time.Since(start), kind)
	return u, stageErr
}

// attempt runs the stage once under its own deadline.
func (o *Orchestrator) attempt(ctx context.Context, state State, st Stage) (Update, *Error) {
	ctx, cancel := context.WithTimeout(ctx, o.opts.stageTimeout)
	defer cancel()

	var before State
	if o.opts.contractCheck {
		before = state.Clone()
	}
	u, err := st.Run(ctx, state, o.gen)
	if o.opts.contractCheck {
		if diff := cmp.Diff(before, state); diff != "" {
			panic(fmt.Sprintf("pipeline: stage %q modified its input state (-before +after):\n%s", st.Name(), diff))
		}
	}
	if err != nil {
		return Update{}, stageError(st.Name(), err)
	}
	return u, nil
}

func (o *Orchestrator) checkpoint(ctx context.Context, step int, stage string, state State) {
	if o.opts.checkpointSaver == nil {
		return
	}
	snap := Snapshot{
		RunID:     state.RunID,
		Step:      step,
		Stage:     stage,
		State:     state.Clone(),
		CreatedAt: time.Now().UTC(),
	}
	// A cancelled run still records where it stopped.
	if err := o.opts.checkpointSaver.Put(context.WithoutCancel(ctx), snap); err != nil {
		log.WarnfContext(ctx, "pipeline run %s: checkpoint after %s failed: %v", state.RunID, stage, err)
	}
}

func retryable(err *Error) bool {
	return err.Kind == KindGeneration || err.Kind == KindTimeout
}
