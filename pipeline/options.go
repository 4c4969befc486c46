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
	"time"

	"github.com/google/uuid"
)

const (
	defaultStageTimeout         = 30 * time.Second
	defaultRetryInitialInterval = 500 * time.Millisecond
)

type options struct {
	stopOnFirstFailure   bool
	stageTimeout         time.Duration
	maxRetries           int
	retryInitialInterval time.Duration
	checkpointSaver      CheckpointSaver
	contractCheck        bool
	runIDGenerator       func() string
}

var defaultOptions = options{
	stopOnFirstFailure:   true,
	stageTimeout:         defaultStageTimeout,
	retryInitialInterval: defaultRetryInitialInterval,
	runIDGenerator:       uuid.NewString,
}

// Option configures an Orchestrator.
type Option func(*options)

// WithStopOnFirstFailure selects the failure policy. When true (the default)
// the chain halts at the first failed stage. When false the remaining stages
// still run and see the failed stage's fields empty.
func WithStopOnFirstFailure(stop bool) Option {
	return func(o *options) { o.stopOnFirstFailure = stop }
}

// WithStageTimeout sets the deadline of each stage attempt. Non-positive
// values keep the 30s default.
func WithStageTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.stageTimeout = d
		}
	}
}

// WithMaxRetries sets how many times a stage that failed with a generation
// error or a timeout is retried. Parse failures are never retried.
func WithMaxRetries(n int) Option {
	return func(o *options) {
		if n < 0 {
			n = 0
		}
		o.maxRetries = n
	}
}

// WithRetryInitialInterval sets the first backoff interval between retries.
func WithRetryInitialInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.retryInitialInterval = d
		}
	}
}

// WithCheckpointSaver persists a snapshot after every stage.
func WithCheckpointSaver(saver CheckpointSaver) Option {
	return func(o *options) { o.checkpointSaver = saver }
}

// WithContractCheck makes the orchestrator panic when a stage modifies the
// state it was given. Meant for development builds and tests.
func WithContractCheck(enabled bool) Option {
	return func(o *options) { o.contractCheck = enabled }
}

// WithRunIDGenerator overrides the uuid based run id generator.
func WithRunIDGenerator(fn func() string) Option {
	return func(o *options) {
		if fn != nil {
			o.runIDGenerator = fn
		}
	}
}
