//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package searchagent

import (
	"time"

	"trpc.group/trpc-go/trpc-search-agent-go/search"
)

const (
	defaultSearchTimeout    = 30 * time.Second
	defaultBatchConcurrency = 4
)

var defaultOptions = options{
	searchTimeout:    defaultSearchTimeout,
	batchConcurrency: defaultBatchConcurrency,
}

type options struct {
	searchClient     search.Client
	searchTimeout    time.Duration
	batchConcurrency int
}

// Option configures an Agent.
type Option func(*options)

// WithSearchClient sets the web search backend invoked with the synthesized
// query. Without one the agent stops after the pipeline.
func WithSearchClient(c search.Client) Option {
	return func(o *options) {
		o.searchClient = c
	}
}

// WithSearchTimeout bounds the web search call.
func WithSearchTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.searchTimeout = d
		}
	}
}

// WithBatchConcurrency sets how many requests RunBatch processes at once.
func WithBatchConcurrency(n int) Option {
	return func(o *options) {
		o.batchConcurrency = n
	}
}
