//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package search defines the web search capability invoked with the
// query produced by the pipeline.
package search

import (
	"context"
	"fmt"
)

// Result is a single web search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// Client runs a web search for a query.
type Client interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

// ClientFunc adapts a plain function to the Client interface.
type ClientFunc func(ctx context.Context, query string) ([]Result, error)

// Search implements Client.
func (f ClientFunc) Search(ctx context.Context, query string) ([]Result, error) {
	return f(ctx, query)
}

// SearchError reports a failed search call.
type SearchError struct {
	// Backend names the search provider, e.g. "google" or "tavily".
	Backend string
	// Reason is a human readable description of the failure.
	Reason string
	// StatusCode is the HTTP status returned by the backend, zero if none.
	StatusCode int
	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *SearchError) Error() string {
	msg := fmt.Sprintf("%s search failed: %s", e.Backend, e.Reason)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *SearchError) Unwrap() error { return e.Err }
