//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package provider

import (
	"net/http"
	"time"

	"trpc.group/trpc-go/trpc-search-agent-go/model/openai"
)

// Option configures how a model instance should be constructed.
type Option func(*Options)

// Options contains resolved settings used when constructing provider-backed models.
type Options struct {
	ProviderName        string            // ProviderName is the provider identifier passed to Model.
	ModelName           string            // ModelName is the concrete model identifier.
	APIKey              string            // APIKey holds the credential used for downstream SDK initialization.
	BaseURL             string            // BaseURL overrides the default endpoint when specified.
	HTTPClientTransport http.RoundTripper // HTTPClientTransport allows customizing the HTTP transport.
	HTTPClientTimeout   time.Duration     // HTTPClientTimeout bounds each HTTP call; zero relies on the context.
	ExtraFields         map[string]any    // ExtraFields are serialized into provider-specific request payloads.
	OpenAIOption        []openai.Option   // OpenAIOption stores additional OpenAI options.
}

// WithAPIKey sets the API key used by the provider.
func WithAPIKey(key string) Option {
	return func(o *Options) { o.APIKey = key }
}

// WithBaseURL overrides the provider endpoint.
func WithBaseURL(url string) Option {
	return func(o *Options) { o.BaseURL = url }
}

// WithHTTPClientTransport sets a custom transport on the provider HTTP client.
func WithHTTPClientTransport(rt http.RoundTripper) Option {
	return func(o *Options) { o.HTTPClientTransport = rt }
}

// WithHTTPClientTimeout sets an overall timeout on the provider HTTP client.
func WithHTTPClientTimeout(d time.Duration) Option {
	return func(o *Options) { o.HTTPClientTimeout = d }
}

// WithExtraFields adds extra request body fields.
func WithExtraFields(fields map[string]any) Option {
	return func(o *Options) {
		if o.ExtraFields == nil {
			o.ExtraFields = make(map[string]any, len(fields))
		}
		for k, v := range fields {
			o.ExtraFields[k] = v
		}
	}
}

// WithOpenAIOption appends raw options for OpenAI-compatible providers.
func WithOpenAIOption(opt ...openai.Option) Option {
	return func(o *Options) { o.OpenAIOption = append(o.OpenAIOption, opt...) }
}
