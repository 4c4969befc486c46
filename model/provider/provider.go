//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package provider constructs model.Model instances from a provider name,
// a model name and credentials.
package provider

import (
	"fmt"
	"sort"
	"sync"

	"trpc.group/trpc-go/trpc-search-agent-go/model"
	"trpc.group/trpc-go/trpc-search-agent-go/model/openai"
)

func init() {
	Register("openai", openaiVariantProvider(openai.VariantOpenAI))
	Register("deepseek", openaiVariantProvider(openai.VariantDeepSeek))
	Register("qwen", openaiVariantProvider(openai.VariantQwen))
}

// Provider builds a model.Model instance.
type Provider func(opts *Options) (model.Model, error)

var (
	providersMu sync.RWMutex                // providersMu guards providers access.
	providers   = make(map[string]Provider) // providers stores provider name to provider mappings.
)

// Register registers a provider by name.
func Register(name string, provider Provider) {
	providersMu.Lock()
	defer providersMu.Unlock()
	providers[name] = provider
}

// Get returns the provider by name.
func Get(name string) (Provider, bool) {
	providersMu.RLock()
	defer providersMu.RUnlock()
	provider, ok := providers[name]
	return provider, ok
}

// Names returns the registered provider names in sorted order.
func Names() []string {
	providersMu.RLock()
	defer providersMu.RUnlock()
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Model constructs a model.Model with the given provider name, model name and options.
func Model(providerName, modelName string, opt ...Option) (model.Model, error) {
	if modelName == "" {
		return nil, fmt.Errorf("provider %s: model name is empty", providerName)
	}
	opts := &Options{
		ProviderName: providerName,
		ModelName:    modelName,
	}
	for _, o := range opt {
		o(opts)
	}
	provider, ok := Get(providerName)
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", providerName)
	}
	return provider(opts)
}

// openaiVariantProvider builds an OpenAI-compatible model for the given variant.
func openaiVariantProvider(variant openai.Variant) Provider {
	return func(opts *Options) (model.Model, error) {
		res := []openai.Option{openai.WithVariant(variant)}
		if opts.APIKey != "" {
			res = append(res, openai.WithAPIKey(opts.APIKey))
		}
		if opts.BaseURL != "" {
			res = append(res, openai.WithBaseURL(opts.BaseURL))
		}
		var httpOpts []model.HTTPClientOption
		if opts.HTTPClientTransport != nil {
			httpOpts = append(httpOpts, model.WithHTTPClientTransport(opts.HTTPClientTransport))
		}
		if opts.HTTPClientTimeout > 0 {
			httpOpts = append(httpOpts, model.WithHTTPClientTimeout(opts.HTTPClientTimeout))
		}
		if len(httpOpts) > 0 {
			res = append(res, openai.WithHTTPClientOptions(httpOpts...))
		}
		if len(opts.ExtraFields) > 0 {
			res = append(res, openai.WithExtraFields(opts.ExtraFields))
		}
		res = append(res, opts.OpenAIOption...)
		return openai.New(opts.ModelName, res...), nil
	}
}
