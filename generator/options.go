//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package generator

type options struct {
	temperature *float64
	maxTokens   int
	stream      bool
}

var defaultOptions = options{}

// Option configures a ModelGenerator.
type Option func(*options)

// WithTemperature sets the sampling temperature sent with every request.
func WithTemperature(t float64) Option {
	return func(o *options) { o.temperature = &t }
}

// WithMaxTokens caps the number of generated tokens. Zero leaves it to the provider.
func WithMaxTokens(n int) Option {
	return func(o *options) { o.maxTokens = n }
}

// WithStream requests a streamed response; the deltas are concatenated.
func WithStream(stream bool) Option {
	return func(o *options) { o.stream = stream }
}
