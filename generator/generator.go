//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package generator defines the text generation capability consumed by the
// pipeline and an adapter that backs it with a model.Model.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"trpc.group/trpc-go/trpc-search-agent-go/model"
)

// Generator turns an ordered list of role-tagged messages into text.
// Implementations must not retry internally and must be safe for
// concurrent use.
type Generator interface {
	Generate(ctx context.Context, messages []model.Message) (string, error)
}

// Func adapts a plain function to the Generator interface.
type Func func(ctx context.Context, messages []model.Message) (string, error)

// Generate implements Generator.
func (f Func) Generate(ctx context.Context, messages []model.Message) (string, error) {
	return f(ctx, messages)
}

// GenerationError reports that the capability call itself failed:
// network, auth, quota or a provider side error.
type GenerationError struct {
	// Reason is a human readable description of the failure.
	Reason string
	// Code is the provider error code when one is available.
	Code string
	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *GenerationError) Error() string {
	var sb strings.Builder
	sb.WriteString("generation failed: ")
	sb.WriteString(e.Reason)
	if e.Code != "" {
		sb.WriteString(" (code ")
		sb.WriteString(e.Code)
		sb.WriteString(")")
	}
	if e.Err != nil && e.Err.Error() != e.Reason {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap returns the underlying error.
func (e *GenerationError) Unwrap() error { return e.Err }

// ModelGenerator is a Generator backed by a model.Model.
type ModelGenerator struct {
	model       model.Model
	temperature *float64
	maxTokens   *int
	stream      bool
}

// New creates a Generator over m.
func New(m model.Model, opts ...Option) (*ModelGenerator, error) {
	if m == nil {
		return nil, errors.New("generator: model is nil")
	}
	o := defaultOptions
	for _, opt := range opts {
		opt(&o)
	}
	g := &ModelGenerator{
		model:  m,
		stream: o.stream,
	}
	if o.temperature != nil {
		t := *o.temperature
		g.temperature = &t
	}
	if o.maxTokens > 0 {
		n := o.maxTokens
		g.maxTokens = &n
	}
	return g, nil
}

// Generate implements Generator. It returns the content of the first
// choice of the final response.
func (g *ModelGenerator) Generate(ctx context.Context, messages []model.Message) (string, error) {
	if len(messages) == 0 {
		return "", &GenerationError{Reason: "no messages"}
	}
	for i, msg := range messages {
		if !msg.Role.IsValid() {
			return "", &GenerationError{Reason: fmt.Sprintf("message %d has invalid role %q", i, msg.Role)}
		}
	}
	req := &model.Request{
		Messages: messages,
		GenerationConfig: model.GenerationConfig{
			Temperature: g.temperature,
			MaxTokens:   g.maxTokens,
			Stream:      g.stream,
		},
	}
	ch, err := g.model.GenerateContent(ctx, req)
	if err != nil {
		return "", &GenerationError{Reason: err.Error(), Err: err}
	}

	var partial strings.Builder
	for {
		select {
		case <-ctx.Done():
			return "", &GenerationError{Reason: "context done", Err: ctx.Err()}
		case rsp, ok := <-ch:
			if !ok {
				if err := ctx.Err(); err != nil {
					return "", &GenerationError{Reason: "context done", Err: err}
				}
				if partial.Len() > 0 {
					return partial.String(), nil
				}
				return "", &GenerationError{Reason: "model returned no response"}
			}
			if rsp == nil {
				continue
			}
			if rsp.Error != nil {
				ge := &GenerationError{Reason: rsp.Error.Message, Err: rsp.Error}
				if rsp.Error.Code != nil {
					ge.Code = *rsp.Error.Code
				}
				return "", ge
			}
			if rsp.IsPartial {
				for _, c := range rsp.Choices {
					partial.WriteString(c.Delta.Content)
				}
				continue
			}
			if len(rsp.Choices) > 0 {
				return rsp.Choices[0].Message.Content, nil
			}
			if rsp.Done {
				return partial.String(), nil
			}
		}
	}
}
