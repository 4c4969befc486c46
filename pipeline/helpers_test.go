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
	"sync"

	"trpc.group/trpc-go/trpc-search-agent-go/generator"
	"trpc.group/trpc-go/trpc-search-agent-go/model"
)

// reply is one scripted generator answer.
type reply struct {
	text string
	err  error
	// block waits for the context to be done before answering.
	block bool
}

// scriptGenerator answers calls from a queue and records the prompts.
type scriptGenerator struct {
	mu      sync.Mutex
	replies []reply
	prompts []string
}

func newScript(replies ...reply) *scriptGenerator {
	return &scriptGenerator{replies: replies}
}

func (g *scriptGenerator) Generate(ctx context.Context, messages []model.Message) (string, error) {
	g.mu.Lock()
	if len(messages) > 0 {
		g.prompts = append(g.prompts, messages[0].Content)
	}
	if len(g.replies) == 0 {
		g.mu.Unlock()
		return "", &generator.GenerationError{Reason: "unexpected call"}
	}
	r := g.replies[0]
	g.replies = g.replies[1:]
	g.mu.Unlock()

	if r.block {
		<-ctx.Done()
		return "", &generator.GenerationError{Reason: "context done", Err: ctx.Err()}
	}
	return r.text, r.err
}

func (g *scriptGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

func text(s string) reply { return reply{text: s} }

func fail(reason string) reply {
	return reply{err: &generator.GenerationError{Reason: reason}}
}

// memorySaver is a minimal CheckpointSaver for orchestrator tests.
type memorySaver struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (s *memorySaver) Put(_ context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps = append(s.snaps, snap)
	return nil
}

func (s *memorySaver) Latest(_ context.Context, runID string) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.snaps) - 1; i >= 0; i-- {
		if s.snaps[i].RunID == runID {
			snap := s.snaps[i]
			return &snap, nil
		}
	}
	return nil, nil
}

func (s *memorySaver) List(_ context.Context, runID string, _ int) ([]*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Snapshot
	for i := range s.snaps {
		if s.snaps[i].RunID == runID {
			snap := s.snaps[i]
			out = append(out, &snap)
		}
	}
	return out, nil
}

func (s *memorySaver) Delete(context.Context, string) error { return nil }
