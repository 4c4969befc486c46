//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package inmemory provides an in-memory pipeline.CheckpointSaver.
// It is suitable for tests and single process deployments. Both the runs
// and the snapshots per run are bounded; the oldest are evicted first.
package inmemory

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"

	"trpc.group/trpc-go/trpc-search-agent-go/pipeline"
)

const (
	// DefaultMaxSnapshotsPerRun bounds the snapshots kept for one run.
	DefaultMaxSnapshotsPerRun = 100
	// DefaultMaxRuns bounds the runs kept by a saver.
	DefaultMaxRuns = 1000
)

// Saver keeps snapshots in memory keyed by run id and step.
type Saver struct {
	mu      sync.RWMutex
	storage map[string]map[int]pipeline.Snapshot // runID -> step -> snapshot
	// runs lists run ids in the order of their first snapshot.
	runs []string
	// maxSnapshotsPerRun drops the oldest steps once exceeded.
	maxSnapshotsPerRun int
	// maxRuns drops the oldest runs once exceeded.
	maxRuns int
}

// NewSaver creates an empty in-memory saver.
func NewSaver() *Saver {
	return &Saver{
		storage:            make(map[string]map[int]pipeline.Snapshot),
		maxSnapshotsPerRun: DefaultMaxSnapshotsPerRun,
		maxRuns:            DefaultMaxRuns,
	}
}

// WithMaxSnapshotsPerRun sets the number of snapshots kept per run.
func (s *Saver) WithMaxSnapshotsPerRun(max int) *Saver {
	s.maxSnapshotsPerRun = max
	return s
}

// WithMaxRuns sets the number of runs kept. Non-positive values disable
// the bound.
func (s *Saver) WithMaxRuns(max int) *Saver {
	s.maxRuns = max
	return s
}

// Put implements pipeline.CheckpointSaver.
func (s *Saver) Put(_ context.Context, snap pipeline.Snapshot) error {
	if snap.RunID == "" {
		return errors.New("run_id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	steps, ok := s.storage[snap.RunID]
	if !ok {
		steps = make(map[int]pipeline.Snapshot)
		s.storage[snap.RunID] = steps
		s.runs = append(s.runs, snap.RunID)
		s.evictRuns()
	}
	snap.State = snap.State.Clone()
	steps[snap.Step] = snap

	if s.maxSnapshotsPerRun > 0 && len(steps) > s.maxSnapshotsPerRun {
		ordered := sortedSteps(steps)
		for _, step := range ordered[:len(ordered)-s.maxSnapshotsPerRun] {
			delete(steps, step)
		}
	}
	return nil
}

// Latest implements pipeline.CheckpointSaver.
func (s *Saver) Latest(_ context.Context, runID string) (*pipeline.Snapshot, error) {
	if runID == "" {
		return nil, errors.New("run_id is required")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	steps := s.storage[runID]
	if len(steps) == 0 {
		return nil, nil
	}
	ordered := sortedSteps(steps)
	snap := copySnapshot(steps[ordered[len(ordered)-1]])
	return &snap, nil
}

// List implements pipeline.CheckpointSaver.
func (s *Saver) List(_ context.Context, runID string, limit int) ([]*pipeline.Snapshot, error) {
	if runID == "" {
		return nil, errors.New("run_id is required")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	steps := s.storage[runID]
	ordered := sortedSteps(steps)
	if limit > 0 && len(ordered) > limit {
		ordered = ordered[len(ordered)-limit:]
	}
	out := make([]*pipeline.Snapshot, 0, len(ordered))
	for _, step := range ordered {
		snap := copySnapshot(steps[step])
		out = append(out, &snap)
	}
	return out, nil
}

// Delete implements pipeline.CheckpointSaver.
func (s *Saver) Delete(_ context.Context, runID string) error {
	if runID == "" {
		return errors.New("run_id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.storage, runID)
	if i := slices.Index(s.runs, runID); i >= 0 {
		s.runs = slices.Delete(s.runs, i, i+1)
	}
	return nil
}

// evictRuns drops the oldest runs beyond maxRuns. Callers hold mu.
func (s *Saver) evictRuns() {
	if s.maxRuns <= 0 || len(s.runs) <= s.maxRuns {
		return
	}
	n := len(s.runs) - s.maxRuns
	for _, runID := range s.runs[:n] {
		delete(s.storage, runID)
	}
	s.runs = slices.Delete(s.runs, 0, n)
}

func sortedSteps(steps map[int]pipeline.Snapshot) []int {
	out := make([]int, 0, len(steps))
	for step := range steps {
		out = append(out, step)
	}
	sort.Ints(out)
	return out
}

func copySnapshot(snap pipeline.Snapshot) pipeline.Snapshot {
	snap.State = snap.State.Clone()
	return snap
}
