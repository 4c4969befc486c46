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
	"time"
)

// Snapshot is the state of a run persisted after one stage.
type Snapshot struct {
	RunID     string    `json:"run_id"`
	Step      int       `json:"step"`
	Stage     string    `json:"stage"`
	State     State     `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}

// CheckpointSaver persists snapshots keyed by run id. Implementations must
// be safe for concurrent use by independent runs.
type CheckpointSaver interface {
	// Put stores a snapshot, replacing any snapshot with the same run id and step.
	Put(ctx context.Context, snap Snapshot) error
	// Latest returns the snapshot with the highest step, or nil when the run
	// has none.
	Latest(ctx context.Context, runID string) (*Snapshot, error)
	// List returns the snapshots of a run ordered by step. A positive limit
	// keeps only the most recent ones.
	List(ctx context.Context, runID string, limit int) ([]*Snapshot, error)
	// Delete removes every snapshot of a run.
	Delete(ctx context.Context, runID string) error
}
