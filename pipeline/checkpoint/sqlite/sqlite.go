//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package sqlite provides a SQLite-backed pipeline.CheckpointSaver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"trpc.group/trpc-go/trpc-search-agent-go/pipeline"
)

const (
	sqliteCreateSnapshots = "CREATE TABLE IF NOT EXISTS pipeline_snapshots (" +
		"run_id TEXT NOT NULL, " +
		"step INTEGER NOT NULL, " +
		"stage TEXT NOT NULL, " +
		"ts INTEGER NOT NULL, " +
		"state_json BLOB NOT NULL, " +
		"PRIMARY KEY (run_id, step)" +
		")"

	sqliteInsertSnapshot = "INSERT OR REPLACE INTO pipeline_snapshots (" +
		"run_id, step, stage, ts, state_json) VALUES (?, ?, ?, ?, ?)"

	sqliteSelectLatest = "SELECT step, stage, ts, state_json FROM pipeline_snapshots " +
		"WHERE run_id = ? ORDER BY step DESC LIMIT 1"

	sqliteSelectAll = "SELECT step, stage, ts, state_json FROM pipeline_snapshots " +
		"WHERE run_id = ? ORDER BY step ASC"

	sqliteSelectRecent = "SELECT step, stage, ts, state_json FROM (" +
		"SELECT step, stage, ts, state_json FROM pipeline_snapshots " +
		"WHERE run_id = ? ORDER BY step DESC LIMIT ?" +
		") ORDER BY step ASC"

	sqliteDeleteRun = "DELETE FROM pipeline_snapshots WHERE run_id = ?"
)

// Saver stores snapshots as JSON in a SQLite table. It expects an
// initialized *sql.DB using a SQLite driver and creates the schema.
type Saver struct {
	db *sql.DB
}

// NewSaver creates a saver over db.
func NewSaver(db *sql.DB) (*Saver, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if _, err := db.Exec(sqliteCreateSnapshots); err != nil {
		return nil, fmt.Errorf("create snapshots table: %w", err)
	}
	return &Saver{db: db}, nil
}

// Put implements pipeline.CheckpointSaver.
func (s *Saver) Put(ctx context.Context, snap pipeline.Snapshot) error {
	if snap.RunID == "" {
		return errors.New("run_id is required")
	}
	stateJSON, err := json.Marshal(snap.State)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	ts := snap.CreatedAt.UnixNano()
	if snap.CreatedAt.IsZero() {
		ts = time.Now().UTC().UnixNano()
	}
	if _, err := s.db.ExecContext(ctx, sqliteInsertSnapshot,
		snap.RunID, snap.Step, snap.Stage, ts, stateJSON); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// Latest implements pipeline.CheckpointSaver.
func (s *Saver) Latest(ctx context.Context, runID string) (*pipeline.Snapshot, error) {
	if runID == "" {
		return nil, errors.New("run_id is required")
	}
	row := s.db.QueryRowContext(ctx, sqliteSelectLatest, runID)
	snap, err := scanSnapshot(runID, row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// List implements pipeline.CheckpointSaver.
func (s *Saver) List(ctx context.Context, runID string, limit int) ([]*pipeline.Snapshot, error) {
	if runID == "" {
		return nil, errors.New("run_id is required")
	}
	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = s.db.QueryContext(ctx, sqliteSelectRecent, runID, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, sqliteSelectAll, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("select snapshots: %w", err)
	}
	defer rows.Close()

	var out []*pipeline.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(runID, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return out, nil
}

// Delete implements pipeline.CheckpointSaver.
func (s *Saver) Delete(ctx context.Context, runID string) error {
	if runID == "" {
		return errors.New("run_id is required")
	}
	if _, err := s.db.ExecContext(ctx, sqliteDeleteRun, runID); err != nil {
		return fmt.Errorf("delete snapshots: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(runID string, row scanner) (*pipeline.Snapshot, error) {
	var (
		snap      = pipeline.Snapshot{RunID: runID}
		ts        int64
		stateJSON []byte
	)
	if err := row.Scan(&snap.Step, &snap.Stage, &ts, &stateJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan snapshot: %w", err)
	}
	if err := json.Unmarshal(stateJSON, &snap.State); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	snap.CreatedAt = time.Unix(0, ts).UTC()
	return &snap, nil
}
