//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"trpc.group/trpc-go/trpc-search-agent-go/log"
	"trpc.group/trpc-go/trpc-search-agent-go/pipeline"
)

const (
	keyPrefixSnapshot = "snap:"
	keyPrefixSteps    = "snap_steps:"
)

const (
	runIDKey     = "run_id"
	stepKey      = "step"
	stageKey     = "stage"
	tsKey        = "ts"
	stateJSONKey = "state_json"
)

// Saver stores each snapshot in a hash and indexes the steps of a run in a
// sorted set scored by step.
type Saver struct {
	opts      Options
	client    redis.UniversalClient
	ownClient bool
	once      sync.Once // ensure Close is called only once
}

// NewSaver creates a new saver.
func NewSaver(options ...Option) (*Saver, error) {
	opts := defaultOptions
	for _, option := range options {
		option(&opts)
	}

	s := &Saver{opts: opts}
	switch {
	case opts.url != "":
		redisOpts, err := redis.ParseURL(opts.url)
		if err != nil {
			return nil, fmt.Errorf("create redis client from url failed: %w", err)
		}
		s.client = redis.NewClient(redisOpts)
		s.ownClient = true
	case opts.client != nil:
		s.client = opts.client
	default:
		return nil, errors.New("redis url or client is required")
	}
	return s, nil
}

func (s *Saver) snapshotKey(runID string, step int) string {
	return fmt.Sprintf("%s%s%s:%d", s.opts.keyPrefix, keyPrefixSnapshot, runID, step)
}

func (s *Saver) stepsKey(runID string) string {
	return s.opts.keyPrefix + keyPrefixSteps + runID
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

	pipe := s.client.TxPipeline()
	key := s.snapshotKey(snap.RunID, snap.Step)
	pipe.HSet(ctx, key,
		runIDKey, snap.RunID,
		stepKey, snap.Step,
		stageKey, snap.Stage,
		tsKey, ts,
		stateJSONKey, stateJSON,
	)
	pipe.Expire(ctx, key, s.opts.ttl)

	stepsKey := s.stepsKey(snap.RunID)
	pipe.ZAdd(ctx, stepsKey, redis.Z{
		Score:  float64(snap.Step),
		Member: strconv.Itoa(snap.Step),
	})
	pipe.Expire(ctx, stepsKey, s.opts.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis transaction failed: %w", err)
	}
	return nil
}

// Latest implements pipeline.CheckpointSaver.
func (s *Saver) Latest(ctx context.Context, runID string) (*pipeline.Snapshot, error) {
	if runID == "" {
		return nil, errors.New("run_id is required")
	}
	members, err := s.client.ZRevRange(ctx, s.stepsKey(runID), 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("get latest step: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}
	step, err := strconv.Atoi(members[0])
	if err != nil {
		return nil, fmt.Errorf("parse step %q: %w", members[0], err)
	}
	return s.load(ctx, runID, step)
}

// List implements pipeline.CheckpointSaver.
func (s *Saver) List(ctx context.Context, runID string, limit int) ([]*pipeline.Snapshot, error) {
	if runID == "" {
		return nil, errors.New("run_id is required")
	}
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}
	members, err := s.client.ZRange(ctx, s.stepsKey(runID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	var out []*pipeline.Snapshot
	for _, m := range members {
		step, err := strconv.Atoi(m)
		if err != nil {
			log.WarnfContext(ctx, "invalid snapshot step %q for run %s", m, runID)
			continue
		}
		snap, err := s.load(ctx, runID, step)
		if err != nil {
			return nil, err
		}
		// The hash may have expired before the index.
		if snap == nil {
			continue
		}
		out = append(out, snap)
	}
	return out, nil
}

// Delete implements pipeline.CheckpointSaver.
func (s *Saver) Delete(ctx context.Context, runID string) error {
	if runID == "" {
		return errors.New("run_id is required")
	}
	stepsKey := s.stepsKey(runID)
	members, err := s.client.ZRange(ctx, stepsKey, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("list steps: %w", err)
	}
	keys := make([]string, 0, len(members)+1)
	for _, m := range members {
		step, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		keys = append(keys, s.snapshotKey(runID, step))
	}
	keys = append(keys, stepsKey)
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete snapshots: %w", err)
	}
	return nil
}

// Close closes the client when the saver created it.
func (s *Saver) Close() error {
	var err error
	s.once.Do(func() {
		if s.ownClient && s.client != nil {
			err = s.client.Close()
		}
	})
	return err
}

func (s *Saver) load(ctx context.Context, runID string, step int) (*pipeline.Snapshot, error) {
	data, err := s.client.HGetAll(ctx, s.snapshotKey(runID, step)).Result()
	if err != nil {
		return nil, fmt.Errorf("get snapshot data: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	snap := &pipeline.Snapshot{RunID: runID, Step: step, Stage: data[stageKey]}
	if err := json.Unmarshal([]byte(data[stateJSONKey]), &snap.State); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	ts, err := strconv.ParseInt(data[tsKey], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse timestamp: %w", err)
	}
	snap.CreatedAt = time.Unix(0, ts).UTC()
	return snap, nil
}
