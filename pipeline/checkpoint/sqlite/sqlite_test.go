//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package sqlite

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-search-agent-go/pipeline"
	"trpc.group/trpc-go/trpc-search-agent-go/search"
)

func newTestSaver(t *testing.T) *Saver {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	s, err := NewSaver(db)
	require.NoError(t, err)
	return s
}

func snapshot(runID string, step int, stage string) pipeline.Snapshot {
	st := pipeline.NewState(runID, "find speakers in Vancouver")
	st.TargetKind = pipeline.TargetPerson
	st.Keywords = []string{"speakers", "Vancouver"}
	st.KeywordWeights = []int{5, 4}
	st.SearchResults = []search.Result{{Title: "AI Safety", URL: "https://example.org"}}
	return pipeline.Snapshot{
		RunID:     runID,
		Step:      step,
		Stage:     stage,
		State:     st,
		CreatedAt: time.Unix(1700000000, int64(step)).UTC(),
	}
}

func TestNewSaver_NilDB(t *testing.T) {
	_, err := NewSaver(nil)
	assert.Error(t, err)
}

func TestSaver_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestSaver(t)

	latest, err := s.Latest(ctx, "run-1")
	require.NoError(t, err)
	assert.Nil(t, latest)

	want := snapshot("run-1", 0, pipeline.StageKeywordExtraction)
	require.NoError(t, s.Put(ctx, want))

	latest, err = s.Latest(ctx, "run-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, want, *latest)
}

func TestSaver_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestSaver(t)
	for step, stage := range []string{
		pipeline.StageKeywordExtraction,
		pipeline.StageKeywordImportance,
		pipeline.StageEnrichment,
	} {
		require.NoError(t, s.Put(ctx, snapshot("run-1", step, stage)))
	}
	require.NoError(t, s.Put(ctx, snapshot("run-2", 0, pipeline.StageKeywordExtraction)))

	all, err := s.List(ctx, "run-1", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, pipeline.StageKeywordExtraction, all[0].Stage)
	assert.Equal(t, pipeline.StageEnrichment, all[2].Stage)

	recent, err := s.List(ctx, "run-1", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, 1, recent[0].Step)
	assert.Equal(t, 2, recent[1].Step)

	latest, err := s.Latest(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Step)

	// Put with an existing step replaces it.
	replaced := snapshot("run-1", 2, pipeline.StageEnrichment)
	replaced.State.Query = "speakers Vancouver"
	require.NoError(t, s.Put(ctx, replaced))
	all, err = s.List(ctx, "run-1", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "speakers Vancouver", all[2].State.Query)

	require.NoError(t, s.Delete(ctx, "run-1"))
	all, err = s.List(ctx, "run-1", 0)
	require.NoError(t, err)
	assert.Empty(t, all)

	other, err := s.List(ctx, "run-2", 0)
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestSaver_RequiresRunID(t *testing.T) {
	ctx := context.Background()
	s := newTestSaver(t)
	assert.Error(t, s.Put(ctx, pipeline.Snapshot{}))
	_, err := s.Latest(ctx, "")
	assert.Error(t, err)
	_, err = s.List(ctx, "", 0)
	assert.Error(t, err)
	assert.Error(t, s.Delete(ctx, ""))
}
