//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-search-agent-go/pipeline"
	"trpc.group/trpc-go/trpc-search-agent-go/pipeline/checkpoint/inmemory"
	"trpc.group/trpc-go/trpc-search-agent-go/search"
)

type fakeRunner struct {
	batchErr error
}

func (f *fakeRunner) Run(_ context.Context, request string) pipeline.State {
	st := pipeline.NewState("run-"+request, request)
	st.Keywords = []string{"speakers", "Vancouver"}
	st.KeywordWeights = []int{5, 4}
	st.Query = "speakers in Vancouver"
	st.SearchResults = []search.Result{{Title: "UBC", URL: "https://ubc.ca"}}
	return st
}

func (f *fakeRunner) RunBatch(ctx context.Context, requests []string) ([]pipeline.State, error) {
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	out := make([]pipeline.State, len(requests))
	for i, r := range requests {
		out[i] = f.Run(ctx, r)
	}
	return out, nil
}

func newTestServer(t *testing.T, runner Runner, opts ...Option) *httptest.Server {
	t.Helper()
	s, err := New(runner, opts...)
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	rsp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	t.Cleanup(func() { rsp.Body.Close() })
	return rsp
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	rsp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { rsp.Body.Close() })
	return rsp
}

func TestNew_NilRunner(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, &fakeRunner{})
	rsp := get(t, ts.URL+"/healthz")
	assert.Equal(t, http.StatusOK, rsp.StatusCode)
}

func TestSearch(t *testing.T) {
	ts := newTestServer(t, &fakeRunner{})

	rsp := post(t, ts.URL+"/v1/search", `{"request":"find speakers"}`)
	require.Equal(t, http.StatusOK, rsp.StatusCode)
	assert.Equal(t, "application/json", rsp.Header.Get("Content-Type"))

	var got RunResponse
	require.NoError(t, json.NewDecoder(rsp.Body).Decode(&got))
	assert.Equal(t, "run-find speakers", got.RunID)
	assert.Equal(t, []string{"speakers", "Vancouver"}, got.Keywords)
	assert.Equal(t, []int{5, 4}, got.KeywordWeights)
	assert.Equal(t, "speakers in Vancouver", got.Query)
	assert.Equal(t, pipeline.OutcomeComplete, got.Outcome)
	require.Len(t, got.SearchResults, 1)
	assert.Equal(t, "https://ubc.ca", got.SearchResults[0].URL)
}

func TestSearch_BadRequests(t *testing.T) {
	ts := newTestServer(t, &fakeRunner{})
	tests := []struct {
		name string
		body string
	}{
		{name: "invalid json", body: `{`},
		{name: "empty request", body: `{"request":"  "}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rsp := post(t, ts.URL+"/v1/search", tt.body)
			assert.Equal(t, http.StatusBadRequest, rsp.StatusCode)
			var e errorResponse
			require.NoError(t, json.NewDecoder(rsp.Body).Decode(&e))
			assert.NotEmpty(t, e.Error)
		})
	}
}

func TestSearch_MethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, &fakeRunner{})
	rsp := get(t, ts.URL+"/v1/search")
	assert.Equal(t, http.StatusMethodNotAllowed, rsp.StatusCode)
}

func TestSearchBatch(t *testing.T) {
	ts := newTestServer(t, &fakeRunner{})

	rsp := post(t, ts.URL+"/v1/search/batch", `{"requests":["a","b"]}`)
	require.Equal(t, http.StatusOK, rsp.StatusCode)
	var got BatchResponse
	require.NoError(t, json.NewDecoder(rsp.Body).Decode(&got))
	require.Len(t, got.Runs, 2)
	assert.Equal(t, "a", got.Runs[0].Request)
	assert.Equal(t, "b", got.Runs[1].Request)

	rsp = post(t, ts.URL+"/v1/search/batch", `{"requests":[]}`)
	assert.Equal(t, http.StatusBadRequest, rsp.StatusCode)

	rsp = post(t, ts.URL+"/v1/search/batch", `{"requests":["a",""]}`)
	assert.Equal(t, http.StatusBadRequest, rsp.StatusCode)

	many := `{"requests":["` + strings.Repeat(`x","`, maxBatchSize) + `x"]}`
	rsp = post(t, ts.URL+"/v1/search/batch", many)
	assert.Equal(t, http.StatusBadRequest, rsp.StatusCode)
}

func TestSearchBatch_RunnerError(t *testing.T) {
	ts := newTestServer(t, &fakeRunner{batchErr: errors.New("pool closed")})
	rsp := post(t, ts.URL+"/v1/search/batch", `{"requests":["a"]}`)
	assert.Equal(t, http.StatusInternalServerError, rsp.StatusCode)
}

func TestSnapshots(t *testing.T) {
	ctx := context.Background()
	saver := inmemory.NewSaver()
	for step, stage := range []string{pipeline.StageKeywordExtraction, pipeline.StageKeywordImportance} {
		st := pipeline.NewState("run-1", "find speakers")
		require.NoError(t, saver.Put(ctx, pipeline.Snapshot{
			RunID: "run-1", Step: step, Stage: stage, State: st, CreatedAt: time.Now().UTC(),
		}))
	}
	ts := newTestServer(t, &fakeRunner{}, WithCheckpointSaver(saver))

	rsp := get(t, ts.URL+"/v1/runs/run-1/snapshots")
	require.Equal(t, http.StatusOK, rsp.StatusCode)
	var snaps []pipeline.Snapshot
	require.NoError(t, json.NewDecoder(rsp.Body).Decode(&snaps))
	require.Len(t, snaps, 2)
	assert.Equal(t, pipeline.StageKeywordExtraction, snaps[0].Stage)

	rsp = get(t, ts.URL+"/v1/runs/run-1/snapshots?limit=1")
	require.Equal(t, http.StatusOK, rsp.StatusCode)
	snaps = nil
	require.NoError(t, json.NewDecoder(rsp.Body).Decode(&snaps))
	require.Len(t, snaps, 1)
	assert.Equal(t, pipeline.StageKeywordImportance, snaps[0].Stage)

	rsp = get(t, ts.URL+"/v1/runs/run-1/snapshots/latest")
	require.Equal(t, http.StatusOK, rsp.StatusCode)
	var latest pipeline.Snapshot
	require.NoError(t, json.NewDecoder(rsp.Body).Decode(&latest))
	assert.Equal(t, 1, latest.Step)

	rsp = get(t, ts.URL+"/v1/runs/run-1/snapshots?limit=x")
	assert.Equal(t, http.StatusBadRequest, rsp.StatusCode)

	rsp = get(t, ts.URL+"/v1/runs/unknown/snapshots")
	assert.Equal(t, http.StatusNotFound, rsp.StatusCode)
	rsp = get(t, ts.URL+"/v1/runs/unknown/snapshots/latest")
	assert.Equal(t, http.StatusNotFound, rsp.StatusCode)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/v1/runs/run-1/snapshots", nil)
	require.NoError(t, err)
	delRsp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	delRsp.Body.Close()
	assert.Equal(t, http.StatusNoContent, delRsp.StatusCode)

	rsp = get(t, ts.URL+"/v1/runs/run-1/snapshots")
	assert.Equal(t, http.StatusNotFound, rsp.StatusCode)
}

func TestSnapshots_Disabled(t *testing.T) {
	ts := newTestServer(t, &fakeRunner{})
	rsp := get(t, ts.URL+"/v1/runs/run-1/snapshots")
	assert.Equal(t, http.StatusNotImplemented, rsp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, &fakeRunner{})
	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/v1/search", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rsp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer rsp.Body.Close()
	assert.Equal(t, "*", rsp.Header.Get("Access-Control-Allow-Origin"))
}
