//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package rest exposes the search agent over HTTP.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"trpc.group/trpc-go/trpc-search-agent-go/log"
	"trpc.group/trpc-go/trpc-search-agent-go/pipeline"
)

const maxBatchSize = 64

// Runner runs search requests. *searchagent.Agent implements it.
type Runner interface {
	Run(ctx context.Context, request string) pipeline.State
	RunBatch(ctx context.Context, requests []string) ([]pipeline.State, error)
}

// Server serves the search API.
type Server struct {
	runner Runner
	saver  pipeline.CheckpointSaver
	router *mux.Router
}

// Option configures a Server.
type Option func(*Server)

// WithCheckpointSaver enables the snapshot endpoints.
func WithCheckpointSaver(saver pipeline.CheckpointSaver) Option {
	return func(s *Server) {
		s.saver = saver
	}
}

// New creates a Server that answers requests with runner.
func New(runner Runner, opts ...Option) (*Server, error) {
	if runner == nil {
		return nil, errors.New("rest: runner is nil")
	}
	s := &Server{
		runner: runner,
		router: mux.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Content-Length", "Content-Type"},
	})
	s.router.Use(c.Handler)
	s.registerRoutes()
	return s, nil
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/search", s.handleSearch).Methods(http.MethodPost)
	s.router.HandleFunc("/v1/search/batch", s.handleSearchBatch).Methods(http.MethodPost)
	s.router.HandleFunc("/v1/runs/{run_id}/snapshots", s.handleListSnapshots).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/runs/{run_id}/snapshots/latest", s.handleLatestSnapshot).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/runs/{run_id}/snapshots", s.handleDeleteSnapshots).Methods(http.MethodDelete)

	preflight := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}
	s.router.HandleFunc("/v1/search", preflight).Methods(http.MethodOptions)
	s.router.HandleFunc("/v1/search/batch", preflight).Methods(http.MethodOptions)
}

// SearchRequest is the body of POST /v1/search.
type SearchRequest struct {
	Request string `json:"request"`
}

// BatchRequest is the body of POST /v1/search/batch.
type BatchRequest struct {
	Requests []string `json:"requests"`
}

// RunResponse is the final state of one run plus its outcome.
type RunResponse struct {
	pipeline.State
	Outcome pipeline.Outcome `json:"outcome"`
}

// BatchResponse holds one RunResponse per request, in request order.
type BatchResponse struct {
	Runs []RunResponse `json:"runs"`
}

func newRunResponse(state pipeline.State) RunResponse {
	return RunResponse{State: state, Outcome: state.Outcome()}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if strings.TrimSpace(req.Request) == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("request is empty"))
		return
	}
	state := s.runner.Run(r.Context(), req.Request)
	log.DebugfContext(r.Context(), "run %s finished with outcome %s", state.RunID, state.Outcome())
	s.writeJSON(w, http.StatusOK, newRunResponse(state))
}

func (s *Server) handleSearchBatch(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if len(req.Requests) == 0 {
		s.writeError(w, http.StatusBadRequest, errors.New("requests is empty"))
		return
	}
	if len(req.Requests) > maxBatchSize {
		s.writeError(w, http.StatusBadRequest,
			fmt.Errorf("batch of %d requests exceeds the limit of %d", len(req.Requests), maxBatchSize))
		return
	}
	for i, request := range req.Requests {
		if strings.TrimSpace(request) == "" {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("request %d is empty", i))
			return
		}
	}
	states, err := s.runner.RunBatch(r.Context(), req.Requests)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	rsp := BatchResponse{Runs: make([]RunResponse, len(states))}
	for i, state := range states {
		rsp.Runs[i] = newRunResponse(state)
	}
	s.writeJSON(w, http.StatusOK, rsp)
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	if !s.checkpointing(w) {
		return
	}
	runID := mux.Vars(r)["run_id"]
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		limit = n
	}
	snaps, err := s.saver.List(r.Context(), runID, limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if len(snaps) == 0 {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("run %s not found", runID))
		return
	}
	s.writeJSON(w, http.StatusOK, snaps)
}

func (s *Server) handleLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	if !s.checkpointing(w) {
		return
	}
	runID := mux.Vars(r)["run_id"]
	snap, err := s.saver.Latest(r.Context(), runID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if snap == nil {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("run %s not found", runID))
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleDeleteSnapshots(w http.ResponseWriter, r *http.Request) {
	if !s.checkpointing(w) {
		return
	}
	runID := mux.Vars(r)["run_id"]
	if err := s.saver.Delete(r.Context(), runID); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) checkpointing(w http.ResponseWriter) bool {
	if s.saver == nil {
		s.writeError(w, http.StatusNotImplemented, errors.New("checkpointing is disabled"))
		return false
	}
	return true
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		log.Errorf("rest: %v", err)
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
