//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package main is the command line entry of the search agent. It either runs
// one request and prints the final state as JSON, or serves the HTTP API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trpc.group/trpc-go/trpc-search-agent-go/config"
	"trpc.group/trpc-go/trpc-search-agent-go/log"
	"trpc.group/trpc-go/trpc-search-agent-go/server/rest"
)

const defaultRequest = "I want to find speakers in Vancouver who would be interested in presenting " +
	"at an AI safety event being hosted at UBC."

var (
	configPath = flag.String("config", "", "Path to the YAML configuration file")
	request    = flag.String("request", defaultRequest, "Search request to run")
	serve      = flag.Bool("serve", false, "Serve the HTTP API instead of running one request")
	addr       = flag.String("addr", "", "Listen address, overrides server.addr")
	logLevel   = flag.String("log_level", "", "Log level, overrides log.level")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "searchagent: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	log.SetLevel(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if *serve {
		return a.serve(ctx, cfg.Server.Addr)
	}
	state := a.agent.Run(ctx, *request)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rest.RunResponse{State: state, Outcome: state.Outcome()}); err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	return state.Err()
}

func (a *app) serve(ctx context.Context, listen string) error {
	opts := []rest.Option{}
	if a.saver != nil {
		opts = append(opts, rest.WithCheckpointSaver(a.saver))
	}
	s, err := rest.New(a.agent, opts...)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Infof("search agent listening on %s", listen)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
