//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package google implements search.Client with the Google Custom Search JSON API.
package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"trpc.group/trpc-go/trpc-search-agent-go/search"
)

const (
	backendName = "google"

	// APIKeyEnv is the environment variable read when no API key is given.
	APIKeyEnv = "GOOGLE_API_KEY"
	// EngineIDEnv is the environment variable read when no engine id is given.
	EngineIDEnv = "GOOGLE_SEARCH_ENGINE_ID"

	defaultSize = 5
	maxSize     = 10
)

type config struct {
	apiKey     string
	engineID   string
	baseURL    string
	size       int
	lang       string
	httpClient *http.Client
}

// Option configures the Google search client.
type Option func(*config)

// WithAPIKey sets the Custom Search API key.
func WithAPIKey(apiKey string) Option {
	return func(c *config) { c.apiKey = apiKey }
}

// WithEngineID sets the programmable search engine id (cx).
func WithEngineID(engineID string) Option {
	return func(c *config) { c.engineID = engineID }
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *config) { c.baseURL = baseURL }
}

// WithSize sets the number of results requested, capped at 10 by the API.
func WithSize(size int) Option {
	return func(c *config) { c.size = size }
}

// WithLanguage sets the interface language hint (en/ja/zh-CN/etc).
func WithLanguage(lang string) Option {
	return func(c *config) { c.lang = lang }
}

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) { c.httpClient = hc }
}

// Client is a search.Client backed by Google Custom Search.
type Client struct {
	cfg config
	srv *customsearch.Service
}

// New creates a Google search client. The API key and engine id fall back
// to GOOGLE_API_KEY and GOOGLE_SEARCH_ENGINE_ID.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := config{size: defaultSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.apiKey == "" {
		cfg.apiKey = os.Getenv(APIKeyEnv)
	}
	if cfg.engineID == "" {
		cfg.engineID = os.Getenv(EngineIDEnv)
	}
	if cfg.apiKey == "" {
		return nil, errors.New("google search: api key is required")
	}
	if cfg.engineID == "" {
		return nil, errors.New("google search: engine id is required")
	}
	if cfg.size <= 0 {
		cfg.size = defaultSize
	}
	if cfg.size > maxSize {
		cfg.size = maxSize
	}

	clientOpts := []option.ClientOption{option.WithAPIKey(cfg.apiKey)}
	if cfg.baseURL != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(cfg.baseURL))
	}
	if cfg.httpClient != nil {
		clientOpts = append(clientOpts, option.WithHTTPClient(cfg.httpClient))
	}
	srv, err := customsearch.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("google search: create service: %w", err)
	}
	return &Client{cfg: cfg, srv: srv}, nil
}

// Search implements search.Client.
func (c *Client) Search(ctx context.Context, query string) ([]search.Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, &search.SearchError{Backend: backendName, Reason: "query is empty"}
	}
	call := c.srv.Cse.List().Context(ctx).Cx(c.cfg.engineID).Q(query).Num(int64(c.cfg.size))
	if c.cfg.lang != "" {
		call = call.Hl(c.cfg.lang)
	}
	resp, err := call.Do()
	if err != nil {
		se := &search.SearchError{Backend: backendName, Reason: err.Error(), Err: err}
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			se.StatusCode = apiErr.Code
			if apiErr.Message != "" {
				se.Reason = apiErr.Message
			}
		}
		return nil, se
	}
	results := make([]search.Result, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item == nil {
			continue
		}
		results = append(results, search.Result{
			Title:   item.Title,
			URL:     item.Link,
			Snippet: item.Snippet,
		})
	}
	return results, nil
}
