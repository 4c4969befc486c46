//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package tavily implements search.Client with the Tavily search REST API.
package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"trpc.group/trpc-go/trpc-search-agent-go/search"
)

const (
	backendName = "tavily"

	// APIKeyEnv is the environment variable read when no API key is given.
	APIKeyEnv = "TAVILY_API_KEY"

	defaultBaseURL    = "https://api.tavily.com"
	defaultMaxResults = 5
	defaultDepth      = "basic"
	defaultTimeout    = 30 * time.Second
	maxErrorBody      = 4 << 10
)

type options struct {
	apiKey      string
	baseURL     string
	maxResults  int
	searchDepth string
	httpClient  *http.Client
}

// Option configures the Tavily client.
type Option func(*options)

// WithAPIKey sets the Tavily API key.
func WithAPIKey(apiKey string) Option {
	return func(o *options) { o.apiKey = apiKey }
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(baseURL string) Option {
	return func(o *options) { o.baseURL = baseURL }
}

// WithMaxResults sets the number of results requested.
func WithMaxResults(n int) Option {
	return func(o *options) { o.maxResults = n }
}

// WithSearchDepth selects "basic" or "advanced" search.
func WithSearchDepth(depth string) Option {
	return func(o *options) { o.searchDepth = depth }
}

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// Client is a search.Client backed by Tavily.
type Client struct {
	opts options
}

// New creates a Tavily client. The API key falls back to TAVILY_API_KEY.
func New(opts ...Option) (*Client, error) {
	o := options{
		baseURL:     defaultBaseURL,
		maxResults:  defaultMaxResults,
		searchDepth: defaultDepth,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.apiKey == "" {
		o.apiKey = os.Getenv(APIKeyEnv)
	}
	if o.apiKey == "" {
		return nil, errors.New("tavily search: api key is required")
	}
	if o.maxResults <= 0 {
		o.maxResults = defaultMaxResults
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: defaultTimeout}
	}
	o.baseURL = strings.TrimRight(o.baseURL, "/")
	return &Client{opts: o}, nil
}

type searchRequest struct {
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth"`
}

type searchResponse struct {
	Query   string `json:"query"`
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Search implements search.Client.
func (c *Client) Search(ctx context.Context, query string) ([]search.Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, &search.SearchError{Backend: backendName, Reason: "query is empty"}
	}
	body, err := json.Marshal(searchRequest{
		Query:       query,
		MaxResults:  c.opts.maxResults,
		SearchDepth: c.opts.searchDepth,
	})
	if err != nil {
		return nil, &search.SearchError{Backend: backendName, Reason: "failed to encode request", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, &search.SearchError{Backend: backendName, Reason: "failed to create request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.opts.apiKey)

	resp, err := c.opts.httpClient.Do(req)
	if err != nil {
		return nil, &search.SearchError{Backend: backendName, Reason: "failed to perform request", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &search.SearchError{
			Backend:    backendName,
			Reason:     fmt.Sprintf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
			StatusCode: resp.StatusCode,
		}
	}
	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &search.SearchError{Backend: backendName, Reason: "failed to parse response", Err: err}
	}
	results := make([]search.Result, 0, len(out.Results))
	for _, r := range out.Results {
		results = append(results, search.Result{Title: r.Title, URL: r.URL, Snippet: r.Content})
	}
	return results, nil
}
