//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchError(t *testing.T) {
	inner := errors.New("connection reset")
	err := &SearchError{Backend: "tavily", Reason: "request failed", StatusCode: 502, Err: inner}
	assert.Equal(t, "tavily search failed: request failed (status 502)", err.Error())
	assert.ErrorIs(t, err, inner)

	err = &SearchError{Backend: "google", Reason: "empty query"}
	assert.Equal(t, "google search failed: empty query", err.Error())
}

func TestClientFunc(t *testing.T) {
	var c Client = ClientFunc(func(_ context.Context, q string) ([]Result, error) {
		return []Result{{Title: q, URL: "https://example.com"}}, nil
	})
	res, err := c.Search(context.Background(), "ai safety vancouver")
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "ai safety vancouver", res[0].Title)
}
