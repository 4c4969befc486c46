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
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-search-agent-go/generator"
	"trpc.group/trpc-go/trpc-search-agent-go/search"
)

func TestErrorIs(t *testing.T) {
	sentinels := map[Kind]error{
		KindGeneration:     ErrGeneration,
		KindParse:          ErrParse,
		KindTimeout:        ErrTimeout,
		KindPolicyHalt:     ErrPolicyHalt,
		KindNotImplemented: ErrNotImplemented,
		KindSearch:         ErrSearch,
	}
	for kind, sentinel := range sentinels {
		err := &Error{Kind: kind, Stage: "s"}
		assert.ErrorIs(t, err, sentinel, kind)
		for other, otherSentinel := range sentinels {
			if other != kind {
				assert.NotErrorIs(t, err, otherSentinel, "%s is not %s", kind, other)
			}
		}
	}
}

func TestErrorMessage(t *testing.T) {
	err := &Error{Kind: KindParse, Stage: StageKeywordImportance, Reason: ReasonInvalidWeight, Token: "7"}
	assert.Equal(t, `keyword_importance: parse: weight is not an integer in 1..5 (token "7")`, err.Error())

	err = &Error{Kind: KindParse, Stage: StageKeywordImportance, Reason: ReasonLengthMismatch, Err: errors.New("got 3 weights for 4 terms")}
	assert.Equal(t, "keyword_importance: parse: length mismatch: got 3 weights for 4 terms", err.Error())

	gen := &generator.GenerationError{Reason: "rate limited", Code: "429"}
	err = stageError(StageKeywordExtraction, gen)
	assert.Equal(t, "keyword_extraction: generation: rate limited (code 429)", err.Error())
	assert.ErrorIs(t, err, ErrGeneration)
	var ge *generator.GenerationError
	assert.ErrorAs(t, err, &ge)
}

func TestStageError(t *testing.T) {
	t.Run("plain error is a generation failure", func(t *testing.T) {
		err := stageError("s", errors.New("boom"))
		assert.Equal(t, KindGeneration, err.Kind)
		assert.Equal(t, "s", err.Stage)
		assert.Equal(t, "boom", err.Reason)
	})
	t.Run("deadline is a timeout", func(t *testing.T) {
		err := stageError("s", fmt.Errorf("call: %w", context.DeadlineExceeded))
		assert.Equal(t, KindTimeout, err.Kind)
		assert.ErrorIs(t, err, ErrTimeout)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
	t.Run("generation error wrapping a deadline is a timeout", func(t *testing.T) {
		inner := &Error{Kind: KindGeneration, Err: &generator.GenerationError{Reason: "context done", Err: context.DeadlineExceeded}}
		err := stageError("s", inner)
		assert.Equal(t, KindTimeout, err.Kind)
		assert.Equal(t, "s: timeout: stage deadline exceeded", err.Error())
	})
	t.Run("stage is kept when set", func(t *testing.T) {
		inner := &Error{Kind: KindParse, Stage: "other", Reason: "x"}
		err := stageError("s", inner)
		assert.Equal(t, "other", err.Stage)
		assert.NotSame(t, inner, err)
	})
}

func TestTargetKindText(t *testing.T) {
	for _, k := range []TargetKind{TargetUnknown, TargetPerson, TargetOrganization} {
		b, err := json.Marshal(k)
		require.NoError(t, err)
		var got TargetKind
		require.NoError(t, json.Unmarshal(b, &got))
		assert.Equal(t, k, got)
	}
	var k TargetKind
	assert.Error(t, k.UnmarshalText([]byte("company")))
}

func TestStateApply(t *testing.T) {
	s := NewState("run-1", "find speakers")
	u := Update{
		Fields:         FieldKeywords | FieldKeywordWeights,
		Keywords:       []string{"speakers", "Vancouver"},
		KeywordWeights: []int{5, 4},
		Query:          "ignored",
	}
	next := s.Apply(u)

	assert.Equal(t, []string{"speakers", "Vancouver"}, next.Keywords)
	assert.Equal(t, []int{5, 4}, next.KeywordWeights)
	assert.Empty(t, next.Query)
	assert.Empty(t, s.Keywords, "apply must not modify the receiver")

	u.Keywords[0] = "changed"
	assert.Equal(t, "speakers", next.Keywords[0], "apply must copy update slices")

	next = next.Apply(Update{Fields: FieldEnrichmentTerms})
	assert.NotNil(t, next.EnrichmentTerms)
	assert.Empty(t, next.EnrichmentTerms)
}

func TestStateClone(t *testing.T) {
	s := NewState("run-1", "r")
	s.Keywords = []string{"a"}
	s.SearchResults = []search.Result{{Title: "t"}}
	c := s.Clone()
	c.Keywords[0] = "b"
	c.SearchResults[0].Title = "u"
	assert.Equal(t, "a", s.Keywords[0])
	assert.Equal(t, "t", s.SearchResults[0].Title)
}

func TestStateErrAndOutcome(t *testing.T) {
	s := NewState("run-1", "r")
	assert.NoError(t, s.Err())
	assert.Equal(t, OutcomeComplete, s.Outcome())

	s.AppendFailure(&Error{Kind: KindParse, Stage: StageKeywordImportance, Reason: ReasonInvalidWeight, Token: "7"})
	s.Query = "q"
	require.Error(t, s.Err())
	assert.ErrorIs(t, s.Err(), ErrParse)
	assert.NotErrorIs(t, s.Err(), ErrPolicyHalt)
	assert.Equal(t, OutcomePartial, s.Outcome())
	assert.Equal(t, Failure{Stage: StageKeywordImportance, Kind: KindParse, Message: ReasonInvalidWeight, Token: "7"}, s.Errors[0])

	s.Query = ""
	assert.Equal(t, OutcomeFailed, s.Outcome())

	s.Query = "q"
	s.Halted = true
	s.HaltedAt = StageKeywordImportance
	assert.ErrorIs(t, s.Err(), ErrPolicyHalt)
	assert.Equal(t, OutcomeFailed, s.Outcome())
}

func TestStateJSON(t *testing.T) {
	s := NewState("run-1", "find speakers")
	s.TargetKind = TargetPerson
	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"target_kind":"person"`)
	assert.Contains(t, string(b), `"keywords":[]`)

	var got State
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, s, got)
}
