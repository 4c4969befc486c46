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
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-search-agent-go/generator"
	"trpc.group/trpc-go/trpc-search-agent-go/model"
)

func newOrchestrator(t *testing.T, gen generator.Generator, opts ...Option) *Orchestrator {
	t.Helper()
	stages, err := DefaultStages(nil)
	require.NoError(t, err)
	opts = append([]Option{WithRunIDGenerator(func() string { return "run-1" })}, opts...)
	o, err := New(stages, gen, opts...)
	require.NoError(t, err)
	return o
}

func TestNew_Validation(t *testing.T) {
	stages, err := DefaultStages(nil)
	require.NoError(t, err)

	_, err = New(stages, nil)
	assert.Error(t, err)

	_, err = New([]Stage{nil}, newScript())
	assert.Error(t, err)

	_, err = New([]Stage{stages[0], stages[0]}, newScript())
	assert.Error(t, err)

	o, err := New(stages, newScript())
	require.NoError(t, err)
	assert.Equal(t, []string{
		StageKeywordExtraction, StageKeywordImportance, StageEnrichment,
		StageEnrichmentImportance, StageQuerySynthesis,
	}, o.Stages())
}

func TestRun_VancouverScenario(t *testing.T) {
	gen := newScript(
		text("speakers, Vancouver, AI safety, UBC"),
		text("5,4,5,5"),
		text("presenters, AI alignment"),
		text("4, 5"),
		text("AI safety speakers Vancouver UBC"),
	)
	o := newOrchestrator(t, gen, WithContractCheck(true))

	state := o.Run(context.Background(), vancouverRequest)

	assert.Equal(t, "run-1", state.RunID)
	assert.Equal(t, vancouverRequest, state.Request)
	assert.Equal(t, []string{"speakers", "Vancouver", "AI safety", "UBC"}, state.Keywords)
	assert.Equal(t, []int{5, 4, 5, 5}, state.KeywordWeights)
	assert.Equal(t, []string{"presenters", "AI alignment"}, state.EnrichmentTerms)
	assert.Equal(t, []int{4, 5}, state.EnrichmentWeights)
	assert.Equal(t, "AI safety speakers Vancouver UBC", state.Query)
	assert.Empty(t, state.Errors)
	assert.False(t, state.Halted)
	assert.NoError(t, state.Err())
	assert.Equal(t, OutcomeComplete, state.Outcome())
	assert.Equal(t, 5, gen.calls())
}

func TestRun_StopOnFirstFailure(t *testing.T) {
	gen := newScript(fail("rate limited"))
	o := newOrchestrator(t, gen)

	state := o.Run(context.Background(), vancouverRequest)

	assert.Empty(t, state.Keywords)
	assert.Empty(t, state.KeywordWeights)
	assert.Empty(t, state.EnrichmentTerms)
	assert.Empty(t, state.EnrichmentWeights)
	assert.Empty(t, state.Query)
	require.Len(t, state.Errors, 1)
	assert.Equal(t, StageKeywordExtraction, state.Errors[0].Stage)
	assert.Equal(t, KindGeneration, state.Errors[0].Kind)
	assert.Contains(t, state.Errors[0].Message, "rate limited")
	assert.True(t, state.Halted)
	assert.Equal(t, StageKeywordExtraction, state.HaltedAt)
	assert.ErrorIs(t, state.Err(), ErrPolicyHalt)
	assert.ErrorIs(t, state.Err(), ErrGeneration)
	assert.Equal(t, OutcomeFailed, state.Outcome())
	assert.Equal(t, 1, gen.calls())
}

func TestRun_ContinueOnFailure(t *testing.T) {
	// Only the keyword and query stages reach the generator: the others see
	// empty input lists.
	gen := newScript(fail("rate limited"), text("AI safety Vancouver"))
	o := newOrchestrator(t, gen, WithStopOnFirstFailure(false), WithContractCheck(true))

	state := o.Run(context.Background(), vancouverRequest)

	assert.Empty(t, state.Keywords)
	assert.NotNil(t, state.EnrichmentTerms)
	assert.Empty(t, state.EnrichmentTerms)
	assert.Empty(t, state.EnrichmentWeights)
	assert.Equal(t, "AI safety Vancouver", state.Query)
	require.Len(t, state.Errors, 1)
	assert.Equal(t, StageKeywordExtraction, state.Errors[0].Stage)
	assert.False(t, state.Halted)
	assert.NotErrorIs(t, state.Err(), ErrPolicyHalt)
	assert.Equal(t, OutcomePartial, state.Outcome())
	assert.Equal(t, 2, gen.calls())
}

func TestRun_ParseFailureLeavesFieldEmpty(t *testing.T) {
	gen := newScript(
		text("speakers, Vancouver"),
		text("5,7"),
		text("presenters"),
		text("4"),
		text("speakers Vancouver"),
	)
	o := newOrchestrator(t, gen, WithStopOnFirstFailure(false))

	state := o.Run(context.Background(), vancouverRequest)

	assert.Equal(t, []string{"speakers", "Vancouver"}, state.Keywords)
	assert.Empty(t, state.KeywordWeights)
	require.Len(t, state.Errors, 1)
	assert.Equal(t, Failure{
		Stage:   StageKeywordImportance,
		Kind:    KindParse,
		Message: ReasonInvalidWeight,
		Token:   "7",
	}, state.Errors[0])
	assert.Equal(t, "speakers Vancouver", state.Query)
}

func TestRun_StageTimeout(t *testing.T) {
	gen := newScript(reply{block: true})
	o := newOrchestrator(t, gen, WithStageTimeout(20*time.Millisecond))

	state := o.Run(context.Background(), vancouverRequest)

	require.Len(t, state.Errors, 1)
	assert.Equal(t, KindTimeout, state.Errors[0].Kind)
	assert.ErrorIs(t, state.Err(), ErrTimeout)
	assert.True(t, state.Halted)
}

func TestRun_ParentCancellationHalts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gen := newScript(reply{block: true})
	o := newOrchestrator(t, gen, WithStopOnFirstFailure(false))

	state := o.Run(ctx, vancouverRequest)

	require.Len(t, state.Errors, 1)
	assert.Equal(t, StageKeywordExtraction, state.Errors[0].Stage)
	assert.True(t, state.Halted)
	assert.Equal(t, 1, gen.calls())
}

func TestRun_RetriesGenerationFailures(t *testing.T) {
	gen := newScript(
		fail("overloaded"),
		fail("overloaded"),
		text("speakers, Vancouver"),
		text("5,4"),
		text("presenters"),
		text("3"),
		text("speakers Vancouver"),
	)
	o := newOrchestrator(t, gen, WithMaxRetries(2), WithRetryInitialInterval(time.Millisecond))

	state := o.Run(context.Background(), vancouverRequest)

	assert.Empty(t, state.Errors)
	assert.Equal(t, []string{"speakers", "Vancouver"}, state.Keywords)
	assert.Equal(t, 7, gen.calls())
}

func TestRun_RetriesExhausted(t *testing.T) {
	gen := newScript(fail("overloaded"), fail("overloaded"), fail("overloaded"))
	o := newOrchestrator(t, gen, WithMaxRetries(2), WithRetryInitialInterval(time.Millisecond))

	state := o.Run(context.Background(), vancouverRequest)

	require.Len(t, state.Errors, 1)
	assert.Equal(t, KindGeneration, state.Errors[0].Kind)
	assert.Equal(t, 3, gen.calls())
}

func TestRun_ParseFailuresAreNotRetried(t *testing.T) {
	gen := newScript(text(" "), text("speakers"))
	o := newOrchestrator(t, gen, WithMaxRetries(3), WithRetryInitialInterval(time.Millisecond))

	state := o.Run(context.Background(), vancouverRequest)

	require.Len(t, state.Errors, 1)
	assert.Equal(t, KindParse, state.Errors[0].Kind)
	assert.Equal(t, 1, gen.calls())
}

func TestRun_NotImplementedStage(t *testing.T) {
	o, err := New([]Stage{NewNotImplementedStage(StageQuality)}, newScript())
	require.NoError(t, err)

	state := o.Run(context.Background(), vancouverRequest)
	require.Len(t, state.Errors, 1)
	assert.Equal(t, KindNotImplemented, state.Errors[0].Kind)
	assert.ErrorIs(t, state.Err(), ErrNotImplemented)
}

// mutatingStage breaks the stage contract by writing into its input.
type mutatingStage struct{}

func (mutatingStage) Name() string { return "mutating" }

func (mutatingStage) Run(_ context.Context, state State, _ generator.Generator) (Update, error) {
	state.Keywords[0] = "mutated"
	return Update{}, nil
}

func TestRun_ContractCheckPanics(t *testing.T) {
	kw, err := NewKeywordExtractionStage(DefaultStageConfigs()[StageKeywordExtraction])
	require.NoError(t, err)
	o, err := New([]Stage{kw, mutatingStage{}}, newScript(text("speakers")), WithContractCheck(true))
	require.NoError(t, err)

	assert.Panics(t, func() { o.Run(context.Background(), vancouverRequest) })
}

// plainErrorStage returns an error that is not an *Error.
type plainErrorStage struct{}

func (plainErrorStage) Name() string { return "plain" }

func (plainErrorStage) Run(context.Context, State, generator.Generator) (Update, error) {
	return Update{}, fmt.Errorf("dial tcp: connection refused")
}

func TestRun_PlainStageErrorIsGeneration(t *testing.T) {
	o, err := New([]Stage{plainErrorStage{}}, newScript())
	require.NoError(t, err)

	state := o.Run(context.Background(), vancouverRequest)
	require.Len(t, state.Errors, 1)
	assert.Equal(t, Failure{Stage: "plain", Kind: KindGeneration, Message: "dial tcp: connection refused"}, state.Errors[0])
}

func TestRun_Checkpoints(t *testing.T) {
	saver := &memorySaver{}
	gen := newScript(
		text("speakers, Vancouver"),
		text("5,4"),
		fail("quota exceeded"),
	)
	o := newOrchestrator(t, gen, WithCheckpointSaver(saver))

	state := o.Run(context.Background(), vancouverRequest)

	snaps, err := saver.List(context.Background(), "run-1", 0)
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	assert.Equal(t, StageKeywordExtraction, snaps[0].Stage)
	assert.Equal(t, 0, snaps[0].Step)
	assert.Equal(t, []string{"speakers", "Vancouver"}, snaps[0].State.Keywords)
	assert.Empty(t, snaps[0].State.KeywordWeights)
	assert.Equal(t, StageEnrichment, snaps[2].Stage)
	assert.True(t, snaps[2].State.Halted)

	latest, err := saver.Latest(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, state, latest.State)
}

func TestRun_ConcurrentRuns(t *testing.T) {
	gen := generator.Func(func(ctx context.Context, _ []model.Message) (string, error) {
		return "1", nil
	})
	stages, err := DefaultStages(nil)
	require.NoError(t, err)
	o, err := New(stages, gen, WithContractCheck(true))
	require.NoError(t, err)

	results := make(chan State, 8)
	for i := 0; i < 8; i++ {
		go func(i int) {
			results <- o.Run(context.Background(), fmt.Sprintf("request %d", i))
		}(i)
	}
	seen := map[string]bool{}
	for i := 0; i < 8; i++ {
		s := <-results
		assert.Empty(t, s.Errors)
		assert.Equal(t, []string{"1"}, s.Keywords)
		assert.Equal(t, []int{1}, s.KeywordWeights)
		assert.Equal(t, "1", s.Query)
		assert.False(t, seen[s.RunID], "run ids must be unique")
		seen[s.RunID] = true
	}
}
