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
	"strings"
	"text/template"

	"trpc.group/trpc-go/trpc-search-agent-go/generator"
	"trpc.group/trpc-go/trpc-search-agent-go/model"
)

// Stage is one named step of the chain. Run receives the state by value and
// must not modify it, including the elements of its slices. A nil error
// means the returned Update is merged into the state; otherwise the error is
// recorded as a failure of the stage.
type Stage interface {
	Name() string
	Run(ctx context.Context, state State, gen generator.Generator) (Update, error)
}

// promptStage renders an instruction from the state, sends it to the
// generator and parses the reply into an Update.
type promptStage struct {
	name string
	tmpl *template.Template
	// skip returns the update to use without calling the generator.
	skip  func(State) (Update, bool)
	parse func(reply string, state State) (Update, error)
}

func (s *promptStage) Name() string { return s.name }

func (s *promptStage) Run(ctx context.Context, state State, gen generator.Generator) (Update, error) {
	if s.skip != nil {
		if u, ok := s.skip(state); ok {
			return u, nil
		}
	}
	var sb strings.Builder
	if err := s.tmpl.Execute(&sb, newPromptData(state)); err != nil {
		return Update{}, &Error{Kind: KindGeneration, Stage: s.name, Reason: "render instruction", Err: err}
	}
	reply, err := gen.Generate(ctx, []model.Message{model.NewSystemMessage(sb.String())})
	if err != nil {
		return Update{}, stageError(s.name, err)
	}
	u, err := s.parse(reply, state)
	if err != nil {
		return Update{}, stageError(s.name, err)
	}
	return u, nil
}

func newPromptStage(name string, cfg StageConfig, want ParseRule) (*promptStage, error) {
	if cfg.ParseRule == "" {
		cfg.ParseRule = want
	}
	if cfg.ParseRule != want {
		return nil, fmt.Errorf("stage %s: parse rule %q is not supported, want %q", name, cfg.ParseRule, want)
	}
	tmpl, err := compileTemplate(name, cfg.InstructionTemplate)
	if err != nil {
		return nil, err
	}
	return &promptStage{name: name, tmpl: tmpl}, nil
}

// NewClassificationStage creates the stage that sets TargetKind.
func NewClassificationStage(cfg StageConfig) (Stage, error) {
	s, err := newPromptStage(StageClassification, cfg, RuleClassification)
	if err != nil {
		return nil, err
	}
	s.parse = func(reply string, _ State) (Update, error) {
		kind, err := ParseClassification(reply)
		if err != nil {
			return Update{}, err
		}
		return Update{Fields: FieldTargetKind, TargetKind: kind}, nil
	}
	return s, nil
}

// NewKeywordExtractionStage creates the stage that sets Keywords. An empty
// keyword list is a failure.
func NewKeywordExtractionStage(cfg StageConfig) (Stage, error) {
	s, err := newPromptStage(StageKeywordExtraction, cfg, RuleTermList)
	if err != nil {
		return nil, err
	}
	s.parse = func(reply string, _ State) (Update, error) {
		terms := SplitTerms(reply)
		if len(terms) == 0 {
			return Update{}, parseError(ReasonEmptyKeywords, "")
		}
		return Update{Fields: FieldKeywords, Keywords: terms}, nil
	}
	return s, nil
}

// NewKeywordImportanceStage creates the stage that sets KeywordWeights,
// one per keyword. No keywords means no weights and no generator call.
func NewKeywordImportanceStage(cfg StageConfig) (Stage, error) {
	s, err := newPromptStage(StageKeywordImportance, cfg, RuleWeightList)
	if err != nil {
		return nil, err
	}
	s.skip = func(state State) (Update, bool) {
		if len(state.Keywords) > 0 {
			return Update{}, false
		}
		return Update{Fields: FieldKeywordWeights, KeywordWeights: []int{}}, true
	}
	s.parse = func(reply string, state State) (Update, error) {
		weights, err := ParseWeights(reply, len(state.Keywords))
		if err != nil {
			return Update{}, err
		}
		return Update{Fields: FieldKeywordWeights, KeywordWeights: weights}, nil
	}
	return s, nil
}

// NewEnrichmentStage creates the stage that sets EnrichmentTerms. An empty
// reply or an empty keyword list yields no terms.
func NewEnrichmentStage(cfg StageConfig) (Stage, error) {
	s, err := newPromptStage(StageEnrichment, cfg, RuleTermList)
	if err != nil {
		return nil, err
	}
	s.skip = func(state State) (Update, bool) {
		if len(state.Keywords) > 0 {
			return Update{}, false
		}
		return Update{Fields: FieldEnrichmentTerms, EnrichmentTerms: []string{}}, true
	}
	s.parse = func(reply string, _ State) (Update, error) {
		return Update{Fields: FieldEnrichmentTerms, EnrichmentTerms: SplitTerms(reply)}, nil
	}
	return s, nil
}

// NewEnrichmentImportanceStage creates the stage that sets
// EnrichmentWeights, one per enrichment term.
func NewEnrichmentImportanceStage(cfg StageConfig) (Stage, error) {
	s, err := newPromptStage(StageEnrichmentImportance, cfg, RuleWeightList)
	if err != nil {
		return nil, err
	}
	s.skip = func(state State) (Update, bool) {
		if len(state.EnrichmentTerms) > 0 {
			return Update{}, false
		}
		return Update{Fields: FieldEnrichmentWeights, EnrichmentWeights: []int{}}, true
	}
	s.parse = func(reply string, state State) (Update, error) {
		weights, err := ParseWeights(reply, len(state.EnrichmentTerms))
		if err != nil {
			return Update{}, err
		}
		return Update{Fields: FieldEnrichmentWeights, EnrichmentWeights: weights}, nil
	}
	return s, nil
}

// NewQuerySynthesisStage creates the stage that sets Query from the whole
// trimmed reply.
func NewQuerySynthesisStage(cfg StageConfig) (Stage, error) {
	s, err := newPromptStage(StageQuerySynthesis, cfg, RuleFreeform)
	if err != nil {
		return nil, err
	}
	s.parse = func(reply string, _ State) (Update, error) {
		q, err := ParseFreeform(reply)
		if err != nil {
			return Update{}, parseError(ReasonEmptyQuery, "")
		}
		return Update{Fields: FieldQuery, Query: q}, nil
	}
	return s, nil
}

// notImplementedStage is a declared stage without a prompt. It always fails.
type notImplementedStage struct {
	name string
}

// NewNotImplementedStage creates a stage that fails with KindNotImplemented.
func NewNotImplementedStage(name string) Stage {
	return notImplementedStage{name: name}
}

func (s notImplementedStage) Name() string { return s.name }

func (s notImplementedStage) Run(context.Context, State, generator.Generator) (Update, error) {
	return Update{}, &Error{Kind: KindNotImplemented, Stage: s.name, Reason: "stage has no instruction"}
}

// ChainOption configures DefaultStages.
type ChainOption func(*chainOptions)

type chainOptions struct {
	classification bool
	quality        bool
}

// WithClassification prepends the classification stage.
func WithClassification(enabled bool) ChainOption {
	return func(o *chainOptions) { o.classification = enabled }
}

// WithQualityStages appends the quality and missing_info stages, which are
// declared but fail with KindNotImplemented.
func WithQualityStages(enabled bool) ChainOption {
	return func(o *chainOptions) { o.quality = enabled }
}

// DefaultStages builds the standard chain. Entries of configs override the
// defaults of DefaultStageConfigs by stage name; a partial entry keeps the
// default for the field left empty.
func DefaultStages(configs map[string]StageConfig, opts ...ChainOption) ([]Stage, error) {
	var o chainOptions
	for _, opt := range opts {
		opt(&o)
	}
	defaults := DefaultStageConfigs()
	for name := range configs {
		if _, ok := defaults[name]; !ok {
			return nil, fmt.Errorf("unknown stage %q", name)
		}
	}
	resolve := func(name string) StageConfig {
		cfg := defaults[name]
		if override, ok := configs[name]; ok {
			if override.InstructionTemplate != "" {
				cfg.InstructionTemplate = override.InstructionTemplate
			}
			if override.ParseRule != "" {
				cfg.ParseRule = override.ParseRule
			}
		}
		return cfg
	}

	type ctor struct {
		name string
		fn   func(StageConfig) (Stage, error)
	}
	var chain []ctor
	if o.classification {
		chain = append(chain, ctor{StageClassification, NewClassificationStage})
	}
	chain = append(chain,
		ctor{StageKeywordExtraction, NewKeywordExtractionStage},
		ctor{StageKeywordImportance, NewKeywordImportanceStage},
		ctor{StageEnrichment, NewEnrichmentStage},
		ctor{StageEnrichmentImportance, NewEnrichmentImportanceStage},
		ctor{StageQuerySynthesis, NewQuerySynthesisStage},
	)
	stages := make([]Stage, 0, len(chain)+2)
	for _, c := range chain {
		st, err := c.fn(resolve(c.name))
		if err != nil {
			return nil, err
		}
		stages = append(stages, st)
	}
	if o.quality {
		stages = append(stages, NewNotImplementedStage(StageQuality), NewNotImplementedStage(StageMissingInfo))
	}
	return stages, nil
}
