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
	"fmt"
	"io"
	"strings"
	"text/template"
)

// ParseRule selects how a stage parses the generator reply.
type ParseRule string

// Parse rules.
const (
	// RuleClassification maps a leading '1' or '2' to a target kind.
	RuleClassification ParseRule = "classification"
	// RuleTermList splits on ", " and trims each term.
	RuleTermList ParseRule = "term_list"
	// RuleWeightList parses a comma separated list of integers in 1..5.
	RuleWeightList ParseRule = "weight_list"
	// RuleFreeform takes the trimmed reply as is.
	RuleFreeform ParseRule = "freeform"
)

// Stage names.
const (
	StageClassification       = "classification"
	StageKeywordExtraction    = "keyword_extraction"
	StageKeywordImportance    = "keyword_importance"
	StageEnrichment           = "enrichment"
	StageEnrichmentImportance = "enrichment_importance"
	StageQuerySynthesis       = "query_synthesis"
	StageQuality              = "quality"
	StageMissingInfo          = "missing_info"
	// StageWebSearch names failures of the search call that follows the chain.
	StageWebSearch = "web_search"
)

// StageConfig configures one prompt stage. InstructionTemplate is a
// text/template rendered against the current state and sent as a single
// system message.
//
// Templates see .Request, .TargetKind, .Keywords, .KeywordWeights,
// .EnrichmentTerms and .EnrichmentWeights, plus the functions join
// (terms with ", "), weights (integers with ", ") and pairs
// ("term (weight)" list).
type StageConfig struct {
	InstructionTemplate string    `yaml:"instruction_template" json:"instruction_template"`
	ParseRule           ParseRule `yaml:"parse_rule" json:"parse_rule"`
}

const weightScale = `Use a scale of 1 to 5, where:

5: the term is critical and central to the topic.
4: the term is very important and closely associated with the topic.
3: the term is somewhat important but less directly connected.
2: the term is only tangentially related.
1: the term is not relevant.`

const (
	classificationTemplate = `Given this request: {{.Request}}
decide whether it asks to find a person or an organization. Respond with 1 for a person or 2 for an organization, and nothing else.`

	keywordTemplate = `You are a keyword specialist. Identify the key ideas, concepts and words associated with this request: {{.Request}}
Respond with the keywords only, as a single list separated by ", ".`

	keywordImportanceTemplate = `You are an expert at judging how strongly words relate to a topic. Assign an importance value to each word in the list below based on how strongly it relates to the request.
` + weightScale + `

Request: {{.Request}}
Words:
-------
{{join .Keywords}}

Respond with the scores only, in the same order as the words, separated by commas.`

	enrichmentTemplate = `You generate enrichment terms that broaden a search: closely related terms, synonyms and associated phrases.

Request: {{.Request}}
Keywords with importance from 1 (low) to 5 (high): {{pairs .Keywords .KeywordWeights}}

For each keyword generate up to five enrichment terms that reflect its meaning, give broader coverage to the more important keywords and stay relevant to the request.
Respond with all enrichment terms in a single list separated by ", ".`

	enrichmentImportanceTemplate = `You are an expert at judging how strongly context terms relate to a topic. Assign an importance value to each term to grade, using the request and the already scored keywords as reference.
` + weightScale + `

Request: {{.Request}}
Scored keywords: {{pairs .Keywords .KeywordWeights}}
Terms to grade:
-------
{{join .EnrichmentTerms}}

Respond with the scores only, in the same order as the terms, separated by commas.`

	querySynthesisTemplate = `Using the keywords, the enrichment terms and their importance, write one web search query for the request.

Request: {{.Request}}
Keywords: {{pairs .Keywords .KeywordWeights}}
Enrichment terms: {{pairs .EnrichmentTerms .EnrichmentWeights}}

Respond with the search query only, on a single line.`
)

// DefaultStageConfigs returns the built-in configuration of every prompt stage.
func DefaultStageConfigs() map[string]StageConfig {
	return map[string]StageConfig{
		StageClassification:       {InstructionTemplate: classificationTemplate, ParseRule: RuleClassification},
		StageKeywordExtraction:    {InstructionTemplate: keywordTemplate, ParseRule: RuleTermList},
		StageKeywordImportance:    {InstructionTemplate: keywordImportanceTemplate, ParseRule: RuleWeightList},
		StageEnrichment:           {InstructionTemplate: enrichmentTemplate, ParseRule: RuleTermList},
		StageEnrichmentImportance: {InstructionTemplate: enrichmentImportanceTemplate, ParseRule: RuleWeightList},
		StageQuerySynthesis:       {InstructionTemplate: querySynthesisTemplate, ParseRule: RuleFreeform},
	}
}

// promptData is the value templates are executed against.
type promptData struct {
	Request           string
	TargetKind        TargetKind
	Keywords          []string
	KeywordWeights    []int
	EnrichmentTerms   []string
	EnrichmentWeights []int
}

func newPromptData(s State) promptData {
	return promptData{
		Request:           s.Request,
		TargetKind:        s.TargetKind,
		Keywords:          s.Keywords,
		KeywordWeights:    s.KeywordWeights,
		EnrichmentTerms:   s.EnrichmentTerms,
		EnrichmentWeights: s.EnrichmentWeights,
	}
}

var templateFuncs = template.FuncMap{
	"join":    JoinTerms,
	"weights": JoinWeights,
	"pairs":   joinPairs,
}

// joinPairs renders "term (weight)" entries. Terms without a weight are
// rendered bare.
func joinPairs(terms []string, weights []int) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		if i < len(weights) {
			parts[i] = fmt.Sprintf("%s (%d)", t, weights[i])
		} else {
			parts[i] = t
		}
	}
	return strings.Join(parts, TermSeparator)
}

// compileTemplate parses text and executes it once against sample data so
// that unknown fields or functions are reported at construction.
func compileTemplate(stage, text string) (*template.Template, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("stage %s: instruction template is empty", stage)
	}
	tmpl, err := template.New(stage).Funcs(templateFuncs).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("stage %s: parse instruction template: %w", stage, err)
	}
	sample := promptData{
		Request:           "sample request",
		Keywords:          []string{"a", "b"},
		KeywordWeights:    []int{5, 3},
		EnrichmentTerms:   []string{"c"},
		EnrichmentWeights: []int{4},
	}
	if err := tmpl.Execute(io.Discard, sample); err != nil {
		return nil, fmt.Errorf("stage %s: execute instruction template: %w", stage, err)
	}
	return tmpl, nil
}
