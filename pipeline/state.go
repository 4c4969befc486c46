//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package pipeline implements the keyword, importance, enrichment and query
// prompt chain. Stages transform a State by delegating to a text generator
// and parsing its reply, and an Orchestrator runs them in order under a
// failure policy.
package pipeline

import (
	"errors"
	"fmt"
	"slices"

	"trpc.group/trpc-go/trpc-search-agent-go/search"
)

// TargetKind classifies what the request is searching for.
type TargetKind int

// Target kinds. Unknown is the zero value.
const (
	TargetUnknown TargetKind = iota
	TargetPerson
	TargetOrganization
)

// String returns the lower case name of the kind.
func (k TargetKind) String() string {
	switch k {
	case TargetPerson:
		return "person"
	case TargetOrganization:
		return "organization"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k TargetKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *TargetKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "person":
		*k = TargetPerson
	case "organization":
		*k = TargetOrganization
	case "unknown", "":
		*k = TargetUnknown
	default:
		return fmt.Errorf("unknown target kind %q", text)
	}
	return nil
}

// Failure is one entry of the state's failure log.
type Failure struct {
	Stage   string `json:"stage"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Token   string `json:"token,omitempty"`
}

// Outcome summarizes a finished run.
type Outcome string

// Run outcomes.
const (
	// OutcomeComplete means every stage succeeded.
	OutcomeComplete Outcome = "complete"
	// OutcomePartial means some stage failed but a query was still produced.
	OutcomePartial Outcome = "partial"
	// OutcomeFailed means the run halted or produced no query.
	OutcomeFailed Outcome = "failed"
)

// State is the record threaded through the stages of one run. It has a
// single owner at a time and is never shared between runs.
type State struct {
	RunID             string          `json:"run_id"`
	Request           string          `json:"request"`
	TargetKind        TargetKind      `json:"target_kind"`
	Keywords          []string        `json:"keywords"`
	KeywordWeights    []int           `json:"keyword_weights"`
	EnrichmentTerms   []string        `json:"enrichment_terms"`
	EnrichmentWeights []int           `json:"enrichment_weights"`
	Query             string          `json:"query"`
	SearchResults     []search.Result `json:"search_results"`
	Errors            []Failure       `json:"errors"`
	Halted            bool            `json:"halted"`
	HaltedAt          string          `json:"halted_at,omitempty"`
}

// NewState creates the initial state for request.
func NewState(runID, request string) State {
	return State{
		RunID:             runID,
		Request:           request,
		Keywords:          []string{},
		KeywordWeights:    []int{},
		EnrichmentTerms:   []string{},
		EnrichmentWeights: []int{},
		SearchResults:     []search.Result{},
		Errors:            []Failure{},
	}
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := s
	out.Keywords = slices.Clone(s.Keywords)
	out.KeywordWeights = slices.Clone(s.KeywordWeights)
	out.EnrichmentTerms = slices.Clone(s.EnrichmentTerms)
	out.EnrichmentWeights = slices.Clone(s.EnrichmentWeights)
	out.SearchResults = slices.Clone(s.SearchResults)
	out.Errors = slices.Clone(s.Errors)
	return out
}

// AppendFailure records err in the failure log.
func (s *State) AppendFailure(err *Error) {
	s.Errors = append(s.Errors, Failure{
		Stage:   err.Stage,
		Kind:    err.Kind,
		Message: err.detail(),
		Token:   err.Token,
	})
}

// Err returns nil when the run had no failures. Otherwise it joins one
// *Error per recorded failure, plus a policy halt when the chain stopped early.
func (s State) Err() error {
	if len(s.Errors) == 0 && !s.Halted {
		return nil
	}
	errs := make([]error, 0, len(s.Errors)+1)
	for _, f := range s.Errors {
		errs = append(errs, &Error{Kind: f.Kind, Stage: f.Stage, Reason: f.Message, Token: f.Token})
	}
	if s.Halted {
		errs = append(errs, &Error{Kind: KindPolicyHalt, Stage: s.HaltedAt, Reason: ReasonStopOnFirstFailure})
	}
	return errors.Join(errs...)
}

// Outcome reports whether the run completed, partially succeeded or failed.
func (s State) Outcome() Outcome {
	switch {
	case len(s.Errors) == 0 && !s.Halted:
		return OutcomeComplete
	case s.Halted || s.Query == "":
		return OutcomeFailed
	default:
		return OutcomePartial
	}
}

// Field selects a State field carried by an Update.
type Field uint8

// Fields a stage may produce.
const (
	FieldTargetKind Field = 1 << iota
	FieldKeywords
	FieldKeywordWeights
	FieldEnrichmentTerms
	FieldEnrichmentWeights
	FieldQuery
)

// Update is the partial state produced by a successful stage. Only the
// fields named in Fields are merged.
type Update struct {
	Fields            Field
	TargetKind        TargetKind
	Keywords          []string
	KeywordWeights    []int
	EnrichmentTerms   []string
	EnrichmentWeights []int
	Query             string
}

// Has reports whether f is set in the update.
func (u Update) Has(f Field) bool { return u.Fields&f != 0 }

// Apply returns a copy of s with the fields of u merged in.
func (s State) Apply(u Update) State {
	next := s.Clone()
	if u.Has(FieldTargetKind) {
		next.TargetKind = u.TargetKind
	}
	if u.Has(FieldKeywords) {
		next.Keywords = nonNil(slices.Clone(u.Keywords))
	}
	if u.Has(FieldKeywordWeights) {
		next.KeywordWeights = nonNil(slices.Clone(u.KeywordWeights))
	}
	if u.Has(FieldEnrichmentTerms) {
		next.EnrichmentTerms = nonNil(slices.Clone(u.EnrichmentTerms))
	}
	if u.Has(FieldEnrichmentWeights) {
		next.EnrichmentWeights = nonNil(slices.Clone(u.EnrichmentWeights))
	}
	if u.Has(FieldQuery) {
		next.Query = u.Query
	}
	return next
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
