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
	"strconv"
	"strings"
	"unicode"
)

// TermSeparator delimits terms in generator replies and rendered prompts.
const TermSeparator = ", "

// Weight bounds, inclusive.
const (
	MinWeight = 1
	MaxWeight = 5
)

// SplitTerms splits a reply on the literal ", " separator, trims each term
// and drops empty ones. It never returns nil.
func SplitTerms(reply string) []string {
	terms := []string{}
	for _, part := range strings.Split(reply, TermSeparator) {
		if t := strings.TrimSpace(part); t != "" {
			terms = append(terms, t)
		}
	}
	return terms
}

// JoinTerms is the inverse of SplitTerms for terms without commas.
func JoinTerms(terms []string) string {
	return strings.Join(terms, TermSeparator)
}

// JoinWeights renders weights as a comma separated list.
func JoinWeights(weights []int) string {
	parts := make([]string, len(weights))
	for i, w := range weights {
		parts[i] = strconv.Itoa(w)
	}
	return strings.Join(parts, TermSeparator)
}

// parseWeight accepts exactly one digit in [MinWeight, MaxWeight]. Signs,
// leading zeros and padding are rejected.
func parseWeight(tok string) (int, bool) {
	if len(tok) != 1 {
		return 0, false
	}
	w := int(tok[0] - '0')
	if w < MinWeight || w > MaxWeight {
		return 0, false
	}
	return w, true
}

// ParseWeights parses a comma separated list of single digits in [1,5] that must
// contain exactly want entries. A blank reply is a valid empty list when
// want is zero.
func ParseWeights(reply string, want int) ([]int, error) {
	if want == 0 && strings.TrimSpace(reply) == "" {
		return []int{}, nil
	}
	tokens := strings.Split(reply, ",")
	weights := make([]int, 0, len(tokens))
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			return nil, parseError(ReasonEmptyToken, "")
		}
		w, ok := parseWeight(tok)
		if !ok {
			return nil, parseError(ReasonInvalidWeight, tok)
		}
		weights = append(weights, w)
	}
	if len(weights) != want {
		return nil, &Error{
			Kind:   KindParse,
			Reason: ReasonLengthMismatch,
			Err:    fmt.Errorf("got %d weights for %d terms", len(weights), want),
		}
	}
	return weights, nil
}

// ParseClassification maps the first non-space character of reply to a
// target kind: '1' is a person and '2' an organization.
func ParseClassification(reply string) (TargetKind, error) {
	trimmed := strings.TrimLeftFunc(reply, unicode.IsSpace)
	if trimmed == "" {
		return TargetUnknown, parseError(ReasonInvalidClassification, "")
	}
	switch trimmed[0] {
	case '1':
		return TargetPerson, nil
	case '2':
		return TargetOrganization, nil
	default:
		r := []rune(trimmed)[0]
		return TargetUnknown, parseError(ReasonInvalidClassification, string(r))
	}
}

// ParseFreeform returns the trimmed reply. An empty reply is a parse failure.
func ParseFreeform(reply string) (string, error) {
	out := strings.TrimSpace(reply)
	if out == "" {
		return "", parseError(ReasonEmptyReply, "")
	}
	return out, nil
}
