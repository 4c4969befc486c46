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
	"errors"
	"fmt"
	"strings"

	"trpc.group/trpc-go/trpc-search-agent-go/generator"
)

// Kind classifies a stage failure.
type Kind string

// Failure kinds.
const (
	KindGeneration     Kind = "generation"
	KindParse          Kind = "parse"
	KindTimeout        Kind = "timeout"
	KindPolicyHalt     Kind = "policy_halt"
	KindNotImplemented Kind = "not_implemented"
	KindSearch         Kind = "search"
)

// Sentinel errors matched by errors.Is against any *Error of the same kind.
var (
	ErrGeneration     = errors.New("generation failed")
	ErrParse          = errors.New("parse failed")
	ErrTimeout        = errors.New("stage timed out")
	ErrPolicyHalt     = errors.New("pipeline halted")
	ErrNotImplemented = errors.New("stage not implemented")
	ErrSearch         = errors.New("search failed")
)

// Failure reasons produced by the built-in stages and parsers.
const (
	ReasonEmptyKeywords         = "empty keyword list"
	ReasonEmptyQuery            = "empty query"
	ReasonEmptyReply            = "empty reply"
	ReasonEmptyToken            = "empty weight token"
	ReasonInvalidWeight         = "weight is not an integer in 1..5"
	ReasonLengthMismatch        = "length mismatch"
	ReasonInvalidClassification = "invalid classification"
	ReasonDeadlineExceeded      = "stage deadline exceeded"
	ReasonStopOnFirstFailure    = "stopped after first failure"
)

func (k Kind) sentinel() error {
	switch k {
	case KindGeneration:
		return ErrGeneration
	case KindParse:
		return ErrParse
	case KindTimeout:
		return ErrTimeout
	case KindPolicyHalt:
		return ErrPolicyHalt
	case KindNotImplemented:
		return ErrNotImplemented
	case KindSearch:
		return ErrSearch
	default:
		return nil
	}
}

// Error is the failure returned by a stage. It matches the sentinel of its
// Kind with errors.Is and unwraps to the underlying cause.
type Error struct {
	Kind   Kind
	Stage  string
	Reason string
	// Token is the offending reply token for parse failures.
	Token string
	Err   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder
	if e.Stage != "" {
		sb.WriteString(e.Stage)
		sb.WriteString(": ")
	}
	sb.WriteString(string(e.Kind))
	if msg := e.message(); msg != "" {
		sb.WriteString(": ")
		sb.WriteString(msg)
	}
	return sb.String()
}

// message is the error text without the stage and kind prefix.
func (e *Error) message() string {
	msg := e.detail()
	if e.Token != "" {
		msg = fmt.Sprintf("%s (token %q)", msg, e.Token)
	}
	return msg
}

// detail is the reason followed by the cause when the reason does not
// already carry it.
func (e *Error) detail() string {
	if e.Reason == "" {
		if e.Err != nil {
			return e.Err.Error()
		}
		return ""
	}
	if e.Err != nil && e.Kind != KindTimeout && !strings.Contains(e.Err.Error(), e.Reason) {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's Kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

func parseError(reason, token string) *Error {
	return &Error{Kind: KindParse, Reason: reason, Token: token}
}

// stageError converts err returned while running stage into an *Error.
// Deadline expiry becomes a timeout and any other cause a generation failure.
func stageError(stage string, err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		out := *pe
		if out.Stage == "" {
			out.Stage = stage
		}
		if out.Kind == KindGeneration && errors.Is(out.Err, context.DeadlineExceeded) {
			out.Kind = KindTimeout
			out.Reason = ReasonDeadlineExceeded
		}
		return &out
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Stage: stage, Reason: ReasonDeadlineExceeded, Err: err}
	}
	reason := err.Error()
	var ge *generator.GenerationError
	if errors.As(err, &ge) {
		reason = ge.Reason
		if ge.Code != "" {
			reason = fmt.Sprintf("%s (code %s)", reason, ge.Code)
		}
	}
	return &Error{Kind: KindGeneration, Stage: stage, Reason: reason, Err: err}
}
