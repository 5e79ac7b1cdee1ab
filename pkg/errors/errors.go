// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package errors provides typed error handling with rich context for the
// tripgraph engine and its collaborators.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
)

// ErrorCode classifies engine errors for monitoring and recovery.
type ErrorCode string

const (
	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeInvalidGraph indicates a graph or schema failed validation.
	CodeInvalidGraph ErrorCode = "INVALID_GRAPH"

	// CodeNodeSoftFailure indicates a node degraded to an empty patch.
	CodeNodeSoftFailure ErrorCode = "NODE_SOFT_FAILURE"

	// CodeNodeFatalFailure indicates a node could not produce a usable patch.
	CodeNodeFatalFailure ErrorCode = "NODE_FATAL_FAILURE"

	// CodeRoutingError indicates a router returned a key outside its route map.
	CodeRoutingError ErrorCode = "ROUTING_ERROR"

	// CodeMergeConflict indicates two nodes of one superstep wrote the same
	// overwrite field. It is reported, never returned as a fatal error.
	CodeMergeConflict ErrorCode = "MERGE_CONFLICT"

	// CodeSchedulerRunaway indicates the superstep bound was exceeded or the
	// run looped back into an already scheduled node.
	CodeSchedulerRunaway ErrorCode = "SCHEDULER_RUNAWAY"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeNotFound indicates a resource was not found.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeLLMError indicates an LLM provider error.
	CodeLLMError ErrorCode = "LLM_ERROR"

	// CodeSearchError indicates a search provider error.
	CodeSearchError ErrorCode = "SEARCH_ERROR"

	// CodeStoreError indicates a persistence backend error.
	CodeStoreError ErrorCode = "STORE_ERROR"

	// CodeInvalidInput indicates a request that cannot be processed as given.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeRunConflict indicates a turn was submitted for a run that is still
	// executing. The caller may retry once the active turn finishes.
	CodeRunConflict ErrorCode = "RUN_CONFLICT"
)

// Error is a typed error with rich context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type Error struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]interface{}
	Recoverable bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *Error) MarshalJSON() ([]byte, error) {
	var cause string
	if e.Err != nil {
		cause = e.Err.Error()
	}
	return json.Marshal(&struct {
		Message     string                 `json:"message"`
		Code        string                 `json:"code"`
		Err         string                 `json:"error,omitempty"`
		Context     map[string]interface{} `json:"context,omitempty"`
		Recoverable bool                   `json:"recoverable"`
	}{
		Message:     e.Error(),
		Code:        string(e.Code),
		Err:         cause,
		Context:     e.Context,
		Recoverable: e.Recoverable,
	})
}

// New creates a new Error with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: msg,
		Err:     cause,
		Context: make(map[string]interface{}),
	}
}

// Soft returns a recoverable node failure. The scheduler degrades it to an
// empty patch and the run continues.
func Soft(msg string, cause error) *Error {
	return New(CodeNodeSoftFailure, msg, cause).WithRecoverable(true)
}

// Fatal returns a node failure that aborts the run.
func Fatal(msg string, cause error) *Error {
	return New(CodeNodeFatalFailure, msg, cause)
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithRecoverable sets whether the error can be recovered from.
// Returns the error for method chaining.
func (e *Error) WithRecoverable(recoverable bool) *Error {
	e.Recoverable = recoverable
	return e
}

// RecoverableString returns "true" or "false" as a string for observability.
func (e *Error) RecoverableString() string {
	if e.Recoverable {
		return "true"
	}
	return "false"
}

// AsError attempts to convert an error to an *Error, searching the chain.
// Unknown errors are wrapped as CodeInternal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e
	}
	return New(CodeInternal, "wrapped error", err)
}

// CodeOf returns the code of the first *Error in the chain, or CodeInternal.
func CodeOf(err error) ErrorCode {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsCode reports whether any *Error in the chain carries code.
func IsCode(err error, code ErrorCode) bool {
	for err != nil {
		var e *Error
		if !stderrors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Err
	}
	return false
}

// IsSoft reports whether err is a recoverable node failure.
func IsSoft(err error) bool {
	var e *Error
	if !stderrors.As(err, &e) {
		return false
	}
	return e.Code == CodeNodeSoftFailure
}

// RunError is the single error surfaced to a run's caller. It wraps the fatal
// condition that aborted the run.
type RunError struct {
	RunID string
	// Superstep is the last superstep whose merge completed; -1 when the run
	// failed before any superstep finished.
	Superstep int
	NodeID    string
	Err       error
}

// Error implements the error interface.
func (e *RunError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("run %s aborted after superstep %d at node %q: %v", e.RunID, e.Superstep, e.NodeID, e.Err)
	}
	return fmt.Sprintf("run %s aborted after superstep %d: %v", e.RunID, e.Superstep, e.Err)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *RunError) Unwrap() error {
	return e.Err
}

// Code returns the code of the wrapped cause.
func (e *RunError) Code() ErrorCode {
	return CodeOf(e.Err)
}
