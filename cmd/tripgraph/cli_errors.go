// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package main implements the tripgraph CLI.
package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/jllopis/tripgraph/pkg/errors"
)

// CLIError wraps an error with a hint for the user.
type CLIError struct {
	Err  *errors.Error
	Hint string
}

// NewCLIError creates a new CLI error.
func NewCLIError(e *errors.Error, hint string) *CLIError {
	return &CLIError{Err: e, Hint: hint}
}

// Error returns the formatted error message with hints.
func (e *CLIError) Error() string {
	if e.Err == nil {
		return "unknown error"
	}
	msg := e.Err.Error()
	if e.Hint != "" {
		msg += "\n  Hint: " + e.Hint
	}
	return msg
}

// Unwrap exposes the wrapped error.
func (e *CLIError) Unwrap() error {
	if e.Err == nil {
		return nil
	}
	return e.Err
}

// NewConfigError creates a configuration error with CLI hints.
func NewConfigError(err error, configPath string) *CLIError {
	e := errors.New(errors.CodeInvalidInput, "configuration error", err).
		WithContext("config_path", configPath)
	hint := "check your configuration file syntax"
	if configPath != "" {
		hint = fmt.Sprintf("check %s for syntax errors", configPath)
	}
	return NewCLIError(e, hint)
}

// NewNotFoundError creates a not found error with CLI hints.
func NewNotFoundError(resource, name string) *CLIError {
	e := errors.New(errors.CodeNotFound, fmt.Sprintf("%s '%s' not found", resource, name), nil).
		WithContext("resource", resource).
		WithContext("name", name)
	return NewCLIError(e, fmt.Sprintf("run 'tripgraph %ss ls' to see what exists", resource))
}

// NewInvalidArgumentError creates an invalid argument error with CLI hints.
func NewInvalidArgumentError(arg, reason string) *CLIError {
	e := errors.New(errors.CodeInvalidInput, fmt.Sprintf("invalid argument: %s", reason), nil).
		WithContext("argument", arg)
	return NewCLIError(e, "run 'tripgraph help' for usage information")
}

// hintFor suggests a next step for common failure codes.
func hintFor(err error) string {
	switch errors.CodeOf(err) {
	case errors.CodeLLMError:
		return "check llm.provider, llm.api_key and that the model endpoint is reachable"
	case errors.CodeTimeout:
		return "raise llm.timeout or engine.node_timeout"
	case errors.CodeStoreError:
		return "check store.driver and store.dsn"
	case errors.CodeInvalidGraph:
		return "run 'tripgraph graph validate' on the definition"
	case errors.CodeSchedulerRunaway:
		return "the graph loops or never reaches END; raise engine.max_supersteps only if it is expected"
	case errors.CodeRunConflict:
		return "another turn on this run is still executing; retry when it finishes"
	}
	return ""
}

// printError writes err to w as text or as a JSON object.
func printError(w io.Writer, err error, asJSON bool) {
	code := errors.CodeOf(err)
	msg := err.Error()
	hint := hintFor(err)
	var cliErr *CLIError
	if stderrors.As(err, &cliErr) && cliErr.Err != nil {
		msg = cliErr.Err.Error()
		hint = cliErr.Hint
	}
	if asJSON {
		payload := map[string]any{"code": code, "message": msg}
		if hint != "" {
			payload["hint"] = hint
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"error": payload})
		return
	}
	fmt.Fprintf(w, "Error [%s]: %s\n", code, msg)
	if hint != "" {
		fmt.Fprintf(w, "  Hint: %s\n", hint)
	}
}
