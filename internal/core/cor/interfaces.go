// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cor (Chain of Responsibility) provides the building blocks the
// pipeline stages are written with. A workflow is a Chain of Commands that
// share one Context: each command reads its input from the context, does one
// unit of work, and writes its output back for the next command.
//
// Two kinds of failure are tracked separately:
//   - errors stop the chain (unless it continues on failure) and mark the run failed;
//   - warnings are recorded for the caller but never stop the chain, e.g. a
//     scene cut that failed while the scene record was still created.
package cor

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// CtxIn and CtxOut are the keys the BaseChain uses to pipe the output of one
// command into the input of the next.
const (
	CtxIn  = "__IN__"
	CtxOut = "__OUT__"
)

// Context is the shared state of one workflow execution.
type Context interface {
	// SetContext sets the Go context that carries cancellation and the active span.
	SetContext(context context.Context)

	// GetContext returns the current Go context.
	GetContext() context.Context

	// Add stores a value under key and returns the Context for chaining.
	Add(key string, value interface{}) Context

	// Get returns the value stored under key, or nil.
	Get(key string) interface{}

	// Remove deletes key.
	Remove(key string)

	// AddError records a failure, keyed by the command name.
	AddError(key string, err error)

	// GetErrors returns the recorded failures.
	GetErrors() map[string]error

	// HasErrors reports whether any failure was recorded.
	HasErrors() bool

	// AddWarning records a non-fatal condition, keyed by the subject it concerns.
	AddWarning(key string, message string)

	// GetWarnings returns a copy of the recorded warnings.
	GetWarnings() map[string]string

	// AddTempFile tracks a scratch file that Close must remove.
	AddTempFile(file string)

	// GetTempFiles returns the tracked scratch files.
	GetTempFiles() []string

	// Close removes every tracked scratch file.
	Close()
}

// Executable is anything with a unit of work.
type Executable interface {
	Execute(context Context)
}

// Command is an atomic, testable step of a workflow.
type Command interface {
	Executable

	GetName() string

	// GetInputParam is the key the command reads its primary input from.
	GetInputParam() string

	// GetOutputParam is the key the command writes its primary output to.
	GetOutputParam() string

	// IsExecutable is the precondition checked before Execute.
	IsExecutable(context Context) bool

	GetTracer() trace.Tracer
	GetMeter() metric.Meter
	GetSuccessCounter() metric.Int64Counter
	GetErrorCounter() metric.Int64Counter
}

// Chain is an ordered sequence of commands and is itself a Command, so chains nest.
type Chain interface {
	Command

	// ContinueOnFailure makes the chain run every command even after an error.
	ContinueOnFailure(bool) Chain

	// AddCommand appends a command to the sequence.
	AddCommand(command Command) Chain
}
