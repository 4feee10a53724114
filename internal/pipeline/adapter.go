package pipeline

import (
	"context"
	"fmt"
	"strings"
)

// ValidateFunc checks the preconditions of an adapter. It must not mutate anything, an empty
// result means the adapter may run.
type ValidateFunc func(ctx context.Context, view *View) []string

// ActionFunc performs the effect of an adapter.
//
// Returning an error that is (or wraps) a *FailureError halts the run with the failure's type.
// Any other error halts it with GENERAL_ERROR, so adapters should classify what they can.
type ActionFunc func(ctx context.Context, view *View) (*ActionResult, error)

// Adapter is one named, validate-then-act step. Adapters are values built by factory
// functions and hold no mutable state across calls.
type Adapter struct {
	Name     string
	Validate ValidateFunc
	Action   ActionFunc
}

func (a Adapter) isZero() bool {
	return a.Name == "" && a.Validate == nil && a.Action == nil
}

// structureProblems reports every malformed entry of `adapters`.
func structureProblems(adapters []Adapter) []string {
	var problems []string
	for i, a := range adapters {
		if a.isZero() {
			problems = append(problems, fmt.Sprintf("adapter at index %d is empty", i))
			continue
		}
		label := fmt.Sprintf("adapter %q", a.Name)
		if a.Name == "" {
			label = fmt.Sprintf("adapter at index %d", i)
			problems = append(problems, fmt.Sprintf("%s has no name", label))
		}
		if a.Validate == nil {
			problems = append(problems, fmt.Sprintf("%s has no validate function", label))
		}
		if a.Action == nil {
			problems = append(problems, fmt.Sprintf("%s has no action function", label))
		}
	}
	return problems
}

func joinProblems(problems []string) string {
	return strings.Join(problems, ". ")
}

// FailureError is a failure the adapter has classified itself.
type FailureError struct {
	Type    string
	Message string
}

func (e *FailureError) Error() string {
	if e.Message == "" {
		return e.Type
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *FailureError) outcome() Outcome {
	return failureOutcome(e.Type, e.Message)
}

// Failure builds a *FailureError, wrapping `cause` into its message when present.
func Failure(errorType string, cause error) *FailureError {
	failure := &FailureError{Type: errorType}
	if cause != nil {
		failure.Message = cause.Error()
	}
	return failure
}

// ValidationError is returned for an adapter whose preconditions are not met, its message is
// the adapter's problems joined by ". ".
type ValidationError struct {
	Adapter  string
	Problems []string
}

func (e *ValidationError) Error() string {
	return joinProblems(e.Problems)
}

// AdapterPanicError wraps a panic recovered from an adapter.
type AdapterPanicError struct {
	Adapter string
	Value   any
}

func (e *AdapterPanicError) Error() string {
	return fmt.Sprintf("pipeline: panic in adapter %s: %v", e.Adapter, e.Value)
}

// NoPreconditions is a ValidateFunc for adapters that can always run.
func NoPreconditions(context.Context, *View) []string {
	return nil
}

// NoopAction succeeds without doing anything.
func NoopAction(context.Context, *View) (*ActionResult, error) {
	return nil, nil
}

// Requires returns a ValidateFunc that reports every key missing from the session.
func Requires(keys ...SessionKey) ValidateFunc {
	return func(_ context.Context, view *View) []string {
		var problems []string
		for _, k := range keys {
			if !k.Has(view) {
				problems = append(problems, fmt.Sprintf("missing session data %q", k.Name()))
			}
		}
		return problems
	}
}

// Check returns a ValidateFunc reporting `problem` when `ok` is false. It is meant for
// preconditions on construction options, which are known when the adapter is built.
func Check(ok bool, problem string) ValidateFunc {
	return func(context.Context, *View) []string {
		if ok {
			return nil
		}
		return []string{problem}
	}
}

// All concatenates the problems of every validator.
func All(validators ...ValidateFunc) ValidateFunc {
	return func(ctx context.Context, view *View) []string {
		var problems []string
		for _, validate := range validators {
			problems = append(problems, validate(ctx, view)...)
		}
		return problems
	}
}
