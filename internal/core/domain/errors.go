// Package domain provides the core types shared by pipelines, steps and
// generators: payloads, run records and the canonical error taxonomy.
package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind represents the category of a pipeline error.
type ErrorKind string

const (
	// KindValidation indicates a payload does not match its declared schema.
	KindValidation ErrorKind = "validation"

	// KindMalformedPayload indicates data that is not structured data at all.
	KindMalformedPayload ErrorKind = "malformed_payload"

	// KindUpstreamData indicates an earlier step's output parsed but has the wrong shape.
	KindUpstreamData ErrorKind = "upstream_data"

	// KindGeneration indicates the generative call failed or returned unusable content.
	KindGeneration ErrorKind = "generation"

	// KindMissingDependency indicates a step requested output that is not in the context.
	KindMissingDependency ErrorKind = "missing_dependency"

	// KindCancelled indicates the run was cancelled before the step finished.
	KindCancelled ErrorKind = "cancelled"

	// KindInvalidInputFormat indicates a step's own composite input is invalid.
	KindInvalidInputFormat ErrorKind = "invalid_input_format"

	// KindNotFound indicates an unknown pipeline or run.
	KindNotFound ErrorKind = "not_found"
)

// PipelineError is the canonical error produced by steps, the executor and generators.
type PipelineError struct {
	// Kind is the category of error
	Kind ErrorKind `json:"kind"`

	// StepID is the step that produced or observed the error (if any)
	StepID string `json:"step,omitempty"`

	// Field is the payload field or dependency involved (if any)
	Field string `json:"field,omitempty"`

	// Code is an upstream-specific code, e.g. "rate_limit_exceeded"
	Code string `json:"code,omitempty"`

	// Message is the human-readable error message
	Message string `json:"message"`

	// Status is the upstream HTTP status for generation errors
	Status int `json:"-"`

	// Err is the underlying cause
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	prefix := string(e.Kind)
	if e.Code != "" {
		prefix = fmt.Sprintf("%s (%s)", e.Kind, e.Code)
	}
	if e.StepID != "" {
		return fmt.Sprintf("step %s: %s: %s", e.StepID, prefix, msg)
	}
	return fmt.Sprintf("%s: %s", prefix, msg)
}

// Unwrap returns the underlying cause.
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// HTTPStatusCode returns the status the flow server should answer with.
func (e *PipelineError) HTTPStatusCode() int {
	switch e.Kind {
	case KindValidation, KindInvalidInputFormat:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindGeneration, KindUpstreamData, KindMalformedPayload:
		return http.StatusBadGateway
	case KindCancelled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// NewPipelineError creates a new pipeline error.
func NewPipelineError(kind ErrorKind, message string) *PipelineError {
	return &PipelineError{
		Kind:    kind,
		Message: message,
	}
}

// WithStep sets the step id.
func (e *PipelineError) WithStep(stepID string) *PipelineError {
	e.StepID = stepID
	return e
}

// WithField sets the field involved.
func (e *PipelineError) WithField(field string) *PipelineError {
	e.Field = field
	return e
}

// WithCode sets an upstream error code.
func (e *PipelineError) WithCode(code string) *PipelineError {
	e.Code = code
	return e
}

// WithStatus sets the upstream HTTP status.
func (e *PipelineError) WithStatus(status int) *PipelineError {
	e.Status = status
	return e
}

// WithErr sets the underlying cause.
func (e *PipelineError) WithErr(err error) *PipelineError {
	e.Err = err
	return e
}

func (e *PipelineError) kind() ErrorKind { return e.Kind }

// kinded is implemented by every error that carries a kind, including
// schema.ValidationError.
type kinded interface {
	Kind() ErrorKind
}

// KindOf returns the kind of err, or "" when err carries none.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.kind()
	}
	var k kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return ""
}

// IsKind reports whether err is of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// AsPipelineError converts err into a *PipelineError, classifying anything
// without a kind as fallback.
func AsPipelineError(err error, fallback ErrorKind) *PipelineError {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe
	}
	kind := KindOf(err)
	if kind == "" {
		kind = fallback
	}
	return NewPipelineError(kind, err.Error()).WithErr(err)
}

// Convenience constructors

// ErrValidation creates a validation error.
func ErrValidation(message string) *PipelineError {
	return NewPipelineError(KindValidation, message)
}

// ErrMalformedPayload creates a malformed payload error.
func ErrMalformedPayload(message string) *PipelineError {
	return NewPipelineError(KindMalformedPayload, message)
}

// ErrUpstreamData creates an upstream data error.
func ErrUpstreamData(message string) *PipelineError {
	return NewPipelineError(KindUpstreamData, message)
}

// ErrGeneration creates a generation error.
func ErrGeneration(message string) *PipelineError {
	return NewPipelineError(KindGeneration, message)
}

// ErrMissingDependency creates a missing dependency error for step depending on dep.
func ErrMissingDependency(step, dep string) *PipelineError {
	return NewPipelineError(KindMissingDependency, fmt.Sprintf("required output of step %q is not in the context", dep)).
		WithStep(step).
		WithField(dep)
}

// ErrCancelled creates a cancellation error wrapping the context error.
func ErrCancelled(cause error) *PipelineError {
	return NewPipelineError(KindCancelled, "run cancelled").WithErr(cause)
}

// ErrInvalidInputFormat creates an invalid input format error.
func ErrInvalidInputFormat(message string) *PipelineError {
	return NewPipelineError(KindInvalidInputFormat, message)
}

// ErrNotFound creates a not found error.
func ErrNotFound(message string) *PipelineError {
	return NewPipelineError(KindNotFound, message)
}
