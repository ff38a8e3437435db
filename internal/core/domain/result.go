package domain

// Result is the outcome of one step: either an output payload or a classified error.
type Result struct {
	payload Payload
	err     *PipelineError
}

// Ok wraps a successful output.
func Ok(p Payload) Result {
	return Result{payload: p}
}

// Err wraps a failed outcome.
func Err(err *PipelineError) Result {
	return Result{err: err}
}

// IsOk reports whether the result holds an output.
func (r Result) IsOk() bool {
	return r.err == nil
}

// Payload returns the output, or nil for an error result.
func (r Result) Payload() Payload {
	return r.payload
}

// Error returns the error, or nil for an ok result.
func (r Result) Error() *PipelineError {
	return r.err
}

// Kind returns the error kind, or "" for an ok result.
func (r Result) Kind() ErrorKind {
	if r.err == nil {
		return ""
	}
	return r.err.Kind
}
