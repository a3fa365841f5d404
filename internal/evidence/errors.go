package evidence

import "errors"

var (
	// ErrInvalidArgument marks caller-fixable input errors. Never retried.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrModelUnavailable marks transport or connection failures talking to the
	// model-serving endpoint, including per-call timeouts.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrMalformedOutput marks a model response that does not parse into the
	// requested response schema.
	ErrMalformedOutput = errors.New("malformed model output")
)
