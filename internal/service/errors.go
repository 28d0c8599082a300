package service

import "errors"

var (
	// ErrInvalidInput means a required parameter is missing or malformed.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUpstreamUnreachable means the probe could not connect to the destination.
	ErrUpstreamUnreachable = errors.New("upstream unreachable")

	// ErrPolicyDenied means the destination is not allowed by the configured policy.
	ErrPolicyDenied = errors.New("policy denied")

	// ErrTokenInvalid means the token is unknown or expired. Both look the same to the caller.
	ErrTokenInvalid = errors.New("token invalid")

	// ErrUpstreamFailure means the relay could not connect or lost the upstream.
	ErrUpstreamFailure = errors.New("upstream failure")
)

// HTTPError represents an error with an associated HTTP status code.
// Message is what the caller gets to see, Wrapped is what gets logged.
type HTTPError struct {
	StatusCode int
	Message    string
	Wrapped    error
}

func (e HTTPError) Error() string {
	if e.Wrapped == nil {
		return e.Message
	}
	return e.Message + ": " + e.Wrapped.Error()
}

func (e HTTPError) Unwrap() error {
	return e.Wrapped
}

func httpError(statusCode int, message string, err error) HTTPError {
	return HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Wrapped:    err,
	}
}
