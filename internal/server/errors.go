package server

import "fmt"

// RejectedError is an application-level refusal: the request reached the
// server, was validated, and must not be retried. The client rolls back its
// optimistic change and keeps draining.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("mutation rejected: %s", e.Reason)
}

func reject(format string, args ...any) error {
	return &RejectedError{Reason: fmt.Sprintf(format, args...)}
}
