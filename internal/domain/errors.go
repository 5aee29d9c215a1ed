package domain

import "fmt"

// ResolutionError is returned when a chat's display name cannot be looked up.
type ResolutionError struct {
	ChatID int64
	Err    error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve chat %d: %v", e.ChatID, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// ForwardError is returned when delivery of one message to one target fails.
type ForwardError struct {
	Target    int64
	MessageID int64
	Err       error
}

func (e *ForwardError) Error() string {
	return fmt.Sprintf("forward message %d to %d: %v", e.MessageID, e.Target, e.Err)
}

func (e *ForwardError) Unwrap() error { return e.Err }
