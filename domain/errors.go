package domain

import "errors"

// Sentinel errors shared by use cases and transports. Wrap them with
// fmt.Errorf("...: %w", err) and test with errors.Is.
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrProcessing    = errors.New("processing failed")
	ErrAlreadyLinked = errors.New("feedback already linked")
)
