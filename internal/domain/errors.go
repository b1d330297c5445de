package domain

import (
	"errors"
	"strings"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnavailable  = errors.New("service unavailable")
	ErrRateLimited  = errors.New("rate limited")
)

// ValidationError lists every problem found with a request. It matches
// ErrInvalidInput with errors.Is.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid input: " + strings.Join(e.Fields, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}
