package main

import (
	"github.com/pkg/errors"

	"github.com/llm-inline/llmi/pkg/skills"
)

// Process exit codes
const (
	exitGeneric  = 1
	exitUsage    = 2
	exitNotFound = 3
	exitHandler  = 4
)

// usageError marks command line misuse
type usageError struct {
	err error
}

func (e *usageError) Error() string {
	return e.err.Error()
}

func (e *usageError) Unwrap() error {
	return e.err
}

func newUsageError(format string, args ...any) error {
	return &usageError{err: errors.Errorf(format, args...)}
}

// exitCode maps err to the process exit status
func exitCode(err error) int {
	if err == nil {
		return 0
	}

	var usage *usageError
	if errors.As(err, &usage) {
		return exitUsage
	}

	switch skills.KindOf(err) {
	case skills.KindBinding:
		return exitUsage
	case skills.KindNotFound:
		return exitNotFound
	case skills.KindHandlerFault:
		return exitHandler
	default:
		return exitGeneric
	}
}
