package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCodeForUsageErrorIsTwo(t *testing.T) {
	err := &usageError{err: errors.New("bad flag")}
	assert.Equal(t, 2, exitCodeFor(err))
}

func TestExitCodeForOtherErrorIsOne(t *testing.T) {
	assert.Equal(t, 1, exitCodeFor(errors.New("config failure")))
}

func TestExitCodeForWrappedUsageErrorIsTwo(t *testing.T) {
	err := fwrap(&usageError{err: errors.New("bad flag")})
	assert.Equal(t, 2, exitCodeFor(err))
}

func fwrap(err error) error {
	return &wrappedErr{err: err}
}

type wrappedErr struct{ err error }

func (w *wrappedErr) Error() string { return "wrapped: " + w.err.Error() }
func (w *wrappedErr) Unwrap() error { return w.err }
