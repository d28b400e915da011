// Command sheriff is the CLI front-end boundary contract of spec.md §6,
// wiring the Model, Reconciliation Engine, Orders Publisher, Script
// Engine, and the ambient alerting/history/dashboard subsystems into one
// process (SPEC_FULL.md C14).
package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	root := newRootCmd()
	root.SilenceUsage = true
	root.SilenceErrors = true

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "sheriff:", err)
		os.Exit(exitCodeFor(err))
	}
}

// usageError marks an argument-parsing failure that must exit 2, per
// spec.md §6's CLI exit-code contract, distinct from a config or script
// failure (exit 1).
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func exitCodeFor(err error) int {
	var ue *usageError
	if errors.As(err, &ue) {
		return 2
	}
	return 1
}
