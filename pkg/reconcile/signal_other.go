//go:build !unix

package reconcile

import "syscall"

// exitedViaSignal has no raw wait-status encoding to decode on non-Unix
// platforms; deputies on those platforms are expected to report a plain
// exit_code and never rely on signal-exit interpretation.
func exitedViaSignal(waitStatus int32) (syscall.Signal, bool) {
	return 0, false
}

func isAllowedStopSignal(sig syscall.Signal) bool {
	return false
}
