/*
 * Ovum VM - A virtual machine for the Osprey language
 * Copyright (c) 2026 by the Ovum authors. All rights reserved.
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package shutdown centralizes the VM's process-exit codes. Exiting
// with a diagnostic and no partial state committed is the caller's (the
// CLI's) responsibility; this package just names the exit codes.
package shutdown

import "os"

// ExitCode is a named process exit status.
type ExitCode int

const (
	OK            ExitCode = 0
	VMException   ExitCode = 1 // an error surfaced as a modfile.LoadError/initializer.InitError
	VMFailure     ExitCode = 2 // an internal invariant was violated
	UsageError    ExitCode = 3 // bad CLI invocation
	OutOfMemory   ExitCode = 4
)

// exitFunc is overridable so tests can observe a requested exit without
// killing the test binary.
var exitFunc = os.Exit

// Exit terminates the process with the given code.
func Exit(code ExitCode) {
	exitFunc(int(code))
}
