/*
 * Ovum VM - A virtual machine for the Osprey language
 * Copyright (c) 2026 by the Ovum authors. All rights reserved.
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package ovmtrace provides the VM's leveled diagnostic output: a
// small set of level-tagged functions writing to a package-level
// io.Writer, gated by boolean flags the caller toggles up front.
package ovmtrace

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Level identifies the severity of a trace message.
type Level int

const (
	LevelTrace Level = iota
	LevelInfo
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelInfo:
		return "INFO"
	case LevelWarning:
		return "WARNING"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

var (
	mu  sync.Mutex
	out io.Writer = os.Stderr

	// enabled controls which levels actually produce output; Error is
	// always emitted regardless of this map.
	enabled = map[Level]bool{
		LevelTrace:   false,
		LevelInfo:    false,
		LevelWarning: true,
	}
)

// SetOutput redirects all trace output; used by tests to capture it.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// Enable turns on output for the given level (Error is always on).
func Enable(l Level) {
	mu.Lock()
	defer mu.Unlock()
	enabled[l] = true
}

// Disable turns off output for the given level.
func Disable(l Level) {
	mu.Lock()
	defer mu.Unlock()
	enabled[l] = false
}

func emit(l Level, msg string) {
	mu.Lock()
	defer mu.Unlock()
	if l != LevelError && !enabled[l] {
		return
	}
	fmt.Fprintf(out, "%s [%-7s] %s\n", time.Now().Format("15:04:05.000"), l, msg)
}

// Trace emits a fine-grained diagnostic (module/type/method resolution
// steps). Off by default.
func Trace(msg string) { emit(LevelTrace, msg) }

// Info emits a coarse-grained progress message (a module finished
// loading, an overload finished initializing). Off by default.
func Info(msg string) { emit(LevelInfo, msg) }

// Warning emits a recoverable anomaly (a deferred constant that resolved
// late, a standard-type slot already claimed). On by default.
func Warning(msg string) { emit(LevelWarning, msg) }

// Error emits an unrecoverable condition. Always emitted.
func Error(msg string) { emit(LevelError, msg) }
