//go:build allocdebug

// Package assert provides precondition checks that are compiled in only with
// the allocdebug build tag. Without the tag every check is a no-op, so the
// documented caller contracts cost nothing in normal builds.
package assert

import "fmt"

// Enabled reports whether assertions are compiled in.
const Enabled = true

// That panics if cond is false.
func That(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintln("assertion failed:", fmt.Sprintf(format, args...)))
	}
}
