//go:build !allocdebug

package assert

// Enabled reports whether assertions are compiled in.
const Enabled = false

// That panics if cond is false.
//
// That is a no-op unless built with the allocdebug tag.
func That(cond bool, format string, args ...any) {}
