// Package assert holds the engine's invariant checks. These guard against
// bugs in the engine itself, never against caller-supplied bad input — bad
// input is always reported through a normal error return instead.
package assert

import "fmt"

// That panics with msg if cond is false. Reserved for conditions that can
// only be false if the engine's own bookkeeping is inconsistent.
func That(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("embeddb: invariant violated: "+format, args...))
	}
}
