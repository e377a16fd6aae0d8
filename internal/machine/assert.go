// Package machine is the machine-dependent layer of the simulator: the
// interrupt mask, the physical memory, and the context-switch primitive.
// Everything above it (scheduler, memory manager, kernel) is portable.
package machine

import "fmt"

// Assert aborts the kernel when a programming contract is violated.
// Contract violations are never recoverable: continuing would corrupt
// scheduler or memory-manager state shared by every thread.
func Assert(cond bool, format string, args ...any) {
	if !cond {
		panic("kernel: " + fmt.Sprintf(format, args...))
	}
}
