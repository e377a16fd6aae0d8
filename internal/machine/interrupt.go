package machine

import "sync"

// Level is the interrupt mask of the simulated uniprocessor.
type Level int

const (
	IntOff Level = iota
	IntOn
)

func (l Level) String() string {
	if l == IntOff {
		return "off"
	}
	return "on"
}

// Interrupt models a one-level interrupt mask. On a single core, disabling
// interrupts is the kernel's mutual-exclusion primitive: while the level is
// off, the running thread has exclusive access to scheduler and memory-manager
// state. Locks cannot serve here: blocking on a busy lock would re-enter the
// very dispatch path the lock protects.
//
// Kernel threads are already serialized by the context switcher (exactly one
// runs at a time), so the mutex exists for outside observers: the monitor
// takes it via Exclude to read a consistent snapshot, and a kernel thread
// turning interrupts off waits for any in-flight snapshot to finish.
type Interrupt struct {
	mu    sync.Mutex
	level Level
}

// NewInterrupt returns a controller with interrupts enabled.
func NewInterrupt() *Interrupt {
	return &Interrupt{level: IntOn}
}

// SetLevel changes the mask and returns the previous level, so callers can
// restore it on the way out. Only kernel threads may call this.
//
// The mutex is acquired on the on->off edge and released on the off->on
// edge. The release may happen on a different goroutine than the acquire:
// a context switch hands the off-state to the incoming thread, which is the
// one that eventually re-enables.
func (i *Interrupt) SetLevel(l Level) Level {
	old := i.level
	if old == l {
		return old
	}
	if l == IntOff {
		i.mu.Lock()
		i.level = IntOff
	} else {
		i.level = IntOn
		i.mu.Unlock()
	}
	return old
}

// Level returns the current mask. Only meaningful on a kernel thread.
func (i *Interrupt) Level() Level {
	return i.level
}

// AssertDisabled aborts unless interrupts are off. Scheduler and memory
// manager entry points call this in place of a lock acquisition.
func (i *Interrupt) AssertDisabled() {
	Assert(i.level == IntOff, "interrupts must be disabled (level is %s)", i.level)
}

// Exclude runs f while holding the interrupt mutex, excluding kernel threads
// from their interrupts-off sections. Intended for non-kernel goroutines
// (the monitor) that need a consistent view of kernel state.
func (i *Interrupt) Exclude(f func()) {
	i.mu.Lock()
	defer i.mu.Unlock()
	f()
}
