package model

// ThreadStatus describes where a thread currently lives: on the CPU, on the
// ready queue, or parked somewhere (sleep set, finished, waiting).
type ThreadStatus int

const (
	StatusRunning ThreadStatus = iota
	StatusReady
	StatusBlocked
)

// String returns the status name used in logs and dumps.
func (s ThreadStatus) String() string {
	switch s {
	case StatusRunning:
		return "RUNNING"
	case StatusReady:
		return "READY"
	case StatusBlocked:
		return "BLOCKED"
	default:
		return "UNKNOWN"
	}
}

// AddressSpace is the per-process memory context a user thread carries.
// Kernel-only threads have none. SaveState and RestoreState are called
// symmetrically around a context switch; Release is called exactly once,
// when the owning thread is destroyed.
type AddressSpace interface {
	SaveState()
	RestoreState()
	Release()
}

// Thread is the schedulable unit. The kernel owns thread lifetimes; the
// scheduler only ever holds references, except for the single in-flight
// to-be-destroyed slot it drains after each switch.
type Thread struct {
	Name   string
	Status ThreadStatus

	// Priority orders the priority policy: a numerically smaller value is
	// more urgent and is dispatched first.
	Priority int

	// Burst is the remaining CPU burst in ticks. The shortest-burst-first
	// policy dispatches the smallest value first.
	Burst int

	// Space is nil for kernel-only threads.
	Space AddressSpace
}

// NewThread creates a named kernel thread with no address space.
func NewThread(name string, priority, burst int) *Thread {
	return &Thread{
		Name:     name,
		Status:   StatusBlocked,
		Priority: priority,
		Burst:    burst,
	}
}
