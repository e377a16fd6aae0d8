// Package scheduler chooses the next thread to run and dispatches to it.
//
// Every entry point assumes interrupts are already disabled: on a
// uniprocessor that is mutual exclusion. Locks cannot provide it here,
// because waiting on a busy lock would block, and blocking calls back into
// this package.
package scheduler

import (
	"fmt"

	"github.com/me/gokern/pkg/model"
)

// Policy selects the ready-queue ordering.
type Policy int

const (
	PolicyFIFO Policy = iota
	PolicySJF
	PolicyPriority
)

// ParsePolicy converts a config string to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "fifo", "fcfs", "":
		return PolicyFIFO, nil
	case "sjf":
		return PolicySJF, nil
	case "priority":
		return PolicyPriority, nil
	default:
		return PolicyFIFO, fmt.Errorf("unknown scheduling policy %q (want fifo, sjf, or priority)", s)
	}
}

func (p Policy) String() string {
	switch p {
	case PolicySJF:
		return "sjf"
	case PolicyPriority:
		return "priority"
	default:
		return "fifo"
	}
}

// Compare is a three-way comparator over threads: negative if a should be
// dispatched before b, zero if the policy does not order them.
type Compare func(a, b *model.Thread) int

// compareBurst orders by ascending remaining burst.
func compareBurst(a, b *model.Thread) int {
	return a.Burst - b.Burst
}

// comparePriority orders by ascending priority value; the numerically
// smaller value is more urgent and runs first.
func comparePriority(a, b *model.Thread) int {
	return a.Priority - b.Priority
}

// comparatorFor returns the active comparator, nil for FIFO.
func comparatorFor(p Policy) Compare {
	switch p {
	case PolicySJF:
		return compareBurst
	case PolicyPriority:
		return comparePriority
	default:
		return nil
	}
}

// ReadyQueue holds runnable threads in policy order. All three policies are
// one sorted-insertion list: a nil comparator degenerates to FIFO, and equal
// keys keep insertion order, so ties are stable under every policy.
type ReadyQueue struct {
	compare Compare
	items   []*model.Thread
}

// NewReadyQueue creates a queue ordered by the given policy.
func NewReadyQueue(p Policy) *ReadyQueue {
	return &ReadyQueue{compare: comparatorFor(p)}
}

// Append inserts a ready thread at its policy position: after every entry
// that does not sort strictly after it.
func (q *ReadyQueue) Append(t *model.Thread) {
	if q.compare == nil {
		q.items = append(q.items, t)
		return
	}
	i := len(q.items)
	for i > 0 && q.compare(q.items[i-1], t) > 0 {
		i--
	}
	q.items = append(q.items, nil)
	copy(q.items[i+1:], q.items[i:])
	q.items[i] = t
}

// RemoveFront removes and returns the head, or false if the queue is empty.
func (q *ReadyQueue) RemoveFront() (*model.Thread, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	t := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return t, true
}

// PeekFront returns the head without removing it, or false if empty.
func (q *ReadyQueue) PeekFront() (*model.Thread, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	return q.items[0], true
}

// Len returns the number of queued threads.
func (q *ReadyQueue) Len() int {
	return len(q.items)
}

// Threads returns a snapshot of the queue in dispatch order.
func (q *ReadyQueue) Threads() []*model.Thread {
	out := make([]*model.Thread, len(q.items))
	copy(out, q.items)
	return out
}
