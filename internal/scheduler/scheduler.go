package scheduler

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/me/gokern/internal/machine"
	"github.com/me/gokern/pkg/model"
)

// Sleeper is a thread parked until an absolute tick.
type Sleeper struct {
	Thread   *model.Thread
	WakeTick int64
}

// Scheduler owns the ready queue, the sleep set, the tick clock, and the
// current-thread reference. There is exactly one instance per kernel; no
// scheduling state lives in package globals.
type Scheduler struct {
	policy  Policy
	compare Compare // nil for FIFO
	ready   *ReadyQueue

	sleepers []Sleeper
	tick     int64

	current       *model.Thread
	toBeDestroyed *model.Thread // single-slot deferred free, drained after each switch

	intr     *machine.Interrupt
	switcher *machine.Switcher
	logger   *slog.Logger
}

// New creates a scheduler for the given policy.
func New(p Policy, intr *machine.Interrupt, sw *machine.Switcher, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		policy:   p,
		compare:  comparatorFor(p),
		ready:    NewReadyQueue(p),
		intr:     intr,
		switcher: sw,
		logger:   logger.With("component", "scheduler"),
	}
}

// Bootstrap installs the initial thread as the running one. Called once,
// before any dispatch.
func (s *Scheduler) Bootstrap(t *model.Thread) {
	machine.Assert(s.current == nil, "scheduler already bootstrapped")
	t.Status = model.StatusRunning
	s.current = t
}

// Policy returns the active scheduling policy.
func (s *Scheduler) Policy() Policy { return s.policy }

// Current returns the running thread.
func (s *Scheduler) Current() *model.Thread { return s.current }

// Tick returns the current value of the tick clock.
func (s *Scheduler) Tick() int64 { return s.tick }

// MarkReady marks t runnable and puts it on the ready queue.
func (s *Scheduler) MarkReady(t *model.Thread) {
	s.intr.AssertDisabled()
	s.logger.Debug("thread ready", "thread", t.Name)

	t.Status = model.StatusReady
	s.ready.Append(t)
}

// SelectNext removes and returns the head of the ready queue, or nil if no
// thread is ready. It does not touch the current thread.
func (s *Scheduler) SelectNext() *model.Thread {
	s.intr.AssertDisabled()

	t, ok := s.ready.RemoveFront()
	if !ok {
		return nil
	}
	return t
}

// Dispatch switches the CPU from the current thread to next.
//
// If finishing, the outgoing thread is marked for deferred destruction: it
// cannot be freed here because it is still the execution context performing
// the switch. The destruction is drained after the switch primitive next
// returns control to some thread (CheckToBeDestroyed).
//
// The outgoing thread's address-space state is saved before the switch and
// restored symmetrically when it is eventually switched back in.
func (s *Scheduler) Dispatch(next *model.Thread, finishing bool) {
	s.intr.AssertDisabled()

	old := s.current

	if finishing {
		if s.toBeDestroyed != nil {
			machine.Assert(false,
				"thread %q finishing while %q still pending destruction", old.Name, s.toBeDestroyed.Name)
		}
		s.toBeDestroyed = old
	}

	if old.Space != nil {
		old.Space.SaveState()
	}

	s.switcher.CheckOverflow(old)

	s.current = next
	next.Status = model.StatusRunning
	s.logger.Debug("switching", "from", old.Name, "to", next.Name, "finishing", finishing)

	s.switcher.Switch(old, next, finishing)
	if finishing {
		// Never resumed; let the goroutine unwind.
		return
	}

	// Back in old, interrupts still off.
	s.intr.AssertDisabled()
	s.logger.Debug("resumed", "thread", old.Name)

	s.CheckToBeDestroyed()

	if old.Space != nil {
		old.Space.RestoreState()
	}
}

// CheckToBeDestroyed drains the deferred-destruction slot. Safe to call any
// time the previous occupant of the CPU is no longer running on its stack:
// right after a switch returns, and at the top of every fresh thread.
func (s *Scheduler) CheckToBeDestroyed() {
	t := s.toBeDestroyed
	if t == nil {
		return
	}
	s.toBeDestroyed = nil

	if t.Space != nil {
		t.Space.Release()
	}
	s.switcher.Release(t)
	s.logger.Debug("thread destroyed", "thread", t.Name)
}

// FallAsleep parks t until the clock has advanced by ticks. The caller is
// responsible for yielding the CPU afterwards; FallAsleep itself does not
// reschedule.
func (s *Scheduler) FallAsleep(t *model.Thread, ticks int64) {
	s.intr.AssertDisabled()
	machine.Assert(ticks > 0, "sleep duration must be positive (got %d)", ticks)

	wake := s.tick + ticks
	s.sleepers = append(s.sleepers, Sleeper{Thread: t, WakeTick: wake})
	t.Status = model.StatusBlocked
	s.logger.Debug("thread sleeping", "thread", t.Name, "wake_tick", wake)
}

// AdvanceAndWake advances the tick clock by one, then moves every sleeper
// whose deadline has arrived back to the ready queue. All expired entries
// wake in the same pass. Reports whether any thread was woken.
func (s *Scheduler) AdvanceAndWake() bool {
	s.intr.AssertDisabled()

	s.tick++
	woken := false

	kept := s.sleepers[:0]
	for _, e := range s.sleepers {
		if e.WakeTick <= s.tick {
			s.logger.Debug("thread woken", "thread", e.Thread.Name, "tick", s.tick)
			s.MarkReady(e.Thread)
			woken = true
		} else {
			kept = append(kept, e)
		}
	}
	for i := len(kept); i < len(s.sleepers); i++ {
		s.sleepers[i] = Sleeper{}
	}
	s.sleepers = kept

	return woken
}

// NeedsYield reports whether the ready-queue head would sort strictly before
// the running thread under the active policy. Advisory only: it never
// triggers the yield itself. Always false for FIFO.
func (s *Scheduler) NeedsYield() bool {
	if s.compare == nil {
		return false
	}
	head, ok := s.ready.PeekFront()
	if !ok {
		return false
	}
	return s.compare(head, s.current) < 0
}

// HasReady reports whether any thread is waiting on the ready queue.
func (s *Scheduler) HasReady() bool { return s.ready.Len() > 0 }

// HasSleepers reports whether any thread is parked on the sleep set.
func (s *Scheduler) HasSleepers() bool { return len(s.sleepers) > 0 }

// ReadySnapshot returns the ready queue in dispatch order.
func (s *Scheduler) ReadySnapshot() []*model.Thread { return s.ready.Threads() }

// SleepersSnapshot returns a copy of the sleep set.
func (s *Scheduler) SleepersSnapshot() []Sleeper {
	out := make([]Sleeper, len(s.sleepers))
	copy(out, s.sleepers)
	return out
}

// DumpReady writes a human-readable dump of the ready queue. Debug output,
// not a stable format.
func (s *Scheduler) DumpReady(w io.Writer) {
	fmt.Fprintln(w, "Ready list contents:")
	for _, t := range s.ready.Threads() {
		fmt.Fprintf(w, "  %s (priority %d, burst %d)\n", t.Name, t.Priority, t.Burst)
	}
}
