// Package kernel wires the machine, the scheduler, and the memory manager
// into one context object and implements the thread lifecycle on top of
// them. There is no ambient global state: everything a call site needs
// hangs off the Kernel instance.
package kernel

import (
	"bytes"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/gokern/internal/config"
	"github.com/me/gokern/internal/machine"
	"github.com/me/gokern/internal/memory"
	"github.com/me/gokern/internal/scheduler"
	"github.com/me/gokern/internal/swap"
	"github.com/me/gokern/pkg/model"
)

// Kernel is the simulated kernel. The goroutine that creates it becomes the
// initial thread ("main"); further threads come from Fork and run only when
// dispatched. Exactly one thread executes at a time.
type Kernel struct {
	intr     *machine.Interrupt
	switcher *machine.Switcher
	mach     *machine.Machine
	sched    *scheduler.Scheduler
	mm       *memory.Manager

	main      *model.Thread
	live      int // forked threads that have not finished yet
	startTime time.Time
	logger    *slog.Logger
}

// New builds a kernel from cfg, backed by store for swap, and adopts the
// calling goroutine as the initial thread.
func New(cfg config.KernelConfig, store swap.PageStore, logger *slog.Logger) (*Kernel, error) {
	policy, err := scheduler.ParsePolicy(cfg.Policy)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("kernel config: %w", err)
	}

	k := &Kernel{
		intr:      machine.NewInterrupt(),
		mach:      machine.NewMachine(cfg.Frames, cfg.PageSize),
		startTime: time.Now(),
		logger:    logger.With("component", "kernel"),
	}
	k.switcher = machine.NewSwitcher(k.threadBegin, k.threadDone, logger)
	k.sched = scheduler.New(policy, k.intr, k.switcher, logger)
	k.mm = memory.NewManager(k.mach, store, cfg.SwapSlots, k.intr, logger)

	k.main = model.NewThread("main", 0, 0)
	k.switcher.Adopt(k.main)
	k.sched.Bootstrap(k.main)

	k.logger.Info("kernel up",
		"policy", policy.String(),
		"frames", cfg.Frames,
		"page_size", cfg.PageSize,
		"swap_slots", cfg.SwapSlots)
	return k, nil
}

// Scheduler returns the kernel's scheduler.
func (k *Kernel) Scheduler() *scheduler.Scheduler { return k.sched }

// Memory returns the kernel's memory manager.
func (k *Kernel) Memory() *memory.Manager { return k.mm }

// threadBegin runs on every forked thread's goroutine before its body, with
// interrupts still off from the switch that started it: drain any deferred
// destruction, install the thread's translation, then enable interrupts.
func (k *Kernel) threadBegin(t *model.Thread) {
	k.sched.CheckToBeDestroyed()
	if t.Space != nil {
		t.Space.RestoreState()
	}
	k.intr.SetLevel(machine.IntOn)
}

// threadDone runs when a forked thread's body returns.
func (k *Kernel) threadDone(t *model.Thread) {
	k.Finish()
}

// Fork creates machine state for t and marks it ready. The body starts
// running when the scheduler first dispatches t.
func (k *Kernel) Fork(t *model.Thread, body func()) {
	old := k.intr.SetLevel(machine.IntOff)
	k.switcher.Register(t, body)
	k.live++
	k.sched.MarkReady(t)
	k.intr.SetLevel(old)
	k.logger.Debug("forked", "thread", t.Name, "priority", t.Priority, "burst", t.Burst)
}

// Yield gives up the CPU voluntarily. If another thread is ready, the caller
// goes to the back of its policy position and the head runs; control returns
// here when the caller is redispatched. With an empty ready queue this is a
// no-op.
func (k *Kernel) Yield() {
	old := k.intr.SetLevel(machine.IntOff)
	if next := k.sched.SelectNext(); next != nil {
		k.sched.MarkReady(k.sched.Current())
		k.sched.Dispatch(next, false)
	}
	k.intr.SetLevel(old)
}

// Sleep parks the calling thread for the given number of ticks and yields
// the CPU. The thread wakes when AdvanceAndWake has run that many times.
func (k *Kernel) Sleep(ticks int64) {
	old := k.intr.SetLevel(machine.IntOff)
	k.sched.FallAsleep(k.sched.Current(), ticks)
	k.relinquish(false)
	k.intr.SetLevel(old)
}

// Finish ends the calling thread. Its destruction is deferred: the thread is
// still running on its own stack, so the next occupant of the CPU drains it.
// Does not return to the caller's context.
func (k *Kernel) Finish() {
	k.intr.SetLevel(machine.IntOff)
	cur := k.sched.Current()
	k.logger.Debug("thread finishing", "thread", cur.Name)
	cur.Status = model.StatusBlocked
	k.live--
	k.relinquish(true)
	// The goroutine unwinds here; interrupts stay off and are re-enabled
	// by whichever thread was dispatched.
}

// relinquish hands the CPU to the next ready thread, idling the clock
// forward while only sleepers remain. Interrupts must be off.
func (k *Kernel) relinquish(finishing bool) {
	next := k.sched.SelectNext()
	for next == nil {
		machine.Assert(k.sched.HasSleepers(), "machine idle with no pending wakeups")
		k.sched.AdvanceAndWake()
		next = k.sched.SelectNext()
	}
	k.sched.Dispatch(next, finishing)
}

// OneTick is the cooperative clock wrapper: running code calls it once per
// simulated timer interrupt. It advances the clock, wakes expired sleepers,
// and, for preemptive policies, yields if the ready head now takes precedence
// over the caller.
func (k *Kernel) OneTick() {
	old := k.intr.SetLevel(machine.IntOff)
	k.sched.AdvanceAndWake()
	yield := k.sched.NeedsYield()
	k.intr.SetLevel(old)

	if yield {
		k.Yield()
	}
}

// WaitQuiescent runs the calling (initial) thread until every forked thread
// has finished, yielding to ready threads and idling the clock forward while
// only sleepers remain.
func (k *Kernel) WaitQuiescent() {
	for {
		old := k.intr.SetLevel(machine.IntOff)
		live := k.live
		hasReady := k.sched.HasReady()
		hasSleepers := k.sched.HasSleepers()
		k.intr.SetLevel(old)

		switch {
		case live == 0:
			return
		case hasReady:
			k.Yield()
		case hasSleepers:
			k.OneTick()
		default:
			machine.Assert(false, "%d live threads but none runnable or sleeping", live)
		}
	}
}

// Exec creates a user thread with its own address space, loads the given
// raw image into it, and forks it. The body runs with the space installed.
func (k *Kernel) Exec(t *model.Thread, pages int, image []byte, body func()) error {
	as := memory.NewAddrSpace(k.mm, pages, k.logger)

	old := k.intr.SetLevel(machine.IntOff)
	err := as.Load(bytes.NewReader(image))
	k.intr.SetLevel(old)
	if err != nil {
		return fmt.Errorf("exec %s: %w", t.Name, err)
	}

	t.Space = as
	k.Fork(t, body)
	return nil
}
