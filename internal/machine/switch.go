package machine

import (
	"log/slog"

	"github.com/me/gokern/pkg/model"
)

// stackMagic guards the top of every simulated thread stack. A corrupted
// canary means the thread overflowed before it was switched out.
const stackMagic uint32 = 0xdeadbeef

// threadContext is the saved machine state of one thread: its goroutine's
// parking spot, its entry point, and its stack canary.
type threadContext struct {
	resume  chan struct{}
	body    func()
	started bool
	canary  uint32
}

// Switcher is the low-level context-switch primitive. Each thread runs on
// its own goroutine, parked on a resume channel; Switch unparks the incoming
// thread and parks the outgoing one. From the caller's point of view the
// switch is atomic: control leaves at the Switch call and resumes there,
// with interrupts still off, when the thread is next dispatched.
type Switcher struct {
	contexts map[*model.Thread]*threadContext

	// begin runs on a thread's goroutine before its body, with interrupts
	// still off; done runs after the body returns. Both are wired by the
	// kernel (drain deferred destruction + enable, and finish).
	begin func(*model.Thread)
	done  func(*model.Thread)

	logger *slog.Logger
}

// NewSwitcher creates a switcher. begin and done bracket every thread body.
func NewSwitcher(begin, done func(*model.Thread), logger *slog.Logger) *Switcher {
	return &Switcher{
		contexts: make(map[*model.Thread]*threadContext),
		begin:    begin,
		done:     done,
		logger:   logger.With("component", "switch"),
	}
}

// Register allocates machine state for a forked thread. The goroutine is not
// started until the thread is first dispatched.
func (s *Switcher) Register(t *model.Thread, body func()) {
	Assert(s.contexts[t] == nil, "thread %q already has machine state", t.Name)
	s.contexts[t] = &threadContext{
		resume: make(chan struct{}, 1),
		body:   body,
		canary: stackMagic,
	}
}

// Adopt binds the calling goroutine to t. Used once, for the initial thread:
// it already has a stack, so it is registered as started with no body.
func (s *Switcher) Adopt(t *model.Thread) {
	Assert(s.contexts[t] == nil, "thread %q already has machine state", t.Name)
	s.contexts[t] = &threadContext{
		resume:  make(chan struct{}, 1),
		started: true,
		canary:  stackMagic,
	}
}

// Release frees t's machine state. Called when a finished thread's deferred
// destruction is drained.
func (s *Switcher) Release(t *model.Thread) {
	delete(s.contexts, t)
}

// CheckOverflow aborts if t's stack canary was clobbered.
func (s *Switcher) CheckOverflow(t *model.Thread) {
	ctx := s.contexts[t]
	Assert(ctx != nil, "overflow check on unregistered thread %q", t.Name)
	Assert(ctx.canary == stackMagic, "thread %q overflowed its stack", t.Name)
}

// Switch transfers control from old to next. If oldFinishing, old never
// resumes: Switch returns immediately so old's goroutine can unwind and
// exit, and its context is reclaimed later via Release.
//
// Must be called with interrupts off; the off-state is handed to next.
func (s *Switcher) Switch(old, next *model.Thread, oldFinishing bool) {
	octx := s.contexts[old]
	nctx := s.contexts[next]
	Assert(octx != nil, "switch from unregistered thread %q", old.Name)
	Assert(nctx != nil, "switch to unregistered thread %q", next.Name)

	if !nctx.started {
		nctx.started = true
		go s.run(next, nctx)
	}

	// The buffer lets the token land before next's goroutine reaches its
	// receive, in either start order.
	nctx.resume <- struct{}{}

	if oldFinishing {
		return
	}
	<-octx.resume
}

// run is the entry point of every forked thread's goroutine: wait for first
// dispatch, run the kernel's begin hook, the body, then the done hook.
func (s *Switcher) run(t *model.Thread, ctx *threadContext) {
	<-ctx.resume
	s.logger.Debug("thread started", "thread", t.Name)
	s.begin(t)
	ctx.body()
	s.done(t)
}
