package machine

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/me/gokern/pkg/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestInterrupt_SetLevelReturnsOld(t *testing.T) {
	intr := NewInterrupt()
	if intr.Level() != IntOn {
		t.Fatal("interrupts should start enabled")
	}

	old := intr.SetLevel(IntOff)
	if old != IntOn {
		t.Errorf("SetLevel(IntOff) returned %v, want IntOn", old)
	}
	if intr.Level() != IntOff {
		t.Error("level should be off")
	}

	// Redundant disable is a no-op and still reports off.
	if old := intr.SetLevel(IntOff); old != IntOff {
		t.Errorf("redundant disable returned %v, want IntOff", old)
	}

	intr.SetLevel(IntOn)
	if intr.Level() != IntOn {
		t.Error("level should be back on")
	}
}

func TestInterrupt_AssertDisabled(t *testing.T) {
	intr := NewInterrupt()

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("AssertDisabled with interrupts on should abort")
		}
		if !strings.Contains(r.(string), "interrupts must be disabled") {
			t.Errorf("unexpected panic message: %v", r)
		}
	}()
	intr.AssertDisabled()
}

func TestInterrupt_Exclude(t *testing.T) {
	intr := NewInterrupt()
	ran := false
	intr.Exclude(func() { ran = true })
	if !ran {
		t.Error("Exclude did not run the function")
	}
	// The mutex must be free again: a kernel thread can disable afterwards.
	intr.SetLevel(IntOff)
	intr.SetLevel(IntOn)
}

func TestMachine_FrameAliasesRAM(t *testing.T) {
	m := NewMachine(4, 16)
	if m.NumFrames() != 4 || m.PageSize() != 16 {
		t.Fatalf("geometry = %d frames x %d bytes, want 4x16", m.NumFrames(), m.PageSize())
	}

	copy(m.Frame(2), []byte("hello"))
	if got := string(m.Frame(2)[:5]); got != "hello" {
		t.Errorf("frame 2 = %q, want %q", got, "hello")
	}
	// Neighboring frames untouched.
	for _, b := range m.Frame(1) {
		if b != 0 {
			t.Fatal("write to frame 2 leaked into frame 1")
		}
	}

	m.ZeroFrame(2)
	for _, b := range m.Frame(2) {
		if b != 0 {
			t.Fatal("ZeroFrame left data behind")
		}
	}
}

func TestMachine_FrameOutOfRange(t *testing.T) {
	m := NewMachine(2, 8)
	defer func() {
		if recover() == nil {
			t.Fatal("Frame(2) on a 2-frame machine should abort")
		}
	}()
	m.Frame(2)
}

func TestSwitcher_HandoffAndFinish(t *testing.T) {
	var events []string

	main := model.NewThread("main", 0, 0)
	worker := model.NewThread("worker", 0, 0)

	var s *Switcher
	begin := func(th *model.Thread) { events = append(events, "begin:"+th.Name) }
	done := func(th *model.Thread) {
		events = append(events, "done:"+th.Name)
		// Finishing switch: hand control back to main and let the
		// worker goroutine unwind.
		s.Switch(th, main, true)
	}
	s = NewSwitcher(begin, done, testLogger())

	s.Adopt(main)
	s.Register(worker, func() { events = append(events, "body:worker") })

	s.CheckOverflow(main)
	s.Switch(main, worker, false) // blocks until the worker finishes

	want := []string{"begin:worker", "body:worker", "done:worker"}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("events = %v, want %v", events, want)
		}
	}

	s.Release(worker)
	if s.contexts[worker] != nil {
		t.Error("Release left the worker context behind")
	}
}

func TestSwitcher_RegisterTwiceAborts(t *testing.T) {
	s := NewSwitcher(func(*model.Thread) {}, func(*model.Thread) {}, testLogger())
	th := model.NewThread("dup", 0, 0)
	s.Register(th, func() {})

	defer func() {
		if recover() == nil {
			t.Fatal("double Register should abort")
		}
	}()
	s.Register(th, func() {})
}
