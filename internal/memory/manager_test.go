package memory

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/me/gokern/internal/machine"
	"github.com/me/gokern/internal/swap"
	"github.com/me/gokern/pkg/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestManager builds a manager over numFrames frames of 8 bytes, backed
// by an in-memory swap store, with interrupts already disabled.
func newTestManager(t *testing.T, numFrames, swapSlots int) (*Manager, *machine.Machine) {
	t.Helper()
	logger := testLogger()

	st, err := swap.NewSQLiteStore(":memory:", logger)
	if err != nil {
		t.Fatalf("open swap store: %v", err)
	}
	if err := st.Migrate(); err != nil {
		t.Fatalf("migrate swap store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	mach := machine.NewMachine(numFrames, 8)
	intr := machine.NewInterrupt()
	intr.SetLevel(machine.IntOff)

	return NewManager(mach, st, swapSlots, intr, logger), mach
}

func validFrames(m *Manager) int {
	n := 0
	for _, e := range m.FrameSnapshot() {
		if e.Valid {
			n++
		}
	}
	return n
}

func validSlots(m *Manager) int {
	n := 0
	for _, e := range m.SwapSnapshot() {
		if e.Valid {
			n++
		}
	}
	return n
}

func TestAcquire_UsesFreeFrames(t *testing.T) {
	m, _ := newTestManager(t, 2, 2)
	pt := model.NewPageTable(4)

	if err := m.Acquire(pt, 0); err != nil {
		t.Fatalf("Acquire(0): %v", err)
	}
	if err := m.Acquire(pt, 1); err != nil {
		t.Fatalf("Acquire(1): %v", err)
	}

	if !pt.Entries[0].Valid || !pt.Entries[1].Valid {
		t.Fatal("acquired pages must be valid")
	}
	if pt.Entries[0].PPN == pt.Entries[1].PPN {
		t.Error("two pages bound to the same frame")
	}
	if validFrames(m) != 2 {
		t.Errorf("frame directory has %d valid entries, want 2", validFrames(m))
	}
	if validSlots(m) != 0 {
		t.Error("no page should have reached swap yet")
	}
}

func TestAcquire_AlreadyResidentIsANoOp(t *testing.T) {
	m, _ := newTestManager(t, 2, 2)
	pt := model.NewPageTable(1)

	if err := m.Acquire(pt, 0); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	ppn := pt.Entries[0].PPN
	if err := m.Acquire(pt, 0); err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	if pt.Entries[0].PPN != ppn {
		t.Error("re-acquiring a resident page moved it")
	}
	if validFrames(m) != 1 {
		t.Errorf("valid frames = %d, want 1", validFrames(m))
	}
}

func TestAcquire_FreshPageIsZeroFilled(t *testing.T) {
	m, mach := newTestManager(t, 1, 1)
	pt := model.NewPageTable(1)

	// Dirty the frame directly, as a previous owner would have.
	copy(mach.Frame(0), []byte("garbage!"))

	if err := m.Acquire(pt, 0); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	for _, b := range mach.Frame(pt.Entries[0].PPN) {
		if b != 0 {
			t.Fatal("fresh page not zero-filled")
		}
	}
}

func TestAcquire_EvictionRoundTrip(t *testing.T) {
	// 2 frames, 2 slots. Fill both frames, fault a third page, then fault
	// the victim back in.
	m, _ := newTestManager(t, 2, 2)
	pt := model.NewPageTable(3)

	if err := m.WritePage(pt, 0, []byte("page-0!!")); err != nil {
		t.Fatalf("WritePage(0): %v", err)
	}
	if err := m.WritePage(pt, 1, []byte("page-1!!")); err != nil {
		t.Fatalf("WritePage(1): %v", err)
	}

	if err := m.Acquire(pt, 2); err != nil {
		t.Fatalf("Acquire(2) with full frames: %v", err)
	}
	if !pt.Entries[2].Valid {
		t.Fatal("faulting page not resident after eviction")
	}
	if validSlots(m) != 1 {
		t.Fatalf("swap slots in use = %d, want exactly the victim", validSlots(m))
	}

	// Exactly one of page 0/1 was evicted; it must be invalid with a
	// stale frame number.
	evicted := -1
	for vpn := 0; vpn <= 1; vpn++ {
		if !pt.Entries[vpn].Valid {
			evicted = vpn
		}
	}
	if evicted < 0 {
		t.Fatal("no victim recorded in the page table")
	}
	if pt.Entries[evicted].PPN != -1 {
		t.Errorf("victim PPN = %d, want stale (-1)", pt.Entries[evicted].PPN)
	}

	// Re-acquire the victim: original bytes restored, slot freed.
	got, err := m.ReadPage(pt, evicted)
	if err != nil {
		t.Fatalf("ReadPage(%d): %v", evicted, err)
	}
	want := []byte("page-0!!")
	if evicted == 1 {
		want = []byte("page-1!!")
	}
	if !bytes.Equal(got, want) {
		t.Errorf("restored page = %q, want %q", got, want)
	}
	if validSlots(m) != 1 {
		// Restoring the first victim evicted another page into a slot.
		t.Errorf("swap slots in use = %d after restore, want 1", validSlots(m))
	}
}

func TestEvict_SecondChancePrefersColdFrame(t *testing.T) {
	m, _ := newTestManager(t, 2, 2)
	pt := model.NewPageTable(3)

	if err := m.WritePage(pt, 0, []byte("cold")); err != nil {
		t.Fatalf("WritePage(0): %v", err)
	}
	if err := m.WritePage(pt, 1, []byte("hot")); err != nil {
		t.Fatalf("WritePage(1): %v", err)
	}
	// Page 1 gets an extra reference, so page 0 hits count zero first.
	if !m.Touch(pt, 1) {
		t.Fatal("Touch on a resident page returned false")
	}

	if err := m.Acquire(pt, 2); err != nil {
		t.Fatalf("Acquire(2): %v", err)
	}
	if pt.Entries[0].Valid {
		t.Error("cold page 0 should have been the victim")
	}
	if !pt.Entries[1].Valid {
		t.Error("hot page 1 should have been spared")
	}
}

func TestEvict_SkipsLockedFrames(t *testing.T) {
	m, _ := newTestManager(t, 2, 2)
	pt := model.NewPageTable(3)

	if err := m.WritePage(pt, 0, []byte("pinned")); err != nil {
		t.Fatalf("WritePage(0): %v", err)
	}
	if err := m.WritePage(pt, 1, []byte("victim")); err != nil {
		t.Fatalf("WritePage(1): %v", err)
	}
	m.LockFrame(pt.Entries[0].PPN)

	if err := m.Acquire(pt, 2); err != nil {
		t.Fatalf("Acquire(2): %v", err)
	}
	if !pt.Entries[0].Valid {
		t.Error("locked frame was evicted")
	}
	if pt.Entries[1].Valid {
		t.Error("unlocked frame should have been the victim")
	}
}

func TestAcquire_AllFramesLockedFails(t *testing.T) {
	m, _ := newTestManager(t, 2, 2)
	pt := model.NewPageTable(3)

	if err := m.Acquire(pt, 0); err != nil {
		t.Fatalf("Acquire(0): %v", err)
	}
	if err := m.Acquire(pt, 1); err != nil {
		t.Fatalf("Acquire(1): %v", err)
	}
	m.LockFrame(pt.Entries[0].PPN)
	m.LockFrame(pt.Entries[1].PPN)

	err := m.Acquire(pt, 2)
	if !errors.Is(err, ErrNoEvictableFrame) {
		t.Fatalf("Acquire with all frames locked = %v, want ErrNoEvictableFrame", err)
	}
	if pt.Entries[2].Valid {
		t.Error("failed acquisition must not leave the page valid")
	}

	// Unpinning one frame makes acquisition succeed again.
	m.UnlockFrame(pt.Entries[1].PPN)
	if err := m.Acquire(pt, 2); err != nil {
		t.Fatalf("Acquire after unlock: %v", err)
	}
}

func TestAcquire_SwapExhausted(t *testing.T) {
	m, _ := newTestManager(t, 1, 0)
	pt := model.NewPageTable(2)

	if err := m.WritePage(pt, 0, []byte("dirty")); err != nil {
		t.Fatalf("WritePage: %v", err)
	}

	err := m.Acquire(pt, 1)
	if !errors.Is(err, ErrSwapFull) {
		t.Fatalf("Acquire with dirty victim and no slots = %v, want ErrSwapFull", err)
	}
}

func TestEvict_CleanVictimSkipsSwap(t *testing.T) {
	m, _ := newTestManager(t, 1, 1)
	pt := model.NewPageTable(2)

	// Page 0 is acquired but never written: clean, droppable.
	if err := m.Acquire(pt, 0); err != nil {
		t.Fatalf("Acquire(0): %v", err)
	}
	m.frames[0].count = 0 // age it past its initial reference

	if err := m.Acquire(pt, 1); err != nil {
		t.Fatalf("Acquire(1): %v", err)
	}
	if validSlots(m) != 0 {
		t.Error("clean victim must not consume a swap slot")
	}
	if pt.Entries[0].Valid {
		t.Error("clean victim still marked resident")
	}
}

func TestReleaseAll_NoLeakageAcrossProcesses(t *testing.T) {
	m, _ := newTestManager(t, 2, 2)
	pt := model.NewPageTable(3)

	// Occupy both frames and push one page out to swap.
	for vpn := 0; vpn < 3; vpn++ {
		if err := m.WritePage(pt, vpn, []byte{byte(vpn)}); err != nil {
			t.Fatalf("WritePage(%d): %v", vpn, err)
		}
	}
	if validSlots(m) == 0 {
		t.Fatal("setup: expected at least one page in swap")
	}

	if err := m.ReleaseAll(pt, 3); err != nil {
		t.Fatalf("ReleaseAll: %v", err)
	}
	if validFrames(m) != 0 || validSlots(m) != 0 {
		t.Fatalf("directories not empty after release: %d frames, %d slots", validFrames(m), validSlots(m))
	}
	for vpn := 0; vpn < 3; vpn++ {
		if pt.Entries[vpn].Valid {
			t.Errorf("page %d still valid after release", vpn)
		}
	}

	// Idempotent.
	if err := m.ReleaseAll(pt, 3); err != nil {
		t.Fatalf("second ReleaseAll: %v", err)
	}

	// A new process must never observe the old one's bytes.
	pt2 := model.NewPageTable(1)
	got, err := m.ReadPage(pt2, 0)
	if err != nil {
		t.Fatalf("ReadPage on fresh table: %v", err)
	}
	for _, b := range got {
		if b != 0 {
			t.Fatal("fresh page leaked a previous process's contents")
		}
	}
}

func TestTouch_NonResidentPage(t *testing.T) {
	m, _ := newTestManager(t, 1, 1)
	pt := model.NewPageTable(1)
	if m.Touch(pt, 0) {
		t.Error("Touch on a non-resident page reported residency")
	}
}

func TestTouch_BumpsUseCounter(t *testing.T) {
	m, _ := newTestManager(t, 1, 1)
	pt := model.NewPageTable(1)

	if err := m.Acquire(pt, 0); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	before := m.FrameSnapshot()[0].Count
	m.Touch(pt, 0)
	after := m.FrameSnapshot()[0].Count
	if after != before+1 {
		t.Errorf("count = %d after Touch, want %d", after, before+1)
	}
	if !pt.Entries[0].Use {
		t.Error("Touch did not set the use bit")
	}
}
