// Package memory implements demand paging: it maps virtual pages to physical
// frames, evicts frames under pressure by writing victims to the swap store,
// and restores pages on fault.
//
// The manager is the sole authority over the frame and swap directories and
// over the physical-frame field of any page table entry. Like the scheduler,
// it relies on interrupts being disabled for mutual exclusion.
package memory

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/me/gokern/internal/machine"
	"github.com/me/gokern/internal/swap"
	"github.com/me/gokern/pkg/model"
)

var (
	// ErrNoEvictableFrame means every frame is locked: nothing can be
	// evicted and no frame is free. The faulting process's fate is the
	// caller's decision.
	ErrNoEvictableFrame = errors.New("memory: all frames are locked")

	// ErrSwapFull means a dirty victim had nowhere to go: every swap slot
	// is already in use.
	ErrSwapFull = errors.New("memory: swap slots exhausted")
)

// dirEntry is one record of the frame or swap directory. For frames it
// tracks ownership of a physical frame; for swap it tracks ownership of a
// backing-store slot (count and locked unused there).
type dirEntry struct {
	valid  bool
	locked bool
	pt     *model.PageTable
	vpn    int
	count  int // use counter driving the second-chance scan
}

// DirEntry is the exported snapshot form of a directory entry.
type DirEntry struct {
	Index  int  `json:"index"`
	Valid  bool `json:"valid"`
	Locked bool `json:"locked"`
	VPN    int  `json:"vpn"`
	Count  int  `json:"count"`
}

// Manager owns the frame and swap directories. Both are sized at
// construction and never resized.
type Manager struct {
	mach  *machine.Machine
	store swap.PageStore
	intr  *machine.Interrupt

	frames  []dirEntry
	swapDir []dirEntry
	hand    int // clock hand; persists between evictions

	logger *slog.Logger
}

// NewManager creates a manager over the machine's frames with swapSlots
// backing-store slots.
func NewManager(mach *machine.Machine, store swap.PageStore, swapSlots int, intr *machine.Interrupt, logger *slog.Logger) *Manager {
	machine.Assert(swapSlots >= 0, "negative swap slot count %d", swapSlots)
	return &Manager{
		mach:    mach,
		store:   store,
		intr:    intr,
		frames:  make([]dirEntry, mach.NumFrames()),
		swapDir: make([]dirEntry, swapSlots),
		logger:  logger.With("component", "memory"),
	}
}

// PageSize returns the page/frame size in bytes.
func (m *Manager) PageSize() int { return m.mach.PageSize() }

// NumFrames returns the number of physical frames managed.
func (m *Manager) NumFrames() int { return len(m.frames) }

// NumSwapSlots returns the number of backing-store slots.
func (m *Manager) NumSwapSlots() int { return len(m.swapDir) }

// findFrame returns the frame holding (pt, vpn), or -1.
func (m *Manager) findFrame(pt *model.PageTable, vpn int) int {
	for i := range m.frames {
		f := &m.frames[i]
		if f.valid && f.pt == pt && f.vpn == vpn {
			return i
		}
	}
	return -1
}

// findSwap returns the slot holding (pt, vpn), or -1.
func (m *Manager) findSwap(pt *model.PageTable, vpn int) int {
	for i := range m.swapDir {
		e := &m.swapDir[i]
		if e.valid && e.pt == pt && e.vpn == vpn {
			return i
		}
	}
	return -1
}

// findFreeFrame returns an unused frame, or -1.
func (m *Manager) findFreeFrame() int {
	for i := range m.frames {
		if !m.frames[i].valid {
			return i
		}
	}
	return -1
}

// findFreeSlot returns an unused swap slot, or -1.
func (m *Manager) findFreeSlot() int {
	for i := range m.swapDir {
		if !m.swapDir[i].valid {
			return i
		}
	}
	return -1
}

// Touch marks (pt, vpn) as referenced: the page table entry's use bit is set
// and the frame's use counter is bumped, pushing it back in the eviction
// order. Reports whether the page was resident.
func (m *Manager) Touch(pt *model.PageTable, vpn int) bool {
	m.intr.AssertDisabled()

	i := m.findFrame(pt, vpn)
	if i < 0 {
		return false
	}
	m.frames[i].count++
	pt.Entries[vpn].Use = true
	return true
}

// Acquire is the page-fault handler: it makes (pt, vpn) resident.
//
// A free frame is used if one exists; otherwise a victim is evicted by the
// second-chance scan, persisting it to a swap slot first if dirty. If the
// requested page was evicted earlier its image is copied back from its swap
// slot and the slot is released; otherwise the frame is zero-filled and the
// caller is responsible for populating it.
func (m *Manager) Acquire(pt *model.PageTable, vpn int) error {
	m.intr.AssertDisabled()
	machine.Assert(vpn >= 0 && vpn < pt.NumPages(), "vpn %d out of range [0,%d)", vpn, pt.NumPages())

	pte := &pt.Entries[vpn]
	if pte.Valid {
		// Already resident; nothing to bring in.
		m.Touch(pt, vpn)
		return nil
	}

	ppn := m.findFreeFrame()
	if ppn < 0 {
		victim, err := m.evict()
		if err != nil {
			return fmt.Errorf("acquire vpn %d: %w", vpn, err)
		}
		ppn = victim
	}

	// Bind the frame to its new owner.
	m.frames[ppn] = dirEntry{valid: true, pt: pt, vpn: vpn, count: 1}
	pte.PPN = ppn
	pte.Valid = true
	pte.Use = true
	pte.Dirty = false

	if slot := m.findSwap(pt, vpn); slot >= 0 {
		// The page was evicted earlier: restore its image and free the
		// slot. A page lives in a frame or a slot, never both.
		img, err := m.store.Read(slot)
		if err != nil {
			return fmt.Errorf("restore vpn %d from slot %d: %w", vpn, slot, err)
		}
		copy(m.mach.Frame(ppn), img)
		m.swapDir[slot] = dirEntry{}
		if err := m.store.Delete(slot); err != nil {
			return fmt.Errorf("release slot %d: %w", slot, err)
		}
		// The only copy is in RAM again; it must survive the next
		// eviction even if the owner never writes to it.
		pte.Dirty = true
		m.logger.Debug("page restored", "vpn", vpn, "ppn", ppn, "slot", slot)
	} else {
		// Fresh load: hand the caller a zeroed frame.
		m.mach.ZeroFrame(ppn)
		m.logger.Debug("page zero-filled", "vpn", vpn, "ppn", ppn)
	}

	return nil
}

// evict selects a victim by the second-chance scan and returns its frame.
//
// The clock hand walks the frame directory circularly: a locked frame is
// skipped, a frame with a positive use counter is decremented and spared,
// and the first zero-count unlocked frame is the victim. The hand position
// carries over to the next eviction.
func (m *Manager) evict() (int, error) {
	anyCandidate := false
	for i := range m.frames {
		if !m.frames[i].locked {
			anyCandidate = true
			break
		}
	}
	if !anyCandidate {
		return 0, ErrNoEvictableFrame
	}

	for {
		i := m.hand
		f := &m.frames[i]
		m.hand = (m.hand + 1) % len(m.frames)

		if !f.valid || f.locked {
			continue
		}
		if f.count > 0 {
			f.count--
			continue
		}

		vpte := &f.pt.Entries[f.vpn]
		if vpte.Dirty {
			slot := m.findSwap(f.pt, f.vpn)
			if slot < 0 {
				slot = m.findFreeSlot()
			}
			if slot < 0 {
				return 0, ErrSwapFull
			}
			if err := m.store.Write(slot, m.mach.Frame(i)); err != nil {
				return 0, fmt.Errorf("save victim vpn %d: %w", f.vpn, err)
			}
			m.swapDir[slot] = dirEntry{valid: true, pt: f.pt, vpn: f.vpn}
			m.logger.Debug("page evicted to swap", "vpn", f.vpn, "ppn", i, "slot", slot)
		} else {
			m.logger.Debug("clean page dropped", "vpn", f.vpn, "ppn", i)
		}

		vpte.Valid = false
		vpte.PPN = -1 // stale
		*f = dirEntry{}
		return i, nil
	}
}

// ReleaseAll frees every frame and swap slot owned by pt. Called on process
// exit; idempotent, and afterwards no directory entry points at pt.
func (m *Manager) ReleaseAll(pt *model.PageTable, numPages int) error {
	m.intr.AssertDisabled()

	for vpn := 0; vpn < numPages && vpn < pt.NumPages(); vpn++ {
		pte := &pt.Entries[vpn]
		if !pte.Valid {
			continue
		}
		if i := m.findFrame(pt, vpn); i >= 0 {
			m.frames[i] = dirEntry{}
		}
		pte.Valid = false
		pte.PPN = -1
	}

	var firstErr error
	for slot := range m.swapDir {
		e := &m.swapDir[slot]
		if !e.valid || e.pt != pt {
			continue
		}
		m.swapDir[slot] = dirEntry{}
		if err := m.store.Delete(slot); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("release slot %d: %w", slot, err)
		}
	}
	return firstErr
}

// LockFrame pins frame ppn, making it ineligible for eviction (mid-I/O).
func (m *Manager) LockFrame(ppn int) {
	m.intr.AssertDisabled()
	m.frames[ppn].locked = true
}

// UnlockFrame unpins frame ppn.
func (m *Manager) UnlockFrame(ppn int) {
	m.intr.AssertDisabled()
	m.frames[ppn].locked = false
}

// WritePage copies data into page (pt, vpn) starting at offset 0, faulting
// the page in first if needed. The loader and the self-test workloads go
// through here so the dirty bit and use counter stay honest.
func (m *Manager) WritePage(pt *model.PageTable, vpn int, data []byte) error {
	m.intr.AssertDisabled()
	machine.Assert(len(data) <= m.PageSize(), "write of %d bytes exceeds page size %d", len(data), m.PageSize())

	if !pt.Entries[vpn].Valid {
		if err := m.Acquire(pt, vpn); err != nil {
			return err
		}
	}
	pte := &pt.Entries[vpn]
	copy(m.mach.Frame(pte.PPN), data)
	pte.Dirty = true
	m.Touch(pt, vpn)
	return nil
}

// ReadPage returns a copy of page (pt, vpn), faulting it in first if needed.
func (m *Manager) ReadPage(pt *model.PageTable, vpn int) ([]byte, error) {
	m.intr.AssertDisabled()

	if !pt.Entries[vpn].Valid {
		if err := m.Acquire(pt, vpn); err != nil {
			return nil, err
		}
	}
	pte := &pt.Entries[vpn]
	out := make([]byte, m.PageSize())
	copy(out, m.mach.Frame(pte.PPN))
	m.Touch(pt, vpn)
	return out, nil
}

// FrameSnapshot returns the frame directory for diagnostics.
func (m *Manager) FrameSnapshot() []DirEntry {
	return snapshot(m.frames)
}

// SwapSnapshot returns the swap directory for diagnostics.
func (m *Manager) SwapSnapshot() []DirEntry {
	return snapshot(m.swapDir)
}

func snapshot(dir []dirEntry) []DirEntry {
	out := make([]DirEntry, len(dir))
	for i, e := range dir {
		out[i] = DirEntry{Index: i, Valid: e.valid, Locked: e.locked, VPN: e.vpn, Count: e.count}
	}
	return out
}
