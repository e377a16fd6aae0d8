package machine

import "github.com/me/gokern/pkg/model"

// Machine is the simulated physical hardware: a flat byte array divided into
// page-sized frames, plus the active translation context.
type Machine struct {
	pageSize  int
	numFrames int
	ram       []byte
	pageTable *model.PageTable // active translation, installed on RestoreState
}

// NewMachine allocates numFrames frames of pageSize bytes each.
func NewMachine(numFrames, pageSize int) *Machine {
	Assert(numFrames > 0, "machine needs at least one frame (got %d)", numFrames)
	Assert(pageSize > 0, "page size must be positive (got %d)", pageSize)
	return &Machine{
		pageSize:  pageSize,
		numFrames: numFrames,
		ram:       make([]byte, numFrames*pageSize),
	}
}

// PageSize returns the frame/page size in bytes.
func (m *Machine) PageSize() int { return m.pageSize }

// NumFrames returns the number of physical frames.
func (m *Machine) NumFrames() int { return m.numFrames }

// Frame returns the backing bytes of physical frame ppn. The slice aliases
// RAM, so writes through it are writes to memory.
func (m *Machine) Frame(ppn int) []byte {
	Assert(ppn >= 0 && ppn < m.numFrames, "frame %d out of range [0,%d)", ppn, m.numFrames)
	return m.ram[ppn*m.pageSize : (ppn+1)*m.pageSize]
}

// ZeroFrame clears physical frame ppn.
func (m *Machine) ZeroFrame(ppn int) {
	f := m.Frame(ppn)
	for i := range f {
		f[i] = 0
	}
}

// SetPageTable installs pt as the active translation context. Called by
// AddrSpace.RestoreState when its thread is switched back in; nil while a
// kernel-only thread runs.
func (m *Machine) SetPageTable(pt *model.PageTable) {
	m.pageTable = pt
}

// PageTable returns the active translation context, nil if none.
func (m *Machine) PageTable() *model.PageTable {
	return m.pageTable
}
