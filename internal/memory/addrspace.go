package memory

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/me/gokern/pkg/model"
)

// AddrSpace owns one process's page table. Created when the process starts;
// Release must run when it exits, so no frame or swap slot outlives it.
//
// AddrSpace satisfies model.AddressSpace: the scheduler saves and restores
// it symmetrically around context switches.
type AddrSpace struct {
	id     string
	pt     *model.PageTable
	mm     *Manager
	logger *slog.Logger
}

// NewAddrSpace creates an address space of numPages virtual pages.
func NewAddrSpace(mm *Manager, numPages int, logger *slog.Logger) *AddrSpace {
	return &AddrSpace{
		id:     "as_" + uuid.New().String()[:8],
		pt:     model.NewPageTable(numPages),
		mm:     mm,
		logger: logger.With("component", "addrspace"),
	}
}

// ID returns the space's identifier.
func (a *AddrSpace) ID() string { return a.id }

// NumPages returns the number of virtual pages.
func (a *AddrSpace) NumPages() int { return a.pt.NumPages() }

// PageTable returns the space's page table.
func (a *AddrSpace) PageTable() *model.PageTable { return a.pt }

// Load populates the space from a raw program image, page by page, through
// the fault path. Interrupts must be disabled. Images are raw bytes, not an
// executable format; anything past the last full page is zero-padded.
func (a *AddrSpace) Load(r io.Reader) error {
	img, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}

	size := a.mm.PageSize()
	if len(img) > a.pt.NumPages()*size {
		return fmt.Errorf("image of %d bytes exceeds address space of %d pages", len(img), a.pt.NumPages())
	}

	for vpn := 0; vpn*size < len(img); vpn++ {
		end := (vpn + 1) * size
		if end > len(img) {
			end = len(img)
		}
		if err := a.mm.WritePage(a.pt, vpn, img[vpn*size:end]); err != nil {
			return fmt.Errorf("load page %d: %w", vpn, err)
		}
	}

	a.logger.Debug("image loaded", "space", a.id, "bytes", len(img))
	return nil
}

// SaveState runs when the owning thread is switched out: the machine loses
// its translation context until some user thread is switched back in.
func (a *AddrSpace) SaveState() {
	a.mm.mach.SetPageTable(nil)
}

// RestoreState reinstalls this space's page table as the machine's active
// translation context.
func (a *AddrSpace) RestoreState() {
	a.mm.mach.SetPageTable(a.pt)
}

// Release frees every frame and swap slot the page table references.
// Called exactly once, from the deferred-destruction drain.
func (a *AddrSpace) Release() {
	if err := a.mm.ReleaseAll(a.pt, a.pt.NumPages()); err != nil {
		a.logger.Error("release address space", "space", a.id, "error", err)
	}
}
