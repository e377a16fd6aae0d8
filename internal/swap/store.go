// Package swap persists evicted page contents, addressed by swap-slot index.
//
// The memory manager owns the swap-slot directory (which slots are in use and
// for which page); this package only stores and returns page images. Writes
// are synchronous: a victim is fully persisted before its frame is reused.
package swap

// PageStore stores fixed-size page images by slot index.
type PageStore interface {
	// Write persists data as the contents of slot, overwriting any
	// previous image there.
	Write(slot int, data []byte) error

	// Read returns the image last written to slot.
	Read(slot int) ([]byte, error)

	// Delete discards the image in slot. Deleting an empty slot is not an
	// error; release paths must be idempotent.
	Delete(slot int) error

	// Migrate prepares the store for use.
	Migrate() error

	// Close releases the underlying resources.
	Close() error
}
