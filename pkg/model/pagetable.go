package model

// TranslationEntry is one virtual page's record in a page table.
// The memory manager is the only component that writes PPN and Valid;
// Use and Dirty are also set on the page-access path.
type TranslationEntry struct {
	PPN      int  // physical frame number, stale unless Valid
	Valid    bool // page is resident in frame PPN
	ReadOnly bool
	Use      bool // referenced since the last eviction scan visit
	Dirty    bool // written since it was last loaded into a frame
}

// PageTable is an ordered mapping from virtual page number to entry.
// Identity matters: frame and swap directory entries point back at the
// owning table, so tables are always passed by pointer.
type PageTable struct {
	Entries []TranslationEntry
}

// NewPageTable creates a table with numPages invalid entries.
func NewPageTable(numPages int) *PageTable {
	return &PageTable{Entries: make([]TranslationEntry, numPages)}
}

// NumPages returns the number of virtual pages the table covers.
func (pt *PageTable) NumPages() int {
	return len(pt.Entries)
}
