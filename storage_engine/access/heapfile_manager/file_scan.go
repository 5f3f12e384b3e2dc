package heapfile

import (
	diskmanager "DexDB/storage_engine/disk_manager"
	"DexDB/storage_engine/page"
	"DexDB/types"
	"fmt"
)

/*
FileScan walks a relation's heap file in physical order: page by page, live
slot by live slot. It is the feed for the initial index build — the index
constructor calls ScanNext in a loop, pulls the attribute out of each row
and inserts (key, rid) into the tree, until ScanNext reports
types.ErrEndOfFile.

The scanner keeps at most one heap page pinned between calls (the page the
cursor currently sits on). Close releases it; hitting end of file releases
it as well, so a fully drained scanner needs no Close.
*/

type FileScan struct {
	heapFile    *HeapFile
	currentPage *page.Page // pinned, nil before the first call and after EOF
	pageNum     uint32     // local page number of currentPage
	nextSlot    uint16
	numPages    int64
	done        bool
}

// NewFileScan opens a physical-order scan over the heap file.
func NewFileScan(hf *HeapFile) (*FileScan, error) {
	numPages, err := hf.diskManager.NumPages(hf.fileID)
	if err != nil {
		return nil, fmt.Errorf("NewFileScan: %w", err)
	}
	return &FileScan{
		heapFile: hf,
		numPages: numPages,
	}, nil
}

// ScanNext returns the next live row and its RecordId.
// Returns types.ErrEndOfFile once the relation is exhausted.
func (fs *FileScan) ScanNext() (types.RecordId, []byte, error) {
	if fs.done {
		return types.RecordId{}, nil, types.ErrEndOfFile
	}

	for {
		// Need a page under the cursor?
		if fs.currentPage == nil {
			if int64(fs.pageNum) >= fs.numPages {
				fs.done = true
				return types.RecordId{}, nil, types.ErrEndOfFile
			}
			fs.pageNum++ // local page numbers start at 1
			globalPageID := diskmanager.GlobalPageID(fs.heapFile.fileID, fs.pageNum)
			pg, err := fs.heapFile.bufferPool.FetchPage(globalPageID)
			if err != nil {
				return types.RecordId{}, nil, fmt.Errorf("ScanNext: failed to fetch page %d: %w", fs.pageNum, err)
			}
			fs.currentPage = pg
			fs.nextSlot = 0
		}

		pg := fs.currentPage
		pg.RLock()
		slotCount := GetSlotCount(pg)
		for fs.nextSlot < slotCount {
			slot := fs.nextSlot
			fs.nextSlot++
			if !IsSlotLive(pg, slot) {
				continue
			}
			row, err := GetRecord(pg, slot)
			pg.RUnlock()
			if err != nil {
				return types.RecordId{}, nil, fmt.Errorf("ScanNext: %w", err)
			}
			return types.RecordId{PageNumber: fs.pageNum, SlotNumber: slot}, row, nil
		}
		pg.RUnlock()

		// Page drained — move the cursor off it.
		if err := fs.heapFile.bufferPool.UnpinPage(pg.ID, false); err != nil {
			return types.RecordId{}, nil, fmt.Errorf("ScanNext: failed to unpin page %d: %w", fs.pageNum, err)
		}
		fs.currentPage = nil
	}
}

// Close releases the pinned page, if any. Safe to call twice.
func (fs *FileScan) Close() {
	if fs.currentPage != nil {
		_ = fs.heapFile.bufferPool.UnpinPage(fs.currentPage.ID, false)
		fs.currentPage = nil
	}
	fs.done = true
}
