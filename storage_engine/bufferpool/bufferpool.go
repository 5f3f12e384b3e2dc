package bufferpool

import (
	diskmanager "DexDB/storage_engine/disk_manager"
	"DexDB/storage_engine/page"
	"DexDB/types"
	"errors"
	"fmt"
)

/*
This file is the main file of the bufferpool
The buffer pool works on an LRU based caching mechanism
and holds access to the disk manager for flushing cached pages onto the disk.
Similarly, if a page is not found in the cache, the disk manager loads the
page from the disk and the pool keeps it for future access.

Pages are identified by global page ID (fileID<<32 | local page number).

Pin discipline: FetchPage and NewPage return the frame with the pin count
already incremented; every such call must be paired with exactly one
UnpinPage. A pinned frame is never evicted.
*/

// ErrPageNotPinned is returned by UnpinPage when the frame's pin count is
// already zero. Cleanup paths swallow it; everything else treats it as a
// pin-balance bug.
var ErrPageNotPinned = errors.New("page not pinned")

// ErrPagePinned is returned by FlushFile when a frame of the file is still
// pinned and therefore cannot be released.
var ErrPagePinned = errors.New("page still pinned")

// NewBufferPool creates a new buffer pool with the given capacity
func NewBufferPool(capacity int, diskManager *diskmanager.DiskManager) *BufferPool {
	return &BufferPool{
		pages:       make(map[int64]*page.Page, capacity),
		capacity:    capacity,
		diskManager: diskManager,
		accessOrder: make([]int64, 0, capacity),
	}
}

// FetchPage retrieves a page from the buffer pool, loading from disk if necessary
// Returns the page with pin count incremented
func (bp *BufferPool) FetchPage(pageID int64) (*page.Page, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	// Check if page is in buffer pool
	if pg, exists := bp.pages[pageID]; exists {
		bp.updateAccessOrder(pageID)
		pg.Lock()
		pg.PinCount++
		pg.Unlock()
		return pg, nil
	}

	// Page not in buffer pool - load from disk
	if bp.diskManager == nil {
		return nil, fmt.Errorf("disk manager not set")
	}

	pg, err := bp.diskManager.ReadPage(pageID)
	if err != nil {
		return nil, fmt.Errorf("failed to read page %d from disk: %w", pageID, err)
	}

	// Add to buffer pool (may trigger eviction)
	if err := bp.addPage(pg); err != nil {
		return nil, fmt.Errorf("failed to add page to buffer pool: %w", err)
	}

	pg.Lock()
	pg.PinCount++
	pg.Unlock()

	return pg, nil
}

// NewPage allocates a fresh page in the given file and pins it.
// The DiskManager hands out the next local page number, the frame is built
// entirely in RAM and marked dirty so the pool eventually flushes it.
func (bp *BufferPool) NewPage(fileID uint32, pageType types.PageType) (*page.Page, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if bp.diskManager == nil {
		return nil, fmt.Errorf("disk manager not set")
	}

	pageID, err := bp.diskManager.AllocatePage(fileID, pageType)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate page: %w", err)
	}

	pg := diskmanager.NewPage(pageID, fileID, pageType)
	pg.IsDirty = true // New pages are dirty by default

	if err := bp.addPage(pg); err != nil {
		return nil, fmt.Errorf("failed to add new page to buffer pool: %w", err)
	}

	pg.Lock()
	pg.PinCount++
	pg.Unlock()

	return pg, nil
}

// UnpinPage releases one pin on the page. isDirty=true records that the
// caller modified the frame. Returns ErrPageNotPinned when the pin count is
// already zero.
func (bp *BufferPool) UnpinPage(pageID int64, isDirty bool) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	pg, exists := bp.pages[pageID]
	if !exists {
		return fmt.Errorf("page %d not in buffer pool: %w", pageID, ErrPageNotPinned)
	}

	pg.Lock()
	defer pg.Unlock()

	if pg.PinCount == 0 {
		return fmt.Errorf("page %d: %w", pageID, ErrPageNotPinned)
	}

	pg.PinCount--
	if isDirty {
		pg.IsDirty = true
	}

	return nil
}

// FlushPage writes a specific page to disk if dirty
func (bp *BufferPool) FlushPage(pageID int64) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	pg, exists := bp.pages[pageID]
	if !exists {
		return fmt.Errorf("page %d not in buffer pool", pageID)
	}

	pg.Lock()
	defer pg.Unlock()

	if !pg.IsDirty {
		return nil // Nothing to flush
	}

	fmt.Printf("[BufferPool] FLUSH pageID=%d\n", pageID)
	if err := bp.diskManager.WritePage(pg); err != nil {
		return fmt.Errorf("failed to flush page %d: %w", pageID, err)
	}

	pg.IsDirty = false
	return nil
}

// FlushFile writes all dirty pages belonging to fileID and releases the
// file's frames from the pool. Fails with ErrPagePinned if any of the
// file's frames is still pinned.
func (bp *BufferPool) FlushFile(fileID uint32) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if bp.diskManager == nil {
		return fmt.Errorf("disk manager not set")
	}

	// Pass 1: refuse if anything is still pinned.
	for pageID, pg := range bp.pages {
		if pg.FileID != fileID {
			continue
		}
		pg.RLock()
		pinned := pg.PinCount > 0
		pg.RUnlock()
		if pinned {
			return fmt.Errorf("FlushFile: page %d of file %d: %w", pageID, fileID, ErrPagePinned)
		}
	}

	// Pass 2: write back dirty frames and drop them.
	for pageID, pg := range bp.pages {
		if pg.FileID != fileID {
			continue
		}
		pg.Lock()
		if pg.IsDirty {
			if err := bp.diskManager.WritePage(pg); err != nil {
				pg.Unlock()
				return fmt.Errorf("FlushFile: failed to write page %d: %w", pageID, err)
			}
			pg.IsDirty = false
		}
		pg.Unlock()

		delete(bp.pages, pageID)
		bp.removeFromAccessOrder(pageID)
	}

	fmt.Printf("[BufferPool] FlushFile fileID=%d — frames released\n", fileID)
	return nil
}

// FlushAllPages writes all dirty pages to disk
func (bp *BufferPool) FlushAllPages() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if bp.diskManager == nil {
		return fmt.Errorf("disk manager not set")
	}

	fmt.Printf("[BufferPool] FlushAllPages — pool size=%d\n", len(bp.pages))

	for pageID, pg := range bp.pages {
		pg.Lock()
		if pg.IsDirty {
			if err := bp.diskManager.WritePage(pg); err != nil {
				pg.Unlock()
				return fmt.Errorf("failed to flush page %d: %w", pageID, err)
			}
			fmt.Printf("[BufferPool]   flushing pageID=%d\n", pageID)
			pg.IsDirty = false
		}
		pg.Unlock()
	}

	return nil
}

// addPage adds a page to the buffer pool, evicting if necessary
// Assumes lock is already held
func (bp *BufferPool) addPage(pg *page.Page) error {
	// If page already in pool, just update access order
	if _, exists := bp.pages[pg.ID]; exists {
		bp.updateAccessOrder(pg.ID)
		return nil
	}

	// If at capacity, evict LRU page
	if len(bp.pages) >= bp.capacity {
		if err := bp.evictLRU(); err != nil {
			return fmt.Errorf("failed to evict page: %w", err)
		}
	}

	bp.pages[pg.ID] = pg
	bp.updateAccessOrder(pg.ID)

	return nil
}

// evictLRU evicts the least recently used unpinned page
// Assumes lock is already held
func (bp *BufferPool) evictLRU() error {
	for i := 0; i < len(bp.accessOrder); i++ {
		pageID := bp.accessOrder[i]
		pg, exists := bp.pages[pageID]

		if !exists {
			bp.accessOrder = append(bp.accessOrder[:i], bp.accessOrder[i+1:]...)
			i--
			continue
		}

		pg.Lock()

		// Skip pinned pages
		if pg.PinCount > 0 {
			pg.Unlock()
			continue
		}

		fmt.Printf("[BufferPool] EVICT pageID=%d dirty=%v\n", pageID, pg.IsDirty)
		// Flush if dirty
		if pg.IsDirty && bp.diskManager != nil {
			if err := bp.diskManager.WritePage(pg); err != nil {
				pg.Unlock()
				return fmt.Errorf("failed to write page %d during eviction: %w", pageID, err)
			}
			pg.IsDirty = false
		}
		pg.Unlock()

		delete(bp.pages, pageID)
		bp.accessOrder = append(bp.accessOrder[:i], bp.accessOrder[i+1:]...)
		return nil
	}

	return fmt.Errorf("all pages are pinned, cannot evict")
}

// updateAccessOrder moves a page to the end of access order (most recently used)
// Assumes lock is already held
func (bp *BufferPool) updateAccessOrder(pageID int64) {
	bp.removeFromAccessOrder(pageID)
	bp.accessOrder = append(bp.accessOrder, pageID)
}

// removeFromAccessOrder drops a page from the access order list.
// Assumes lock is already held
func (bp *BufferPool) removeFromAccessOrder(pageID int64) {
	for i, id := range bp.accessOrder {
		if id == pageID {
			bp.accessOrder = append(bp.accessOrder[:i], bp.accessOrder[i+1:]...)
			break
		}
	}
}
