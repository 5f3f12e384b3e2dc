package bufferpool

import (
	"DexDB/storage_engine/page"
	"fmt"
)

/*
This file holds helper functions for the bufferpool
*/

// GetStats returns current buffer pool statistics
func (bp *BufferPool) GetStats() BufferPoolStats {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	stats := BufferPoolStats{
		TotalPages: len(bp.pages),
		Capacity:   bp.capacity,
	}

	for _, pg := range bp.pages {
		pg.RLock()
		if pg.PinCount > 0 {
			stats.PinnedPages++
		}
		if pg.IsDirty {
			stats.DirtyPages++
		}
		pg.RUnlock()
	}

	return stats
}

// PinnedPageCount reports how many frames of the given file are currently
// pinned. Every top-level index operation leaves this at zero (the active
// scan cursor holds one pin until EndScan).
func (bp *BufferPool) PinnedPageCount(fileID uint32) int {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	count := 0
	for _, pg := range bp.pages {
		if pg.FileID != fileID {
			continue
		}
		pg.RLock()
		if pg.PinCount > 0 {
			count++
		}
		pg.RUnlock()
	}
	return count
}

// Reset clears all pages from the buffer pool (for testing or reset)
func (bp *BufferPool) Reset() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	for _, pg := range bp.pages {
		pg.Lock()
		if pg.IsDirty && bp.diskManager != nil {
			if err := bp.diskManager.WritePage(pg); err != nil {
				pg.Unlock()
				return fmt.Errorf("failed to flush page during reset: %w", err)
			}
			pg.IsDirty = false
		}
		pg.Unlock()
	}

	bp.pages = make(map[int64]*page.Page, bp.capacity)
	bp.accessOrder = make([]int64, 0, bp.capacity)
	return nil
}

// Size returns the current number of pages in the buffer pool
func (bp *BufferPool) Size() int {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return len(bp.pages)
}

// Capacity returns the maximum capacity of the buffer pool
func (bp *BufferPool) Capacity() int {
	return bp.capacity
}
