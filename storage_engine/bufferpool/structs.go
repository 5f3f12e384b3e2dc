package bufferpool

import (
	diskmanager "DexDB/storage_engine/disk_manager"
	"DexDB/storage_engine/page"
	"sync"
)

// ############################################# BUFFER POOL #############################################

// BufferPool manages cached pages in memory with LRU eviction
// Works with both heap file pages and B+ tree index pages
type BufferPool struct {
	pages       map[int64]*page.Page // global pageID -> Page
	capacity    int
	diskManager *diskmanager.DiskManager
	accessOrder []int64 // LRU tracking: most recently used at end
	mu          sync.Mutex
}

// BufferPoolStats returns buffer pool statistics
type BufferPoolStats struct {
	TotalPages  int
	PinnedPages int
	DirtyPages  int
	Capacity    int
}
