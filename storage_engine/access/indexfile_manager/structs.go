package indexfile

import (
	btree "DexDB/storage_engine/access/indexfile_manager/btree"
	"DexDB/storage_engine/bufferpool"
	diskmanager "DexDB/storage_engine/disk_manager"
	"sync"
)

type IndexFileManager struct {
	baseDir     string                      // e.g., data/indexes
	indexes     map[string]*btree.BTreeIndex // "<relation>.<offset>" → cached index
	bufferPool  *bufferpool.BufferPool       // ← shared with heap files
	diskManager *diskmanager.DiskManager     // ← shared with heap files
	mu          sync.RWMutex
}
