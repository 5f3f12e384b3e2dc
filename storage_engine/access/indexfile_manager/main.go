package indexfile

import (
	btree "DexDB/storage_engine/access/indexfile_manager/btree"
	"DexDB/storage_engine/bufferpool"
	diskmanager "DexDB/storage_engine/disk_manager"
	"fmt"
	"os"
)

/*
This file is the main file of the Index File Manager, which deals with the
index pages. Similar to the HeapFileManager it has access to the disk
manager and the buffer pool.

Each open index is a B+ tree over one integer attribute of one relation;
indexes are cached per "<relation>.<attrByteOffset>" name so repeated
GetOrCreateIndex calls are O(1). Close flushes through the buffer pool and
releases the file handle.
*/

func NewIndexFileManager(baseDir string, diskManager *diskmanager.DiskManager, bufferPool *bufferpool.BufferPool) (*IndexFileManager, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create indexes directory: %w", err)
	}

	return &IndexFileManager{
		baseDir:     baseDir,
		indexes:     make(map[string]*btree.BTreeIndex),
		bufferPool:  bufferPool,
		diskManager: diskManager,
	}, nil
}

// GetOrCreateIndex returns the B+ tree index over the given attribute of the
// relation, creating (and bulk-building via scanner) the index file when it
// does not exist yet. Opening an existing file verifies the meta page
// against the parameters; btree.ErrBadIndexInfo surfaces on mismatch.
func (ifm *IndexFileManager) GetOrCreateIndex(
	relationName string,
	attrByteOffset int,
	attrType btree.Datatype,
	scanner btree.RelationScanner,
	indexFileID uint32,
) (*btree.BTreeIndex, error) {

	indexName := fmt.Sprintf("%s.%d", relationName, attrByteOffset)

	ifm.mu.RLock()
	idx, exists := ifm.indexes[indexName]
	ifm.mu.RUnlock()

	if exists && idx != nil {
		return idx, nil
	}

	ifm.mu.Lock()
	defer ifm.mu.Unlock()

	// Double-check after acquiring the write lock.
	if idx, exists := ifm.indexes[indexName]; exists && idx != nil {
		return idx, nil
	}

	idx, _, err := btree.NewBTreeIndex(ifm.baseDir, relationName, attrByteOffset, attrType,
		scanner, indexFileID, ifm.bufferPool, ifm.diskManager)
	if err != nil {
		return nil, fmt.Errorf("failed to open B+ tree index '%s': %w", indexName, err)
	}

	ifm.indexes[indexName] = idx
	return idx, nil
}

// CloseIndex closes one index and removes it from the cache.
// The index is flushed to disk before closing.
func (ifm *IndexFileManager) CloseIndex(indexName string) error {
	ifm.mu.Lock()
	defer ifm.mu.Unlock()

	idx, exists := ifm.indexes[indexName]
	if !exists {
		return nil // not open, nothing to do
	}

	if err := idx.Close(); err != nil {
		return fmt.Errorf("failed to close index '%s': %w", indexName, err)
	}

	delete(ifm.indexes, indexName)
	return nil
}

// CloseAll closes all cached indexes and clears the cache.
// Called when shutting down the storage engine.
func (ifm *IndexFileManager) CloseAll() error {
	ifm.mu.Lock()
	defer ifm.mu.Unlock()

	var lastErr error

	// Write everything down first so each index Close only has to release
	// its frames and file handle.
	if err := ifm.bufferPool.FlushAllPages(); err != nil {
		lastErr = fmt.Errorf("failed to flush buffer pool: %w", err)
	}

	for indexName, idx := range ifm.indexes {
		if err := idx.Close(); err != nil {
			lastErr = fmt.Errorf("failed to close index '%s': %w", indexName, err)
		}
		delete(ifm.indexes, indexName)
	}

	return lastErr
}
