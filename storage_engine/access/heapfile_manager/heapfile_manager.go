package heapfile

import (
	"DexDB/storage_engine/bufferpool"
	diskmanager "DexDB/storage_engine/disk_manager"
	"DexDB/types"
	"fmt"
	"os"
	"path/filepath"
)

/*
This file is the start of the heapfile manager
This is responsible for creation of heapfiles, which is ultimately the
initialization of heap pages.

The heapfile manager knows the DiskManager for file related operations
(OpenFileWithID, CloseFile) and the BufferPool to add created/accessed pages
to the cache. On top of that it fronts GetRow with a ristretto cache so hot
rows skip the bufferpool entirely (row_cache.go).
*/

// NewHeapFileManager creates a new heap file manager
func NewHeapFileManager(baseDir string, diskManager *diskmanager.DiskManager, bufferPool *bufferpool.BufferPool) (*HeapFileManager, error) {
	rowCache, err := newRowCache()
	if err != nil {
		return nil, fmt.Errorf("failed to build row cache: %w", err)
	}

	return &HeapFileManager{
		baseDir:     baseDir,
		files:       make(map[uint32]*HeapFile),
		relIndex:    make(map[string]uint32),
		bufferPool:  bufferPool,
		diskManager: diskManager,
		rowCache:    rowCache,
	}, nil
}

// CreateHeapfile creates the OS file for a new relation and registers it.
//
// Chain of command this function drives:
//  1. DiskManager.CreateFile → creates the OS file under the given fileID
//  2. BufferPool.NewPage     → allocates the first page (zero-filled on disk, dirty frame in RAM)
//  3. InitHeapPage           → writes header fields into the in-RAM buffer
//  4. BufferPool.UnpinPage   → caller is done; pool may flush when it needs space
func (hfm *HeapFileManager) CreateHeapfile(relationName string, fileID uint32) error {
	hfm.mu.Lock()
	defer hfm.mu.Unlock()

	if _, exists := hfm.relIndex[relationName]; exists {
		return fmt.Errorf("heap file for relation '%s' already open", relationName)
	}

	if err := os.MkdirAll(hfm.baseDir, 0755); err != nil {
		return fmt.Errorf("failed to create heap directory: %w", err)
	}

	heapPath := filepath.Join(hfm.baseDir, fmt.Sprintf("%s.heap", relationName))

	if _, err := hfm.diskManager.CreateFile(heapPath, fileID); err != nil {
		return fmt.Errorf("failed to create heap file: %w", err)
	}

	pg, err := hfm.bufferPool.NewPage(fileID, types.PageTypeHeapData)
	if err != nil {
		return fmt.Errorf("failed to allocate first heap page: %w", err)
	}
	InitHeapPage(pg)
	SetPageNo(pg, diskmanager.LocalPageID(pg.ID))
	if err := hfm.bufferPool.UnpinPage(pg.ID, true); err != nil {
		return fmt.Errorf("failed to unpin first heap page: %w", err)
	}

	hf := &HeapFile{
		fileID:       fileID,
		relationName: relationName,
		filePath:     heapPath,
		diskManager:  hfm.diskManager,
		bufferPool:   hfm.bufferPool,
	}
	hf.rowCache = hfm.rowCache
	hfm.files[fileID] = hf
	hfm.relIndex[relationName] = fileID

	fmt.Printf("[Heap] CREATE relation=%s fileID=%d path=%s\n", relationName, fileID, heapPath)
	return nil
}

// OpenHeapfile opens an existing relation's heap file and registers it.
func (hfm *HeapFileManager) OpenHeapfile(relationName string, fileID uint32) error {
	hfm.mu.Lock()
	defer hfm.mu.Unlock()

	if _, exists := hfm.relIndex[relationName]; exists {
		return nil // already open
	}

	heapPath := filepath.Join(hfm.baseDir, fmt.Sprintf("%s.heap", relationName))
	if _, err := os.Stat(heapPath); os.IsNotExist(err) {
		return fmt.Errorf("heap file for relation '%s' not found at %s", relationName, heapPath)
	}

	if _, err := hfm.diskManager.OpenFileWithID(heapPath, fileID); err != nil {
		return fmt.Errorf("failed to open heap file: %w", err)
	}

	hf := &HeapFile{
		fileID:       fileID,
		relationName: relationName,
		filePath:     heapPath,
		diskManager:  hfm.diskManager,
		bufferPool:   hfm.bufferPool,
	}
	hf.rowCache = hfm.rowCache
	hfm.files[fileID] = hf
	hfm.relIndex[relationName] = fileID
	return nil
}

// GetHeapFileByID returns the open heap file registered under fileID.
func (hfm *HeapFileManager) GetHeapFileByID(fileID uint32) (*HeapFile, error) {
	hfm.mu.RLock()
	hf, exists := hfm.files[fileID]
	hfm.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("heap file %d not found", fileID)
	}
	return hf, nil
}

// GetHeapFileByRelation returns the open heap file for a relation name.
func (hfm *HeapFileManager) GetHeapFileByRelation(relationName string) (*HeapFile, error) {
	hfm.mu.RLock()
	fileID, exists := hfm.relIndex[relationName]
	hfm.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("no heap file open for relation '%s'", relationName)
	}
	return hfm.GetHeapFileByID(fileID)
}

// CloseAll flushes and closes every open heap file.
func (hfm *HeapFileManager) CloseAll() error {
	hfm.mu.Lock()
	defer hfm.mu.Unlock()

	var lastErr error

	// Write everything down first; the per-file pass below then only has to
	// release frames and file handles.
	if err := hfm.bufferPool.FlushAllPages(); err != nil {
		lastErr = fmt.Errorf("failed to flush buffer pool: %w", err)
	}

	for fileID, hf := range hfm.files {
		if err := hfm.bufferPool.FlushFile(fileID); err != nil {
			lastErr = fmt.Errorf("failed to flush heap file %d: %w", fileID, err)
		}
		if err := hfm.diskManager.CloseFile(fileID); err != nil {
			lastErr = fmt.Errorf("failed to close heap file %d: %w", fileID, err)
		}
		delete(hfm.relIndex, hf.relationName)
		delete(hfm.files, fileID)
	}

	if hfm.rowCache != nil {
		hfm.rowCache.Close()
		hfm.rowCache = nil
	}
	return lastErr
}
