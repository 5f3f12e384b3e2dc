package heapfile

import (
	"DexDB/storage_engine/bufferpool"
	diskmanager "DexDB/storage_engine/disk_manager"
	"sync"

	"github.com/dgraph-io/ristretto/v2"
)

// Slot represents an entry in the slot directory at the bottom of the page
// Stored at the end of the page, grows backward
type Slot struct {
	Offset uint16 // Offset from start of page to row data
	Length uint16 // Length of the row data
}

// HeapFile represents a single heap file (one relation) on disk
type HeapFile struct {
	fileID       uint32
	relationName string
	filePath     string
	diskManager  *diskmanager.DiskManager
	bufferPool   *bufferpool.BufferPool
	rowCache     *ristretto.Cache[string, []byte] // shared with the manager
	mu           sync.RWMutex
}

// HeapFileManager manages all heap files
type HeapFileManager struct {
	baseDir     string
	files       map[uint32]*HeapFile
	relIndex    map[string]uint32 // relationName → fileID (name-based lookup)
	bufferPool  *bufferpool.BufferPool
	diskManager *diskmanager.DiskManager
	rowCache    *ristretto.Cache[string, []byte] // read-through cache for GetRow
	mu          sync.RWMutex
}
