// Structure of the index B+ Tree
/*
Tree
 ├── Non-leaf node (separator keys + child page numbers)
 │      └── Child non-leaf nodes ... (level 0)
 │             └── Leaf nodes (keys + RecordIds + right sibling) below level 1


- keys: sorted ascending order, int32 attribute values
- non-leaf nodes: children length == numKeys+1
- leaf nodes: rids length == numKeys
- leaf nodes linked via rightSib for range scans (0 = end of chain)
- all leaf nodes at the same depth
- the root is always a non-leaf; level==1 means its children are leaves

The tree lives in one index file: page 1 is the meta page, nodes start at
page 2. The root page number is recorded in the meta page and changes when
the root splits.
*/
package btree

import (
	"DexDB/storage_engine/bufferpool"
	diskmanager "DexDB/storage_engine/disk_manager"
	"DexDB/types"
	"errors"
)

// Datatype tags the indexed attribute. Only Integer is supported; the node
// layout is parameterized on it.
type Datatype int32

const (
	Integer Datatype = iota
	Double
	String
)

// Operator is a scan comparator.
type Operator int

const (
	LT Operator = iota
	LTE
	GTE
	GT
)

const (
	// MetaPageNumber is the fixed local page number of the IndexMetaInfo page.
	MetaPageNumber uint32 = 1

	// EmptySlotKey fills every key slot past the live prefix on disk.
	EmptySlotKey int32 = -1

	nodeHeaderSize = 8
	keySize        = 4 // int32
	ridSize        = 8 // pageNo uint32 + slot uint16 + 2B pad
	pageNoSize     = 4 // uint32

	// IntArrayLeafSize is how many (key, RecordId) pairs fit in a leaf page.
	IntArrayLeafSize = (types.PageSize - nodeHeaderSize) / (keySize + ridSize)

	// IntArrayNonLeafSize is how many separator keys fit in a non-leaf page
	// (it holds one more child page number than keys).
	IntArrayNonLeafSize = (types.PageSize - nodeHeaderSize - pageNoSize) / (keySize + pageNoSize)
)

// Error taxonomy. Callers match with errors.Is.
var (
	// ErrBadIndexInfo — opening an existing index whose meta page does not
	// match the constructor parameters.
	ErrBadIndexInfo = errors.New("existing index metadata does not match parameters")

	// ErrBadOpcodes — scan comparator outside {GT, GTE} / {LT, LTE}.
	ErrBadOpcodes = errors.New("bad scan opcodes")

	// ErrBadScanrange — lowVal greater than highVal.
	ErrBadScanrange = errors.New("bad scan range")

	// ErrScanNotInitialized — ScanNext/EndScan without an active scan.
	ErrScanNotInitialized = errors.New("scan not initialized")

	// ErrIndexScanCompleted — terminal signal from ScanNext when no more
	// records satisfy the range.
	ErrIndexScanCompleted = errors.New("index scan completed")

	// ErrNoSuchKeyFound — point lookup found no entry with the given key.
	ErrNoSuchKeyFound = errors.New("no such key found")
)

// RelationScanner feeds tuples during the initial index build. ScanNext
// returns types.ErrEndOfFile once the relation is exhausted.
type RelationScanner interface {
	ScanNext() (types.RecordId, []byte, error)
}

// BTreeIndex is a disk-resident B+ tree over one integer attribute of a heap
// relation. One instance is single-threaded: no internal locking, and a
// running scan is part of the instance state.
type BTreeIndex struct {
	relationName   string
	indexName      string // "<relation>.<attrByteOffset>"
	fileID         uint32
	bufferPool     *bufferpool.BufferPool
	diskManager    *diskmanager.DiskManager
	headerPageNum  uint32
	rootPageNum    uint32
	attrByteOffset int
	attributeType  Datatype

	// scan state — valid while scanExecuting
	scanExecuting  bool
	lowValInt      int32
	highValInt     int32
	lowOp          Operator
	highOp         Operator
	nextEntry      int
	currentPageNum uint32    // pinned leaf under the cursor, 0 = none held
	currentNode    *leafNode // decoded view of currentPageNum
}
