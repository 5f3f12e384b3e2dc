package btree

import (
	"DexDB/storage_engine/bufferpool"
	diskmanager "DexDB/storage_engine/disk_manager"
	"DexDB/storage_engine/page"
	"DexDB/types"
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"
)

/*
Index construction and teardown.

The index file is named "<relationName>.<attrByteOffset>" inside baseDir.
Creating an index that does not exist yet lays down the meta page (local
page 1) and an empty level-1 root (local page 2), then drives a full
relation scan, inserting one entry per tuple. Opening an existing index
verifies that (relationName, attrByteOffset, attrType) match the meta page
exactly and fails with ErrBadIndexInfo otherwise.

Every pin taken during construction is released before return, on the error
paths included.
*/

// NewBTreeIndex creates or opens the index for one integer attribute of a
// relation. The second return value is the computed index name
// "<relation>.<offset>". scanner feeds the initial build of a fresh index;
// pass nil to skip the build (the caller inserts entries itself).
func NewBTreeIndex(
	baseDir string,
	relationName string,
	attrByteOffset int,
	attrType Datatype,
	scanner RelationScanner,
	fileID uint32,
	bufferPool *bufferpool.BufferPool,
	diskManager *diskmanager.DiskManager,
) (*BTreeIndex, string, error) {

	if attrType != Integer {
		return nil, "", fmt.Errorf("NewBTreeIndex: unsupported attribute type %d", attrType)
	}

	indexName := fmt.Sprintf("%s.%d", relationName, attrByteOffset)
	indexPath := filepath.Join(baseDir, indexName)

	idx := &BTreeIndex{
		relationName:   relationName,
		indexName:      indexName,
		fileID:         fileID,
		bufferPool:     bufferPool,
		diskManager:    diskManager,
		headerPageNum:  MetaPageNumber,
		attrByteOffset: attrByteOffset,
		attributeType:  attrType,
	}

	_, err := diskManager.CreateFile(indexPath, fileID)
	switch {
	case err == nil:
		// Fresh file: meta page gets local page 1, root local page 2.
		if err := idx.initFreshIndex(); err != nil {
			return nil, "", err
		}
		fmt.Printf("[BTree] CREATE index=%s fileID=%d root=%d\n", indexName, fileID, idx.rootPageNum)

		if scanner != nil {
			if err := idx.buildFromRelation(scanner); err != nil {
				return nil, "", fmt.Errorf("NewBTreeIndex: initial build failed: %w", err)
			}
		}

	case errors.Is(err, diskmanager.ErrFileExists):
		if _, err := diskManager.OpenFileWithID(indexPath, fileID); err != nil {
			return nil, "", fmt.Errorf("NewBTreeIndex: failed to open index file %s: %w", indexPath, err)
		}
		if err := idx.verifyMeta(); err != nil {
			return nil, "", err
		}
		fmt.Printf("[BTree] OPEN index=%s fileID=%d root=%d\n", indexName, fileID, idx.rootPageNum)

	default:
		return nil, "", fmt.Errorf("NewBTreeIndex: failed to create index file %s: %w", indexPath, err)
	}

	return idx, indexName, nil
}

// initFreshIndex allocates and writes the meta page and the empty root.
// The root starts as a non-leaf with level 1 and no children; the first
// insertion creates the initial leaf and wires it as pageNoArray[0].
func (idx *BTreeIndex) initFreshIndex() error {
	metaPg, err := idx.bufferPool.NewPage(idx.fileID, types.PageTypeMetadata)
	if err != nil {
		return fmt.Errorf("failed to allocate meta page: %w", err)
	}
	if got := diskmanager.LocalPageID(metaPg.ID); got != MetaPageNumber {
		_ = idx.bufferPool.UnpinPage(metaPg.ID, false)
		return fmt.Errorf("meta page allocated at %d, want %d", got, MetaPageNumber)
	}

	rootPg, err := idx.bufferPool.NewPage(idx.fileID, types.PageTypeBPlusNode)
	if err != nil {
		idx.releasePage(MetaPageNumber, false)
		return fmt.Errorf("failed to allocate root page: %w", err)
	}
	idx.rootPageNum = diskmanager.LocalPageID(rootPg.ID)

	meta := &indexMetaInfo{
		relationName:   idx.relationName,
		attrByteOffset: idx.attrByteOffset,
		attrType:       idx.attributeType,
		rootPageNo:     idx.rootPageNum,
	}
	if err := serializeMeta(meta, metaPg.Data); err != nil {
		idx.releasePage(idx.rootPageNum, false)
		idx.releasePage(MetaPageNumber, false)
		return err
	}

	serializeNonLeaf(newNonLeafNode(1), rootPg.Data)

	idx.releasePage(idx.rootPageNum, true)
	idx.releasePage(MetaPageNumber, true)
	return nil
}

// verifyMeta reads the meta page of an existing index and checks it against
// the constructor parameters. The meta pin is released on both branches.
func (idx *BTreeIndex) verifyMeta() error {
	metaPg, err := idx.fetchPage(MetaPageNumber)
	if err != nil {
		return fmt.Errorf("failed to read meta page: %w", err)
	}
	meta := deserializeMeta(metaPg.Data)
	idx.releasePage(MetaPageNumber, false)

	if meta.relationName != idx.relationName ||
		meta.attrByteOffset != idx.attrByteOffset ||
		meta.attrType != idx.attributeType {
		return fmt.Errorf("index %s: %w", idx.indexName, ErrBadIndexInfo)
	}

	idx.rootPageNum = meta.rootPageNo
	return nil
}

// buildFromRelation inserts one entry per tuple of the relation scan.
// types.ErrEndOfFile ends the loop normally.
func (idx *BTreeIndex) buildFromRelation(scanner RelationScanner) error {
	count := 0
	for {
		rid, row, err := scanner.ScanNext()
		if errors.Is(err, types.ErrEndOfFile) {
			break
		}
		if err != nil {
			return err
		}
		key, err := keyFromRow(row, idx.attrByteOffset)
		if err != nil {
			return err
		}
		if err := idx.InsertEntry(key, rid); err != nil {
			return err
		}
		count++
	}
	fmt.Printf("[BTree] BUILD index=%s entries=%d\n", idx.indexName, count)
	return nil
}

// keyFromRow pulls the int32 attribute at byte offset off out of a tuple.
func keyFromRow(row []byte, off int) (int32, error) {
	if off < 0 || off+keySize > len(row) {
		return 0, fmt.Errorf("attribute offset %d out of range for %d-byte row", off, len(row))
	}
	return int32(binary.LittleEndian.Uint32(row[off:])), nil
}

// Name returns the computed index name "<relation>.<attrByteOffset>".
func (idx *BTreeIndex) Name() string {
	return idx.indexName
}

// FileID returns the index file's ID, for pin-balance checks against the
// buffer pool.
func (idx *BTreeIndex) FileID() uint32 {
	return idx.fileID
}

// Close ends any active scan, flushes the index file through the buffer
// pool and releases the file handle. Pin-release failures on the scan page
// are swallowed; flush and close failures surface.
func (idx *BTreeIndex) Close() error {
	if idx.scanExecuting {
		_ = idx.EndScan()
	}
	if err := idx.bufferPool.FlushFile(idx.fileID); err != nil {
		return fmt.Errorf("Close: failed to flush index file: %w", err)
	}
	if err := idx.diskManager.CloseFile(idx.fileID); err != nil {
		return fmt.Errorf("Close: failed to close index file: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Page helpers — the engine works in local page numbers
// ─────────────────────────────────────────────────────────────────────────────

// fetchPage pins a page of the index file by local page number.
func (idx *BTreeIndex) fetchPage(pageNo uint32) (*page.Page, error) {
	return idx.bufferPool.FetchPage(diskmanager.GlobalPageID(idx.fileID, pageNo))
}

// allocPage allocates and pins a fresh node page.
func (idx *BTreeIndex) allocPage() (*page.Page, uint32, error) {
	pg, err := idx.bufferPool.NewPage(idx.fileID, types.PageTypeBPlusNode)
	if err != nil {
		return nil, 0, err
	}
	return pg, diskmanager.LocalPageID(pg.ID), nil
}

// releasePage drops one pin, best effort. Used where the pin is known to be
// held; the error would only ever be a pin-balance bug.
func (idx *BTreeIndex) releasePage(pageNo uint32, dirty bool) {
	_ = idx.bufferPool.UnpinPage(diskmanager.GlobalPageID(idx.fileID, pageNo), dirty)
}

// updateRootInMeta records the current root page number on the meta page.
func (idx *BTreeIndex) updateRootInMeta() error {
	metaPg, err := idx.fetchPage(MetaPageNumber)
	if err != nil {
		return fmt.Errorf("failed to read meta page: %w", err)
	}
	meta := deserializeMeta(metaPg.Data)
	meta.rootPageNo = idx.rootPageNum
	if err := serializeMeta(meta, metaPg.Data); err != nil {
		idx.releasePage(MetaPageNumber, false)
		return err
	}
	idx.releasePage(MetaPageNumber, true)
	return nil
}
