package heapfile

import (
	"DexDB/types"
	"fmt"
)

/*
This file contains external functions for row operations on the heapfile.
They lock the heap file before calling their internal counterparts.
The internal functions (row_ops_internal.go) must not take locks themselves,
otherwise a dependent operation (like UPDATE calling both INSERT and DELETE)
would deadlock.
*/

// InsertRow inserts a row into the specified heap file and returns its RecordId.
func (hfm *HeapFileManager) InsertRow(fileID uint32, rowData []byte) (types.RecordId, error) {
	hf, err := hfm.GetHeapFileByID(fileID)
	if err != nil {
		return types.RecordId{}, err
	}

	hf.mu.Lock()
	defer hf.mu.Unlock()

	return hf.insertRow(rowData)
}

// GetRow retrieves a row from the heap file using a RecordId.
// Hot rows are served from the ristretto row cache.
func (hfm *HeapFileManager) GetRow(fileID uint32, rid types.RecordId) ([]byte, error) {
	hf, err := hfm.GetHeapFileByID(fileID)
	if err != nil {
		return nil, err
	}

	if hf.rowCache != nil {
		if row, ok := hf.rowCache.Get(rowCacheKey(fileID, rid.PageNumber, rid.SlotNumber)); ok {
			return row, nil
		}
	}

	hf.mu.RLock()
	row, err := hf.getRow(rid)
	hf.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	if hf.rowCache != nil {
		hf.rowCache.Set(rowCacheKey(fileID, rid.PageNumber, rid.SlotNumber), row, int64(len(row)))
	}
	return row, nil
}

// UpdateRow replaces the row at rid with new data. When the new data no
// longer fits in place the row moves and the returned RecordId differs from
// the input one.
func (hfm *HeapFileManager) UpdateRow(fileID uint32, rid types.RecordId, newRowData []byte) (types.RecordId, error) {
	hf, err := hfm.GetHeapFileByID(fileID)
	if err != nil {
		return types.RecordId{}, err
	}

	hf.mu.Lock()
	defer hf.mu.Unlock()

	if hf.rowCache != nil {
		hf.rowCache.Del(rowCacheKey(fileID, rid.PageNumber, rid.SlotNumber))
		hf.rowCache.Wait() // Del is buffered; drain before the write proceeds
	}
	return hf.updateRow(rid, newRowData)
}

// DeleteRow tombstones a row using its RecordId.
// After this, GetRow(rid) returns "tombstone".
func (hfm *HeapFileManager) DeleteRow(fileID uint32, rid types.RecordId) error {
	hf, err := hfm.GetHeapFileByID(fileID)
	if err != nil {
		return fmt.Errorf("heap file %d not found: %w", fileID, err)
	}

	hf.mu.Lock()
	defer hf.mu.Unlock()

	if hf.rowCache != nil {
		hf.rowCache.Del(rowCacheKey(fileID, rid.PageNumber, rid.SlotNumber))
		hf.rowCache.Wait()
	}
	return hf.deleteRow(rid)
}
