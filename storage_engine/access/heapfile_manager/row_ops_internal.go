package heapfile

import (
	diskmanager "DexDB/storage_engine/disk_manager"
	"DexDB/storage_engine/page"
	"DexDB/types"
	"fmt"
)

// this file contains internal functions, they do not take the heap file lock.
// the external wrappers in row_ops_external.go own the critical section.

// insertRow inserts a row into the heap file and returns a RecordId.
func (hf *HeapFile) insertRow(rowData []byte) (types.RecordId, error) {
	rowLen := len(rowData)
	maxRowSize := types.PageSize - HeapHeaderSize - SlotSize
	if rowLen > maxRowSize {
		return types.RecordId{}, fmt.Errorf("row too large: %d bytes (max: %d)", rowLen, maxRowSize)
	}

	pg, localPageNum, err := hf.findSuitablePage(rowLen)
	if err != nil {
		return types.RecordId{}, fmt.Errorf("failed to find suitable page: %w", err)
	}

	pg.Lock()
	slotIndex, err := InsertRecord(pg, rowData)
	pg.Unlock()
	if err != nil {
		_ = hf.bufferPool.UnpinPage(pg.ID, false)
		return types.RecordId{}, fmt.Errorf("failed to insert record into page: %w", err)
	}

	if err := hf.bufferPool.UnpinPage(pg.ID, true); err != nil {
		return types.RecordId{}, fmt.Errorf("failed to unpin page after insert: %w", err)
	}

	return types.RecordId{
		PageNumber: localPageNum,
		SlotNumber: slotIndex,
	}, nil
}

func (hf *HeapFile) getRow(rid types.RecordId) ([]byte, error) {
	globalPageID := diskmanager.GlobalPageID(hf.fileID, rid.PageNumber)

	pg, err := hf.bufferPool.FetchPage(globalPageID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page %d: %w", rid.PageNumber, err)
	}
	defer hf.bufferPool.UnpinPage(pg.ID, false)

	pg.RLock()
	defer pg.RUnlock()

	return GetRecord(pg, rid.SlotNumber)
}

// deleteRow tombstones a row by zeroing its slot (Offset=0, Length=0).
func (hf *HeapFile) deleteRow(rid types.RecordId) error {
	globalPageID := diskmanager.GlobalPageID(hf.fileID, rid.PageNumber)

	pg, err := hf.bufferPool.FetchPage(globalPageID)
	if err != nil {
		return fmt.Errorf("failed to fetch page %d: %w", rid.PageNumber, err)
	}

	pg.Lock()
	err = DeleteRecord(pg, rid.SlotNumber)
	pg.Unlock()
	if err != nil {
		_ = hf.bufferPool.UnpinPage(pg.ID, false)
		return err
	}
	return hf.bufferPool.UnpinPage(pg.ID, true)
}

func (hf *HeapFile) updateRow(rid types.RecordId, newRowData []byte) (types.RecordId, error) {
	globalPageID := diskmanager.GlobalPageID(hf.fileID, rid.PageNumber)

	pg, err := hf.bufferPool.FetchPage(globalPageID)
	if err != nil {
		return types.RecordId{}, fmt.Errorf("failed to fetch page %d: %w", rid.PageNumber, err)
	}

	pg.Lock()
	updated, err := UpdateRecord(pg, rid.SlotNumber, newRowData)
	pg.Unlock()
	if err != nil {
		_ = hf.bufferPool.UnpinPage(pg.ID, false)
		return types.RecordId{}, fmt.Errorf("failed to update record: %w", err)
	}
	if err := hf.bufferPool.UnpinPage(pg.ID, true); err != nil {
		return types.RecordId{}, err
	}

	if updated {
		return rid, nil
	}

	// UpdateRecord already tombstoned the slot — re-insert on a page with room.
	newRid, err := hf.insertRow(newRowData)
	if err != nil {
		return types.RecordId{}, fmt.Errorf("failed to insert updated row: %w", err)
	}
	fmt.Printf("[Heap] UPDATE row moved — old page=%d slot=%d new page=%d slot=%d\n",
		rid.PageNumber, rid.SlotNumber, newRid.PageNumber, newRid.SlotNumber)
	return newRid, nil
}

// findSuitablePage finds a page with enough space for the required row size.
// The returned page is pinned; the caller unpins it.
func (hf *HeapFile) findSuitablePage(requiredSpace int) (*page.Page, uint32, error) {
	requiredWithSlot := requiredSpace + SlotSize

	numPages, err := hf.diskManager.NumPages(hf.fileID)
	if err != nil {
		return nil, 0, err
	}

	for localPageNum := uint32(1); int64(localPageNum) <= numPages; localPageNum++ {
		globalPageID := diskmanager.GlobalPageID(hf.fileID, localPageNum)

		pg, err := hf.bufferPool.FetchPage(globalPageID)
		if err != nil {
			continue
		}

		if FreeSpace(pg) >= requiredWithSlot {
			return pg, localPageNum, nil
		}

		_ = hf.bufferPool.UnpinPage(globalPageID, false)
	}

	// No existing page has room — allocate a new one.
	pg, err := hf.bufferPool.NewPage(hf.fileID, types.PageTypeHeapData)
	if err != nil {
		return nil, 0, err
	}

	InitHeapPage(pg)
	localPageNum := diskmanager.LocalPageID(pg.ID)
	SetPageNo(pg, localPageNum)

	return pg, localPageNum, nil
}
