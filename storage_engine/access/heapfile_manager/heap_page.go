package heapfile

import (
	page "DexDB/storage_engine/page"
	"encoding/binary"
	"fmt"
)

/*
This file contains standalone functions operating on *page.Page for heap file
operations. All functions take *page.Page as first argument since methods
cannot be defined on types from external packages.

Heap page binary layout (all values little-endian):

	Offset  Size  Field
	──────────────────────────────────────────────────────
	0       1     PageType        uint8
	1       4     FileID          uint32
	5       4     PageNo          uint32
	9       2     RecordEndPtr    uint16  — first free byte after last record
	11      2     SlotRegionStart uint16  — first byte of slot directory
	13      2     NumRows         uint16  — live records
	15      2     NumRowsFree     uint16  — tombstone slots
	17      2     IsPageFull      uint16  — 1 when no usable space remains
	19      2     SlotCount       uint16  — total slot entries (live + tombstone)
	──────────────────────────────────────────────────────
	21            HeapHeaderSize

Standard slotted-page layout:

	[ header 21B ][ records → ][ free space ][ ← slot dir ]
	0            21            ^             ^             4096
	                           RecordEndPtr  SlotRegionStart

	Records grow FORWARD  from HeapHeaderSize.
	Slot directory grows BACKWARD from PageSize.
	Free space is the gap between RecordEndPtr and SlotRegionStart.

A slot entry is 4 bytes: [ Offset uint16 ][ Length uint16 ]

	Offset  — absolute byte offset from start of page to the record data.
	Length  — byte length of the record (0 = tombstone / deleted).

Slot i lives at:  PageSize - (i+1)*SlotSize
This means slot 0 is at bytes 4092-4095, slot 1 at 4088-4091, etc.
*/
const (
	heapOffPageType        = 0  // uint8  (1)
	heapOffFileID          = 1  // uint32 (4)
	heapOffPageNo          = 5  // uint32 (4)
	heapOffRecordEndPtr    = 9  // uint16 (2)
	heapOffSlotRegionStart = 11 // uint16 (2)
	heapOffNumRows         = 13 // uint16 (2)
	heapOffNumRowsFree     = 15 // uint16 (2)
	heapOffIsPageFull      = 17 // uint16 (2)
	heapOffSlotCount       = 19 // uint16 (2)

	// HeapHeaderSize is the fixed header size in bytes.
	// Records start at this offset on a fresh page.
	HeapHeaderSize = 21

	// SlotSize is the byte size of one slot entry: Offset(2) + Length(2).
	SlotSize = 4
)

// ─────────────────────────────────────────────────────────────────────────────
// Initialisation
// ─────────────────────────────────────────────────────────────────────────────

// InitHeapPage stamps a fresh heap-page header into pg.Data.
//
// After this call:
//   - RecordEndPtr    == HeapHeaderSize (records start right after header)
//   - SlotRegionStart == PageSize       (slot dir starts at end of page, empty)
//   - NumRows         == 0
//   - NumRowsFree     == 0
//   - IsPageFull      == 0
//   - SlotCount       == 0
//   - All non-header bytes zeroed
func InitHeapPage(pg *page.Page) {
	for i := range pg.Data {
		pg.Data[i] = 0
	}

	pg.Data[heapOffPageType] = byte(pg.PageType)
	binary.LittleEndian.PutUint32(pg.Data[heapOffFileID:], pg.FileID)
	binary.LittleEndian.PutUint32(pg.Data[heapOffPageNo:], 0)
	binary.LittleEndian.PutUint16(pg.Data[heapOffRecordEndPtr:], HeapHeaderSize)
	binary.LittleEndian.PutUint16(pg.Data[heapOffSlotRegionStart:], page.PageSize)
	binary.LittleEndian.PutUint16(pg.Data[heapOffNumRows:], 0)
	binary.LittleEndian.PutUint16(pg.Data[heapOffNumRowsFree:], 0)
	binary.LittleEndian.PutUint16(pg.Data[heapOffIsPageFull:], 0)
	binary.LittleEndian.PutUint16(pg.Data[heapOffSlotCount:], 0)

	pg.IsDirty = true
}

// ─────────────────────────────────────────────────────────────────────────────
// Record operations
// ─────────────────────────────────────────────────────────────────────────────

// InsertRecord writes data into the page and returns the slot index.
// The slot index is the slot half of a RecordId (PageNumber + SlotNumber).
// Returns an error if there is insufficient space — caller must get a new page.
func InsertRecord(pg *page.Page, data []byte) (slotIdx uint16, err error) {
	recordLen := uint16(len(data))
	if recordLen == 0 {
		return 0, fmt.Errorf("InsertRecord: data must not be empty")
	}
	if FreeSpace(pg) < int(recordLen)+SlotSize {
		return 0, fmt.Errorf("InsertRecord: need %d bytes, only %d available",
			int(recordLen)+SlotSize, FreeSpace(pg))
	}

	// Reuse a tombstone slot if one exists — avoids shrinking SlotRegionStart.
	slotIdx = GetSlotCount(pg) // default: new slot
	for i := uint16(0); i < GetSlotCount(pg); i++ {
		if _, l := readSlot(pg, i); l == 0 {
			slotIdx = i
			break
		}
	}

	// Write record data at RecordEndPtr and advance it forward.
	recordOffset := GetRecordEndPtr(pg)
	copy(pg.Data[recordOffset:], data)
	setRecordEndPtr(pg, recordOffset+recordLen)

	// Write the slot entry pointing at the record.
	if slotIdx == GetSlotCount(pg) {
		// New slot — grow slot directory backward.
		setSlotRegionStart(pg, GetSlotRegionStart(pg)-SlotSize)
		setSlotCount(pg, GetSlotCount(pg)+1)
	} else {
		// Recycled tombstone — one fewer free slot.
		setNumRowsFree(pg, GetNumRowsFree(pg)-1)
	}
	writeSlot(pg, slotIdx, recordOffset, recordLen)
	setNumRows(pg, GetNumRows(pg)+1)

	if FreeSpace(pg) <= 0 {
		setIsPageFull(pg, true)
	}

	pg.IsDirty = true
	return slotIdx, nil
}

// GetRecord returns a copy of the record at slotIdx.
func GetRecord(pg *page.Page, slotIdx uint16) ([]byte, error) {
	if slotIdx >= GetSlotCount(pg) {
		return nil, fmt.Errorf("GetRecord: slot %d out of range (count=%d)",
			slotIdx, GetSlotCount(pg))
	}
	offset, length := readSlot(pg, slotIdx)
	if length == 0 {
		return nil, fmt.Errorf("GetRecord: slot %d is a tombstone", slotIdx)
	}
	out := make([]byte, length)
	copy(out, pg.Data[offset:offset+length])
	return out, nil
}

// DeleteRecord marks slotIdx as a tombstone.
// Space used by the record is NOT reclaimed until a compaction pass.
// The slot entry remains so existing RecordIds stay valid.
func DeleteRecord(pg *page.Page, slotIdx uint16) error {
	if slotIdx >= GetSlotCount(pg) {
		return fmt.Errorf("DeleteRecord: slot %d out of range (count=%d)",
			slotIdx, GetSlotCount(pg))
	}
	if _, length := readSlot(pg, slotIdx); length == 0 {
		return fmt.Errorf("DeleteRecord: slot %d already deleted", slotIdx)
	}
	writeSlot(pg, slotIdx, 0, 0) // tombstone: offset=0, length=0
	setNumRows(pg, GetNumRows(pg)-1)
	setNumRowsFree(pg, GetNumRowsFree(pg)+1)
	setIsPageFull(pg, false)
	pg.IsDirty = true
	return nil
}

// UpdateRecord replaces the record at slotIdx with newData in place.
// Returns true  — updated in place (newData fits within original allocation).
// Returns false — original record tombstoned; caller must re-insert on a page
// with enough FreeSpace() for the larger record.
func UpdateRecord(pg *page.Page, slotIdx uint16, newData []byte) (bool, error) {
	if slotIdx >= GetSlotCount(pg) {
		return false, fmt.Errorf("UpdateRecord: slot %d out of range (count=%d)",
			slotIdx, GetSlotCount(pg))
	}
	offset, length := readSlot(pg, slotIdx)
	if length == 0 {
		return false, fmt.Errorf("UpdateRecord: slot %d is a tombstone", slotIdx)
	}

	newLen := uint16(len(newData))
	if newLen <= length {
		// Fits within the original allocation — overwrite in place.
		copy(pg.Data[offset:], newData)
		writeSlot(pg, slotIdx, offset, newLen)
		pg.IsDirty = true
		return true, nil
	}

	// Does not fit — tombstone and tell caller to re-insert elsewhere.
	if err := DeleteRecord(pg, slotIdx); err != nil {
		return false, err
	}
	return false, nil
}
