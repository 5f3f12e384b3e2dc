package heapfile

import (
	page "DexDB/storage_engine/page"
	"encoding/binary"
)

// Header field accessors. Setters are package-private; the page mutators in
// heap_page.go are the only writers.

func GetFileID(pg *page.Page) uint32 {
	return binary.LittleEndian.Uint32(pg.Data[heapOffFileID:])
}

func GetPageNo(pg *page.Page) uint32 {
	return binary.LittleEndian.Uint32(pg.Data[heapOffPageNo:])
}

func SetPageNo(pg *page.Page, n uint32) {
	binary.LittleEndian.PutUint32(pg.Data[heapOffPageNo:], n)
	pg.IsDirty = true
}

func GetRecordEndPtr(pg *page.Page) uint16 {
	return binary.LittleEndian.Uint16(pg.Data[heapOffRecordEndPtr:])
}

func setRecordEndPtr(pg *page.Page, v uint16) {
	binary.LittleEndian.PutUint16(pg.Data[heapOffRecordEndPtr:], v)
}

func GetSlotRegionStart(pg *page.Page) uint16 {
	return binary.LittleEndian.Uint16(pg.Data[heapOffSlotRegionStart:])
}

func setSlotRegionStart(pg *page.Page, v uint16) {
	binary.LittleEndian.PutUint16(pg.Data[heapOffSlotRegionStart:], v)
}

func GetNumRows(pg *page.Page) uint16 {
	return binary.LittleEndian.Uint16(pg.Data[heapOffNumRows:])
}

func setNumRows(pg *page.Page, n uint16) {
	binary.LittleEndian.PutUint16(pg.Data[heapOffNumRows:], n)
}

func GetNumRowsFree(pg *page.Page) uint16 {
	return binary.LittleEndian.Uint16(pg.Data[heapOffNumRowsFree:])
}

func setNumRowsFree(pg *page.Page, n uint16) {
	binary.LittleEndian.PutUint16(pg.Data[heapOffNumRowsFree:], n)
}

func GetIsPageFull(pg *page.Page) bool {
	return binary.LittleEndian.Uint16(pg.Data[heapOffIsPageFull:]) == 1
}

func setIsPageFull(pg *page.Page, full bool) {
	v := uint16(0)
	if full {
		v = 1
	}
	binary.LittleEndian.PutUint16(pg.Data[heapOffIsPageFull:], v)
}

func GetSlotCount(pg *page.Page) uint16 {
	return binary.LittleEndian.Uint16(pg.Data[heapOffSlotCount:])
}

func setSlotCount(pg *page.Page, n uint16) {
	binary.LittleEndian.PutUint16(pg.Data[heapOffSlotCount:], n)
}

// FreeSpace is the usable gap between the record area and the slot directory.
func FreeSpace(pg *page.Page) int {
	return int(GetSlotRegionStart(pg)) - int(GetRecordEndPtr(pg))
}

func slotByteOffset(i uint16) int {
	return page.PageSize - int(i+1)*SlotSize
}

func readSlot(pg *page.Page, i uint16) (offset, length uint16) {
	base := slotByteOffset(i)
	offset = binary.LittleEndian.Uint16(pg.Data[base:])
	length = binary.LittleEndian.Uint16(pg.Data[base+2:])
	return offset, length
}

func writeSlot(pg *page.Page, i uint16, offset, length uint16) {
	base := slotByteOffset(i)
	binary.LittleEndian.PutUint16(pg.Data[base:], offset)
	binary.LittleEndian.PutUint16(pg.Data[base+2:], length)
}

// IsSlotLive reports whether slot i holds a record (not a tombstone).
func IsSlotLive(pg *page.Page, i uint16) bool {
	if i >= GetSlotCount(pg) {
		return false
	}
	_, length := readSlot(pg, i)
	return length > 0
}
