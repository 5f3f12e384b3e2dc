package heapfile

import (
	"DexDB/storage_engine/bufferpool"
	diskmanager "DexDB/storage_engine/disk_manager"
	"DexDB/types"
	"errors"
	"fmt"
	"testing"
)

func newTestManager(t *testing.T) (*HeapFileManager, *bufferpool.BufferPool) {
	t.Helper()
	dm := diskmanager.NewDiskManager()
	pool := bufferpool.NewBufferPool(64, dm)
	hfm, err := NewHeapFileManager(t.TempDir(), dm, pool)
	if err != nil {
		t.Fatalf("Failed to create heap file manager: %v", err)
	}
	t.Cleanup(func() { hfm.CloseAll() })
	return hfm, pool
}

func TestHeapFileOperations(t *testing.T) {
	hfm, _ := newTestManager(t)

	relation := "students"
	fileID := uint32(1)
	if err := hfm.CreateHeapfile(relation, fileID); err != nil {
		t.Fatalf("Failed to create heap file: %v", err)
	}

	testRows := [][]byte{
		[]byte("Alice|20|A"),
		[]byte("Bob|21|B"),
		[]byte("Charlie|22|A"),
		[]byte("Diana|19|C"),
		[]byte("Eve|20|B"),
	}

	rids := make([]types.RecordId, 0, len(testRows))
	for i, row := range testRows {
		rid, err := hfm.InsertRow(fileID, row)
		if err != nil {
			t.Fatalf("Failed to insert row %d: %v", i, err)
		}
		rids = append(rids, rid)
	}

	// Read everything back.
	for i, rid := range rids {
		got, err := hfm.GetRow(fileID, rid)
		if err != nil {
			t.Fatalf("Failed to read row %d: %v", i, err)
		}
		if string(got) != string(testRows[i]) {
			t.Errorf("row %d = %q, want %q", i, got, testRows[i])
		}
	}

	// Shrinking update stays in place.
	newRid, err := hfm.UpdateRow(fileID, rids[1], []byte("Bo|21|B"))
	if err != nil {
		t.Fatalf("Failed to update row: %v", err)
	}
	if newRid != rids[1] {
		t.Errorf("shrinking update moved the row: %v -> %v", rids[1], newRid)
	}
	got, err := hfm.GetRow(fileID, rids[1])
	if err != nil {
		t.Fatalf("Failed to read updated row: %v", err)
	}
	if string(got) != "Bo|21|B" {
		t.Errorf("updated row = %q, want %q (stale cache?)", got, "Bo|21|B")
	}

	// Growing update re-inserts the row; the returned RecordId stays valid
	// (the tombstoned slot may be recycled for the new copy).
	movedRid, err := hfm.UpdateRow(fileID, rids[2], []byte("Charlie-the-very-long|22|A"))
	if err != nil {
		t.Fatalf("Failed to grow row: %v", err)
	}
	got, err = hfm.GetRow(fileID, movedRid)
	if err != nil {
		t.Fatalf("Failed to read moved row: %v", err)
	}
	if string(got) != "Charlie-the-very-long|22|A" {
		t.Errorf("moved row = %q", got)
	}

	// Delete tombstones the slot.
	if err := hfm.DeleteRow(fileID, rids[3]); err != nil {
		t.Fatalf("Failed to delete row: %v", err)
	}
	if _, err := hfm.GetRow(fileID, rids[3]); err == nil {
		t.Errorf("GetRow of deleted row succeeded, want tombstone error")
	}
}

func TestHeapFilePageOverflow(t *testing.T) {
	hfm, pool := newTestManager(t)

	fileID := uint32(1)
	if err := hfm.CreateHeapfile("wide", fileID); err != nil {
		t.Fatalf("Failed to create heap file: %v", err)
	}

	// 500-byte rows: a 4KB page holds ~8, so 50 rows span several pages.
	row := make([]byte, 500)
	var lastPage uint32
	newPages := 0
	for i := 0; i < 50; i++ {
		copy(row, fmt.Sprintf("row-%02d", i))
		rid, err := hfm.InsertRow(fileID, row)
		if err != nil {
			t.Fatalf("Failed to insert row %d: %v", i, err)
		}
		if rid.PageNumber != lastPage {
			newPages++
			lastPage = rid.PageNumber
		}
	}
	if newPages < 2 {
		t.Errorf("expected inserts to spill onto multiple pages, saw %d", newPages)
	}

	if got := pool.PinnedPageCount(fileID); got != 0 {
		t.Errorf("pinned pages after inserts = %d, want 0", got)
	}
}

func TestFileScan(t *testing.T) {
	hfm, pool := newTestManager(t)

	fileID := uint32(1)
	if err := hfm.CreateHeapfile("scan_me", fileID); err != nil {
		t.Fatalf("Failed to create heap file: %v", err)
	}

	inserted := map[string]bool{}
	row := make([]byte, 400)
	for i := 0; i < 40; i++ {
		key := fmt.Sprintf("row-%02d", i)
		copy(row, key)
		if _, err := hfm.InsertRow(fileID, row); err != nil {
			t.Fatalf("Failed to insert %s: %v", key, err)
		}
		inserted[key] = false
	}
	// Insert and delete one row so the scan has a tombstone to skip.
	rid5, _ := hfm.InsertRow(fileID, []byte("doomed"))
	if err := hfm.DeleteRow(fileID, rid5); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}

	hf, err := hfm.GetHeapFileByID(fileID)
	if err != nil {
		t.Fatalf("GetHeapFileByID failed: %v", err)
	}
	fs, err := NewFileScan(hf)
	if err != nil {
		t.Fatalf("NewFileScan failed: %v", err)
	}

	seen := 0
	for {
		rid, data, err := fs.ScanNext()
		if errors.Is(err, types.ErrEndOfFile) {
			break
		}
		if err != nil {
			t.Fatalf("ScanNext failed: %v", err)
		}
		if rid.PageNumber == 0 {
			t.Errorf("scan returned page number 0 (local pages start at 1)")
		}
		key := string(data[:6])
		if string(data) == "doomed" {
			t.Errorf("scan returned a tombstoned row")
		}
		if done, ok := inserted[key]; ok {
			if done {
				t.Errorf("scan returned %s twice", key)
			}
			inserted[key] = true
		}
		seen++
	}

	if seen != 40 {
		t.Errorf("scan returned %d rows, want 40", seen)
	}
	for key, done := range inserted {
		if !done {
			t.Errorf("scan missed %s", key)
		}
	}

	// A drained scan holds no pins.
	if got := pool.PinnedPageCount(fileID); got != 0 {
		t.Errorf("pinned pages after drained scan = %d, want 0", got)
	}

	// EOF is sticky.
	if _, _, err := fs.ScanNext(); !errors.Is(err, types.ErrEndOfFile) {
		t.Errorf("ScanNext after EOF = %v, want ErrEndOfFile", err)
	}
}

func TestFileScanCloseReleasesPin(t *testing.T) {
	hfm, pool := newTestManager(t)

	fileID := uint32(1)
	if err := hfm.CreateHeapfile("partial", fileID); err != nil {
		t.Fatalf("Failed to create heap file: %v", err)
	}
	for i := 0; i < 10; i++ {
		if _, err := hfm.InsertRow(fileID, []byte(fmt.Sprintf("row-%d", i))); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	hf, _ := hfm.GetHeapFileByID(fileID)
	fs, err := NewFileScan(hf)
	if err != nil {
		t.Fatalf("NewFileScan failed: %v", err)
	}
	if _, _, err := fs.ScanNext(); err != nil {
		t.Fatalf("ScanNext failed: %v", err)
	}

	// Mid-scan the cursor pins exactly one page; Close drops it.
	if got := pool.PinnedPageCount(fileID); got != 1 {
		t.Errorf("pinned pages mid-scan = %d, want 1", got)
	}
	fs.Close()
	if got := pool.PinnedPageCount(fileID); got != 0 {
		t.Errorf("pinned pages after Close = %d, want 0", got)
	}
	fs.Close() // safe to call twice
}
