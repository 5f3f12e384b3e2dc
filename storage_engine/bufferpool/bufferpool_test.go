package bufferpool

import (
	diskmanager "DexDB/storage_engine/disk_manager"
	"DexDB/types"
	"errors"
	"path/filepath"
	"testing"
)

func newTestPool(t *testing.T, capacity int) (*BufferPool, *diskmanager.DiskManager, uint32) {
	t.Helper()
	dm := diskmanager.NewDiskManager()
	path := filepath.Join(t.TempDir(), "pool_test.dat")
	fileID, err := dm.CreateFile(path, 1)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	t.Cleanup(func() { dm.CloseAll() })
	return NewBufferPool(capacity, dm), dm, fileID
}

// TestPinUnpinBalance tests that pins accumulate and release one at a time
func TestPinUnpinBalance(t *testing.T) {
	pool, _, fileID := newTestPool(t, 8)

	pg, err := pool.NewPage(fileID, types.PageTypeHeapData)
	if err != nil {
		t.Fatalf("NewPage failed: %v", err)
	}
	if pg.PinCount != 1 {
		t.Fatalf("fresh page pin count = %d, want 1", pg.PinCount)
	}

	// Fetch pins again.
	if _, err := pool.FetchPage(pg.ID); err != nil {
		t.Fatalf("FetchPage failed: %v", err)
	}
	if pg.PinCount != 2 {
		t.Fatalf("pin count after fetch = %d, want 2", pg.PinCount)
	}

	if err := pool.UnpinPage(pg.ID, false); err != nil {
		t.Fatalf("first unpin failed: %v", err)
	}
	if err := pool.UnpinPage(pg.ID, true); err != nil {
		t.Fatalf("second unpin failed: %v", err)
	}
	if got := pool.PinnedPageCount(fileID); got != 0 {
		t.Errorf("pinned page count = %d, want 0", got)
	}

	// A third unpin is a pin-balance bug and must say so.
	if err := pool.UnpinPage(pg.ID, false); !errors.Is(err, ErrPageNotPinned) {
		t.Errorf("unpin of unpinned page = %v, want ErrPageNotPinned", err)
	}
}

// TestEvictionWritesDirtyPages tests LRU eviction with write-back
func TestEvictionWritesDirtyPages(t *testing.T) {
	pool, _, fileID := newTestPool(t, 3)

	// Fill the pool past capacity with unpinned dirty pages.
	ids := make([]int64, 0, 5)
	for i := 0; i < 5; i++ {
		pg, err := pool.NewPage(fileID, types.PageTypeHeapData)
		if err != nil {
			t.Fatalf("NewPage %d failed: %v", i, err)
		}
		pg.Data[0] = byte(i + 1)
		ids = append(ids, pg.ID)
		if err := pool.UnpinPage(pg.ID, true); err != nil {
			t.Fatalf("unpin %d failed: %v", i, err)
		}
	}

	if pool.Size() > 3 {
		t.Fatalf("pool size = %d, capacity 3 not enforced", pool.Size())
	}

	// Evicted pages must come back from disk with their contents intact.
	for i, id := range ids {
		pg, err := pool.FetchPage(id)
		if err != nil {
			t.Fatalf("refetch of page %d failed: %v", id, err)
		}
		if pg.Data[0] != byte(i+1) {
			t.Errorf("page %d data = %d, want %d (dirty page lost in eviction)", id, pg.Data[0], i+1)
		}
		pool.UnpinPage(id, false)
	}
}

// TestEvictionSkipsPinned tests that a pinned frame survives eviction pressure
func TestEvictionSkipsPinned(t *testing.T) {
	pool, _, fileID := newTestPool(t, 2)

	pinned, err := pool.NewPage(fileID, types.PageTypeHeapData)
	if err != nil {
		t.Fatalf("NewPage failed: %v", err)
	}
	pinned.Data[0] = 0xAB

	for i := 0; i < 4; i++ {
		pg, err := pool.NewPage(fileID, types.PageTypeHeapData)
		if err != nil {
			t.Fatalf("NewPage %d failed: %v", i, err)
		}
		pool.UnpinPage(pg.ID, false)
	}

	// The pinned frame must still be resident and untouched.
	again, err := pool.FetchPage(pinned.ID)
	if err != nil {
		t.Fatalf("FetchPage of pinned page failed: %v", err)
	}
	if again != pinned || again.Data[0] != 0xAB {
		t.Errorf("pinned page was evicted or replaced")
	}
	pool.UnpinPage(pinned.ID, false)
	pool.UnpinPage(pinned.ID, false)
}

// TestFlushFile tests flush-and-release plus the still-pinned refusal
func TestFlushFile(t *testing.T) {
	pool, dm, fileID := newTestPool(t, 8)

	pg, err := pool.NewPage(fileID, types.PageTypeHeapData)
	if err != nil {
		t.Fatalf("NewPage failed: %v", err)
	}
	pg.Data[10] = 0x42

	// Refuses while the frame is pinned.
	if err := pool.FlushFile(fileID); !errors.Is(err, ErrPagePinned) {
		t.Fatalf("FlushFile with pinned frame = %v, want ErrPagePinned", err)
	}

	pageID := pg.ID
	if err := pool.UnpinPage(pageID, true); err != nil {
		t.Fatalf("unpin failed: %v", err)
	}
	if err := pool.FlushFile(fileID); err != nil {
		t.Fatalf("FlushFile failed: %v", err)
	}
	if pool.Size() != 0 {
		t.Errorf("pool size after FlushFile = %d, want 0", pool.Size())
	}

	// The dirty byte must have reached disk.
	onDisk, err := dm.ReadPage(pageID)
	if err != nil {
		t.Fatalf("ReadPage after flush failed: %v", err)
	}
	if onDisk.Data[10] != 0x42 {
		t.Errorf("flushed byte = %d, want 0x42", onDisk.Data[10])
	}
}

// TestResetFlushesAndClears tests that Reset writes dirty frames back and
// empties the pool without shrinking its capacity
func TestResetFlushesAndClears(t *testing.T) {
	pool, _, fileID := newTestPool(t, 4)

	if pool.Capacity() != 4 {
		t.Fatalf("capacity = %d, want 4", pool.Capacity())
	}

	ids := make([]int64, 0, 3)
	for i := 0; i < 3; i++ {
		pg, err := pool.NewPage(fileID, types.PageTypeHeapData)
		if err != nil {
			t.Fatalf("NewPage %d failed: %v", i, err)
		}
		pg.Data[0] = byte(i + 1)
		ids = append(ids, pg.ID)
		if err := pool.UnpinPage(pg.ID, true); err != nil {
			t.Fatalf("unpin %d failed: %v", i, err)
		}
	}

	if err := pool.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if pool.Size() != 0 {
		t.Errorf("pool size after Reset = %d, want 0", pool.Size())
	}
	if pool.Capacity() != 4 {
		t.Errorf("capacity after Reset = %d, want 4", pool.Capacity())
	}

	// Reset flushed the dirty frames, so a refetch reads them from disk.
	for i, id := range ids {
		pg, err := pool.FetchPage(id)
		if err != nil {
			t.Fatalf("refetch of page %d failed: %v", id, err)
		}
		if pg.Data[0] != byte(i+1) {
			t.Errorf("page %d data = %d, want %d (dirty page lost in Reset)", id, pg.Data[0], i+1)
		}
		pool.UnpinPage(id, false)
	}

	stats := pool.GetStats()
	if stats.TotalPages != 3 || stats.PinnedPages != 0 || stats.Capacity != 4 {
		t.Errorf("stats = %+v, want 3 resident, 0 pinned, capacity 4", stats)
	}
}
