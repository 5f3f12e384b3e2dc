package btree

import (
	"DexDB/storage_engine/bufferpool"
	diskmanager "DexDB/storage_engine/disk_manager"
	"DexDB/types"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

type testEnv struct {
	dir  string
	dm   *diskmanager.DiskManager
	pool *bufferpool.BufferPool
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dm := diskmanager.NewDiskManager()
	return &testEnv{
		dir:  t.TempDir(),
		dm:   dm,
		pool: bufferpool.NewBufferPool(2048, dm),
	}
}

func (env *testEnv) openIndex(t *testing.T, relation string, offset int, scanner RelationScanner, fileID uint32) *BTreeIndex {
	t.Helper()
	idx, name, err := NewBTreeIndex(env.dir, relation, offset, Integer, scanner, fileID, env.pool, env.dm)
	if err != nil {
		t.Fatalf("NewBTreeIndex failed: %v", err)
	}
	wantName := relation + "." + itoa(offset)
	if name != wantName {
		t.Fatalf("index name = %q, want %q", name, wantName)
	}
	return idx
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [12]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// assertNoPins checks the pin-balance property: after a top-level call with
// no scan active, the buffer pool reports zero pinned frames for the file.
func assertNoPins(t *testing.T, env *testEnv, idx *BTreeIndex) {
	t.Helper()
	if got := env.pool.PinnedPageCount(idx.fileID); got != 0 {
		t.Fatalf("pinned index pages = %d, want 0", got)
	}
}

// scanKeys drains a scan and returns the scanned RecordIds.
func scanKeys(t *testing.T, idx *BTreeIndex, lo int32, lowOp Operator, hi int32, highOp Operator) []types.RecordId {
	t.Helper()
	if err := idx.StartScan(lo, lowOp, hi, highOp); err != nil {
		t.Fatalf("StartScan(%d, %d, %d, %d) failed: %v", lo, lowOp, hi, highOp, err)
	}
	var out []types.RecordId
	for {
		var rid types.RecordId
		err := idx.ScanNext(&rid)
		if errors.Is(err, ErrIndexScanCompleted) {
			break
		}
		if err != nil {
			t.Fatalf("ScanNext failed: %v", err)
		}
		out = append(out, rid)
	}
	if err := idx.EndScan(); err != nil {
		t.Fatalf("EndScan failed: %v", err)
	}
	return out
}

// ridForKey tags RecordIds so a scan result identifies the key it was
// inserted under.
func ridForKey(k int32) types.RecordId {
	return types.RecordId{PageNumber: uint32(k/100 + 1), SlotNumber: uint16(k % 100)}
}

func TestEmptyIndexScanCompletesImmediately(t *testing.T) {
	env := newTestEnv(t)
	idx := env.openIndex(t, "empty_rel", 0, nil, 1)
	defer idx.Close()

	if err := idx.StartScan(0, GTE, 100, LTE); err != nil {
		t.Fatalf("StartScan on empty index failed: %v", err)
	}
	var rid types.RecordId
	if err := idx.ScanNext(&rid); !errors.Is(err, ErrIndexScanCompleted) {
		t.Fatalf("ScanNext on empty index = %v, want ErrIndexScanCompleted", err)
	}
	if err := idx.EndScan(); err != nil {
		t.Fatalf("EndScan failed: %v", err)
	}
	assertNoPins(t, env, idx)
}

func TestInsertThenFullScanYieldsSortedKeys(t *testing.T) {
	env := newTestEnv(t)
	idx := env.openIndex(t, "small_rel", 0, nil, 1)
	defer idx.Close()

	keys := []int32{5, 3, 8, 1, 9, 2, 7, 4, 6}
	for _, k := range keys {
		if err := idx.InsertEntry(k, ridForKey(k)); err != nil {
			t.Fatalf("InsertEntry(%d) failed: %v", k, err)
		}
		assertNoPins(t, env, idx)
	}

	rids := scanKeys(t, idx, math.MinInt32, GTE, math.MaxInt32, LTE)
	if len(rids) != len(keys) {
		t.Fatalf("full scan returned %d entries, want %d", len(rids), len(keys))
	}
	for i, rid := range rids {
		if rid != ridForKey(int32(i+1)) {
			t.Errorf("scan position %d: rid = %v, want the rid of key %d", i, rid, i+1)
		}
	}
	assertNoPins(t, env, idx)
}

func TestRangeScanAcrossSplits(t *testing.T) {
	env := newTestEnv(t)
	idx := env.openIndex(t, "thousand", 0, nil, 1)
	defer idx.Close()

	for k := int32(1); k <= 1000; k++ {
		if err := idx.InsertEntry(k, ridForKey(k)); err != nil {
			t.Fatalf("InsertEntry(%d) failed: %v", k, err)
		}
	}
	assertNoPins(t, env, idx)

	// 1000 keys exceed one leaf, so the root must have gained separators.
	root := readNonLeaf(t, idx, idx.rootPageNum)
	if root.numKeys < 1 {
		t.Fatalf("root has no separators after 1000 inserts — no leaf ever split")
	}

	rids := scanKeys(t, idx, 500, GT, 510, LT)
	if len(rids) != 9 {
		t.Fatalf("scan (500,510) returned %d entries, want 9 (keys 501..509)", len(rids))
	}
	for i, rid := range rids {
		if rid != ridForKey(int32(501 + i)) {
			t.Errorf("scan position %d: rid = %v, want rid of key %d", i, rid, 501+i)
		}
	}

	// Inclusive bounds pick up both endpoints.
	rids = scanKeys(t, idx, 500, GTE, 510, LTE)
	if len(rids) != 11 {
		t.Errorf("scan [500,510] returned %d entries, want 11", len(rids))
	}
	assertNoPins(t, env, idx)

	verifyTree(t, idx, 1000)
}

func TestScanValidation(t *testing.T) {
	env := newTestEnv(t)
	idx := env.openIndex(t, "valid_rel", 0, nil, 1)
	defer idx.Close()

	if err := idx.StartScan(10, GT, 5, LT); !errors.Is(err, ErrBadScanrange) {
		t.Errorf("StartScan(10 > 5) = %v, want ErrBadScanrange", err)
	}
	if err := idx.StartScan(0, LT, 10, LTE); !errors.Is(err, ErrBadOpcodes) {
		t.Errorf("StartScan(lowOp=LT) = %v, want ErrBadOpcodes", err)
	}
	if err := idx.StartScan(0, GTE, 10, GT); !errors.Is(err, ErrBadOpcodes) {
		t.Errorf("StartScan(highOp=GT) = %v, want ErrBadOpcodes", err)
	}

	var rid types.RecordId
	if err := idx.ScanNext(&rid); !errors.Is(err, ErrScanNotInitialized) {
		t.Errorf("ScanNext without scan = %v, want ErrScanNotInitialized", err)
	}
	if err := idx.EndScan(); !errors.Is(err, ErrScanNotInitialized) {
		t.Errorf("EndScan without scan = %v, want ErrScanNotInitialized", err)
	}
	assertNoPins(t, env, idx)
}

func TestRestartScanEndsPreviousOne(t *testing.T) {
	env := newTestEnv(t)
	idx := env.openIndex(t, "restart_rel", 0, nil, 1)
	defer idx.Close()

	for k := int32(1); k <= 50; k++ {
		if err := idx.InsertEntry(k, ridForKey(k)); err != nil {
			t.Fatalf("InsertEntry(%d) failed: %v", k, err)
		}
	}

	if err := idx.StartScan(1, GTE, 50, LTE); err != nil {
		t.Fatalf("first StartScan failed: %v", err)
	}
	var rid types.RecordId
	if err := idx.ScanNext(&rid); err != nil {
		t.Fatalf("ScanNext failed: %v", err)
	}

	// Starting a new scan must release the first cursor's pin.
	if err := idx.StartScan(10, GTE, 20, LTE); err != nil {
		t.Fatalf("second StartScan failed: %v", err)
	}
	count := 0
	for {
		if err := idx.ScanNext(&rid); errors.Is(err, ErrIndexScanCompleted) {
			break
		} else if err != nil {
			t.Fatalf("ScanNext failed: %v", err)
		}
		count++
	}
	if count != 11 {
		t.Errorf("second scan returned %d entries, want 11", count)
	}
	if err := idx.EndScan(); err != nil {
		t.Fatalf("EndScan failed: %v", err)
	}
	assertNoPins(t, env, idx)
}

func TestDuplicateKeysSurviveSplits(t *testing.T) {
	env := newTestEnv(t)
	idx := env.openIndex(t, "dup_rel", 0, nil, 1)
	defer idx.Close()

	// More duplicates than one leaf holds, so equal keys span a split.
	const dups = IntArrayLeafSize + 60
	for i := 0; i < dups; i++ {
		rid := types.RecordId{PageNumber: uint32(i + 1), SlotNumber: uint16(i % 100)}
		if err := idx.InsertEntry(77, rid); err != nil {
			t.Fatalf("InsertEntry dup %d failed: %v", i, err)
		}
	}
	if err := idx.InsertEntry(76, ridForKey(76)); err != nil {
		t.Fatalf("InsertEntry(76) failed: %v", err)
	}
	if err := idx.InsertEntry(78, ridForKey(78)); err != nil {
		t.Fatalf("InsertEntry(78) failed: %v", err)
	}

	rids := scanKeys(t, idx, 77, GTE, 77, LTE)
	if len(rids) != dups {
		t.Fatalf("scan [77,77] returned %d entries, want %d", len(rids), dups)
	}
	seen := map[uint32]bool{}
	for _, rid := range rids {
		if seen[rid.PageNumber] {
			t.Fatalf("duplicate rid %v returned twice", rid)
		}
		seen[rid.PageNumber] = true
	}
	assertNoPins(t, env, idx)
}

func TestOpenExistingVerifiesMeta(t *testing.T) {
	env := newTestEnv(t)

	idx := env.openIndex(t, "alpha", 4, nil, 1)
	for k := int32(1); k <= 10; k++ {
		if err := idx.InsertEntry(k, ridForKey(k)); err != nil {
			t.Fatalf("InsertEntry failed: %v", err)
		}
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Reopen with matching parameters succeeds and sees the data.
	idx2 := env.openIndex(t, "alpha", 4, nil, 1)
	rids := scanKeys(t, idx2, 1, GTE, 10, LTE)
	if len(rids) != 10 {
		t.Fatalf("scan after reopen returned %d entries, want 10", len(rids))
	}
	if err := idx2.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// The same file presented under a different relation name must be
	// rejected: its meta page records "alpha".
	oldPath := filepath.Join(env.dir, "alpha.4")
	newPath := filepath.Join(env.dir, "beta.4")
	if err := os.Rename(oldPath, newPath); err != nil {
		t.Fatalf("rename failed: %v", err)
	}
	_, _, err := NewBTreeIndex(env.dir, "beta", 4, Integer, nil, 2, env.pool, env.dm)
	if !errors.Is(err, ErrBadIndexInfo) {
		t.Fatalf("open with mismatched meta = %v, want ErrBadIndexInfo", err)
	}
	if got := env.pool.PinnedPageCount(2); got != 0 {
		t.Errorf("pinned pages after BadIndexInfo = %d, want 0 (meta pin leaked)", got)
	}
}

func TestRootSplitAndReopen(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping multi-level build in short mode")
	}
	env := newTestEnv(t)
	idx := env.openIndex(t, "big_rel", 0, nil, 1)

	// Enough sequential keys that the level-1 root runs out of separator
	// slots and the split cascades past it.
	const n = 120_000
	for k := int32(0); k < n; k++ {
		if err := idx.InsertEntry(k, ridForKey(k)); err != nil {
			t.Fatalf("InsertEntry(%d) failed: %v", k, err)
		}
	}
	assertNoPins(t, env, idx)

	root := readNonLeaf(t, idx, idx.rootPageNum)
	if root.level != 0 {
		t.Fatalf("root level = %d after %d inserts, want 0 (root never split)", root.level, n)
	}

	verifyTree(t, idx, n)

	// The replaced root must be recorded on the meta page (reopen uses it).
	if err := idx.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	idx2 := env.openIndex(t, "big_rel", 0, nil, 1)
	defer idx2.Close()

	rids := scanKeys(t, idx2, 99_990, GT, 100_000, LT)
	if len(rids) != 9 {
		t.Fatalf("scan after reopen returned %d entries, want 9", len(rids))
	}
	assertNoPins(t, env, idx2)
}

func TestLookup(t *testing.T) {
	env := newTestEnv(t)
	idx := env.openIndex(t, "lookup_rel", 0, nil, 1)
	defer idx.Close()

	if _, err := idx.Lookup(1); !errors.Is(err, ErrNoSuchKeyFound) {
		t.Errorf("Lookup on empty index = %v, want ErrNoSuchKeyFound", err)
	}

	for k := int32(0); k < 2000; k += 2 {
		if err := idx.InsertEntry(k, ridForKey(k)); err != nil {
			t.Fatalf("InsertEntry(%d) failed: %v", k, err)
		}
	}

	if rid, err := idx.Lookup(500); err != nil || rid != ridForKey(500) {
		t.Errorf("Lookup(500) = %v, %v; want %v", rid, err, ridForKey(500))
	}
	if _, err := idx.Lookup(501); !errors.Is(err, ErrNoSuchKeyFound) {
		t.Errorf("Lookup(501) = %v, want ErrNoSuchKeyFound", err)
	}
	assertNoPins(t, env, idx)
}

// ─────────────────────────────────────────────────────────────────────────────
// Structural verification helpers
// ─────────────────────────────────────────────────────────────────────────────

func readNonLeaf(t *testing.T, idx *BTreeIndex, pageNo uint32) *nonLeafNode {
	t.Helper()
	pg, err := idx.fetchPage(pageNo)
	if err != nil {
		t.Fatalf("fetch non-leaf %d failed: %v", pageNo, err)
	}
	node := deserializeNonLeaf(pg.Data)
	idx.releasePage(pageNo, false)
	return node
}

func readLeaf(t *testing.T, idx *BTreeIndex, pageNo uint32) *leafNode {
	t.Helper()
	pg, err := idx.fetchPage(pageNo)
	if err != nil {
		t.Fatalf("fetch leaf %d failed: %v", pageNo, err)
	}
	leaf := deserializeLeaf(pg.Data)
	idx.releasePage(pageNo, false)
	return leaf
}

// verifyTree walks the whole tree and checks the structural invariants:
// sorted leaves, separator correctness, uniform depth and a complete
// sibling chain carrying exactly keyCount keys in ascending order.
func verifyTree(t *testing.T, idx *BTreeIndex, keyCount int) {
	t.Helper()

	var leavesInTreeOrder []uint32
	depth := -1

	var walk func(pageNo uint32, levelDepth int, lo, hi int64)
	walk = func(pageNo uint32, levelDepth int, lo, hi int64) {
		node := readNonLeaf(t, idx, pageNo)

		for i := 0; i < node.numKeys; i++ {
			k := int64(node.keys[i])
			if i > 0 && int64(node.keys[i-1]) > k {
				t.Fatalf("node %d separators out of order", pageNo)
			}
			if k < lo || k >= hi {
				t.Fatalf("node %d separator %d outside parent range [%d,%d)", pageNo, k, lo, hi)
			}
		}

		for i := 0; i <= node.numKeys; i++ {
			childLo, childHi := lo, hi
			if i > 0 {
				childLo = int64(node.keys[i-1])
			}
			if i < node.numKeys {
				childHi = int64(node.keys[i])
			}
			child := node.children[i]
			if node.level == 1 {
				leaf := readLeaf(t, idx, child)
				if depth == -1 {
					depth = levelDepth + 1
				} else if depth != levelDepth+1 {
					t.Fatalf("leaf %d at depth %d, others at %d", child, levelDepth+1, depth)
				}
				for j := 0; j < leaf.numKeys; j++ {
					k := int64(leaf.keys[j])
					if j > 0 && int64(leaf.keys[j-1]) > k {
						t.Fatalf("leaf %d keys out of order", child)
					}
					if k < childLo || k >= childHi {
						t.Fatalf("leaf %d key %d outside separator range [%d,%d)", child, k, childLo, childHi)
					}
				}
				leavesInTreeOrder = append(leavesInTreeOrder, child)
			} else {
				walk(child, levelDepth+1, childLo, childHi)
			}
		}
	}
	walk(idx.rootPageNum, 0, math.MinInt64, math.MaxInt64)

	// The sibling chain must visit the leaves in tree order and carry every
	// key in ascending order.
	chain := []uint32{}
	pageNo := leavesInTreeOrder[0]
	total := 0
	last := int64(math.MinInt64)
	for pageNo != 0 {
		chain = append(chain, pageNo)
		leaf := readLeaf(t, idx, pageNo)
		for j := 0; j < leaf.numKeys; j++ {
			if int64(leaf.keys[j]) < last {
				t.Fatalf("sibling chain key order broken at leaf %d", pageNo)
			}
			last = int64(leaf.keys[j])
			total++
		}
		pageNo = leaf.rightSib
	}
	if total != keyCount {
		t.Fatalf("sibling chain carries %d keys, want %d", total, keyCount)
	}
	if len(chain) != len(leavesInTreeOrder) {
		t.Fatalf("sibling chain has %d leaves, tree order has %d", len(chain), len(leavesInTreeOrder))
	}
	for i := range chain {
		if chain[i] != leavesInTreeOrder[i] {
			t.Fatalf("sibling chain diverges from tree order at leaf %d", i)
		}
	}
}
