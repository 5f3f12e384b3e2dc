package btree

import (
	"DexDB/types"
	"fmt"
)

/*
Range scanner: a cursor over the leaf level. StartScan seeks the first leaf
whose key range intersects the lower bound; ScanNext advances slot by slot
and crosses right-sibling links until the upper bound is violated.

Between calls the cursor holds at most one pinned page — the current leaf.
currentPageNum == 0 means no leaf is held (empty tree, or the sibling chain
is exhausted).
*/

// StartScan begins a range scan over [lowVal, highVal] with the given
// comparators. lowOp must be GT or GTE and highOp must be LT or LTE
// (ErrBadOpcodes otherwise); lowVal must not exceed highVal
// (ErrBadScanrange). An already-active scan is ended first.
func (idx *BTreeIndex) StartScan(lowVal int32, lowOp Operator, highVal int32, highOp Operator) error {
	if (lowOp != GT && lowOp != GTE) || (highOp != LT && highOp != LTE) {
		return fmt.Errorf("StartScan: lowOp=%d highOp=%d: %w", lowOp, highOp, ErrBadOpcodes)
	}
	if lowVal > highVal {
		return fmt.Errorf("StartScan: low=%d high=%d: %w", lowVal, highVal, ErrBadScanrange)
	}

	if idx.scanExecuting {
		if err := idx.EndScan(); err != nil {
			return fmt.Errorf("StartScan: failed to end previous scan: %w", err)
		}
	}

	idx.lowValInt = lowVal
	idx.highValInt = highVal
	idx.lowOp = lowOp
	idx.highOp = highOp
	idx.scanExecuting = true
	idx.nextEntry = 0
	idx.currentPageNum = 0
	idx.currentNode = nil

	leafNo, empty, err := idx.descendForScan(lowVal, lowOp)
	if err != nil {
		idx.scanExecuting = false
		return fmt.Errorf("StartScan: %w", err)
	}
	if empty {
		// Empty tree: the scan is active but the first ScanNext completes it.
		return nil
	}

	leafPg, err := idx.fetchPage(leafNo)
	if err != nil {
		idx.scanExecuting = false
		return fmt.Errorf("StartScan: failed to fetch leaf %d: %w", leafNo, err)
	}
	idx.currentPageNum = leafNo
	idx.currentNode = deserializeLeaf(leafPg.Data)

	// Advance to the first slot satisfying the lower bound within this leaf.
	// If none qualifies, nextEntry stays at numKeys and the first ScanNext
	// crosses to the right sibling — a non-matching first leaf is not an
	// error at start time.
	for idx.nextEntry < idx.currentNode.numKeys &&
		!satisfiesLow(idx.currentNode.keys[idx.nextEntry], lowVal, lowOp) {
		idx.nextEntry++
	}

	return nil
}

// descendForScan walks from the root to the leftmost leaf whose key range
// intersects the lower bound. Routing pages are unpinned as soon as their
// child slot is read. empty reports a fresh tree with no leaves at all.
func (idx *BTreeIndex) descendForScan(lowVal int32, lowOp Operator) (leafNo uint32, empty bool, err error) {
	pageNo := idx.rootPageNum
	for {
		pg, err := idx.fetchPage(pageNo)
		if err != nil {
			return 0, false, fmt.Errorf("failed to fetch node %d: %w", pageNo, err)
		}
		node := deserializeNonLeaf(pg.Data)

		if node.numKeys == 0 && node.children[0] == types.InvalidPageNumber {
			idx.releasePage(pageNo, false)
			return 0, true, nil
		}

		child := node.children[node.searchChildForScan(lowVal, lowOp)]
		idx.releasePage(pageNo, false)

		if node.level == 1 {
			return child, false, nil
		}
		pageNo = child
	}
}

// ScanNext emits the RecordId of the next entry in the range into out.
// Returns ErrIndexScanCompleted once the range is exhausted and
// ErrScanNotInitialized when no scan is active.
func (idx *BTreeIndex) ScanNext(out *types.RecordId) error {
	if !idx.scanExecuting {
		return ErrScanNotInitialized
	}

	for {
		// Leaf drained (or none held) — follow the sibling chain.
		if idx.currentNode == nil || idx.nextEntry >= idx.currentNode.numKeys {
			if idx.currentNode == nil {
				return ErrIndexScanCompleted
			}
			sib := idx.currentNode.rightSib
			idx.releasePage(idx.currentPageNum, false)
			idx.currentPageNum = 0
			idx.currentNode = nil
			if sib == 0 {
				return ErrIndexScanCompleted
			}
			pg, err := idx.fetchPage(sib)
			if err != nil {
				return fmt.Errorf("ScanNext: failed to fetch sibling %d: %w", sib, err)
			}
			idx.currentPageNum = sib
			idx.currentNode = deserializeLeaf(pg.Data)
			idx.nextEntry = 0
			continue
		}

		key := idx.currentNode.keys[idx.nextEntry]

		// Below the lower bound — skip the entry.
		if !satisfiesLow(key, idx.lowValInt, idx.lowOp) {
			idx.nextEntry++
			continue
		}

		// Above the upper bound — the scan is complete. The current leaf
		// stays pinned until EndScan.
		if exceedsHigh(key, idx.highValInt, idx.highOp) {
			return ErrIndexScanCompleted
		}

		*out = idx.currentNode.rids[idx.nextEntry]
		idx.nextEntry++
		return nil
	}
}

// EndScan terminates the active scan and releases the cursor's pinned leaf.
// A page-not-pinned failure on that release is swallowed.
func (idx *BTreeIndex) EndScan() error {
	if !idx.scanExecuting {
		return ErrScanNotInitialized
	}

	if idx.currentPageNum != 0 {
		idx.releasePage(idx.currentPageNum, false)
	}
	idx.currentPageNum = 0
	idx.currentNode = nil
	idx.nextEntry = 0
	idx.scanExecuting = false
	return nil
}

func satisfiesLow(key, lowVal int32, lowOp Operator) bool {
	if lowOp == GT {
		return key > lowVal
	}
	return key >= lowVal
}

func exceedsHigh(key, highVal int32, highOp Operator) bool {
	if highOp == LT {
		return key >= highVal
	}
	return key > highVal
}
