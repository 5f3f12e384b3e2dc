package btree

import (
	"DexDB/types"
	"fmt"
)

// Lookup returns the RecordId of one entry with exactly the given key, or
// ErrNoSuchKeyFound. With duplicates present, which of them is returned is
// unspecified.
func (idx *BTreeIndex) Lookup(key int32) (types.RecordId, error) {
	leafNo, _, err := idx.descendToLeaf(key)
	if err != nil {
		return types.RecordId{}, fmt.Errorf("Lookup: %w", err)
	}
	if leafNo == 0 {
		return types.RecordId{}, fmt.Errorf("key %d: %w", key, ErrNoSuchKeyFound)
	}

	pg, err := idx.fetchPage(leafNo)
	if err != nil {
		return types.RecordId{}, fmt.Errorf("Lookup: failed to fetch leaf %d: %w", leafNo, err)
	}
	leaf := deserializeLeaf(pg.Data)
	idx.releasePage(leafNo, false)

	i := lowerBound(leaf.keys, key)
	if i < leaf.numKeys && leaf.keys[i] == key {
		return leaf.rids[i], nil
	}

	// A duplicate equal to a separator can land in the left sibling's
	// subtree; the copy in the right one starts that leaf. One sibling hop
	// covers the boundary case.
	if i == leaf.numKeys && leaf.rightSib != 0 {
		sibPg, err := idx.fetchPage(leaf.rightSib)
		if err != nil {
			return types.RecordId{}, fmt.Errorf("Lookup: failed to fetch sibling: %w", err)
		}
		sib := deserializeLeaf(sibPg.Data)
		idx.releasePage(leaf.rightSib, false)
		if sib.numKeys > 0 && sib.keys[0] == key {
			return sib.rids[0], nil
		}
	}

	return types.RecordId{}, fmt.Errorf("key %d: %w", key, ErrNoSuchKeyFound)
}
