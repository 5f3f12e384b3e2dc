package btree

import "DexDB/types"

/*
Pure operations over a single decoded node: sorted insertion into a non-full
node and the search primitives the descent paths use. Splits live in
insertion.go because they allocate pages.
*/

// lowerBound returns the smallest i with keys[i] >= target, or len(keys).
func lowerBound(keys []int32, target int32) int {
	lo, hi := 0, len(keys)
	for lo < hi {
		mid := lo + (hi-lo)/2
		if keys[mid] < target {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// upperBound returns the smallest i with keys[i] > target, or len(keys).
func upperBound(keys []int32, target int32) int {
	lo, hi := 0, len(keys)
	for lo < hi {
		mid := lo + (hi-lo)/2
		if keys[mid] <= target {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// insertAt inserts elem at index i in slice.
func insertAt[T any](slice []T, i int, elem T) []T {
	slice = append(slice, elem) // grow by 1
	copy(slice[i+1:], slice[i:])
	slice[i] = elem
	return slice
}

// insertNonFull places (key, rid) at the position that keeps the key array
// sorted. Returns false without modification when the node is full.
func (n *leafNode) insertNonFull(key int32, rid types.RecordId) bool {
	if n.numKeys >= IntArrayLeafSize {
		return false
	}
	i := lowerBound(n.keys, key)
	n.keys = insertAt(n.keys, i, key)
	n.rids = insertAt(n.rids, i, rid)
	n.numKeys++
	return true
}

// insertNonFull places separator key and its right child: the key lands at
// its sorted position idx, the child at idx+1 (the newly introduced child is
// always the right neighbor of its separator). Returns false when full.
func (n *nonLeafNode) insertNonFull(key int32, rightChild uint32) bool {
	if n.numKeys >= IntArrayNonLeafSize {
		return false
	}
	i := lowerBound(n.keys, key)
	n.keys = insertAt(n.keys, i, key)
	n.children = insertAt(n.children, i+1, rightChild)
	n.numKeys++
	return true
}

// searchChild returns the child slot the insert descent follows for key:
// the smallest i with keys[i] >= key, or numKeys when no such key exists.
func (n *nonLeafNode) searchChild(key int32) int {
	return lowerBound(n.keys, key)
}

// searchChildForScan returns the child slot the scan descent follows for the
// lower bound: strict (GT) skips separators equal to the bound, non-strict
// (GTE) does not. A non-matching pick only costs extra sibling hops.
func (n *nonLeafNode) searchChildForScan(lowVal int32, lowOp Operator) int {
	if lowOp == GT {
		return upperBound(n.keys, lowVal)
	}
	return lowerBound(n.keys, lowVal)
}
