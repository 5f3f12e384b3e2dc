package btree

import (
	"DexDB/storage_engine/page"
	"DexDB/types"
	"fmt"
)

/*
Insertion: top-down descent, bottom-up split cascade.

The descent records the local page numbers of the visited non-leaf nodes on
a stack (root first) but keeps none of them pinned — each ancestor is
re-pinned only when the cascade reaches it. That bounds the pin footprint
at two node pages plus the fresh page of a split, at the cost of re-reading
ancestors; the buffer pool is expected to keep the hot path cached.

Split shapes:
  - leaf:     the new right node's first key is COPIED up as the separator,
              so the leaf level retains the full key set and the sibling
              chain still yields every key in order.
  - non-leaf: the middle key of the merged (keys, children) is PUSHED up —
              separators are routing state only and do not survive at the
              split level.
*/

// InsertEntry inserts (key, rid) into the index. Duplicate keys may coexist;
// their relative order is unspecified.
func (idx *BTreeIndex) InsertEntry(key int32, rid types.RecordId) error {
	leafNo, path, err := idx.descendToLeaf(key)
	if err != nil {
		return fmt.Errorf("InsertEntry: %w", err)
	}

	if leafNo == 0 {
		// First insertion into a fresh index: create the initial leaf.
		leafNo, err = idx.createFirstLeaf()
		if err != nil {
			return fmt.Errorf("InsertEntry: %w", err)
		}
	}

	// Try the cheap case first: room in the target leaf.
	leafPg, err := idx.fetchPage(leafNo)
	if err != nil {
		return fmt.Errorf("InsertEntry: failed to fetch leaf %d: %w", leafNo, err)
	}
	leaf := deserializeLeaf(leafPg.Data)
	if leaf.insertNonFull(key, rid) {
		serializeLeaf(leaf, leafPg.Data)
		idx.releasePage(leafNo, true)
		return nil
	}

	// Leaf full — split it and push the separator up the recorded path.
	newPageNo, sepKey, err := idx.splitLeafInsert(leafPg, leafNo, leaf, key, rid)
	if err != nil {
		return fmt.Errorf("InsertEntry: leaf split failed: %w", err)
	}

	for len(path) > 0 {
		parentNo := path[len(path)-1]
		path = path[:len(path)-1]

		parentPg, err := idx.fetchPage(parentNo)
		if err != nil {
			return fmt.Errorf("InsertEntry: failed to fetch ancestor %d: %w", parentNo, err)
		}
		parent := deserializeNonLeaf(parentPg.Data)

		if parent.insertNonFull(sepKey, newPageNo) {
			serializeNonLeaf(parent, parentPg.Data)
			idx.releasePage(parentNo, true)
			return nil
		}

		newPageNo, sepKey, err = idx.splitNonLeafInsert(parentPg, parentNo, parent, sepKey, newPageNo)
		if err != nil {
			return fmt.Errorf("InsertEntry: non-leaf split failed: %w", err)
		}
	}

	// The path drained with a pending separator: the old root was split.
	return idx.createNewRoot(sepKey, newPageNo)
}

// descendToLeaf walks from the root to the leaf that owns key. It returns
// the leaf's page number and the stack of visited non-leaf page numbers
// (root first). Pages are pinned only while their child slot is read.
//
// On an empty tree (fresh root without children) the returned leaf number
// is 0 — the tree has no leaves yet.
func (idx *BTreeIndex) descendToLeaf(key int32) (uint32, []uint32, error) {
	path := make([]uint32, 0, 4)
	pageNo := idx.rootPageNum

	for {
		pg, err := idx.fetchPage(pageNo)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to fetch node %d: %w", pageNo, err)
		}
		node := deserializeNonLeaf(pg.Data)
		path = append(path, pageNo)

		if node.numKeys == 0 && node.children[0] == types.InvalidPageNumber {
			idx.releasePage(pageNo, false)
			return 0, path, nil
		}

		child := node.children[node.searchChild(key)]
		idx.releasePage(pageNo, false)

		if node.level == 1 {
			return child, path, nil
		}
		pageNo = child
	}
}

// createFirstLeaf allocates an empty leaf and wires it as the root's first
// child. Only reachable while the root is the sole node of the tree.
func (idx *BTreeIndex) createFirstLeaf() (uint32, error) {
	rootPg, err := idx.fetchPage(idx.rootPageNum)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch root %d: %w", idx.rootPageNum, err)
	}
	root := deserializeNonLeaf(rootPg.Data)

	leafPg, leafNo, err := idx.allocPage()
	if err != nil {
		idx.releasePage(idx.rootPageNum, false)
		return 0, fmt.Errorf("failed to allocate first leaf: %w", err)
	}
	serializeLeaf(newLeafNode(), leafPg.Data)
	idx.releasePage(leafNo, true)

	root.children[0] = leafNo
	serializeNonLeaf(root, rootPg.Data)
	idx.releasePage(idx.rootPageNum, true)
	return leafNo, nil
}

// splitLeafInsert splits the full leaf and places the overflow pair on the
// correct side. Both leaves are written and unpinned before returning the
// new page number and the copied-up separator (the right half's first key).
func (idx *BTreeIndex) splitLeafInsert(leafPg *page.Page, leafNo uint32, leaf *leafNode, key int32, rid types.RecordId) (uint32, int32, error) {
	rightPg, rightNo, err := idx.allocPage()
	if err != nil {
		idx.releasePage(leafNo, false)
		return 0, 0, fmt.Errorf("failed to allocate right leaf: %w", err)
	}

	mid := (IntArrayLeafSize + 1) / 2

	right := newLeafNode()
	right.keys = append(right.keys, leaf.keys[mid:]...)
	right.rids = append(right.rids, leaf.rids[mid:]...)
	right.numKeys = len(right.keys)

	leaf.keys = leaf.keys[:mid]
	leaf.rids = leaf.rids[:mid]
	leaf.numKeys = mid

	// The overflow pair belongs to whichever side its key orders into.
	if key >= right.keys[0] {
		right.insertNonFull(key, rid)
	} else {
		leaf.insertNonFull(key, rid)
	}

	right.rightSib = leaf.rightSib
	leaf.rightSib = rightNo

	serializeLeaf(leaf, leafPg.Data)
	serializeLeaf(right, rightPg.Data)
	idx.releasePage(leafNo, true)
	idx.releasePage(rightNo, true)

	return rightNo, right.keys[0], nil
}

// splitNonLeafInsert merges (sepKey, newChild) into the full node, splits at
// the middle and pushes the middle key up. Both halves are written and
// unpinned before returning.
func (idx *BTreeIndex) splitNonLeafInsert(nodePg *page.Page, nodeNo uint32, node *nonLeafNode, sepKey int32, newChild uint32) (uint32, int32, error) {
	rightPg, rightNo, err := idx.allocPage()
	if err != nil {
		idx.releasePage(nodeNo, false)
		return 0, 0, fmt.Errorf("failed to allocate right node: %w", err)
	}

	// Conceptual merge: N+1 keys, N+2 children.
	i := lowerBound(node.keys, sepKey)
	mergedKeys := insertAt(append([]int32(nil), node.keys...), i, sepKey)
	mergedChildren := insertAt(append([]uint32(nil), node.children...), i+1, newChild)

	mid := (IntArrayNonLeafSize + 1) / 2
	pushUp := mergedKeys[mid]

	right := &nonLeafNode{
		level:    node.level,
		numKeys:  len(mergedKeys) - mid - 1,
		keys:     append([]int32(nil), mergedKeys[mid+1:]...),
		children: append([]uint32(nil), mergedChildren[mid+1:]...),
	}

	node.keys = mergedKeys[:mid]
	node.children = mergedChildren[:mid+1]
	node.numKeys = mid

	serializeNonLeaf(node, nodePg.Data)
	serializeNonLeaf(right, rightPg.Data)
	idx.releasePage(nodeNo, true)
	idx.releasePage(rightNo, true)

	return rightNo, pushUp, nil
}

// createNewRoot replaces the root after it split: the old root becomes the
// new root's left child. The new root's children are non-leaf nodes, so its
// level is 0. The meta page is updated to the new root.
func (idx *BTreeIndex) createNewRoot(sepKey int32, rightNo uint32) error {
	rootPg, rootNo, err := idx.allocPage()
	if err != nil {
		return fmt.Errorf("createNewRoot: failed to allocate root: %w", err)
	}

	root := newNonLeafNode(0)
	root.keys = append(root.keys, sepKey)
	root.children[0] = idx.rootPageNum
	root.children = append(root.children, rightNo)
	root.numKeys = 1
	serializeNonLeaf(root, rootPg.Data)
	idx.releasePage(rootNo, true)

	fmt.Printf("[BTree] ROOT SPLIT index=%s old=%d new=%d\n", idx.indexName, idx.rootPageNum, rootNo)

	idx.rootPageNum = rootNo
	return idx.updateRootInMeta()
}
