// Index file inspection for debugging.
// Use InspectIndexFile(path) to print a human-readable dump of an index file.

package btree

import (
	"DexDB/types"
	"fmt"
	"io"
	"os"
)

// InspectIndexFile opens an index file and prints its structure to stdout.
func InspectIndexFile(indexPath string) error {
	return InspectIndexFileTo(os.Stdout, indexPath)
}

// InspectIndexFileTo writes a human-readable dump of the index file to w:
// the meta page, then each level of nodes top-down, then the leaf level with
// key → RecordId pairs. It reads the raw file and needs no buffer pool.
func InspectIndexFileTo(w io.Writer, indexPath string) error {
	f, err := os.Open(indexPath)
	if err != nil {
		return err
	}
	defer f.Close()

	readPage := func(pageNo uint32) ([]byte, error) {
		buf := make([]byte, types.PageSize)
		if _, err := f.ReadAt(buf, int64(pageNo-1)*types.PageSize); err != nil {
			return nil, fmt.Errorf("read page %d: %w", pageNo, err)
		}
		return buf, nil
	}

	metaData, err := readPage(MetaPageNumber)
	if err != nil {
		return fmt.Errorf("read meta page: %w", err)
	}
	meta := deserializeMeta(metaData)

	p := func(format string, args ...interface{}) { fmt.Fprintf(w, format, args...) }

	p("Index file: %s\n", indexPath)
	p("  Page %d (meta): relation=%q attrByteOffset=%d attrType=%d root=%d\n",
		MetaPageNumber, meta.relationName, meta.attrByteOffset, meta.attrType, meta.rootPageNo)

	p("\n  Nodes (BFS):\n")
	p("  ---\n")

	// BFS over non-leaf levels. A node whose level field is 1 parents the
	// leaf level, so its children switch the queue over to leaves.
	queue := []uint32{meta.rootPageNo}
	var leaves []uint32
	depth := 0

	for len(queue) > 0 {
		size := len(queue)
		p("  Level %d:\n", depth)
		for i := 0; i < size; i++ {
			pageNo := queue[i]
			data, err := readPage(pageNo)
			if err != nil {
				p("    [page %d] read error: %v\n", pageNo, err)
				continue
			}
			node := deserializeNonLeaf(data)
			p("    [page %d] NONLEAF level=%d keys=%v children=%v\n",
				pageNo, node.level, node.keys, node.children)
			for _, c := range node.children {
				if c == types.InvalidPageNumber {
					continue
				}
				if node.level == 1 {
					leaves = append(leaves, c)
				} else {
					queue = append(queue, c)
				}
			}
		}
		p("  ---\n")
		queue = queue[size:]
		depth++
	}

	p("  Leaf level:\n")
	for _, pageNo := range leaves {
		data, err := readPage(pageNo)
		if err != nil {
			p("    [page %d] read error: %v\n", pageNo, err)
			continue
		}
		leaf := deserializeLeaf(data)
		p("    [page %d] LEAF numKeys=%d rightSib=%d\n", pageNo, leaf.numKeys, leaf.rightSib)
		for j := 0; j < leaf.numKeys; j++ {
			p("      %d -> (page=%d slot=%d)\n",
				leaf.keys[j], leaf.rids[j].PageNumber, leaf.rids[j].SlotNumber)
		}
	}
	p("  ---\n")

	return nil
}
