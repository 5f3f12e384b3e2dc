package btree

import (
	"DexDB/types"
	"encoding/binary"
	"fmt"
)

/*
Node and meta page codecs. All values little-endian. The codec performs no
validation — the caller commits to an interpretation from context (the meta
page's root number, a parent's level field, descent history).

Leaf page layout:

	Offset  Size      Field
	──────────────────────────────────────────────
	0       2         numKeys   uint16
	2       2         reserved
	4       4         rightSib  uint32 — next leaf in key order, 0 = none
	8       4*L       keyArray  [L]int32 — live prefix sorted, rest = -1
	8+4L    8*L       ridArray  [L]{pageNo uint32, slot uint16, pad}

Non-leaf page layout:

	0       2         level     uint16 — 1: children are leaves, 0: deeper
	2       2         numKeys   uint16
	4       4         reserved
	8       4*N       keyArray    [N]int32  — live prefix sorted, rest = -1
	8+4N    4*(N+1)   pageNoArray [N+1]uint32 — numKeys+1 live, rest = InvalidPageNumber

Meta page layout (local page 1):

	0       2         nameLen        uint16
	2       64        relationName   bytes, zero padded
	66      4         attrByteOffset int32
	70      4         attrType       int32
	74      4         rootPageNo     uint32

Deserializing copies the live prefix into slices; serializing writes the
live prefix back and refills every trailing slot with its sentinel, so the
on-disk image always shows the sentinel-terminated sorted prefix.
*/

const (
	leafOffNumKeys  = 0
	leafOffRightSib = 4
	leafOffKeys     = nodeHeaderSize
	leafOffRids     = nodeHeaderSize + keySize*IntArrayLeafSize

	nonLeafOffLevel   = 0
	nonLeafOffNumKeys = 2
	nonLeafOffKeys    = nodeHeaderSize
	nonLeafOffPageNos = nodeHeaderSize + keySize*IntArrayNonLeafSize

	metaOffNameLen    = 0
	metaOffName       = 2
	metaNameCap       = 64
	metaOffAttrOffset = 66
	metaOffAttrType   = 70
	metaOffRootPageNo = 74
)

type leafNode struct {
	numKeys  int
	rightSib uint32
	keys     []int32
	rids     []types.RecordId
}

type nonLeafNode struct {
	level   int16
	numKeys int
	keys    []int32
	// children holds numKeys+1 entries; children[i] covers keys < keys[i],
	// children[i+1] covers keys >= keys[i]. children[0] may be
	// InvalidPageNumber only in a fresh root before the first insert.
	children []uint32
}

func newLeafNode() *leafNode {
	return &leafNode{
		keys: make([]int32, 0, IntArrayLeafSize),
		rids: make([]types.RecordId, 0, IntArrayLeafSize),
	}
}

func newNonLeafNode(level int16) *nonLeafNode {
	n := &nonLeafNode{
		level:    level,
		keys:     make([]int32, 0, IntArrayNonLeafSize),
		children: make([]uint32, 1, IntArrayNonLeafSize+1),
	}
	n.children[0] = types.InvalidPageNumber
	return n
}

func serializeLeaf(n *leafNode, data []byte) {
	binary.LittleEndian.PutUint16(data[leafOffNumKeys:], uint16(n.numKeys))
	binary.LittleEndian.PutUint16(data[leafOffNumKeys+2:], 0)
	binary.LittleEndian.PutUint32(data[leafOffRightSib:], n.rightSib)

	for i := 0; i < IntArrayLeafSize; i++ {
		keyOff := leafOffKeys + i*keySize
		ridOff := leafOffRids + i*ridSize
		if i < n.numKeys {
			binary.LittleEndian.PutUint32(data[keyOff:], uint32(n.keys[i]))
			binary.LittleEndian.PutUint32(data[ridOff:], n.rids[i].PageNumber)
			binary.LittleEndian.PutUint16(data[ridOff+4:], n.rids[i].SlotNumber)
			binary.LittleEndian.PutUint16(data[ridOff+6:], 0)
		} else {
			emptyKey := EmptySlotKey
			binary.LittleEndian.PutUint32(data[keyOff:], uint32(emptyKey))
			binary.LittleEndian.PutUint32(data[ridOff:], 0)
			binary.LittleEndian.PutUint32(data[ridOff+4:], 0)
		}
	}
}

func deserializeLeaf(data []byte) *leafNode {
	n := &leafNode{
		numKeys:  int(binary.LittleEndian.Uint16(data[leafOffNumKeys:])),
		rightSib: binary.LittleEndian.Uint32(data[leafOffRightSib:]),
	}
	n.keys = make([]int32, n.numKeys, IntArrayLeafSize)
	n.rids = make([]types.RecordId, n.numKeys, IntArrayLeafSize)
	for i := 0; i < n.numKeys; i++ {
		keyOff := leafOffKeys + i*keySize
		ridOff := leafOffRids + i*ridSize
		n.keys[i] = int32(binary.LittleEndian.Uint32(data[keyOff:]))
		n.rids[i] = types.RecordId{
			PageNumber: binary.LittleEndian.Uint32(data[ridOff:]),
			SlotNumber: binary.LittleEndian.Uint16(data[ridOff+4:]),
		}
	}
	return n
}

func serializeNonLeaf(n *nonLeafNode, data []byte) {
	binary.LittleEndian.PutUint16(data[nonLeafOffLevel:], uint16(n.level))
	binary.LittleEndian.PutUint16(data[nonLeafOffNumKeys:], uint16(n.numKeys))
	binary.LittleEndian.PutUint32(data[nonLeafOffNumKeys+2:], 0)

	for i := 0; i < IntArrayNonLeafSize; i++ {
		keyOff := nonLeafOffKeys + i*keySize
		if i < n.numKeys {
			binary.LittleEndian.PutUint32(data[keyOff:], uint32(n.keys[i]))
		} else {
			emptyKey := EmptySlotKey
			binary.LittleEndian.PutUint32(data[keyOff:], uint32(emptyKey))
		}
	}
	for i := 0; i <= IntArrayNonLeafSize; i++ {
		pnOff := nonLeafOffPageNos + i*pageNoSize
		if i < len(n.children) {
			binary.LittleEndian.PutUint32(data[pnOff:], n.children[i])
		} else {
			binary.LittleEndian.PutUint32(data[pnOff:], types.InvalidPageNumber)
		}
	}
}

func deserializeNonLeaf(data []byte) *nonLeafNode {
	n := &nonLeafNode{
		level:   int16(binary.LittleEndian.Uint16(data[nonLeafOffLevel:])),
		numKeys: int(binary.LittleEndian.Uint16(data[nonLeafOffNumKeys:])),
	}
	n.keys = make([]int32, n.numKeys, IntArrayNonLeafSize)
	for i := 0; i < n.numKeys; i++ {
		n.keys[i] = int32(binary.LittleEndian.Uint32(data[nonLeafOffKeys+i*keySize:]))
	}
	n.children = make([]uint32, n.numKeys+1, IntArrayNonLeafSize+1)
	for i := 0; i <= n.numKeys; i++ {
		n.children[i] = binary.LittleEndian.Uint32(data[nonLeafOffPageNos+i*pageNoSize:])
	}
	return n
}

// indexMetaInfo mirrors the fixed meta page (local page 1).
type indexMetaInfo struct {
	relationName   string
	attrByteOffset int
	attrType       Datatype
	rootPageNo     uint32
}

func serializeMeta(m *indexMetaInfo, data []byte) error {
	if len(m.relationName) > metaNameCap {
		return fmt.Errorf("relation name too long: %d bytes (max %d)", len(m.relationName), metaNameCap)
	}
	binary.LittleEndian.PutUint16(data[metaOffNameLen:], uint16(len(m.relationName)))
	for i := 0; i < metaNameCap; i++ {
		data[metaOffName+i] = 0
	}
	copy(data[metaOffName:], m.relationName)
	binary.LittleEndian.PutUint32(data[metaOffAttrOffset:], uint32(int32(m.attrByteOffset)))
	binary.LittleEndian.PutUint32(data[metaOffAttrType:], uint32(int32(m.attrType)))
	binary.LittleEndian.PutUint32(data[metaOffRootPageNo:], m.rootPageNo)
	return nil
}

func deserializeMeta(data []byte) *indexMetaInfo {
	nameLen := int(binary.LittleEndian.Uint16(data[metaOffNameLen:]))
	if nameLen > metaNameCap {
		nameLen = metaNameCap
	}
	return &indexMetaInfo{
		relationName:   string(data[metaOffName : metaOffName+nameLen]),
		attrByteOffset: int(int32(binary.LittleEndian.Uint32(data[metaOffAttrOffset:]))),
		attrType:       Datatype(int32(binary.LittleEndian.Uint32(data[metaOffAttrType:]))),
		rootPageNo:     binary.LittleEndian.Uint32(data[metaOffRootPageNo:]),
	}
}
