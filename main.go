package main

import (
	heapfile "DexDB/storage_engine/access/heapfile_manager"
	indexfile "DexDB/storage_engine/access/indexfile_manager"
	btree "DexDB/storage_engine/access/indexfile_manager/btree"
	"DexDB/storage_engine/bufferpool"
	diskmanager "DexDB/storage_engine/disk_manager"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"os"
)

// Demo driver: seed a relation, build the integer index over it, then run
// point lookups and range scans against the index.
//
// Row format for the demo relation: [ id int32 | name bytes ] — the indexed
// attribute is id at byte offset 0.

const (
	baseDir    = "data"
	relation   = "students"
	heapFileID = 1
	idxFileID  = 2
	numRows    = 2000
	attrOffset = 0
)

func main() {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		log.Fatalf("mkdir: %v", err)
	}
	defer os.RemoveAll(baseDir)

	diskManager := diskmanager.NewDiskManager()
	pool := bufferpool.NewBufferPool(256, diskManager)

	hfm, err := heapfile.NewHeapFileManager(baseDir+"/tables", diskManager, pool)
	if err != nil {
		log.Fatalf("heap file manager: %v", err)
	}
	defer hfm.CloseAll()

	// Seed the relation with ids in random order.
	if err := hfm.CreateHeapfile(relation, heapFileID); err != nil {
		log.Fatalf("create heapfile: %v", err)
	}
	ids := rand.Perm(numRows)
	for _, id := range ids {
		row := make([]byte, 4+16)
		binary.LittleEndian.PutUint32(row, uint32(int32(id)))
		copy(row[4:], fmt.Sprintf("student-%d", id))
		if _, err := hfm.InsertRow(heapFileID, row); err != nil {
			log.Fatalf("insert row: %v", err)
		}
	}
	fmt.Printf("seeded %d rows into %s\n", numRows, relation)

	// Build the index by scanning the relation.
	ifm, err := indexfile.NewIndexFileManager(baseDir+"/indexes", diskManager, pool)
	if err != nil {
		log.Fatalf("index file manager: %v", err)
	}
	defer ifm.CloseAll()

	hf, err := hfm.GetHeapFileByRelation(relation)
	if err != nil {
		log.Fatalf("heap file: %v", err)
	}
	scan, err := heapfile.NewFileScan(hf)
	if err != nil {
		log.Fatalf("file scan: %v", err)
	}
	idx, err := ifm.GetOrCreateIndex(relation, attrOffset, btree.Integer, scan, idxFileID)
	if err != nil {
		log.Fatalf("build index: %v", err)
	}

	// Point lookup through the index, row fetched back from the heap.
	rid, err := idx.Lookup(42)
	if err != nil {
		log.Fatalf("lookup: %v", err)
	}
	row, err := hfm.GetRow(heapFileID, rid)
	if err != nil {
		log.Fatalf("get row: %v", err)
	}
	fmt.Printf("lookup id=42 -> page=%d slot=%d name=%s\n",
		rid.PageNumber, rid.SlotNumber, row[4:])

	// Range scan: ids in (100, 110].
	if err := idx.StartScan(100, btree.GT, 110, btree.LTE); err != nil {
		log.Fatalf("start scan: %v", err)
	}
	fmt.Print("ids in (100, 110]:")
	var out = rid
	for {
		if err := idx.ScanNext(&out); err != nil {
			if errors.Is(err, btree.ErrIndexScanCompleted) {
				break
			}
			log.Fatalf("scan next: %v", err)
		}
		row, err := hfm.GetRow(heapFileID, out)
		if err != nil {
			log.Fatalf("get row: %v", err)
		}
		fmt.Printf(" %d", int32(binary.LittleEndian.Uint32(row)))
	}
	fmt.Println()
	if err := idx.EndScan(); err != nil {
		log.Fatalf("end scan: %v", err)
	}

	fmt.Printf("pinned index pages after scans: %d\n", pool.PinnedPageCount(idx.FileID()))
}
