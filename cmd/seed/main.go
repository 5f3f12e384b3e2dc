// Seed program: creates the demo relation's heap file and fills it with
// sample rows whose first 4 bytes are the int32 id attribute.
// Run: go run ./cmd/seed
// Then build/inspect the index: go run ./cmd/inspect_idx data/indexes/students.0
package main

import (
	heapfile "DexDB/storage_engine/access/heapfile_manager"
	indexfile "DexDB/storage_engine/access/indexfile_manager"
	btree "DexDB/storage_engine/access/indexfile_manager/btree"
	"DexDB/storage_engine/bufferpool"
	diskmanager "DexDB/storage_engine/disk_manager"
	"encoding/binary"
	"fmt"
	"log"
	"math/rand"
)

const (
	baseDir    = "data"
	relation   = "students"
	heapFileID = 1
	idxFileID  = 2
	numRows    = 5000
)

func main() {
	diskManager := diskmanager.NewDiskManager()
	pool := bufferpool.NewBufferPool(256, diskManager)

	hfm, err := heapfile.NewHeapFileManager(baseDir+"/tables", diskManager, pool)
	if err != nil {
		log.Fatalf("heap file manager: %v", err)
	}
	defer hfm.CloseAll()

	if err := hfm.CreateHeapfile(relation, heapFileID); err != nil {
		log.Fatalf("create heapfile: %v", err)
	}

	for _, id := range rand.Perm(numRows) {
		row := make([]byte, 4+20)
		binary.LittleEndian.PutUint32(row, uint32(int32(id)))
		copy(row[4:], fmt.Sprintf("student-%05d", id))
		if _, err := hfm.InsertRow(heapFileID, row); err != nil {
			log.Fatalf("insert row %d: %v", id, err)
		}
	}
	fmt.Printf("seeded %d rows into %s\n", numRows, relation)

	// Build the index over the id attribute so inspect_idx has something to
	// look at.
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
	if _, err := ifm.GetOrCreateIndex(relation, 0, btree.Integer, scan, idxFileID); err != nil {
		log.Fatalf("build index: %v", err)
	}
	fmt.Printf("built index %s/indexes/%s.0\n", baseDir, relation)
}
