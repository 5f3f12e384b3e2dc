// idxbench loads n keys into the B+ tree index and into a Pebble baseline,
// times inserts and range scans, writes a CSV and renders a bar chart.
// Run: go run ./cmd/idxbench
package main

import (
	btree "DexDB/storage_engine/access/indexfile_manager/btree"
	"DexDB/storage_engine/bufferpool"
	diskmanager "DexDB/storage_engine/disk_manager"
	"DexDB/types"
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"os"
	"runtime"
	"strconv"
	"time"
)

const (
	scale      = 200_000
	rangeWidth = 100
	rangeScans = 1000
	resultsCSV = "idxbench_results.csv"
	resultsPNG = "idxbench_results.png"
)

type benchResult struct {
	Name      string
	Operation string
	LatencyNs int64
	MemMB     uint64
}

func main() {
	f, err := os.Create(resultsCSV)
	if err != nil {
		log.Fatalf("create csv: %v", err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	w.Write([]string{"Structure", "Operation", "LatencyNs", "MemMB"})

	results := []benchResult{}
	results = append(results, runBTree()...)
	results = append(results, runPebble()...)

	for _, res := range results {
		w.Write([]string{
			res.Name,
			res.Operation,
			strconv.FormatInt(res.LatencyNs, 10),
			strconv.FormatUint(res.MemMB, 10),
		})
	}
	w.Flush()

	if err := renderChart(results, resultsPNG); err != nil {
		log.Fatalf("render chart: %v", err)
	}
	fmt.Printf("benchmark complete — %s, %s\n", resultsCSV, resultsPNG)
}

func runBTree() []benchResult {
	fmt.Printf("Testing B+ tree index (n=%d)\n", scale)

	dir, err := os.MkdirTemp("", "idxbench_btree")
	if err != nil {
		log.Fatalf("tempdir: %v", err)
	}
	defer os.RemoveAll(dir)

	diskManager := diskmanager.NewDiskManager()
	pool := bufferpool.NewBufferPool(1024, diskManager)

	idx, _, err := btree.NewBTreeIndex(dir, "bench", 0, btree.Integer, nil, 1, pool, diskManager)
	if err != nil {
		log.Fatalf("open index: %v", err)
	}
	defer idx.Close()

	start := time.Now()
	for k := 0; k < scale; k++ {
		rid := types.RecordId{PageNumber: uint32(k/100 + 1), SlotNumber: uint16(k % 100)}
		if err := idx.InsertEntry(int32(k), rid); err != nil {
			log.Fatalf("insert %d: %v", k, err)
		}
	}
	insertNs := time.Since(start).Nanoseconds() / scale

	start = time.Now()
	total := 0
	for i := 0; i < rangeScans; i++ {
		lo := int32(rand.Intn(scale - rangeWidth))
		if err := idx.StartScan(lo, btree.GTE, lo+rangeWidth, btree.LT); err != nil {
			log.Fatalf("start scan: %v", err)
		}
		var rid types.RecordId
		for {
			if err := idx.ScanNext(&rid); err != nil {
				if errors.Is(err, btree.ErrIndexScanCompleted) {
					break
				}
				log.Fatalf("scan next: %v", err)
			}
			total++
		}
		if err := idx.EndScan(); err != nil {
			log.Fatalf("end scan: %v", err)
		}
	}
	scanNs := time.Since(start).Nanoseconds() / rangeScans
	fmt.Printf("  range scans touched %d entries\n", total)

	stats := pool.GetStats()
	fmt.Printf("  buffer pool: %d/%d pages resident, %d dirty, %d pinned\n",
		stats.TotalPages, stats.Capacity, stats.DirtyPages, stats.PinnedPages)

	return []benchResult{
		{"bplustree", "insert", insertNs, allocMB()},
		{"bplustree", "range", scanNs, allocMB()},
	}
}

func runPebble() []benchResult {
	fmt.Printf("Testing Pebble baseline (n=%d)\n", scale)

	dir, err := os.MkdirTemp("", "idxbench_pebble")
	if err != nil {
		log.Fatalf("tempdir: %v", err)
	}
	defer os.RemoveAll(dir)

	lsm, err := openLSM(dir)
	if err != nil {
		log.Fatalf("open pebble: %v", err)
	}
	defer lsm.Close()

	value := []byte("rid-placeholder")

	start := time.Now()
	for k := 0; k < scale; k++ {
		if err := lsm.Insert(int32(k), value); err != nil {
			log.Fatalf("insert %d: %v", k, err)
		}
	}
	insertNs := time.Since(start).Nanoseconds() / scale

	start = time.Now()
	total := 0
	for i := 0; i < rangeScans; i++ {
		lo := int32(rand.Intn(scale - rangeWidth))
		n, err := lsm.RangeCount(lo, lo+rangeWidth-1)
		if err != nil {
			log.Fatalf("range: %v", err)
		}
		total += n
	}
	scanNs := time.Since(start).Nanoseconds() / rangeScans
	fmt.Printf("  range scans touched %d entries\n", total)

	return []benchResult{
		{"pebble", "insert", insertNs, allocMB()},
		{"pebble", "range", scanNs, allocMB()},
	}
}

func allocMB() uint64 {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	return m.Alloc / 1024 / 1024
}
