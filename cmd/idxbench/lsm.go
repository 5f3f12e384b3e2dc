// Pebble (CockroachDB's LSM storage engine) wrapped behind the same
// insert/range surface as the B+ tree index so the two can be benchmarked
// side by side.
package main

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/pebble"
)

type lsmIndex struct {
	db *pebble.DB
}

func openLSM(dir string) (*lsmIndex, error) {
	opts := &pebble.Options{
		MemTableSize:                16 << 20,
		MemTableStopWritesThreshold: 4,
		L0CompactionThreshold:       4,
		L0StopWritesThreshold:       12,
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("lsm: open: %w", err)
	}
	return &lsmIndex{db: db}, nil
}

func (l *lsmIndex) Close() error {
	return l.db.Close()
}

func (l *lsmIndex) Insert(key int32, value []byte) error {
	return l.db.Set(encodeKey(key), value, pebble.NoSync)
}

// RangeCount iterates keys in [start, end] and returns how many it saw.
func (l *lsmIndex) RangeCount(start, end int32) (int, error) {
	iter, err := l.db.NewIter(&pebble.IterOptions{
		LowerBound: encodeKey(start),
		UpperBound: encodeKey(end + 1),
	})
	if err != nil {
		return 0, fmt.Errorf("lsm: range: %w", err)
	}
	defer iter.Close()

	count := 0
	for iter.First(); iter.Valid(); iter.Next() {
		count++
	}
	return count, iter.Error()
}

// encodeKey maps int32 keys to big-endian bytes whose lexicographic order
// matches numeric order (sign bit flipped).
func encodeKey(k int32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(k)^0x80000000)
	return buf
}
