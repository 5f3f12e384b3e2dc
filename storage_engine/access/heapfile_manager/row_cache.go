package heapfile

import (
	"fmt"

	"github.com/dgraph-io/ristretto/v2"
)

/*
Read-through row cache.

GetRow is the hottest call in the system once an index exists: every point
lookup resolves a RecordId back to row bytes. The cache sits in front of the
bufferpool so repeated lookups of the same row skip the page fetch, the
page latch and the record copy entirely.

Keys are "fileID:pageNo:slot" strings; values are the copied row bytes, cost
charged by length. Writers (update/delete) drop the entry before touching
the page, so the cache never serves a stale row after the write returns.
*/

const (
	rowCacheNumCounters = 100_000  // ~10x expected live entries
	rowCacheMaxCost     = 32 << 20 // 32 MB of row bytes
	rowCacheBufferItems = 64
)

func newRowCache() (*ristretto.Cache[string, []byte], error) {
	return ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: rowCacheNumCounters,
		MaxCost:     rowCacheMaxCost,
		BufferItems: rowCacheBufferItems,
	})
}

func rowCacheKey(fileID uint32, pageNo uint32, slot uint16) string {
	return fmt.Sprintf("%d:%d:%d", fileID, pageNo, slot)
}
