package page

import (
	"DexDB/types"
	"sync"
)

const PageSize = types.PageSize

/*
This contains the page struct shared by the heap file manager and the index
file manager. Both page kinds ultimately travel through the same bufferpool,
so a central package keeps the frame bookkeeping (pin count, dirty bit) in
one place.

The actual byte layout differs per page type:
for heap pages:  storage_engine/access/heapfile_manager/heap_page.go
for index pages: storage_engine/access/indexfile_manager/btree/node_codec.go
*/

type Page struct {
	ID       int64 // global page ID: fileID<<32 | local page number
	FileID   uint32
	Data     []byte
	IsDirty  bool
	PinCount int32
	PageType types.PageType
	mu       sync.RWMutex
}

func (p *Page) Lock() {
	p.mu.Lock()
}

func (p *Page) Unlock() {
	p.mu.Unlock()
}

func (p *Page) RLock() {
	p.mu.RLock()
}

func (p *Page) RUnlock() {
	p.mu.RUnlock()
}
