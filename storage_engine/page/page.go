package page

import (
	"sync"

	"bptreeidx/types"
)

/*
Page is the unit the disk manager and buffer pool move around. Both the
heap file and the B+ tree index build their on-disk layouts on top of the
same Data buffer; this package only carries the bookkeeping common to
both (pin count, dirty bit, which page type it holds) and leaves the byte
layout itself to heapfile and bplustree.
*/

type Page struct {
	ID       int64
	FileID   uint32
	Data     []byte
	IsDirty  bool
	PinCount int32
	PageType types.PageType
	mu       sync.RWMutex
}

func New(id int64, fileID uint32, pageType types.PageType) *Page {
	return &Page{
		ID:       id,
		FileID:   fileID,
		Data:     make([]byte, types.PageSize),
		PageType: pageType,
	}
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
