package bufferpool

import (
	"fmt"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/dustin/go-humanize"

	"bptreeidx/storage_engine/diskmanager"
	"bptreeidx/storage_engine/page"
	"bptreeidx/types"
)

/*
BufferPool is a pinning LRU cache in front of the disk manager. Pages are
keyed by globalPageID and shared indiscriminately between a relation's heap
file and its index file, since both ultimately live behind the same
DiskManager and global page id space.

A miss against the primary pool is checked against secondary, a
ristretto-backed byte cache, before falling all the way through to disk.
secondary never sees a page this pool still considers pinned: it is only
ever populated with the bytes of a page at the moment evictLRU evicts it
clean off the LRU list, consulted only on a FetchPage miss, and cleared of
a page's entry whenever FetchPage brings that page back into the pool.
*/

func NewBufferPool(capacity int, dm *diskmanager.DiskManager) (*BufferPool, error) {
	secondary, err := ristretto.NewCache(&ristretto.Config[int64, []byte]{
		NumCounters: int64(capacity) * 80,
		MaxCost:     int64(capacity) * int64(types.PageSize) * 4,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("bufferpool: create secondary cache: %w", err)
	}

	return &BufferPool{
		pages:       make(map[int64]*page.Page, capacity),
		capacity:    capacity,
		diskManager: dm,
		secondary:   secondary,
		accessOrder: make([]int64, 0, capacity),
	}, nil
}

// FetchPage returns a page with its pin count incremented, loading it from
// the secondary cache or disk on a primary-pool miss.
func (bp *BufferPool) FetchPage(pageID int64) (*page.Page, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if pg, exists := bp.pages[pageID]; exists {
		bp.updateAccessOrder(pageID)
		pg.Lock()
		pg.PinCount++
		pg.Unlock()
		return pg, nil
	}

	if bp.diskManager == nil {
		return nil, fmt.Errorf("bufferpool: disk manager not set")
	}

	var pg *page.Page
	if raw, found := bp.secondary.Get(pageID); found {
		pg = page.New(pageID, fileIDFromPageID(pageID), types.PageType(raw[8]))
		copy(pg.Data, raw)
	} else {
		var err error
		pg, err = bp.diskManager.ReadPage(pageID)
		if err != nil {
			return nil, fmt.Errorf("bufferpool: fetch page %d: %w", pageID, err)
		}
	}
	// The page now lives in the primary pool; drop any secondary copy so a
	// later dirty write-back cannot leave stale bytes behind in the cache.
	bp.secondary.Del(pageID)

	if err := bp.addPage(pg); err != nil {
		return nil, fmt.Errorf("bufferpool: add page %d: %w", pageID, err)
	}

	pg.Lock()
	pg.PinCount++
	pg.Unlock()

	return pg, nil
}

func fileIDFromPageID(pageID int64) uint32 {
	return uint32(pageID >> 32)
}

// NewPage allocates a fresh page id in fileID, builds a blank in-memory
// page for it, pins it and marks it dirty so the pool eventually flushes
// it to disk.
func (bp *BufferPool) NewPage(fileID uint32, pageType types.PageType) (*page.Page, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if bp.diskManager == nil {
		return nil, fmt.Errorf("bufferpool: disk manager not set")
	}

	pageID, err := bp.diskManager.AllocatePage(fileID)
	if err != nil {
		return nil, fmt.Errorf("bufferpool: allocate page: %w", err)
	}

	pg := page.New(pageID, fileID, pageType)
	pg.IsDirty = true

	pg.Lock()
	pg.PinCount++
	pg.Unlock()

	if err := bp.addPage(pg); err != nil {
		pg.Lock()
		pg.PinCount--
		pg.Unlock()
		return nil, fmt.Errorf("bufferpool: add new page %d: %w", pageID, err)
	}

	return pg, nil
}

func (bp *BufferPool) UnpinPage(pageID int64, isDirty bool) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	pg, exists := bp.pages[pageID]
	if !exists {
		return fmt.Errorf("bufferpool: page %d not in pool", pageID)
	}

	pg.Lock()
	defer pg.Unlock()

	if pg.PinCount > 0 {
		pg.PinCount--
	}
	if isDirty {
		pg.IsDirty = true
	}
	return nil
}

// FlushPage writes a pinned-or-not page to disk if it is dirty.
func (bp *BufferPool) FlushPage(pageID int64) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	pg, exists := bp.pages[pageID]
	if !exists {
		return fmt.Errorf("bufferpool: page %d not in pool", pageID)
	}

	pg.Lock()
	defer pg.Unlock()

	if !pg.IsDirty {
		return nil
	}
	if err := bp.diskManager.WritePage(pg); err != nil {
		return fmt.Errorf("bufferpool: flush page %d: %w", pageID, err)
	}
	pg.IsDirty = false
	return nil
}

// FlushAllPages writes every dirty page in the pool to disk.
func (bp *BufferPool) FlushAllPages() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if bp.diskManager == nil {
		return fmt.Errorf("bufferpool: disk manager not set")
	}

	var flushed, bytes int
	for pageID, pg := range bp.pages {
		pg.Lock()
		if pg.IsDirty {
			if err := bp.diskManager.WritePage(pg); err != nil {
				pg.Unlock()
				return fmt.Errorf("bufferpool: flush page %d: %w", pageID, err)
			}
			pg.IsDirty = false
			flushed++
			bytes += len(pg.Data)
		}
		pg.Unlock()
	}

	fmt.Printf("[BufferPool] FlushAllPages flushed=%d size=%s\n", flushed, humanize.Bytes(uint64(bytes)))
	return nil
}

// addPage inserts page into the pool, evicting an unpinned page first if
// at capacity. Caller holds bp.mu.
func (bp *BufferPool) addPage(pg *page.Page) error {
	if _, exists := bp.pages[pg.ID]; exists {
		bp.updateAccessOrder(pg.ID)
		return nil
	}

	if len(bp.pages) >= bp.capacity {
		if err := bp.evictLRU(); err != nil {
			return fmt.Errorf("evict to make room: %w", err)
		}
	}

	bp.pages[pg.ID] = pg
	bp.updateAccessOrder(pg.ID)
	return nil
}

// evictLRU evicts the least recently used unpinned page, flushing it if
// dirty and offering its bytes to the secondary cache if clean. Caller
// holds bp.mu.
func (bp *BufferPool) evictLRU() error {
	for i := 0; i < len(bp.accessOrder); i++ {
		pageID := bp.accessOrder[i]
		pg, exists := bp.pages[pageID]

		if !exists {
			bp.accessOrder = append(bp.accessOrder[:i], bp.accessOrder[i+1:]...)
			i--
			continue
		}

		pg.Lock()
		pinCount := pg.PinCount
		isDirty := pg.IsDirty

		if pinCount > 0 {
			pg.Unlock()
			continue
		}

		if isDirty && bp.diskManager != nil {
			if err := bp.diskManager.WritePage(pg); err != nil {
				pg.Unlock()
				return fmt.Errorf("write page %d during eviction: %w", pageID, err)
			}
			pg.IsDirty = false
		} else {
			raw := make([]byte, len(pg.Data))
			copy(raw, pg.Data)
			bp.secondary.Set(pageID, raw, int64(len(raw)))
		}
		pg.Unlock()

		delete(bp.pages, pageID)
		bp.accessOrder = append(bp.accessOrder[:i], bp.accessOrder[i+1:]...)
		fmt.Printf("[BufferPool] EVICT pageID=%d dirty=%v size=%s\n", pageID, isDirty, humanize.Bytes(uint64(len(pg.Data))))
		return nil
	}

	return fmt.Errorf("bufferpool: all %d pages pinned, cannot evict", len(bp.accessOrder))
}

func (bp *BufferPool) updateAccessOrder(pageID int64) {
	for i, id := range bp.accessOrder {
		if id == pageID {
			bp.accessOrder = append(bp.accessOrder[:i], bp.accessOrder[i+1:]...)
			break
		}
	}
	bp.accessOrder = append(bp.accessOrder, pageID)
}

// DeletePage drops an unpinned page from the pool without flushing it.
func (bp *BufferPool) DeletePage(pageID int64) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	pg, exists := bp.pages[pageID]
	if !exists {
		return nil
	}

	pg.Lock()
	if pg.PinCount > 0 {
		pg.Unlock()
		return fmt.Errorf("bufferpool: cannot delete pinned page %d", pageID)
	}
	pg.Unlock()

	delete(bp.pages, pageID)
	for i, id := range bp.accessOrder {
		if id == pageID {
			bp.accessOrder = append(bp.accessOrder[:i], bp.accessOrder[i+1:]...)
			break
		}
	}
	return nil
}
