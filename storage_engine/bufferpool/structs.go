package bufferpool

import (
	"sync"

	"github.com/dgraph-io/ristretto/v2"

	"bptreeidx/storage_engine/diskmanager"
	"bptreeidx/storage_engine/page"
)

// BufferPool is the pinning LRU cache shared by a relation's heap file and
// its B+ tree index file. secondary is consulted on a primary miss before
// falling back to the disk manager, and is fed the raw bytes of any clean
// page the primary evicts.
type BufferPool struct {
	pages       map[int64]*page.Page
	capacity    int
	diskManager *diskmanager.DiskManager
	secondary   *ristretto.Cache[int64, []byte]
	accessOrder []int64 // LRU tracking: most recently used at end
	mu          sync.Mutex
}

type BufferPoolStats struct {
	TotalPages  int
	PinnedPages int
	DirtyPages  int
	Capacity    int
}
