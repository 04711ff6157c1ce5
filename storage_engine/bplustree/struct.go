package bplustree

import (
	"bptreeidx/storage_engine/bufferpool"
	"bptreeidx/storage_engine/diskmanager"
	"bptreeidx/types"
)

// scanState is the cursor of the single scan a handle may have active at
// once: the pinned leaf it is positioned on, the next slot to emit from
// it, and the bounds that terminate the scan.
type scanState struct {
	active         bool
	currentPageNum int64
	nextEntry      int
	lowVal         int64
	lowOp          types.Operator
	highVal        int64
	highOp         types.Operator
}

// Index is an open handle on one B+ tree index file. It is not safe for
// concurrent use by multiple goroutines — callers sharing a handle across
// threads must serialize externally. Unlike the heap file and buffer pool,
// which guard their own state with mutexes, Index takes no locks.
type Index struct {
	fileID       uint32
	diskManager  *diskmanager.DiskManager
	bufferPool   *bufferpool.BufferPool
	relationName string
	indexName    string

	attrByteOffset int
	attrType       types.Datatype

	headerPageNum int64
	rootPageNum   int64
	rootIsLeaf    bool

	scan scanState
}
