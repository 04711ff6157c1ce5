package heapfile

import (
	"sync"

	"bptreeidx/storage_engine/bufferpool"
	"bptreeidx/storage_engine/diskmanager"
)

// HeapFile is a single slotted-page heap file on disk, holding the
// fixed-width records of one relation.
type HeapFile struct {
	fileID       uint32
	relationName string
	diskManager  *diskmanager.DiskManager
	bufferPool   *bufferpool.BufferPool
	filePath     string
	mu           sync.RWMutex
}

// HeapFileManager owns every heap file this process has open, keyed both by
// file id and by relation name.
type HeapFileManager struct {
	baseDir       string
	files         map[uint32]*HeapFile
	relationIndex map[string]uint32
	bufferPool    *bufferpool.BufferPool
	diskManager   *diskmanager.DiskManager
	mu            sync.RWMutex
}
