package heapfile

import (
	"fmt"

	"bptreeidx/storage_engine/page"
	"bptreeidx/types"
)

func (hfm *HeapFileManager) GetHeapFileByRelation(relationName string) (*HeapFile, error) {
	hfm.mu.RLock()
	defer hfm.mu.RUnlock()

	fileID, exists := hfm.relationIndex[relationName]
	if !exists {
		return nil, fmt.Errorf("heapfile: no heap file open for relation %q", relationName)
	}
	hf, exists := hfm.files[fileID]
	if !exists {
		return nil, fmt.Errorf("heapfile: index inconsistency for relation %q", relationName)
	}
	return hf, nil
}

func (hfm *HeapFileManager) GetHeapFileByID(fileID uint32) (*HeapFile, error) {
	hfm.mu.RLock()
	defer hfm.mu.RUnlock()

	hf, exists := hfm.files[fileID]
	if !exists {
		return nil, fmt.Errorf("heapfile: %w: file %d", types.ErrFileNotFound, fileID)
	}
	return hf, nil
}

// findSuitablePage returns a page with enough room for requiredSpace,
// scanning existing pages first and allocating a new one only if none fit.
func (hf *HeapFile) findSuitablePage(requiredSpace uint16) (*page.Page, uint32, error) {
	requiredWithSlot := int(requiredSpace) + SlotSize

	fd, err := hf.diskManager.GetFileDescriptor(hf.fileID)
	if err != nil {
		return nil, 0, err
	}

	for localPageNum := int64(0); localPageNum < fd.NextPageID; localPageNum++ {
		globalPageID := hf.diskManager.GetGlobalPageID(hf.fileID, localPageNum)

		pg, err := hf.bufferPool.FetchPage(globalPageID)
		if err != nil {
			continue
		}
		if FreeSpace(pg) >= requiredWithSlot {
			return pg, uint32(localPageNum), nil
		}
		hf.bufferPool.UnpinPage(globalPageID, false)
	}

	pg, err := hf.bufferPool.NewPage(hf.fileID, types.PageTypeHeapData)
	if err != nil {
		return nil, 0, err
	}
	InitHeapPage(pg)

	fd, err = hf.diskManager.GetFileDescriptor(hf.fileID)
	if err != nil {
		hf.bufferPool.UnpinPage(pg.ID, false)
		return nil, 0, err
	}

	localPageNum := uint32(fd.NextPageID - 1)
	SetPageNo(pg, localPageNum)
	hf.diskManager.RegisterPage(hf.fileID, int64(localPageNum))

	return pg, localPageNum, nil
}

// Flush writes every dirty page belonging to this heap file's buffer pool
// to disk. The buffer pool is shared with the index file of the same
// relation, so this flushes that too.
func (hf *HeapFile) Flush() error {
	return hf.bufferPool.FlushAllPages()
}

func (hf *HeapFile) FileID() uint32 {
	return hf.fileID
}
