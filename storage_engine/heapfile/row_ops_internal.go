package heapfile

import (
	"fmt"

	"bptreeidx/types"
)

// insertRow inserts a row into the heap file and returns a RowPointer.
// Callers take hf.mu before calling — this and the other lowercase row
// helpers must stay lock-free so UpdateRow (insert + delete) can't deadlock
// against itself.
func (hf *HeapFile) insertRow(rowData []byte) (*types.RowPointer, error) {
	rowLen := uint16(len(rowData))
	maxRowSize := uint16(types.PageSize - types.HeapPageHeaderSize - types.SlotSize)
	if rowLen > maxRowSize {
		return nil, fmt.Errorf("heapfile: row too large: %d bytes (max %d)", rowLen, maxRowSize)
	}

	for {
		pg, localPageNum, err := hf.findSuitablePage(rowLen)
		if err != nil {
			return nil, fmt.Errorf("heapfile: find suitable page: %w", err)
		}

		pg.Lock()

		if FreeSpace(pg) < int(rowLen) {
			pg.Unlock()
			hf.bufferPool.UnpinPage(pg.ID, false)
			continue
		}

		slotIndex, err := InsertRecord(pg, rowData)
		if err != nil {
			pg.Unlock()
			hf.bufferPool.UnpinPage(pg.ID, false)
			return nil, fmt.Errorf("heapfile: insert record: %w", err)
		}

		pg.Unlock()
		hf.bufferPool.UnpinPage(pg.ID, true)

		return &types.RowPointer{
			FileID:     hf.fileID,
			PageNumber: localPageNum,
			SlotIndex:  slotIndex,
		}, nil
	}
}

func (hf *HeapFile) getRow(ptr *types.RowPointer) ([]byte, error) {
	globalPageID := hf.diskManager.GetGlobalPageID(hf.fileID, int64(ptr.PageNumber))

	pg, err := hf.bufferPool.FetchPage(globalPageID)
	if err != nil {
		return nil, fmt.Errorf("heapfile: fetch page %d: %w", globalPageID, err)
	}
	defer hf.bufferPool.UnpinPage(pg.ID, false)

	pg.RLock()
	defer pg.RUnlock()

	return GetRecord(pg, ptr.SlotIndex)
}

// allRowPointers returns every live row pointer in the file, in page/slot
// order — the bulk-load scan order the B+ tree index builder relies on.
func (hf *HeapFile) allRowPointers() []types.RowPointer {
	var result []types.RowPointer

	fd, err := hf.diskManager.GetFileDescriptor(hf.fileID)
	if err != nil {
		return result
	}

	for localPageNum := int64(0); localPageNum < fd.NextPageID; localPageNum++ {
		globalPageID := hf.diskManager.GetGlobalPageID(hf.fileID, localPageNum)

		pg, err := hf.bufferPool.FetchPage(globalPageID)
		if err != nil {
			continue
		}

		pg.RLock()
		if pg.PageType != types.PageTypeHeapData {
			pg.RUnlock()
			hf.bufferPool.UnpinPage(globalPageID, false)
			continue
		}

		slotCount := GetSlotCount(pg)
		for slotIdx := uint16(0); slotIdx < slotCount; slotIdx++ {
			if IsSlotLive(pg, slotIdx) {
				result = append(result, types.RowPointer{
					FileID:     hf.fileID,
					PageNumber: uint32(localPageNum),
					SlotIndex:  slotIdx,
				})
			}
		}
		pg.RUnlock()
		hf.bufferPool.UnpinPage(globalPageID, false)
	}

	return result
}

// deleteRow tombstones a row by zeroing its slot.
func (hf *HeapFile) deleteRow(ptr *types.RowPointer) error {
	globalPageID := hf.diskManager.GetGlobalPageID(hf.fileID, int64(ptr.PageNumber))

	pg, err := hf.bufferPool.FetchPage(globalPageID)
	if err != nil {
		return fmt.Errorf("heapfile: fetch page %d: %w", globalPageID, err)
	}
	defer hf.bufferPool.UnpinPage(pg.ID, true)

	pg.Lock()
	defer pg.Unlock()

	return DeleteRecord(pg, ptr.SlotIndex)
}

func (hf *HeapFile) updateRow(ptr *types.RowPointer, newRowData []byte) error {
	globalPageID := hf.diskManager.GetGlobalPageID(hf.fileID, int64(ptr.PageNumber))

	pg, err := hf.bufferPool.FetchPage(globalPageID)
	if err != nil {
		return fmt.Errorf("heapfile: fetch page %d: %w", globalPageID, err)
	}

	pg.Lock()
	updated, err := UpdateRecord(pg, ptr.SlotIndex, newRowData)
	if err != nil {
		pg.Unlock()
		hf.bufferPool.UnpinPage(pg.ID, false)
		return fmt.Errorf("heapfile: update record: %w", err)
	}
	pg.Unlock()
	hf.bufferPool.UnpinPage(pg.ID, true)

	if !updated {
		// UpdateRecord already tombstoned the slot — re-insert elsewhere.
		newRP, err := hf.insertRow(newRowData)
		if err != nil {
			return fmt.Errorf("heapfile: insert updated row: %w", err)
		}
		*ptr = *newRP
	}

	return nil
}
