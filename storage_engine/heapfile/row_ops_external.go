package heapfile

import (
	"fmt"

	"bptreeidx/types"
)

// InsertRow inserts a row into fileID's heap file.
func (hfm *HeapFileManager) InsertRow(fileID uint32, rowData []byte) (*types.RowPointer, error) {
	hfm.mu.RLock()
	hf, exists := hfm.files[fileID]
	hfm.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("heapfile: %w: file %d", types.ErrFileNotFound, fileID)
	}

	hf.mu.Lock()
	defer hf.mu.Unlock()
	return hf.insertRow(rowData)
}

// GetRow retrieves the row rp addresses.
func (hfm *HeapFileManager) GetRow(rp *types.RowPointer) ([]byte, error) {
	hfm.mu.RLock()
	hf, exists := hfm.files[rp.FileID]
	hfm.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("heapfile: %w: file %d", types.ErrFileNotFound, rp.FileID)
	}

	hf.mu.RLock()
	defer hf.mu.RUnlock()
	return hf.getRow(rp)
}

// UpdateRow replaces the row at rp with newRowData, relocating it (and
// updating rp in place) if the new data no longer fits its current slot.
func (hfm *HeapFileManager) UpdateRow(rp *types.RowPointer, newRowData []byte) error {
	hfm.mu.RLock()
	hf, exists := hfm.files[rp.FileID]
	hfm.mu.RUnlock()
	if !exists {
		return fmt.Errorf("heapfile: %w: file %d", types.ErrFileNotFound, rp.FileID)
	}

	hf.mu.Lock()
	defer hf.mu.Unlock()
	return hf.updateRow(rp, newRowData)
}

// DeleteRow tombstones the row rp addresses.
func (hfm *HeapFileManager) DeleteRow(rp *types.RowPointer) error {
	hfm.mu.RLock()
	hf, exists := hfm.files[rp.FileID]
	hfm.mu.RUnlock()
	if !exists {
		return fmt.Errorf("heapfile: %w: file %d", types.ErrFileNotFound, rp.FileID)
	}

	hf.mu.Lock()
	defer hf.mu.Unlock()
	return hf.deleteRow(rp)
}
