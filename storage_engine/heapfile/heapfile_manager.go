package heapfile

import (
	"fmt"
	"os"
	"path/filepath"

	"bptreeidx/storage_engine/bufferpool"
	"bptreeidx/storage_engine/diskmanager"
	"bptreeidx/types"
)

// NewHeapFileManager creates a manager for heap files rooted at baseDir,
// sharing dm and bp with whatever B+ tree indexes are open over the same
// relations.
func NewHeapFileManager(baseDir string, dm *diskmanager.DiskManager, bp *bufferpool.BufferPool) *HeapFileManager {
	return &HeapFileManager{
		baseDir:       baseDir,
		files:         make(map[uint32]*HeapFile),
		relationIndex: make(map[string]uint32),
		diskManager:   dm,
		bufferPool:    bp,
	}
}

// CreateHeapfile creates a brand new heap file for relationName under
// fileID: opens the backing OS file, allocates its first page, and
// initializes that page's header.
func (hfm *HeapFileManager) CreateHeapfile(relationName string, fileID uint32) (*HeapFile, error) {
	hfm.mu.Lock()
	defer hfm.mu.Unlock()

	if _, exists := hfm.relationIndex[relationName]; exists {
		return nil, fmt.Errorf("heapfile: heap file for relation %q already open", relationName)
	}

	heapPath := filepath.Join(hfm.baseDir, fmt.Sprintf("%d.heap", fileID))
	if _, err := os.Stat(heapPath); err == nil {
		return nil, fmt.Errorf("heapfile: %s already exists", heapPath)
	}
	if err := os.MkdirAll(hfm.baseDir, 0755); err != nil {
		return nil, fmt.Errorf("heapfile: create dir %s: %w", hfm.baseDir, err)
	}

	if _, err := hfm.diskManager.OpenFileWithID(heapPath, fileID); err != nil {
		return nil, fmt.Errorf("heapfile: create %s: %w", heapPath, err)
	}

	pg, err := hfm.bufferPool.NewPage(fileID, types.PageTypeHeapData)
	if err != nil {
		_ = hfm.diskManager.CloseFile(fileID)
		return nil, fmt.Errorf("heapfile: allocate first page: %w", err)
	}

	InitHeapPage(pg)

	if err := hfm.bufferPool.UnpinPage(pg.ID, true); err != nil {
		_ = hfm.diskManager.CloseFile(fileID)
		return nil, fmt.Errorf("heapfile: unpin first page: %w", err)
	}

	hf := &HeapFile{
		fileID:       fileID,
		relationName: relationName,
		filePath:     heapPath,
		diskManager:  hfm.diskManager,
		bufferPool:   hfm.bufferPool,
	}

	hfm.files[fileID] = hf
	hfm.relationIndex[relationName] = fileID

	return hf, nil
}

// LoadHeapFile opens an existing heap file and re-registers its pages in
// the disk manager's global page id map.
func (hfm *HeapFileManager) LoadHeapFile(fileID uint32, relationName string) (*HeapFile, error) {
	hfm.mu.Lock()
	defer hfm.mu.Unlock()

	if hf, exists := hfm.files[fileID]; exists {
		return hf, nil
	}

	heapPath := filepath.Join(hfm.baseDir, fmt.Sprintf("%d.heap", fileID))
	if _, err := os.Stat(heapPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("heapfile: %w: %s", types.ErrFileNotFound, heapPath)
	}

	if _, err := hfm.diskManager.OpenFileWithID(heapPath, fileID); err != nil {
		return nil, fmt.Errorf("heapfile: open %s: %w", heapPath, err)
	}

	fd, err := hfm.diskManager.GetFileDescriptor(fileID)
	if err != nil {
		return nil, err
	}
	for localPage := int64(0); localPage < fd.NextPageID; localPage++ {
		hfm.diskManager.RegisterPage(fileID, localPage)
	}

	hf := &HeapFile{
		fileID:       fileID,
		relationName: relationName,
		filePath:     heapPath,
		diskManager:  hfm.diskManager,
		bufferPool:   hfm.bufferPool,
	}

	hfm.files[fileID] = hf
	hfm.relationIndex[relationName] = fileID

	return hf, nil
}
